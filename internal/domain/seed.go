package domain

import "strings"

// SeedEntry describes one series of the built-in catalog used to populate an
// empty library on first run.
type SeedEntry struct {
	URL            string
	PreferredTitle string
	LocalCover     string
	AniListMediaID *int
}

// SeedCatalog is a read-only lookup from canonical series URL (trailing slash
// trimmed) to its seed entry. It is injected into the series service so the
// URL→AniList association can be tested with fixtures and extended without
// touching the reconciliation logic.
type SeedCatalog struct {
	entries []SeedEntry
	byURL   map[string]SeedEntry
}

func NewSeedCatalog(entries []SeedEntry) SeedCatalog {
	byURL := make(map[string]SeedEntry, len(entries))
	for _, e := range entries {
		byURL[strings.TrimRight(e.URL, "/")] = e
	}
	return SeedCatalog{entries: entries, byURL: byURL}
}

// Entries returns the catalog in declaration order.
func (c SeedCatalog) Entries() []SeedEntry {
	return c.entries
}

// MediaIDForURL returns the AniList media id seeded for the URL, if any.
func (c SeedCatalog) MediaIDForURL(seriesURL string) *int {
	e, ok := c.byURL[strings.TrimRight(seriesURL, "/")]
	if !ok {
		return nil
	}
	return e.AniListMediaID
}

// LocalCoverForURL returns the bundled cover asset for the URL, or "".
// Only a handful of seeds ship a local cover.
func (c SeedCatalog) LocalCoverForURL(seriesURL string) string {
	e, ok := c.byURL[strings.TrimRight(seriesURL, "/")]
	if !ok {
		return ""
	}
	return e.LocalCover
}

func mediaID(id int) *int { return &id }

// DefaultSeedCatalog is the catalog shipped with the app.
func DefaultSeedCatalog() SeedCatalog {
	return NewSeedCatalog([]SeedEntry{
		{
			URL:            "https://asuracomic.net/series/revenge-of-the-iron-blooded-sword-hound-f1ce5747",
			PreferredTitle: "Revenge of the Iron-Blooded Sword Hound",
			LocalCover:     "bloodhound1",
			AniListMediaID: mediaID(163824),
		},
		{
			URL:            "https://asuracomic.net/series/swordmasters-youngest-son-8cafb8c3",
			PreferredTitle: "Swordmaster's Youngest Son",
			LocalCover:     "swordmaster1",
			AniListMediaID: mediaID(149332),
		},
		{URL: "https://asuracomic.net/series/pick-me-up-infinite-gacha-8adbeae5", AniListMediaID: mediaID(159441)},
		{URL: "https://asuracomic.net/series/nano-machine-13bdbe88", AniListMediaID: mediaID(120980)},
		{URL: "https://asuracomic.net/series/reaper-of-the-drifting-moon-a6fc7e69", AniListMediaID: mediaID(153432)},
		{URL: "https://asuracomic.net/series/return-of-the-mount-hua-sect-0a0c8769", AniListMediaID: mediaID(132144)},
		{URL: "https://asuracomic.net/series/chronicles-of-the-martial-gods-return-ffec0cc1", AniListMediaID: mediaID(150319)},
		{URL: "https://asuracomic.net/series/standard-of-reincarnation-44a622fe", AniListMediaID: mediaID(153880)},
		{URL: "https://asuracomic.net/series/the-regressed-son-of-a-duke-is-an-assassin-e3c4ba04", AniListMediaID: mediaID(175262)},
		{URL: "https://asuracomic.net/series/your-talent-is-mine-296b6690", AniListMediaID: mediaID(138366)},
		{URL: "https://asuracomic.net/series/martial-god-regressed-to-level-2-e2dd287d", AniListMediaID: mediaID(167834)},
		{URL: "https://asuracomic.net/series/regressing-with-the-kings-power-e0d0d8af", AniListMediaID: mediaID(170724)},
		{URL: "https://asuracomic.net/series/chronicles-of-the-demon-faction-c7f86f5d", AniListMediaID: mediaID(164222)},
		{URL: "https://asuracomic.net/series/the-dark-magician-transmigrates-after-66666-years-c45f8c1b", AniListMediaID: mediaID(137595)},
		{URL: "https://asuracomic.net/series/terminally-ill-genius-dark-knight-89bc68db", AniListMediaID: mediaID(165182)},
		{URL: "https://asuracomic.net/series/the-last-adventurer-529df836", AniListMediaID: mediaID(177982)},
		{URL: "https://asuracomic.net/series/academys-undercover-professor-3e42f845", AniListMediaID: mediaID(150836)},
		{URL: "https://asuracomic.net/series/academys-genius-swordmaster-317f777a", AniListMediaID: mediaID(167649)},
		{URL: "https://asuracomic.net/series/surviving-the-game-as-a-barbarian-6f263f9b", AniListMediaID: mediaID(164857)},
		{URL: "https://asuracomic.net/series/the-knight-king-who-returned-with-a-god-3f3083c6", AniListMediaID: mediaID(165287)},
		{URL: "https://asuracomic.net/series/the-max-level-players-100th-regression-9c748d9f", AniListMediaID: mediaID(170894)},
		{URL: "https://asuracomic.net/series/reincarnator-34ec3584", AniListMediaID: mediaID(172583)},
		{URL: "https://asuracomic.net/series/i-obtained-a-mythic-item-0fe297ef", AniListMediaID: mediaID(151025)},
		{URL: "https://asuracomic.net/series/solo-max-level-newbie-22dfe932", AniListMediaID: mediaID(137280)},
		{URL: "https://asuracomic.net/series/genius-archers-streaming-55f918eb", AniListMediaID: mediaID(180166)},
		{URL: "https://asuracomic.net/series/emperor-of-solo-play-35d8ff02", AniListMediaID: mediaID(191101)},
		{URL: "https://asuracomic.net/series/heavenly-grand-archives-young-master-b6378212", AniListMediaID: mediaID(160693)},
		{URL: "https://asuracomic.net/series/magic-academys-genius-blinker-d3295a89", AniListMediaID: mediaID(178379)},
		{URL: "https://asuracomic.net/series/mr-devourer-please-act-like-a-final-boss-e407550e", AniListMediaID: mediaID(172623)},
		{URL: "https://asuracomic.net/series/absolute-sword-sense-f66c61f8", AniListMediaID: mediaID(151460)},
		{URL: "https://asuracomic.net/series/absolute-regression-71e97ca4", AniListMediaID: mediaID(180891)},
		{URL: "https://asuracomic.net/series/the-magic-towers-problem-child-f717dad7", AniListMediaID: mediaID(189264)},
		{URL: "https://asuracomic.net/series/the-indomitable-martial-king-3508be9a", AniListMediaID: mediaID(176812)},
		{URL: "https://asuracomic.net/series/solo-leveling-ragnarok-e6a9638d", AniListMediaID: mediaID(179445)},
		{URL: "https://asuracomic.net/series/player-who-returned-10000-years-later-9d59fa79", AniListMediaID: mediaID(153284)},
	})
}
