package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/redsinal/questlog/internal/domain"
	"github.com/redsinal/questlog/internal/ports"
)

// memPrefs is an in-memory PreferencesRepository for service tests.
type memPrefs struct {
	m      map[string]string
	writes int
}

func newMemPrefs() *memPrefs { return &memPrefs{m: map[string]string{}} }

func (p *memPrefs) Get(ctx context.Context, key string) (string, error) {
	v, ok := p.m[key]
	if !ok {
		return "", ports.ErrNotFound
	}
	return v, nil
}

func (p *memPrefs) ListPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range p.m {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

func (p *memPrefs) Put(ctx context.Context, key, value string) error {
	p.m[key] = value
	p.writes++
	return nil
}

func (p *memPrefs) PutMany(ctx context.Context, pairs map[string]string) error {
	for k, v := range pairs {
		p.m[k] = v
	}
	p.writes++
	return nil
}

func (p *memPrefs) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(p.m, k)
	}
	p.writes++
	return nil
}

func mid(id int) *int { return &id }

func newTestService(prefs ports.PreferencesRepository, seeds domain.SeedCatalog, pages map[string]string) *SeriesService {
	return NewSeriesService(zerolog.Nop(), prefs, seeds, newTestScanner(pages), nil)
}

func TestLoadSeedsEmptyStore(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs()
	seeds := domain.NewSeedCatalog([]domain.SeedEntry{
		{URL: "https://e.x/series/alpha", PreferredTitle: "Alpha Prime", LocalCover: "alpha1", AniListMediaID: mid(101)},
		{URL: "https://e.x/series/beta"},
	})
	svc := newTestService(prefs, seeds, map[string]string{
		"https://e.x/series/alpha": seriesPage("Alpha", 12),
		// beta's page is unreachable
	})

	if err := svc.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	list := svc.List(ListOptions{Sort: "alpha"})
	if len(list) != 2 {
		t.Fatalf("expected 2 seeded series, got %d", len(list))
	}

	alpha := list[0]
	if alpha.Title != "Alpha Prime" {
		t.Fatalf("preferred title must win over the page title: %q", alpha.Title)
	}
	if alpha.MaxChapter != 12 || alpha.LocalCover != "alpha1" {
		t.Fatalf("alpha not probed: %+v", alpha)
	}
	if alpha.CoverURL != "" {
		t.Fatalf("seeded local cover must suppress the remote cover: %+v", alpha)
	}
	if alpha.AniListMediaID == nil || *alpha.AniListMediaID != 101 {
		t.Fatalf("seed media id missing: %+v", alpha)
	}

	beta := list[1]
	if beta.Title != "beta" || beta.MaxChapter != 0 {
		t.Fatalf("unreachable seed must become a placeholder: %+v", beta)
	}

	// The seeded set is persisted in the current format, with counters.
	if _, err := prefs.Get(ctx, keySeriesV3); err != nil {
		t.Fatalf("seeded set not persisted: %v", err)
	}
	if v, err := prefs.Get(ctx, maxChapterKey("alpha")); err != nil || v != "12" {
		t.Fatalf("alpha counter not persisted: %q %v", v, err)
	}
}

func TestLoadMigratesLegacyFormat(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs()
	seeds := domain.NewSeedCatalog([]domain.SeedEntry{
		{URL: "https://e.x/series/alpha", AniListMediaID: mid(101)},
	})
	svc := newTestService(prefs, seeds, nil)

	// A V1 record: six fields, no timestamp, no media id.
	prefs.m[keySeriesV1] = "alpha|Alpha|https%3A%2F%2Fe.x%2Fseries%2Falpha|9|cover|"
	prefs.m[maxChapterKey("alpha")] = "11"
	prefs.m[lastReadKey("alpha")] = "4"

	if err := svc.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, err := svc.Get("alpha")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.MaxChapter != 11 {
		t.Fatalf("greater stored counter must win: %+v", got)
	}
	if got.LastReadChapter != 4 {
		t.Fatalf("last-read counter must be joined in: %+v", got)
	}
	if got.AniListMediaID == nil || *got.AniListMediaID != 101 {
		t.Fatalf("seed media id must be attached on load: %+v", got)
	}

	// Write-back: the set now lives under the current key.
	v3, err := prefs.Get(ctx, keySeriesV3)
	if err != nil {
		t.Fatalf("migrated set not written back: %v", err)
	}
	decoded := DecodeSeriesSet(v3)
	if len(decoded) != 1 || decoded[0].AniListMediaID == nil {
		t.Fatalf("written-back set wrong: %+v", decoded)
	}
}

func TestLoadCounterNeverLowersMaxChapter(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs()
	svc := newTestService(prefs, domain.NewSeedCatalog(nil), nil)

	prefs.m[keySeriesV3] = EncodeSeriesSet([]domain.Series{
		{ID: "alpha", Title: "Alpha", SeriesURL: "https://e.x/series/alpha", MaxChapter: 20},
	})
	prefs.m[maxChapterKey("alpha")] = "15"

	if err := svc.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, _ := svc.Get("alpha")
	if got.MaxChapter != 20 {
		t.Fatalf("a lower counter must not regress the record: %+v", got)
	}
}

func TestAddSeries(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs()
	svc := newTestService(prefs, domain.NewSeedCatalog(nil), map[string]string{
		"https://e.x/series/gamma":  seriesPage("Gamma", 33),
		"https://e.x/series/gamma/": seriesPage("Gamma", 33),
	})

	dto, message, err := svc.Add(ctx, "https://e.x/series/gamma")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if dto.ID != "gamma" || dto.Title != "Gamma" || dto.MaxChapter != 33 {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if message != "Added: Gamma (up to chapter 33)" {
		t.Fatalf("unexpected message %q", message)
	}
	if v, err := prefs.Get(ctx, maxChapterKey("gamma")); err != nil || v != "33" {
		t.Fatalf("counter not persisted: %q %v", v, err)
	}

	// Same page again, trailing slash included, is a conflict.
	if _, _, err := svc.Add(ctx, "https://e.x/series/gamma/"); !errors.Is(err, ports.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAddSeriesValidation(t *testing.T) {
	svc := newTestService(newMemPrefs(), domain.NewSeedCatalog(nil), nil)

	if _, _, err := svc.Add(context.Background(), "  "); err == nil {
		t.Fatalf("blank url must be rejected")
	}
	if _, _, err := svc.Add(context.Background(), "ftp://e.x/series/x"); err == nil {
		t.Fatalf("non-http scheme must be rejected")
	}
	if _, _, err := svc.Add(context.Background(), "https://e.x/series/down"); err == nil || !strings.Contains(err.Error(), "could not open the series page") {
		t.Fatalf("unreachable page: got %v", err)
	}
}

func TestMarkReadMonotonic(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs()
	svc := newTestService(prefs, domain.NewSeedCatalog(nil), nil)
	prefs.m[keySeriesV3] = EncodeSeriesSet([]domain.Series{
		{ID: "alpha", Title: "Alpha", SeriesURL: "https://e.x/series/alpha", MaxChapter: 10},
	})
	if err := svc.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	dto, err := svc.MarkRead(ctx, "alpha", 5)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if dto.LastReadChapter != 5 || dto.UnreadCount != 5 {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if v, _ := prefs.Get(ctx, lastReadKey("alpha")); v != "5" {
		t.Fatalf("counter not persisted: %q", v)
	}

	// A lower or equal chapter changes nothing and writes nothing.
	writes := prefs.writes
	dto, err = svc.MarkRead(ctx, "alpha", 3)
	if err != nil {
		t.Fatalf("MarkRead(lower): %v", err)
	}
	if dto.LastReadChapter != 5 {
		t.Fatalf("last read regressed: %+v", dto)
	}
	if prefs.writes != writes {
		t.Fatalf("no-op mark-read must not write")
	}

	if _, err := svc.MarkRead(ctx, "missing", 1); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestContinueReading(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs()
	svc := newTestService(prefs, domain.NewSeedCatalog(nil), nil)
	prefs.m[keySeriesV3] = EncodeSeriesSet([]domain.Series{
		{ID: "alpha", Title: "Alpha", SeriesURL: "https://e.x/series/alpha/", MaxChapter: 10},
	})
	prefs.m[lastReadKey("alpha")] = "4"
	if err := svc.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	dto, chapter, chapterURL, err := svc.ContinueReading(ctx, "alpha")
	if err != nil {
		t.Fatalf("ContinueReading: %v", err)
	}
	if chapter != 5 || dto.LastReadChapter != 5 {
		t.Fatalf("expected to open chapter 5: %d %+v", chapter, dto)
	}
	if chapterURL != "https://e.x/series/alpha/chapter/5" {
		t.Fatalf("unexpected chapter url %q", chapterURL)
	}

	// The next call opens the following chapter.
	if _, chapter, _, err = svc.ContinueReading(ctx, "alpha"); err != nil || chapter != 6 {
		t.Fatalf("expected chapter 6, got %d err=%v", chapter, err)
	}
}

func TestRemoveDeletesCounters(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs()
	svc := newTestService(prefs, domain.NewSeedCatalog(nil), nil)
	prefs.m[keySeriesV3] = EncodeSeriesSet([]domain.Series{
		{ID: "alpha", Title: "Alpha", SeriesURL: "https://e.x/series/alpha", MaxChapter: 10},
	})
	prefs.m[maxChapterKey("alpha")] = "10"
	prefs.m[lastReadKey("alpha")] = "4"
	if err := svc.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := svc.Remove(ctx, "alpha"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := svc.Get("alpha"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := prefs.Get(ctx, maxChapterKey("alpha")); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("max counter must be deleted")
	}
	if _, err := prefs.Get(ctx, lastReadKey("alpha")); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("last-read counter must be deleted")
	}
}

func TestEditURLReassociatesSeed(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs()
	seeds := domain.NewSeedCatalog([]domain.SeedEntry{
		{URL: "https://e.x/series/beta", AniListMediaID: mid(202)},
	})
	svc := newTestService(prefs, seeds, nil)
	prefs.m[keySeriesV3] = EncodeSeriesSet([]domain.Series{
		{ID: "alpha", Title: "Alpha", SeriesURL: "https://e.x/series/alpha", MaxChapter: 10},
	})
	if err := svc.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	dto, err := svc.EditURL(ctx, "alpha", "https://e.x/series/beta")
	if err != nil {
		t.Fatalf("EditURL: %v", err)
	}
	// The id survives the move; the seed association follows the new URL.
	if dto.ID != "alpha" {
		t.Fatalf("id must not change on url edit: %+v", dto)
	}
	if dto.AniListMediaID == nil || *dto.AniListMediaID != 202 {
		t.Fatalf("seed media id not re-derived: %+v", dto)
	}
}

func TestListFilterAndSort(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs()
	svc := newTestService(prefs, domain.NewSeedCatalog(nil), nil)
	prefs.m[keySeriesV3] = EncodeSeriesSet([]domain.Series{
		{ID: "b", Title: "Beta Blade", SeriesURL: "https://e.x/series/b", LastUpdateMillis: 200},
		{ID: "a", Title: "alpha strike", SeriesURL: "https://e.x/series/a", LastUpdateMillis: 100},
		{ID: "c", Title: "Gamma", SeriesURL: "https://e.x/series/c", LastUpdateMillis: 300},
	})
	if err := svc.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	recent := svc.List(ListOptions{})
	if len(recent) != 3 || recent[0].ID != "c" || recent[1].ID != "b" || recent[2].ID != "a" {
		t.Fatalf("recent order wrong: %+v", recent)
	}

	alpha := svc.List(ListOptions{Sort: "alpha"})
	if alpha[0].Title != "alpha strike" || alpha[1].Title != "Beta Blade" {
		t.Fatalf("alpha order wrong: %+v", alpha)
	}

	filtered := svc.List(ListOptions{Query: "BLADE"})
	if len(filtered) != 1 || filtered[0].ID != "b" {
		t.Fatalf("filter wrong: %+v", filtered)
	}
}

func TestCheckUpdates(t *testing.T) {
	ctx := context.Background()
	prefs := newMemPrefs()
	svc := newTestService(prefs, domain.NewSeedCatalog(nil), map[string]string{
		"https://e.x/series/one": seriesPage("One", 8),
		"https://e.x/series/two": seriesPage("Two", 5),
	})
	prefs.m[keySeriesV3] = EncodeSeriesSet([]domain.Series{
		{ID: "one", Title: "One", SeriesURL: "https://e.x/series/one", MaxChapter: 5},
		{ID: "two", Title: "Two", SeriesURL: "https://e.x/series/two", MaxChapter: 5},
		{ID: "down", Title: "Down", SeriesURL: "https://e.x/series/down", MaxChapter: 3},
	})
	if err := svc.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var calls int
	summary, err := svc.CheckUpdates(ctx, func(done, total int, title string) { calls++ })
	if err != nil {
		t.Fatalf("CheckUpdates: %v", err)
	}
	if summary != "One: +3 (5 → 8)" {
		t.Fatalf("unexpected summary %q", summary)
	}
	if calls != 6 {
		t.Fatalf("expected 6 progress calls, got %d", calls)
	}

	one, _ := svc.Get("one")
	if one.MaxChapter != 8 || one.LastUpdateMillis == 0 {
		t.Fatalf("raise not applied: %+v", one)
	}
	if v, _ := prefs.Get(ctx, maxChapterKey("one")); v != "8" {
		t.Fatalf("raised counter not persisted: %q", v)
	}
	// A failed probe leaves the series untouched.
	down, _ := svc.Get("down")
	if down.MaxChapter != 3 {
		t.Fatalf("failed probe must not change the record: %+v", down)
	}

	// Second scan with identical pages reports nothing.
	summary, err = svc.CheckUpdates(ctx, nil)
	if err != nil {
		t.Fatalf("CheckUpdates: %v", err)
	}
	if summary != "No updates (some series could not be checked)." {
		t.Fatalf("unexpected summary %q", summary)
	}
}
