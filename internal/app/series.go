package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redsinal/questlog/internal/domain"
	"github.com/redsinal/questlog/internal/ports"
	"github.com/rs/zerolog"
)

// SeriesService owns the authoritative in-memory library. Every read and
// write goes through it; a single mutex serializes mutations so concurrent
// intents can never interleave a partial update, and each mutation re-persists
// the full list so the stored form and the in-memory form converge.
type SeriesService struct {
	logger  zerolog.Logger
	prefs   ports.PreferencesRepository
	seeds   domain.SeedCatalog
	scanner *UpdateScanner
	bus     ports.EventBus

	mu   sync.Mutex
	list []domain.Series
}

func NewSeriesService(logger zerolog.Logger, prefs ports.PreferencesRepository, seeds domain.SeedCatalog, scanner *UpdateScanner, bus ports.EventBus) *SeriesService {
	return &SeriesService{logger: logger, prefs: prefs, seeds: seeds, scanner: scanner, bus: bus}
}

type SeriesDTO struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	SeriesURL        string `json:"seriesUrl"`
	MaxChapter       int    `json:"maxChapter"`
	CoverURL         string `json:"coverUrl,omitempty"`
	LocalCover       string `json:"localCover,omitempty"`
	LastUpdateMillis int64  `json:"lastUpdateMillis"`
	LastReadChapter  int    `json:"lastReadChapter"`
	AniListMediaID   *int   `json:"anilistMediaId,omitempty"`
	UnreadCount      int    `json:"unreadCount"`
	ContinueChapter  int    `json:"continueChapter"`
}

func toSeriesDTO(s domain.Series) SeriesDTO {
	return SeriesDTO{
		ID:               s.ID,
		Title:            s.Title,
		SeriesURL:        s.SeriesURL,
		MaxChapter:       s.MaxChapter,
		CoverURL:         s.CoverURL,
		LocalCover:       s.LocalCover,
		LastUpdateMillis: s.LastUpdateMillis,
		LastReadChapter:  s.LastReadChapter,
		AniListMediaID:   s.AniListMediaID,
		UnreadCount:      s.UnreadCount(),
		ContinueChapter:  s.ContinueChapter(),
	}
}

// Load reads the persisted library, walking the version ladder V3→V2→V1, and
// reconciles it: local cover and seed media id recomputed per record, the
// last-read counter joined back in, and maxChapter never allowed to regress
// below its own counter. A successful non-empty load is immediately written
// back in the current format so legacy keys are never consulted again. An
// empty store falls through to first-run seeding.
func (s *SeriesService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	decoded, err := s.readPersisted(ctx)
	if err != nil {
		return err
	}
	if len(decoded) == 0 {
		return s.seedLocked(ctx)
	}

	maxMap, err := s.readCounters(ctx, maxChapterKeyPrefix)
	if err != nil {
		return err
	}
	readMap, err := s.readCounters(ctx, lastReadKeyPrefix)
	if err != nil {
		return err
	}

	merged := make([]domain.Series, 0, len(decoded))
	for _, rec := range decoded {
		rec = s.patch(rec)
		// The stored counter wins for maxChapter only when strictly greater:
		// the record may be fresher than the counter after an edit. The
		// last-read counter is authoritative whenever present.
		if stored, ok := maxMap[rec.ID]; ok && stored > rec.MaxChapter {
			rec.MaxChapter = stored
		}
		if stored, ok := readMap[rec.ID]; ok {
			rec.LastReadChapter = stored
		}
		merged = append(merged, rec)
	}

	s.list = merged
	if err := s.persistListLocked(ctx); err != nil {
		return err
	}
	s.logger.Info().Int("series", len(s.list)).Msg("library loaded")
	return nil
}

// readPersisted returns the first non-empty decoded set along the version
// ladder. Malformed records are dropped silently by the codec.
func (s *SeriesService) readPersisted(ctx context.Context) ([]domain.Series, error) {
	for _, key := range []string{keySeriesV3, keySeriesV2, keySeriesV1} {
		value, err := s.prefs.Get(ctx, key)
		if errors.Is(err, ports.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if decoded := DecodeSeriesSet(value); len(decoded) > 0 {
			return decoded, nil
		}
	}
	return nil, nil
}

func (s *SeriesService) readCounters(ctx context.Context, prefix string) (map[string]int, error) {
	raw, err := s.prefs.ListPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(raw))
	for k, v := range raw {
		if n, ok := decodeCounter(v); ok {
			out[strings.TrimPrefix(k, prefix)] = n
		}
	}
	return out, nil
}

// patch re-derives everything a stored record must not be trusted for: the
// bundled cover association and a missing seed media id.
func (s *SeriesService) patch(rec domain.Series) domain.Series {
	rec.LocalCover = s.seeds.LocalCoverForURL(rec.SeriesURL)
	if rec.AniListMediaID == nil {
		rec.AniListMediaID = s.seeds.MediaIDForURL(rec.SeriesURL)
	}
	return rec
}

// seedLocked populates an empty library from the built-in catalog, probing
// each seed's live page for its title, cover and chapter count. A seed whose
// page cannot be reached becomes a placeholder with maxChapter 0 instead of
// failing the whole batch.
func (s *SeriesService) seedLocked(ctx context.Context) error {
	readMap, err := s.readCounters(ctx, lastReadKeyPrefix)
	if err != nil {
		return err
	}

	seeded := make([]domain.Series, 0, len(s.seeds.Entries()))
	for _, seed := range s.seeds.Entries() {
		seriesURL := strings.TrimSpace(seed.URL)
		rec := domain.Series{
			ID:             StableSeriesID(seriesURL),
			SeriesURL:      seriesURL,
			LocalCover:     seed.LocalCover,
			AniListMediaID: seed.AniListMediaID,
		}

		info, err := s.scanner.Probe(ctx, seriesURL)
		if err != nil {
			s.logger.Warn().Err(err).Str("url", seriesURL).Msg("seed probe failed, keeping placeholder")
		} else {
			rec.MaxChapter = info.Latest
			if seed.LocalCover == "" {
				rec.CoverURL = info.Cover
			}
		}

		switch {
		case seed.PreferredTitle != "":
			rec.Title = seed.PreferredTitle
		case err == nil && info.HasTitle:
			rec.Title = info.Title
		default:
			rec.Title = rec.ID
		}
		if stored, ok := readMap[rec.ID]; ok {
			rec.LastReadChapter = stored
		}
		seeded = append(seeded, rec)
	}

	s.list = seeded

	pairs := map[string]string{keySeriesV3: EncodeSeriesSet(s.list)}
	for _, rec := range s.list {
		pairs[maxChapterKey(rec.ID)] = encodeCounter(rec.MaxChapter)
	}
	if err := s.prefs.PutMany(ctx, pairs); err != nil {
		return err
	}
	s.logger.Info().Int("series", len(s.list)).Msg("library seeded")
	s.publish("library.seeded", map[string]any{"count": len(s.list)})
	return nil
}

// ListOptions narrow and order the snapshot returned by List.
type ListOptions struct {
	// Query filters by case-insensitive title substring.
	Query string
	// Sort is "recent" (default: newest chapter activity first) or "alpha".
	Sort string
}

func (s *SeriesService) List(opts ListOptions) []SeriesDTO {
	s.mu.Lock()
	snapshot := make([]domain.Series, len(s.list))
	copy(snapshot, s.list)
	s.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(opts.Query))
	filtered := snapshot[:0]
	for _, rec := range snapshot {
		if q == "" || strings.Contains(strings.ToLower(rec.Title), q) {
			filtered = append(filtered, rec)
		}
	}

	switch opts.Sort {
	case "alpha":
		sort.SliceStable(filtered, func(i, j int) bool {
			return strings.ToLower(filtered[i].Title) < strings.ToLower(filtered[j].Title)
		})
	default: // recent
		sort.SliceStable(filtered, func(i, j int) bool {
			if filtered[i].LastUpdateMillis != filtered[j].LastUpdateMillis {
				return filtered[i].LastUpdateMillis > filtered[j].LastUpdateMillis
			}
			return strings.ToLower(filtered[i].Title) < strings.ToLower(filtered[j].Title)
		})
	}

	out := make([]SeriesDTO, 0, len(filtered))
	for _, rec := range filtered {
		out = append(out, toSeriesDTO(rec))
	}
	return out
}

func (s *SeriesService) Get(id string) (SeriesDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return SeriesDTO{}, ports.ErrNotFound
	}
	return toSeriesDTO(s.list[idx]), nil
}

// Snapshot returns a copy of the library in list order, for batch operations
// that read outside the lock (scan, sync).
func (s *SeriesService) Snapshot() []domain.Series {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Series, len(s.list))
	copy(out, s.list)
	return out
}

// Add tracks a new series by its page URL. The URL is validated before any
// network call; the page is probed for title, cover and chapter count; the id
// is derived from the URL and must not collide with a tracked series.
func (s *SeriesService) Add(ctx context.Context, rawURL string) (SeriesDTO, string, error) {
	seriesURL := strings.TrimSpace(rawURL)
	if seriesURL == "" {
		return SeriesDTO{}, "", errors.New("missing series url")
	}
	if !strings.HasPrefix(seriesURL, "http://") && !strings.HasPrefix(seriesURL, "https://") {
		return SeriesDTO{}, "", errors.New("series url must start with http:// or https://")
	}

	info, err := s.scanner.Probe(ctx, seriesURL)
	if err != nil {
		return SeriesDTO{}, "", fmt.Errorf("could not open the series page: %w", err)
	}

	rec := domain.Series{
		ID:        StableSeriesID(seriesURL),
		SeriesURL: seriesURL,
		Title:     "Manhwa",
		CoverURL:  info.Cover,
	}
	if info.HasTitle {
		rec.Title = info.Title
	}
	if info.HasChapter {
		rec.MaxChapter = info.Latest
	}
	rec = s.patch(rec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(rec.ID) >= 0 {
		return SeriesDTO{}, "", fmt.Errorf("%w: already tracked: %s", ports.ErrConflict, rec.Title)
	}
	s.list = append(s.list, rec)

	pairs := map[string]string{keySeriesV3: EncodeSeriesSet(s.list)}
	if rec.MaxChapter > 0 {
		pairs[maxChapterKey(rec.ID)] = encodeCounter(rec.MaxChapter)
	}
	if err := s.prefs.PutMany(ctx, pairs); err != nil {
		return SeriesDTO{}, "", err
	}

	dto := toSeriesDTO(rec)
	s.publish("series.added", dto)
	return dto, fmt.Sprintf("Added: %s (up to chapter %d)", rec.Title, rec.MaxChapter), nil
}

func (s *SeriesService) Rename(ctx context.Context, id, title string) (SeriesDTO, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return SeriesDTO{}, errors.New("missing title")
	}
	return s.mutate(ctx, id, func(rec *domain.Series) error {
		rec.Title = title
		return nil
	})
}

// EditURL changes the series page URL. The bundled-cover association and the
// seed media id are re-derived, since a URL edit can change which seed entry
// applies. The id itself is not recomputed: history under the old id stays.
func (s *SeriesService) EditURL(ctx context.Context, id, rawURL string) (SeriesDTO, error) {
	seriesURL := strings.TrimSpace(rawURL)
	if !strings.HasPrefix(seriesURL, "http://") && !strings.HasPrefix(seriesURL, "https://") {
		return SeriesDTO{}, errors.New("series url must start with http:// or https://")
	}
	return s.mutate(ctx, id, func(rec *domain.Series) error {
		rec.SeriesURL = seriesURL
		*rec = s.patch(*rec)
		return nil
	})
}

// SetCover sets or clears the remote cover URL. An empty value clears it.
func (s *SeriesService) SetCover(ctx context.Context, id, coverURL string) (SeriesDTO, error) {
	return s.mutate(ctx, id, func(rec *domain.Series) error {
		rec.CoverURL = strings.TrimSpace(coverURL)
		return nil
	})
}

// MarkRead records that the user opened a chapter. The last-read counter only
// ever goes up; calls at or below the current value change nothing and write
// nothing. A real change persists the counter and the list in one write.
func (s *SeriesService) MarkRead(ctx context.Context, id string, chapter int) (SeriesDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return SeriesDTO{}, ports.ErrNotFound
	}
	rec := &s.list[idx]
	if chapter <= rec.LastReadChapter {
		return toSeriesDTO(*rec), nil
	}
	rec.LastReadChapter = chapter

	err := s.prefs.PutMany(ctx, map[string]string{
		lastReadKey(id): encodeCounter(chapter),
		keySeriesV3:     EncodeSeriesSet(s.list),
	})
	if err != nil {
		return SeriesDTO{}, err
	}
	dto := toSeriesDTO(*rec)
	s.publish("series.read", dto)
	return dto, nil
}

// ContinueReading resolves the next chapter to open and marks it read,
// mirroring what opening the reader does.
func (s *SeriesService) ContinueReading(ctx context.Context, id string) (SeriesDTO, int, string, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return SeriesDTO{}, 0, "", ports.ErrNotFound
	}
	rec := s.list[idx]
	s.mu.Unlock()

	chapter := rec.ContinueChapter()
	if chapter <= 0 {
		return toSeriesDTO(rec), 0, "", errors.New("no chapters published yet")
	}
	dto, err := s.MarkRead(ctx, id, chapter)
	if err != nil {
		return SeriesDTO{}, 0, "", err
	}
	return dto, chapter, rec.ChapterURL(chapter), nil
}

// Remove drops a series and deletes its two counters.
func (s *SeriesService) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return ports.ErrNotFound
	}
	s.list = append(s.list[:idx], s.list[idx+1:]...)

	if err := s.persistListLocked(ctx); err != nil {
		return err
	}
	if err := s.prefs.Delete(ctx, maxChapterKey(id), lastReadKey(id)); err != nil {
		return err
	}
	s.publish("series.removed", map[string]any{"id": id})
	return nil
}

// CheckUpdates runs the scan batch: snapshot the list, probe every page in
// order (no lock held during network I/O), then apply the diffs — a raise of
// maxChapter plus the update timestamp, only when the page reports more than
// we know — and persist counters and list in one write.
func (s *SeriesService) CheckUpdates(ctx context.Context, progress ProgressFunc) (string, error) {
	snapshot := s.Snapshot()
	outcomes := s.scanner.CheckAll(ctx, snapshot, progress)
	now := time.Now().UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()

	before := make(map[string]int, len(s.list))
	pairs := map[string]string{}
	updated := 0
	for i := range s.list {
		rec := &s.list[i]
		before[rec.ID] = rec.MaxChapter
		outcome, ok := outcomes[rec.ID]
		if !ok || !outcome.Found {
			continue
		}
		if outcome.Latest > rec.MaxChapter {
			rec.MaxChapter = outcome.Latest
			rec.LastUpdateMillis = now
			pairs[maxChapterKey(rec.ID)] = encodeCounter(outcome.Latest)
			updated++
		}
	}
	pairs[keySeriesV3] = EncodeSeriesSet(s.list)
	if err := s.prefs.PutMany(ctx, pairs); err != nil {
		return "", err
	}

	summary := BuildScanSummary(s.list, before, outcomes)
	s.logger.Info().Int("updated", updated).Int("checked", len(outcomes)).Msg("scan finished")
	s.publish("scan.done", map[string]any{"updated": updated, "checked": len(outcomes)})
	return summary, nil
}

// mutate applies fn to the series under the lock and re-persists the list.
func (s *SeriesService) mutate(ctx context.Context, id string, fn func(*domain.Series) error) (SeriesDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return SeriesDTO{}, ports.ErrNotFound
	}
	if err := fn(&s.list[idx]); err != nil {
		return SeriesDTO{}, err
	}
	if err := s.persistListLocked(ctx); err != nil {
		return SeriesDTO{}, err
	}
	dto := toSeriesDTO(s.list[idx])
	s.publish("series.updated", dto)
	return dto, nil
}

func (s *SeriesService) indexLocked(id string) int {
	for i := range s.list {
		if s.list[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *SeriesService) persistListLocked(ctx context.Context) error {
	return s.prefs.Put(ctx, keySeriesV3, EncodeSeriesSet(s.list))
}

func (s *SeriesService) publish(topic string, payload any) {
	if s.bus == nil {
		return
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	s.bus.Publish(topic, b)
}
