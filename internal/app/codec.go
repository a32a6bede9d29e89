package app

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/redsinal/questlog/internal/domain"
)

// Preference-store keys. The legacy series keys are read-only: once a load
// succeeds the set is written back under the current key (write-back
// migration) and the old keys are never consulted again.
const (
	keySeriesV3     = "saved_series_v3"
	keySeriesV2     = "saved_series_v2"
	keySeriesV1     = "saved_series_v1"
	keyAniListToken = "anilist_access_token"
)

func maxChapterKey(id string) string { return "maxChapter_" + id }
func lastReadKey(id string) string   { return "lastRead_" + id }

const (
	maxChapterKeyPrefix = "maxChapter_"
	lastReadKeyPrefix   = "lastRead_"
)

// EncodeSeries renders one series as a V3 record: a pipe-joined tuple of
// query-escaped fields. Field 6 is reserved (the old local-cover slot, always
// empty: the association is recomputed on load, never stored). LastReadChapter
// is deliberately absent — it lives in its own counter entry.
func EncodeSeries(s domain.Series) string {
	mediaID := ""
	if s.AniListMediaID != nil {
		mediaID = strconv.Itoa(*s.AniListMediaID)
	}
	fields := []string{
		s.ID,
		s.Title,
		s.SeriesURL,
		strconv.Itoa(s.MaxChapter),
		s.CoverURL,
		"",
		strconv.FormatInt(s.LastUpdateMillis, 10),
		mediaID,
	}
	escaped := make([]string, len(fields))
	for i, f := range fields {
		escaped[i] = url.QueryEscape(f)
	}
	return strings.Join(escaped, "|")
}

// DecodeSeries parses a record of any known version, sniffed by field count.
// A malformed or too-short record yields ok=false and is skipped by callers.
// Decoded records carry no LastReadChapter, LocalCover or seed media id —
// the reconciliation pass patches those in after decode.
func DecodeSeries(record string) (domain.Series, bool) {
	parts := strings.Split(record, "|")
	switch {
	case len(parts) >= 8:
		return decodeV3(parts)
	case len(parts) >= 7:
		return decodeV2(parts)
	case len(parts) >= 6:
		return decodeV1(parts)
	default:
		return domain.Series{}, false
	}
}

// V3: id|title|url|max|cover|(reserved)|lastUpdate|anilistMediaId
func decodeV3(parts []string) (domain.Series, bool) {
	s, ok := decodeCommon(parts)
	if !ok {
		return domain.Series{}, false
	}
	if raw, err := url.QueryUnescape(parts[6]); err == nil {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			s.LastUpdateMillis = ms
		}
	}
	if raw, err := url.QueryUnescape(parts[7]); err == nil && raw != "" {
		if id, err := strconv.Atoi(raw); err == nil {
			s.AniListMediaID = &id
		}
	}
	return s, true
}

// V2: id|title|url|max|cover|(reserved)|lastUpdate — no AniList id yet.
func decodeV2(parts []string) (domain.Series, bool) {
	s, ok := decodeCommon(parts)
	if !ok {
		return domain.Series{}, false
	}
	if raw, err := url.QueryUnescape(parts[6]); err == nil {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			s.LastUpdateMillis = ms
		}
	}
	return s, true
}

// V1: id|title|url|max|cover|(reserved) — no update timestamp either.
func decodeV1(parts []string) (domain.Series, bool) {
	return decodeCommon(parts)
}

func decodeCommon(parts []string) (domain.Series, bool) {
	id, err := url.QueryUnescape(parts[0])
	if err != nil || id == "" {
		return domain.Series{}, false
	}
	title, err := url.QueryUnescape(parts[1])
	if err != nil {
		return domain.Series{}, false
	}
	seriesURL, err := url.QueryUnescape(parts[2])
	if err != nil {
		return domain.Series{}, false
	}
	s := domain.Series{ID: id, Title: title, SeriesURL: seriesURL}
	if raw, err := url.QueryUnescape(parts[3]); err == nil {
		if max, err := strconv.Atoi(raw); err == nil {
			s.MaxChapter = max
		}
	}
	if raw, err := url.QueryUnescape(parts[4]); err == nil {
		s.CoverURL = raw
	}
	return s, true
}

// EncodeSeriesSet joins records into the stored form, one record per line.
func EncodeSeriesSet(list []domain.Series) string {
	records := make([]string, 0, len(list))
	for _, s := range list {
		records = append(records, EncodeSeries(s))
	}
	return strings.Join(records, "\n")
}

// DecodeSeriesSet parses a stored set, dropping malformed records silently.
func DecodeSeriesSet(value string) []domain.Series {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var out []domain.Series
	for _, line := range strings.Split(value, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if s, ok := DecodeSeries(line); ok {
			out = append(out, s)
		}
	}
	return out
}

func encodeCounter(n int) string { return strconv.Itoa(n) }

func decodeCounter(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
