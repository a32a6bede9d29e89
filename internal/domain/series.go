package domain

import (
	"strconv"
	"strings"
)

// Series is one tracked manhwa. The ID is derived from the series URL at
// creation/edit time and is unique within the library.
type Series struct {
	ID        string
	Title     string
	SeriesURL string

	// MaxChapter is the highest chapter number ever seen for this series.
	// It only grows; merges take the max of every source.
	MaxChapter int

	// CoverURL is an optional remote cover image.
	CoverURL string

	// LocalCover names a bundled cover asset for a handful of known series.
	// It is never persisted: the association is recomputed from SeriesURL on
	// every load so stored records stay free of asset references.
	LocalCover string

	// LastUpdateMillis is the time of the last detected chapter increase,
	// in unix milliseconds. Used only for sort ordering.
	LastUpdateMillis int64

	// LastReadChapter is the highest chapter the user has opened. Monotonic:
	// updates take the max, never a lower value.
	LastReadChapter int

	// AniListMediaID links the series to an AniList media entry, when known.
	AniListMediaID *int
}

// ChapterURL builds the reader URL for a chapter of this series.
func (s Series) ChapterURL(chapter int) string {
	return strings.TrimRight(s.SeriesURL, "/") + "/chapter/" + strconv.Itoa(chapter)
}

// UnreadCount is the number of chapters published but not yet read.
func (s Series) UnreadCount() int {
	n := s.MaxChapter - s.LastReadChapter
	if n < 0 {
		return 0
	}
	return n
}

// ContinueChapter is the chapter to open next: one past the last read,
// capped at the newest known chapter. 0 when nothing is published yet.
func (s Series) ContinueChapter() int {
	if s.MaxChapter <= 0 {
		return 0
	}
	next := s.LastReadChapter + 1
	if next > s.MaxChapter {
		return s.MaxChapter
	}
	return next
}
