package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/redsinal/questlog/internal/domain"
	"github.com/rs/zerolog"
)

// ProgressFunc reports batch progress. It is invoked twice per item, before
// (done = items finished so far) and after processing, with the title of the
// item currently worked on, so a client can render "3/36 — Nano Machine".
type ProgressFunc func(done, total int, title string)

// ScanOutcome is the result of probing one series page. Found=false means the
// fetch or the chapter extraction failed — deliberately distinct from a page
// where chapter 0 was found.
type ScanOutcome struct {
	Latest int
	Found  bool
}

// PageInfo is everything a probe can learn about a series page. Every field
// is optional; HasChapter distinguishes "linked chapter 0" from "no chapter
// link at all".
type PageInfo struct {
	Title      string
	HasTitle   bool
	Latest     int
	HasChapter bool
	Cover      string
}

// UpdateScanner walks the tracked series in order, re-fetches each page and
// extracts the newest chapter number. It never mutates the library: outcomes
// go back to the series service, which applies the diffs.
type UpdateScanner struct {
	fetcher   PageFetcher
	extractor Extractor
	logger    zerolog.Logger
}

func NewUpdateScanner(logger zerolog.Logger, fetcher PageFetcher, extractor Extractor) *UpdateScanner {
	return &UpdateScanner{fetcher: fetcher, extractor: extractor, logger: logger}
}

// Probe fetches one series page and extracts what it can. Only the fetch
// itself can fail; missing title/cover/chapter are absent, not errors.
func (sc *UpdateScanner) Probe(ctx context.Context, pageURL string) (PageInfo, error) {
	html, err := sc.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return PageInfo{}, err
	}
	var info PageInfo
	info.Title, info.HasTitle = sc.extractor.Title(html)
	info.Latest, info.HasChapter = sc.extractor.LatestChapter(html)
	if cover, ok := sc.extractor.CoverImage(html); ok {
		info.Cover = cover
	}
	return info, nil
}

// CheckAll probes every series sequentially, in list order, one round-trip at
// a time. Progress counts are monotonic; a failed fetch yields Found=false for
// that id and the batch continues.
func (sc *UpdateScanner) CheckAll(ctx context.Context, series []domain.Series, progress ProgressFunc) map[string]ScanOutcome {
	out := make(map[string]ScanOutcome, len(series))
	total := len(series)
	done := 0

	for _, s := range series {
		if progress != nil {
			progress(done, total, s.Title)
		}

		info, err := sc.Probe(ctx, s.SeriesURL)
		switch {
		case err != nil:
			sc.logger.Warn().Err(err).Str("series_id", s.ID).Msg("series page check failed")
			out[s.ID] = ScanOutcome{}
		case info.HasChapter:
			out[s.ID] = ScanOutcome{Latest: info.Latest, Found: true}
		default:
			out[s.ID] = ScanOutcome{}
		}

		done++
		if progress != nil {
			progress(done, total, s.Title)
		}
	}

	return out
}

// BuildScanSummary renders the human-readable result of a scan. Series whose
// probe failed are counted but never listed as "no change".
func BuildScanSummary(current []domain.Series, before map[string]int, outcomes map[string]ScanOutcome) string {
	var lines []string
	failed := 0

	for _, s := range current {
		outcome, ok := outcomes[s.ID]
		if !ok {
			continue
		}
		if !outcome.Found {
			failed++
			continue
		}
		prev, ok := before[s.ID]
		if !ok {
			prev = s.MaxChapter
		}
		if outcome.Latest > prev {
			lines = append(lines, fmt.Sprintf("%s: +%d (%d → %d)", s.Title, outcome.Latest-prev, prev, outcome.Latest))
		}
	}

	switch {
	case len(lines) > 0:
		return strings.Join(lines, "\n")
	case failed > 0:
		return "No updates (some series could not be checked)."
	default:
		return "No updates."
	}
}
