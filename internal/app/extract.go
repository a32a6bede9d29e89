package app

import (
	"regexp"
	"strconv"
	"strings"
)

// Extractor pulls series metadata out of a fetched page. All three lookups are
// best-effort: absence is a normal outcome and callers substitute fallbacks.
// The interface exists so a structured parser can replace the pattern matcher
// without touching the scanner or the seeding path.
type Extractor interface {
	// LatestChapter returns the highest chapter number linked anywhere on the
	// page, or false when no chapter link is present.
	LatestChapter(html string) (int, bool)
	// Title returns the page title with known site-name suffixes stripped.
	Title(html string) (string, bool)
	// CoverImage returns the Open Graph image, falling back to the Twitter
	// card image.
	CoverImage(html string) (string, bool)
}

var (
	reChapterPath  = regexp.MustCompile(`(?i)/chapter/(\d+)\b`)
	reTitleTag     = regexp.MustCompile(`(?is)<title>\s*(.*?)\s*</title>`)
	reWhitespace   = regexp.MustCompile(`\s+`)
	reOGImage      = regexp.MustCompile(`(?i)<meta[^>]+property=["']og:image["'][^>]+content=["']([^"']+)["']`)
	reTwitterImage = regexp.MustCompile(`(?i)<meta[^>]+name=["']twitter:image["'][^>]+content=["']([^"']+)["']`)
)

// PatternExtractor scans raw markup with regular expressions instead of
// parsing a DOM. The target pages reshuffle their markup often enough that
// substring tolerance beats structure.
type PatternExtractor struct {
	// TitleSuffixes are site-name decorations removed from page titles,
	// matched case-insensitively as exact suffixes.
	TitleSuffixes []string
}

func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{
		TitleSuffixes: []string{" | Asura Scans", " - Asura Scans"},
	}
}

func (e *PatternExtractor) LatestChapter(html string) (int, bool) {
	max := 0
	found := false
	for _, m := range reChapterPath.FindAllStringSubmatch(html, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if !found || n > max {
			max = n
			found = true
		}
	}
	return max, found
}

func (e *PatternExtractor) Title(html string) (string, bool) {
	m := reTitleTag.FindStringSubmatch(html)
	if m == nil {
		return "", false
	}
	title := strings.TrimSpace(reWhitespace.ReplaceAllString(m[1], " "))
	for _, suffix := range e.TitleSuffixes {
		if len(title) >= len(suffix) && strings.EqualFold(title[len(title)-len(suffix):], suffix) {
			title = strings.TrimSpace(title[:len(title)-len(suffix)])
		}
	}
	if title == "" {
		return "", false
	}
	return title, true
}

func (e *PatternExtractor) CoverImage(html string) (string, bool) {
	if m := reOGImage.FindStringSubmatch(html); m != nil {
		if u := strings.TrimSpace(m[1]); u != "" {
			return u, true
		}
	}
	if m := reTwitterImage.FindStringSubmatch(html); m != nil {
		if u := strings.TrimSpace(m[1]); u != "" {
			return u, true
		}
	}
	return "", false
}
