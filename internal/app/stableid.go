package app

import (
	"hash/fnv"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var idSanitizer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StableSeriesID derives the library id for a series from its page URL.
// The slug after "/series/" is folded to ASCII and stripped to [A-Za-z0-9_-];
// a trailing slash never changes the result. URLs without a usable slug fall
// back to a hash-derived token so the id stays stable across calls.
func StableSeriesID(seriesURL string) string {
	lower := strings.ToLower(seriesURL)
	if idx := strings.Index(lower, "/series/"); idx >= 0 {
		after := seriesURL[idx+len("/series/"):]
		slug := strings.Trim(after, "/")
		if cut := strings.IndexByte(slug, '/'); cut >= 0 {
			slug = slug[:cut]
		}
		if folded, _, err := transform.String(idSanitizer, slug); err == nil {
			slug = folded
		}
		cleaned := strings.Map(func(r rune) rune {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
				return r
			}
			return -1
		}, slug)
		if cleaned != "" {
			return cleaned
		}
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.TrimRight(seriesURL, "/")))
	return "s_" + strconv.FormatUint(uint64(h.Sum32()), 10)
}
