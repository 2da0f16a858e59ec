package metadata

import (
	"strings"
	"time"
)

// Providers report dates at mixed granularity; partial dates pad to the
// first month or day.
var publishedDateLayouts = []string{
	"2006-1-2", // 2003-07-14
	"2006-1",   // 2003-07
	"1/2006",   // 07/2003
	"2006",     // 2003
	"2/1/2006", // 14/07/2003
}

// ParsePublishedDate parses a provider's published date. It reports false
// when no known layout matches and never returns an error.
func ParsePublishedDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range publishedDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
