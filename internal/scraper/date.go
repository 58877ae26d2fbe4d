package scraper

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// germanLayouts are tried before the generic parser, which reads
// dot-separated dates month first.
var germanLayouts = []string{
	"2.1.2006 15:04",
	"2.1.2006, 15:04",
	"2.1.2006",
	"2.1.06",
}

var germanMonths = strings.NewReplacer(
	"Januar", "January",
	"Februar", "February",
	"März", "March",
	"Mai", "May",
	"Juni", "June",
	"Juli", "July",
	"Oktober", "October",
	"Dezember", "December",
)

// ParseDate parses a listing date in the location of now. Unparsable or
// empty text yields now.
func ParseDate(text string, now time.Time) time.Time {
	text = collapse(text)
	text = strings.TrimSpace(strings.TrimSuffix(text, "Uhr"))
	if text == "" {
		return now
	}
	loc := now.Location()

	for _, layout := range germanLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t
		}
	}

	// "15. März 2025" -> "15 March 2025"
	english := germanMonths.Replace(strings.ReplaceAll(text, ". ", " "))
	for _, candidate := range []string{text, english} {
		if t, err := dateparse.ParseIn(candidate, loc); err == nil {
			return t
		}
	}
	return now
}
