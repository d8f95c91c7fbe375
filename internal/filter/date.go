package filter

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05"
)

// Style selects how a bare "m" is read: search results use it for months,
// the social feed uses it for minutes.
type Style int

const (
	StyleSearch Style = iota
	StyleFeed
)

var (
	relativeRegex = regexp.MustCompile(`(\d+)\+?\s*(minutes?|mins?|months?|mo|hours?|hrs?|h|days?|d|weeks?|w|m)\b`)
	isoDateRegex  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

var unknownPosted = map[string]bool{
	"":                  true,
	"n/a":               true,
	"na":                true,
	"none":              true,
	"unknown":           true,
	"failed to extract": true,
}

// EstimatePostedDate turns a relative age such as "3 days ago", "5h" or
// "2mo" into a YYYY-MM-DD date counted back from scraped. Anything it cannot
// read falls back to the scraped date, so the result is always a valid date.
func EstimatePostedDate(posted string, scraped time.Time, style Style) string {
	text := strings.ToLower(strings.TrimSpace(posted))
	if unknownPosted[text] {
		return scraped.Format(DateLayout)
	}

	//already absolute
	if isoDateRegex.MatchString(text) {
		if d, err := time.Parse(DateLayout, text[:10]); err == nil {
			return d.Format(DateLayout)
		}
	}

	match := relativeRegex.FindStringSubmatch(text)
	if match == nil {
		return scraped.Format(DateLayout)
	}
	amount, err := strconv.Atoi(match[1])
	if err != nil {
		return scraped.Format(DateLayout)
	}

	var offset time.Duration
	switch unit := match[2]; {
	case strings.HasPrefix(unit, "min"):
		offset = time.Duration(amount) * time.Minute
	case strings.HasPrefix(unit, "mo"):
		offset = time.Duration(amount) * 30 * 24 * time.Hour
	case unit == "m":
		if style == StyleFeed {
			offset = time.Duration(amount) * time.Minute
		} else {
			offset = time.Duration(amount) * 30 * 24 * time.Hour
		}
	case strings.HasPrefix(unit, "h"):
		offset = time.Duration(amount) * time.Hour
	case strings.HasPrefix(unit, "d"):
		offset = time.Duration(amount) * 24 * time.Hour
	case strings.HasPrefix(unit, "w"):
		offset = time.Duration(amount) * 7 * 24 * time.Hour
	default:
		return scraped.Format(DateLayout)
	}

	return scraped.Add(-offset).Format(DateLayout)
}
