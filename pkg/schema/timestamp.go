package schema

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultTimestampLayouts are tried in order. time.Parse accepts a
// fractional second after the seconds field even when the layout omits it.
var DefaultTimestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"01/02/2006 03:04:05 PM",
	"01/02/2006 15:04",
	"2006-01-02",
}

var unixPattern = regexp.MustCompile(`^\d{10}(\d{3})?$`)

// TimestampParser parses datetime text leniently. Values it cannot read
// are reported as missing rather than as errors.
type TimestampParser struct {
	layouts []string
}

// NewTimestampParser returns a parser trying extra layouts before the
// defaults.
func NewTimestampParser(extra ...string) *TimestampParser {
	layouts := make([]string, 0, len(extra)+len(DefaultTimestampLayouts))
	for _, l := range extra {
		if l = strings.TrimSpace(l); l != "" {
			layouts = append(layouts, l)
		}
	}
	return &TimestampParser{layouts: append(layouts, DefaultTimestampLayouts...)}
}

// Parse reads s as a wall-clock time. Zoned input is normalized to UTC;
// bare epoch seconds or milliseconds are accepted too.
func (p *TimestampParser) Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range p.layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if unixPattern.MatchString(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		if len(s) == 13 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}
