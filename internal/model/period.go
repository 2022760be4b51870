package model

import (
	"strconv"
	"strings"
	"time"
)

// spanishMonths maps the month abbreviations used in upstream period labels.
var spanishMonths = map[string]time.Month{
	"ene": time.January,
	"feb": time.February,
	"mar": time.March,
	"abr": time.April,
	"may": time.May,
	"jun": time.June,
	"jul": time.July,
	"ago": time.August,
	"sep": time.September,
	"set": time.September,
	"oct": time.October,
	"nov": time.November,
	"dic": time.December,
}

// ParsePeriod converts a period label into the first instant of that period (UTC).
// Accepted forms: YYYY-MM-DD, YYYY-MM, YYYY, "Ene.2024" and "02.Ene.24".
func ParsePeriod(label string) (time.Time, bool) {
	label = strings.TrimSpace(label)
	if label == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, label); err == nil {
			return t, true
		}
	}

	parts := strings.Split(label, ".")
	switch len(parts) {
	case 2: // Ene.2024
		m, ok := spanishMonths[strings.ToLower(parts[0])]
		if !ok {
			return time.Time{}, false
		}
		y, ok := parseYear(parts[1])
		if !ok {
			return time.Time{}, false
		}
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC), true
	case 3: // 02.Ene.24
		d, err := strconv.Atoi(parts[0])
		if err != nil || d < 1 || d > 31 {
			return time.Time{}, false
		}
		m, ok := spanishMonths[strings.ToLower(parts[1])]
		if !ok {
			return time.Time{}, false
		}
		y, ok := parseYear(parts[2])
		if !ok {
			return time.Time{}, false
		}
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func parseYear(s string) (int, bool) {
	y, err := strconv.Atoi(s)
	if err != nil || y < 0 {
		return 0, false
	}
	switch len(s) {
	case 2:
		return 2000 + y, true
	case 4:
		return y, true
	}
	return 0, false
}
