package collector

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var (
	yearMonthRe = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
	fullDateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// NormalizeRange converts request bounds into the YYYY-MM-DD form upstream expects.
// A year-month start expands to the first day of the month and a year-month end
// to its calendar last day. Empty bounds pass through.
func NormalizeRange(from, to string) (string, string, error) {
	f, err := normalizeBound(from, false)
	if err != nil {
		return "", "", fmt.Errorf("fechaInicio: %w", err)
	}
	t, err := normalizeBound(to, true)
	if err != nil {
		return "", "", fmt.Errorf("fechaFin: %w", err)
	}
	return f, t, nil
}

func normalizeBound(s string, end bool) (string, error) {
	if s == "" {
		return "", nil
	}
	if fullDateRe.MatchString(s) {
		if _, err := time.Parse("2006-01-02", s); err != nil {
			return "", fmt.Errorf("%w %q", ErrInvalidDate, s)
		}
		return s, nil
	}
	m := yearMonthRe.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("%w %q (want YYYY-MM or YYYY-MM-DD)", ErrInvalidDate, s)
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: month out of range in %q", ErrInvalidDate, s)
	}
	day := 1
	if end {
		// day 0 of the next month is the last day of this one
		day = time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), nil
}
