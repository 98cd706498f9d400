package source

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	ymdDash  = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`)
	dmyDash  = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)
	ymdSlash = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})$`)
	dmySlash = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
	digits   = regexp.MustCompile(`^\d+$`)
)

// minYear bounds what the generic parser may return. Anything earlier comes
// from input that was never a date, like "1/1" landing in year 0.
const minYear = 1900

// DateOrder is the component order a schema writes its dates in.
type DateOrder int

const (
	YMD DateOrder = iota
	DMY
)

// ReorderDate rewrites a day-month-year date ("05-03-2024") into
// year-month-day order ("2024-03-05"). Other input is returned trimmed.
func ReorderDate(s string) string {
	s = strings.TrimSpace(s)
	if m := dmyDash.FindStringSubmatch(s); m != nil {
		return m[3] + "-" + m[2] + "-" + m[1]
	}
	return s
}

// ParseDate resolves a cell into a calendar date at midnight UTC.
//
// The two canonical export formats (YYYY-MM-DD and DD-MM-YYYY) are tried
// first, then YYYY/MM/DD and DD/MM/YYYY, then a generic parser. A date that
// matches a pattern but does not exist (2024-02-30) is rejected rather than
// rolled into the next month. Bare numbers are never dates here, so Unix
// timestamps and serial numbers are rejected too.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	if m := ymdDash.FindStringSubmatch(s); m != nil {
		return buildDate(m[1], m[2], m[3])
	}
	if m := dmyDash.FindStringSubmatch(s); m != nil {
		return buildDate(m[3], m[2], m[1])
	}
	if m := ymdSlash.FindStringSubmatch(s); m != nil {
		return buildDate(m[1], m[2], m[3])
	}
	if m := dmySlash.FindStringSubmatch(s); m != nil {
		return buildDate(m[3], m[2], m[1])
	}

	if digits.MatchString(s) {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil || t.Year() < minYear {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
}

// buildDate constructs the date and checks it round-trips, since time.Date
// normalizes out-of-range days instead of failing.
func buildDate(ys, ms, ds string) (time.Time, bool) {
	y, err1 := strconv.Atoi(ys)
	m, err2 := strconv.Atoi(ms)
	d, err3 := strconv.Atoi(ds)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}
