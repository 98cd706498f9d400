package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/theirongolddev/adpulse/internal/model"
)

const dayLayout = "2006-01-02"

// BucketKey returns the calendar bucket a date falls into:
// day "2024-03-05", week "2024-10" (ISO year and week, unpadded),
// month "2024-3", quarter "2024-Q1", year "2024".
func BucketKey(t time.Time, g model.Granularity) string {
	switch g {
	case model.Day:
		return t.Format(dayLayout)
	case model.Week:
		y, w := t.ISOWeek()
		return fmt.Sprintf("%d-%d", y, w)
	case model.Quarter:
		return fmt.Sprintf("%d-Q%d", t.Year(), (int(t.Month())-1)/3+1)
	case model.Year:
		return strconv.Itoa(t.Year())
	default:
		return fmt.Sprintf("%d-%d", t.Year(), int(t.Month()))
	}
}

// ISOWeeksInYear returns 52 or 53. December 28 always lies in the last ISO
// week of its year.
func ISOWeeksInYear(year int) int {
	_, w := time.Date(year, time.December, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return w
}

// PeriodKey is a parsed bucket key. Sub is the week, month or quarter
// number; Date is set for day keys only.
type PeriodKey struct {
	Granularity model.Granularity
	Year        int
	Sub         int
	Date        time.Time
}

// ParseKey parses a bucket key produced by BucketKey.
func ParseKey(key string, g model.Granularity) (PeriodKey, error) {
	pk := PeriodKey{Granularity: g}
	switch g {
	case model.Day:
		t, err := time.Parse(dayLayout, key)
		if err != nil {
			return pk, fmt.Errorf("parsing day key %q: %w", key, err)
		}
		pk.Date = t
		pk.Year = t.Year()
		return pk, nil
	case model.Year:
		y, err := strconv.Atoi(key)
		if err != nil {
			return pk, fmt.Errorf("parsing year key %q: %w", key, err)
		}
		pk.Year = y
		return pk, nil
	}

	ys, sub, ok := strings.Cut(key, "-")
	if !ok {
		return pk, fmt.Errorf("malformed %s key %q", g, key)
	}
	if g == model.Quarter {
		if !strings.HasPrefix(sub, "Q") {
			return pk, fmt.Errorf("malformed quarter key %q", key)
		}
		sub = sub[1:]
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return pk, fmt.Errorf("parsing %s key %q: %w", g, key, err)
	}
	n, err := strconv.Atoi(sub)
	if err != nil {
		return pk, fmt.Errorf("parsing %s key %q: %w", g, key, err)
	}

	limit := 12
	switch g {
	case model.Week:
		limit = 53
	case model.Quarter:
		limit = 4
	}
	if n < 1 || n > limit {
		return pk, fmt.Errorf("%s key %q out of range", g, key)
	}
	pk.Year, pk.Sub = y, n
	return pk, nil
}

// String formats the key the way BucketKey does.
func (k PeriodKey) String() string {
	switch k.Granularity {
	case model.Day:
		return k.Date.Format(dayLayout)
	case model.Quarter:
		return fmt.Sprintf("%d-Q%d", k.Year, k.Sub)
	case model.Year:
		return strconv.Itoa(k.Year)
	default:
		return fmt.Sprintf("%d-%d", k.Year, k.Sub)
	}
}

// Before orders keys of the same granularity chronologically.
func (k PeriodKey) Before(o PeriodKey) bool {
	if k.Granularity == model.Day {
		return k.Date.Before(o.Date)
	}
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Sub < o.Sub
}

// Predecessor returns the key of the period immediately before key. Week 1
// wraps to the last ISO week of the prior year, Q1 to Q4 and January to
// December.
func Predecessor(key string, g model.Granularity) (string, error) {
	k, err := ParseKey(key, g)
	if err != nil {
		return "", err
	}
	switch g {
	case model.Day:
		k.Date = k.Date.AddDate(0, 0, -1)
	case model.Year:
		k.Year--
	default:
		if k.Sub > 1 {
			k.Sub--
			break
		}
		k.Year--
		switch g {
		case model.Week:
			k.Sub = ISOWeeksInYear(k.Year)
		case model.Quarter:
			k.Sub = 4
		default:
			k.Sub = 12
		}
	}
	return k.String(), nil
}

// SamePeriodLastYear returns the key with the same sub-period one year
// earlier. February 29 maps to February 28. Week 53 keeps its number even
// when the prior year only has 52 weeks, so its lookup finds nothing.
func SamePeriodLastYear(key string, g model.Granularity) (string, error) {
	k, err := ParseKey(key, g)
	if err != nil {
		return "", err
	}
	if g == model.Day {
		d := k.Date
		day := d.Day()
		if d.Month() == time.February && day == 29 {
			day = 28
		}
		k.Date = time.Date(d.Year()-1, d.Month(), day, 0, 0, 0, 0, time.UTC)
		return k.String(), nil
	}
	k.Year--
	return k.String(), nil
}

// KeyLess returns a chronological less function for keys of granularity g.
// Keys that fail to parse sort after valid ones, by plain string order.
func KeyLess(g model.Granularity) func(a, b string) bool {
	if g == model.Day {
		return func(a, b string) bool { return a < b }
	}
	return func(a, b string) bool {
		ka, errA := ParseKey(a, g)
		kb, errB := ParseKey(b, g)
		switch {
		case errA != nil && errB != nil:
			return a < b
		case errA != nil:
			return false
		case errB != nil:
			return true
		}
		return ka.Before(kb)
	}
}

// SortBuckets orders buckets chronologically, oldest first unless desc.
func SortBuckets(buckets []model.Bucket, g model.Granularity, desc bool) {
	less := KeyLess(g)
	sort.SliceStable(buckets, func(i, j int) bool {
		if desc {
			return less(buckets[j].Key, buckets[i].Key)
		}
		return less(buckets[i].Key, buckets[j].Key)
	})
}
