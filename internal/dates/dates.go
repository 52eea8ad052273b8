// Package dates converts the portal's d.m.yyyy. dates into Unix timestamps.
package dates

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bs3vcenk/Netrix-sub000/pkg/errors"
)

// Parse converts s to the Unix timestamp of local midnight on that date.
func Parse(s string) (int64, error) {
	return ParseIn(s, time.Local)
}

// ParseIn converts s to the Unix timestamp of midnight in loc. Leading and
// trailing whitespace and the trailing dot are ignored.
func ParseIn(s string, loc *time.Location) (int64, error) {
	t, err := ParseTime(s, loc)
	if err != nil {
		return 0, err
	}
	return t.Unix(), nil
}

func ParseTime(s string, loc *time.Location) (time.Time, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) < 3 {
		return time.Time{}, parseError(s, fmt.Errorf("expected day.month.year"))
	}

	var fields [3]int
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return time.Time{}, parseError(s, err)
		}
		fields[i] = n
	}
	day, month, year := fields[0], fields[1], fields[2]

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if t.Day() != day || int(t.Month()) != month || t.Year() != year {
		return time.Time{}, parseError(s, fmt.Errorf("date out of range"))
	}

	return t, nil
}

// Format renders ts in the portal's d.m.yyyy. notation.
func Format(ts int64, loc *time.Location) string {
	t := time.Unix(ts, 0).In(loc)
	return fmt.Sprintf("%d.%d.%d.", t.Day(), int(t.Month()), t.Year())
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func parseError(s string, err error) error {
	return &errors.ParseError{Kind: "date", Field: "date", Snippet: errors.Truncate(s, 32), Err: err}
}
