package lifecycle

import "time"

// ParseDate parses a calendar day in DateFormat.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateFormat, s)
}

// AddDays shifts a calendar-day string by n days. Invalid input is
// returned unchanged.
func AddDays(date string, n int) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, n).Format(DateFormat)
}

// DatesBetween returns every calendar date in [start, end] inclusive.
// Returns nil when either bound is invalid or start is after end.
func DatesBetween(start, end string) []string {
	from, err := ParseDate(start)
	if err != nil {
		return nil
	}
	to, err := ParseDate(end)
	if err != nil {
		return nil
	}
	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(DateFormat))
	}
	return dates
}
