package domain

import "time"

// DayLayout is the layout of local calendar day strings.
const DayLayout = "2006-01-02"

// DateFromTime returns the WeightWithDate.Date value for t.
func DateFromTime(t time.Time) int64 {
	return t.UnixMilli()
}

// TimeFromDate is the inverse of DateFromTime. The result is in UTC.
func TimeFromDate(date int64) time.Time {
	return time.UnixMilli(date).UTC()
}

// LocalDay formats t as a calendar day in the local time zone.
func LocalDay(t time.Time) string {
	return t.In(time.Local).Format(DayLayout)
}

// LocalDayBounds returns the UTC half-open interval [start, end) covering
// the given local calendar day.
func LocalDayBounds(localDay string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(DayLayout, localDay, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start.UTC(), start.AddDate(0, 0, 1).UTC(), nil
}
