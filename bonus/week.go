/*
week.go - Calendar day to week bucket mapping

PURPOSE:
  Maps a day-of-month onto one of five fixed weekly buckets and detects
  whether a given date is the closing day of its bucket. The closing-day
  predicate is the trigger condition for the scheduled sweep and for any
  manual close-out action.

BUCKET LAYOUT:
  Week 1: days  1-7
  Week 2: days  8-15
  Week 3: days 16-22
  Week 4: days 23-29
  Week 5: days 30-31 (1-2 days; absent entirely in February)

CLOSING DAYS:
  Day 7, 15, 22, 29, and the final calendar day of the month. The final-day
  rule covers short week 5s and February, where week 4 closes the month.

SEE ALSO:
  - sync.go: the sweep uses ClosingDay to pick the bucket to sync
  - aggregate.go: BucketRange bounds the contribution query
*/
package bonus

import (
	"fmt"
	"time"
)

// WeeksPerMonth is the number of fixed weekly buckets in any month.
const WeeksPerMonth = 5

// WeekOf maps a day-of-month to its week bucket (1-5).
func WeekOf(day int) (int, error) {
	if day < 1 || day > 31 {
		return 0, &InputError{Field: "day", Message: fmt.Sprintf("day %d outside 1-31", day)}
	}
	switch {
	case day <= 7:
		return 1, nil
	case day <= 15:
		return 2, nil
	case day <= 22:
		return 3, nil
	case day <= 29:
		return 4, nil
	default:
		return 5, nil
	}
}

// ClosingDay reports whether date is the closing day of its week bucket,
// along with the bucket number. True exactly on days 7, 15, 22, 29 and on
// the final calendar day of the month.
func ClosingDay(date time.Time) (bool, int) {
	day := date.Day()
	week, _ := WeekOf(day)

	switch day {
	case 7, 15, 22, 29:
		return true, week
	}
	if day == daysInMonth(date.Year(), date.Month()) {
		return true, week
	}
	return false, week
}

// BucketFor returns the bucket containing the given date.
func BucketFor(branchID BranchID, date time.Time) Bucket {
	week, _ := WeekOf(date.Day())
	return Bucket{
		BranchID: branchID,
		Year:     date.Year(),
		Month:    date.Month(),
		Week:     week,
	}
}

// BucketRange returns the inclusive [from, to] day span of a bucket,
// clipped to the month's length. For week 5 in a month with fewer than 30
// days the range is empty and ok is false.
func BucketRange(year int, month time.Month, week int) (from, to time.Time, ok bool) {
	var firstDay, lastDay int
	switch week {
	case 1:
		firstDay, lastDay = 1, 7
	case 2:
		firstDay, lastDay = 8, 15
	case 3:
		firstDay, lastDay = 16, 22
	case 4:
		firstDay, lastDay = 23, 29
	case 5:
		firstDay, lastDay = 30, 31
	default:
		return time.Time{}, time.Time{}, false
	}

	last := daysInMonth(year, month)
	if firstDay > last {
		return time.Time{}, time.Time{}, false
	}
	if lastDay > last {
		lastDay = last
	}

	from = time.Date(year, month, firstDay, 0, 0, 0, 0, time.UTC)
	to = time.Date(year, month, lastDay, 0, 0, 0, 0, time.UTC)
	return from, to, true
}

func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Day truncates a time to day granularity in UTC. Revenue dates are always
// stored at day granularity.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
