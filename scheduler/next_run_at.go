package scheduler

import "time"

// TargetMonth is the calendar month (1..12) of at, shifted by offset months, in loc.
// An offset of -1 on June 1st yields 5.
func TargetMonth(at time.Time, offset int, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)
	first := time.Date(local.Year(), local.Month()+time.Month(offset), 1, 0, 0, 0, 0, loc)
	return int(first.Month())
}

// NextRunAt reports the next slot of a cron expression after "after".
func NextRunAt(cron string, after time.Time, loc *time.Location) (time.Time, error) {
	expr, err := parseCronExpr(cron, loc)
	if err != nil {
		return time.Time{}, err
	}
	return expr.next(after)
}
