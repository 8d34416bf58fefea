// Package schedule derives repair dates and status bands for machines.
package schedule

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// MaxIntervalDays bounds repair intervals to a hundred years so derived dates
// stay inside the range RFC 3339 can represent.
const MaxIntervalDays = 36500

// ComputeNextRepair adds intervalDays calendar days to lastRepairDate. The wall
// clock time and location of lastRepairDate are kept as they are.
func ComputeNextRepair(lastRepairDate time.Time, intervalDays int) (time.Time, error) {
	if intervalDays <= 0 {
		return time.Time{}, fmt.Errorf("%w: %d", ErrInvalidInterval, intervalDays)
	}
	if intervalDays > MaxIntervalDays {
		return time.Time{}, fmt.Errorf("%w: %d exceeds %d days", ErrInvalidInterval, intervalDays, MaxIntervalDays)
	}
	if lastRepairDate.IsZero() {
		return time.Time{}, fmt.Errorf("%w: last repair date is not set", ErrInvalidDate)
	}
	return lastRepairDate.AddDate(0, 0, intervalDays), nil
}

// ComputeRemainingDays returns ceil((nextRepairDate - now) / 24h). Negative values
// mean the repair is overdue.
func ComputeRemainingDays(nextRepairDate, now time.Time) int {
	d := nextRepairDate.Sub(now)
	days := d / day
	// Integer division truncates toward zero, which is already the ceiling for
	// negative durations.
	if d%day > 0 {
		days++
	}
	return int(days)
}
