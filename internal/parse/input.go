// Package parse normalizes client input before it reaches the schedule code.
package parse

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"greenhouse-backend/internal/schedule"
)

var (
	ErrInvalidDate     = schedule.ErrInvalidDate
	ErrInvalidInterval = schedule.ErrInvalidInterval
	// ErrInvalidCost is returned when a cost item is not numeric.
	ErrInvalidCost = errors.New("invalid cost item")
)

// Layouts accepted by ParseDate, tried in order.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate reads a date sent by a client. Values without an offset are read in loc.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// ParseInterval converts a JSON number (or numeric string) into a repair interval in days.
func ParseInterval(n json.Number) (int, error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return 0, fmt.Errorf("%w: missing value", ErrInvalidInterval)
	}
	if days, err := strconv.Atoi(s); err == nil {
		if days <= 0 {
			return 0, fmt.Errorf("%w: %d is not positive", ErrInvalidInterval, days)
		}
		if days > schedule.MaxIntervalDays {
			return 0, fmt.Errorf("%w: %d exceeds %d days", ErrInvalidInterval, days, schedule.MaxIntervalDays)
		}
		return days, nil
	}
	// "14.0" is accepted, "14.5" and "NaN" are not.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f > schedule.MaxIntervalDays {
		return 0, fmt.Errorf("%w: %q", ErrInvalidInterval, s)
	}
	if f <= 0 {
		return 0, fmt.Errorf("%w: %q is not positive", ErrInvalidInterval, s)
	}
	return int(f), nil
}

// ParseCostItems converts numbers or numeric strings into cost values.
func ParseCostItems(items []json.Number) ([]float64, error) {
	costs := make([]float64, 0, len(items))
	for i, item := range items {
		s := strings.TrimSpace(item.String())
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w at index %d: %q", ErrInvalidCost, i, item.String())
		}
		costs = append(costs, f)
	}
	return costs, nil
}
