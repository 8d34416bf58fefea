package schedule

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInterval means the repair interval is not a positive whole number of days.
	ErrInvalidInterval = errors.New("invalid interval")
	// ErrInvalidDate means the last repair date is missing or not a valid instant.
	ErrInvalidDate = errors.New("invalid date")
)

// ComputationError is returned when a machine's derived schedule fields cannot be
// computed from its anchors. A write that hits it must not be persisted.
type ComputationError struct {
	MachineID string
	Err       error
}

func (e *ComputationError) Error() string {
	if e.MachineID == "" {
		return fmt.Sprintf("schedule computation failed: %v", e.Err)
	}
	return fmt.Sprintf("schedule computation failed for machine %s: %v", e.MachineID, e.Err)
}

func (e *ComputationError) Unwrap() error {
	return e.Err
}
