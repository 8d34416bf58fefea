package schedule

import (
	"time"

	"greenhouse-backend/internal/model"
)

// Status is a machine's schedule evaluated at a given instant.
type Status struct {
	NextRepairDate time.Time `json:"nextRepairDate"`
	RemainingDays  int       `json:"remainingDays"`
	Band           Band      `json:"status"`
}

// Evaluate computes the schedule for the given anchors at now.
func Evaluate(lastRepairDate time.Time, intervalDays int, now time.Time) (Status, error) {
	next, err := ComputeNextRepair(lastRepairDate, intervalDays)
	if err != nil {
		return Status{}, err
	}
	remaining := ComputeRemainingDays(next, now)
	return Status{
		NextRepairDate: next,
		RemainingDays:  remaining,
		Band:           Classify(remaining),
	}, nil
}

// Live evaluates m from its anchors at now, ignoring the stored snapshot.
func Live(m *model.Machine, now time.Time) (Status, error) {
	st, err := Evaluate(m.LastRepairDate, m.RepairIntervalDays, now)
	if err != nil {
		return Status{}, &ComputationError{MachineID: m.ID, Err: err}
	}
	return st, nil
}

// Recompute writes NextRepairDate and RemainingDays into m from its anchors.
// It must run before every write of a machine. On error m is left untouched.
func Recompute(m *model.Machine, now time.Time) error {
	st, err := Live(m, now)
	if err != nil {
		return err
	}
	m.NextRepairDate = st.NextRepairDate
	m.RemainingDays = st.RemainingDays
	return nil
}
