package schedule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenhouse-backend/internal/model"
)

func TestEvaluate_Examples(t *testing.T) {
	last := date(2025, 1, 1)

	st, err := Evaluate(last, 10, date(2025, 1, 8))
	require.NoError(t, err)
	assert.True(t, date(2025, 1, 11).Equal(st.NextRepairDate))
	assert.Equal(t, 3, st.RemainingDays)
	assert.Equal(t, BandCritical, st.Band)

	st, err = Evaluate(last, 10, date(2025, 1, 12))
	require.NoError(t, err)
	assert.Equal(t, -1, st.RemainingDays)
	assert.Equal(t, BandOverdue, st.Band)
}

func TestRecompute_IsIdempotent(t *testing.T) {
	now := date(2025, 1, 8)
	m := &model.Machine{ID: "m-1", LastRepairDate: date(2025, 1, 1), RepairIntervalDays: 10}

	require.NoError(t, Recompute(m, now))
	first := *m
	require.NoError(t, Recompute(m, now))

	assert.Equal(t, first.NextRepairDate, m.NextRepairDate)
	assert.Equal(t, first.RemainingDays, m.RemainingDays)
}

func TestRecompute_RepairResetsBand(t *testing.T) {
	now := date(2025, 3, 1)
	m := &model.Machine{ID: "m-2", LastRepairDate: date(2025, 1, 1), RepairIntervalDays: 30}

	require.NoError(t, Recompute(m, now))
	assert.Equal(t, BandOverdue, Classify(m.RemainingDays))

	// A repair was just logged.
	m.LastRepairDate = now
	require.NoError(t, Recompute(m, now))
	assert.Equal(t, 30, m.RemainingDays)
	assert.Equal(t, BandWarning, Classify(m.RemainingDays))
	assert.True(t, date(2025, 3, 31).Equal(m.NextRepairDate))
}

func TestRecompute_InvalidAnchors(t *testing.T) {
	now := date(2025, 1, 8)
	stale := date(2024, 12, 31)

	testCases := []struct {
		name    string
		machine model.Machine
		cause   error
	}{
		{
			name:    "Zero interval",
			machine: model.Machine{ID: "a", LastRepairDate: date(2025, 1, 1), RepairIntervalDays: 0},
			cause:   ErrInvalidInterval,
		},
		{
			name:    "Negative interval",
			machine: model.Machine{ID: "b", LastRepairDate: date(2025, 1, 1), RepairIntervalDays: -2},
			cause:   ErrInvalidInterval,
		},
		{
			name:    "Missing last repair date",
			machine: model.Machine{ID: "c", RepairIntervalDays: 10},
			cause:   ErrInvalidDate,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := tc.machine
			m.NextRepairDate = stale
			m.RemainingDays = 42

			err := Recompute(&m, now)

			var compErr *ComputationError
			require.True(t, errors.As(err, &compErr))
			assert.Equal(t, tc.machine.ID, compErr.MachineID)
			assert.ErrorIs(t, err, tc.cause)
			assert.Equal(t, stale, m.NextRepairDate, "derived fields must be left alone")
			assert.Equal(t, 42, m.RemainingDays)
		})
	}
}

func TestLive_IgnoresStoredSnapshot(t *testing.T) {
	m := &model.Machine{
		LastRepairDate:     date(2025, 1, 1),
		RepairIntervalDays: 10,
		NextRepairDate:     date(2025, 1, 11),
		RemainingDays:      9, // written on 2025-01-02
	}

	st, err := Live(m, date(2025, 1, 12))
	require.NoError(t, err)
	assert.Equal(t, -1, st.RemainingDays)
	assert.Equal(t, BandOverdue, st.Band)
}
