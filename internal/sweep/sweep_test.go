package sweep

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"greenhouse-backend/config"
	"greenhouse-backend/internal/metrics"
	"greenhouse-backend/internal/model"
	"greenhouse-backend/internal/notification"
	"greenhouse-backend/internal/store"
)

// Deduper caches run a janitor goroutine for the life of the process.
var ignoreCacheJanitor = goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run")

var testNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type mockLister struct {
	mu       sync.Mutex
	machines []model.Machine
	err      error
	calls    int
}

func (m *mockLister) ListMachines(_ context.Context, _ store.MachineFilter) ([]model.Machine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	out := make([]model.Machine, len(m.machines))
	copy(out, m.machines)
	return out, m.err
}

func (m *mockLister) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockDispatcher struct {
	mu      sync.Mutex
	notices []notification.Notice
	err     error
}

func (d *mockDispatcher) Dispatch(_ context.Context, n notification.Notice) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.notices = append(d.notices, n)
	return nil
}

func machineDueIn(id string, days int) model.Machine {
	return model.Machine{
		ID:                 id,
		Name:               id,
		Location:           model.LocationPolyTunnel01,
		LastRepairDate:     testNow.AddDate(0, 0, days-30),
		RepairIntervalDays: 30,
	}
}

func TestSweepOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	lister := &mockLister{machines: []model.Machine{
		machineDueIn("overdue", -3),
		machineDueIn("critical", 7),
		machineDueIn("warning", 8),
		machineDueIn("healthy", 45),
		{ID: "broken", Name: "broken", Location: model.LocationInventory},
	}}
	dispatcher := &mockDispatcher{}
	svc := NewService(config.SweepConfig{}, lister, dispatcher,
		WithClock(fixedClock{t: testNow}),
		WithDeduper(notification.NewDeduper(time.Hour)),
		WithMetrics(m))

	res, err := svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Machines: 5, DueSoon: 2, Dispatched: 2, Invalid: 1}, res)

	ids := []string{dispatcher.notices[0].MachineID, dispatcher.notices[1].MachineID}
	assert.ElementsMatch(t, []string{"overdue", "critical"}, ids)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MachinesByStatus.WithLabelValues("Overdue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MachinesByStatus.WithLabelValues("Healthy")))

	// A second sweep inside the window sends nothing new.
	res, err = svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Suppressed)
	assert.Equal(t, 0, res.Dispatched)
	assert.Len(t, dispatcher.notices, 2)
}

func TestSweepOnce_RepairResetsReminder(t *testing.T) {
	lister := &mockLister{machines: []model.Machine{machineDueIn("pump", 2)}}
	dispatcher := &mockDispatcher{}
	svc := NewService(config.SweepConfig{}, lister, dispatcher,
		WithClock(fixedClock{t: testNow}),
		WithDeduper(notification.NewDeduper(time.Hour)))

	_, err := svc.SweepOnce(context.Background())
	require.NoError(t, err)

	// Repaired but the new interval is short, so it is due soon again with a new date.
	lister.machines[0].LastRepairDate = testNow
	lister.machines[0].RepairIntervalDays = 5

	res, err := svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dispatched)
	assert.Len(t, dispatcher.notices, 2)
}

func TestSweepOnce_DispatchFailureIsRetried(t *testing.T) {
	lister := &mockLister{machines: []model.Machine{machineDueIn("pump", 1)}}
	dispatcher := &mockDispatcher{err: context.DeadlineExceeded}
	svc := NewService(config.SweepConfig{}, lister, dispatcher,
		WithClock(fixedClock{t: testNow}),
		WithDeduper(notification.NewDeduper(time.Hour)))

	_, err := svc.SweepOnce(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	dispatcher.err = nil
	res, err := svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dispatched)
}

func TestSweepOnce_ListError(t *testing.T) {
	lister := &mockLister{err: errors.New("db down")}
	svc := NewService(config.SweepConfig{}, lister, &mockDispatcher{})

	_, err := svc.SweepOnce(context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestSweepOnce_Empty(t *testing.T) {
	svc := NewService(config.SweepConfig{}, &mockLister{}, &mockDispatcher{})

	res, err := svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}

func TestRun_StopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreCacheJanitor)

	lister := &mockLister{}
	svc := NewService(config.SweepConfig{Enabled: true, Interval: 10 * time.Millisecond}, lister, &mockDispatcher{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return lister.Calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweep did not stop")
	}
}

func TestRun_Disabled(t *testing.T) {
	lister := &mockLister{}
	svc := NewService(config.SweepConfig{Enabled: false}, lister, &mockDispatcher{})
	svc.Run(context.Background())
	assert.Zero(t, lister.Calls())
}
