package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"greenhouse-backend/config"
	"greenhouse-backend/internal/api"
	"greenhouse-backend/internal/db"
	"greenhouse-backend/internal/metrics"
	"greenhouse-backend/internal/notification"
	"greenhouse-backend/internal/store"
	"greenhouse-backend/internal/sweep"
)

type movableClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *movableClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *movableClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingChannel struct {
	mu      sync.Mutex
	notices []notification.Notice
}

func (r *recordingChannel) Name() string { return "recording" }

func (r *recordingChannel) Send(_ context.Context, n notification.Notice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
	return nil
}

func (r *recordingChannel) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notices)
}

// TestMachineLifecycle drives a machine through creation, drifting into the
// due-soon window, a sweep notice, and a repair that resets its band.
func TestMachineLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
	gin.SetMode(gin.TestMode)

	gormDB, err := db.Init(&config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}, zap.NewNop())
	require.NoError(t, err)
	sqlDB, _ := gormDB.DB()
	defer sqlDB.Close()

	clock := &movableClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	appStore := store.NewGormStore(gormDB, store.WithClock(clock), store.WithMetrics(m))

	channel := &recordingChannel{}
	deduper := notification.NewDeduper(24 * time.Hour)
	pool := notification.NewWorkerPool(2, channel, deduper, m, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	defer func() {
		cancel()
		pool.Wait()
	}()

	sweepSvc := sweep.NewService(config.SweepConfig{}, appStore, pool,
		sweep.WithClock(clock), sweep.WithDeduper(deduper), sweep.WithMetrics(m))
	router := api.NewRouter(api.NewHandler(appStore, api.WithClock(clock)), api.RouterConfig{RateLimitPerSec: 100, RateLimitBurst: 100})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req, _ := http.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}
	type machineView struct {
		ID            string `json:"id"`
		RemainingDays int    `json:"remainingDays"`
		Status        string `json:"status"`
	}
	view := func(w *httptest.ResponseRecorder) machineView {
		var v machineView
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
		return v
	}

	// 1. Created 20 days after its last repair on a 30 day interval.
	w := do(http.MethodPost, "/api/machines", `{
		"name": "Tunnel 2 irrigation pump",
		"location": "poly_tunnel_02",
		"lastRepairDate": "2024-04-11T09:00:00Z",
		"repairIntervalDays": 30,
		"parts": ["impeller", "seal kit"]
	}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := view(w)
	assert.Equal(t, 10, created.RemainingDays)
	assert.Equal(t, "Warning", created.Status)

	res, err := sweepSvc.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.DueSoon)

	// 2. Five days later the live status is Critical without any write.
	clock.Advance(5 * 24 * time.Hour)
	got := view(do(http.MethodGet, "/api/machines/"+created.ID, ""))
	assert.Equal(t, 5, got.RemainingDays)
	assert.Equal(t, "Critical", got.Status)

	stored, err := appStore.GetMachine(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.RemainingDays, "snapshot only changes on write")

	// 3. The sweep queues exactly one notice, however often it runs.
	res, err = sweepSvc.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dispatched)
	res, err = sweepSvc.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Suppressed)

	require.Eventually(t, func() bool { return channel.Count() == 1 }, time.Second, 10*time.Millisecond)
	channel.mu.Lock()
	n := channel.notices[0]
	channel.mu.Unlock()
	assert.Equal(t, created.ID, n.MachineID)
	assert.Equal(t, "[Critical] Tunnel 2 irrigation pump repair due in 5 day(s)", n.Subject)
	assert.Contains(t, n.Body, "impeller, seal kit")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MachinesByStatus.WithLabelValues("Critical")))

	// 4. Recording a repair today moves it back to Warning with a fresh snapshot.
	w = do(http.MethodPatch, "/api/machines/"+created.ID, `{"lastRepairDate": "2024-05-06T09:00:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	repaired := view(w)
	assert.Equal(t, 30, repaired.RemainingDays)
	assert.Equal(t, "Warning", repaired.Status)

	stored, err = appStore.GetMachine(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, stored.RemainingDays)
	assert.True(t, stored.NextRepairDate.Equal(time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC)))

	res, err = sweepSvc.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.DueSoon)
	assert.Equal(t, 1, channel.Count())

	// 5. An invalid interval is rejected and nothing changes.
	w = do(http.MethodPatch, "/api/machines/"+created.ID, `{"repairIntervalDays": 0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	stored, err = appStore.GetMachine(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, stored.RepairIntervalDays)
}
