// Package sweep periodically re-evaluates every machine and dispatches
// due-soon notices.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"greenhouse-backend/config"
	"greenhouse-backend/internal/metrics"
	"greenhouse-backend/internal/model"
	"greenhouse-backend/internal/notification"
	"greenhouse-backend/internal/report"
	"greenhouse-backend/internal/schedule"
	"greenhouse-backend/internal/store"
)

// MachineLister is the slice of store.Store the sweep reads from.
type MachineLister interface {
	ListMachines(ctx context.Context, filter store.MachineFilter) ([]model.Machine, error)
}

// Dispatcher queues a notice for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, n notification.Notice) error
}

// Result summarizes one sweep.
type Result struct {
	Machines   int
	DueSoon    int
	Dispatched int
	Suppressed int
	Invalid    int
}

// Service orchestrates the periodic maintenance sweep.
type Service struct {
	cfg        config.SweepConfig
	machines   MachineLister
	dispatcher Dispatcher
	builder    *notification.Builder
	deduper    *notification.Deduper
	metrics    *metrics.Metrics
	clock      store.Clock
	logger     *zap.Logger
}

// Option configures the service.
type Option func(*Service)

func WithBuilder(b *notification.Builder) Option {
	return func(s *Service) {
		if b != nil {
			s.builder = b
		}
	}
}

// WithDeduper suppresses repeat notices inside the deduper's window.
func WithDeduper(d *notification.Deduper) Option {
	return func(s *Service) { s.deduper = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(c store.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

type utcClock struct{}

func (utcClock) Now() time.Time { return time.Now().UTC() }

// NewService creates a sweep service.
func NewService(cfg config.SweepConfig, machines MachineLister, dispatcher Dispatcher, opts ...Option) *Service {
	builder, _ := notification.NewBuilder("")
	s := &Service{
		cfg:        cfg,
		machines:   machines,
		dispatcher: dispatcher,
		builder:    builder,
		clock:      utcClock{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run sweeps immediately and then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("sweep is disabled, not starting")
		return
	}
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	s.logger.Info("starting sweep service", zap.Duration("interval", interval))

	s.runOnce(ctx)

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweep service shutting down")
			return
		case <-timer.C:
			s.runOnce(ctx)
			timer.Reset(interval)
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	res, err := s.SweepOnce(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("sweep failed", zap.Error(err))
		return
	}
	s.logger.Info("sweep finished",
		zap.Int("machines", res.Machines),
		zap.Int("due_soon", res.DueSoon),
		zap.Int("dispatched", res.Dispatched),
		zap.Int("suppressed", res.Suppressed),
		zap.Int("invalid", res.Invalid))
}

// SweepOnce evaluates every machine at the current time, refreshes the status
// gauges and queues a notice for each due-soon machine not already notified
// inside the reminder window.
func (s *Service) SweepOnce(ctx context.Context) (Result, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveSweep(time.Since(start)) }()

	machines, err := s.machines.ListMachines(ctx, store.MachineFilter{})
	if err != nil {
		return Result{}, fmt.Errorf("list machines: %w", err)
	}

	now := s.clock.Now()
	res := Result{Machines: len(machines)}

	counts := make(map[string]int, len(schedule.Bands))
	for band, n := range report.SummarizeByStatus(machines, now) {
		counts[string(band)] = n
	}
	s.metrics.SetStatusCounts(counts)

	for i := range machines {
		m := &machines[i]
		n, err := s.builder.Build(m, now)
		var compErr *schedule.ComputationError
		switch {
		case errors.Is(err, notification.ErrNotDueSoon):
			continue
		case errors.As(err, &compErr):
			res.Invalid++
			s.logger.Warn("skipping machine with invalid schedule",
				zap.String("machine_id", m.ID), zap.Error(err))
			continue
		case err != nil:
			return res, err
		}

		res.DueSoon++
		if s.deduper != nil && !s.deduper.Allow(n) {
			res.Suppressed++
			s.metrics.ObserveNotice("dedupe", metrics.ResultSkipped)
			continue
		}
		if err := s.dispatcher.Dispatch(ctx, n); err != nil {
			if s.deduper != nil {
				s.deduper.Forget(n)
			}
			return res, fmt.Errorf("dispatch notice for machine %s: %w", m.ID, err)
		}
		res.Dispatched++
	}
	return res, nil
}
