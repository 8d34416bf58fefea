package notification

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"greenhouse-backend/internal/metrics"
)

// WorkerPool delivers notices on a channel from a fixed set of goroutines.
type WorkerPool struct {
	size    int
	jobs    chan Notice
	channel Channel
	deduper *Deduper
	metrics *metrics.Metrics
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool. deduper may be nil, in which case a
// failed delivery is simply logged.
func NewWorkerPool(size int, channel Channel, deduper *Deduper, m *metrics.Metrics, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Notice, size),
		channel: channel,
		deduper: deduper,
		metrics: m,
		logger:  logger,
	}
}

// Start launches the worker goroutines. They exit when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has exited.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	wp.logger.Debug("notification worker started", zap.Int("worker", id))
	for {
		select {
		case n := <-wp.jobs:
			wp.deliver(ctx, n)
		case <-ctx.Done():
			wp.logger.Debug("notification worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues a notice. It blocks while the queue is full and gives up
// when ctx is done.
func (wp *WorkerPool) Dispatch(ctx context.Context, n Notice) error {
	select {
	case wp.jobs <- n:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// targets splits a MultiChannel so each channel succeeds or fails on its own.
func (wp *WorkerPool) targets() []Channel {
	if multi, ok := wp.channel.(*MultiChannel); ok {
		return multi.Channels()
	}
	return []Channel{wp.channel}
}

func (wp *WorkerPool) deliver(ctx context.Context, n Notice) {
	var delivered []string
	failed := false
	for _, ch := range wp.targets() {
		name := ch.Name()
		if wp.deduper != nil && wp.deduper.Delivered(name, n) {
			wp.metrics.ObserveNotice(name, metrics.ResultSkipped)
			continue
		}
		if err := ch.Send(ctx, n); err != nil {
			wp.logger.Error("failed to deliver notice",
				zap.String("machine_id", n.MachineID),
				zap.String("channel", name),
				zap.Error(err))
			wp.metrics.ObserveNotice(name, metrics.ResultError)
			failed = true
			continue
		}
		wp.logger.Info("notice delivered",
			zap.String("machine_id", n.MachineID),
			zap.String("status", string(n.Band)),
			zap.String("channel", name))
		wp.metrics.ObserveNotice(name, metrics.ResultSuccess)
		delivered = append(delivered, name)
	}

	if failed && wp.deduper != nil {
		for _, name := range delivered {
			wp.deduper.MarkDelivered(name, n)
		}
		wp.deduper.Forget(n)
	}
}
