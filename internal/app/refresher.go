package service

import (
	"context"
	"errors"
	"fmt"

	eventqueue "github.com/okian/leetstat/internal/adapters/mq/queue"
	workerpool "github.com/okian/leetstat/internal/adapters/mq/worker"
	"github.com/okian/leetstat/internal/domain/dedupe"
	"github.com/okian/leetstat/internal/domain/model"
	"github.com/okian/leetstat/pkg/logger"
	"github.com/okian/leetstat/pkg/metrics"
)

// Start launches the background refresher: a worker pool draining the
// refresh queue and, when an interval is configured, a scheduler that
// queues every tracked username on each tick.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithTTL(2*s.threshold),
		dedupe.WithClock(s.clock),
	)
	s.refreshQ = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.workerPool = workerpool.NewPool(s.workerCount, s.refreshQ, s,
		workerpool.WithLogger(s.logger))
	s.workerPool.Start(ctx)

	loopCtx, cancel := context.WithCancel(ctx)
	s.stopLoop = cancel
	s.loopDone = make(chan struct{})
	go s.scheduleLoop(loopCtx, s.loopDone)

	s.started = true
	s.logger.Info(ctx, "background refresher started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("interval", s.refreshInterval),
	)
	return nil
}

// Stop halts the scheduler and drains the worker pool.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	stop, done, pool := s.stopLoop, s.loopDone, s.workerPool
	s.mu.Unlock()

	stop()
	<-done
	err := pool.Shutdown(ctx)
	s.logger.Info(ctx, "background refresher stopped")
	return err
}

func (s *Service) scheduleLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	if s.refreshInterval <= 0 {
		<-ctx.Done()
		return
	}

	s.ScheduleTracked(ctx)
	ticker := s.clock.NewTicker(s.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.ScheduleTracked(ctx)
		}
	}
}

// ScheduleTracked queues a refresh for every tracked username and returns
// how many jobs were accepted.
func (s *Service) ScheduleTracked(ctx context.Context) int {
	names, err := s.directory.Tracked(ctx)
	if err != nil {
		s.logger.Warn(ctx, "could not list usernames to refresh", logger.Error(err))
		return 0
	}
	queued := 0
	for _, name := range names {
		if s.Enqueue(ctx, model.RefreshJob{Username: name, Profile: true}) {
			queued++
		}
	}
	if queued > 0 {
		s.logger.Debug(ctx, "scheduled background refreshes", logger.Int("jobs", queued))
	}
	return queued
}

// Enqueue submits a refresh job. A username with a job already pending is
// skipped and reported as false, as is a full or stopped queue.
func (s *Service) Enqueue(ctx context.Context, job model.RefreshJob) bool {
	s.mu.RLock()
	started, q, d := s.started, s.refreshQ, s.deduper
	s.mu.RUnlock()
	if !started {
		return false
	}

	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = s.clock.Now()
	}
	if d.SeenAndRecord(ctx, job.Key()) {
		metrics.RecordRefreshOutcome("duplicate")
		return false
	}
	if !q.Enqueue(ctx, job) {
		d.Unrecord(ctx, job.Key())
		metrics.RecordRefreshOutcome("rejected")
		return false
	}
	return true
}

// Refresh runs one background job: cache-or-fetch for the pair and, when
// asked, for the profile. It satisfies the worker pool contract.
func (s *Service) Refresh(ctx context.Context, job model.RefreshJob) error {
	s.mu.RLock()
	d := s.deduper
	s.mu.RUnlock()
	if d != nil {
		defer d.Unrecord(ctx, job.Key())
	}

	err := s.fetchData(ctx, job.Username, job.Force)
	if job.Profile {
		if perr := s.fetchProfile(ctx, job.Username, job.Force); perr != nil {
			err = errors.Join(err, perr)
		}
	}
	metrics.RecordRefreshOutcome(errorKind(err))
	if err != nil {
		return fmt.Errorf("refresh %s: %w", job.Username, err)
	}
	return nil
}

// GetStats returns coordinator statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	ctx := context.Background()
	s.mu.RLock()
	stats := map[string]any{
		"started":          s.started,
		"workerCount":      s.workerCount,
		"queueSize":        s.queueSize,
		"refreshInterval":  s.refreshInterval.String(),
		"stalenessSeconds": int(s.threshold.Seconds()),
		"usersWithStats":   len(s.stats),
		"usersWithProfile": len(s.profiles),
		"isLoading":        s.loading > 0,
		"isFetchingFresh":  s.refreshing > 0,
	}
	if s.lastError != nil {
		stats["lastError"] = s.lastError.Error()
	}
	q, d, started := s.refreshQ, s.deduper, s.started
	tracked := len(s.stats)
	s.mu.RUnlock()

	if started {
		stats["queueLength"] = q.Len(ctx)
		stats["pendingRefreshes"] = d.Size()
	}
	metrics.UpdateTrackedUsers(tracked)
	return stats
}
