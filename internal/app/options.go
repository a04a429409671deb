package service

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/leetstat/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock injects the clock used for freshness and scheduling.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithStalenessThreshold overrides the freshness window.
func WithStalenessThreshold(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.threshold = d
		}
	}
}

// WithDirectory sets the saved-usernames collaborator read by Initialize
// and the background scheduler.
func WithDirectory(d Directory) Option {
	return func(s *Service) {
		if d != nil {
			s.directory = d
		}
	}
}

// WithWorkerCount sets the number of background refresh workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the refresh queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithRefreshInterval sets how often saved usernames are queued for a
// background refresh. Zero disables the scheduler.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshInterval = d
		}
	}
}

// WithMaxPeers caps the number of usernames accepted by Compare.
func WithMaxPeers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPeers = n
		}
	}
}
