// Package refresh keeps stored OAuth credentials fresh by proactively
// refreshing any token inside its grace window before expiry.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/onboardly/onboardly/internal/errors"
	"github.com/onboardly/onboardly/internal/logging"
	"github.com/onboardly/onboardly/internal/metrics"
	"github.com/onboardly/onboardly/internal/platform"
	"github.com/onboardly/onboardly/internal/store"
)

// Scheduler periodically scans the credential store and refreshes every
// credential due within the grace window. Runs are serialized by the ticker
// loop; a failed refresh is left for the next tick.
type Scheduler struct {
	store    store.Store
	platform platform.Client
	interval time.Duration
	grace    time.Duration

	logger  *logging.Logger
	metrics *metrics.Metrics

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler over the given store and platform client.
func NewScheduler(s store.Store, pc platform.Client, interval, grace time.Duration, logger *logging.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		store:    s,
		platform: pc,
		interval: interval,
		grace:    grace,
		logger:   logger,
		metrics:  m,
	}
}

// Start begins the refresh loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return &errors.ErrServerStart{Addr: "refresh-scheduler", Err: fmt.Errorf("scheduler already running")}
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.loop(ctx)

	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh := s.stopCh
	s.mu.Unlock()

	close(stopCh)
	s.wg.Wait()

	return nil
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	// Initial pass so a restart never waits a full interval.
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce refreshes every credential currently inside its grace window.
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, cred := range s.store.ListCredentials() {
		if !cred.NeedsRefresh(s.grace) {
			continue
		}

		pair, err := s.platform.RefreshToken(ctx, cred.RefreshToken)
		if err != nil {
			s.metrics.RecordTokenRefresh("failure")
			s.logger.ErrorWithContext(ctx, "token refresh failed",
				"owner_id", cred.OwnerID, "error", err.Error())
			continue
		}

		if err := s.store.UpdateTokens(cred.OwnerID, pair.AccessToken, pair.RefreshToken, pair.ExpiresIn, time.Now()); err != nil {
			s.metrics.RecordTokenRefresh("failure")
			s.logger.ErrorWithContext(ctx, "token persist failed",
				"owner_id", cred.OwnerID, "error", err.Error())
			continue
		}

		s.metrics.RecordTokenRefresh("success")
		s.logger.InfoWithContext(ctx, "token refreshed", "owner_id", cred.OwnerID)
	}
}
