// Package scheduler drives the profit distribution engine on a cron cadence.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"bsc-invest-platform/internal/ledger"
)

// CycleInvalidator is notified after a cycle that credited wallets, so
// cached dashboard aggregates can be dropped.
type CycleInvalidator interface {
	DeletePattern(ctx context.Context, pattern string) error
}

// DistributionScheduler fires Distributor cycles from a cron spec.
// Overlap between a cron fire and a manual HTTP trigger is tolerated:
// the period-key idempotency in the store is the correctness mechanism,
// not mutual exclusion here.
type DistributionScheduler struct {
	distributor *ledger.Distributor
	invalidator CycleInvalidator
	cronSpec    string
	runOnStart  bool
	logger      zerolog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewDistributionScheduler creates a scheduler. invalidator may be nil.
func NewDistributionScheduler(
	distributor *ledger.Distributor,
	invalidator CycleInvalidator,
	cronSpec string,
	runOnStart bool,
	logger zerolog.Logger,
) *DistributionScheduler {
	return &DistributionScheduler{
		distributor: distributor,
		invalidator: invalidator,
		cronSpec:    cronSpec,
		runOnStart:  runOnStart,
		logger:      logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the cron job and begins scheduling
func (s *DistributionScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.cronSpec, s.fire); err != nil {
		return err
	}
	c.Start()

	s.cron = c
	s.running = true
	s.logger.Info().Str("cron_spec", s.cronSpec).Msg("distribution scheduler started")

	if s.runOnStart {
		go s.fire()
	}

	return nil
}

// Stop halts scheduling and waits for a running cycle to finish
func (s *DistributionScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.running = false
	s.logger.Info().Msg("distribution scheduler stopped")
}

// IsRunning reports whether the scheduler is active
func (s *DistributionScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *DistributionScheduler) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	summary, err := s.distributor.RunCycleNow(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("distribution cycle failed")
		return
	}

	if s.invalidator != nil && summary.UsersUpdated > 0 {
		if err := s.invalidator.DeletePattern(ctx, "user:*"); err != nil {
			s.logger.Debug().Err(err).Msg("post-cycle cache invalidation skipped")
		}
	}
}
