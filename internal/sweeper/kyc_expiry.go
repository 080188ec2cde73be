package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/clearmint/captable/internal/adapter"
	"github.com/clearmint/captable/internal/domain"
	"github.com/clearmint/captable/internal/logger"
	"github.com/clearmint/captable/internal/store"
)

// KYCExpirySweeperConfig holds configuration for the KYC expiry sweeper
type KYCExpirySweeperConfig struct {
	SweepInterval time.Duration // Time to sleep between sweep cycles
}

// kycExpirySweeper implements the Sweeper interface. Each cycle flips
// verified investors whose KYC expiry date has passed to the expired status.
// The sweep is idempotent, so overlapping deployments are harmless.
type kycExpirySweeper struct {
	config    *KYCExpirySweeperConfig
	store     store.Store
	clock     adapter.Clock
	running   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}
}

// NewKYCExpirySweeper creates a new KYC expiry sweeper
func NewKYCExpirySweeper(config *KYCExpirySweeperConfig, st store.Store, clock adapter.Clock) Sweeper {
	return &kycExpirySweeper{
		config:    config,
		store:     st,
		clock:     clock,
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the sweeper's name
func (s *kycExpirySweeper) Name() string {
	return "kyc-expiry-sweeper"
}

// Start begins the sweeper's main loop
func (s *kycExpirySweeper) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("sweeper already running")
	}
	defer func() {
		s.running.Store(false)
		close(s.stoppedCh) // Signal that we've stopped
	}()

	logger.InfoCtx(ctx, "Starting KYC expiry sweeper",
		zap.Duration("sweep_interval", s.config.SweepInterval),
	)

	for {
		if err := s.runSweepCycle(ctx); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.ErrorCtx(ctx, err)
			}
		}

		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "KYC expiry sweeper stopping due to context cancellation", zap.Error(ctx.Err()))
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "KYC expiry sweeper stop requested")
			return nil
		case <-s.clock.After(s.config.SweepInterval):
		}
	}
}

// Stop gracefully stops the sweeper with timeout support
func (s *kycExpirySweeper) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil // Already stopped
	}

	logger.InfoCtx(ctx, "Stopping KYC expiry sweeper")

	close(s.stopChan)

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "KYC expiry sweeper stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "KYC expiry sweeper stop interrupted by context timeout")
		return ctx.Err()
	}
}

// runSweepCycle runs a single sweep with exponential backoff on transient
// store failures. Non-transient errors abort the cycle immediately.
func (s *kycExpirySweeper) runSweepCycle(ctx context.Context) error {
	startTime := s.clock.Now()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Second
	b.MaxInterval = 1 * time.Minute
	b.MaxElapsedTime = 10 * time.Minute
	b.RandomizationFactor = 0.5

	var count int
	operation := func() error {
		var err error
		count, err = s.store.CheckKYCExpirations(ctx, s.clock.Now())
		if err != nil && !errors.Is(err, domain.ErrTransient) {
			return backoff.Permanent(err)
		}
		return err
	}

	notifyOnError := func(err error, duration time.Duration) {
		logger.WarnCtx(ctx, "KYC sweep failed, retrying",
			zap.Error(err),
			zap.Duration("next_attempt_in", duration),
		)
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notifyOnError); err != nil {
		return fmt.Errorf("failed to sweep KYC expirations: %w", err)
	}

	if count > 0 {
		logger.InfoCtx(ctx, "Expired lapsed KYC verifications",
			zap.Int("count", count),
			zap.Duration("elapsed", s.clock.Since(startTime)),
		)
	} else {
		logger.DebugCtx(ctx, "No lapsed KYC verifications found")
	}

	return nil
}
