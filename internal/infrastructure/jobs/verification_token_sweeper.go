package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
	"hostel-hub.backend/pkg/logger"
)

// DefaultSweepGrace keeps expired tokens long enough for a late click to be
// told the link expired rather than that it is invalid.
const DefaultSweepGrace = 24 * time.Hour

type expiredTokenClearer interface {
	ClearExpiredVerificationTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

// VerificationTokenSweeper clears verification tokens that expired more than
// grace ago, so unverified users do not keep stale digests around.
type VerificationTokenSweeper struct {
	repo     expiredTokenClearer
	interval time.Duration
	grace    time.Duration
	now      func() time.Time
	stop     chan struct{}
}

func NewVerificationTokenSweeper(repo expiredTokenClearer, interval, grace time.Duration) *VerificationTokenSweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if grace <= 0 {
		grace = DefaultSweepGrace
	}
	return &VerificationTokenSweeper{
		repo:     repo,
		interval: interval,
		grace:    grace,
		now:      func() time.Time { return time.Now().UTC() },
		stop:     make(chan struct{}),
	}
}

// Start blocks until ctx is cancelled or Stop is called.
func (j *VerificationTokenSweeper) Start(ctx context.Context) {
	logger.Info(ctx, "Starting verification token sweeper",
		zap.Duration("interval", j.interval),
		zap.Duration("grace", j.grace),
	)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Verification token sweeper stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "Verification token sweeper stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *VerificationTokenSweeper) Stop() {
	close(j.stop)
}

// RunOnce clears every token whose expiry is at or before now minus grace.
func (j *VerificationTokenSweeper) RunOnce(ctx context.Context) (int64, error) {
	return j.repo.ClearExpiredVerificationTokens(ctx, j.now().Add(-j.grace))
}

func (j *VerificationTokenSweeper) sweep(ctx context.Context) {
	cleared, err := j.RunOnce(ctx)
	if err != nil {
		logger.Error(ctx, "Failed to clear expired verification tokens", zap.Error(err))
		return
	}
	if cleared == 0 {
		return
	}
	logger.Info(ctx, "Cleared expired verification tokens", zap.Int64("count", cleared))
}
