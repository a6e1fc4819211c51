package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tixera/tixera-api/internal/domain"
	"github.com/tixera/tixera-api/internal/monitoring"
)

type SweeperPointRepository interface {
	GetStaleGrants(ctx context.Context, now time.Time) ([]domain.PointTransaction, error)
	ExpireGrant(ctx context.Context, grantID uint) error
}

// Sweeper periodically expires transactions past their payment deadline,
// cancels transactions past their confirmation deadline and expires stale
// point grants. Every row is processed in its own unit of work, so a crash
// mid-sweep simply leaves the remainder for the next run: rows already moved
// no longer match the scan predicates.
type Sweeper struct {
	txns     *TransactionService
	points   SweeperPointRepository
	interval time.Duration

	ticker *time.Ticker
	done   chan struct{}
}

func NewSweeper(txns *TransactionService, points SweeperPointRepository, interval time.Duration) *Sweeper {
	return &Sweeper{
		txns:     txns,
		points:   points,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called. The first sweep runs
// immediately.
func (s *Sweeper) Start(ctx context.Context) {
	zap.L().Info("starting expiration sweeper", zap.Duration("interval", s.interval))

	s.ticker = time.NewTicker(s.interval)

	go func() {
		s.RunOnce(ctx)

		for {
			select {
			case <-s.ticker.C:
				s.RunOnce(ctx)
			case <-s.done:
				zap.L().Info("expiration sweeper stopped")
				return
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.done)
}

// RunOnce performs a single sweep. Failures in one phase are logged and do
// not block the others.
func (s *Sweeper) RunOnce(ctx context.Context) {
	now := time.Now()

	expired, err := s.txns.ExpireOverduePayments(ctx, now)
	if err != nil {
		zap.L().Error("sweep: expiring overdue payments failed", zap.Error(err))
	}

	canceled, err := s.txns.CancelOverdueDecisions(ctx, now)
	if err != nil {
		zap.L().Error("sweep: canceling overdue decisions failed", zap.Error(err))
	}

	pointsExpired := s.expireStalePoints(ctx, now)

	monitoring.SweepCompleted(expired, canceled, pointsExpired)

	if expired+canceled+pointsExpired > 0 {
		zap.L().Info("sweep completed",
			zap.Int("transactions_expired", expired),
			zap.Int("transactions_canceled", canceled),
			zap.Int("point_grants_expired", pointsExpired))
	}
}

func (s *Sweeper) expireStalePoints(ctx context.Context, now time.Time) int {
	grants, err := s.points.GetStaleGrants(ctx, now)
	if err != nil {
		zap.L().Error("sweep: listing stale point grants failed", zap.Error(err))
		return 0
	}

	expired := 0
	for _, grant := range grants {
		if err := s.points.ExpireGrant(ctx, grant.ID); err != nil {
			zap.L().Error("sweep: expiring point grant failed",
				zap.Uint("grant_id", grant.ID),
				zap.Uint("user_id", grant.UserID),
				zap.Error(err))
			continue
		}
		expired++
	}

	return expired
}
