package sweep

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/infra/metrics"
)

const (
	defaultBatch          = 500
	defaultReconcileBatch = 100
	defaultVisibleTTL     = 72 * time.Hour
)

type ConversationFinalizer interface {
	FinalizeOverdue(ctx context.Context, at time.Time, limit int) (int64, error)
}

type SurfacedExpirer interface {
	ExpireStaleSurfaced(ctx context.Context, cutoff, at time.Time, limit int) (int64, error)
}

type RefundReconciler interface {
	ReconcileRefunds(ctx context.Context, limit int) (int, error)
}

type Config struct {
	Batch          int
	ReconcileBatch int
	VisibleTTL     time.Duration
}

// Job finalizes timers that were not observed by a read. Every step is bounded
// and idempotent, so a run may be interrupted and repeated at any point.
type Job struct {
	conversations ConversationFinalizer
	likes         SurfacedExpirer
	refunds       RefundReconciler
	cfg           Config
	now           func() time.Time
	logger        *zap.Logger
}

func New(conversations ConversationFinalizer, likes SurfacedExpirer, refunds RefundReconciler, cfg Config, logger *zap.Logger) *Job {
	if cfg.Batch <= 0 {
		cfg.Batch = defaultBatch
	}
	if cfg.ReconcileBatch <= 0 {
		cfg.ReconcileBatch = defaultReconcileBatch
	}
	if cfg.VisibleTTL <= 0 {
		cfg.VisibleTTL = defaultVisibleTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		conversations: conversations,
		likes:         likes,
		refunds:       refunds,
		cfg:           cfg,
		now:           time.Now,
		logger:        logger,
	}
}

type Report struct {
	Expired        int64
	StaleSurfaced  int64
	RefundsSettled int
}

func (j *Job) Run(ctx context.Context) (Report, error) {
	var report Report
	now := j.now().UTC()

	if j.conversations != nil {
		n, err := j.conversations.FinalizeOverdue(ctx, now, j.cfg.Batch)
		if err != nil {
			return report, fmt.Errorf("finalize overdue conversations: %w", err)
		}
		report.Expired = n
		metrics.RecordSweep("conversation_expired", n)
	}

	if j.likes != nil {
		n, err := j.likes.ExpireStaleSurfaced(ctx, now.Add(-j.cfg.VisibleTTL), now, j.cfg.Batch)
		if err != nil {
			return report, fmt.Errorf("expire stale surfaced likes: %w", err)
		}
		report.StaleSurfaced = n
		metrics.RecordSweep("like_expired", n)
	}

	if j.refunds != nil {
		n, err := j.refunds.ReconcileRefunds(ctx, j.cfg.ReconcileBatch)
		if err != nil {
			return report, fmt.Errorf("reconcile refunds: %w", err)
		}
		report.RefundsSettled = n
		metrics.RecordSweep("refund_settled", int64(n))
	}

	if report.Expired > 0 || report.StaleSurfaced > 0 || report.RefundsSettled > 0 {
		j.logger.Info("sweep completed",
			zap.Int64("conversations_expired", report.Expired),
			zap.Int64("likes_expired", report.StaleSurfaced),
			zap.Int("refunds_settled", report.RefundsSettled),
		)
	}
	return report, nil
}

// Loop runs the job every interval until ctx is done. A zero interval disables it.
func (j *Job) Loop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		j.logger.Info("sweep disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := j.Run(ctx); err != nil {
			j.logger.Warn("sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
