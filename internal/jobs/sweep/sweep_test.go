package sweep

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/domain/enums"
	"github.com/ethanserbantes/wifey-dating-app-sub002/internal/testkit/datingfakes"
)

func TestRunFinalizesOverdueAndStaleRows(t *testing.T) {
	now := time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)
	world := datingfakes.NewWorld()
	ctx := context.Background()

	overdue := seedConversation(t, world, 7, 9, now.Add(-time.Minute), now.Add(-49*time.Hour))
	pending := seedConversation(t, world, 7, 11, now.Add(time.Hour), now.Add(-47*time.Hour))

	world.PutEdge(21, 22, now.Add(-100*time.Hour))
	world.MarkSurfaced(21, 22, now.Add(-73*time.Hour))
	world.PutEdge(23, 22, now.Add(-10*time.Hour))
	world.MarkSurfaced(23, 22, now.Add(-time.Hour))

	refunds := &reconcilerStub{settled: 2}
	job := New(world.Conversations(), world.Likes(), refunds, Config{VisibleTTL: 72 * time.Hour}, nil)
	job.now = func() time.Time { return now }

	report, err := job.Run(ctx)
	if err != nil {
		t.Fatalf("run sweep: %v", err)
	}
	if report.Expired != 1 || report.StaleSurfaced != 1 || report.RefundsSettled != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}

	state, ok := world.Conversation(overdue)
	if !ok || state.TerminalState == nil || *state.TerminalState != enums.TerminalExpired {
		t.Fatalf("expected overdue conversation to expire, got %+v", state)
	}
	state, ok = world.Conversation(pending)
	if !ok || state.TerminalState != nil {
		t.Fatalf("conversation inside its window must stay open, got %+v", state)
	}

	if edge, _ := world.Edge(21, 22); edge.State != enums.EdgeStateExpired {
		t.Fatalf("expected stale surfaced like to expire, got %s", edge.State)
	}
	if edge, _ := world.Edge(23, 22); edge.State != enums.EdgeStateSurfaced {
		t.Fatalf("fresh surfaced like must stay visible, got %s", edge.State)
	}
	if refunds.limit != defaultReconcileBatch {
		t.Fatalf("unexpected reconcile batch: %d", refunds.limit)
	}

	report, err = job.Run(ctx)
	if err != nil {
		t.Fatalf("rerun sweep: %v", err)
	}
	if report.Expired != 0 || report.StaleSurfaced != 0 {
		t.Fatalf("sweep must be idempotent, got %+v", report)
	}
}

func TestRunStopsOnReconcileError(t *testing.T) {
	job := New(nil, nil, &reconcilerStub{err: errors.New("db down")}, Config{}, nil)

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected reconcile error")
	}
}

func TestLoopWithZeroIntervalWaitsForCancel(t *testing.T) {
	refunds := &reconcilerStub{}
	job := New(nil, nil, refunds, Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- job.Loop(ctx, 0) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected loop error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("loop did not stop after cancel")
	}
	if refunds.calls != 0 {
		t.Fatalf("disabled sweep must not run, got %d calls", refunds.calls)
	}
}

func seedConversation(t *testing.T, world *datingfakes.World, userID, targetID int64, decisionExpiresAt, createdAt time.Time) int64 {
	t.Helper()

	var matchID int64
	err := world.Runner()(context.Background(), func(ctx context.Context, tx pgx.Tx) error {
		id, _, err := world.Matches().Create(ctx, tx, userID, targetID, createdAt)
		if err != nil {
			return err
		}
		m, err := world.Matches().GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		matchID = id
		return world.Conversations().Ensure(ctx, tx, m, decisionExpiresAt, createdAt)
	})
	if err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	return matchID
}

type reconcilerStub struct {
	settled int
	err     error
	limit   int
	calls   int
}

func (s *reconcilerStub) ReconcileRefunds(_ context.Context, limit int) (int, error) {
	s.calls++
	s.limit = limit
	if s.err != nil {
		return 0, s.err
	}
	return s.settled, nil
}
