package schedule

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"stockalert/internal/config"
	"stockalert/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPlanUnifiedByDefault(t *testing.T) {
	t.Parallel()

	jobs := Plan(config.ScheduleConfig{RunAll: "0 * * * *"})
	if len(jobs) != 1 || jobs[0].Expr != "0 * * * *" || len(jobs[0].Kinds) != 4 {
		t.Fatalf("unexpected plan %+v", jobs)
	}
}

func TestPlanRemovesKindsWithOwnExpression(t *testing.T) {
	t.Parallel()

	jobs := Plan(config.ScheduleConfig{
		RunAll:  "0 * * * *",
		Expiry:  "0 9 * * *",
		Reorder: "0 */6 * * *",
	})
	if len(jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %+v", jobs)
	}
	unified := jobs[0].Kinds
	if len(unified) != 2 || unified[0] != domain.KindLowStock || unified[1] != domain.KindOutOfStock {
		t.Fatalf("unexpected unified kinds %v", unified)
	}
	if jobs[1].Kinds[0] != domain.KindExpiry || jobs[1].Expr != "0 9 * * *" {
		t.Fatalf("unexpected expiry job %+v", jobs[1])
	}
	if jobs[2].Kinds[0] != domain.KindReorder {
		t.Fatalf("unexpected reorder job %+v", jobs[2])
	}
}

func TestPlanWithoutUnifiedPass(t *testing.T) {
	t.Parallel()

	jobs := Plan(config.ScheduleConfig{LowStock: "*/5 * * * *"})
	if len(jobs) != 1 || jobs[0].Kinds[0] != domain.KindLowStock {
		t.Fatalf("unexpected plan %+v", jobs)
	}
	if Plan(config.ScheduleConfig{Disabled: true, RunAll: "0 * * * *"}) != nil {
		t.Fatalf("disabled schedule must have no jobs")
	}
}

func TestNewRejectsInvalidExpression(t *testing.T) {
	t.Parallel()

	_, err := New(config.ScheduleConfig{RunAll: "not a cron"}, func(context.Context, ...domain.ConditionKind) domain.CycleCounts {
		return domain.CycleCounts{}
	}, discardLogger())
	if err == nil {
		t.Fatalf("expected cron parse error")
	}
}

func TestRunOnStartTriggersFullCycle(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls [][]domain.ConditionKind
	)
	done := make(chan struct{}, 1)
	run := func(_ context.Context, kinds ...domain.ConditionKind) domain.CycleCounts {
		mu.Lock()
		calls = append(calls, kinds)
		mu.Unlock()
		done <- struct{}{}
		return domain.CycleCounts{LowStock: 1}
	}

	s, err := New(config.ScheduleConfig{RunOnStart: true, RunAll: "0 0 1 1 *"}, run, discardLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	s.Start(context.Background())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("startup cycle did not run")
	}
	s.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 || len(calls[0]) != 4 {
		t.Fatalf("unexpected calls %v", calls)
	}
}

func TestStopWithoutRunOnStart(t *testing.T) {
	t.Parallel()

	s, err := New(config.ScheduleConfig{RunAll: "0 * * * *"}, func(context.Context, ...domain.ConditionKind) domain.CycleCounts {
		t.Errorf("cycle must not run")
		return domain.CycleCounts{}
	}, discardLogger())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	if len(s.Jobs()) != 1 {
		t.Fatalf("unexpected jobs %+v", s.Jobs())
	}
	s.Start(context.Background())
	s.Stop()
}
