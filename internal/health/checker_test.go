package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func alwaysOK(ctx context.Context) error { return nil }

func failingProbe(failUntil *int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if *failUntil > 0 {
			*failUntil--
			return errors.New("dependency unreachable")
		}
		return nil
	}
}

func TestCheckAll_degradesAfterThreshold(t *testing.T) {
	probe := Probe{Name: "vectorindex", Run: func(ctx context.Context) error {
		return errors.New("connection refused")
	}}
	checker := New([]Probe{probe}, Config{ProbeTimeout: 2 * time.Second, FailThreshold: 3}, zap.NewNop())

	for i := 0; i < 3; i++ {
		checker.CheckAll(context.Background())
	}

	if got := checker.Snapshot()["vectorindex"]; got != StatusDegraded {
		t.Errorf("status = %q, want degraded", got)
	}
	if checker.Ready() {
		t.Error("expected Ready() to be false once a dependency is degraded")
	}
}

func TestCheckAll_recoversOnSuccess(t *testing.T) {
	failsLeft := 3
	probe := Probe{Name: "store", Run: failingProbe(&failsLeft)}
	checker := New([]Probe{probe}, Config{ProbeTimeout: 2 * time.Second, FailThreshold: 3}, zap.NewNop())

	for i := 0; i < 4; i++ {
		checker.CheckAll(context.Background())
	}

	if got := checker.Snapshot()["store"]; got != StatusHealthy {
		t.Errorf("status = %q, want healthy after recovery", got)
	}
	if !checker.Ready() {
		t.Error("expected Ready() to be true after recovery")
	}
}

func TestCheckAll_multipleDependenciesIndependent(t *testing.T) {
	healthy := Probe{Name: "llm", Run: alwaysOK}
	unhealthy := Probe{Name: "vectorindex", Run: func(ctx context.Context) error {
		return errors.New("timeout")
	}}
	checker := New([]Probe{healthy, unhealthy}, Config{ProbeTimeout: 2 * time.Second, FailThreshold: 1}, zap.NewNop())

	checker.CheckAll(context.Background())

	snap := checker.Snapshot()
	if snap["llm"] != StatusHealthy {
		t.Errorf("llm status = %q, want healthy", snap["llm"])
	}
	if snap["vectorindex"] != StatusDegraded {
		t.Errorf("vectorindex status = %q, want degraded", snap["vectorindex"])
	}
}
