package server

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/avila-gabriel/game-balance/internal/balance"
)

func TestExecutorSubmitCompletes(t *testing.T) {
	store, exec, _ := newTestExecutor(t)

	rec, err := exec.Submit("core-1", coreScenario)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if rec.Scenario != "core-only" {
		t.Fatalf("expected scenario name core-only, got %q", rec.Scenario)
	}
	exec.Wait()

	got, ok := store.Get("core-1")
	if !ok {
		t.Fatalf("run not stored")
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", got.Status, got.Error)
	}
	if got.Result == nil || !got.Result.Converged() {
		t.Fatalf("expected converged result, got %+v", got.Result)
	}
	if got.EndedAtUnixMs == 0 {
		t.Fatalf("expected end time to be set")
	}
}

func TestExecutorSubmitRejectsInvalidScenario(t *testing.T) {
	store, exec, _ := newTestExecutor(t)

	tests := []struct {
		name string
		yaml string
	}{
		{name: "malformed yaml", yaml: "stages: [unclosed"},
		{name: "unknown system", yaml: "stages:\n  - {name: a, system: warp_drive, targets: {k: {min: 0}}}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := exec.Submit("bad", tt.yaml); !errors.Is(err, ErrInvalidScenario) {
				t.Fatalf("expected ErrInvalidScenario, got %v", err)
			}
		})
	}
	if _, ok := store.Get("bad"); ok {
		t.Fatalf("invalid scenarios must not be recorded")
	}
}

func TestExecutorSubmitDuplicate(t *testing.T) {
	_, exec, _ := newTestExecutor(t)
	if _, err := exec.Submit("dup", coreScenario); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if _, err := exec.Submit("dup", coreScenario); !errors.Is(err, ErrRunExists) {
		t.Fatalf("expected ErrRunExists, got %v", err)
	}
}

func TestExecutorStop(t *testing.T) {
	store, exec, _ := newTestExecutor(t)

	// A pending record with no goroutine behind it.
	if _, err := store.Create("idle-run", coreScenario); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	rec, err := exec.Stop("idle-run")
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if rec.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", rec.Status)
	}

	if _, err := exec.Stop("idle-run"); !errors.Is(err, ErrRunTerminal) {
		t.Fatalf("expected ErrRunTerminal, got %v", err)
	}
	if _, err := exec.Stop("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
	if _, err := exec.Stop(""); !errors.Is(err, ErrRunIDMissing) {
		t.Fatalf("expected ErrRunIDMissing, got %v", err)
	}
}

func TestExecutorStopRacingRun(t *testing.T) {
	store, exec, _ := newTestExecutor(t)
	if _, err := exec.Submit("race", coreScenario); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	// Either the stop lands first or the run has already completed.
	_, err := exec.Stop("race")
	if err != nil && !errors.Is(err, ErrRunTerminal) {
		t.Fatalf("unexpected Stop error: %v", err)
	}
	exec.Wait()

	got, _ := store.Get("race")
	if !got.Status.Terminal() {
		t.Fatalf("expected terminal status, got %s", got.Status)
	}
	if err == nil && got.Status != StatusCancelled {
		t.Fatalf("stopped run finished as %s", got.Status)
	}
}

func TestExecutorShutdown(t *testing.T) {
	_, exec, _ := newTestExecutor(t)
	if _, err := exec.Submit("", coreScenario); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestExecutorRecoversFromSystemPanic(t *testing.T) {
	store, exec, reg := newTestExecutor(t)
	if err := reg.RegisterSystem("panicky", func() balance.System { return panicSystem{} }); err != nil {
		t.Fatalf("RegisterSystem failed: %v", err)
	}

	yaml := "stages:\n  - {name: a, system: panicky, targets: {y: {min: 0, max: 1}}}"
	if _, err := exec.Submit("boom", yaml); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	exec.Wait()

	got, ok := store.Get("boom")
	if !ok {
		t.Fatalf("run not stored")
	}
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if !strings.Contains(got.Error, "panicked") {
		t.Fatalf("expected panic in error, got %q", got.Error)
	}
}
