package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/avila-gabriel/game-balance/internal/genre"
	"github.com/avila-gabriel/game-balance/internal/registry"
	"github.com/avila-gabriel/game-balance/internal/scenario"
	"github.com/avila-gabriel/game-balance/pkg/config"
	"github.com/avila-gabriel/game-balance/pkg/logger"
)

// Executor runs scenarios asynchronously with per-run cancellation. At most
// maxConcurrent runs execute at once; the rest wait in pending.
type Executor struct {
	store *RunStore
	reg   *registry.Registry
	log   *slog.Logger
	sem   chan struct{}
	wg    sync.WaitGroup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

var (
	ErrRunNotFound     = errors.New("run not found")
	ErrRunTerminal     = errors.New("run is terminal")
	ErrRunIDMissing    = errors.New("run_id is required")
	ErrInvalidScenario = errors.New("invalid scenario")
)

func NewExecutor(store *RunStore, reg *registry.Registry, maxConcurrent int, log *slog.Logger) *Executor {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if log == nil {
		log = logger.Default
	}
	return &Executor{
		store:   store,
		reg:     reg,
		log:     log,
		sem:     make(chan struct{}, maxConcurrent),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Submit validates a scenario, records a run for it and starts executing it.
// An empty runID gets a generated one. Scenario problems are reported here,
// wrapped in ErrInvalidScenario, and no run is recorded for them.
func (e *Executor) Submit(runID, scenarioYAML string) (RunRecord, error) {
	sc, err := config.ParseScenarioYAMLString(scenarioYAML)
	if err != nil {
		return RunRecord{}, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}
	plan, err := scenario.Build(sc, e.reg, e.log)
	if err != nil {
		return RunRecord{}, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}

	rec, err := e.store.Create(runID, scenarioYAML)
	if err != nil {
		return RunRecord{}, err
	}
	if err := e.store.Describe(rec.ID, plan.Name, plan.Genre, plan.Picks); err != nil {
		return RunRecord{}, err
	}

	runLog := e.log.With("run_id", rec.ID)
	plan.Config.Logger = runLog

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancels[rec.ID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.execute(ctx, rec.ID, plan, runLog)

	runLog.Info("run submitted", "scenario", plan.Name, "stages", len(plan.Stages))
	updated, _ := e.store.Get(rec.ID)
	return updated, nil
}

// Stop requests cancellation for a pending or running run and marks it cancelled.
func (e *Executor) Stop(runID string) (RunRecord, error) {
	if runID == "" {
		return RunRecord{}, ErrRunIDMissing
	}
	rec, ok := e.store.Get(runID)
	if !ok {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Status.Terminal() {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}

	e.mu.Lock()
	cancel, ok := e.cancels[runID]
	e.mu.Unlock()
	if ok {
		cancel()
	}

	updated, err := e.store.SetStatus(runID, StatusCancelled, "stopped by request")
	if err != nil {
		return RunRecord{}, err
	}
	if updated.Status != StatusCancelled {
		// The run finished before the stop landed.
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}
	return updated, nil
}

// Wait blocks until every submitted run has finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Shutdown cancels every active run and waits for them to wind down, or for
// ctx to expire.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	for _, cancel := range e.cancels {
		cancel()
	}
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) cleanup(runID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}
	e.mu.Unlock()
}

func (e *Executor) execute(ctx context.Context, runID string, plan *scenario.Plan, log *slog.Logger) {
	defer e.wg.Done()
	defer e.cleanup(runID)

	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		e.setStatus(runID, StatusCancelled, ctx.Err().Error(), log)
		return
	}

	e.setStatus(runID, StatusRunning, "", log)
	res, err := runPlan(ctx, plan)
	if res != nil {
		if setErr := e.store.SetResult(runID, res); setErr != nil {
			log.Error("failed to store result", "error", setErr)
		}
	}

	switch {
	case ctx.Err() != nil:
		e.setStatus(runID, StatusCancelled, ctx.Err().Error(), log)
		log.Info("run cancelled")
	case err != nil:
		e.setStatus(runID, StatusFailed, err.Error(), log)
		log.Error("run failed", "error", err)
	default:
		e.setStatus(runID, StatusCompleted, "", log)
		log.Info("run completed", "converged", res.Converged(), "degraded", res.Degraded, "passes", res.Passes)
	}
}

// runPlan turns a panic inside a system into a failed run.
func runPlan(ctx context.Context, plan *scenario.Plan) (res *genre.Result, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			res, err = nil, fmt.Errorf("run panicked: %v", recovered)
		}
	}()
	return plan.Run(ctx)
}

func (e *Executor) setStatus(runID string, status RunStatus, errMsg string, log *slog.Logger) {
	if _, err := e.store.SetStatus(runID, status, errMsg); err != nil {
		log.Error("failed to set run status", "status", status, "error", err)
	}
}
