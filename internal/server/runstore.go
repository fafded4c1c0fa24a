package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/avila-gabriel/game-balance/internal/genre"
	"github.com/avila-gabriel/game-balance/pkg/utils"
)

var (
	ErrRunExists    = errors.New("run already exists")
	ErrInvalidRunID = errors.New("run ID cannot contain '/' or ':'")
)

type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether a run in this status will never change again.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ParseRunStatus maps a status name to a RunStatus. Unknown names yield "".
func ParseRunStatus(s string) RunStatus {
	switch st := RunStatus(strings.ToLower(s)); st {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return st
	default:
		return ""
	}
}

// RunRecord is a snapshot of one daemon run. The store hands out copies, so
// callers may read a record without holding any lock.
type RunRecord struct {
	ID              string        `json:"id"`
	Scenario        string        `json:"scenario,omitempty"`
	Genre           string        `json:"genre,omitempty"`
	Status          RunStatus     `json:"status"`
	Error           string        `json:"error,omitempty"`
	Picks           []string      `json:"picks,omitempty"`
	Result          *genre.Result `json:"result,omitempty"`
	CreatedAtUnixMs int64         `json:"created_at_unix_ms"`
	StartedAtUnixMs int64         `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64         `json:"ended_at_unix_ms,omitempty"`

	ScenarioYAML string `json:"-"`
}

// Page sizes for run listings.
const (
	defaultListLimit = 50
	maxListLimit     = 1000
)

type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*RunRecord),
	}
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

func (s *RunStore) Create(runID, scenarioYAML string) (RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if runID == "" {
		runID = utils.GenerateRunID()
	}
	if strings.ContainsAny(runID, "/:") {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrInvalidRunID, runID)
	}
	if _, exists := s.runs[runID]; exists {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunExists, runID)
	}

	rec := &RunRecord{
		ID:              runID,
		Status:          StatusPending,
		CreatedAtUnixMs: nowUnixMs(),
		ScenarioYAML:    scenarioYAML,
	}
	s.runs[runID] = rec
	return *rec, nil
}

func (s *RunStore) Get(runID string) (RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	if !ok {
		return RunRecord{}, false
	}
	return *rec, true
}

// List returns runs newest first. A zero status matches every run.
func (s *RunStore) List(limit, offset int, status RunStatus) []RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	all := make([]RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		if status != "" && rec.Status != status {
			continue
		}
		all = append(all, *rec)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAtUnixMs != all[j].CreatedAtUnixMs {
			return all[i].CreatedAtUnixMs > all[j].CreatedAtUnixMs
		}
		return all[i].ID < all[j].ID
	})

	if offset >= len(all) {
		return []RunRecord{}
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

// Describe records what a run is about to execute.
func (s *RunStore) Describe(runID, scenario, genreName string, picks []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	rec.Scenario = scenario
	rec.Genre = genreName
	rec.Picks = append([]string(nil), picks...)
	return nil
}

// SetStatus moves a run to a new status. Terminal runs are left untouched
// and returned as they are.
func (s *RunStore) SetStatus(runID string, status RunStatus, errMsg string) (RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return RunRecord{}, fmt.Errorf("run not found: %s", runID)
	}
	if rec.Status.Terminal() {
		return *rec, nil
	}

	rec.Status = status
	if errMsg != "" {
		rec.Error = errMsg
	}

	switch {
	case status == StatusRunning:
		if rec.StartedAtUnixMs == 0 {
			rec.StartedAtUnixMs = nowUnixMs()
		}
	case status.Terminal():
		rec.EndedAtUnixMs = nowUnixMs()
	}
	return *rec, nil
}

// SetResult attaches a (possibly partial) pipeline result to a run.
func (s *RunStore) SetResult(runID string, res *genre.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	rec.Result = res
	return nil
}
