package api

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"niftybt/backtest"
)

// RunStatus is the lifecycle state of a submitted backtest.
type RunStatus string

const (
	StatusQueued  RunStatus = "queued"
	StatusRunning RunStatus = "running"
	StatusDone    RunStatus = "done"
	StatusFailed  RunStatus = "failed"
)

// Run tracks one submitted backtest through completion.
type Run struct {
	ID          string           `json:"id"`
	Status      RunStatus        `json:"status"`
	Symbol      string           `json:"symbol"`
	Strategy    string           `json:"strategy"`
	SubmittedAt time.Time        `json:"submitted_at"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
	Progress    int              `json:"progress"`
	Message     string           `json:"message,omitempty"`
	Error       string           `json:"error,omitempty"`
	Result      *backtest.Result `json:"result,omitempty"`
}

// RunManager executes backtests in the background and keeps their
// state for polling.
type RunManager struct {
	engine *backtest.Engine

	mu   sync.RWMutex
	runs map[string]*Run
}

func NewRunManager(engine *backtest.Engine) *RunManager {
	return &RunManager{engine: engine, runs: make(map[string]*Run)}
}

// Submit registers a run and starts it on its own goroutine. The
// returned snapshot is safe to marshal immediately.
func (m *RunManager) Submit(cfg backtest.RunConfig) *Run {
	run := &Run{
		ID:          uuid.NewString(),
		Status:      StatusQueued,
		Symbol:      cfg.Symbol,
		Strategy:    cfg.Strategy.Name(),
		SubmittedAt: time.Now(),
	}
	m.mu.Lock()
	m.runs[run.ID] = run
	m.mu.Unlock()

	cfg.Progress = func(percent int, message string) {
		m.mu.Lock()
		run.Progress = percent
		run.Message = message
		m.mu.Unlock()
	}

	go m.execute(run, cfg)
	return m.snapshot(run.ID)
}

func (m *RunManager) execute(run *Run, cfg backtest.RunConfig) {
	m.mu.Lock()
	run.Status = StatusRunning
	m.mu.Unlock()

	res, err := m.engine.Run(context.Background(), cfg)

	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	run.FinishedAt = &now
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
		log.Printf("[api] run %s failed: %v", run.ID, err)
		return
	}
	res.RunID = run.ID
	run.Status = StatusDone
	run.Progress = 100
	run.Result = res
}

// Get returns a copy of one run, or nil.
func (m *RunManager) Get(id string) *Run {
	return m.snapshot(id)
}

// List returns copies of all runs, newest first.
func (m *RunManager) List() []*Run {
	m.mu.RLock()
	out := make([]*Run, 0, len(m.runs))
	for id := range m.runs {
		out = append(out, m.copyLocked(id))
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out
}

func (m *RunManager) snapshot(id string) *Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.copyLocked(id)
}

func (m *RunManager) copyLocked(id string) *Run {
	run, ok := m.runs[id]
	if !ok {
		return nil
	}
	cp := *run
	return &cp
}
