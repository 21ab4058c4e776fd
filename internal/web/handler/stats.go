package handler

import (
	"sync"
	"time"

	"github.com/rizkirmdhn/catcast/pkg/models"
)

// Run states reported by /api/stats
const (
	StateIdle      = "idle"
	StateQueued    = "queued"
	StateRunning   = "running"
	StateCompleted = "completed"
	StateFailed    = "failed"
)

// RunState is the panel's view of the most recent run
type RunState struct {
	RunID      string       `json:"runId,omitempty"`
	State      string       `json:"state"`
	Page       int          `json:"page,omitempty"`
	Stats      models.Stats `json:"stats"`
	LastError  string       `json:"lastError,omitempty"`
	UpdatedAt  *time.Time   `json:"updatedAt,omitempty"`
	Rejected   int          `json:"rejected"`
	RecentURLs []string     `json:"recentStreams,omitempty"`
	Pages      map[int]int  `json:"emittedByPage,omitempty"`
}

const recentLimit = 20

// Tracker folds run events into a RunState
type Tracker struct {
	mu    sync.RWMutex
	state RunState
	now   func() time.Time
}

// NewTracker returns an idle tracker
func NewTracker() *Tracker {
	return &Tracker{state: RunState{State: StateIdle}, now: time.Now}
}

// Queued marks a run as requested but not yet picked up by a worker
func (t *Tracker) Queued(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.State == StateRunning {
		return
	}
	t.reset(runID)
	t.state.State = StateQueued
}

// Apply folds one event into the state
func (t *Tracker) Apply(l models.GenerateLog) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if l.Status == models.StatusRejected {
		t.state.Rejected++
		t.touch()
		return
	}

	if l.RunID != "" && l.RunID != t.state.RunID {
		t.reset(l.RunID)
	}

	if l.Page > 0 {
		t.state.Page = l.Page
	}
	if l.Stats != nil {
		t.state.Stats = *l.Stats
	}

	switch l.Status {
	case models.StatusCompleted:
		t.state.State = StateCompleted
	case models.StatusFailed:
		t.state.State = StateFailed
		t.state.LastError = l.Error
	default:
		t.state.State = StateRunning
	}

	if l.Status == models.StatusResolved && l.Stream != nil {
		if t.state.Pages == nil {
			t.state.Pages = make(map[int]int)
		}
		t.state.Pages[l.Page]++
		t.state.RecentURLs = append(t.state.RecentURLs, l.Stream.URL)
		if over := len(t.state.RecentURLs) - recentLimit; over > 0 {
			t.state.RecentURLs = t.state.RecentURLs[over:]
		}
	}
	t.touch()
}

// Snapshot returns a copy of the current state
func (t *Tracker) Snapshot() RunState {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := t.state
	s.RecentURLs = append([]string(nil), t.state.RecentURLs...)
	if t.state.Pages != nil {
		s.Pages = make(map[int]int, len(t.state.Pages))
		for k, v := range t.state.Pages {
			s.Pages[k] = v
		}
	}
	return s
}

func (t *Tracker) reset(runID string) {
	rejected := t.state.Rejected
	t.state = RunState{RunID: runID, Rejected: rejected, Pages: make(map[int]int)}
}

func (t *Tracker) touch() {
	now := t.now()
	t.state.UpdatedAt = &now
}
