package orchestrator

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"splicer/models"
)

// State is the lifecycle stage of an export job.
type State string

const (
	StateCreated       State = "created"
	StatePreprocessing State = "preprocessing" // Clip ClipIndex is being trimmed and normalized
	StateConcatenating State = "concatenating"
	StateSucceeded     State = "succeeded"
	StateFailed        State = "failed"
	StateCancelled     State = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Job is one export. Only the orchestrator mutates it; everyone else reads
// Snapshots.
type Job struct {
	ID      string
	Request models.ExportRequest

	mu         sync.RWMutex
	seq        uint64
	state      State
	clipIndex  int
	progress   int
	err        error
	scratchDir string
	createdAt  time.Time
	startedAt  time.Time
	finishedAt time.Time
	listener   func(Snapshot)
}

// Snapshot is a consistent read-only view of a Job.
//
// Seq increases with every change, so a consumer receiving snapshots from
// several goroutines can discard stale ones.
type Snapshot struct {
	ID         string     `json:"id"`
	Seq        uint64     `json:"seq"`
	State      State      `json:"state"`
	ClipIndex  int        `json:"clip_index"`
	ClipCount  int        `json:"clip_count"`
	Progress   int        `json:"progress"`
	Output     string     `json:"output"`
	Error      string     `json:"error,omitempty"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewJob creates a job in StateCreated with a fresh ID.
func NewJob(req models.ExportRequest) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Request:   req,
		state:     StateCreated,
		createdAt: time.Now(),
	}
}

// State returns the current state.
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Err returns the terminal error, if any.
func (j *Job) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// ScratchDir returns the private scratch directory while the job runs.
func (j *Job) ScratchDir() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.scratchDir
}

// Snapshot returns a copy of the job's observable state.
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.snapshotLocked()
}

func (j *Job) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:        j.ID,
		Seq:       j.seq,
		State:     j.state,
		ClipIndex: j.clipIndex,
		ClipCount: len(j.Request.Clips),
		Progress:  j.progress,
		Output:    j.Request.Output,
		CreatedAt: j.createdAt,
	}
	if j.err != nil {
		s.Error = models.Describe(j.err)
		s.ErrorKind = models.KindOf(j.err).String()
	}
	if !j.startedAt.IsZero() {
		t := j.startedAt
		s.StartedAt = &t
	}
	if !j.finishedAt.IsZero() {
		t := j.finishedAt
		s.FinishedAt = &t
	}
	return s
}

// setListener registers the callback run after every change.
func (j *Job) setListener(fn func(Snapshot)) {
	j.mu.Lock()
	j.listener = fn
	j.mu.Unlock()
}

// update applies fn under the lock and notifies the listener outside it.
// Terminal jobs are frozen.
func (j *Job) update(fn func()) {
	j.mu.Lock()
	if j.state.Terminal() {
		j.mu.Unlock()
		return
	}
	fn()
	j.seq++
	snap := j.snapshotLocked()
	listener := j.listener
	j.mu.Unlock()

	if listener != nil {
		listener(snap)
	}
}

func (j *Job) start(scratchDir string) {
	j.update(func() {
		j.startedAt = time.Now()
		j.scratchDir = scratchDir
	})
}

func (j *Job) setState(state State, clipIndex int) {
	j.update(func() {
		j.state = state
		j.clipIndex = clipIndex
	})
}

func (j *Job) setProgress(percent int) {
	j.update(func() {
		if percent > j.progress {
			j.progress = percent
		}
	})
}

// finish moves the job to its terminal state. Cleanup has already run.
func (j *Job) finish(err error) {
	j.update(func() {
		j.finishedAt = time.Now()
		j.scratchDir = ""
		j.err = err
		switch {
		case err == nil:
			j.state = StateSucceeded
			j.progress = 100
		case models.KindOf(err) == models.KindCancelled:
			j.state = StateCancelled
		default:
			j.state = StateFailed
		}
	})
}
