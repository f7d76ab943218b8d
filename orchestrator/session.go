package orchestrator

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"splicer/internal/logging"
	"splicer/models"
)

// ErrJobNotFound is returned for unknown job IDs.
var ErrJobNotFound = errors.New("job not found")

var errShuttingDown = errors.New("session manager is shutting down")

const subscriberBuffer = 16

// SessionManager owns the jobs submitted to one orchestrator and bounds
// how many of them run at once. Jobs beyond the limit wait for a free slot.
type SessionManager struct {
	ctx    context.Context
	orch   *Orchestrator
	logger zerolog.Logger
	slots  chan struct{}

	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool
	wg       sync.WaitGroup
}

type session struct {
	job    *Job
	cancel context.CancelFunc
	done   chan struct{}

	subMu   sync.Mutex
	subs    map[int]*subscriber
	nextSub int
	closed  bool
}

type subscriber struct {
	ch      chan Snapshot
	lastSeq uint64
}

// NewSessionManager creates a manager whose jobs run under ctx. Values of
// maxConcurrent below 1 mean 1.
func NewSessionManager(ctx context.Context, orch *Orchestrator, maxConcurrent int, logger zerolog.Logger) *SessionManager {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &SessionManager{
		ctx:      ctx,
		orch:     orch,
		logger:   logging.WithComponent(logger, "sessions"),
		slots:    make(chan struct{}, maxConcurrent),
		sessions: make(map[string]*session),
	}
}

// Submit validates req and starts it in the background. Invalid requests
// are rejected synchronously and never become jobs, and so is everything
// submitted after Shutdown.
func (m *SessionManager) Submit(req models.ExportRequest) (Snapshot, error) {
	if err := req.Validate(); err != nil {
		return Snapshot{}, err
	}
	if err := m.ctx.Err(); err != nil {
		return Snapshot{}, models.NewError(models.KindCancelled, "submit", err)
	}

	job := NewJob(req)
	ctx, cancel := context.WithCancel(m.ctx)
	s := &session{
		job:    job,
		cancel: cancel,
		done:   make(chan struct{}),
		subs:   make(map[int]*subscriber),
	}
	job.setListener(s.publish)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		return Snapshot{}, models.NewError(models.KindCancelled, "submit", errShuttingDown)
	}
	m.sessions[job.ID] = s
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info().Str(logging.FieldJobID, job.ID).Int("clips", len(req.Clips)).Msg("Job submitted")

	go m.run(ctx, s)

	return job.Snapshot(), nil
}

func (m *SessionManager) run(ctx context.Context, s *session) {
	defer func() {
		s.closeSubscribers()
		close(s.done)
		s.cancel()
		m.wg.Done()
	}()

	select {
	case m.slots <- struct{}{}:
		defer func() { <-m.slots }()
	case <-ctx.Done():
		// Cancelled while queued
		s.job.finish(models.NewError(models.KindCancelled, "export", ctx.Err()))
		return
	}

	if err := m.orch.Run(ctx, s.job, nil); err != nil {
		m.logger.Debug().Str(logging.FieldJobID, s.job.ID).Err(err).Msg("Job ended with error")
	}
}

// Get returns the current snapshot of a job.
func (m *SessionManager) Get(id string) (Snapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return s.job.Snapshot(), nil
}

// List returns snapshots of all known jobs, oldest first.
func (m *SessionManager) List() []Snapshot {
	m.mu.RLock()
	snaps := make([]Snapshot, 0, len(m.sessions))
	for _, s := range m.sessions {
		snaps = append(snaps, s.job.Snapshot())
	}
	m.mu.RUnlock()

	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].ID < snaps[j].ID
		}
		return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
	})
	return snaps
}

// Subscribe streams snapshots of a job. The first value is the current
// snapshot. A slow reader may miss intermediate values but always receives
// the terminal one, after which the channel is closed. The returned func
// stops the subscription early.
func (m *SessionManager) Subscribe(id string) (<-chan Snapshot, func(), error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan Snapshot, subscriberBuffer)

	s.subMu.Lock()
	defer s.subMu.Unlock()

	current := s.job.Snapshot()
	ch <- current
	if s.closed {
		close(ch)
		return ch, func() {}, nil
	}

	key := s.nextSub
	s.nextSub++
	s.subs[key] = &subscriber{ch: ch, lastSeq: current.Seq}

	unsubscribe := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if sub, ok := s.subs[key]; ok {
			delete(s.subs, key)
			close(sub.ch)
		}
	}
	return ch, unsubscribe, nil
}

// Cancel stops a job. Cancelling a finished job does nothing.
func (m *SessionManager) Cancel(id string) error {
	s, err := m.lookup(id)
	if err != nil {
		return err
	}
	m.logger.Info().Str(logging.FieldJobID, id).Msg("Cancelling job")
	s.cancel()
	return nil
}

// Wait blocks until the job is terminal or ctx is done.
func (m *SessionManager) Wait(ctx context.Context, id string) (Snapshot, error) {
	s, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	select {
	case <-s.done:
		return s.job.Snapshot(), nil
	case <-ctx.Done():
		return s.job.Snapshot(), ctx.Err()
	}
}

// Remove forgets a finished job.
func (m *SessionManager) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrJobNotFound
	}
	if state := s.job.State(); !state.Terminal() {
		return models.Invalidf("remove job", "job %s is still %s", id, state)
	}
	delete(m.sessions, id)
	return nil
}

// Shutdown cancels every job and waits for them to clean up, or for ctx.
// Later calls to Submit fail.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	for _, s := range m.sessions {
		s.cancel()
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *SessionManager) lookup(id string) (*session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return s, nil
}

// publish fans a snapshot out without blocking. When a buffer is full an
// intermediate snapshot is dropped; a terminal one replaces the oldest
// queued value instead.
func (s *session) publish(snap Snapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.closed {
		return
	}

	for _, sub := range s.subs {
		if snap.Seq <= sub.lastSeq {
			continue
		}
		select {
		case sub.ch <- snap:
			sub.lastSeq = snap.Seq
			continue
		default:
		}
		if !snap.State.Terminal() {
			continue
		}
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- snap:
			sub.lastSeq = snap.Seq
		default:
		}
	}
}

func (s *session) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.closed = true
	for key, sub := range s.subs {
		close(sub.ch)
		delete(s.subs, key)
	}
}
