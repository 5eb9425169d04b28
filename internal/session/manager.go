package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// SubmitFunc delivers a finished submission to the grading pipeline. It is
// called at most once concurrently per attempt; a returned error leaves the
// attempt open for retry.
type SubmitFunc func(ctx context.Context, testID string, learnerID int, sub Submission) error

// NotifyFunc pushes an engine effect to a connected client (section advanced,
// time expired, forced submission).
type NotifyFunc func(Effect)

// Manager owns all live attempts in the process. Each attempt gets exactly
// one countdown resource: a goroutine driving the engine at 1 Hz, started
// when the attempt activates and stopped on submission, exit or shutdown.
// Timer-forced submissions fire even when the learner has disconnected.
type Manager struct {
	mu       sync.Mutex
	attempts map[string]*Attempt
	interval time.Duration
	submit   SubmitFunc
	log      zerolog.Logger
}

// NewManager creates a Manager. interval is the tick period — one second in
// production, shortened in tests.
func NewManager(interval time.Duration, submit SubmitFunc, log zerolog.Logger) *Manager {
	if interval <= 0 {
		interval = time.Second
	}
	return &Manager{
		attempts: make(map[string]*Attempt),
		interval: interval,
		submit:   submit,
		log:      log.With().Str("component", "session_manager").Logger(),
	}
}

// Attempt is one live engine plus its countdown goroutine. All engine access
// goes through Do, which serializes against the ticker.
type Attempt struct {
	TestID    string
	LearnerID int

	mu     sync.Mutex
	engine *Engine
	notify NotifyFunc
	cancel context.CancelFunc
}

// Do runs fn with exclusive access to the attempt's engine.
func (a *Attempt) Do(fn func(*Engine) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fn(a.engine)
}

// SetNotifier installs (or clears, with nil) the effect listener for this
// attempt. Only one client stream is notified at a time — the single-device
// session middleware guarantees one active client per learner.
func (a *Attempt) SetNotifier(fn NotifyFunc) {
	a.mu.Lock()
	a.notify = fn
	a.mu.Unlock()
}

func attemptKey(testID string, learnerID int) string {
	return fmt.Sprintf("%s:%d", testID, learnerID)
}

// Attach returns the live attempt for (testID, learnerID), creating it with
// build() and starting its countdown if none exists. Rejoining from a reload
// reattaches to the same engine rather than restarting the clock.
func (m *Manager) Attach(testID string, learnerID int, build func() *Engine) *Attempt {
	key := attemptKey(testID, learnerID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.attempts[key]; ok {
		return a
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Attempt{
		TestID:    testID,
		LearnerID: learnerID,
		engine:    build(),
		cancel:    cancel,
	}
	m.attempts[key] = a
	go m.run(ctx, a)

	m.log.Debug().
		Str("test_id", testID).
		Int("learner_id", learnerID).
		Msg("Attempt attached")

	return a
}

// Get returns the live attempt, if any.
func (m *Manager) Get(testID string, learnerID int) (*Attempt, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptKey(testID, learnerID)]
	return a, ok
}

// Detach stops the attempt's countdown and forgets it. State already queued
// for persistence is unaffected; anything held only in the engine is gone —
// exiting before submission discards the attempt by design.
func (m *Manager) Detach(testID string, learnerID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := attemptKey(testID, learnerID)
	if a, ok := m.attempts[key]; ok {
		a.cancel()
		delete(m.attempts, key)
	}
}

// Submit runs a learner-triggered submission. Duplicate calls while one is in
// flight return ErrSubmitInFlight; a transport failure leaves the attempt
// untouched so the learner can retry.
func (m *Manager) Submit(ctx context.Context, testID string, learnerID int) (Submission, error) {
	a, ok := m.Get(testID, learnerID)
	if !ok {
		return Submission{}, ErrAlreadySubmitted
	}
	return m.submitAttempt(ctx, a)
}

// Shutdown stops every countdown goroutine. In-progress attempts are not
// auto-submitted: their authoritative answer state already sits in Redis via
// the autosave path and survives a restart.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, a := range m.attempts {
		a.cancel()
		delete(m.attempts, key)
	}
}

// run is the per-attempt countdown loop: one tick of logical session time per
// interval. The ticker is the only writer that races learner actions, and
// both sides go through the attempt mutex.
func (m *Manager) run(ctx context.Context, a *Attempt) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.mu.Lock()
			eff := a.engine.Tick()
			// A forced attempt whose submission failed stays attached; retry
			// on subsequent ticks until the queue accepts it.
			retry := eff == EffectNone &&
				a.engine.forced && !a.engine.submitted && !a.engine.inFlight
			notify := a.notify
			a.mu.Unlock()

			if eff != EffectNone && notify != nil {
				notify(eff)
			}

			switch {
			case eff == EffectForceSubmit || retry:
				m.finalize(a)
			}
		}
	}
}

// finalize performs a timer/violation-forced submission in the background.
func (m *Manager) finalize(a *Attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := m.submitAttempt(ctx, a); err != nil {
		if err == ErrSubmitInFlight || err == ErrAlreadySubmitted {
			return
		}
		m.log.Error().Err(err).
			Str("test_id", a.TestID).
			Int("learner_id", a.LearnerID).
			Msg("Forced submission failed, will retry")
	}
}

// ForceSubmit ends the attempt regardless of remaining time, counting it as a
// forced submission. Used when the violation threshold is crossed via the
// REST violation endpoint rather than inside a tick.
func (m *Manager) ForceSubmit(ctx context.Context, a *Attempt) (Submission, error) {
	a.mu.Lock()
	a.engine.force()
	notify := a.notify
	a.mu.Unlock()
	if notify != nil {
		notify(EffectForceSubmit)
	}
	return m.submitAttempt(ctx, a)
}

func (m *Manager) submitAttempt(ctx context.Context, a *Attempt) (Submission, error) {
	a.mu.Lock()
	if err := a.engine.BeginSubmit(); err != nil {
		a.mu.Unlock()
		return Submission{}, err
	}
	sub := a.engine.BuildSubmission()
	a.mu.Unlock()

	err := m.submit(ctx, a.TestID, a.LearnerID, sub)

	a.mu.Lock()
	a.engine.FinishSubmit(err == nil)
	a.mu.Unlock()

	if err != nil {
		return Submission{}, err
	}

	m.Detach(a.TestID, a.LearnerID)
	return sub, nil
}
