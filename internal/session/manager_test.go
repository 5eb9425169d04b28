package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// submitRecorder is a SubmitFunc that records every delivery and can be told
// to fail the first n calls.
type submitRecorder struct {
	mu           sync.Mutex
	subs         []Submission
	failuresLeft int
}

func (r *submitRecorder) fn(_ context.Context, _ string, _ int, sub Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failuresLeft > 0 {
		r.failuresLeft--
		return errors.New("queue unavailable")
	}
	r.subs = append(r.subs, sub)
	return nil
}

func (r *submitRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

func (r *submitRecorder) last() Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[len(r.subs)-1]
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestManager_TimerForcedSubmissionWithoutClient(t *testing.T) {
	rec := &submitRecorder{}
	m := NewManager(time.Millisecond, rec.fn, zerolog.Nop())
	defer m.Shutdown()

	// 3-tick attempt, no client connected after attach.
	m.Attach("t1", 7, func() *Engine {
		return NewEngine(flatBlueprint(3, "q1", "q2"), strictOptions())
	})

	waitFor(t, 2*time.Second, func() bool { return rec.count() == 1 })

	sub := rec.last()
	if !sub.Forced {
		t.Error("timeout submission must be forced")
	}
	if len(sub.Answers) != 2 {
		t.Errorf("len(Answers) = %d, want 2", len(sub.Answers))
	}
	if _, ok := m.Get("t1", 7); ok {
		t.Error("attempt must detach after successful submission")
	}

	// No second delivery shows up afterwards.
	time.Sleep(20 * time.Millisecond)
	if got := rec.count(); got != 1 {
		t.Errorf("submissions = %d, want exactly 1", got)
	}
}

func TestManager_ForcedSubmissionRetriesUntilAccepted(t *testing.T) {
	rec := &submitRecorder{failuresLeft: 2}
	m := NewManager(time.Millisecond, rec.fn, zerolog.Nop())
	defer m.Shutdown()

	m.Attach("t1", 7, func() *Engine {
		return NewEngine(flatBlueprint(2, "q1"), strictOptions())
	})

	waitFor(t, 2*time.Second, func() bool { return rec.count() == 1 })

	if _, ok := m.Get("t1", 7); ok {
		t.Error("attempt must detach once a retry succeeds")
	}
}

func TestManager_AttachIsIdempotent(t *testing.T) {
	rec := &submitRecorder{}
	m := NewManager(time.Hour, rec.fn, zerolog.Nop())
	defer m.Shutdown()

	builds := 0
	build := func() *Engine {
		builds++
		return NewEngine(flatBlueprint(600, "q1"), strictOptions())
	}

	a1 := m.Attach("t1", 7, build)
	if err := a1.Do(func(e *Engine) error { return e.SelectAnswer("q1", "B") }); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}

	// Page reload: same learner rejoins and must see the same engine.
	a2 := m.Attach("t1", 7, build)
	if a1 != a2 {
		t.Fatal("rejoin must reattach to the live attempt")
	}
	if builds != 1 {
		t.Errorf("build called %d times, want 1", builds)
	}
	var got string
	a2.Do(func(e *Engine) error {
		got = e.Snapshot().Answers["q1"]
		return nil
	})
	if got != "B" {
		t.Errorf("answer after rejoin = %q, want B", got)
	}
}

func TestManager_LearnerSubmit(t *testing.T) {
	rec := &submitRecorder{}
	m := NewManager(time.Hour, rec.fn, zerolog.Nop())
	defer m.Shutdown()

	a := m.Attach("t1", 7, func() *Engine {
		return NewEngine(flatBlueprint(600, "q1", "q2"), strictOptions())
	})
	a.Do(func(e *Engine) error { return e.SelectAnswer("q1", "D") })

	sub, err := m.Submit(context.Background(), "t1", 7)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.Forced {
		t.Error("learner-triggered submission must not be forced")
	}
	if sub.Answers[0].SelectedAnswer != "D" || sub.Answers[1].SelectedAnswer != NotAnsweredSentinel {
		t.Errorf("answers = %+v", sub.Answers)
	}
	if _, ok := m.Get("t1", 7); ok {
		t.Error("attempt must detach after submission")
	}
	if _, err := m.Submit(context.Background(), "t1", 7); err != ErrAlreadySubmitted {
		t.Errorf("second Submit = %v, want ErrAlreadySubmitted", err)
	}
}

func TestManager_SubmitFailureLeavesAttemptOpen(t *testing.T) {
	rec := &submitRecorder{failuresLeft: 1}
	m := NewManager(time.Hour, rec.fn, zerolog.Nop())
	defer m.Shutdown()

	a := m.Attach("t1", 7, func() *Engine {
		return NewEngine(flatBlueprint(600, "q1"), strictOptions())
	})
	a.Do(func(e *Engine) error { return e.SelectAnswer("q1", "A") })

	if _, err := m.Submit(context.Background(), "t1", 7); err == nil {
		t.Fatal("first Submit should surface the queue error")
	}

	// Attempt still live, answers intact, retry goes through.
	if _, ok := m.Get("t1", 7); !ok {
		t.Fatal("failed submission must keep the attempt attached")
	}
	sub, err := m.Submit(context.Background(), "t1", 7)
	if err != nil {
		t.Fatalf("retry Submit: %v", err)
	}
	if sub.Answers[0].SelectedAnswer != "A" {
		t.Errorf("answer lost across failed submit: %+v", sub.Answers[0])
	}
}

func TestManager_ViolationForceSubmitNotifiesStream(t *testing.T) {
	rec := &submitRecorder{}
	m := NewManager(time.Hour, rec.fn, zerolog.Nop())
	defer m.Shutdown()

	a := m.Attach("t1", 7, func() *Engine {
		return NewEngine(flatBlueprint(600, "q1"), strictOptions())
	})

	var mu sync.Mutex
	var effects []Effect
	a.SetNotifier(func(eff Effect) {
		mu.Lock()
		effects = append(effects, eff)
		mu.Unlock()
	})

	var crossed bool
	for i := 0; i < 3; i++ {
		a.Do(func(e *Engine) error {
			_, eff := e.ReportViolation()
			crossed = eff == EffectForceSubmit
			return nil
		})
	}
	if !crossed {
		t.Fatal("third violation must cross the threshold")
	}

	if _, err := m.ForceSubmit(context.Background(), a); err != nil {
		t.Fatalf("ForceSubmit: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(effects) != 1 || effects[0] != EffectForceSubmit {
		t.Errorf("effects = %v, want exactly one EffectForceSubmit", effects)
	}
	if rec.count() != 1 {
		t.Errorf("submissions = %d, want 1", rec.count())
	}
	if sub := rec.last(); !sub.Forced || sub.ViolationCount != 3 {
		t.Errorf("submission = forced:%v violations:%d, want forced with 3", sub.Forced, sub.ViolationCount)
	}
}

func TestManager_DetachDiscardsAttempt(t *testing.T) {
	rec := &submitRecorder{}
	m := NewManager(time.Millisecond, rec.fn, zerolog.Nop())
	defer m.Shutdown()

	m.Attach("t1", 7, func() *Engine {
		return NewEngine(flatBlueprint(2, "q1"), strictOptions())
	})
	m.Detach("t1", 7)

	// Countdown stopped: the 2-tick timeout never produces a submission.
	time.Sleep(20 * time.Millisecond)
	if rec.count() != 0 {
		t.Errorf("submissions after exit = %d, want 0", rec.count())
	}
}
