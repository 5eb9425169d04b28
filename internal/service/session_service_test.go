package service

import (
	"testing"

	"github.com/testport/testport-backend/internal/session"
)

func attemptBlueprint(durationSeconds int, questionIDs ...string) session.Blueprint {
	qs := make([]session.Question, len(questionIDs))
	for i, id := range questionIDs {
		qs[i] = session.Question{ID: id, Marks: 1}
	}
	return session.Blueprint{
		TestID: "t1",
		Flat:   true,
		Sections: []session.Section{
			{ID: "main", Name: "main", DurationSeconds: durationSeconds, Questions: qs},
		},
	}
}

func TestRehydrateEngine_ReplaysDowntimeAfterRestore(t *testing.T) {
	snap := session.Snapshot{
		Answers:          map[string]string{"q1": "B"},
		Visited:          []string{"q1"},
		RemainingSeconds: 590,
		ElapsedSeconds:   10,
	}

	// 10 s were ticked before the snapshot was written; 30 more passed while
	// no process held the attempt. Only the 30 get replayed.
	e := rehydrateEngine(attemptBlueprint(600, "q1", "q2"),
		session.Options{AutoSubmitOnTimeout: true}, snap, true, 40)

	if got := e.Remaining(); got != 560 {
		t.Errorf("Remaining() = %d, want 560", got)
	}
	restored := e.Snapshot()
	if restored.Answers["q1"] != "B" {
		t.Errorf(`Answers["q1"] = %q, want B`, restored.Answers["q1"])
	}
	if restored.ElapsedSeconds != 40 {
		t.Errorf("ElapsedSeconds = %d, want 40", restored.ElapsedSeconds)
	}
}

func TestRehydrateEngine_NoSnapshotBurnsWholeGap(t *testing.T) {
	e := rehydrateEngine(attemptBlueprint(600, "q1"),
		session.Options{AutoSubmitOnTimeout: true}, session.Snapshot{}, false, 30)

	if got := e.Remaining(); got != 570 {
		t.Errorf("Remaining() = %d, want 570", got)
	}
}

func TestRehydrateEngine_SnapshotNewerThanClockTicksNothing(t *testing.T) {
	snap := session.Snapshot{
		RemainingSeconds: 590,
		ElapsedSeconds:   10,
	}

	// Clock skew: the snapshot already accounts for more seconds than the
	// wall-clock gap. Nothing extra is deducted.
	e := rehydrateEngine(attemptBlueprint(600, "q1"),
		session.Options{AutoSubmitOnTimeout: true}, snap, true, 5)

	if got := e.Remaining(); got != 590 {
		t.Errorf("Remaining() = %d, want 590", got)
	}
}

func TestRehydrateEngine_GapPastTimeoutForcesSubmission(t *testing.T) {
	snap := session.Snapshot{
		RemainingSeconds: 15,
		ElapsedSeconds:   5,
	}

	e := rehydrateEngine(attemptBlueprint(20, "q1"),
		session.Options{AutoSubmitOnTimeout: true}, snap, true, 120)

	if got := e.Remaining(); got != 0 {
		t.Errorf("Remaining() = %d, want 0", got)
	}
	if sub := e.BuildSubmission(); !sub.Forced {
		t.Error("downtime past the deadline must leave the attempt force-submitted")
	}
}
