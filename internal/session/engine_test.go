package session

import (
	"testing"
)

func flatBlueprint(durationSeconds int, questionIDs ...string) Blueprint {
	qs := make([]Question, 0, len(questionIDs))
	for _, id := range questionIDs {
		qs = append(qs, Question{ID: id, Marks: 1})
	}
	return Blueprint{
		TestID: "test-1",
		Flat:   true,
		Sections: []Section{
			{ID: "main", DurationSeconds: durationSeconds, Questions: qs},
		},
	}
}

func sectionedBlueprint(d1, d2 int) Blueprint {
	return Blueprint{
		TestID: "test-2",
		Sections: []Section{
			{ID: "s1", Name: "Aptitude", DurationSeconds: d1, Questions: []Question{
				{ID: "q1", Marks: 1}, {ID: "q2", Marks: 1},
			}},
			{ID: "s2", Name: "Verbal", DurationSeconds: d2, Questions: []Question{
				{ID: "q3", Marks: 2}, {ID: "q4", Marks: 2},
			}},
		},
	}
}

func strictOptions() Options {
	return Options{AutoSubmitOnTimeout: true, ViolationThreshold: 3}
}

func TestSelectAnswer_ImpliesVisited(t *testing.T) {
	e := NewEngine(flatBlueprint(60, "q1", "q2"), strictOptions())

	if err := e.SelectAnswer("q2", "C"); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}

	snap := e.Snapshot()
	if snap.Answers["q2"] != "C" {
		t.Errorf("answers[q2] = %q, want C", snap.Answers["q2"])
	}
	if got := e.Status("q2"); got != StatusAnswered {
		t.Errorf("Status(q2) = %s, want %s", got, StatusAnswered)
	}
	found := false
	for _, id := range snap.Visited {
		if id == "q2" {
			found = true
		}
	}
	if !found {
		t.Error("answered question must be visited")
	}
}

func TestSelectAnswer_RejectsInvalidLetters(t *testing.T) {
	e := NewEngine(flatBlueprint(60, "q1"), strictOptions())

	for _, letter := range []string{"", "E", "a", "AB", "1"} {
		if err := e.SelectAnswer("q1", letter); err != ErrInvalidOption {
			t.Errorf("SelectAnswer(%q) = %v, want ErrInvalidOption", letter, err)
		}
	}
	if _, ok := e.Snapshot().Answers["q1"]; ok {
		t.Error("rejected selection must not be recorded")
	}
}

func TestSelectAnswer_UnknownQuestion(t *testing.T) {
	e := NewEngine(flatBlueprint(60, "q1"), strictOptions())
	if err := e.SelectAnswer("ghost", "A"); err != ErrUnknownQuestion {
		t.Errorf("err = %v, want ErrUnknownQuestion", err)
	}
}

func TestToggleReview_Involution(t *testing.T) {
	e := NewEngine(flatBlueprint(60, "q1"), strictOptions())

	if err := e.ToggleReview("q1"); err != nil {
		t.Fatalf("ToggleReview: %v", err)
	}
	if got := e.Status("q1"); got != StatusMarked {
		t.Errorf("after one toggle: %s, want %s", got, StatusMarked)
	}
	if err := e.ToggleReview("q1"); err != nil {
		t.Fatalf("ToggleReview: %v", err)
	}
	if got := e.Status("q1"); got != StatusNotAnswered {
		t.Errorf("after two toggles: %s, want %s (visited, unanswered)", got, StatusNotAnswered)
	}
}

func TestReviewMark_IndependentOfAnswer(t *testing.T) {
	e := NewEngine(flatBlueprint(60, "q1"), strictOptions())

	if err := e.SelectAnswer("q1", "B"); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if err := e.ToggleReview("q1"); err != nil {
		t.Fatalf("ToggleReview: %v", err)
	}
	if got := e.Status("q1"); got != StatusAnsweredMarked {
		t.Errorf("Status = %s, want %s", got, StatusAnsweredMarked)
	}
}

func TestClearResponse_ThenReselect(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		wantStatus QuestionStatus
	}{
		{
			name:       "review preserved by default",
			opts:       Options{AutoSubmitOnTimeout: true},
			wantStatus: StatusAnsweredMarked,
		},
		{
			name: "auto-clear variant drops review on answer",
			opts: Options{AutoSubmitOnTimeout: true, AutoClearReviewOnAnswer: true},
			wantStatus: StatusAnswered,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEngine(flatBlueprint(60, "q1"), tc.opts)

			if err := e.SelectAnswer("q1", "A"); err != nil {
				t.Fatalf("SelectAnswer: %v", err)
			}
			if err := e.ToggleReview("q1"); err != nil {
				t.Fatalf("ToggleReview: %v", err)
			}
			if err := e.ClearResponse("q1"); err != nil {
				t.Fatalf("ClearResponse: %v", err)
			}
			if err := e.SelectAnswer("q1", "D"); err != nil {
				t.Fatalf("SelectAnswer: %v", err)
			}

			if got := e.Snapshot().Answers["q1"]; got != "D" {
				t.Errorf("answers[q1] = %q, want D", got)
			}
			if got := e.Status("q1"); got != tc.wantStatus {
				t.Errorf("Status = %s, want %s", got, tc.wantStatus)
			}
		})
	}
}

func TestStatus_ReachableStates(t *testing.T) {
	e := NewEngine(flatBlueprint(60, "q1", "q2", "q3", "q4"), strictOptions())

	// q1 was visited by the initial render; q2..q4 untouched so far.
	if got := e.Status("q2"); got != StatusNotVisited {
		t.Errorf("untouched question: %s, want %s", got, StatusNotVisited)
	}
	if got := e.Status("q1"); got != StatusNotAnswered {
		t.Errorf("first question after render: %s, want %s", got, StatusNotAnswered)
	}

	if err := e.Visit("q2"); err != nil {
		t.Fatalf("Visit: %v", err)
	}
	if err := e.SelectAnswer("q3", "A"); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	if err := e.ToggleReview("q4"); err != nil {
		t.Fatalf("ToggleReview: %v", err)
	}

	want := map[string]QuestionStatus{
		"q1": StatusNotAnswered,
		"q2": StatusNotAnswered,
		"q3": StatusAnswered,
		"q4": StatusMarked,
	}
	for q, w := range want {
		if got := e.Status(q); got != w {
			t.Errorf("Status(%s) = %s, want %s", q, got, w)
		}
	}
}

func TestFlatTimeout_ForcesSubmissionExactlyOnce(t *testing.T) {
	// 1-minute flat test: tick 60 times with no learner input.
	e := NewEngine(flatBlueprint(60, "q1", "q2"), strictOptions())

	forced := 0
	for i := 0; i < 60; i++ {
		if eff := e.Tick(); eff == EffectForceSubmit {
			forced++
			if i != 59 {
				t.Errorf("forced submission at tick %d, want tick 59", i)
			}
		}
	}
	if forced != 1 {
		t.Fatalf("forced submissions = %d, want exactly 1", forced)
	}

	// Further ticks must stay silent.
	for i := 0; i < 10; i++ {
		if eff := e.Tick(); eff != EffectNone {
			t.Fatalf("tick after force: effect %d, want none", eff)
		}
	}
}

func TestPracticeTimeout_NeverAutoSubmits(t *testing.T) {
	e := NewEngine(flatBlueprint(30, "q1"), Options{AutoSubmitOnTimeout: false})

	var last Effect
	for i := 0; i < 30; i++ {
		last = e.Tick()
	}
	if last != EffectTimeExpired {
		t.Fatalf("final tick effect = %d, want EffectTimeExpired", last)
	}

	// Overtime: countdown clamps at zero, no forced submission ever.
	for i := 0; i < 20; i++ {
		if eff := e.Tick(); eff != EffectNone {
			t.Fatalf("overtime tick effect = %d, want none", eff)
		}
	}
	if e.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", e.Remaining())
	}

	// The learner can still answer and submit explicitly.
	if err := e.SelectAnswer("q1", "B"); err != nil {
		t.Errorf("answering in practice overtime: %v", err)
	}
}

func TestSectionTimeout_AdvancesWithFreshCountdown(t *testing.T) {
	bp := sectionedBlueprint(120, 180)
	e := NewEngine(bp, strictOptions())

	for i := 0; i < 119; i++ {
		if eff := e.Tick(); eff != EffectNone {
			t.Fatalf("tick %d: effect %d, want none", i, eff)
		}
	}
	if eff := e.Tick(); eff != EffectSectionAdvanced {
		t.Fatalf("tick 120: effect %d, want EffectSectionAdvanced", eff)
	}

	if e.SectionIndex() != 1 {
		t.Errorf("SectionIndex = %d, want 1", e.SectionIndex())
	}
	// The advancing tick must not also decrement the new section.
	if e.Remaining() != 180 {
		t.Errorf("Remaining = %d, want 180 (no double decrement)", e.Remaining())
	}

	// Second section runs its full course and then forces submission.
	for i := 0; i < 179; i++ {
		if eff := e.Tick(); eff != EffectNone {
			t.Fatalf("section 2 tick %d: effect %d, want none", i, eff)
		}
	}
	if eff := e.Tick(); eff != EffectForceSubmit {
		t.Fatalf("final tick: effect %d, want EffectForceSubmit", eff)
	}
}

func TestSectionProgression_NoWayBack(t *testing.T) {
	e := NewEngine(sectionedBlueprint(120, 180), strictOptions())

	if err := e.SelectAnswer("q1", "A"); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	// Future section is not open yet.
	if err := e.SelectAnswer("q3", "A"); err != ErrSectionLocked {
		t.Errorf("answering future section: %v, want ErrSectionLocked", err)
	}

	if err := e.AdvanceSection(); err != nil {
		t.Fatalf("AdvanceSection: %v", err)
	}
	// Past section is sealed.
	if err := e.SelectAnswer("q2", "B"); err != ErrSectionLocked {
		t.Errorf("answering sealed section: %v, want ErrSectionLocked", err)
	}
	if err := e.AdvanceSection(); err != ErrNoFurtherSections {
		t.Errorf("advancing past last section: %v, want ErrNoFurtherSections", err)
	}
}

func TestSaveAndNext_Navigation(t *testing.T) {
	e := NewEngine(sectionedBlueprint(120, 180), strictOptions())

	nav, err := e.SaveAndNext()
	if err != nil || nav != NavNext {
		t.Fatalf("SaveAndNext = (%d, %v), want (NavNext, nil)", nav, err)
	}
	if got := e.Status("q2"); got != StatusNotAnswered {
		t.Errorf("next question not visited: %s", got)
	}

	nav, err = e.SaveAndNext()
	if err != nil || nav != NavSectionComplete {
		t.Fatalf("SaveAndNext at section end = (%d, %v), want (NavSectionComplete, nil)", nav, err)
	}

	if err := e.AdvanceSection(); err != nil {
		t.Fatalf("AdvanceSection: %v", err)
	}
	if _, err := e.SaveAndNext(); err != nil {
		t.Fatalf("SaveAndNext: %v", err)
	}
	nav, err = e.SaveAndNext()
	if err != nil || nav != NavLastQuestion {
		t.Fatalf("SaveAndNext at test end = (%d, %v), want (NavLastQuestion, nil)", nav, err)
	}
}

func TestViolationThreshold_ForcesSubmissionOnce(t *testing.T) {
	e := NewEngine(flatBlueprint(600, "q1"), strictOptions())

	// Three tab-hide events in succession: exactly one forced submission.
	effects := make([]Effect, 0, 4)
	for i := 0; i < 4; i++ {
		_, eff := e.ReportViolation()
		effects = append(effects, eff)
	}

	want := []Effect{EffectNone, EffectNone, EffectForceSubmit, EffectNone}
	for i := range want {
		if effects[i] != want[i] {
			t.Errorf("violation %d: effect %d, want %d", i+1, effects[i], want[i])
		}
	}
	if e.ViolationCount() != 4 {
		t.Errorf("ViolationCount = %d, want 4", e.ViolationCount())
	}
}

func TestViolations_DisabledWhenThresholdZero(t *testing.T) {
	e := NewEngine(flatBlueprint(600, "q1"), Options{AutoSubmitOnTimeout: true})

	for i := 0; i < 10; i++ {
		if _, eff := e.ReportViolation(); eff != EffectNone {
			t.Fatalf("violation %d triggered effect %d with threshold 0", i+1, eff)
		}
	}
}

func TestBuildSubmission_CoversEveryQuestion(t *testing.T) {
	// Test with 2 questions, 1 minute: learner answers q1=B, never visits q2,
	// then time expires.
	e := NewEngine(flatBlueprint(60, "q1", "q2"), strictOptions())

	if err := e.SelectAnswer("q1", "B"); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	for i := 0; i < 60; i++ {
		e.Tick()
	}

	sub := e.BuildSubmission()
	if len(sub.Answers) != 2 {
		t.Fatalf("len(Answers) = %d, want 2 (all questions, answered or not)", len(sub.Answers))
	}
	if sub.Answers[0].QuestionID != "q1" || sub.Answers[0].SelectedAnswer != "B" {
		t.Errorf("row 0 = %+v, want q1/B", sub.Answers[0])
	}
	if sub.Answers[1].QuestionID != "q2" || sub.Answers[1].SelectedAnswer != NotAnsweredSentinel {
		t.Errorf("row 1 = %+v, want q2/%s", sub.Answers[1], NotAnsweredSentinel)
	}
	if sub.ViolationCount != 0 {
		t.Errorf("ViolationCount = %d, want 0", sub.ViolationCount)
	}
	if !sub.Forced {
		t.Error("timeout submission must be marked forced")
	}
	if sub.TotalTimeSeconds != 60 {
		t.Errorf("TotalTimeSeconds = %d, want 60", sub.TotalTimeSeconds)
	}
}

func TestTick_AccruesPerQuestionTime(t *testing.T) {
	e := NewEngine(flatBlueprint(600, "q1", "q2"), strictOptions())

	for i := 0; i < 10; i++ {
		e.Tick()
	}
	if _, err := e.SaveAndNext(); err != nil {
		t.Fatalf("SaveAndNext: %v", err)
	}
	for i := 0; i < 5; i++ {
		e.Tick()
	}

	sub := e.BuildSubmission()
	if sub.Answers[0].TimeSpentSeconds != 10 {
		t.Errorf("q1 time = %d, want 10", sub.Answers[0].TimeSpentSeconds)
	}
	if sub.Answers[1].TimeSpentSeconds != 5 {
		t.Errorf("q2 time = %d, want 5", sub.Answers[1].TimeSpentSeconds)
	}
	if sub.TotalTimeSeconds != 15 {
		t.Errorf("total = %d, want 15", sub.TotalTimeSeconds)
	}
}

func TestSubmitGuard_SingleOutstanding(t *testing.T) {
	e := NewEngine(flatBlueprint(60, "q1"), strictOptions())
	if err := e.SelectAnswer("q1", "C"); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}

	if err := e.BeginSubmit(); err != nil {
		t.Fatalf("BeginSubmit: %v", err)
	}
	if err := e.BeginSubmit(); err != ErrSubmitInFlight {
		t.Errorf("duplicate BeginSubmit = %v, want ErrSubmitInFlight", err)
	}

	// Transport failure: state untouched, submit re-enabled.
	e.FinishSubmit(false)
	if e.Submitted() {
		t.Error("failed submission must not seal the attempt")
	}
	if got := e.Snapshot().Answers["q1"]; got != "C" {
		t.Errorf("answers after failed submit = %q, want C", got)
	}

	if err := e.BeginSubmit(); err != nil {
		t.Fatalf("retry BeginSubmit: %v", err)
	}
	e.FinishSubmit(true)
	if !e.Submitted() {
		t.Error("successful submission must seal the attempt")
	}
	if err := e.BeginSubmit(); err != ErrAlreadySubmitted {
		t.Errorf("BeginSubmit after success = %v, want ErrAlreadySubmitted", err)
	}
	if err := e.SelectAnswer("q1", "A"); err != ErrAlreadySubmitted {
		t.Errorf("mutating sealed attempt = %v, want ErrAlreadySubmitted", err)
	}
}
