package session

import (
	"errors"
	"time"
)

// NotAnsweredSentinel is recorded for questions the learner never answered.
// An explicit sentinel is used instead of defaulting to any option letter so
// grading cannot be biased toward one choice.
const NotAnsweredSentinel = "NOT_ANSWERED"

// Engine errors.
var (
	ErrInvalidOption     = errors.New("selected option must be one of A, B, C or D")
	ErrUnknownQuestion   = errors.New("question does not belong to this test")
	ErrSectionLocked     = errors.New("question is outside the active section")
	ErrNoFurtherSections = errors.New("no further sections remain")
	ErrSubmitInFlight    = errors.New("a submission is already in flight")
	ErrAlreadySubmitted  = errors.New("attempt has already been submitted")
)

// Question is the engine's view of a single question.
type Question struct {
	ID    string
	Marks float64
}

// Section is the engine's view of one timed sub-block. Flat tests are
// normalized to a single section spanning the whole duration.
type Section struct {
	ID              string
	Name            string
	DurationSeconds int
	Questions       []Question
}

// Blueprint is the immutable shape of a test attempt: ordered sections with
// ordered questions. It is built once at session start and never mutated.
type Blueprint struct {
	TestID   string
	Sections []Section
	// Flat marks a single-section blueprint derived from an unsectioned test.
	// The distinction only affects reporting; timing rules are identical to a
	// one-section test.
	Flat bool
}

// QuestionCount returns the total number of questions across all sections.
func (b *Blueprint) QuestionCount() int {
	n := 0
	for i := range b.Sections {
		n += len(b.Sections[i].Questions)
	}
	return n
}

// Options configure the behavioral variants of a session. The defaults model
// the strictest variant: review marks survive answering, timeouts force
// submission, proctoring disabled.
type Options struct {
	// AutoClearReviewOnAnswer removes the review mark when a question is
	// answered (some test-runner variants behave this way).
	AutoClearReviewOnAnswer bool
	// ClearReviewOnClear removes the review mark together with the answer on
	// clear-response.
	ClearReviewOnClear bool
	// AutoSubmitOnTimeout forces submission when the final countdown reaches
	// zero. Practice tests set this false: their countdown clamps at zero and
	// only learner action or the violation threshold ends the attempt.
	AutoSubmitOnTimeout bool
	// ViolationThreshold is the violation count that forces submission.
	// Zero disables violation-triggered submission entirely.
	ViolationThreshold int
}

// Submission is the payload assembled at the end of an attempt. Answers holds
// one row per question of the test, in blueprint order, regardless of how many
// were answered.
type Submission struct {
	TestID           string
	Answers          []AnswerRow
	TotalTimeSeconds int
	ViolationCount   int
	Forced           bool
}

// AnswerRow is one question's outcome within a submission.
type AnswerRow struct {
	QuestionID       string
	SelectedAnswer   string
	TimeSpentSeconds int
}

// Snapshot is a copy of the mutable session state, safe to serialize.
type Snapshot struct {
	Answers          map[string]string
	MarkedForReview  []string
	Visited          []string
	SectionIndex     int
	QuestionIndex    int
	RemainingSeconds int
	ElapsedSeconds   int
	ViolationCount   int
	Submitted        bool
}

// Engine drives one test attempt from the first question to submission:
// answer/visit/review bookkeeping, cursor navigation, countdown ticks, section
// progression, violation counting and submission assembly. It is pure state —
// no timers, no I/O — and is not safe for concurrent use; the Manager
// serializes access.
type Engine struct {
	bp   Blueprint
	opts Options

	answers   map[string]string
	marked    map[string]struct{}
	visited   map[string]struct{}
	timeSpent map[string]int
	qSection  map[string]int

	sectionIdx  int
	questionIdx int
	remaining   []int
	elapsed     int

	violations int
	forced     bool
	inFlight   bool
	submitted  bool
	startedAt  time.Time
}

// NewEngine builds an engine for the given blueprint. The first question of
// the first section is visited immediately — presenting it to the learner is
// what starts the attempt.
func NewEngine(bp Blueprint, opts Options) *Engine {
	e := &Engine{
		bp:        bp,
		opts:      opts,
		answers:   make(map[string]string),
		marked:    make(map[string]struct{}),
		visited:   make(map[string]struct{}),
		timeSpent: make(map[string]int),
		qSection:  make(map[string]int),
		remaining: make([]int, len(bp.Sections)),
		startedAt: time.Now(),
	}
	for i := range bp.Sections {
		e.remaining[i] = bp.Sections[i].DurationSeconds
		for _, q := range bp.Sections[i].Questions {
			e.qSection[q.ID] = i
		}
	}
	if q, ok := e.currentQuestionID(); ok {
		e.visited[q] = struct{}{}
	}
	return e
}

func (e *Engine) currentQuestionID() (string, bool) {
	if e.sectionIdx >= len(e.bp.Sections) {
		return "", false
	}
	qs := e.bp.Sections[e.sectionIdx].Questions
	if e.questionIdx >= len(qs) {
		return "", false
	}
	return qs[e.questionIdx].ID, true
}

// checkActive validates that qID belongs to the active section of a live
// attempt. Past sections are sealed and future sections are not yet open.
func (e *Engine) checkActive(qID string) error {
	if e.submitted {
		return ErrAlreadySubmitted
	}
	sec, ok := e.qSection[qID]
	if !ok {
		return ErrUnknownQuestion
	}
	if sec != e.sectionIdx {
		return ErrSectionLocked
	}
	return nil
}

// Visit records that qID has been shown to the learner. Idempotent; the
// visited set is append-only for the life of the attempt.
func (e *Engine) Visit(qID string) error {
	if err := e.checkActive(qID); err != nil {
		return err
	}
	e.visited[qID] = struct{}{}
	return nil
}

// SelectAnswer records the learner's choice for qID. Answering implies
// visitation, so the invariant visited ⊇ keys(answers) holds unconditionally.
func (e *Engine) SelectAnswer(qID, letter string) error {
	if letter != "A" && letter != "B" && letter != "C" && letter != "D" {
		return ErrInvalidOption
	}
	if err := e.checkActive(qID); err != nil {
		return err
	}
	e.visited[qID] = struct{}{}
	e.answers[qID] = letter
	if e.opts.AutoClearReviewOnAnswer {
		delete(e.marked, qID)
	}
	return nil
}

// ClearResponse removes the recorded answer for qID, returning it to
// not-answered. The visited mark is never removed.
func (e *Engine) ClearResponse(qID string) error {
	if err := e.checkActive(qID); err != nil {
		return err
	}
	delete(e.answers, qID)
	if e.opts.ClearReviewOnClear {
		delete(e.marked, qID)
	}
	return nil
}

// ToggleReview flips the marked-for-review flag for qID, independent of its
// answer state. Marking implies the question was shown.
func (e *Engine) ToggleReview(qID string) error {
	if err := e.checkActive(qID); err != nil {
		return err
	}
	e.visited[qID] = struct{}{}
	if _, ok := e.marked[qID]; ok {
		delete(e.marked, qID)
	} else {
		e.marked[qID] = struct{}{}
	}
	return nil
}

// GoTo moves the cursor to qID within the active section (palette
// navigation) and visits it. Cross-section jumps are rejected.
func (e *Engine) GoTo(qID string) error {
	if err := e.checkActive(qID); err != nil {
		return err
	}
	for i, q := range e.bp.Sections[e.sectionIdx].Questions {
		if q.ID == qID {
			e.questionIdx = i
			e.visited[qID] = struct{}{}
			return nil
		}
	}
	return ErrUnknownQuestion
}

// SaveAndNext advances the cursor and visits the newly shown question. At the
// end of a section it does not advance by itself — the caller prompts the
// learner (or the section timer fires) and then calls AdvanceSection.
func (e *Engine) SaveAndNext() (NavResult, error) {
	if e.submitted {
		return NavNext, ErrAlreadySubmitted
	}
	qs := e.bp.Sections[e.sectionIdx].Questions
	if e.questionIdx+1 < len(qs) {
		e.questionIdx++
		e.visited[qs[e.questionIdx].ID] = struct{}{}
		return NavNext, nil
	}
	if e.sectionIdx+1 < len(e.bp.Sections) {
		return NavSectionComplete, nil
	}
	return NavLastQuestion, nil
}

// AdvanceSection seals the active section and opens the next one with its own
// fresh countdown. Progression is strictly forward; there is no way back.
func (e *Engine) AdvanceSection() error {
	if e.submitted {
		return ErrAlreadySubmitted
	}
	if e.sectionIdx+1 >= len(e.bp.Sections) {
		return ErrNoFurtherSections
	}
	e.advanceSection()
	return nil
}

func (e *Engine) advanceSection() {
	e.sectionIdx++
	e.questionIdx = 0
	if q, ok := e.currentQuestionID(); ok {
		e.visited[q] = struct{}{}
	}
}

// Tick consumes one second of the single active countdown and accrues
// per-question and total elapsed time. Exactly one countdown is live at any
// moment, so a section change can never double-decrement.
func (e *Engine) Tick() Effect {
	if e.submitted || e.forced {
		return EffectNone
	}
	e.elapsed++
	if q, ok := e.currentQuestionID(); ok {
		e.timeSpent[q]++
	}
	if e.remaining[e.sectionIdx] <= 0 {
		// Practice overtime: countdown stays clamped at zero.
		return EffectNone
	}
	e.remaining[e.sectionIdx]--
	if e.remaining[e.sectionIdx] > 0 {
		return EffectNone
	}
	if e.sectionIdx+1 < len(e.bp.Sections) {
		e.advanceSection()
		return EffectSectionAdvanced
	}
	if !e.opts.AutoSubmitOnTimeout {
		return EffectTimeExpired
	}
	return e.force()
}

// ReportViolation counts one proctoring violation (tab hidden, fullscreen
// exited). Crossing the configured threshold forces submission exactly once;
// further reports only increment the count. The signal is advisory — it
// cannot observe secondary devices or screen capture.
func (e *Engine) ReportViolation() (int, Effect) {
	if e.submitted {
		return e.violations, EffectNone
	}
	e.violations++
	if e.opts.ViolationThreshold > 0 && e.violations >= e.opts.ViolationThreshold {
		return e.violations, e.force()
	}
	return e.violations, EffectNone
}

// force marks the attempt as force-submitted. The EffectForceSubmit is
// emitted at most once regardless of how many triggers fire afterwards.
func (e *Engine) force() Effect {
	if e.forced {
		return EffectNone
	}
	e.forced = true
	return EffectForceSubmit
}

// Status reports the per-question state machine value for qID.
func (e *Engine) Status(qID string) QuestionStatus {
	_, answered := e.answers[qID]
	if _, marked := e.marked[qID]; marked {
		if answered {
			return StatusAnsweredMarked
		}
		return StatusMarked
	}
	if answered {
		return StatusAnswered
	}
	if _, visited := e.visited[qID]; visited {
		return StatusNotAnswered
	}
	return StatusNotVisited
}

// SectionIndex returns the active section cursor.
func (e *Engine) SectionIndex() int { return e.sectionIdx }

// Remaining returns the active section's remaining seconds.
func (e *Engine) Remaining() int { return e.remaining[e.sectionIdx] }

// ViolationCount returns the running violation count.
func (e *Engine) ViolationCount() int { return e.violations }

// Submitted reports whether the attempt has been finalized.
func (e *Engine) Submitted() bool { return e.submitted }

// Snapshot copies the mutable state for the resume endpoint and the progress
// persistence queue.
func (e *Engine) Snapshot() Snapshot {
	answers := make(map[string]string, len(e.answers))
	for k, v := range e.answers {
		answers[k] = v
	}
	marked := make([]string, 0, len(e.marked))
	visited := make([]string, 0, len(e.visited))
	for i := range e.bp.Sections {
		for _, q := range e.bp.Sections[i].Questions {
			if _, ok := e.marked[q.ID]; ok {
				marked = append(marked, q.ID)
			}
			if _, ok := e.visited[q.ID]; ok {
				visited = append(visited, q.ID)
			}
		}
	}
	return Snapshot{
		Answers:          answers,
		MarkedForReview:  marked,
		Visited:          visited,
		SectionIndex:     e.sectionIdx,
		QuestionIndex:    e.questionIdx,
		RemainingSeconds: e.remaining[e.sectionIdx],
		ElapsedSeconds:   e.elapsed,
		ViolationCount:   e.violations,
		Submitted:        e.submitted,
	}
}

// Restore rehydrates a fresh engine from a persisted snapshot, used when a
// learner rejoins after a process restart. Unknown question IDs in the
// snapshot are ignored rather than corrupting the maps.
func (e *Engine) Restore(snap Snapshot) {
	for qID, letter := range snap.Answers {
		if _, ok := e.qSection[qID]; ok {
			e.answers[qID] = letter
			e.visited[qID] = struct{}{}
		}
	}
	for _, qID := range snap.MarkedForReview {
		if _, ok := e.qSection[qID]; ok {
			e.marked[qID] = struct{}{}
		}
	}
	for _, qID := range snap.Visited {
		if _, ok := e.qSection[qID]; ok {
			e.visited[qID] = struct{}{}
		}
	}
	if snap.SectionIndex > 0 && snap.SectionIndex < len(e.bp.Sections) {
		e.sectionIdx = snap.SectionIndex
	}
	if qs := e.bp.Sections[e.sectionIdx].Questions; snap.QuestionIndex > 0 && snap.QuestionIndex < len(qs) {
		e.questionIdx = snap.QuestionIndex
	}
	if snap.RemainingSeconds >= 0 && snap.RemainingSeconds <= e.bp.Sections[e.sectionIdx].DurationSeconds {
		e.remaining[e.sectionIdx] = snap.RemainingSeconds
	}
	e.elapsed = snap.ElapsedSeconds
	e.violations = snap.ViolationCount
	if q, ok := e.currentQuestionID(); ok {
		e.visited[q] = struct{}{}
	}
}

// BuildSubmission assembles the final payload: one row for every question of
// the test in blueprint order, with NOT_ANSWERED for questions that have no
// recorded answer.
func (e *Engine) BuildSubmission() Submission {
	sub := Submission{
		TestID:           e.bp.TestID,
		Answers:          make([]AnswerRow, 0, e.bp.QuestionCount()),
		TotalTimeSeconds: e.elapsed,
		ViolationCount:   e.violations,
		Forced:           e.forced,
	}
	for i := range e.bp.Sections {
		for _, q := range e.bp.Sections[i].Questions {
			selected, ok := e.answers[q.ID]
			if !ok {
				selected = NotAnsweredSentinel
			}
			sub.Answers = append(sub.Answers, AnswerRow{
				QuestionID:       q.ID,
				SelectedAnswer:   selected,
				TimeSpentSeconds: e.timeSpent[q.ID],
			})
		}
	}
	return sub
}

// BeginSubmit acquires the single-outstanding submission slot. While a
// submission is in flight, repeated submit calls are rejected rather than
// duplicated.
func (e *Engine) BeginSubmit() error {
	if e.submitted {
		return ErrAlreadySubmitted
	}
	if e.inFlight {
		return ErrSubmitInFlight
	}
	e.inFlight = true
	return nil
}

// FinishSubmit releases the submission slot. On failure all session state is
// left untouched so the learner can retry; on success the attempt is sealed.
func (e *Engine) FinishSubmit(ok bool) {
	e.inFlight = false
	if ok {
		e.submitted = true
	}
}
