package session

// QuestionStatus is the reviewable state of a single question within an
// attempt. Marking for review dominates: a marked question reports MARKED or
// ANSWERED_MARKED regardless of navigation state.
type QuestionStatus string

const (
	StatusNotVisited     QuestionStatus = "NOT_VISITED"
	StatusNotAnswered    QuestionStatus = "NOT_ANSWERED"
	StatusAnswered       QuestionStatus = "ANSWERED"
	StatusMarked         QuestionStatus = "MARKED"
	StatusAnsweredMarked QuestionStatus = "ANSWERED_MARKED"
)

// NavResult reports where SaveAndNext landed.
type NavResult int

const (
	// NavNext means the cursor advanced to the next question in the section.
	NavNext NavResult = iota
	// NavSectionComplete means the current section has no further questions
	// but later sections remain; the caller should prompt for AdvanceSection.
	NavSectionComplete
	// NavLastQuestion means no question remains anywhere; the caller should
	// prompt for submission.
	NavLastQuestion
)

// Effect is a side effect requested by the engine in response to a tick or a
// violation report. Callers act on it exactly once.
type Effect int

const (
	EffectNone Effect = iota
	// EffectSectionAdvanced — the active section's countdown reached zero and
	// the engine moved to the next section with a fresh countdown.
	EffectSectionAdvanced
	// EffectTimeExpired — the final countdown reached zero but this test type
	// is exempt from forced submission (practice mode).
	EffectTimeExpired
	// EffectForceSubmit — the attempt must be submitted now (final timeout or
	// violation threshold). Emitted at most once per attempt.
	EffectForceSubmit
)
