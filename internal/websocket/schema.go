package websocket

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionVisit          Action = "visit"
	ActionAnswer         Action = "answer"
	ActionClear          Action = "clear"
	ActionMark           Action = "mark"
	ActionGoto           Action = "goto"
	ActionNext           Action = "next"
	ActionAdvanceSection Action = "advance_section"
	ActionViolation      Action = "violation"
	ActionSubmit         Action = "submit"
	ActionState          Action = "state"
	ActionPing           Action = "ping"
)

// RequestPayload is the single client message shape; unused fields stay empty
// for actions that don't need them.
type RequestPayload struct {
	Action Action `json:"action"`
	QID    string `json:"q_id,omitempty"`
	Answer string `json:"ans,omitempty"`
	// Violation reports.
	Kind    string `json:"kind,omitempty"`
	Payload string `json:"payload,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventSaved           Event = "saved"
	EventState           Event = "state"
	EventSectionAdvanced Event = "section_advanced"
	EventTimeExpired     Event = "time_expired"
	EventForceSubmit     Event = "force_submit"
	EventSubmitted       Event = "submitted"
	EventError           Event = "error"
	EventPong            Event = "pong"
)

// SavedResponse acknowledges a bookkeeping action, echoing the question's
// resulting status so the client palette stays in sync.
type SavedResponse struct {
	Event  Event  `json:"event"`
	QID    string `json:"q_id,omitempty"`
	Status string `json:"status,omitempty"`
	// Nav reports where a "next" action landed: "next", "section_complete"
	// or "last_question".
	Nav string `json:"nav,omitempty"`
}

// StateResponse carries a full session snapshot (resume, section advance).
type StateResponse struct {
	Event            Event             `json:"event"`
	Answers          map[string]string `json:"answers"`
	MarkedForReview  []string          `json:"marked_for_review"`
	Visited          []string          `json:"visited"`
	SectionIndex     int               `json:"section_index"`
	QuestionIndex    int               `json:"question_index"`
	RemainingSeconds int               `json:"remaining_seconds"`
	ViolationCount   int               `json:"violation_count"`
}

// TimerResponse is pushed by the server on timer-driven transitions.
type TimerResponse struct {
	Event            Event `json:"event"`
	SectionIndex     int   `json:"section_index,omitempty"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// ViolationResponse acknowledges a violation report.
type ViolationResponse struct {
	Event          Event `json:"event"`
	ViolationCount int   `json:"violation_count"`
	Forced         bool  `json:"forced"`
}

// SubmittedResponse closes an attempt.
type SubmittedResponse struct {
	Event  Event  `json:"event"`
	Status string `json:"status"`
	Forced bool   `json:"forced"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
