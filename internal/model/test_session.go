package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates test attempt states.
type SessionStatus string

const (
	SessionStatusInProgress SessionStatus = "IN_PROGRESS"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
)

// TestSession represents a learner's attempt at one test.
type TestSession struct {
	ID             uuid.UUID     `json:"id"`
	TestID         uuid.UUID     `json:"test_id"`
	LearnerID      int           `json:"learner_id"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     *time.Time    `json:"finished_at,omitempty"`
	Status         SessionStatus `json:"status"`
	FinalScore     *float64      `json:"final_score,omitempty"`
	ViolationCount int           `json:"violation_count"`
	// ForcedSubmit records whether the attempt was closed by timer expiry or
	// the violation threshold rather than by explicit learner action.
	ForcedSubmit bool `json:"forced_submit"`
	// Progress is a jsonb snapshot of per-question status (visited, marked,
	// cursor) persisted asynchronously for reload recovery and monitoring.
	Progress json.RawMessage `json:"progress,omitempty"`
}

// SessionStateResponse is the resume payload served after a page reload:
// everything the client needs to re-hydrate the session controller.
type SessionStateResponse struct {
	TestID           uuid.UUID         `json:"test_id"`
	LearnerID        int               `json:"learner_id"`
	Answers          map[string]string `json:"answers"`
	MarkedForReview  []string          `json:"marked_for_review"`
	Visited          []string          `json:"visited"`
	SectionIndex     int               `json:"section_index"`
	QuestionIndex    int               `json:"question_index"`
	RemainingSeconds float64           `json:"remaining_seconds"`
	ViolationCount   int               `json:"violation_count"`
}

// ViolationEvent is a single proctoring violation reported by the client.
// Kind is advisory (tab_hidden, fullscreen_exit); the raw payload is kept
// verbatim for faculty review.
type ViolationEvent struct {
	Kind    string `json:"kind" binding:"required,oneof=tab_hidden fullscreen_exit"`
	Payload string `json:"payload" binding:"omitempty,max=2000"`
}
