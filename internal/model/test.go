package model

import (
	"time"

	"github.com/google/uuid"
)

// TestType enumerates the kinds of tests the portal serves.
type TestType string

const (
	TestTypeAssessment TestType = "ASSESSMENT"
	TestTypePractice   TestType = "PRACTICE"
	TestTypeAssignment TestType = "ASSIGNMENT"
	TestTypeMock       TestType = "MOCK_TEST"
	TestTypeCompany    TestType = "COMPANY_TEST"
)

// TestStatus enumerates the possible states of a test.
type TestStatus string

const (
	TestStatusDraft     TestStatus = "DRAFT"
	TestStatusPublished TestStatus = "PUBLISHED"
	TestStatusArchived  TestStatus = "ARCHIVED"
)

// Test represents a test entity. A test either carries a flat ordered
// question list or an ordered list of sections, never both.
type Test struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	SubjectID       *int       `json:"subject_id,omitempty"`
	CompanyName     string     `json:"company_name,omitempty"`
	Type            TestType   `json:"type"`
	AuthorID        int        `json:"author_id"`
	ScheduledStart  *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd    *time.Time `json:"scheduled_end,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalMarks      float64    `json:"total_marks"`
	HasSections     bool       `json:"has_sections"`
	// Proctored enables tab-switch / fullscreen-exit violation tracking.
	// Violation detection is advisory only — it observes browser-reported
	// signals and is not a tamper-proof security boundary.
	Proctored bool `json:"proctored"`
	// ViolationThreshold is the violation count that forces submission.
	// Zero falls back to the configured portal default.
	ViolationThreshold int        `json:"violation_threshold"`
	Status             TestStatus `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Section is a timed, ordered sub-block of a sectioned test. Sections are
// traversed sequentially and cannot be revisited once passed.
type Section struct {
	ID               uuid.UUID `json:"id"`
	TestID           uuid.UUID `json:"test_id"`
	Name             string    `json:"name"`
	OrderNum         int       `json:"order_num"`
	DurationMinutes  int       `json:"duration_minutes"`
	QuestionCount    int       `json:"question_count"`
	MarksPerQuestion float64   `json:"marks_per_question"`
}

// CreateTestRequest is the payload for creating a new test.
type CreateTestRequest struct {
	Title              string                 `json:"title" binding:"required,min=3,max=255"`
	Description        string                 `json:"description" binding:"omitempty,max=2000"`
	SubjectID          *int                   `json:"subject_id" binding:"omitempty"`
	CompanyName        string                 `json:"company_name" binding:"omitempty,max=100"`
	Type               TestType               `json:"type" binding:"required,oneof=ASSESSMENT PRACTICE ASSIGNMENT MOCK_TEST COMPANY_TEST"`
	ScheduledStart     *time.Time             `json:"scheduled_start" binding:"omitempty"`
	ScheduledEnd       *time.Time             `json:"scheduled_end" binding:"omitempty,gtfield=ScheduledStart"`
	DurationMinutes    int                    `json:"duration_minutes" binding:"required,min=1,max=480"`
	Proctored          bool                   `json:"proctored"`
	ViolationThreshold int                    `json:"violation_threshold" binding:"omitempty,min=1,max=10"`
	Sections           []CreateSectionRequest `json:"sections" binding:"omitempty,dive"`
}

// CreateSectionRequest describes one section of a sectioned test.
type CreateSectionRequest struct {
	Name             string  `json:"name" binding:"required,min=1,max=100"`
	DurationMinutes  int     `json:"duration_minutes" binding:"required,min=1,max=240"`
	MarksPerQuestion float64 `json:"marks_per_question" binding:"required,gt=0"`
}

// UpdateTestRequest is the payload for updating an existing test.
type UpdateTestRequest struct {
	Title              string     `json:"title" binding:"omitempty,min=3,max=255"`
	Description        string     `json:"description" binding:"omitempty,max=2000"`
	SubjectID          *int       `json:"subject_id" binding:"omitempty"`
	CompanyName        string     `json:"company_name" binding:"omitempty,max=100"`
	ScheduledStart     *time.Time `json:"scheduled_start" binding:"omitempty"`
	ScheduledEnd       *time.Time `json:"scheduled_end" binding:"omitempty,gtfield=ScheduledStart"`
	DurationMinutes    int        `json:"duration_minutes" binding:"omitempty,min=1,max=480"`
	Proctored          *bool      `json:"proctored" binding:"omitempty"`
	ViolationThreshold *int       `json:"violation_threshold" binding:"omitempty,min=1,max=10"`
}

// TestPaper is the Redis-cached payload served to learners. Correct answers
// are stripped unless the test type is PRACTICE (instant feedback).
type TestPaper struct {
	TestID          uuid.UUID            `json:"test_id"`
	Title           string               `json:"title"`
	Type            TestType             `json:"type"`
	DurationMinutes int                  `json:"duration_minutes"`
	HasSections     bool                 `json:"has_sections"`
	Sections        []SectionPaper       `json:"sections,omitempty"`
	Questions       []QuestionForLearner `json:"questions,omitempty"`
}

// SectionPaper is one section of a paper as served to learners.
type SectionPaper struct {
	ID              uuid.UUID            `json:"id"`
	Name            string               `json:"name"`
	DurationMinutes int                  `json:"duration_minutes"`
	Questions       []QuestionForLearner `json:"questions"`
}

// QuestionForLearner is a question as served to learners. CorrectOption is
// populated only for PRACTICE papers.
type QuestionForLearner struct {
	ID            uuid.UUID `json:"id"`
	Text          string    `json:"text"`
	ImageURL      string    `json:"image_url,omitempty"`
	Options       []Option  `json:"options"`
	Marks         float64   `json:"marks"`
	IsCoding      bool      `json:"is_coding,omitempty"`
	CorrectOption string    `json:"correct_option,omitempty"`
	OrderNum      int       `json:"order_num"`
}
