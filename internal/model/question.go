package model

import (
	"github.com/google/uuid"
)

// OptionLetters are the only valid answer letters for MCQ questions.
var OptionLetters = []string{"A", "B", "C", "D"}

// IsValidOptionLetter reports whether letter is one of A, B, C or D.
func IsValidOptionLetter(letter string) bool {
	for _, l := range OptionLetters {
		if l == letter {
			return true
		}
	}
	return false
}

// Option is a single lettered answer choice.
type Option struct {
	Letter   string `json:"letter"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
}

// Question represents a single test question with four lettered options.
type Question struct {
	ID            uuid.UUID  `json:"id"`
	TestID        uuid.UUID  `json:"test_id"`
	SectionID     *uuid.UUID `json:"section_id,omitempty"`
	Text          string     `json:"text"`
	ImageURL      string     `json:"image_url,omitempty"`
	Options       []Option   `json:"options"`
	CorrectOption string     `json:"correct_option"`
	Marks         float64    `json:"marks"`
	IsCoding      bool       `json:"is_coding"`
	OrderNum      int        `json:"order_num"`
}

// AddQuestionRequest is the payload for adding a question to a test.
type AddQuestionRequest struct {
	SectionID     *uuid.UUID         `json:"section_id" binding:"omitempty"`
	Text          string             `json:"text" binding:"required,min=1,max=4000"`
	ImageURL      string             `json:"image_url" binding:"omitempty,max=500"`
	Options       []AddOptionRequest `json:"options" binding:"required,len=4,dive"`
	CorrectOption string             `json:"correct_option" binding:"required,oneof=A B C D"`
	Marks         float64            `json:"marks" binding:"required,gt=0"`
	IsCoding      bool               `json:"is_coding"`
	OrderNum      int                `json:"order_num" binding:"min=0"`
}

// AddOptionRequest describes one answer choice.
type AddOptionRequest struct {
	Letter   string `json:"letter" binding:"required,oneof=A B C D"`
	Text     string `json:"text" binding:"required,min=1,max=2000"`
	ImageURL string `json:"image_url" binding:"omitempty,max=500"`
}

// ReplaceQuestionsRequest is the payload for bulk replacing questions.
type ReplaceQuestionsRequest struct {
	Questions []AddQuestionRequest `json:"questions" binding:"dive"`
}
