package model

import "time"

// Learner represents a learner (test taker) account.
type Learner struct {
	ID           int       `json:"id"`
	RollNumber   string    `json:"roll_number"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Batch        string    `json:"batch"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LearnerLoginRequest is the payload for learner authentication.
type LearnerLoginRequest struct {
	RollNumber string `json:"roll_number" binding:"required,min=3,max=30"`
	Password   string `json:"password" binding:"required,min=4,max=128"`
}

// LearnerLoginResponse is returned after successful learner login.
type LearnerLoginResponse struct {
	Token   string  `json:"token"`
	Learner Learner `json:"learner"`
}

// CreateLearnerRequest is the payload for creating a new learner account.
type CreateLearnerRequest struct {
	RollNumber string `json:"roll_number" binding:"required,min=3,max=30"`
	Name       string `json:"name" binding:"required,min=2,max=100"`
	Email      string `json:"email" binding:"required,email,max=255"`
	Batch      string `json:"batch" binding:"omitempty,max=50"`
	Password   string `json:"password" binding:"required,min=6,max=128"`
}

// UpdateLearnerRequest is the payload for updating an existing learner.
type UpdateLearnerRequest struct {
	RollNumber string `json:"roll_number" binding:"required,min=3,max=30"`
	Name       string `json:"name" binding:"required,min=2,max=100"`
	Email      string `json:"email" binding:"required,email,max=255"`
	Batch      string `json:"batch" binding:"omitempty,max=50"`
	Password   string `json:"password" binding:"omitempty,min=6,max=128"`
}
