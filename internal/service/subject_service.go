package service

import (
	"context"

	"github.com/testport/testport-backend/internal/model"
	"github.com/testport/testport-backend/internal/repository"
)

// SubjectService handles subject business logic.
type SubjectService struct {
	repo *repository.SubjectRepository
}

// NewSubjectService creates a new SubjectService.
func NewSubjectService(repo *repository.SubjectRepository) *SubjectService {
	return &SubjectService{repo: repo}
}

// List retrieves all subjects.
func (s *SubjectService) List(ctx context.Context) ([]model.Subject, error) {
	subjects, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if subjects == nil {
		subjects = []model.Subject{}
	}
	return subjects, nil
}

// Create inserts a new subject.
func (s *SubjectService) Create(ctx context.Context, subject *model.Subject) error {
	return s.repo.Create(ctx, subject)
}

// Update renames a subject.
func (s *SubjectService) Update(ctx context.Context, subject *model.Subject) error {
	return s.repo.Update(ctx, subject)
}

// Delete removes a subject.
func (s *SubjectService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
