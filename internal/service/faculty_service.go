package service

import (
	"context"
	"fmt"

	"github.com/testport/testport-backend/internal/model"
	"github.com/testport/testport-backend/internal/repository"
)

// FacultyService handles faculty account management business logic.
type FacultyService struct {
	facultyRepo *repository.FacultyRepository
	authSvc     *AuthService
}

// NewFacultyService creates a new FacultyService.
func NewFacultyService(facultyRepo *repository.FacultyRepository, authSvc *AuthService) *FacultyService {
	return &FacultyService{facultyRepo: facultyRepo, authSvc: authSvc}
}

// GetByID retrieves a faculty account by ID.
func (s *FacultyService) GetByID(ctx context.Context, id int) (*model.Faculty, error) {
	return s.facultyRepo.GetByID(ctx, id)
}

func (s *FacultyService) GetByEmail(ctx context.Context, email string) (*model.Faculty, error) {
	return s.facultyRepo.GetByEmail(ctx, email)
}

// List retrieves all faculty accounts.
func (s *FacultyService) List(ctx context.Context) ([]model.Faculty, error) {
	faculty, err := s.facultyRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	if faculty == nil {
		faculty = []model.Faculty{}
	}
	return faculty, nil
}

// Create hashes the password and inserts a new faculty account.
func (s *FacultyService) Create(ctx context.Context, req *model.CreateFacultyRequest) (*model.Faculty, error) {
	hash, err := s.authSvc.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	faculty := &model.Faculty{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
	}
	if err := s.facultyRepo.Create(ctx, faculty); err != nil {
		return nil, err
	}
	return faculty, nil
}

// Update modifies a faculty account, re-hashing the password when provided.
func (s *FacultyService) Update(ctx context.Context, id int, req *model.UpdateFacultyRequest) (*model.Faculty, error) {
	faculty, err := s.facultyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	faculty.Name = req.Name
	faculty.Email = req.Email
	faculty.Role = req.Role

	if err := s.facultyRepo.Update(ctx, faculty); err != nil {
		return nil, err
	}

	if req.Password != "" {
		hash, err := s.authSvc.HashPassword(req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		if err := s.facultyRepo.UpdatePassword(ctx, id, hash); err != nil {
			return nil, err
		}
	}
	return faculty, nil
}

// Delete removes a faculty account.
func (s *FacultyService) Delete(ctx context.Context, id int) error {
	return s.facultyRepo.Delete(ctx, id)
}
