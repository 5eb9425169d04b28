package service

import (
	"context"
	"fmt"

	"github.com/testport/testport-backend/internal/model"
	"github.com/testport/testport-backend/internal/repository"
	"github.com/testport/testport-backend/internal/response"
)

// LearnerService handles learner account management business logic.
type LearnerService struct {
	learnerRepo *repository.LearnerRepository
	authSvc     *AuthService
}

// NewLearnerService creates a new LearnerService.
func NewLearnerService(learnerRepo *repository.LearnerRepository, authSvc *AuthService) *LearnerService {
	return &LearnerService{learnerRepo: learnerRepo, authSvc: authSvc}
}

// GetByID retrieves a learner by ID.
func (s *LearnerService) GetByID(ctx context.Context, id int) (*model.Learner, error) {
	return s.learnerRepo.GetByID(ctx, id)
}

func (s *LearnerService) GetByRollNumber(ctx context.Context, rollNumber string) (*model.Learner, error) {
	return s.learnerRepo.GetByRollNumber(ctx, rollNumber)
}

// List retrieves learners with pagination and optional filters.
func (s *LearnerService) List(ctx context.Context, batch *string, search string, page, perPage int) ([]model.Learner, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	learners, total, err := s.learnerRepo.ListPaginated(ctx, batch, search, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if learners == nil {
		learners = []model.Learner{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return learners, pagination, nil
}

// Create hashes the password and inserts a new learner.
func (s *LearnerService) Create(ctx context.Context, req *model.CreateLearnerRequest) (*model.Learner, error) {
	hash, err := s.authSvc.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	learner := &model.Learner{
		RollNumber:   req.RollNumber,
		Name:         req.Name,
		Email:        req.Email,
		Batch:        req.Batch,
		PasswordHash: hash,
	}
	if err := s.learnerRepo.Create(ctx, learner); err != nil {
		return nil, err
	}
	return learner, nil
}

// Update modifies a learner, re-hashing the password when one is provided.
func (s *LearnerService) Update(ctx context.Context, id int, req *model.UpdateLearnerRequest) (*model.Learner, error) {
	learner, err := s.learnerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	learner.RollNumber = req.RollNumber
	learner.Name = req.Name
	learner.Email = req.Email
	learner.Batch = req.Batch

	if err := s.learnerRepo.Update(ctx, learner); err != nil {
		return nil, err
	}

	if req.Password != "" {
		hash, err := s.authSvc.HashPassword(req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		if err := s.learnerRepo.UpdatePassword(ctx, id, hash); err != nil {
			return nil, err
		}
	}
	return learner, nil
}

// BulkImport hashes every password and inserts the batch via COPY. Returns
// the number of rows inserted.
func (s *LearnerService) BulkImport(ctx context.Context, reqs []model.CreateLearnerRequest) (int64, error) {
	learners := make([]model.Learner, 0, len(reqs))
	for _, req := range reqs {
		hash, err := s.authSvc.HashPassword(req.Password)
		if err != nil {
			return 0, fmt.Errorf("hash password for %s: %w", req.RollNumber, err)
		}
		learners = append(learners, model.Learner{
			RollNumber:   req.RollNumber,
			Name:         req.Name,
			Email:        req.Email,
			Batch:        req.Batch,
			PasswordHash: hash,
		})
	}
	return s.learnerRepo.BulkCreate(ctx, learners)
}

// Delete removes a learner account.
func (s *LearnerService) Delete(ctx context.Context, id int) error {
	return s.learnerRepo.Delete(ctx, id)
}

// ResetSession clears a learner's single-device login session, allowing them
// to log in again after a crashed browser kept the old session alive.
func (s *LearnerService) ResetSession(ctx context.Context, id int) error {
	return s.authSvc.ResetLearnerSession(ctx, id)
}
