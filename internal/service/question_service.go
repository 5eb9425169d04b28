package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/testport/testport-backend/internal/model"
	"github.com/testport/testport-backend/internal/repository"
)

var ErrNotACodingQuestion = errors.New("question is not a coding question")

// QuestionService handles question business logic.
type QuestionService struct {
	questionRepo *repository.QuestionRepository
	testRepo     *repository.TestRepository
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(questionRepo *repository.QuestionRepository, testRepo *repository.TestRepository) *QuestionService {
	return &QuestionService{questionRepo: questionRepo, testRepo: testRepo}
}

// ListByTest retrieves all questions for a test.
func (s *QuestionService) ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	return s.questionRepo.ListByTest(ctx, testID)
}

// GetByID retrieves a single question.
func (s *QuestionService) CountByTest(ctx context.Context, testID uuid.UUID) (int, error) {
	return s.questionRepo.CountByTest(ctx, testID)
}

func (s *QuestionService) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	return s.questionRepo.GetByID(ctx, id)
}

// Create adds a question to a test and refreshes the derived totals.
func (s *QuestionService) Create(ctx context.Context, q *model.Question) error {
	if err := s.questionRepo.Create(ctx, q); err != nil {
		return err
	}
	return s.refreshDerived(ctx, q.TestID)
}

// Update modifies a question and refreshes the derived totals.
func (s *QuestionService) Update(ctx context.Context, q *model.Question) error {
	if err := s.questionRepo.Update(ctx, q); err != nil {
		return err
	}
	return s.refreshDerived(ctx, q.TestID)
}

// Delete removes a question and refreshes the derived totals.
func (s *QuestionService) Delete(ctx context.Context, testID, id uuid.UUID) error {
	if err := s.questionRepo.Delete(ctx, id); err != nil {
		return err
	}
	return s.refreshDerived(ctx, testID)
}

// ReplaceAll swaps a test's entire question set atomically.
func (s *QuestionService) ReplaceAll(ctx context.Context, testID uuid.UUID, questions []model.Question) error {
	for i := range questions {
		questions[i].TestID = testID
	}
	if err := s.questionRepo.ReplaceAll(ctx, testID, questions); err != nil {
		return err
	}
	return s.refreshDerived(ctx, testID)
}

// refreshDerived keeps tests.total_marks and sections.question_count in sync
// with the question rows.
func (s *QuestionService) refreshDerived(ctx context.Context, testID uuid.UUID) error {
	if err := s.testRepo.UpdateTotalMarks(ctx, testID); err != nil {
		return fmt.Errorf("update total marks: %w", err)
	}
	if err := s.testRepo.RefreshSectionQuestionCounts(ctx, testID); err != nil {
		return fmt.Errorf("refresh section counts: %w", err)
	}
	return nil
}
