package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testport/testport-backend/internal/config"
	"github.com/testport/testport-backend/internal/model"
	"github.com/testport/testport-backend/internal/repository"
	"github.com/testport/testport-backend/internal/response"
)

// Domain errors.
var (
	ErrNotTestAuthor    = errors.New("not the author of this test")
	ErrNoQuestions      = errors.New("test has no questions, cannot publish")
	ErrTestNotDraft     = errors.New("test status is not DRAFT")
	ErrTestNotPublished = errors.New("test status is not PUBLISHED")
)

// TestService handles test business logic and Redis caching.
type TestService struct {
	testRepo     *repository.TestRepository
	questionRepo *repository.QuestionRepository
	rdb          *redis.Client
	log          zerolog.Logger
}

// NewTestService creates a new TestService.
func NewTestService(
	testRepo *repository.TestRepository,
	questionRepo *repository.QuestionRepository,
	rdb *redis.Client,
	log zerolog.Logger,
) *TestService {
	return &TestService{
		testRepo:     testRepo,
		questionRepo: questionRepo,
		rdb:          rdb,
		log:          log.With().Str("component", "test_service").Logger(),
	}
}

// GetByID retrieves a test by its UUID.
func (s *TestService) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	return s.testRepo.GetByID(ctx, id)
}

// GetSections retrieves a test's ordered sections.
func (s *TestService) GetSections(ctx context.Context, testID uuid.UUID) ([]model.Section, error) {
	return s.testRepo.ListSections(ctx, testID)
}

// ListByAuthor retrieves tests, filtered by author unless the caller is a
// coordinator (authorID 0 lists everything).
func (s *TestService) ListByAuthor(ctx context.Context, authorID, page, perPage int) ([]model.Test, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	tests, total, err := s.testRepo.ListByAuthorPaginated(ctx, authorID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if tests == nil {
		tests = []model.Test{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return tests, pagination, nil
}

// Create inserts a new test as DRAFT, along with its sections if any.
func (s *TestService) Create(ctx context.Context, test *model.Test, sections []model.Section) error {
	test.Status = model.TestStatusDraft
	test.HasSections = len(sections) > 0
	if err := s.testRepo.Create(ctx, test); err != nil {
		return err
	}
	for i := range sections {
		sections[i].TestID = test.ID
		sections[i].OrderNum = i
		if err := s.testRepo.CreateSection(ctx, &sections[i]); err != nil {
			return fmt.Errorf("create section %d: %w", i, err)
		}
	}
	return nil
}

// Update modifies an existing draft test.
func (s *TestService) Update(ctx context.Context, authorID int, test *model.Test) error {
	existing, err := s.testRepo.GetByID(ctx, test.ID)
	if err != nil {
		return err
	}
	if authorID != 0 && existing.AuthorID != authorID {
		return ErrNotTestAuthor
	}
	if existing.Status != model.TestStatusDraft {
		return ErrTestNotDraft
	}
	return s.testRepo.Update(ctx, test)
}

// Delete removes a draft test.
func (s *TestService) Delete(ctx context.Context, id uuid.UUID, authorID int) error {
	existing, err := s.testRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if authorID != 0 && existing.AuthorID != authorID {
		return ErrNotTestAuthor
	}
	if existing.Status != model.TestStatusDraft {
		return ErrTestNotDraft
	}
	return s.testRepo.Delete(ctx, id)
}

// Publish changes test status to PUBLISHED and caches the paper, answer key,
// marks and duration in Redis. This is the critical path that populates the
// fast lane every learner request reads from.
func (s *TestService) Publish(ctx context.Context, testID uuid.UUID, authorID int) error {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return fmt.Errorf("get test: %w", err)
	}

	if authorID != 0 && test.AuthorID != authorID {
		return ErrNotTestAuthor
	}
	if test.Status != model.TestStatusDraft {
		return ErrTestNotDraft
	}

	if err := s.WarmTestCache(ctx, test); err != nil {
		return err
	}

	if err := s.testRepo.UpdateStatus(ctx, testID, model.TestStatusPublished); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	s.log.Info().Str("test_id", testID.String()).Msg("Test published")
	return nil
}

// Archive retires a published test. The cached paper is dropped so learners
// can no longer join.
func (s *TestService) Archive(ctx context.Context, testID uuid.UUID, authorID int) error {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return fmt.Errorf("get test: %w", err)
	}
	if authorID != 0 && test.AuthorID != authorID {
		return ErrNotTestAuthor
	}
	if test.Status != model.TestStatusPublished {
		return ErrTestNotPublished
	}

	if err := s.testRepo.UpdateStatus(ctx, testID, model.TestStatusArchived); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	id := testID.String()
	pipe := s.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.TestPaperKey(id))
	pipe.Del(ctx, config.CacheKey.TestAnswerKeyKey(id))
	pipe.Del(ctx, config.CacheKey.TestMarksKey(id))
	pipe.Del(ctx, config.CacheKey.TestDurationKey(id))
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Str("test_id", id).Msg("Failed to drop cached paper")
	}

	s.log.Info().Str("test_id", id).Msg("Test archived")
	return nil
}

// RefreshCache re-caches the paper + answer key for a published test.
// Called when questions are updated after publish.
func (s *TestService) RefreshCache(ctx context.Context, testID uuid.UUID, authorID int) error {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return fmt.Errorf("get test: %w", err)
	}

	if authorID != 0 && test.AuthorID != authorID {
		return ErrNotTestAuthor
	}
	if test.Status != model.TestStatusPublished {
		return ErrTestNotPublished
	}

	if err := s.WarmTestCache(ctx, test); err != nil {
		return err
	}

	s.log.Info().Str("test_id", testID.String()).Msg("Cache refreshed")
	return nil
}

// WarmTestCache loads a test's paper, answer key, per-question marks and
// duration from PostgreSQL into Redis. Correct options are stripped from the
// paper unless the test type is PRACTICE.
func (s *TestService) WarmTestCache(ctx context.Context, test *model.Test) error {
	questions, err := s.questionRepo.ListByTest(ctx, test.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	paper := model.TestPaper{
		TestID:          test.ID,
		Title:           test.Title,
		Type:            test.Type,
		DurationMinutes: test.DurationMinutes,
		HasSections:     test.HasSections,
	}

	revealAnswers := test.Type == model.TestTypePractice

	toLearner := func(q model.Question) model.QuestionForLearner {
		lq := model.QuestionForLearner{
			ID:       q.ID,
			Text:     q.Text,
			ImageURL: q.ImageURL,
			Options:  q.Options,
			Marks:    q.Marks,
			IsCoding: q.IsCoding,
			OrderNum: q.OrderNum,
		}
		if revealAnswers {
			lq.CorrectOption = q.CorrectOption
		}
		return lq
	}

	if test.HasSections {
		sections, err := s.testRepo.ListSections(ctx, test.ID)
		if err != nil {
			return fmt.Errorf("list sections: %w", err)
		}
		bySection := make(map[uuid.UUID][]model.QuestionForLearner)
		for _, q := range questions {
			if q.SectionID == nil {
				continue
			}
			bySection[*q.SectionID] = append(bySection[*q.SectionID], toLearner(q))
		}
		for _, sec := range sections {
			paper.Sections = append(paper.Sections, model.SectionPaper{
				ID:              sec.ID,
				Name:            sec.Name,
				DurationMinutes: sec.DurationMinutes,
				Questions:       bySection[sec.ID],
			})
		}
	} else {
		for _, q := range questions {
			paper.Questions = append(paper.Questions, toLearner(q))
		}
	}

	paperJSON, err := json.Marshal(paper)
	if err != nil {
		return fmt.Errorf("marshal paper: %w", err)
	}

	// Answer key + marks hashes for RAM grading.
	answerKey := make(map[string]interface{}, len(questions))
	marks := make(map[string]interface{}, len(questions))
	for _, q := range questions {
		answerKey[q.ID.String()] = q.CorrectOption
		marks[q.ID.String()] = fmt.Sprintf("%g", q.Marks)
	}

	id := test.ID.String()
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.TestPaperKey(id), paperJSON, 0)
	pipe.Del(ctx, config.CacheKey.TestAnswerKeyKey(id))
	pipe.HSet(ctx, config.CacheKey.TestAnswerKeyKey(id), answerKey)
	pipe.Del(ctx, config.CacheKey.TestMarksKey(id))
	pipe.HSet(ctx, config.CacheKey.TestMarksKey(id), marks)
	pipe.Set(ctx, config.CacheKey.TestDurationKey(id), test.DurationMinutes, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("test_id", id).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads all published tests into Redis on application startup.
// This prevents any lazy-loading race conditions under thundering herd traffic.
func (s *TestService) PrewarmAllCaches(ctx context.Context) error {
	tests, err := s.testRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("list published tests: %w", err)
	}

	if len(tests) == 0 {
		s.log.Info().Msg("No published tests to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(tests)).Msg("Prewarming published tests...")

	warmed := 0
	for i := range tests {
		if err := s.WarmTestCache(ctx, &tests[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("test_id", tests[i].ID.String()).
				Msg("Failed to warm test, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(tests)).
		Msg("Prewarming complete")
	return nil
}

// GetTestPaper retrieves the cached learner paper from Redis.
func (s *TestService) GetTestPaper(ctx context.Context, testID uuid.UUID) (*model.TestPaper, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.TestPaperKey(testID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.New("test not published or paper not cached")
		}
		return nil, fmt.Errorf("get paper: %w", err)
	}

	var paper model.TestPaper
	if err := json.Unmarshal(data, &paper); err != nil {
		return nil, fmt.Errorf("unmarshal paper: %w", err)
	}
	return &paper, nil
}

// GetAnswerKey retrieves the answer key from Redis for instant grading.
func (s *TestService) GetAnswerKey(ctx context.Context, testID uuid.UUID) (map[string]string, error) {
	result, err := s.rdb.HGetAll(ctx, config.CacheKey.TestAnswerKeyKey(testID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	if len(result) == 0 {
		return nil, errors.New("answer key not found in cache")
	}
	return result, nil
}

// GetMarks retrieves the per-question marks hash from Redis.
func (s *TestService) GetMarks(ctx context.Context, testID uuid.UUID) (map[string]string, error) {
	result, err := s.rdb.HGetAll(ctx, config.CacheKey.TestMarksKey(testID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get marks: %w", err)
	}
	if len(result) == 0 {
		return nil, errors.New("marks not found in cache")
	}
	return result, nil
}
