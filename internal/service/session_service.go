package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testport/testport-backend/internal/config"
	"github.com/testport/testport-backend/internal/model"
	"github.com/testport/testport-backend/internal/repository"
	"github.com/testport/testport-backend/internal/session"
)

// Session errors.
var (
	ErrTestNotAvailable = errors.New("test is not available for joining")
	ErrSessionCompleted = errors.New("test session is already completed")
	ErrNoActiveSession  = errors.New("no active session for this test")
)

// SessionService handles the lifecycle of test attempts: catalog, join,
// live engine management, state recovery, submission and results.
type SessionService struct {
	sessionRepo *repository.SessionRepository
	testRepo    *repository.TestRepository
	testSvc     *TestService
	manager     *session.Manager
	rdb         *redis.Client
	cfg         *config.Config
	log         zerolog.Logger
}

// NewSessionService creates a new SessionService. The manager is created here
// and owns every live attempt's countdown; submissions it forces flow back
// through PersistSubmission.
func NewSessionService(
	sessionRepo *repository.SessionRepository,
	testRepo *repository.TestRepository,
	testSvc *TestService,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *SessionService {
	s := &SessionService{
		sessionRepo: sessionRepo,
		testRepo:    testRepo,
		testSvc:     testSvc,
		rdb:         rdb,
		cfg:         cfg,
		log:         log.With().Str("component", "session_service").Logger(),
	}
	s.manager = session.NewManager(time.Second, s.PersistSubmission, log)
	return s
}

// Manager exposes the live attempt manager to the transport layer.
func (s *SessionService) Manager() *session.Manager {
	return s.manager
}

// Shutdown stops all live countdowns.
func (s *SessionService) Shutdown() {
	s.manager.Shutdown()
}

// CatalogStatus is the concrete state of a test in the learner catalog.
type CatalogStatus string

const (
	CatalogStatusUpcoming   CatalogStatus = "UPCOMING"
	CatalogStatusAvailable  CatalogStatus = "AVAILABLE"
	CatalogStatusInProgress CatalogStatus = "IN_PROGRESS"
	CatalogStatusCompleted  CatalogStatus = "COMPLETED"
	CatalogStatusExpired    CatalogStatus = "EXPIRED"
)

// CatalogTest is a test as displayed in the learner catalog.
type CatalogTest struct {
	model.Test
	CatalogStatus CatalogStatus        `json:"catalog_status"`
	SessionStatus *model.SessionStatus `json:"session_status,omitempty"`
}

// GetCatalog returns published tests with the learner's session status
// overlaid, filtered and paginated.
func (s *SessionService) GetCatalog(ctx context.Context, learnerID int, filter repository.CatalogFilter, page, perPage int) ([]CatalogTest, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	tests, total, err := s.testRepo.ListCatalog(ctx, filter, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list catalog: %w", err)
	}

	statuses, err := s.sessionRepo.StatusByLearner(ctx, learnerID)
	if err != nil {
		return nil, 0, fmt.Errorf("session statuses: %w", err)
	}

	catalog := make([]CatalogTest, 0, len(tests))
	now := time.Now()

	for _, t := range tests {
		entry := CatalogTest{Test: t}
		// The catalog only advertises that a test is proctored; the threshold
		// itself stays server-side.
		entry.ViolationThreshold = 0

		if st, ok := statuses[t.ID]; ok {
			stCopy := st
			entry.SessionStatus = &stCopy
			if st == model.SessionStatusCompleted {
				entry.CatalogStatus = CatalogStatusCompleted
			} else {
				entry.CatalogStatus = CatalogStatusInProgress
			}
		} else {
			switch {
			case t.ScheduledStart != nil && t.ScheduledStart.After(now):
				entry.CatalogStatus = CatalogStatusUpcoming
			case t.ScheduledEnd != nil && t.ScheduledEnd.Before(now):
				entry.CatalogStatus = CatalogStatusExpired
			default:
				entry.CatalogStatus = CatalogStatusAvailable
			}
		}
		catalog = append(catalog, entry)
	}

	return catalog, total, nil
}

// JoinTest creates (or resumes) a session for the learner and attaches the
// live engine. Joining is idempotent: rejoining reattaches to the same
// attempt without restarting the clock.
func (s *SessionService) JoinTest(ctx context.Context, testID uuid.UUID, learnerID int) (*model.TestSession, error) {
	test, err := s.testRepo.GetByID(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}

	if test.Status != model.TestStatusPublished {
		return nil, ErrTestNotAvailable
	}
	now := time.Now()
	if test.ScheduledStart != nil && test.ScheduledStart.After(now) {
		return nil, ErrTestNotAvailable
	}
	if test.ScheduledEnd != nil && test.ScheduledEnd.Before(now) {
		return nil, ErrTestNotAvailable
	}

	existing, err := s.sessionRepo.GetByTestAndLearner(ctx, testID, learnerID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing session: %w", err)
	}

	if existing != nil {
		if existing.Status == model.SessionStatusCompleted {
			return nil, ErrSessionCompleted
		}
		// Rejoin: make sure Redis has the start time, then reattach.
		_ = s.rdb.Set(ctx, config.CacheKey.AttemptStartKey(testID.String(), learnerID), existing.StartedAt.Unix(), 0)
		if err := s.attachEngine(ctx, test, learnerID, existing.StartedAt); err != nil {
			return nil, err
		}
		return existing, nil
	}

	sess := &model.TestSession{
		TestID:    testID,
		LearnerID: learnerID,
		StartedAt: time.Now(),
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent join: the unique constraint swallowed our insert.
			existing, fetchErr := s.sessionRepo.GetByTestAndLearner(ctx, testID, learnerID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent join detected, but fetch failed: %w", fetchErr)
			}
			if err := s.attachEngine(ctx, test, learnerID, existing.StartedAt); err != nil {
				return nil, err
			}
			return existing, nil
		}
		return nil, fmt.Errorf("create session: %w", err)
	}
	sess.Status = model.SessionStatusInProgress

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.AttemptStartKey(testID.String(), learnerID), sess.StartedAt.Unix(), 0)
	pipe.Set(ctx, config.CacheKey.LearnerActiveTestKey(learnerID), testID.String(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		// Recoverable: GetSessionState self-heals from PostgreSQL.
		s.log.Warn().Err(err).Int("learner_id", learnerID).Msg("Failed to cache attempt start")
	}

	if err := s.attachEngine(ctx, test, learnerID, sess.StartedAt); err != nil {
		return nil, err
	}

	s.publishMonitorEvent(ctx, testID.String(), map[string]any{
		"type":       "join",
		"learner_id": learnerID,
	})
	return sess, nil
}

// attachEngine ensures a live engine exists for (test, learner). A fresh
// engine is rehydrated from the Redis autosave hashes and fast-forwarded to
// account for wall-clock time that passed while no process held the attempt.
func (s *SessionService) attachEngine(ctx context.Context, test *model.Test, learnerID int, startedAt time.Time) error {
	bp, opts, err := s.BuildBlueprint(ctx, test)
	if err != nil {
		return err
	}

	id := test.ID.String()
	if _, ok := s.manager.Get(id, learnerID); ok {
		return nil
	}

	snap, hasSnap := s.loadSavedState(ctx, id, learnerID)
	elapsed := int(time.Since(startedAt).Seconds())

	s.manager.Attach(id, learnerID, func() *session.Engine {
		return rehydrateEngine(bp, opts, snap, hasSnap, elapsed)
	})
	return nil
}

// rehydrateEngine rebuilds the live engine for an attempt. Any wall-clock time
// the saved state has not yet accounted for is burned through the normal tick
// path so section boundaries and timeout behavior are honored; a restored
// snapshot only pre-pays the seconds it recorded as elapsed.
func rehydrateEngine(bp session.Blueprint, opts session.Options, snap session.Snapshot, hasSnap bool, elapsed int) *session.Engine {
	e := session.NewEngine(bp, opts)
	ticked := 0
	if hasSnap {
		e.Restore(snap)
		ticked = snap.ElapsedSeconds
	}
	for i := ticked; i < elapsed && !e.Submitted(); i++ {
		e.Tick()
	}
	return e
}

// loadSavedState reconstructs an engine snapshot from the Redis autosave keys.
func (s *SessionService) loadSavedState(ctx context.Context, testID string, learnerID int) (session.Snapshot, bool) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.LearnerProgressKey(testID, learnerID)).Bytes()
	if err != nil {
		return session.Snapshot{}, false
	}
	var snap session.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		s.log.Warn().Err(err).Str("test_id", testID).Msg("Corrupt progress snapshot, starting fresh")
		return session.Snapshot{}, false
	}

	// The answers hash is the authoritative autosave store; overlay it in case
	// it is newer than the progress snapshot.
	answers, err := s.rdb.HGetAll(ctx, config.CacheKey.LearnerAnswersKey(testID, learnerID)).Result()
	if err == nil && len(answers) > 0 {
		if snap.Answers == nil {
			snap.Answers = make(map[string]string, len(answers))
		}
		for q, a := range answers {
			snap.Answers[q] = a
		}
	}
	return snap, true
}

// BuildBlueprint converts a test and its questions into the engine's
// immutable blueprint plus behavioral options. Flat tests are normalized to a
// single section spanning the full duration.
func (s *SessionService) BuildBlueprint(ctx context.Context, test *model.Test) (session.Blueprint, session.Options, error) {
	paper, err := s.testSvc.GetTestPaper(ctx, test.ID)
	if err != nil {
		return session.Blueprint{}, session.Options{}, fmt.Errorf("get paper: %w", err)
	}

	bp := session.Blueprint{TestID: test.ID.String()}

	if paper.HasSections {
		for _, sec := range paper.Sections {
			es := session.Section{
				ID:              sec.ID.String(),
				Name:            sec.Name,
				DurationSeconds: sec.DurationMinutes * 60,
			}
			for _, q := range sec.Questions {
				es.Questions = append(es.Questions, session.Question{ID: q.ID.String(), Marks: q.Marks})
			}
			bp.Sections = append(bp.Sections, es)
		}
	} else {
		es := session.Section{
			ID:              "main",
			DurationSeconds: paper.DurationMinutes * 60,
		}
		for _, q := range paper.Questions {
			es.Questions = append(es.Questions, session.Question{ID: q.ID.String(), Marks: q.Marks})
		}
		bp.Sections = []session.Section{es}
		bp.Flat = true
	}

	opts := session.Options{
		// Practice countdowns clamp at zero instead of forcing submission.
		AutoSubmitOnTimeout: test.Type != model.TestTypePractice,
	}
	if test.Proctored {
		opts.ViolationThreshold = test.ViolationThreshold
		if opts.ViolationThreshold <= 0 {
			opts.ViolationThreshold = s.cfg.ViolationThreshold
		}
	}
	return bp, opts, nil
}

// VerifyActiveSession checks that a learner has an IN_PROGRESS session for
// the given test.
func (s *SessionService) VerifyActiveSession(ctx context.Context, testID uuid.UUID, learnerID int) error {
	sess, err := s.sessionRepo.GetByTestAndLearner(ctx, testID, learnerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoActiveSession
		}
		return fmt.Errorf("get session: %w", err)
	}
	if sess.Status == model.SessionStatusCompleted {
		return ErrSessionCompleted
	}
	return nil
}

// GetSessionState returns the resume payload for a page reload. The live
// engine is authoritative; when no engine is attached (process restart) the
// state is reconstructed from Redis with a PostgreSQL fallback for the start
// time, which is then self-healed back into the cache.
func (s *SessionService) GetSessionState(ctx context.Context, testID uuid.UUID, learnerID int) (*model.SessionStateResponse, error) {
	id := testID.String()

	if a, ok := s.manager.Get(id, learnerID); ok {
		var snap session.Snapshot
		_ = a.Do(func(e *session.Engine) error {
			snap = e.Snapshot()
			return nil
		})
		return &model.SessionStateResponse{
			TestID:           testID,
			LearnerID:        learnerID,
			Answers:          snap.Answers,
			MarkedForReview:  snap.MarkedForReview,
			Visited:          snap.Visited,
			SectionIndex:     snap.SectionIndex,
			QuestionIndex:    snap.QuestionIndex,
			RemainingSeconds: float64(snap.RemainingSeconds),
			ViolationCount:   snap.ViolationCount,
		}, nil
	}

	// No live engine: cold reconstruction.
	answers, err := s.rdb.HGetAll(ctx, config.CacheKey.LearnerAnswersKey(id, learnerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get autosaved answers: %w", err)
	}

	durationStr, err := s.rdb.Get(ctx, config.CacheKey.TestDurationKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get test duration: %w", err)
	}
	durationMinutes, err := strconv.Atoi(durationStr)
	if err != nil {
		return nil, fmt.Errorf("invalid duration format in redis: %w", err)
	}

	var startTimeUnix int64
	startKey := config.CacheKey.AttemptStartKey(id, learnerID)
	val, err := s.rdb.Get(ctx, startKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// Cache miss: fall back to PostgreSQL and self-heal the cache.
		sess, dbErr := s.sessionRepo.GetByTestAndLearner(ctx, testID, learnerID)
		if dbErr != nil {
			return nil, fmt.Errorf("session not found in cache or db: %w", dbErr)
		}
		startTimeUnix = sess.StartedAt.Unix()
		_ = s.rdb.Set(ctx, startKey, startTimeUnix, 0)
	case err != nil:
		return nil, fmt.Errorf("redis error getting start time: %w", err)
	default:
		startTimeUnix, err = strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid start time format in cache: %w", err)
		}
	}

	endTime := time.Unix(startTimeUnix, 0).Add(time.Duration(durationMinutes) * time.Minute)
	remaining := time.Until(endTime)
	if remaining < 0 {
		remaining = 0
	}

	state := &model.SessionStateResponse{
		TestID:           testID,
		LearnerID:        learnerID,
		Answers:          answers,
		RemainingSeconds: remaining.Seconds(),
	}
	if snap, ok := s.loadSavedState(ctx, id, learnerID); ok {
		state.MarkedForReview = snap.MarkedForReview
		state.Visited = snap.Visited
		state.SectionIndex = snap.SectionIndex
		state.QuestionIndex = snap.QuestionIndex
		state.ViolationCount = snap.ViolationCount
	}
	return state, nil
}

// AutosaveAnswer writes a selection to the live Redis hash and queues the
// database upsert. Called on every answer action from the stream.
func (s *SessionService) AutosaveAnswer(ctx context.Context, testID string, learnerID int, questionID, answer string) error {
	if err := s.rdb.HSet(ctx, config.CacheKey.LearnerAnswersKey(testID, learnerID), questionID, answer).Err(); err != nil {
		return fmt.Errorf("autosave to redis: %w", err)
	}
	payload, _ := json.Marshal(map[string]any{
		"learner_id":  learnerID,
		"test_id":     testID,
		"question_id": questionID,
		"answer":      answer,
	})
	return s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err()
}

// ClearAutosavedAnswer removes a cleared selection from the live hash and
// queues the database update with the NOT_ANSWERED sentinel.
func (s *SessionService) ClearAutosavedAnswer(ctx context.Context, testID string, learnerID int, questionID string) error {
	if err := s.rdb.HDel(ctx, config.CacheKey.LearnerAnswersKey(testID, learnerID), questionID).Err(); err != nil {
		return fmt.Errorf("clear autosave: %w", err)
	}
	payload, _ := json.Marshal(map[string]any{
		"learner_id":  learnerID,
		"test_id":     testID,
		"question_id": questionID,
		"answer":      session.NotAnsweredSentinel,
	})
	return s.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err()
}

// SaveProgress caches the engine snapshot for reload recovery and queues the
// jsonb persistence.
func (s *SessionService) SaveProgress(ctx context.Context, testID string, learnerID int, snap session.Snapshot) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, config.CacheKey.LearnerProgressKey(testID, learnerID), raw, 0).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache progress snapshot")
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"learner_id": learnerID,
		"test_id":    testID,
		"progress":   json.RawMessage(raw),
	})
	_ = s.rdb.RPush(ctx, config.WorkerKey.PersistProgressQueue, payload).Err()
}

// RecordViolation increments the live violation counter and queues the event
// row for faculty review. The engine's own count is authoritative for the
// forced-submission decision; this path is persistence only.
func (s *SessionService) RecordViolation(ctx context.Context, testID string, learnerID int, event model.ViolationEvent) {
	_ = s.rdb.Incr(ctx, config.CacheKey.LearnerViolationsKey(testID, learnerID)).Err()
	payload, _ := json.Marshal(map[string]any{
		"learner_id": learnerID,
		"test_id":    testID,
		"kind":       event.Kind,
		"payload":    event.Payload,
		"at":         time.Now().Unix(),
	})
	if err := s.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, payload).Err(); err != nil {
		s.log.Error().Err(err).Str("test_id", testID).Int("learner_id", learnerID).Msg("Failed to queue violation")
	}
	s.publishMonitorEvent(ctx, testID, map[string]any{
		"type":       "violation",
		"learner_id": learnerID,
		"kind":       event.Kind,
	})
}

// PersistSubmission grades a finished attempt against the cached answer key
// and hands the result to the scoring queue. It is the manager's SubmitFunc:
// an error keeps the attempt open for retry.
func (s *SessionService) PersistSubmission(ctx context.Context, testID string, learnerID int, sub session.Submission) error {
	tid, err := uuid.Parse(testID)
	if err != nil {
		return fmt.Errorf("parse test id: %w", err)
	}

	answerKey, err := s.testSvc.GetAnswerKey(ctx, tid)
	if err != nil {
		return fmt.Errorf("get answer key: %w", err)
	}
	marks, err := s.testSvc.GetMarks(ctx, tid)
	if err != nil {
		return fmt.Errorf("get marks: %w", err)
	}

	// RAM grading: the sentinel never matches a key entry, so unanswered
	// questions score zero without special-casing.
	var score float64
	for _, row := range sub.Answers {
		if row.SelectedAnswer == answerKey[row.QuestionID] {
			if m, err := strconv.ParseFloat(marks[row.QuestionID], 64); err == nil {
				score += m
			}
		}
	}

	// Queue every answer row so the final state lands in PostgreSQL even if
	// the learner's autosave stream missed events.
	pipe := s.rdb.Pipeline()
	for _, row := range sub.Answers {
		payload, _ := json.Marshal(map[string]any{
			"learner_id":   learnerID,
			"test_id":      testID,
			"question_id":  row.QuestionID,
			"answer":       row.SelectedAnswer,
			"time_spent_s": row.TimeSpentSeconds,
		})
		pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload)
	}
	scorePayload, _ := json.Marshal(map[string]any{
		"learner_id":      learnerID,
		"test_id":         testID,
		"score":           score,
		"violation_count": sub.ViolationCount,
		"forced":          sub.Forced,
		"total_time_s":    sub.TotalTimeSeconds,
	})
	pipe.RPush(ctx, config.WorkerKey.PersistScoresQueue, scorePayload)
	pipe.Del(ctx, config.CacheKey.AttemptStartKey(testID, learnerID))
	pipe.Del(ctx, config.CacheKey.LearnerProgressKey(testID, learnerID))
	pipe.Del(ctx, config.CacheKey.LearnerViolationsKey(testID, learnerID))
	pipe.Del(ctx, config.CacheKey.LearnerActiveTestKey(learnerID))

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue submission: %w", err)
	}

	s.publishMonitorEvent(ctx, testID, map[string]any{
		"type":            "submit",
		"learner_id":      learnerID,
		"forced":          sub.Forced,
		"violation_count": sub.ViolationCount,
	})

	s.log.Info().
		Str("test_id", testID).
		Int("learner_id", learnerID).
		Float64("score", score).
		Bool("forced", sub.Forced).
		Msg("Submission queued")
	return nil
}

// publishMonitorEvent pushes a live event to the test's monitor channel.
// Best-effort: monitoring never blocks the learner path.
func (s *SessionService) publishMonitorEvent(ctx context.Context, testID string, event map[string]any) {
	payload, _ := json.Marshal(event)
	if err := s.rdb.Publish(ctx, config.CacheKey.TestMonitorChannel(testID), payload).Err(); err != nil {
		s.log.Warn().Err(err).Str("test_id", testID).Msg("Failed to publish monitor event")
	}
}

// ExitTest detaches the live attempt without submitting. Answers already
// autosaved stay in Redis, so rejoining resumes where the learner left off.
func (s *SessionService) ExitTest(ctx context.Context, testID uuid.UUID, learnerID int) {
	if a, ok := s.manager.Get(testID.String(), learnerID); ok {
		var snap session.Snapshot
		_ = a.Do(func(e *session.Engine) error {
			snap = e.Snapshot()
			return nil
		})
		s.SaveProgress(ctx, testID.String(), learnerID, snap)
	}
	s.manager.Detach(testID.String(), learnerID)
}

// GetLearnerHistory returns the learner's past and current sessions.
func (s *SessionService) GetLearnerHistory(ctx context.Context, learnerID int) ([]model.TestSession, error) {
	sessions, err := s.sessionRepo.ListByLearner(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []model.TestSession{}
	}
	return sessions, nil
}

// GetTestResults retrieves paginated results for a test with optional filters.
func (s *SessionService) GetTestResults(ctx context.Context, testID uuid.UUID, page, perPage int, batch, search *string) ([]repository.TestResult, int64, error) {
	return s.sessionRepo.ListByTest(ctx, testID, page, perPage, batch, search)
}
