package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testport/testport-backend/internal/model"
)

// TestResult combines learner data with their session details, as served on
// the faculty results screen.
type TestResult struct {
	LearnerID      int                 `json:"learner_id"`
	Name           string              `json:"name"`
	RollNumber     string              `json:"roll_number"`
	Batch          string              `json:"batch"`
	FinalScore     *float64            `json:"score"`
	Status         model.SessionStatus `json:"status"`
	ViolationCount int                 `json:"violation_count"`
	ForcedSubmit   bool                `json:"forced_submit"`
	StartedAt      *time.Time          `json:"started_at"`
	FinishedAt     *time.Time          `json:"finished_at"`
}

// SessionRepository handles test session data access.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// GetByTestAndLearner retrieves a session for a specific test-learner combination.
func (r *SessionRepository) GetByTestAndLearner(ctx context.Context, testID uuid.UUID, learnerID int) (*model.TestSession, error) {
	s := &model.TestSession{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, test_id, learner_id, started_at, finished_at, status,
		        final_score, violation_count, forced_submit, progress
		 FROM test_sessions
		 WHERE test_id = $1 AND learner_id = $2`, testID, learnerID,
	).Scan(&s.ID, &s.TestID, &s.LearnerID, &s.StartedAt, &s.FinishedAt, &s.Status,
		&s.FinalScore, &s.ViolationCount, &s.ForcedSubmit, &s.Progress)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create inserts a new test session (learner joins the test). The unique
// (test_id, learner_id) constraint makes joining idempotent: a second join
// scans no row and the caller falls back to GetByTestAndLearner.
func (r *SessionRepository) Create(ctx context.Context, s *model.TestSession) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO test_sessions (test_id, learner_id, status)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (test_id, learner_id) DO NOTHING
		 RETURNING id, started_at`,
		s.TestID, s.LearnerID, model.SessionStatusInProgress,
	).Scan(&s.ID, &s.StartedAt)
}

// ListByLearner retrieves all sessions for a given learner, newest first.
func (r *SessionRepository) ListByLearner(ctx context.Context, learnerID int) ([]model.TestSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, learner_id, started_at, finished_at, status,
		        final_score, violation_count, forced_submit, progress
		 FROM test_sessions
		 WHERE learner_id = $1
		 ORDER BY started_at DESC`, learnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.TestSession
	for rows.Next() {
		var s model.TestSession
		if err := rows.Scan(&s.ID, &s.TestID, &s.LearnerID, &s.StartedAt, &s.FinishedAt,
			&s.Status, &s.FinalScore, &s.ViolationCount, &s.ForcedSubmit, &s.Progress); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// ListByTest retrieves all learner results for a test, with optional batch and
// name/roll-number filters and pagination.
func (r *SessionRepository) ListByTest(ctx context.Context, testID uuid.UUID, page, perPage int, batch *string, search *string) ([]TestResult, int64, error) {
	offset := (page - 1) * perPage

	baseQuery := `
		FROM test_sessions ts
		JOIN learners l ON ts.learner_id = l.id
		WHERE ts.test_id = $1
	`
	args := []any{testID}

	if batch != nil && *batch != "" {
		args = append(args, *batch)
		baseQuery += fmt.Sprintf(" AND l.batch = $%d", len(args))
	}
	if search != nil && *search != "" {
		args = append(args, "%"+*search+"%")
		baseQuery += fmt.Sprintf(" AND (l.name ILIKE $%d OR l.roll_number ILIKE $%d)", len(args), len(args))
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT
			l.id, l.name, l.roll_number, l.batch,
			ts.final_score, ts.status, ts.violation_count, ts.forced_submit,
			ts.started_at, ts.finished_at
		` + baseQuery + `
		ORDER BY l.batch ASC, l.name ASC
		LIMIT $` + fmt.Sprintf("%d", len(args)+1) + ` OFFSET $` + fmt.Sprintf("%d", len(args)+2)
	args = append(args, perPage, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []TestResult
	for rows.Next() {
		var res TestResult
		if err := rows.Scan(
			&res.LearnerID, &res.Name, &res.RollNumber, &res.Batch,
			&res.FinalScore, &res.Status, &res.ViolationCount, &res.ForcedSubmit,
			&res.StartedAt, &res.FinishedAt,
		); err != nil {
			return nil, 0, err
		}
		results = append(results, res)
	}

	return results, total, rows.Err()
}

// StatusByLearner returns session status per test for a learner's catalog view.
func (r *SessionRepository) StatusByLearner(ctx context.Context, learnerID int) (map[uuid.UUID]model.SessionStatus, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT test_id, status FROM test_sessions WHERE learner_id = $1`, learnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	statuses := make(map[uuid.UUID]model.SessionStatus)
	for rows.Next() {
		var id uuid.UUID
		var st model.SessionStatus
		if err := rows.Scan(&id, &st); err != nil {
			return nil, err
		}
		statuses[id] = st
	}
	return statuses, rows.Err()
}
