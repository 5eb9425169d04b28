package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testport/testport-backend/internal/model"
)

// TestRepository handles test and section data access.
type TestRepository struct {
	pool *pgxpool.Pool
}

// NewTestRepository creates a new TestRepository.
func NewTestRepository(pool *pgxpool.Pool) *TestRepository {
	return &TestRepository{pool: pool}
}

const testColumns = `id, title, description, subject_id, company_name, type, author_id,
        scheduled_start, scheduled_end, duration_minutes, total_marks, has_sections,
        proctored, violation_threshold, status, created_at, updated_at`

func scanTest(row interface{ Scan(...any) error }, t *model.Test) error {
	return row.Scan(&t.ID, &t.Title, &t.Description, &t.SubjectID, &t.CompanyName,
		&t.Type, &t.AuthorID, &t.ScheduledStart, &t.ScheduledEnd, &t.DurationMinutes,
		&t.TotalMarks, &t.HasSections, &t.Proctored, &t.ViolationThreshold,
		&t.Status, &t.CreatedAt, &t.UpdatedAt)
}

// GetByID retrieves a test by its UUID.
func (r *TestRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Test, error) {
	t := &model.Test{}
	row := r.pool.QueryRow(ctx,
		`SELECT `+testColumns+` FROM tests WHERE id = $1`, id)
	if err := scanTest(row, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a new test in DRAFT status.
func (r *TestRepository) Create(ctx context.Context, t *model.Test) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO tests (title, description, subject_id, company_name, type, author_id,
		        scheduled_start, scheduled_end, duration_minutes, has_sections,
		        proctored, violation_threshold, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id, created_at, updated_at`,
		t.Title, t.Description, t.SubjectID, t.CompanyName, t.Type, t.AuthorID,
		t.ScheduledStart, t.ScheduledEnd, t.DurationMinutes, t.HasSections,
		t.Proctored, t.ViolationThreshold, model.TestStatusDraft,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
}

// Update modifies a test's editable fields.
func (r *TestRepository) Update(ctx context.Context, t *model.Test) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests
		 SET title = $1, description = $2, subject_id = $3, company_name = $4,
		     scheduled_start = $5, scheduled_end = $6, duration_minutes = $7,
		     proctored = $8, violation_threshold = $9, updated_at = NOW()
		 WHERE id = $10`,
		t.Title, t.Description, t.SubjectID, t.CompanyName,
		t.ScheduledStart, t.ScheduledEnd, t.DurationMinutes,
		t.Proctored, t.ViolationThreshold, t.ID)
	return err
}

// UpdateStatus updates a test's lifecycle status.
func (r *TestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.TestStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	return err
}

// UpdateTotalMarks recomputes and stores the total marks, called after the
// question set changes.
func (r *TestRepository) UpdateTotalMarks(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tests
		 SET total_marks = COALESCE((SELECT SUM(marks) FROM questions WHERE test_id = $1), 0),
		     updated_at = NOW()
		 WHERE id = $1`, id)
	return err
}

// Delete removes a test and, via FK cascade, its sections, questions and sessions.
func (r *TestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM tests WHERE id = $1`, id)
	return err
}

// ListByAuthorPaginated retrieves tests filtered by author with pagination.
// Pass authorID=0 to list all tests (coordinator).
func (r *TestRepository) ListByAuthorPaginated(ctx context.Context, authorID, limit, offset int) ([]model.Test, int, error) {
	countQuery := `SELECT COUNT(*) FROM tests`
	var countArgs []any
	if authorID > 0 {
		countQuery += ` WHERE author_id = $1`
		countArgs = append(countArgs, authorID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + testColumns + ` FROM tests`
	var args []any
	if authorID > 0 {
		query += ` WHERE author_id = $1`
		args = append(args, authorID)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := scanTest(rows, &t); err != nil {
			return nil, 0, err
		}
		tests = append(tests, t)
	}
	return tests, total, rows.Err()
}

// CatalogFilter narrows the learner-facing catalog listing.
type CatalogFilter struct {
	Search    string
	SubjectID *int
	Type      *model.TestType
}

// ListCatalog retrieves PUBLISHED tests for the learner catalog with optional
// search, subject and type filters.
func (r *TestRepository) ListCatalog(ctx context.Context, f CatalogFilter, limit, offset int) ([]model.Test, int, error) {
	baseQuery := ` FROM tests WHERE status = $1`
	args := []any{model.TestStatusPublished}

	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		baseQuery += fmt.Sprintf(` AND (title ILIKE $%d OR company_name ILIKE $%d)`, len(args), len(args))
	}
	if f.SubjectID != nil {
		args = append(args, *f.SubjectID)
		baseQuery += fmt.Sprintf(` AND subject_id = $%d`, len(args))
	}
	if f.Type != nil {
		args = append(args, *f.Type)
		baseQuery += fmt.Sprintf(` AND type = $%d`, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + testColumns + baseQuery +
		fmt.Sprintf(` ORDER BY scheduled_start ASC NULLS LAST, created_at DESC LIMIT $%d OFFSET $%d`,
			len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := scanTest(rows, &t); err != nil {
			return nil, 0, err
		}
		tests = append(tests, t)
	}
	return tests, total, rows.Err()
}

// ListPublished returns all tests with PUBLISHED status.
// Used for cache prewarming on application startup.
func (r *TestRepository) ListPublished(ctx context.Context) ([]model.Test, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+testColumns+` FROM tests WHERE status = $1 ORDER BY created_at DESC`,
		model.TestStatusPublished)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []model.Test
	for rows.Next() {
		var t model.Test
		if err := scanTest(rows, &t); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

// ListSections retrieves a test's sections ordered by order_num.
func (r *TestRepository) ListSections(ctx context.Context, testID uuid.UUID) ([]model.Section, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, test_id, name, order_num, duration_minutes, question_count, marks_per_question
		 FROM sections WHERE test_id = $1
		 ORDER BY order_num`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sections []model.Section
	for rows.Next() {
		var s model.Section
		if err := rows.Scan(&s.ID, &s.TestID, &s.Name, &s.OrderNum,
			&s.DurationMinutes, &s.QuestionCount, &s.MarksPerQuestion); err != nil {
			return nil, err
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// CreateSection inserts a new section.
func (r *TestRepository) CreateSection(ctx context.Context, s *model.Section) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO sections (test_id, name, order_num, duration_minutes, marks_per_question)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		s.TestID, s.Name, s.OrderNum, s.DurationMinutes, s.MarksPerQuestion,
	).Scan(&s.ID)
}

// RefreshSectionQuestionCounts syncs section question_count columns with the
// actual question rows, called after the question set changes.
func (r *TestRepository) RefreshSectionQuestionCounts(ctx context.Context, testID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sections s
		 SET question_count = (SELECT COUNT(*) FROM questions q WHERE q.section_id = s.id)
		 WHERE s.test_id = $1`, testID)
	return err
}
