package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testport/testport-backend/internal/model"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByTest retrieves all questions for a given test, ordered by section and order_num.
func (r *QuestionRepository) ListByTest(ctx context.Context, testID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT q.id, q.test_id, q.section_id, q.text, q.image_url, q.options,
		        q.correct_option, q.marks, q.is_coding, q.order_num
		 FROM questions q
		 LEFT JOIN sections s ON q.section_id = s.id
		 WHERE q.test_id = $1
		 ORDER BY s.order_num NULLS FIRST, q.order_num`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.TestID, &q.SectionID, &q.Text, &q.ImageURL,
			&q.Options, &q.CorrectOption, &q.Marks, &q.IsCoding, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// GetByID retrieves a single question.
func (r *QuestionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Question, error) {
	q := &model.Question{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, test_id, section_id, text, image_url, options,
		        correct_option, marks, is_coding, order_num
		 FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.TestID, &q.SectionID, &q.Text, &q.ImageURL,
		&q.Options, &q.CorrectOption, &q.Marks, &q.IsCoding, &q.OrderNum)
	if err != nil {
		return nil, err
	}
	return q, nil
}

// Create inserts a new question.
func (r *QuestionRepository) Create(ctx context.Context, q *model.Question) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO questions (test_id, section_id, text, image_url, options, correct_option, marks, is_coding, order_num)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		q.TestID, q.SectionID, q.Text, q.ImageURL, q.Options,
		q.CorrectOption, q.Marks, q.IsCoding, q.OrderNum,
	).Scan(&q.ID)
}

// Update modifies an existing question.
func (r *QuestionRepository) Update(ctx context.Context, q *model.Question) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE questions
		 SET text = $1, image_url = $2, options = $3, correct_option = $4,
		     marks = $5, is_coding = $6, order_num = $7
		 WHERE id = $8`,
		q.Text, q.ImageURL, q.Options, q.CorrectOption, q.Marks, q.IsCoding, q.OrderNum, q.ID)
	return err
}

// Delete removes a question.
func (r *QuestionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
	return err
}

// ReplaceAll atomically swaps a test's entire question set. Used by the bulk
// editor so a half-applied import never leaks into a live test.
func (r *QuestionRepository) ReplaceAll(ctx context.Context, testID uuid.UUID, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE test_id = $1`, testID); err != nil {
		return err
	}

	for i := range questions {
		q := &questions[i]
		if err := tx.QueryRow(ctx,
			`INSERT INTO questions (test_id, section_id, text, image_url, options, correct_option, marks, is_coding, order_num)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id`,
			testID, q.SectionID, q.Text, q.ImageURL, q.Options,
			q.CorrectOption, q.Marks, q.IsCoding, q.OrderNum,
		).Scan(&q.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// CountByTest returns the number of questions attached to a test.
func (r *QuestionRepository) CountByTest(ctx context.Context, testID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM questions WHERE test_id = $1`, testID).Scan(&n)
	return n, err
}
