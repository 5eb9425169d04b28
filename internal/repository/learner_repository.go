package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testport/testport-backend/internal/model"
)

var ErrDuplicateRollNumber = errors.New("learner with this roll number already exists")

// LearnerRepository handles learner data access.
type LearnerRepository struct {
	pool *pgxpool.Pool
}

// NewLearnerRepository creates a new LearnerRepository.
func NewLearnerRepository(pool *pgxpool.Pool) *LearnerRepository {
	return &LearnerRepository{pool: pool}
}

// GetByID retrieves a learner by ID.
func (r *LearnerRepository) GetByID(ctx context.Context, id int) (*model.Learner, error) {
	l := &model.Learner{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, roll_number, name, email, batch, password_hash, created_at, updated_at
		 FROM learners WHERE id = $1`, id,
	).Scan(&l.ID, &l.RollNumber, &l.Name, &l.Email, &l.Batch, &l.PasswordHash, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// GetByRollNumber retrieves a learner by their unique roll number.
func (r *LearnerRepository) GetByRollNumber(ctx context.Context, rollNumber string) (*model.Learner, error) {
	l := &model.Learner{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, roll_number, name, email, batch, password_hash, created_at, updated_at
		 FROM learners WHERE roll_number = $1`, rollNumber,
	).Scan(&l.ID, &l.RollNumber, &l.Name, &l.Email, &l.Batch, &l.PasswordHash, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// ListPaginated retrieves learners with pagination, optional batch filter and
// name/roll-number search.
func (r *LearnerRepository) ListPaginated(ctx context.Context, batch *string, search string, limit, offset int) ([]model.Learner, int, error) {
	baseQuery := ` FROM learners WHERE 1=1`
	var args []any

	if batch != nil && *batch != "" {
		args = append(args, *batch)
		baseQuery += fmt.Sprintf(` AND batch = $%d`, len(args))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		baseQuery += fmt.Sprintf(` AND (name ILIKE $%d OR roll_number ILIKE $%d)`, len(args), len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, roll_number, name, email, batch, password_hash, created_at, updated_at` +
		baseQuery + fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var learners []model.Learner
	for rows.Next() {
		var l model.Learner
		if err := rows.Scan(&l.ID, &l.RollNumber, &l.Name, &l.Email, &l.Batch,
			&l.PasswordHash, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, 0, err
		}
		learners = append(learners, l)
	}
	return learners, total, rows.Err()
}

// Create inserts a new learner.
func (r *LearnerRepository) Create(ctx context.Context, l *model.Learner) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO learners (roll_number, name, email, batch, password_hash)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		l.RollNumber, l.Name, l.Email, l.Batch, l.PasswordHash,
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateRollNumber
		}
		return err
	}
	return nil
}

// BulkCreate inserts many learners in one round trip via COPY. Used by the
// seeding command; duplicate roll numbers fail the whole batch.
func (r *LearnerRepository) BulkCreate(ctx context.Context, learners []model.Learner) (int64, error) {
	rows := make([][]any, 0, len(learners))
	for _, l := range learners {
		rows = append(rows, []any{l.RollNumber, l.Name, l.Email, l.Batch, l.PasswordHash})
	}
	return r.pool.CopyFrom(ctx,
		pgx.Identifier{"learners"},
		[]string{"roll_number", "name", "email", "batch", "password_hash"},
		pgx.CopyFromRows(rows))
}

// Update modifies a learner's basic info (excluding password).
func (r *LearnerRepository) Update(ctx context.Context, l *model.Learner) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE learners
		 SET roll_number = $1, name = $2, email = $3, batch = $4, updated_at = NOW()
		 WHERE id = $5`,
		l.RollNumber, l.Name, l.Email, l.Batch, l.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateRollNumber
		}
		return err
	}
	return nil
}

// UpdatePassword updates a learner's password hash.
func (r *LearnerRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE learners SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
		passwordHash, id)
	return err
}

// Delete removes a learner by ID.
func (r *LearnerRepository) Delete(ctx context.Context, id int) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM learners WHERE id = $1`, id)
	return err
}
