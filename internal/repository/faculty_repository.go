package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testport/testport-backend/internal/model"
)

var ErrDuplicateEmail = errors.New("faculty with this email already exists")

// FacultyRepository handles faculty account data access.
type FacultyRepository struct {
	pool *pgxpool.Pool
}

// NewFacultyRepository creates a new FacultyRepository.
func NewFacultyRepository(pool *pgxpool.Pool) *FacultyRepository {
	return &FacultyRepository{pool: pool}
}

// GetByID retrieves a faculty account by ID.
func (r *FacultyRepository) GetByID(ctx context.Context, id int) (*model.Faculty, error) {
	f := &model.Faculty{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, role, created_at, updated_at
		 FROM faculty WHERE id = $1`, id,
	).Scan(&f.ID, &f.Name, &f.Email, &f.PasswordHash, &f.Role, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// GetByEmail retrieves a faculty account by email, used for login.
func (r *FacultyRepository) GetByEmail(ctx context.Context, email string) (*model.Faculty, error) {
	f := &model.Faculty{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, role, created_at, updated_at
		 FROM faculty WHERE email = $1`, email,
	).Scan(&f.ID, &f.Name, &f.Email, &f.PasswordHash, &f.Role, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// List retrieves all faculty accounts ordered by name.
func (r *FacultyRepository) List(ctx context.Context) ([]model.Faculty, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, email, password_hash, role, created_at, updated_at
		 FROM faculty ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var faculty []model.Faculty
	for rows.Next() {
		var f model.Faculty
		if err := rows.Scan(&f.ID, &f.Name, &f.Email, &f.PasswordHash, &f.Role,
			&f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		faculty = append(faculty, f)
	}
	return faculty, rows.Err()
}

// Create inserts a new faculty account.
func (r *FacultyRepository) Create(ctx context.Context, f *model.Faculty) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO faculty (name, email, password_hash, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at, updated_at`,
		f.Name, f.Email, f.PasswordHash, f.Role,
	).Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// Update modifies a faculty account (excluding password).
func (r *FacultyRepository) Update(ctx context.Context, f *model.Faculty) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE faculty SET name = $1, email = $2, role = $3, updated_at = NOW()
		 WHERE id = $4`,
		f.Name, f.Email, f.Role, f.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// UpdatePassword updates a faculty account's password hash.
func (r *FacultyRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE faculty SET password_hash = $1, updated_at = NOW() WHERE id = $2`,
		passwordHash, id)
	return err
}

// Delete removes a faculty account by ID.
func (r *FacultyRepository) Delete(ctx context.Context, id int) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM faculty WHERE id = $1`, id)
	return err
}
