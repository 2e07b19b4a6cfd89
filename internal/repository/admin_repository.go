package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"hostpanel/internal/models"
)

var (
	ErrAdminNotFound  = errors.New("admin not found")
	ErrDuplicateAdmin = errors.New("username or email already taken")
)

const uniqueViolation = "23505"

type AdminRepository struct {
	pool *pgxpool.Pool
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

func (r *AdminRepository) Create(ctx context.Context, admin models.Admin) error {
	const query = `
		INSERT INTO admins (
			id, username, email, password_hash, role, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $6
		)
	`

	_, err := r.pool.Exec(ctx, query,
		admin.ID,
		admin.Username,
		admin.Email,
		admin.PasswordHash,
		admin.Role,
		admin.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateAdmin
	}
	return err
}

// FindByIdentifier matches the identifier against username or email in one query.
// Emails are stored lowercased and compared case-insensitively; usernames are exact.
func (r *AdminRepository) FindByIdentifier(ctx context.Context, identifier string) (models.Admin, error) {
	const query = `
		SELECT id, username, email, password_hash, role, last_login_at, created_at, updated_at
		FROM admins WHERE username = $1 OR email = lower($1)
		ORDER BY (username = $1) DESC
		LIMIT 1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, identifier))
}

func (r *AdminRepository) GetByID(ctx context.Context, id string) (models.Admin, error) {
	const query = `
		SELECT id, username, email, password_hash, role, last_login_at, created_at, updated_at
		FROM admins WHERE id = $1
	`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *AdminRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE admins SET last_login_at = $2, updated_at = $2 WHERE id = $1
	`
	cmd, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAdminNotFound
	}
	return nil
}

func (r *AdminRepository) scanOne(row pgx.Row) (models.Admin, error) {
	var admin models.Admin
	if err := row.Scan(
		&admin.ID,
		&admin.Username,
		&admin.Email,
		&admin.PasswordHash,
		&admin.Role,
		&admin.LastLoginAt,
		&admin.CreatedAt,
		&admin.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Admin{}, ErrAdminNotFound
		}
		return models.Admin{}, err
	}
	return admin, nil
}
