// Package users provides the PostgreSQL-backed repository for back-office
// accounts. The repository is the sole writer of user rows.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dkravets/backoffice/internal/common"
	"github.com/dkravets/backoffice/internal/dbx"
	"github.com/dkravets/backoffice/internal/server/models"
	"github.com/dkravets/backoffice/internal/server/roles"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new account. A duplicate email yields common.ErrConflict.
func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (email, password_hash, first_name, last_name, role, is_active, is_verified, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.Role.String(), user.IsActive, user.IsVerified, user.RegisteredAt,
	).Scan(&user.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return nil, common.ErrConflict
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

// GetByEmail returns the account with the given email or common.ErrNotFound.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, role, is_active, is_verified, registered_at, last_login_at
		FROM users
		WHERE email = $1
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetByID returns the account with the given id or common.ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, role, is_active, is_verified, registered_at, last_login_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// SetVerified flips the account to verified. The transition is terminal.
func (r *PostgresRepository) SetVerified(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE users SET is_verified = TRUE WHERE id = $1`, id)
}

// SetLastLogin records the time of the latest successful authentication.
func (r *PostgresRepository) SetLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
}

// UpdateRole overwrites the account role.
func (r *PostgresRepository) UpdateRole(ctx context.Context, id string, role roles.Role) error {
	return r.exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, role.String())
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) scanUser(row *sql.Row) (*models.User, error) {
	var (
		user      models.User
		firstName sql.NullString
		lastName  sql.NullString
		roleName  string
		lastLogin sql.NullTime
	)

	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &firstName, &lastName,
		&roleName, &user.IsActive, &user.IsVerified, &user.RegisteredAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.FirstName = firstName.String
	user.LastName = lastName.String
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}

	role, err := roles.Parse(roleName)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	user.Role = role

	return &user, nil
}
