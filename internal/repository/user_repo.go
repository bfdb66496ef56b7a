package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lumos-api/internal/domain"
)

// ErrUsernameConflict se devuelve cuando el username ya pertenece a otra cuenta.
var ErrUsernameConflict = errors.New("username already taken")

const (
	uniqueViolation  = "23505"
	usersUsernameKey = "users_username_key"
	userColumns      = `id, email, username, first_name, last_name, is_email_verified, google_id, avatar_url, is_active, created_at, updated_at`
)

// UserRepository define el contrato de persistencia para usuarios.
type UserRepository interface {
	CreateIfNotExists(ctx context.Context, user domain.User) (domain.User, bool, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
	LinkGoogle(ctx context.Context, id, googleID string, avatarURL *string, at time.Time) (bool, error)
	UpdateProfile(ctx context.Context, id, firstName, lastName, username string, at time.Time) error
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

// CreateIfNotExists inserta el usuario salvo que el email ya exista; en ese caso
// devuelve la fila existente y created=false. El constraint unico de email
// resuelve la carrera entre requests concurrentes.
func (r *PgUserRepository) CreateIfNotExists(ctx context.Context, user domain.User) (domain.User, bool, error) {
	const query = `
		INSERT INTO users (id, email, username, first_name, last_name, is_email_verified, google_id, avatar_url, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (email) DO NOTHING
		RETURNING ` + userColumns
	row := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.Username,
		user.FirstName,
		user.LastName,
		user.IsEmailVerified,
		user.GoogleID,
		user.AvatarURL,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	created, err := scanUser(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, false, mapUserErr(err)
	}
	existing, err := r.GetByEmail(ctx, user.Email)
	if err != nil {
		return domain.User{}, false, err
	}
	return existing, false, nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PgUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	return exists, err
}

func (r *PgUserRepository) MarkEmailVerified(ctx context.Context, id string, at time.Time) error {
	const query = `
		UPDATE users
		SET is_email_verified = TRUE, updated_at = $2
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// LinkGoogle vincula la identidad de Google solo si la cuenta no tenia una.
// Devuelve false cuando otra request ya la habia vinculado.
func (r *PgUserRepository) LinkGoogle(ctx context.Context, id, googleID string, avatarURL *string, at time.Time) (bool, error) {
	const query = `
		UPDATE users
		SET google_id = $2,
			avatar_url = COALESCE($3, avatar_url),
			is_email_verified = TRUE,
			updated_at = $4
		WHERE id = $1 AND google_id IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, id, googleID, avatarURL, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PgUserRepository) UpdateProfile(ctx context.Context, id, firstName, lastName, username string, at time.Time) error {
	const query = `
		UPDATE users
		SET first_name = $2, last_name = $3, username = $4, updated_at = $5
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, firstName, lastName, username, at)
	if err != nil {
		return mapUserErr(err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.IsEmailVerified,
		&u.GoogleID,
		&u.AvatarURL,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func mapUserErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == usersUsernameKey {
		return ErrUsernameConflict
	}
	return err
}
