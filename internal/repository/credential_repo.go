package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"lumos-api/internal/domain"
)

type CredentialRepository interface {
	Upsert(ctx context.Context, cred domain.UserCredential) error
	GetByUserID(ctx context.Context, userID string) (domain.UserCredential, error)
}

type PgCredentialRepository struct {
	pool *pgxpool.Pool
}

func NewPgCredentialRepository(pool *pgxpool.Pool) *PgCredentialRepository {
	return &PgCredentialRepository{pool: pool}
}

func (r *PgCredentialRepository) Upsert(ctx context.Context, cred domain.UserCredential) error {
	const query = `
		INSERT INTO user_credentials (user_id, password_hash, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET password_hash = EXCLUDED.password_hash, updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query, cred.UserID, cred.PasswordHash, cred.UpdatedAt)
	return err
}

func (r *PgCredentialRepository) GetByUserID(ctx context.Context, userID string) (domain.UserCredential, error) {
	const query = `
		SELECT user_id, password_hash, updated_at
		FROM user_credentials
		WHERE user_id = $1
	`
	var cred domain.UserCredential
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&cred.UserID,
		&cred.PasswordHash,
		&cred.UpdatedAt,
	)
	if err != nil {
		return domain.UserCredential{}, err
	}
	return cred, nil
}
