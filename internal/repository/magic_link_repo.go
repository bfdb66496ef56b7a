package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lumos-api/internal/domain"
)

// MagicLinkRepository persiste los links de acceso. Los registros nunca se
// borran; quedan como auditoria.
type MagicLinkRepository interface {
	Create(ctx context.Context, link domain.MagicLink) error
	GetByToken(ctx context.Context, token string) (domain.MagicLink, error)
	Consume(ctx context.Context, id string, usedAt time.Time) (bool, error)
}

type PgMagicLinkRepository struct {
	pool *pgxpool.Pool
}

func NewPgMagicLinkRepository(pool *pgxpool.Pool) *PgMagicLinkRepository {
	return &PgMagicLinkRepository{pool: pool}
}

func (r *PgMagicLinkRepository) Create(ctx context.Context, link domain.MagicLink) error {
	const query = `
		INSERT INTO magic_links (id, user_id, token, email, is_signup, is_used, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		link.ID,
		link.UserID,
		link.Token,
		link.Email,
		link.IsSignup,
		link.ExpiresAt,
		link.CreatedAt,
	)
	return err
}

func (r *PgMagicLinkRepository) GetByToken(ctx context.Context, token string) (domain.MagicLink, error) {
	const query = `
		SELECT id, user_id, token, email, is_signup, is_used, expires_at, created_at, used_at
		FROM magic_links
		WHERE token = $1
	`
	var link domain.MagicLink
	err := r.pool.QueryRow(ctx, query, token).Scan(
		&link.ID,
		&link.UserID,
		&link.Token,
		&link.Email,
		&link.IsSignup,
		&link.IsUsed,
		&link.ExpiresAt,
		&link.CreatedAt,
		&link.UsedAt,
	)
	if err != nil {
		return domain.MagicLink{}, err
	}
	return link, nil
}

// Consume marca el link como usado con compare-and-set sobre is_used.
// Devuelve false si otra request lo consumio antes o si ya expiro.
func (r *PgMagicLinkRepository) Consume(ctx context.Context, id string, usedAt time.Time) (bool, error) {
	const query = `
		UPDATE magic_links
		SET is_used = TRUE, used_at = $2
		WHERE id = $1 AND is_used = FALSE AND expires_at > $2
	`
	tag, err := r.pool.Exec(ctx, query, id, usedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
