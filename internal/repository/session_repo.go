package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lumos-api/internal/domain"
)

type SessionRepository interface {
	Create(ctx context.Context, session domain.UserSession) error
	ListActiveByUser(ctx context.Context, userID string) ([]domain.UserSession, error)
	Deactivate(ctx context.Context, userID, sessionKey string) (int64, error)
	Touch(ctx context.Context, userID, sessionKey string, at time.Time) (bool, error)
}

type PgSessionRepository struct {
	pool *pgxpool.Pool
}

func NewPgSessionRepository(pool *pgxpool.Pool) *PgSessionRepository {
	return &PgSessionRepository{pool: pool}
}

func (r *PgSessionRepository) Create(ctx context.Context, session domain.UserSession) error {
	const query = `
		INSERT INTO user_sessions (id, user_id, session_key, ip_address, user_agent, login_method, is_active, created_at, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.UserID,
		session.SessionKey,
		session.IPAddress,
		session.UserAgent,
		string(session.LoginMethod),
		session.IsActive,
		session.CreatedAt,
		session.LastActivity,
	)
	return err
}

func (r *PgSessionRepository) ListActiveByUser(ctx context.Context, userID string) ([]domain.UserSession, error) {
	const query = `
		SELECT id, user_id, session_key, ip_address, user_agent, login_method, is_active, created_at, last_activity
		FROM user_sessions
		WHERE user_id = $1 AND is_active = TRUE
		ORDER BY last_activity DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []domain.UserSession
	for rows.Next() {
		var s domain.UserSession
		var method string
		err = rows.Scan(
			&s.ID,
			&s.UserID,
			&s.SessionKey,
			&s.IPAddress,
			&s.UserAgent,
			&method,
			&s.IsActive,
			&s.CreatedAt,
			&s.LastActivity,
		)
		if err != nil {
			return nil, err
		}
		s.LoginMethod = domain.LoginMethod(method)
		sessions = append(sessions, s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Deactivate apaga la sesion (user, key). Una key que no coincide no afecta filas.
func (r *PgSessionRepository) Deactivate(ctx context.Context, userID, sessionKey string) (int64, error) {
	const query = `
		UPDATE user_sessions
		SET is_active = FALSE
		WHERE user_id = $1 AND session_key = $2 AND is_active = TRUE
	`
	tag, err := r.pool.Exec(ctx, query, userID, sessionKey)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Touch actualiza last_activity; devuelve false si la sesion no esta activa.
func (r *PgSessionRepository) Touch(ctx context.Context, userID, sessionKey string, at time.Time) (bool, error) {
	const query = `
		UPDATE user_sessions
		SET last_activity = $3
		WHERE user_id = $1 AND session_key = $2 AND is_active = TRUE
	`
	tag, err := r.pool.Exec(ctx, query, userID, sessionKey, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
