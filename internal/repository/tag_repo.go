package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"lumos-api/internal/domain"
)

type TagRepository interface {
	List(ctx context.Context) ([]domain.Tag, error)
	ExistingIDs(ctx context.Context, ids []int64) ([]int64, error)
}

type PgTagRepository struct {
	pool *pgxpool.Pool
}

func NewPgTagRepository(pool *pgxpool.Pool) *PgTagRepository {
	return &PgTagRepository{pool: pool}
}

func (r *PgTagRepository) List(ctx context.Context) ([]domain.Tag, error) {
	const query = `
		SELECT id, name, icon, color
		FROM tags
		ORDER BY id ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []domain.Tag{}
	for rows.Next() {
		var tag domain.Tag
		if err := rows.Scan(&tag.ID, &tag.Name, &tag.Icon, &tag.Color); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func (r *PgTagRepository) ExistingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	return existingIDs(ctx, r.pool, `SELECT id FROM tags WHERE id = ANY($1)`, ids)
}

func existingIDs(ctx context.Context, pool *pgxpool.Pool, query string, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var found []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found = append(found, id)
	}
	return found, rows.Err()
}
