package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"lumos-api/internal/domain"
)

type TechnologyRepository interface {
	List(ctx context.Context) ([]domain.Technology, error)
	ExistingIDs(ctx context.Context, ids []int64) ([]int64, error)
}

type PgTechnologyRepository struct {
	pool *pgxpool.Pool
}

func NewPgTechnologyRepository(pool *pgxpool.Pool) *PgTechnologyRepository {
	return &PgTechnologyRepository{pool: pool}
}

func (r *PgTechnologyRepository) List(ctx context.Context) ([]domain.Technology, error) {
	const query = `
		SELECT id, name, icon
		FROM technologies
		ORDER BY id ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	techs := []domain.Technology{}
	for rows.Next() {
		var tech domain.Technology
		if err := rows.Scan(&tech.ID, &tech.Name, &tech.Icon); err != nil {
			return nil, err
		}
		techs = append(techs, tech)
	}
	return techs, rows.Err()
}

func (r *PgTechnologyRepository) ExistingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	return existingIDs(ctx, r.pool, `SELECT id FROM technologies WHERE id = ANY($1)`, ids)
}
