package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lumos-api/internal/domain"
)

type ProjectRepository interface {
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, limit, offset int) ([]domain.Project, error)
	GetByID(ctx context.Context, id int64) (domain.Project, error)
	Create(ctx context.Context, project domain.Project) (domain.Project, error)
	AddImage(ctx context.Context, image domain.ProjectImage) (domain.ProjectImage, error)
}

type PgProjectRepository struct {
	pool *pgxpool.Pool
}

func NewPgProjectRepository(pool *pgxpool.Pool) *PgProjectRepository {
	return &PgProjectRepository{pool: pool}
}

const projectColumns = `id, name, description, summary, thumbnail, priority, created_at, updated_at`

// projectListOrder: primero mayor prioridad, luego los mas recientes; id desempata.
const projectListOrder = `priority DESC, created_at DESC, id DESC`

const listProjectsQuery = `
	SELECT ` + projectColumns + `
	FROM projects
	ORDER BY ` + projectListOrder + `
	LIMIT $1 OFFSET $2
`

func (r *PgProjectRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects`).Scan(&n)
	return n, err
}

func (r *PgProjectRepository) List(ctx context.Context, limit, offset int) ([]domain.Project, error) {
	rows, err := r.pool.Query(ctx, listProjectsQuery, limit, offset)
	if err != nil {
		return nil, err
	}
	projects, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Project, error) {
		return scanProject(row)
	})
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return projects, nil
	}

	ids := make([]int64, len(projects))
	for i, p := range projects {
		ids[i] = p.ID
	}
	techs, err := r.technologiesFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	tags, err := r.tagsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		projects[i].Technologies = nonNilTechs(techs[projects[i].ID])
		projects[i].Tags = nonNilTags(tags[projects[i].ID])
	}
	return projects, nil
}

func (r *PgProjectRepository) GetByID(ctx context.Context, id int64) (domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	project, err := scanProject(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Project{}, err
	}

	ids := []int64{id}
	techs, err := r.technologiesFor(ctx, ids)
	if err != nil {
		return domain.Project{}, err
	}
	tags, err := r.tagsFor(ctx, ids)
	if err != nil {
		return domain.Project{}, err
	}
	project.Technologies = nonNilTechs(techs[id])
	project.Tags = nonNilTags(tags[id])

	if project.Links, err = r.linksFor(ctx, id); err != nil {
		return domain.Project{}, err
	}
	if project.Images, err = r.imagesFor(ctx, id); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// Create inserta el proyecto con sus relaciones en una sola transaccion.
// Technologies y Tags solo necesitan el ID.
func (r *PgProjectRepository) Create(ctx context.Context, project domain.Project) (domain.Project, error) {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insertProject = `
			INSERT INTO projects (name, description, summary, thumbnail, priority, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`
		err := tx.QueryRow(ctx, insertProject,
			project.Name,
			project.Description,
			project.Summary,
			project.Thumbnail,
			project.Priority,
			project.CreatedAt,
			project.UpdatedAt,
		).Scan(&project.ID)
		if err != nil {
			return err
		}

		for _, tech := range project.Technologies {
			if _, err := tx.Exec(ctx, `INSERT INTO project_technologies (project_id, technology_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, project.ID, tech.ID); err != nil {
				return err
			}
		}
		for _, tag := range project.Tags {
			if _, err := tx.Exec(ctx, `INSERT INTO project_tags (project_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, project.ID, tag.ID); err != nil {
				return err
			}
		}
		for i := range project.Links {
			link := &project.Links[i]
			link.ProjectID = project.ID
			err := tx.QueryRow(ctx,
				`INSERT INTO links (project_id, name, url, icon) VALUES ($1, $2, $3, $4) RETURNING id`,
				project.ID, link.Name, link.URL, link.Icon,
			).Scan(&link.ID)
			if err != nil {
				return err
			}
		}
		for i := range project.Images {
			img := &project.Images[i]
			img.ProjectID = project.ID
			err := tx.QueryRow(ctx,
				`INSERT INTO project_images (project_id, image, caption) VALUES ($1, $2, $3) RETURNING id`,
				project.ID, img.Image, img.Caption,
			).Scan(&img.ID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Project{}, err
	}
	return r.GetByID(ctx, project.ID)
}

func (r *PgProjectRepository) AddImage(ctx context.Context, image domain.ProjectImage) (domain.ProjectImage, error) {
	const query = `
		INSERT INTO project_images (project_id, image, caption)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	if err := r.pool.QueryRow(ctx, query, image.ProjectID, image.Image, image.Caption).Scan(&image.ID); err != nil {
		return domain.ProjectImage{}, err
	}
	return image, nil
}

func (r *PgProjectRepository) technologiesFor(ctx context.Context, projectIDs []int64) (map[int64][]domain.Technology, error) {
	const query = `
		SELECT pt.project_id, t.id, t.name, t.icon
		FROM project_technologies pt
		JOIN technologies t ON t.id = pt.technology_id
		WHERE pt.project_id = ANY($1)
		ORDER BY t.id
	`
	rows, err := r.pool.Query(ctx, query, projectIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]domain.Technology)
	for rows.Next() {
		var projectID int64
		var tech domain.Technology
		if err := rows.Scan(&projectID, &tech.ID, &tech.Name, &tech.Icon); err != nil {
			return nil, err
		}
		out[projectID] = append(out[projectID], tech)
	}
	return out, rows.Err()
}

func (r *PgProjectRepository) tagsFor(ctx context.Context, projectIDs []int64) (map[int64][]domain.Tag, error) {
	const query = `
		SELECT pt.project_id, t.id, t.name, t.icon, t.color
		FROM project_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.project_id = ANY($1)
		ORDER BY t.id
	`
	rows, err := r.pool.Query(ctx, query, projectIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]domain.Tag)
	for rows.Next() {
		var projectID int64
		var tag domain.Tag
		if err := rows.Scan(&projectID, &tag.ID, &tag.Name, &tag.Icon, &tag.Color); err != nil {
			return nil, err
		}
		out[projectID] = append(out[projectID], tag)
	}
	return out, rows.Err()
}

func (r *PgProjectRepository) linksFor(ctx context.Context, projectID int64) ([]domain.Link, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, project_id, name, url, icon FROM links WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := []domain.Link{}
	for rows.Next() {
		var l domain.Link
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.Name, &l.URL, &l.Icon); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *PgProjectRepository) imagesFor(ctx context.Context, projectID int64) ([]domain.ProjectImage, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, project_id, image, caption FROM project_images WHERE project_id = $1 ORDER BY id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []domain.ProjectImage{}
	for rows.Next() {
		var img domain.ProjectImage
		if err := rows.Scan(&img.ID, &img.ProjectID, &img.Image, &img.Caption); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func scanProject(row pgx.Row) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Summary,
		&p.Thumbnail,
		&p.Priority,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

func nonNilTechs(in []domain.Technology) []domain.Technology {
	if in == nil {
		return []domain.Technology{}
	}
	return in
}

func nonNilTags(in []domain.Tag) []domain.Tag {
	if in == nil {
		return []domain.Tag{}
	}
	return in
}
