package domain

import "time"

type Tag struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Icon  *string `json:"icon"`
	Color *string `json:"color"`
}

type Technology struct {
	ID   int64   `json:"id"`
	Name string  `json:"name"`
	Icon *string `json:"icon"`
}

type Link struct {
	ID        int64   `json:"id"`
	ProjectID int64   `json:"-"`
	Name      string  `json:"name"`
	URL       string  `json:"url"`
	Icon      *string `json:"icon"`
}

type ProjectImage struct {
	ID        int64   `json:"id"`
	ProjectID int64   `json:"-"`
	Image     string  `json:"image"`
	Caption   *string `json:"caption"`
}

// Project agrupa el contenido de portfolio con sus relaciones.
// Links e Images solo se cargan en el detalle.
type Project struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	Description  *string        `json:"description"`
	Summary      *string        `json:"summary"`
	Thumbnail    *string        `json:"thumbnail"`
	Technologies []Technology   `json:"technologies"`
	Tags         []Tag          `json:"tags"`
	Links        []Link         `json:"links"`
	Images       []ProjectImage `json:"images"`
	Priority     int            `json:"priority"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// ProjectListItem es la forma reducida usada en el listado paginado.
type ProjectListItem struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Summary      *string      `json:"summary"`
	Thumbnail    *string      `json:"thumbnail"`
	Technologies []Technology `json:"technologies"`
	Tags         []Tag        `json:"tags"`
	Priority     int          `json:"priority"`
}

func (p Project) ListItem() ProjectListItem {
	techs := p.Technologies
	if techs == nil {
		techs = []Technology{}
	}
	tags := p.Tags
	if tags == nil {
		tags = []Tag{}
	}
	return ProjectListItem{
		ID:           p.ID,
		Name:         p.Name,
		Summary:      p.Summary,
		Thumbnail:    p.Thumbnail,
		Technologies: techs,
		Tags:         tags,
		Priority:     p.Priority,
	}
}

// ProjectPage es una pagina del listado de proyectos.
type ProjectPage struct {
	Count      int               `json:"count"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
	Results    []ProjectListItem `json:"results"`
}
