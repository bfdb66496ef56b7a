package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"lumos-api/internal/domain"
	"lumos-api/internal/repository"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	maxProjectNameLength = 100
	maxLinkNameLength    = 100
	maxCaptionLength     = 200
	maxImageUploadBytes  = 10 << 20
)

// ObjectStore guarda archivos y devuelve la URL publica del objeto.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// ContentService expone el contenido del portfolio.
type ContentService struct {
	logger       *zap.Logger
	tags         repository.TagRepository
	technologies repository.TechnologyRepository
	projects     repository.ProjectRepository
	store        ObjectStore
	now          func() time.Time
}

func NewContentService(
	logger *zap.Logger,
	tags repository.TagRepository,
	technologies repository.TechnologyRepository,
	projects repository.ProjectRepository,
	store ObjectStore,
) *ContentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContentService{
		logger:       logger,
		tags:         tags,
		technologies: technologies,
		projects:     projects,
		store:        store,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *ContentService) ListTags(ctx context.Context) ([]domain.Tag, error) {
	return s.tags.List(ctx)
}

func (s *ContentService) ListTechnologies(ctx context.Context) ([]domain.Technology, error) {
	return s.technologies.List(ctx)
}

// ResolvePageSize: vacio, invalido o <= 0 usa el default; mayor al maximo se recorta.
func ResolvePageSize(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// ResolvePage: vacio es la pagina 1; cualquier otro valor no numerico o < 1 es ErrInvalidPage.
func ResolvePage(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, ErrInvalidPage
	}
	return n, nil
}

// ListProjects devuelve la pagina pedida ordenada por prioridad y fecha.
// Con cero proyectos la pagina 1 existe y viene vacia.
func (s *ContentService) ListProjects(ctx context.Context, rawPage, rawPageSize string) (domain.ProjectPage, error) {
	page, err := ResolvePage(rawPage)
	if err != nil {
		return domain.ProjectPage{}, err
	}
	pageSize := ResolvePageSize(rawPageSize)

	count, err := s.projects.Count(ctx)
	if err != nil {
		return domain.ProjectPage{}, err
	}
	totalPages := 1
	if count > 0 {
		totalPages = (count + pageSize - 1) / pageSize
	}
	if page > totalPages {
		return domain.ProjectPage{}, ErrInvalidPage
	}

	projects, err := s.projects.List(ctx, pageSize, (page-1)*pageSize)
	if err != nil {
		return domain.ProjectPage{}, err
	}
	items := make([]domain.ProjectListItem, 0, len(projects))
	for _, p := range projects {
		items = append(items, p.ListItem())
	}
	return domain.ProjectPage{
		Count:      count,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		Results:    items,
	}, nil
}

func (s *ContentService) GetProject(ctx context.Context, rawID string) (domain.Project, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(rawID), 10, 64)
	if err != nil || id <= 0 {
		return domain.Project{}, ErrProjectNotFound
	}
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Project{}, ErrProjectNotFound
		}
		return domain.Project{}, err
	}
	return project, nil
}

type LinkInput struct {
	Name string
	URL  string
	Icon *string
}

type ImageInput struct {
	Image   string
	Caption *string
}

type ProjectInput struct {
	Name          string
	Description   *string
	Summary       *string
	Thumbnail     *string
	Priority      *int
	TechnologyIDs []int64
	TagIDs        []int64
	Links         []LinkInput
	Images        []ImageInput
}

// CreateProject valida el input completo y persiste el proyecto con sus
// relaciones en una sola transaccion.
func (s *ContentService) CreateProject(ctx context.Context, in ProjectInput) (domain.Project, error) {
	verr := &ValidationError{}

	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		verr.Add("name", "This field may not be blank.")
	case len([]rune(name)) > maxProjectNameLength:
		verr.Add("name", "Ensure this field has no more than 100 characters.")
	}

	thumbnail := optionalTrimmed(in.Thumbnail)
	if thumbnail != nil && !isHTTPURL(*thumbnail) {
		verr.Add("thumbnail", "Enter a valid URL.")
	}

	techIDs := uniqueIDs(in.TechnologyIDs)
	if err := s.checkRelated(ctx, verr, "technology_ids", techIDs, s.technologies.ExistingIDs); err != nil {
		return domain.Project{}, err
	}
	tagIDs := uniqueIDs(in.TagIDs)
	if err := s.checkRelated(ctx, verr, "tag_ids", tagIDs, s.tags.ExistingIDs); err != nil {
		return domain.Project{}, err
	}

	links := make([]domain.Link, 0, len(in.Links))
	for i, l := range in.Links {
		field := fmt.Sprintf("links[%d]", i)
		linkName := strings.TrimSpace(l.Name)
		switch {
		case linkName == "":
			verr.Add(field+".name", "This field may not be blank.")
		case len([]rune(linkName)) > maxLinkNameLength:
			verr.Add(field+".name", "Ensure this field has no more than 100 characters.")
		}
		linkURL := strings.TrimSpace(l.URL)
		if !isHTTPURL(linkURL) {
			verr.Add(field+".url", "Enter a valid URL.")
		}
		icon := optionalTrimmed(l.Icon)
		if icon != nil && !isHTTPURL(*icon) {
			verr.Add(field+".icon", "Enter a valid URL.")
		}
		links = append(links, domain.Link{Name: linkName, URL: linkURL, Icon: icon})
	}

	images := make([]domain.ProjectImage, 0, len(in.Images))
	for i, img := range in.Images {
		field := fmt.Sprintf("images[%d]", i)
		imageURL := strings.TrimSpace(img.Image)
		if !isHTTPURL(imageURL) {
			verr.Add(field+".image", "Enter a valid URL.")
		}
		caption := optionalTrimmed(img.Caption)
		if caption != nil && len([]rune(*caption)) > maxCaptionLength {
			verr.Add(field+".caption", "Ensure this field has no more than 200 characters.")
		}
		images = append(images, domain.ProjectImage{Image: imageURL, Caption: caption})
	}

	if !verr.Empty() {
		return domain.Project{}, verr
	}

	priority := 0
	if in.Priority != nil {
		priority = *in.Priority
	}
	now := s.now()
	project := domain.Project{
		Name:         name,
		Description:  optionalTrimmed(in.Description),
		Summary:      optionalTrimmed(in.Summary),
		Thumbnail:    thumbnail,
		Priority:     priority,
		Technologies: make([]domain.Technology, 0, len(techIDs)),
		Tags:         make([]domain.Tag, 0, len(tagIDs)),
		Links:        links,
		Images:       images,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, id := range techIDs {
		project.Technologies = append(project.Technologies, domain.Technology{ID: id})
	}
	for _, id := range tagIDs {
		project.Tags = append(project.Tags, domain.Tag{ID: id})
	}

	created, err := s.projects.Create(ctx, project)
	if err != nil {
		s.logger.Error("create project failed", zap.String("name", name), zap.Error(err))
		return domain.Project{}, err
	}
	return created, nil
}

// ImageUpload es un archivo recibido por multipart.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	Caption     *string
}

// AddProjectImage sube la imagen al object storage y la asocia al proyecto.
func (s *ContentService) AddProjectImage(ctx context.Context, rawProjectID string, upload ImageUpload) (domain.ProjectImage, error) {
	if s.store == nil {
		return domain.ProjectImage{}, ErrStorageDisabled
	}
	project, err := s.GetProject(ctx, rawProjectID)
	if err != nil {
		return domain.ProjectImage{}, err
	}

	verr := &ValidationError{}
	contentType := strings.ToLower(strings.TrimSpace(upload.ContentType))
	if !strings.HasPrefix(contentType, "image/") {
		verr.Add("image", "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	}
	if upload.Size <= 0 {
		verr.Add("image", "The submitted file is empty.")
	} else if upload.Size > maxImageUploadBytes {
		verr.Add("image", "The submitted file is too large.")
	}
	caption := optionalTrimmed(upload.Caption)
	if caption != nil && len([]rune(*caption)) > maxCaptionLength {
		verr.Add("caption", "Ensure this field has no more than 200 characters.")
	}
	if !verr.Empty() {
		return domain.ProjectImage{}, verr
	}

	key := "project_images/" + uuid.NewString() + strings.ToLower(path.Ext(upload.Filename))
	imageURL, err := s.store.Put(ctx, key, upload.Body, upload.Size, contentType)
	if err != nil {
		return domain.ProjectImage{}, fmt.Errorf("upload project image: %w", err)
	}

	image, err := s.projects.AddImage(ctx, domain.ProjectImage{
		ProjectID: project.ID,
		Image:     imageURL,
		Caption:   caption,
	})
	if err != nil {
		s.logger.Error("store project image failed",
			zap.Int64("project_id", project.ID),
			zap.String("key", key),
			zap.Error(err),
		)
		return domain.ProjectImage{}, err
	}
	return image, nil
}

func (s *ContentService) checkRelated(
	ctx context.Context,
	verr *ValidationError,
	field string,
	ids []int64,
	existing func(context.Context, []int64) ([]int64, error),
) error {
	if len(ids) == 0 {
		return nil
	}
	found, err := existing(ctx, ids)
	if err != nil {
		return err
	}
	known := make(map[int64]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			verr.Add(field, fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", id))
		}
	}
	return nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func optionalTrimmed(s *string) *string {
	if s == nil {
		return nil
	}
	return optionalString(*s)
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
