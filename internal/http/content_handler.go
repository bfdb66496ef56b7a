package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"lumos-api/internal/service"
)

// ContentHandler sirve tags, tecnologias y proyectos.
type ContentHandler struct {
	logger  *zap.Logger
	content *service.ContentService
}

func NewContentHandler(logger *zap.Logger, content *service.ContentService) *ContentHandler {
	return &ContentHandler{
		logger:  logger,
		content: content,
	}
}

// ListTags maneja GET /api/v1/tags/.
func (h *ContentHandler) ListTags(c *gin.Context) {
	tags, err := h.content.ListTags(c.Request.Context())
	if err != nil {
		h.serverError(c, "list tags failed", err)
		return
	}
	respondContent(c, http.StatusOK, "Tags fetched successfully", tags)
}

// ListTechnologies maneja GET /api/v1/technologies/.
func (h *ContentHandler) ListTechnologies(c *gin.Context) {
	techs, err := h.content.ListTechnologies(c.Request.Context())
	if err != nil {
		h.serverError(c, "list technologies failed", err)
		return
	}
	respondContent(c, http.StatusOK, "Technologies fetched successfully", techs)
}

// ListProjects maneja GET /api/v1/projects/?page=&page_size=.
func (h *ContentHandler) ListProjects(c *gin.Context) {
	page, err := h.content.ListProjects(c.Request.Context(), c.Query("page"), c.Query("page_size"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidPage) {
			respondContentError(c, http.StatusNotFound, "Invalid page.", nil)
			return
		}
		h.serverError(c, "list projects failed", err)
		return
	}
	respondContent(c, http.StatusOK, "Projects fetched successfully", page)
}

// GetProject maneja GET /api/v1/projects/:id/.
func (h *ContentHandler) GetProject(c *gin.Context) {
	project, err := h.content.GetProject(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrProjectNotFound) {
			respondContentError(c, http.StatusNotFound, "Project not found", nil)
			return
		}
		h.serverError(c, "get project failed", err)
		return
	}
	respondContent(c, http.StatusOK, "Project fetched successfully", project)
}

type linkRequest struct {
	Name string  `json:"name"`
	URL  string  `json:"url"`
	Icon *string `json:"icon"`
}

type imageRequest struct {
	Image   string  `json:"image"`
	Caption *string `json:"caption"`
}

type createProjectRequest struct {
	Name          string         `json:"name" binding:"required"`
	Description   *string        `json:"description"`
	Summary       *string        `json:"summary"`
	Thumbnail     *string        `json:"thumbnail"`
	Priority      *int           `json:"priority"`
	TechnologyIDs []int64        `json:"technology_ids"`
	TagIDs        []int64        `json:"tag_ids"`
	Links         []linkRequest  `json:"links"`
	Images        []imageRequest `json:"images"`
}

// CreateProject maneja POST /api/v1/projects/create/.
func (h *ContentHandler) CreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if fields, ok := bindingFieldErrors(err); ok {
			respondContentError(c, http.StatusBadRequest, "Validation failed", fields)
			return
		}
		h.logger.Warn("invalid create project request", zap.Error(err))
		respondContentError(c, http.StatusBadRequest, "invalid request", nil)
		return
	}

	in := service.ProjectInput{
		Name:          req.Name,
		Description:   req.Description,
		Summary:       req.Summary,
		Thumbnail:     req.Thumbnail,
		Priority:      req.Priority,
		TechnologyIDs: req.TechnologyIDs,
		TagIDs:        req.TagIDs,
	}
	for _, l := range req.Links {
		in.Links = append(in.Links, service.LinkInput{Name: l.Name, URL: l.URL, Icon: l.Icon})
	}
	for _, img := range req.Images {
		in.Images = append(in.Images, service.ImageInput{Image: img.Image, Caption: img.Caption})
	}

	project, err := h.content.CreateProject(c.Request.Context(), in)
	if err != nil {
		if verr, ok := service.AsValidationError(err); ok {
			respondContentError(c, http.StatusBadRequest, "Validation failed", verr.Fields)
			return
		}
		h.serverError(c, "create project failed", err)
		return
	}
	respondContent(c, http.StatusCreated, "Project created successfully", project)
}

// UploadProjectImage maneja POST /api/v1/projects/:id/images/ (multipart: image, caption).
func (h *ContentHandler) UploadProjectImage(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		respondContentError(c, http.StatusBadRequest, "Validation failed", map[string][]string{
			"image": {"No file was submitted."},
		})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.serverError(c, "open uploaded image failed", err)
		return
	}
	defer file.Close()

	var caption *string
	if v, ok := c.GetPostForm("caption"); ok {
		caption = &v
	}

	image, err := h.content.AddProjectImage(c.Request.Context(), c.Param("id"), service.ImageUpload{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        file,
		Caption:     caption,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrStorageDisabled):
			respondContentError(c, http.StatusServiceUnavailable, "Image storage is not configured", nil)
		case errors.Is(err, service.ErrProjectNotFound):
			respondContentError(c, http.StatusNotFound, "Project not found", nil)
		default:
			if verr, ok := service.AsValidationError(err); ok {
				respondContentError(c, http.StatusBadRequest, "Validation failed", verr.Fields)
				return
			}
			h.serverError(c, "upload project image failed", err)
		}
		return
	}
	respondContent(c, http.StatusCreated, "Image uploaded successfully", image)
}

func (h *ContentHandler) serverError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.String("path", c.Request.URL.Path), zap.Error(err))
	respondContentError(c, http.StatusInternalServerError, "Internal server error", nil)
}
