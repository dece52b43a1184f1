package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/framefind/framefind/internal/apperrors"
	"github.com/framefind/framefind/internal/dto"
	"github.com/framefind/framefind/internal/middleware"
	"github.com/framefind/framefind/internal/service"
)

// ImageHandler handles upload and search HTTP requests
type ImageHandler struct {
	uploads  service.UploadService
	searches service.SearchService
}

// NewImageHandler creates a new image handler
func NewImageHandler(uploads service.UploadService, searches service.SearchService) *ImageHandler {
	return &ImageHandler{uploads: uploads, searches: searches}
}

// Upload handles POST /api/images/upload (multipart: token, folderName, files)
func (h *ImageHandler) Upload(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		middleware.AbortWithError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		middleware.AbortWithError(c, apperrors.Validation("invalid multipart request: %v", err))
		return
	}

	folderName := c.PostForm("folderName")
	files := form.File["files"]

	resp, err := h.uploads.Upload(c.Request.Context(), userID, folderName, files)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Search handles GET /api/images/search?token&query&folder_ids=csv&top_k
func (h *ImageHandler) Search(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		middleware.AbortWithError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	query := dto.SearchQuery{Query: c.Query("query")}

	if raw := c.Query("top_k"); raw != "" {
		topK, err := strconv.Atoi(raw)
		if err != nil {
			middleware.AbortWithError(c, apperrors.Validation("top_k must be an integer"))
			return
		}
		query.TopK = topK
	}

	folderIDs, err := parseFolderIDs(c.Query("folder_ids"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	query.FolderIDs = folderIDs

	resp, err := h.searches.Search(c.Request.Context(), userID, &query)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// parseFolderIDs parses a comma-separated id list, ignoring empty segments.
func parseFolderIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		id, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, apperrors.Validation("folder_ids must be a comma-separated list of integers")
		}
		ids = append(ids, id)
	}
	return ids, nil
}
