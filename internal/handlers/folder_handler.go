package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/framefind/framefind/internal/apperrors"
	"github.com/framefind/framefind/internal/dto"
	"github.com/framefind/framefind/internal/middleware"
	"github.com/framefind/framefind/internal/service"
)

// FolderHandler handles folder listing, deletion and sharing
type FolderHandler struct {
	auth    service.AuthService
	folders service.FolderService
}

// NewFolderHandler creates a new folder handler
func NewFolderHandler(auth service.AuthService, folders service.FolderService) *FolderHandler {
	return &FolderHandler{auth: auth, folders: folders}
}

// List handles GET /api/folders?token
func (h *FolderHandler) List(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		middleware.AbortWithError(c, apperrors.Unauthorized("authentication required"))
		return
	}

	folders, err := h.folders.ListAccessible(c.Request.Context(), userID)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ListFoldersResponse{Folders: folders})
}

// Delete handles DELETE /api/folders with a JSON body carrying the token.
func (h *FolderHandler) Delete(c *gin.Context) {
	var req dto.DeleteFoldersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.Validation("invalid request: %v", err))
		return
	}

	userID, err := h.auth.Validate(c.Request.Context(), req.Token)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	if err := h.folders.Delete(c.Request.Context(), userID, req.FolderIDs); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "folders deleted"})
}

// Share handles POST /api/folders/share
func (h *FolderHandler) Share(c *gin.Context) {
	var req dto.ShareFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.Validation("invalid request: %v", err))
		return
	}

	userID, err := h.auth.Validate(c.Request.Context(), req.Token)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	if err := h.folders.Share(c.Request.Context(), userID, req.FolderID, req.TargetUsername, req.Permission); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "folder shared"})
}
