package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/framefind/framefind/internal/apperrors"
	"github.com/framefind/framefind/internal/dto"
	"github.com/framefind/framefind/internal/middleware"
	"github.com/framefind/framefind/internal/service"
)

// UserHandler handles account and session HTTP requests
type UserHandler struct {
	auth service.AuthService
}

// NewUserHandler creates a new user handler
func NewUserHandler(auth service.AuthService) *UserHandler {
	return &UserHandler{auth: auth}
}

// Register handles POST /api/users/register
func (h *UserHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.Validation("invalid request: %v", err))
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.RegisterResponse{
		ID:       user.ID,
		Username: user.Username,
	})
}

// Login handles POST /api/users/login
func (h *UserHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.Validation("invalid request: %v", err))
		return
	}

	session, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LoginResponse{
		Token:    session.Token,
		UserID:   session.UserID,
		Username: session.User.Username,
	})
}

// Logout handles POST /api/users/logout
func (h *UserHandler) Logout(c *gin.Context) {
	var req dto.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.Validation("invalid request: %v", err))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), req.Token); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "logged out"})
}

// Delete handles DELETE /api/users/delete
func (h *UserHandler) Delete(c *gin.Context) {
	var req dto.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, apperrors.Validation("invalid request: %v", err))
		return
	}

	if err := h.auth.DeleteAccount(c.Request.Context(), req.Token); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "account deleted"})
}
