package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"hostpanel/internal/middleware"
	"hostpanel/internal/models"
	"hostpanel/internal/repository"
	"hostpanel/internal/service"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Token    string `json:"token"`
}

// Login accepts a username or an email in the username field.
func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	result, err := h.authService.Login(c.Request.Context(), service.LoginInput{
		Identifier: req.Username,
		Password:   req.Password,
		ClientIP:   c.ClientIP(),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		ID:       result.Admin.ID,
		Username: result.Admin.Username,
		Email:    result.Admin.Email,
		Role:     string(result.Admin.Role),
		Token:    result.Token,
	})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type registerResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	Token     string    `json:"token"`
}

func (h HandlerSet) RegisterAdmin(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}

	result, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     models.AdminRole(req.Role),
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	if creator, ok := middleware.CurrentAdmin(c); ok {
		h.log.Info().
			Str("created_by", creator.ID).
			Str("admin_id", result.Admin.ID).
			Msg("admin created via api")
	}

	c.JSON(http.StatusCreated, registerResponse{
		ID:        result.Admin.ID,
		Username:  result.Admin.Username,
		Email:     result.Admin.Email,
		Role:      string(result.Admin.Role),
		CreatedAt: result.Admin.CreatedAt,
		Token:     result.Token,
	})
}

func (h HandlerSet) Profile(c *gin.Context) {
	admin, ok := middleware.CurrentAdmin(c)
	if !ok {
		writeError(c, http.StatusUnauthorized, "unauthorized", "no token")
		return
	}

	profile, err := h.authService.Profile(c.Request.Context(), admin.ID)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

func (h HandlerSet) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMissingCredentials):
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(c, http.StatusUnauthorized, "invalid_credentials", service.ErrInvalidCredentials.Error())
	case errors.Is(err, service.ErrTooManyAttempts):
		writeError(c, http.StatusTooManyRequests, "too_many_attempts", err.Error())
	case errors.Is(err, service.ErrDuplicateAdmin):
		writeError(c, http.StatusBadRequest, "duplicate_admin", err.Error())
	case errors.Is(err, service.ErrInvalidRole), errors.Is(err, service.ErrInvalidAdminInput):
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, repository.ErrAdminNotFound):
		writeError(c, http.StatusNotFound, "not_found", "admin not found")
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		writeError(c, http.StatusInternalServerError, "internal_server_error", "unexpected error")
	}
}

func writeError(c *gin.Context, status int, code string, message string) {
	c.JSON(status, gin.H{
		"error":   code,
		"message": message,
	})
}
