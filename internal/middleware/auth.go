package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"hostpanel/internal/models"
	"hostpanel/internal/repository"
)

const (
	CurrentAdminKey = "current_admin"
	AccessTokenKey  = "access_token"
)

type TokenVerifier interface {
	Verify(token string) (string, error)
}

type AdminLookup interface {
	GetByID(ctx context.Context, id string) (models.Admin, error)
}

// Auth resolves the bearer token to an administrator and attaches it, without its
// password hash, to the request context. Every failure stops the chain.
func Auth(tokens TokenVerifier, admins AdminLookup, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthorized", "no token")
			return
		}

		adminID, err := tokens.Verify(tokenStr)
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "token failed")
			return
		}

		admin, err := admins.GetByID(c.Request.Context(), adminID)
		if err != nil {
			if errors.Is(err, repository.ErrAdminNotFound) {
				abort(c, http.StatusUnauthorized, "unauthorized", "admin not found")
				return
			}
			log.Error().Err(err).Str("admin_id", adminID).Msg("admin lookup failed")
			abort(c, http.StatusInternalServerError, "internal_server_error", "admin lookup failed")
			return
		}

		c.Set(AccessTokenKey, tokenStr)
		c.Set(CurrentAdminKey, admin.Redacted())

		c.Next()
	}
}

func CurrentAdmin(c *gin.Context) (models.Admin, bool) {
	val, exists := c.Get(CurrentAdminKey)
	if !exists {
		return models.Admin{}, false
	}
	admin, ok := val.(models.Admin)
	return admin, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abort(c *gin.Context, status int, code string, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   code,
		"message": message,
	})
}
