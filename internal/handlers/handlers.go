package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"hostpanel/internal/config"
	"hostpanel/internal/middleware"
	"hostpanel/internal/service"
)

// HealthCheck pings one dependency. A nil check reports the dependency as disabled.
type HealthCheck func(ctx context.Context) error

type HandlerSet struct {
	log         zerolog.Logger
	cfg         *config.AppConfig
	authService *service.AuthService
	tokens      middleware.TokenVerifier
	admins      middleware.AdminLookup
	dbCheck     HealthCheck
	cacheCheck  HealthCheck
}

func NewHandlerSet(
	log zerolog.Logger,
	cfg *config.AppConfig,
	authService *service.AuthService,
	tokens middleware.TokenVerifier,
	admins middleware.AdminLookup,
	dbCheck HealthCheck,
	cacheCheck HealthCheck,
) HandlerSet {
	return HandlerSet{
		log:         log,
		cfg:         cfg,
		authService: authService,
		tokens:      tokens,
		admins:      admins,
		dbCheck:     dbCheck,
		cacheCheck:  cacheCheck,
	}
}

func (h HandlerSet) Routes(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	auth := router.Group("/auth")
	auth.POST("/login", h.Login)

	protected := auth.Group("")
	protected.Use(middleware.Auth(h.tokens, h.admins, h.log))
	protected.GET("/profile", h.Profile)
	protected.POST("/register", middleware.RequireSuperAdmin(), h.RegisterAdmin)
}
