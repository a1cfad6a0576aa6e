package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/ngtsab/memberdir/internal/handlers"
	"github.com/ngtsab/memberdir/internal/identity"
	"github.com/ngtsab/memberdir/internal/middleware"
	"github.com/ngtsab/memberdir/internal/services"
)

// Dependencies carries the wired services the router mounts.
type Dependencies struct {
	DB           *gorm.DB
	Provider     *identity.Provider
	JWT          *identity.JWTService
	Invitations  *services.InvitationService
	Registration *services.RegistrationService
	Directory    *services.DirectoryService
	Roles        *services.RoleService
}

// Options tunes router behaviour.
type Options struct {
	// PublicRateLimit applies to the unauthenticated probe-able endpoints.
	PublicRateLimit middleware.RateLimitConfig
}

// NewRouter assembles the gin engine with the full middleware chain and route table.
func NewRouter(deps Dependencies, opts Options) (*gin.Engine, error) {
	authHandler, err := handlers.NewAuthHandler(deps.Provider, deps.Directory)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	invitationHandler, err := handlers.NewInvitationHandler(deps.Invitations, deps.Directory)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	registrationHandler, err := handlers.NewRegistrationHandler(deps.Registration)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	directoryHandler, err := handlers.NewDirectoryHandler(deps.Directory, deps.Roles)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	studioHandler, err := handlers.NewStudioHandler(deps.Directory)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	healthHandler, err := handlers.NewHealthHandler(deps.DB)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	engine := gin.New()
	engine.Use(
		middleware.Recovery(),
		middleware.Logger(),
		middleware.Metrics(),
		middleware.SecurityHeaders(),
	)
	engine.NoRoute(middleware.NotFoundHandler)

	engine.GET("/health", healthHandler.Check)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rateLimited := middleware.RateLimit(opts.PublicRateLimit)

	api := engine.Group("/api")
	{
		public := api.Group("")
		public.Use(rateLimited)
		{
			public.POST("/auth/login", authHandler.Login)
			public.POST("/auth/redeem", authHandler.Redeem)
			public.POST("/invitations/verify", invitationHandler.Verify)
		}

		authed := api.Group("")
		authed.Use(middleware.Auth(deps.JWT))
		{
			authed.GET("/auth/me", authHandler.Me)
			authed.POST("/auth/password", authHandler.SetPassword)
			authed.POST("/registration/complete", registrationHandler.Complete)

			authed.POST("/invitations", invitationHandler.Create)
			authed.GET("/invitations", invitationHandler.List)
			authed.DELETE("/invitations/:email", invitationHandler.Revoke)

			authed.GET("/directory", directoryHandler.List)
			authed.GET("/directory/:id", directoryHandler.Get)
			authed.PATCH("/directory/:id", directoryHandler.Update)
			authed.DELETE("/directory/:id", directoryHandler.Delete)
			authed.POST("/directory/:id/roles", directoryHandler.GrantRole)
			authed.DELETE("/directory/:id/roles/:role", directoryHandler.RevokeRole)

			authed.GET("/studio", studioHandler.Enter)
		}
	}

	return engine, nil
}
