package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ngtsab/memberdir/internal/access"
	"github.com/ngtsab/memberdir/internal/api"
	"github.com/ngtsab/memberdir/internal/app"
	"github.com/ngtsab/memberdir/internal/app/maintenance"
	"github.com/ngtsab/memberdir/internal/database"
	"github.com/ngtsab/memberdir/internal/identity"
	"github.com/ngtsab/memberdir/internal/middleware"
	"github.com/ngtsab/memberdir/internal/services"
	"github.com/ngtsab/memberdir/pkg/logger"
	"github.com/ngtsab/memberdir/pkg/mail"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		// Logger is not configured yet at this point
		panic(err)
	}

	if err := logger.Init(cfg.Logging.Level); err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.WithModule("main")

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *app.Config, log *zap.Logger) error {
	db, err := database.Open(database.Config{
		Driver:   cfg.Database.Driver,
		Path:     cfg.Database.Path,
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Name:     cfg.Database.Name,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Options:  cfg.Database.Options,
	})
	if err != nil {
		return err
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return err
	}
	if err := database.SeedBootstrapAdmin(db, database.BootstrapAdmin{
		Email:    cfg.Bootstrap.AdminEmail,
		Password: cfg.Bootstrap.AdminPassword,
		FullName: cfg.Bootstrap.AdminFullName,
	}); err != nil {
		return err
	}

	jwtService, err := identity.NewJWTService(identity.JWTConfig{
		Secret:         cfg.Auth.JWTSecret,
		Issuer:         cfg.Auth.JWTIssuer,
		AccessTokenTTL: cfg.Auth.AccessTokenTTL,
	})
	if err != nil {
		return err
	}

	mailer, err := mail.NewSMTPMailer(mail.SMTPSettings{
		Enabled:  cfg.Email.Enabled,
		Host:     cfg.Email.Host,
		Port:     cfg.Email.Port,
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
		UseTLS:   cfg.Email.UseTLS,
		Timeout:  cfg.Email.Timeout,
	})
	if err != nil {
		return err
	}

	provider, err := identity.NewProvider(db, mailer, jwtService,
		identity.WithBaseURL(cfg.Server.BaseURL),
		identity.WithInviteExpiry(cfg.Invites.Expiry),
		identity.WithTokenSize(cfg.Invites.TokenBytes),
	)
	if err != nil {
		return err
	}

	roleService, err := services.NewRoleService(db)
	if err != nil {
		return err
	}
	controller, err := access.NewController(roleService)
	if err != nil {
		return err
	}
	invitationService, err := services.NewInvitationService(db, provider, controller)
	if err != nil {
		return err
	}
	registrationService, err := services.NewRegistrationService(db, roleService)
	if err != nil {
		return err
	}
	directoryService, err := services.NewDirectoryService(db, controller, provider)
	if err != nil {
		return err
	}

	router, err := api.NewRouter(api.Dependencies{
		DB:           db,
		Provider:     provider,
		JWT:          jwtService,
		Invitations:  invitationService,
		Registration: registrationService,
		Directory:    directoryService,
		Roles:        roleService,
	}, api.Options{
		PublicRateLimit: middleware.RateLimitConfig{
			Requests: cfg.RateLimit.Requests,
			Window:   cfg.RateLimit.Window,
		},
	})
	if err != nil {
		return err
	}

	var sweeper *maintenance.Sweeper
	if cfg.Maintenance.Enabled {
		sweeper, err = maintenance.NewSweeper(db, maintenance.WithSchedule(cfg.Maintenance.Schedule))
		if err != nil {
			return err
		}
		if err := sweeper.Start(); err != nil {
			return err
		}
		defer sweeper.Stop()
	}

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
