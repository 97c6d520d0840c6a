package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hollowaylabs/gatehouse/internal/auth/domain"
	httpapi "github.com/hollowaylabs/gatehouse/internal/auth/http"
	"github.com/hollowaylabs/gatehouse/internal/auth/service"
	"github.com/hollowaylabs/gatehouse/internal/auth/store"
	"github.com/hollowaylabs/gatehouse/internal/auth/store/drivers/sqlite"
	"github.com/hollowaylabs/gatehouse/pkg/jwtx"
	"github.com/hollowaylabs/gatehouse/pkg/slogx"
	"github.com/hollowaylabs/gatehouse/pkg/smsx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth engine with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	signer *jwtx.Service

	loginService        *service.LoginService
	directoryService    *service.DirectoryService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gatehouse",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.SigningKey == "" {
		return nil, errors.New("GATEHOUSE_SIGNING_KEY must be set")
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.signer = jwtx.New(jwtx.Config{
		Key:      cfg.SigningKey,
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Validity: cfg.AccessTokenValidity,
	}, app.logger)

	app.initServices()

	if err := app.seedAccount(context.Background()); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("gatehouse starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gatehouse...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("gatehouse stopped")
	return nil
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	twoFactor := &service.TwoFactorService{
		Store:  app.db,
		Issuer: app.cfg.Issuer,
	}
	app.directoryService = &service.DirectoryService{
		Store:     app.db,
		TwoFactor: twoFactor,
	}

	app.loginService = &service.LoginService{
		Store:     app.db,
		Directory: app.directoryService,
		Signer:    app.signer,
		Refresh: &service.RefreshTokenService{
			Store:  app.db,
			Issuer: app.cfg.Issuer,
			TTL:    app.cfg.RefreshTokenTTL,
		},
		MFA: &service.MFATokenService{
			Store:  app.db,
			Issuer: app.cfg.Issuer,
			TTL:    app.cfg.MFATokenTTL,
		},
		SMS:          app.newSMSSender(),
		AllowedRoles: app.cfg.AllowedRoles,
	}
	if claims := parseClaims(app.cfg.ExtraClaims); len(claims) > 0 {
		app.loginService.ExtraClaims = &service.StaticClaimsProvider{Claims: claims}
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// parseClaims turns configured "type=value" pairs into claims, skipping
// malformed entries.
func parseClaims(pairs []string) []domain.Claim {
	var out []domain.Claim
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			continue
		}
		out = append(out, domain.Claim{Type: k, Value: v})
	}
	return out
}

func (app *Application) newSMSSender() smsx.Sender {
	if app.cfg.SMSProvider == "twilio" &&
		app.cfg.TwilioAccountSID != "" && app.cfg.TwilioAuthToken != "" {
		app.logger.Info("using twilio sms sender")
		return &smsx.TwilioSender{
			AccountSID: app.cfg.TwilioAccountSID,
			AuthToken:  app.cfg.TwilioAuthToken,
			From:       app.cfg.TwilioFrom,
		}
	}

	app.logger.Warn("using log sms sender; codes are not delivered")
	return &smsx.LogSender{Logger: app.logger}
}

// seedAccount creates the configured bootstrap account if it does not exist.
func (app *Application) seedAccount(ctx context.Context) error {
	if app.cfg.SeedEmail == "" {
		return nil
	}

	_, err := app.directoryService.FindByEmail(ctx, app.cfg.SeedEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	u, err := app.directoryService.Register(ctx, service.RegisterParams{
		Email:       app.cfg.SeedEmail,
		Password:    app.cfg.SeedPassword,
		PhoneNumber: app.cfg.SeedPhone,
		Roles:       app.cfg.SeedRoles,
	})
	if err != nil {
		return fmt.Errorf("failed to create seed account: %w", err)
	}

	app.logger.Info("seed account created", "user_id", u.ID, "email", u.Email)
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.signer,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.LoginService = app.loginService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
