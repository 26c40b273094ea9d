package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/mathquiz/internal/quiz/generator"
	httpapi "github.com/aussiebroadwan/mathquiz/internal/quiz/http"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/protocol"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/server"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/service"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/store"
	"github.com/aussiebroadwan/mathquiz/internal/quiz/store/drivers/sqlite"
	"github.com/aussiebroadwan/mathquiz/pkg/cryptox"
	"github.com/aussiebroadwan/mathquiz/pkg/ratelimit"
	"github.com/aussiebroadwan/mathquiz/pkg/slogx"
)

const (
	// BuildVersion is overridden at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application owns the store, the services and both listeners.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	hasher *cryptox.Hasher

	accountService   *service.AccountService
	problemService   *service.ProblemService
	statsService     *service.StatsService
	bootstrapService *service.BootstrapService
	dispatcher       *protocol.Dispatcher

	slots      *server.Slots
	tcp        *server.Server
	gateway    *httpapi.Gateway
	httpServer *http.Server // nil when HTTPPort is 0
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "math-server",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	pepper, err := cryptox.LoadOrGeneratePepper(cfg.PepperFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}
	app.hasher = cryptox.NewHasher(pepper)

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.initServers()

	return app, nil
}

// Run blocks until SIGINT or SIGTERM, then shuts down gracefully.
func (app *Application) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return app.RunContext(ctx)
}

// RunContext serves until ctx is done or a listener fails, then shuts down.
func (app *Application) RunContext(ctx context.Context) error {
	if err := app.tcp.Listen(); err != nil {
		_ = app.db.Close()
		return err
	}

	app.logger.Info("math server starting",
		"port", app.cfg.Port,
		"http_port", app.cfg.HTTPPort,
		"version", BuildVersion,
	)

	serverErrors := make(chan error, 2)
	go func() {
		serverErrors <- app.tcp.Serve(slogx.WithContext(context.Background(), app.logger))
	}()
	if app.httpServer != nil {
		go func() {
			if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErrors <- fmt.Errorf("http server failed: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case err := <-serverErrors:
		// A clean Serve return only happens after Shutdown.
		if err != nil {
			runErr = err
		}
	case <-ctx.Done():
		app.logger.Info("shutdown signal received")
	}

	if err := app.Shutdown(); err != nil {
		return errors.Join(runErr, fmt.Errorf("graceful shutdown failed: %w", err))
	}
	return runErr
}

// TCPAddr is the bound line protocol address, nil until RunContext listens.
func (app *Application) TCPAddr() net.Addr {
	return app.tcp.Addr()
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down math server...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.tcp.Shutdown(ctx); err != nil {
		app.logger.Error("tcp shutdown did not finish", "error", err)
	}

	if app.httpServer != nil {
		if err := app.httpServer.Shutdown(ctx); err != nil {
			app.logger.Error("graceful http shutdown failed", "error", err)
			if err := app.httpServer.Close(); err != nil {
				app.logger.Error("error closing http server", "error", err)
			}
		}
		if err := app.gateway.Close(ctx); err != nil {
			app.logger.Error("websocket shutdown did not finish", "error", err)
		}
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("math server stopped")
	return nil
}

// initDatabase opens the store and applies migrations
func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)
	return nil
}

// initServices builds the services and seeds the default administrator and
// sample problems.
func (app *Application) initServices() error {
	app.accountService = &service.AccountService{Store: app.db, Hasher: app.hasher}
	app.problemService = &service.ProblemService{Store: app.db}
	app.statsService = &service.StatsService{Store: app.db}
	app.bootstrapService = &service.BootstrapService{
		Accounts:      app.accountService,
		Problems:      app.problemService,
		AdminUsername: app.cfg.AdminUsername,
		AdminPassword: app.cfg.AdminPassword,
	}

	app.dispatcher = &protocol.Dispatcher{
		Accounts:    app.accountService,
		Problems:    app.problemService,
		Stats:       app.statsService,
		Generator:   generator.NewRandom(),
		AuthLimiter: ratelimit.New(app.cfg.AuthLimit),
	}

	ctx := slogx.WithContext(context.Background(), app.logger)
	if err := app.bootstrapService.Seed(ctx); err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}
	return nil
}

// initServers wires the TCP listener and, when enabled, the ops HTTP server.
// Both draw from the same client slots.
func (app *Application) initServers() {
	app.slots = server.NewSlots(app.cfg.MaxClients)
	app.tcp = server.New(fmt.Sprintf(":%d", app.cfg.Port), app.dispatcher, app.slots, app.logger)

	app.gateway = httpapi.NewGateway(app.dispatcher, app.slots)
	if app.cfg.HTTPPort == 0 {
		return
	}

	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		app.gateway,
		ratelimit.New(app.cfg.HandshakeLimit),
		app.logger,
	)
	router.ApplyRoutes()

	app.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
