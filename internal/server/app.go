// Package server initializes and runs the linkkeeper server: the JSON API,
// the gRPC health endpoint and the reaper for abandoned verifications,
// with graceful shutdown on SIGINT/SIGTERM.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/linkkeeper/internal/cryptox"
	"github.com/dmitrijs2005/linkkeeper/internal/logging"
	"github.com/dmitrijs2005/linkkeeper/internal/server/challenges"
	"github.com/dmitrijs2005/linkkeeper/internal/server/config"
	"github.com/dmitrijs2005/linkkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/linkkeeper/internal/server/keylock"
	"github.com/dmitrijs2005/linkkeeper/internal/server/materials"
	"github.com/dmitrijs2005/linkkeeper/internal/server/messaging"
	"github.com/dmitrijs2005/linkkeeper/internal/server/messaging/telegram"
	"github.com/dmitrijs2005/linkkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/linkkeeper/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"

	gs "github.com/dmitrijs2005/linkkeeper/internal/server/grpc"
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	closeStore     func() error
	userService    *services.UserService
	sessionService *services.SessionService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(parseLogLevel(c.LogLevel))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, closeStore, err := newMaterialStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("material store init error: %w", err)
	}

	client := telegram.NewClient(store, messaging.Credentials{APIID: c.TelegramAPIID, APIHash: c.TelegramAPIHash}, logger)

	us := services.NewUserService(db, rm, cryptox.NewHasher(c.BcryptCost), logger)
	ss := services.NewSessionService(db, rm, store, client, keylock.New(), challenges.New(), logger, services.SessionConfig{
		ExternalTimeout:    c.ExternalTimeout,
		RefreshConcurrency: c.RefreshConcurrency,
		UnverifiedTTL:      c.UnverifiedTTL,
	})

	return &App{
		config:         c,
		logger:         logger,
		db:             db,
		closeStore:     closeStore,
		userService:    us,
		sessionService: ss,
	}, nil
}

// newMaterialStore opens the configured session material backend. The
// returned close func releases it.
func newMaterialStore(ctx context.Context, c *config.Config) (materials.Store, func() error, error) {
	nop := func() error { return nil }

	switch c.MaterialBackend {
	case config.MaterialBackendFile, "":
		s, err := materials.NewFileStore(c.MaterialDir)
		return s, nop, err
	case config.MaterialBackendBolt:
		s, err := materials.NewBoltStore(c.BoltPath, nil)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.MaterialBackendS3:
		s, err := materials.NewS3Store(ctx, materials.S3Options{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
		})
		return s, nop, err
	default:
		return nil, nil, fmt.Errorf("unknown material backend %q", c.MaterialBackend)
	}
}

func parseLogLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, app.logger, app.userService, app.sessionService,
		app.config.SecretKey, app.config.AccessTokenValidityDuration)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCHealthServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewHealthServer(app.config.GRPCHealthAddr, app.logger, app.db, app.config.HealthProbeInterval)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a termination signal arrives or a server fails, then
// waits for every component to stop and releases the stores.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCHealthServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.sessionService.RunReaper(ctx, app.config.ReapInterval)
	}()

	wg.Wait()
	app.sessionService.Wait()

	if err := app.closeStore(); err != nil {
		app.logger.Error(ctx, "close material store", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "close db", "error", err)
	}
	app.logger.Info(ctx, "Stopped")
}
