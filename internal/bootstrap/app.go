package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"registrar-backend/internal/lifecycle"
	"registrar-backend/internal/notify"
	"registrar-backend/internal/pickup"
	"registrar-backend/internal/pickup/render"
	"registrar-backend/internal/queue"
	"registrar-backend/internal/requests"
	"registrar-backend/internal/services/health"
	"registrar-backend/internal/settings"
	"registrar-backend/internal/shared/config"
	"registrar-backend/internal/shared/server"
	"registrar-backend/internal/shared/server/middleware"
	"registrar-backend/internal/shared/storage/db"
	"registrar-backend/internal/shared/storage/object"
	localstore "registrar-backend/internal/shared/storage/object/local"
	s3store "registrar-backend/internal/shared/storage/object/s3"
	"registrar-backend/internal/shared/telemetry"
)

// App holds shared dependencies for the API, the worker and the CLIs.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Store            object.ObjectStore
	Queue            queue.Client
	Settings         *settings.Store
	Repo             requests.Repo
	Issuer           *pickup.Issuer
	Notifier         *notify.QueueNotifier
	Dispatcher       *notify.Dispatcher
	Lifecycle        *lifecycle.Service
	LifecycleHandler *lifecycle.Handler
	SettingsHandler  *settings.Handler
	Health           *health.Service
}

// Build prepares every dependency and the HTTP router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	settingsStore, err := settings.NewStore(cfg.SettingsFile)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Store:    store,
		Settings: settingsStore,
	}
	app.Dispatcher = &notify.Dispatcher{Deliverer: notify.LogDeliverer{}, Settings: settingsStore}

	queueClient, queueKind, err := buildQueue(ctx, cfg, app.Dispatcher)
	if err != nil {
		return nil, err
	}
	app.Queue = queueClient

	buildServices(app)

	settingsSrc := settingsStore.Path()
	app.Health = health.NewService(pinger(sqlDB), cfg.ObjectStoreType, queueKind, settingsSrc)
	app.Router = server.NewRouter(server.RouterDeps{
		Config:           app.Config,
		LifecycleHandler: app.LifecycleHandler,
		SettingsHandler:  app.SettingsHandler,
		Health:           app.Health,
		RateLimiter:      middleware.NewRateLimiter(nil),
	})

	telemetry.Info("bootstrap.ready", map[string]any{
		"env":      cfg.Env,
		"database": sqlDB != nil,
		"store":    cfg.ObjectStoreType,
		"queue":    queueKind,
		"stub":     cfg.StubFormat,
	})
	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	var (
		sqlDB *sql.DB
		err   error
	)
	if db.IsLambdaRuntime() {
		opts := db.OptionsFromEnv(db.DefaultLambdaOptions())
		sqlDB, err = db.GetSingleton(ctx, cfg.DatabaseURL, opts)
	} else {
		opts := db.OptionsFromEnv(db.DefaultServerOptions())
		sqlDB, err = db.Connect(ctx, cfg.DatabaseURL, opts)
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "connect failed", "error": err})
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// buildQueue returns the SQS client when a queue URL is configured.
// Otherwise messages are delivered in-process.
func buildQueue(ctx context.Context, cfg config.Config, d *notify.Dispatcher) (queue.Client, string, error) {
	if strings.TrimSpace(cfg.NotifyQueueURL) == "" {
		return inlineQueue{dispatcher: d}, "inline", nil
	}
	client, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.NotifyQueueURL)
	if err != nil {
		return nil, "", err
	}
	return client, "sqs", nil
}

func buildServices(app *App) {
	if app.DB != nil {
		app.Repo = &requests.PGRepo{DB: app.DB}
	} else {
		app.Repo = requests.NewMemoryRepo()
	}

	renderer := &render.Renderer{
		Store:    app.Store,
		Settings: app.Settings,
		Format:   render.Format(app.Config.StubFormat),
	}
	app.Issuer = &pickup.Issuer{Renderer: renderer, Timeout: app.Config.StubRenderTimeout}
	app.Notifier = &notify.QueueNotifier{Queue: app.Queue, Settings: app.Settings}

	app.Lifecycle = &lifecycle.Service{
		Repo:            app.Repo,
		Issuer:          app.Issuer,
		Notifier:        app.Notifier,
		Settings:        app.Settings,
		Store:           app.Store,
		StrictVerify:    app.Config.StrictVerify,
		StrictStepIndex: app.Config.StrictStepIndex,
	}
	app.LifecycleHandler = lifecycle.NewHandler(app.Lifecycle)
	app.SettingsHandler = settings.NewHandler(app.Settings)
}

type inlineQueue struct {
	dispatcher *notify.Dispatcher
}

func (q inlineQueue) Send(ctx context.Context, msg queue.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return q.dispatcher.Handle(ctx, msg)
}

func pinger(sqlDB *sql.DB) health.Pinger {
	if sqlDB == nil {
		return nil
	}
	return sqlDB
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
