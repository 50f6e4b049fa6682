package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"venture-backend/internal/analyses"
	googleauth "venture-backend/internal/auth"
	"venture-backend/internal/llm"
	openai "venture-backend/internal/llm/openai"
	"venture-backend/internal/queue"
	"venture-backend/internal/shared/config"
	"venture-backend/internal/shared/server"
	"venture-backend/internal/shared/storage/db"
	"venture-backend/internal/shared/storage/object"
	localstore "venture-backend/internal/shared/storage/object/local"
	s3store "venture-backend/internal/shared/storage/object/s3"
)

// App holds shared dependencies for the api and worker processes.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Store           object.ObjectStore
	Queue           queue.Client
	AnalysisStore   analyses.Store
	Registry        *analyses.Registry
	Runner          *analyses.Runner
	AnalysesService *analyses.Service
	AnalysisHandler *analyses.Handler
	GoogleAuth      *googleauth.GoogleService
}

// Build prepares shared dependencies and wires the router.
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

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Queue:  queueClient,
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		AnalysisHandler: app.AnalysisHandler,
		GoogleAuth:      app.GoogleAuth,
	})

	return app, nil
}

// Close releases process-wide resources.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory store")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory store: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: migrations failed; using in-memory store: %v", err)
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.QueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	llmClient := llm.Client(llm.PlaceholderClient{})
	if app.Config.LLMProvider == "openai" {
		openaiClient, err := openai.NewClient(os.Getenv("OPENAI_API_KEY"), app.Config.LLMModel)
		if err != nil {
			return err
		}
		llmClient = openaiClient
	}

	registry, err := analyses.DefaultRegistry(llmClient)
	if err != nil {
		return err
	}

	var store analyses.Store
	if app.DB != nil {
		store = analyses.NewPGStore(app.DB, registry.RequiredIDs())
	} else {
		store = analyses.NewMemoryStore(registry.RequiredIDs())
	}

	runner := &analyses.Runner{
		Store:    store,
		Archive:  &analyses.Archiver{Store: app.Store},
		Timeout:  time.Duration(app.Config.SectionTimeoutSeconds) * time.Second,
		InFlight: semaphore.NewWeighted(int64(app.Config.MaxInflightGenerations)),
	}

	svc := analyses.NewService(store, registry, runner, app.Queue)

	app.AnalysisStore = store
	app.Registry = registry
	app.Runner = runner
	app.AnalysesService = svc
	app.AnalysisHandler = analyses.NewHandler(svc)
	app.GoogleAuth = googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
	)

	return nil
}
