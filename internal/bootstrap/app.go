package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"competitor-knowledge/internal/alerts"
	"competitor-knowledge/internal/analyses"
	"competitor-knowledge/internal/catalog"
	"competitor-knowledge/internal/llm"
	"competitor-knowledge/internal/llm/gemini"
	openai "competitor-knowledge/internal/llm/openai"
	"competitor-knowledge/internal/pricehistory"
	"competitor-knowledge/internal/queue"
	"competitor-knowledge/internal/search"
	"competitor-knowledge/internal/services/health"
	"competitor-knowledge/internal/shared/config"
	"competitor-knowledge/internal/shared/server"
	"competitor-knowledge/internal/shared/server/middleware"
	"competitor-knowledge/internal/shared/storage/db"
	"competitor-knowledge/internal/shared/storage/object"
	localstore "competitor-knowledge/internal/shared/storage/object/local"
	s3store "competitor-knowledge/internal/shared/storage/object/s3"
	"competitor-knowledge/internal/shared/telemetry"
)

const (
	memoryQueueSize       = 1024
	ollamaDefaultBaseURL  = "http://localhost:11434/v1"
	defaultSearchCacheCap = 256
)

// App holds the wired dependencies shared by every entrypoint.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore

	Queue queue.Client
	// Receiver is set for queue backends that are consumed by polling (memory, redis).
	Receiver queue.Receiver

	AnalysesRepo analyses.Repo
	Catalog      catalog.Store
	History      pricehistory.Repo
	Search       search.Provider
	LLM          llm.Client
	Alerts       alerts.Sender

	Pipeline        *analyses.Pipeline
	AnalysesService *analyses.Service
	AnalysisHandler *analyses.Handler
	Health          *health.Service

	closers []func() error
}

// Build prepares dependencies and the HTTP router from configuration.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Health: health.NewService(),
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Store = store

	if err := app.buildQueue(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	if err := app.buildProviders(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	app.buildServices()

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		AnalysisHandler: app.AnalysisHandler,
		Health:          app.Health,
		RateLimiter:     middleware.NewRateLimiter(nil),
	})

	return app, nil
}

// Close releases queue connections and the database pool.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.DB != nil && !db.IsLambdaRuntime() {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var openDatabase = buildDB

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.database.memory", map[string]any{"reason": "DATABASE_URL empty"})
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
			telemetry.Warn("bootstrap.database.memory", map[string]any{"reason": "connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.S3KMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func (a *App) buildQueue(ctx context.Context) error {
	switch a.Config.QueueBackend {
	case "sqs":
		if strings.TrimSpace(a.Config.SQSQueueURL) == "" {
			return fmt.Errorf("QUEUE_BACKEND=sqs requires SQS_QUEUE_URL")
		}
		client, err := queue.NewSQSClient(ctx, a.Config.SQSQueueURL, a.Config.AWSRegion)
		if err != nil {
			return err
		}
		a.Queue = client
	case "redis":
		if strings.TrimSpace(a.Config.RedisAddr) == "" {
			return fmt.Errorf("QUEUE_BACKEND=redis requires REDIS_ADDR")
		}
		rq, closeFn, err := queue.NewRedisQueue(ctx, a.Config.RedisAddr, a.Config.RedisQueueKey)
		if err != nil {
			return err
		}
		a.Queue = rq
		a.Receiver = rq
		a.closers = append(a.closers, closeFn)
	default:
		mq := queue.NewMemoryQueue(memoryQueueSize)
		a.Queue = mq
		a.Receiver = mq
		a.closers = append(a.closers, func() error {
			mq.Close()
			return nil
		})
	}
	telemetry.Info("bootstrap.queue", map[string]any{"backend": a.Config.QueueBackend})
	return nil
}

func (a *App) buildProviders(ctx context.Context) error {
	llmClient, err := buildLLM(ctx, a.Config)
	if err != nil {
		return err
	}
	a.LLM = llmClient

	searchProvider, err := buildSearch(a.Config)
	if err != nil {
		return err
	}
	a.Search = searchProvider

	sender, err := buildSender(ctx, a.Config)
	if err != nil {
		return err
	}
	a.Alerts = sender
	return nil
}

func buildLLM(ctx context.Context, cfg config.Config) (llm.Client, error) {
	switch cfg.AIProvider {
	case "openai":
		return openai.NewClient(openai.Options{
			APIKey:   cfg.AIAPIKey,
			Model:    cfg.AIModel,
			BaseURL:  cfg.AIBaseURL,
			JSONMode: true,
		})
	case "openrouter":
		return openai.NewOpenRouterClient(cfg.AIAPIKey, cfg.AIModel, cfg.AIReferer)
	case "ollama":
		base := cfg.AIBaseURL
		if strings.TrimSpace(base) == "" {
			base = ollamaDefaultBaseURL
		}
		return openai.NewClient(openai.Options{Model: cfg.AIModel, BaseURL: base})
	case "gemini":
		return gemini.NewClient(ctx, cfg.AIAPIKey, cfg.AIModel)
	case "", "placeholder":
		return llm.PlaceholderClient{}, nil
	default:
		return nil, fmt.Errorf("unknown AI_PROVIDER %q", cfg.AIProvider)
	}
}

func buildSearch(cfg config.Config) (search.Provider, error) {
	var (
		provider search.Provider
		err      error
	)
	switch cfg.SearchProvider {
	case "tavily":
		provider, err = search.NewTavilyProvider(cfg.SearchAPIKey)
	case "brave":
		provider, err = search.NewBraveProvider(cfg.SearchAPIKey)
	case "", "placeholder":
		return search.PlaceholderProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown SEARCH_PROVIDER %q", cfg.SearchProvider)
	}
	if err != nil {
		return nil, err
	}
	size := cfg.SearchCacheSize
	if size < 0 {
		return provider, nil
	}
	if size == 0 {
		size = defaultSearchCacheCap
	}
	return search.NewCachedProvider(provider, size)
}

func buildSender(ctx context.Context, cfg config.Config) (alerts.Sender, error) {
	switch cfg.Notifier {
	case "ses":
		return alerts.NewSESSender(ctx, cfg.AWSRegion, cfg.NotifyFrom)
	default:
		return alerts.LogSender{}, nil
	}
}

func (a *App) buildServices() {
	if a.DB != nil {
		a.AnalysesRepo = &analyses.PGRepo{DB: a.DB}
		a.Catalog = &catalog.PGStore{DB: a.DB}
		a.History = &pricehistory.PGRepo{DB: a.DB}
		sqlDB := a.DB
		a.Health.Register("database", func(ctx context.Context) error {
			return sqlDB.PingContext(ctx)
		})
	} else {
		a.AnalysesRepo = analyses.NewMemoryRepo()
		a.Catalog = catalog.NewMemoryStore()
		a.History = pricehistory.NewMemoryRepo()
	}

	a.Pipeline = &analyses.Pipeline{
		Repo:        a.AnalysesRepo,
		Catalog:     a.Catalog,
		Search:      a.Search,
		LLM:         a.LLM,
		Queue:       a.Queue,
		History:     a.History,
		Alerts:      a.Alerts,
		Store:       a.Store,
		Model:       a.Config.AIModel,
		Modules:     a.Config.EnabledModules,
		SearchLimit: a.Config.SearchLimit,
		Threshold:   a.Config.PriceDropThreshold,
		NotifyEmail: a.Config.NotifyEmail,
		Currency:    a.Config.StoreCurrency,
	}

	a.AnalysesService = &analyses.Service{
		Repo:     a.AnalysesRepo,
		Catalog:  a.Catalog,
		Queue:    a.Queue,
		Pipeline: a.Pipeline,
		History:  a.History,
		Provider: a.Config.AIProvider,
		Model:    a.Config.AIModel,
	}
	a.AnalysisHandler = analyses.NewHandler(a.AnalysesService, a.Config.ReanalysisCooldown)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
