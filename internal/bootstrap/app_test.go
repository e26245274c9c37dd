package bootstrap

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"competitor-knowledge/internal/alerts"
	"competitor-knowledge/internal/analyses"
	"competitor-knowledge/internal/llm"
	"competitor-knowledge/internal/search"
	"competitor-knowledge/internal/shared/config"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Env:             "dev",
		QueueBackend:    "memory",
		ObjectStoreType: "local",
		LocalStoreDir:   t.TempDir(),
		AIProvider:      "placeholder",
		SearchProvider:  "placeholder",
		Notifier:        "log",
	}
}

func TestBuildInMemory(t *testing.T) {
	gin.SetMode(gin.TestMode)
	app, err := Build(memoryConfig(t))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	if app.DB != nil {
		t.Fatal("expected no database without DATABASE_URL")
	}
	if _, ok := app.AnalysesRepo.(*analyses.MemoryRepo); !ok {
		t.Fatalf("expected memory repo, got %T", app.AnalysesRepo)
	}
	if app.Receiver == nil {
		t.Fatal("memory queue should expose a receiver")
	}
	if _, ok := app.LLM.(llm.PlaceholderClient); !ok {
		t.Fatalf("expected placeholder llm, got %T", app.LLM)
	}
	if _, ok := app.Search.(search.PlaceholderProvider); !ok {
		t.Fatalf("expected placeholder search, got %T", app.Search)
	}
	if _, ok := app.Alerts.(alerts.LogSender); !ok {
		t.Fatalf("expected log sender, got %T", app.Alerts)
	}
	if app.Pipeline.Queue != app.Queue || app.AnalysesService.Pipeline != app.Pipeline {
		t.Fatal("pipeline and service should share the queue")
	}

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}

func TestBuildCachesConfiguredSearch(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.SearchProvider = "tavily"
	cfg.SearchAPIKey = "tvly-test"
	cfg.SearchCacheSize = 16
	app, err := Build(cfg)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	if _, ok := app.Search.(*search.CachedProvider); !ok {
		t.Fatalf("expected cached provider, got %T", app.Search)
	}
}

func TestBuildRejectsBadBackends(t *testing.T) {
	cases := map[string]func(*config.Config){
		"unknown ai provider": func(c *config.Config) { c.AIProvider = "mystery" },
		"unknown search":      func(c *config.Config) { c.SearchProvider = "mystery" },
		"sqs without url":     func(c *config.Config) { c.QueueBackend = "sqs" },
		"redis without addr":  func(c *config.Config) { c.QueueBackend = "redis" },
		"openai without model": func(c *config.Config) {
			c.AIProvider = "openai"
			c.AIAPIKey = "sk-test"
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := memoryConfig(t)
			mutate(&cfg)
			if _, err := Build(cfg); err == nil {
				t.Fatal("expected build error")
			}
		})
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Env = "production"
	_, err := Build(cfg)
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected DATABASE_URL error, got %v", err)
	}
}

func TestBuildClosesDatabaseWhenStoreFails(t *testing.T) {
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	mock.ExpectClose()
	prev := openDatabase
	openDatabase = func(ctx context.Context, cfg config.Config) (*sql.DB, error) { return sqlDB, nil }
	t.Cleanup(func() { openDatabase = prev })

	cfg := memoryConfig(t)
	cfg.ObjectStoreType = "s3"
	if _, err := Build(cfg); err == nil || !strings.Contains(err.Error(), "S3_BUCKET") {
		t.Fatalf("expected S3_BUCKET error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("database pool left open: %v", err)
	}
}
