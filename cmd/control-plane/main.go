// Package main provides the apptrail control plane entry point. The
// server ingests agent deployment events, serves the registry, timeline,
// and metrics APIs, and runs the background release linker.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang/glog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/apptrail-sh/control-plane/pkg/cache"
	"github.com/apptrail-sh/control-plane/pkg/history"
	"github.com/apptrail-sh/control-plane/pkg/ingest"
	"github.com/apptrail-sh/control-plane/pkg/metrics"
	"github.com/apptrail-sh/control-plane/pkg/notify"
	"github.com/apptrail-sh/control-plane/pkg/registry"
	"github.com/apptrail-sh/control-plane/pkg/release"
)

func main() {
	var (
		listenAddr   string
		databaseType string
		databaseDSN  string
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&databaseType, "db-type", "postgres", "Database type (postgres, mysql, or sqlite)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	flag.Parse()

	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	// Set up structured logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting control plane", "listen", listenAddr, "dbType", databaseType)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	gormDB, err := setupDatabase(databaseType, databaseDSN)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	registryStore := registry.NewStore(gormDB)
	historyStore := history.NewStore(gormDB)
	releaseStore := release.NewStore(gormDB)
	for _, migrate := range []func() error{
		registryStore.AutoMigrate,
		historyStore.AutoMigrate,
		releaseStore.AutoMigrate,
	} {
		if err := migrate(); err != nil {
			glog.Fatalf("Failed to migrate database: %v", err)
		}
	}

	var publisher history.Publisher = notify.NopPublisher{}
	if endpoint := os.Getenv("APPTRAIL_NOTIFY_WEBHOOK_URL"); endpoint != "" {
		publisher = notify.NewWebhookPublisher(endpoint, logger)
		logger.Info("notification webhook enabled", "endpoint", endpoint)
	}

	engine := history.NewEngine(publisher, logger)

	linkerCfg := release.LinkerConfigFromEnv()
	provider := release.NewGitHubProvider(os.Getenv("APPTRAIL_GITHUB_TOKEN"))
	linker := release.NewLinker(gormDB, provider, linkerCfg, logger)

	reportCache := cache.FromConfig(cache.ConfigFromEnv())

	svc := ingest.NewService(gormDB, engine, linker, reportCache, logger)
	source := metrics.NewSource(gormDB)

	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
	}))

	router.Mount("/api/events/v1alpha1", ingest.Router(svc))
	router.Mount("/api/registry/v1alpha1", registry.Router(registryStore))
	router.Mount("/api/history/v1alpha1", history.Router(historyStore))
	router.Mount("/api/metrics/v1alpha1", metrics.Router(source, cache.Middleware(reportCache)))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := gormDB.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	go linker.Run(ctx)

	logger.Info("control plane ready", "listen", listenAddr)

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("control plane stopped")
}

func setupDatabase(dbType, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_DSN")
		if dsn == "" {
			return nil, fmt.Errorf("database DSN is required (use -db-dsn flag or DATABASE_DSN environment variable)")
		}
	}

	if dbType == "" {
		dbType = os.Getenv("DATABASE_TYPE")
		if dbType == "" {
			dbType = "postgres"
		}
	}

	var dialector gorm.Dialector
	switch dbType {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %q (expected postgres, mysql, or sqlite)", dbType)
	}

	gormDB, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", dbType, err)
	}
	return gormDB, nil
}
