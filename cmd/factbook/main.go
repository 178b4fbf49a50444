package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/bitworks/factbook/config"
	"github.com/bitworks/factbook/internal/database"
	"github.com/bitworks/factbook/internal/middleware"
	entityrepo "github.com/bitworks/factbook/internal/repositories/entity"
	factrepo "github.com/bitworks/factbook/internal/repositories/fact"
	filingrepo "github.com/bitworks/factbook/internal/repositories/filing"
	"github.com/bitworks/factbook/internal/tracing"
	"github.com/bitworks/factbook/pkg/importer"
	"github.com/bitworks/factbook/pkg/query"
	entityroutes "github.com/bitworks/factbook/pkg/routes/entity"
	filingroutes "github.com/bitworks/factbook/pkg/routes/filing"
	healthroutes "github.com/bitworks/factbook/pkg/routes/health"
	queryroutes "github.com/bitworks/factbook/pkg/routes/query"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var cfg config.Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	logger := newLogger(cfg)
	ctx := context.Background()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName:  cfg.AppName,
		Enabled:      cfg.TracingEnabled,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		OTLPProtocol: cfg.TracingOTLPProtocol,
		OTLPInsecure: cfg.TracingOTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	db, err := database.Connect(ctx, database.Config{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		User:            cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrateDatabase(cfg, db, logger); err != nil {
		return err
	}

	entities := entityrepo.NewRepository(db, logger)
	filings := filingrepo.NewRepository(db, logger)
	facts := factrepo.NewRepository(db, logger)

	ingestor := importer.New(entities, filings, facts, db, logger)
	engine := query.NewEngine(facts, logger)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	root := e.Group("")
	healthroutes.NewHandler(db).Register(root)

	api := e.Group("/api/v1")
	filingroutes.NewHandler(ingestor, filings, logger).Register(api)
	entityroutes.NewHandler(entities, logger).Register(api)
	queryroutes.NewHandler(engine, logger).Register(api)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           e,
		ReadTimeout:       time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second,
		IdleTimeout:       time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(map[string]any{"port": cfg.Port}).Info("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.WithFields(map[string]any{"signal": sig.String()}).Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func migrateDatabase(cfg config.Config, db *database.DatabaseInstance, logger ectologger.Logger) error {
	driver, err := migratepg.WithInstance(db.DB.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	service := database.NewMigrationService(logger, &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
	})
	return service.Migrate(cfg.DatabaseName, driver)
}

func newLogger(cfg config.Config) ectologger.Logger {
	encoder := json.NewEncoder(os.Stdout)
	if cfg.PrettyLogs {
		encoder.SetIndent("", "  ")
	}
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		_ = encoder.Encode(msg)
	})
}
