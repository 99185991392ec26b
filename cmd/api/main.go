package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"regform/internal/data"
	"regform/internal/jsonlog"
)

var (
	buildTime string
	version   string
)

// statisticsService is what the handlers need from the statistics layer.
type statisticsService interface {
	RecordFailures(ctx context.Context, failures []data.ValidationFailure) error
	RecordSubmission(ctx context.Context, accepted bool) error
	GetMostFrequent(ctx context.Context) (*data.StatisticsEntry, error)
	GetTopN(ctx context.Context, n int) ([]*data.StatisticsEntry, error)
	GetStats(ctx context.Context) (data.StatsSummary, error)
	GetDatabaseHealth(ctx context.Context) (map[string]interface{}, error)
	Close() error
}

type application struct {
	config       config
	logger       *jsonlog.Logger
	statistics   statisticsService
	rateLimiter  *rateLimiterMap
	inputLimiter *rateLimiterMap
	sessions     *data.SessionStore
}

func main() {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := jsonlog.New(os.Stdout, jsonlog.ParseLevel(cfg.logLevel), cfg.env)

	statistics, err := openStatistics(cfg, logger)
	if err != nil {
		logger.PrintFatal(err, map[string]string{"component": "statistics"})
	}

	sessions := data.NewSessionStore(cfg.sessions.ttl, logger)
	sessions.StartCleanup(cfg.sessions.cleanupInterval)

	app := &application{
		config:       cfg,
		logger:       logger,
		statistics:   statistics,
		rateLimiter:  initializeRateLimiter(cfg, logger),
		inputLimiter: initializeInputLimiter(cfg, logger),
		sessions:     sessions,
	}

	err = app.serve()
	if cerr := statistics.Close(); cerr != nil {
		logger.Error("failed to close statistics repository", "error", cerr)
	}
	if err != nil {
		logger.PrintFatal(err, map[string]string{"addr": fmt.Sprintf(":%d", cfg.port)})
	}
}

// openStatistics returns a PostgreSQL-backed service behind a circuit breaker
// when a DSN is configured, and an in-memory one otherwise.
func openStatistics(cfg config, logger *jsonlog.Logger) (*data.StatisticsService, error) {
	if cfg.db.dsn == "" {
		logger.Info("no database configured, statistics kept in memory")
		return data.NewStatisticsService(data.NewMemoryStatisticsRepository()), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := data.OpenPostgreSQLPool(ctx, cfg.db.dsn, int32(cfg.db.maxConns), cfg.db.maxIdleTime)
	if err != nil {
		return nil, err
	}

	repo := data.NewPostgreSQLStatisticsRepository(pool, 5*time.Second)
	if err := repo.EnsureSchema(ctx); err != nil {
		repo.Close()
		return nil, err
	}

	logger.Info("database connection pool established",
		"max_conns", cfg.db.maxConns,
		"max_idle_time", cfg.db.maxIdleTime.String())

	return data.NewStatisticsService(data.NewCircuitBreakerRepository(repo, logger)), nil
}

func (app *application) serve() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.config.port),
		Handler:      app.routes(),
		ErrorLog:     log.New(app.logger, "", 0),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutdown initiated",
			"signal", s.String(),
			"timeout", app.config.shutdown.timeout.String(),
			"addr", srv.Addr)

		ctx, cancel := context.WithTimeout(context.Background(), app.config.shutdown.timeout)
		defer cancel()

		err := srv.Shutdown(ctx)

		app.rateLimiter.shutdown()
		app.inputLimiter.shutdown()
		app.sessions.Shutdown()
		app.rateLimiter.waitForShutdown()
		app.inputLimiter.waitForShutdown()
		app.sessions.WaitForShutdown()

		app.logger.Info("background tasks completed",
			"active_sessions", app.sessions.Len())

		shutdownError <- err
	}()

	app.logger.Info("starting server",
		"addr", srv.Addr,
		"env", app.config.env,
		"version", version,
		"buildTime", buildTime)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	app.logger.Info("server stopped gracefully",
		"addr", srv.Addr,
		"env", app.config.env)

	return nil
}
