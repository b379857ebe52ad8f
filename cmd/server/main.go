package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rpggio/weekly/internal/config"
	"github.com/rpggio/weekly/internal/domain/activity"
	"github.com/rpggio/weekly/internal/domain/stats"
	"github.com/rpggio/weekly/internal/domain/timetable"
	"github.com/rpggio/weekly/internal/events"
	"github.com/rpggio/weekly/internal/mcp"
	"github.com/rpggio/weekly/internal/observability"
	"github.com/rpggio/weekly/internal/repository"
	"github.com/rpggio/weekly/internal/transport"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Use stderr for logs in stdio mode to keep stdout clean for JSON-RPC.
	logWriter := io.Writer(os.Stdout)
	if cfg.Transport.Mode == "stdio" {
		logWriter = os.Stderr
	}
	if logPath := os.Getenv("WEEKLY_LOG_PATH"); logPath != "" {
		fileWriter, file, err := newLogFileWriter(logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			defer file.Close()
			logWriter = fileWriter
		}
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	ctx := context.Background()
	st, err := openStore(ctx, cfg.DB, logger)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.DB.Driver, "error", err)
		os.Exit(1)
	}
	defer st.close()

	if cfg.Auth.Enabled && cfg.Auth.Mode == "api_key" && cfg.Auth.BootstrapKey != "" {
		err := st.keys.Add(ctx, cfg.Auth.BootstrapKey, cfg.Auth.DefaultUser, "bootstrap")
		if err != nil && !errors.Is(err, repository.ErrDuplicate) {
			logger.Error("failed to register bootstrap api key", "error", err)
			os.Exit(1)
		}
	}

	opts, err := serviceOptions(cfg)
	if err != nil {
		logger.Error("invalid week configuration", "error", err)
		os.Exit(1)
	}

	var publisher timetable.EventPublisher
	if cfg.Events.Enabled() {
		producer := events.NewKafkaProducer(cfg.Events.Brokers)
		defer producer.Close()
		dispatcher := events.NewDispatcher(events.NewKafkaPublisher(producer, cfg.Events.Topic, logger), events.DefaultQueueSize, logger)
		dispatchCtx, stopDispatch := context.WithCancel(context.Background())
		go dispatcher.Start(dispatchCtx)
		defer func() {
			dispatcher.Close()
			timer := time.AfterFunc(5*time.Second, stopDispatch)
			dispatcher.Wait()
			timer.Stop()
			stopDispatch()
		}()
		publisher = dispatcher
		logger.Info("publishing events", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	}

	activitySvc := activity.NewService(st.activity, logger)
	timetableSvc := timetable.NewService(st.timetables, activitySvc, publisher, stats.NewAggregator(), logger, opts)

	resolver := userResolver(cfg.Auth, st.keys)
	mcpServer := mcp.NewServer(mcp.Config{
		Services: mcp.Services{
			Timetables: timetableSvc,
			Activity:   activitySvc,
		},
		Resolver:      resolver,
		AuthEnabled:   cfg.Auth.Enabled,
		DefaultUser:   cfg.Auth.DefaultUser,
		TransportMode: cfg.Transport.Mode,
		Version:       version,
		Logger:        logger,
	})

	if cfg.Transport.Mode == "stdio" {
		runStdioMode(logger, mcpServer)
		return
	}

	auth := transport.StaticUser(cfg.Auth.DefaultUser)
	if cfg.Auth.Enabled {
		auth = transport.AuthMiddleware(resolver)
	}
	routerOpts := transport.RouterOptions{
		Auth:   auth,
		MCP:    mcp.NewHTTPHandler(mcpServer),
		Logger: logger,
	}
	if cfg.Metrics.Enabled {
		routerOpts.Metrics = observability.Handler()
		routerOpts.MetricsPath = cfg.Metrics.Path
	}
	runHTTPMode(logger, transport.NewServer(timetableSvc, activitySvc, routerOpts), cfg.Server)
}

func serviceOptions(cfg config.Config) (timetable.Options, error) {
	loc, err := cfg.Week.Location()
	if err != nil {
		return timetable.Options{}, err
	}
	opts := timetable.DefaultOptions()
	opts.Location = loc
	opts.RolloverOnRead = cfg.Week.RolloverOnRead
	opts.Concurrency = timetable.ConcurrencyMode(cfg.Week.Concurrency)
	opts.MaxRetries = cfg.Week.MaxRetries
	opts.HistoryOrder = timetable.HistoryOrder(cfg.History.Order)
	opts.DefaultPageSize = cfg.History.DefaultPageSize
	opts.MaxPageSize = cfg.History.MaxPageSize
	opts.Metrics = observability.TimetableMetrics{}
	return opts, nil
}

func userResolver(cfg config.AuthConfig, keys apiKeyStore) transport.UserResolver {
	if cfg.Mode == "jwt" {
		return transport.JWTResolver{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}
	}
	return keys
}

func runStdioMode(logger *slog.Logger, mcpServer *sdkmcp.Server) {
	logger.Info("starting stdio transport", "auth", "disabled")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Run blocks until stdin closes or context is canceled
	if err := mcpServer.Run(ctx, &sdkmcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("stdio server error", "error", err)
		os.Exit(1)
	}
}

func runHTTPMode(logger *slog.Logger, handler http.Handler, cfg config.ServerConfig) {
	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer)
}

func ensureDBDir(path string) error {
	if path == ":memory:" || path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func waitForShutdown(logger *slog.Logger, server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
