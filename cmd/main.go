package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/UnknownOlympus/trafficmodeler/internal/config"
	"github.com/UnknownOlympus/trafficmodeler/internal/events"
	"github.com/UnknownOlympus/trafficmodeler/internal/feed"
	"github.com/UnknownOlympus/trafficmodeler/internal/geocoding"
	"github.com/UnknownOlympus/trafficmodeler/internal/handler"
	"github.com/UnknownOlympus/trafficmodeler/internal/metrics"
	"github.com/UnknownOlympus/trafficmodeler/internal/planner"
	"github.com/UnknownOlympus/trafficmodeler/internal/prediction"
	"github.com/UnknownOlympus/trafficmodeler/internal/repository"
	"github.com/UnknownOlympus/trafficmodeler/internal/routing"
	"github.com/UnknownOlympus/trafficmodeler/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Constants for different environment types.
const (
	envLocal = "local"
	envDev   = "development"
	envProd  = "production"
)

const shutdownTimeout = 10 * time.Second

// pinger reports whether a dependency is reachable.
type pinger interface {
	Ping(ctx context.Context) error
}

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	if err := run(ctx, stop); err != nil {
		stop()
		log.Fatalf("Application failed: %v", err)
	}
	stop()
}

// run wires the application and blocks until ctx is cancelled. Every resource
// opened here is released before it returns, including on startup errors.
func run(ctx context.Context, stop context.CancelFunc) error {
	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	// Plan history is optional and enabled by DB_HOST.
	var (
		recorder planner.Recorder
		history  handler.History
		dbCheck  pinger
	)
	if cfg.Database.Host != "" {
		dtb, err := repository.NewDatabase(ctx,
			cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to connect to DB: %w", err)
		}
		defer dtb.Close()

		repo := repository.NewRepository(dtb, logger)
		if err = repo.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to prepare plan history schema: %w", err)
		}
		recorder, history, dbCheck = repo, repo, repo
		logger.InfoContext(ctx, "Plan history enabled", "host", cfg.Database.Host)
	}

	// Create geocoding provider using factory pattern based on configuration.
	geoProvider, err := geocoding.NewProvider(geocoding.ProviderConfig{
		Type:         geocoding.ProviderType(cfg.Geocoder.Provider),
		APIKey:       cfg.Geocoder.APIKey,
		BaseURL:      cfg.Geocoder.BaseURL,
		UserAgent:    cfg.Geocoder.UserAgent,
		CountryCodes: cfg.Geocoder.CountryCodes,
		RateLimit:    cfg.Geocoder.RateLimit,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create geocoding provider: %w", err)
	}
	logger.InfoContext(ctx, "Geocoding provider initialized", "type", cfg.Geocoder.Provider)

	router := routing.NewOSRMRouter(cfg.Router.BaseURL, cfg.Router.Profile, logger)
	predictor := prediction.NewHTTPPredictor(cfg.Predictor.Endpoint, logger)

	sessions := service.NewSessionService(logger, geoProvider, router, predictor, recorder, appMetrics, service.Config{
		IdleTimeout:        cfg.Sessions.IdleTimeout,
		SweepInterval:      cfg.Sessions.SweepInterval,
		PredictionRequired: cfg.Predictor.Required,
	})

	// Accepted obstacles go to every session and, when configured, to NATS.
	obstacleHandlers := feed.Handlers{sessions}
	if cfg.NATS.URL != "" {
		nc, errNats := events.Connect(cfg.NATS.URL, logger)
		if errNats != nil {
			return fmt.Errorf("failed to connect to NATS: %w", errNats)
		}
		defer func() { _ = nc.Drain() }()

		obstacleHandlers = append(obstacleHandlers, events.NewPublisher(nc, appMetrics, logger))
		logger.InfoContext(ctx, "Obstacle fan-out enabled", "subject", events.SubjectPrefix+".>")
	}

	feedClient := feed.NewClient(feed.Options{
		URL:          cfg.Feed.URL,
		PingInterval: cfg.Feed.PingInterval,
		PongWait:     cfg.Feed.PongWait,
		MinBackoff:   cfg.Feed.MinBackoff,
		MaxBackoff:   cfg.Feed.MaxBackoff,
	}, obstacleHandlers, appMetrics, logger)

	if cfg.Env != envLocal {
		gin.SetMode(gin.ReleaseMode)
	}
	api := handler.New(sessions, history, logger)
	apiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.APIPort),
		Handler:           handler.NewRouter(api, cfg.AllowedOrigins, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Log that the application has started.
	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	// Start the monitoring server in a goroutine to allow main to listen for signals.
	go startMonitoringServer(ctx, logger, reg, feedClient, dbCheck, cfg.HealthPort)

	go sessions.Run(ctx)
	go func() { _ = feedClient.Run(ctx) }()

	go func() {
		logger.InfoContext(ctx, "Starting API server", "port", cfg.APIPort)
		if errServe := apiServer.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "API server failed", "error", errServe)
			stop()
		}
	}()

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()

	// Log that a shutdown signal has been received.
	logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = apiServer.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(shutdownCtx, "API server shutdown failed", "error", err)
	}

	// Log graceful shutdown completion.
	logger.InfoContext(shutdownCtx, "Application stopped gracefully.")

	return nil
}

// startMonitoringServer starts an HTTP server that provides health check and metrics endpoints.
// It listens on the specified port and logs the server's status and any errors encountered.
//
// Parameters:
// - ctx: A context.Context for managing cancellation and timeouts.
// - log: A logger for logging server events and errors.
// - reg: A registry with Prometheus collectors.
// - feedClient: The obstacle feed client, reported but never failing the check.
// - dtb: The plan history database, nil when history is disabled.
// - port: The port number on which the server will listen.
func startMonitoringServer(
	ctx context.Context,
	log *slog.Logger,
	reg *prometheus.Registry,
	feedClient *feed.Client,
	dtb pinger,
	port int,
) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(writer http.ResponseWriter, req *http.Request) {
		log.DebugContext(ctx, "Performing health checks...")
		status := http.StatusOK
		lines := []string{"OK"}

		if dtb != nil {
			if err := dtb.Ping(req.Context()); err != nil {
				status, lines[0] = http.StatusServiceUnavailable, "DB ping failed"
			}
		}
		if feedClient.Connected() {
			lines = append(lines, "feed: connected")
		} else {
			lines = append(lines, "feed: disconnected")
		}

		writer.WriteHeader(status)
		_, err := writer.Write([]byte(strings.Join(lines, "\n")))
		if err != nil {
			log.ErrorContext(ctx, "failed to write reply", "error", err)
		}

		log.DebugContext(ctx, "Health checks completed", "status", status)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	log.InfoContext(ctx, "Starting monitoring server", "port", port)
	readTimeout := 5
	writeTimeout := 10
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.ErrorContext(ctx, "Monitoring server failed", "error", err)
	}
}

// setupLogger initializes and returns a logger based on the environment provided.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelDebug,
				AddSource: true,
			}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:       slog.LevelWarn,
				ReplaceAttr: dropTime,
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:       slog.LevelError,
				ReplaceAttr: dropTime,
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}

func dropTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}
