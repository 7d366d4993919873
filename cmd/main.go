package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/UnknownOlympus/meridian/internal/cache"
	"github.com/UnknownOlympus/meridian/internal/config"
	"github.com/UnknownOlympus/meridian/internal/geocoding"
	"github.com/UnknownOlympus/meridian/internal/metrics"
	"github.com/UnknownOlympus/meridian/internal/quota"
	"github.com/UnknownOlympus/meridian/internal/service"
	"github.com/UnknownOlympus/meridian/internal/store"
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

// main is the entry point of the application.
func main() {
	// Create a context that will be canceled when an interrupt signal is received.
	// This allows for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load application configuration.
	cfg := config.MustLoad()

	// Set up the logger based on the environment.
	logger := setupLogger(cfg.Env)

	// Create a separate registry for metrics with exemplar
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(reg)

	// Initialize the durable counter/cache store selected by configuration.
	kvStore, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize %s store: %v", cfg.StoreType, err)
	}
	defer kvStore.Close()

	logger.InfoContext(ctx, "Durable store initialized", "type", cfg.StoreType)

	// Build the ordered provider chain from configured credentials.
	providers, err := geocoding.NewProviders(geocoding.ProvidersConfig{
		GoogleAPIKey:     cfg.Providers.GoogleAPIKey,
		OpenCageAPIKey:   cfg.Providers.OpenCageAPIKey,
		GeoapifyAPIKey:   cfg.Providers.GeoapifyAPIKey,
		NominatimRateRPS: cfg.Providers.NominatimRateRPS,
		GoogleRateQPS:    cfg.Providers.GoogleRateQPS,
		Logger:           logger,
	})
	if err != nil {
		log.Fatalf("Failed to create geocoding providers: %v", err)
	}

	logger.InfoContext(ctx, "Geocoding providers initialized", "count", len(providers))

	// Compose the resolver from its collaborators.
	resolver := service.NewResolver(
		logger,
		providers,
		quota.NewTracker(kvStore, cfg.Quotas, logger),
		cache.New(kvStore, cfg.CacheTTL),
		service.NewScorer(service.DefaultWeights()),
		service.NewFormatter(cfg.HomeCountry),
		appMetrics,
	)

	// Log that the application has started.
	logger.InfoContext(ctx, "Application started. Press Ctrl+C to stop.")

	// Start the monitoring/API server in a goroutine so main can listen for signals.
	go startServer(ctx, logger, reg, kvStore, resolver, cfg.Port)

	// Wait for the context to be canceled (e.g., by Ctrl+C).
	<-ctx.Done()

	// Log that a shutdown signal has been received.
	logger.InfoContext(ctx, "Shutdown signal received. Stopping application...")

	// Log graceful shutdown completion.
	logger.InfoContext(ctx, "Application stopped gracefully.")
}

// newStore creates the durable store backend selected by configuration.
func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreType {
	case "redis":
		return store.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	case "postgres":
		pool, err := store.NewDatabase(
			ctx, cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name,
		)
		if err != nil {
			return nil, err
		}
		pgStore := store.NewPostgresStore(pool)
		if err = pgStore.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return pgStore, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

// startServer starts an HTTP server that exposes health, metrics, usage
// stats, and the two resolution endpoints. It listens on the specified
// port and logs the server's status and any errors encountered.
func startServer(
	ctx context.Context,
	log *slog.Logger,
	reg *prometheus.Registry,
	kvStore store.Store,
	resolver *service.Resolver,
	port int,
) {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(writer http.ResponseWriter, _ *http.Request) {
		log.DebugContext(ctx, "Performing health checks...")
		status, body := http.StatusOK, "OK"
		if err := kvStore.Ping(ctx); err != nil {
			status, body = http.StatusServiceUnavailable, "store ping failed"
		}
		writer.WriteHeader(status)
		if _, err := writer.Write([]byte(body)); err != nil {
			log.ErrorContext(ctx, "failed to write reply", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("/v1/geocode/reverse", func(writer http.ResponseWriter, req *http.Request) {
		lat, errLat := strconv.ParseFloat(req.URL.Query().Get("lat"), 64)
		lng, errLng := strconv.ParseFloat(req.URL.Query().Get("lng"), 64)
		if errLat != nil || errLng != nil {
			http.Error(writer, "lat and lng query parameters are required", http.StatusBadRequest)
			return
		}

		resolved, err := resolver.ReverseGeocode(req.Context(), lat, lng)
		if err != nil {
			http.Error(writer, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(writer, log, resolved)
	})

	mux.HandleFunc("/v1/geocode/forward", func(writer http.ResponseWriter, req *http.Request) {
		resolved, found, err := resolver.ForwardGeocode(req.Context(), req.URL.Query().Get("q"))
		if err != nil {
			http.Error(writer, err.Error(), http.StatusBadRequest)
			return
		}
		if !found {
			http.Error(writer, "address not found", http.StatusNotFound)
			return
		}
		writeJSON(writer, log, resolved)
	})

	mux.HandleFunc("/v1/usage", func(writer http.ResponseWriter, req *http.Request) {
		usage, err := resolver.GetUsageStats(req.Context())
		if err != nil {
			http.Error(writer, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(writer, log, usage)
	})

	log.InfoContext(ctx, "Starting monitoring server", "port", port)
	readTimeout := 5
	writeTimeout := 15
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		log.ErrorContext(ctx, "Monitoring server failed", "error", err)
	}
}

// writeJSON encodes v as the JSON response body.
func writeJSON(writer http.ResponseWriter, log *slog.Logger, v any) {
	writer.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(writer).Encode(v); err != nil {
		log.Error("failed to encode reply", "error", err)
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
				Level:     slog.LevelInfo,
				AddSource: false,
			}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelWarn,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level:     slog.LevelError,
				AddSource: false,
				ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
					if a.Key == slog.TimeKey {
						return slog.Attr{}
					}
					return a
				},
			}),
		)

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}
