package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neexbeast/tripsync/internal/api"
	"github.com/neexbeast/tripsync/internal/cache"
	"github.com/neexbeast/tripsync/internal/config"
	"github.com/neexbeast/tripsync/internal/docstore"
	"github.com/neexbeast/tripsync/internal/itinerary"
	"github.com/neexbeast/tripsync/internal/provider"
	"github.com/neexbeast/tripsync/internal/refresh"
	"github.com/neexbeast/tripsync/internal/state"
	"github.com/neexbeast/tripsync/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading configuration", "err", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx := context.Background()
	checks := map[string]api.Pinger{}

	// Redis backs the change feed for the postgres store and the geocoding
	// cache. It is optional with the memory store.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer func() { _ = client.Close() }()
		redisClient = client
		checks["redis"] = &redisPingerAdapter{client: client}
	}

	var store docstore.Store
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := docstore.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()

		if err := docstore.RunMigrations(ctx, pool, migrations.FS, log); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		log.Info("migrations applied")

		store = docstore.NewPostgres(pool, docstore.NewRedisNotifier(redisClient), log)
		checks["store"] = pool
	case config.BackendMemory:
		store = docstore.NewMemory()
		log.Warn("using in-memory store, data is lost on restart")
	}

	// Wire dependencies.
	entries := itinerary.NewSync(store, log)
	if err := entries.Subscribe(ctx); err != nil {
		return fmt.Errorf("subscribing to entries: %w", err)
	}
	defer entries.Close()

	titles := itinerary.NewTitles(store, entries, log)
	selection := state.NewSelection()
	recommender := provider.NewRecommender(log, placeSearchers(cfg, log)...)

	var enrich api.EntryEnricher
	var scheduler *refresh.Scheduler
	if cfg.OpenTripMapKey != "" || cfg.KMAServiceKey != "" {
		var coords provider.CoordinateCache
		if redisClient != nil {
			coords = cache.New[provider.Coordinates](redisClient, "geocode:", cfg.CacheTTL)
		}
		enricher := provider.NewEnricher(
			provider.NewGeocodeClient(cfg.OpenTripMapKey),
			provider.NewForecastClient(cfg.KMAServiceKey),
			coords,
			log,
		)

		job := refresh.NewJob(entries, enricher, log)
		defer job.Wait()
		enrich = job

		s, err := refresh.NewScheduler(cfg.RefreshCron, job, log)
		if err != nil {
			return err
		}
		scheduler = s
		scheduler.Start()
		log.Info("enrichment scheduled", "cron", cfg.RefreshCron)
	} else {
		log.Info("no provider keys configured, enrichment disabled")
	}

	handlers := api.NewHandlers(entries, titles, selection, recommender, enrich, log)
	router := api.NewRouter(handlers, api.RouterOptions{
		Token:       cfg.BearerToken,
		CORSOrigins: cfg.CORSOrigins,
		Checks:      checks,
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Entry streams end when shutdown begins instead of holding it open.
	streams, endStreams := context.WithCancel(context.Background())
	defer endStreams()
	srv.BaseContext = func(net.Listener) context.Context { return streams }
	srv.RegisterOnShutdown(endStreams)

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "port", cfg.Port, "store", cfg.StoreBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	var runErr error
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		runErr = err
	case err := <-entries.Failures():
		// The feed is not restarted; exiting lets the supervisor restart us.
		runErr = fmt.Errorf("entry feed failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("graceful shutdown: %w", err)
	}
	if runErr != nil {
		return runErr
	}

	log.Info("server shut down cleanly")
	return nil
}

// placeSearchers returns a searcher for every provider with credentials.
func placeSearchers(cfg config.Config, log *slog.Logger) []provider.PlaceSearcher {
	var out []provider.PlaceSearcher
	if cfg.NaverClientID != "" && cfg.NaverClientSecret != "" {
		out = append(out, provider.NewNaverClient(cfg.NaverClientID, cfg.NaverClientSecret))
	}
	if cfg.OpenTripMapKey != "" {
		out = append(out, provider.NewOpenTripMapClient(cfg.OpenTripMapKey))
	}
	if len(out) == 0 {
		log.Warn("no place search providers configured, recommendations will be empty")
	}
	return out
}

// redisPingerAdapter adapts redis.Client to the api.Pinger interface.
type redisPingerAdapter struct {
	client *redis.Client
}

func (r *redisPingerAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
