package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/cellis212/insurance-manager-sub000/internal/api"
	"github.com/cellis212/insurance-manager-sub000/internal/archive"
	"github.com/cellis212/insurance-manager-sub000/internal/config"
	"github.com/cellis212/insurance-manager-sub000/internal/events"
	"github.com/cellis212/insurance-manager-sub000/internal/metrics"
	"github.com/cellis212/insurance-manager-sub000/internal/store"
	"github.com/cellis212/insurance-manager-sub000/internal/turn"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	rt := config.LoadRuntime()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Parameter bundle ---
	bundle, err := config.LoadOrDefault(rt.BundlePath)
	if err != nil {
		slog.Error("parameter bundle rejected", "path", rt.BundlePath, "err", err)
		os.Exit(1)
	}
	if err := bundle.Validate(); err != nil {
		slog.Error("parameter bundle invalid", "err", err)
		os.Exit(1)
	}

	// --- Initialize store ---
	var st store.Store
	var rdb *redis.Client
	var cleanup []func()

	if rt.RedisURL != "" {
		opt, err := redis.ParseURL(rt.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "err", err)
			os.Exit(1)
		}
		rdb = redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
	}

	if rt.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, rt.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		if err := store.EnsureSchema(ctx, pool); err != nil {
			slog.Error("schema setup failed", "err", err)
			os.Exit(1)
		}
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if rdb != nil {
			st = store.NewCachedStore(st, rdb, rt.CacheTTL)
			slog.Info("Redis cache enabled", "ttl", rt.CacheTTL.String())
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Event sinks ---
	wsHub := events.NewWSHub()
	wsHub.OnCount = func(n int) { metrics.WebSocketClients.Set(float64(n)) }
	wsHub.AllowedOrigins = rt.AllowedOrigins
	go wsHub.Run(ctx)

	sinks := events.Fanout{events.LogSink{Logger: logger}, wsHub}
	if rdb != nil {
		sinks = append(sinks, events.NewRedisPublisher(rdb, rt.EventsChannel))
		slog.Info("publishing turn events to Redis", "channel", rt.EventsChannel)
	}

	// --- Turn engine and runner ---
	engine := turn.NewEngine(bundle,
		turn.WithParallelism(rt.TurnParallelism),
		turn.WithBudget(rt.TurnBudget),
		turn.WithLogger(logger),
	)
	opts := []turn.RunnerOption{turn.WithSink(sinks), turn.WithRunnerLogger(logger)}
	if rt.ArchiveBucket != "" {
		arch, err := archive.NewS3Archiver(ctx, rt.ArchiveBucket, rt.ArchivePrefix, logger)
		if err != nil {
			slog.Error("archive setup failed", "err", err)
			os.Exit(1)
		}
		opts = append(opts, turn.WithArchiver(arch))
		slog.Info("archiving turns", "bucket", rt.ArchiveBucket, "prefix", rt.ArchivePrefix)
	}
	runner := turn.NewRunner(st, engine, rt.SemesterSeed, opts...)

	// --- Weekly schedule ---
	var sched *cron.Cron
	if rt.TurnSchedule != "" {
		sched = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
		_, err := sched.AddFunc(rt.TurnSchedule, func() {
			if _, err := runner.RunNext(ctx); err != nil {
				slog.Error("scheduled turn failed", "err", err)
			}
		})
		if err != nil {
			slog.Error("invalid TURN_SCHEDULE", "schedule", rt.TurnSchedule, "err", err)
			os.Exit(1)
		}
		sched.Start()
		slog.Info("turn scheduler started", "schedule", rt.TurnSchedule)
	}

	// --- API service ---
	svc := api.NewService(st, runner, bundle)

	// A manual turn may run for the whole budget.
	requestTimeout := rt.TurnBudget + time.Minute

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"turn-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for live turn events.
		r.Get("/ws", wsHub.HandleWS)

		svc.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + rt.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: requestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("turn-engine listening", "port", rt.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down turn-engine...")
	if sched != nil {
		// Wait for a running turn; it commits or fails as a whole.
		<-sched.Stop().Done()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	cancel()
	fmt.Println("turn-engine stopped")
}
