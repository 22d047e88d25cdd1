package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"appt-service/internal/cache"
	"appt-service/internal/config"
	apptCancel "appt-service/internal/http-server/handlers/appointments/cancel"
	apptGet "appt-service/internal/http-server/handlers/appointments/get"
	apptList "appt-service/internal/http-server/handlers/appointments/list"
	apptUpdate "appt-service/internal/http-server/handlers/appointments/update"
	scheduleAvailability "appt-service/internal/http-server/handlers/schedules/availability"
	scheduleGet "appt-service/internal/http-server/handlers/schedules/get"
	scheduleUpdate "appt-service/internal/http-server/handlers/schedules/update"
	"appt-service/internal/lock"
	"appt-service/internal/logger"
	svc "appt-service/internal/service"
	"appt-service/internal/storage/postgres"
	"appt-service/pkg/middleware/mwLogger"
	"appt-service/pkg/middleware/ratelimit"
	"appt-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id, X-User-Id, X-User-Role")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {

	cfg := config.MustLoad()

	log := logger.Setup(cfg.Env, os.Stdout)

	log.Info("Starting API", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	storage, err := postgres.New(cfg.StoragePath)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer initCancel()

	if err := storage.Ping(initCtx); err != nil {
		log.Error("Failed to reach storage", sl.Err(err))
		os.Exit(1)
	}

	if err := storage.Migrate(initCtx); err != nil {
		log.Error("Failed to apply schema", sl.Err(err))
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(initCtx).Err(); err != nil {
		log.Error("Failed to connect to redis", sl.Err(err))
		os.Exit(1)
	}

	locker := lock.NewRedisLock(rdb)
	schedules := cache.NewScheduleCache(rdb, cfg.Redis.CacheTTL)

	service := svc.NewService(log, storage, locker, schedules, cfg.Redis.LockTTL)

	visitors := ratelimit.NewStore(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	limiter := ratelimit.New(log, visitors)

	pruneCtx, stopPrune := context.WithCancel(context.Background())
	defer stopPrune()
	go visitors.Run(pruneCtx, time.Minute)

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	// Schedules
	router.Get("/schedules/{subjectId}", scheduleGet.New(log, service))
	router.Get("/schedules/{subjectId}/availability", scheduleAvailability.New(log, service))
	router.With(limiter).Put("/schedules/{subjectId}", scheduleUpdate.New(log, service))

	// Appointments
	router.Get("/appointments", apptList.New(log, service))
	router.Get("/appointments/{id}", apptGet.New(log, service))
	router.With(limiter).Put("/appointments/{id}", apptUpdate.New(log, service))
	router.With(limiter).Put("/appointments/{id}/cancel", apptCancel.New(log, service))

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	if err := storage.Close(); err != nil {
		log.Error("Failed to close storage", sl.Err(err))
	} else {
		log.Info("Storage closed")
	}

	if err := rdb.Close(); err != nil {
		log.Error("Failed to close redis client", sl.Err(err))
	} else {
		log.Info("Redis client closed")
	}

	log.Info("Shutdown finished, server stopped")
}
