// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/collabcore/realtime-platform/internal/calendar"
	"github.com/collabcore/realtime-platform/internal/collab"
	"github.com/collabcore/realtime-platform/internal/config"
	"github.com/collabcore/realtime-platform/internal/handler"
	"github.com/collabcore/realtime-platform/internal/middleware"
	natsclient "github.com/collabcore/realtime-platform/internal/nats"
	"github.com/collabcore/realtime-platform/internal/ratelimit"
	"github.com/collabcore/realtime-platform/pkg/logger"
	"github.com/collabcore/realtime-platform/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting API server")

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "realtime-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS
	natsConn, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, log)
	if err != nil {
		log.Error("failed to connect to NATS", zap.Error(err))
		os.Exit(1)
	}
	defer natsConn.Close()

	// Ensure JetStream stream exists
	streamManager := natsclient.NewStreamManager(natsConn)
	if err := streamManager.EnsureStream(ctx); err != nil {
		log.Error("failed to ensure stream", zap.Error(err))
		os.Exit(1)
	}

	// Initialize core services
	snapshots := collab.NewMemorySnapshots()
	manager := collab.NewManager(snapshots, streamManager, streamManager, log, collab.Options{
		MaxRoomSize:       cfg.RoomMaxSize,
		InactivityTimeout: cfg.InactivityTimeout,
	})

	eventStore := calendar.NewMemoryStore()
	calendarSvc := calendar.NewService(eventStore, log, calendar.Config{
		BusinessStartHour: cfg.BusinessStartHour,
		BusinessEndHour:   cfg.BusinessEndHour,
		SlotStep:          time.Duration(cfg.SlotStepMinutes) * time.Minute,
	}, nil)

	limiter := ratelimit.New(nil)

	// Background maintenance: inactive-user eviction and limiter sweep.
	// The core components do not schedule themselves.
	maintenanceCtx, stopMaintenance := context.WithCancel(ctx)
	defer stopMaintenance()
	go runEvery(maintenanceCtx, cfg.CleanupInterval, func() {
		manager.CleanupInactiveUsers(maintenanceCtx)
	})
	go runEvery(maintenanceCtx, cfg.RateLimitSweep, func() {
		if removed := limiter.Sweep(); removed > 0 {
			log.Debug("swept rate limit entries", zap.Int("removed", removed))
		}
	})
	go runEvery(maintenanceCtx, cfg.CleanupInterval, func() {
		if err := streamManager.RecordStreamDepth(maintenanceCtx); err != nil {
			log.Debug("stream depth sample failed", zap.Error(err))
		}
	})

	// API key validation is delegated to the key registry; the platform
	// only consumes the boolean verdict.
	validateKey := func(key string) bool {
		return len(key) >= 32
	}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsConn, manager)
	roomHandler := handler.NewRoomHandler(manager, streamManager, log)
	calendarHandler := handler.NewCalendarHandler(calendarSvc, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.GlobalIPRateLimit(cfg.GlobalIPLimit, time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-API-Key"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.APIKey(validateKey, log))
		r.Use(middleware.RateLimit(limiter, cfg.RateLimitRequests, cfg.RateLimitWindow, middleware.IdentityKey))

		// Collaboration rooms
		r.Route("/rooms", func(r chi.Router) {
			r.Post("/", roomHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", roomHandler.Get)
				r.Post("/join", roomHandler.Join)
				r.Post("/leave", roomHandler.Leave)
				r.Post("/updates", roomHandler.Update)
				r.Get("/updates", roomHandler.ListUpdates)
				r.Post("/cursor", roomHandler.Cursor)
				r.Post("/typing", roomHandler.Typing)
				r.Post("/lock", roomHandler.Lock)
				r.Post("/unlock", roomHandler.Unlock)
			})
		})

		// Calendar
		r.Route("/calendar", func(r chi.Router) {
			r.Post("/events", calendarHandler.CreateEvent)
			r.Post("/events/{id}/status", calendarHandler.TransitionStatus)
			r.Get("/view", calendarHandler.View)
			r.Get("/slots", calendarHandler.Slots)
			r.Get("/suggest", calendarHandler.Suggest)
			r.Post("/schedule", calendarHandler.AutoSchedule)
			r.Get("/export", calendarHandler.Export)
			r.Get("/stats", calendarHandler.Stats)
		})
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	stopMaintenance()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}

// runEvery invokes fn on a fixed interval until ctx is cancelled.
func runEvery(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
