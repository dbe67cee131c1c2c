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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	caseapi "github.com/oncoayuda/casework/internal/casework/api"
	"github.com/oncoayuda/casework/internal/casework/domain"
	"github.com/oncoayuda/casework/internal/casework/infrastructure"
	"github.com/oncoayuda/casework/internal/casework/service"
	"github.com/oncoayuda/casework/internal/document"
	"github.com/oncoayuda/casework/internal/notification"
	"github.com/oncoayuda/casework/internal/shared/auth"
	"github.com/oncoayuda/casework/internal/shared/config"
	"github.com/oncoayuda/casework/internal/shared/database"
	"github.com/oncoayuda/casework/internal/shared/logger"
	"github.com/oncoayuda/casework/internal/shared/metrics"
	secmiddleware "github.com/oncoayuda/casework/internal/shared/middleware"
)

// maxBodyBytes bounds request bodies; the API only takes small JSON documents.
const maxBodyBytes = 1 << 20

// App holds all application dependencies
type App struct {
	Config     *config.Config
	Log        *zap.Logger
	DB         *database.DB
	Dispatcher *notification.Dispatcher
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	app := &App{Config: cfg, Log: log}

	store, err := app.openStore(ctx)
	if err != nil {
		log.Fatal("store unavailable", zap.Error(err))
	}
	if app.DB != nil {
		defer app.DB.Close()
	}

	publisher, err := notification.NewPublisher(ctx, cfg, log)
	if err != nil {
		log.Warn("notification sink unavailable, falling back to log", zap.String("sink", cfg.Notification.Sink), zap.Error(err))
		publisher = notification.NewLogPublisher(log)
	}
	app.Dispatcher = notification.NewDispatcher(publisher, notification.ConfigFrom(cfg.Notification), log)

	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()
	if err := app.Dispatcher.Start(dispatchCtx); err != nil {
		log.Fatal("failed to start notification dispatcher", zap.Error(err))
	}

	var verifier document.Verifier
	if cfg.Documents.VerifyURL != "" {
		verifier = document.NewRemoteVerifier(cfg.Documents.VerifyURL, cfg.Documents.Timeout, log)
	}

	svc := service.New(store, log,
		service.WithEmitter(app.Dispatcher),
		service.WithDocuments(document.NewValidator(verifier)),
		service.WithPhoneRegion(cfg.Workflow.PhoneRegion),
		service.WithTxTimeout(cfg.Workflow.TxTimeout),
	)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.RequestLogger(log))
	r.Use(metrics.Middleware)

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(secmiddleware.RateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst))
		r.Use(secmiddleware.InputSanitizer(maxBodyBytes))
		if cfg.Server.IsProduction() {
			r.Use(auth.Middleware(cfg.Auth))
		} else {
			r.Use(auth.DevMiddleware)
		}

		r.Mount("/", caseapi.NewHandler(svc, log).Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if app.DB != nil {
		go app.reportPoolStats(dispatchCtx)
	}

	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("server shutdown error", zap.Error(err))
		}
		// Requests are drained; flush what is still queued for notification.
		if err := app.Dispatcher.Stop(ctx); err != nil {
			log.Warn("notification dispatcher stop", zap.Error(err))
		}
		close(done)
	}()

	log.Info("casework server starting",
		zap.String("env", cfg.Server.Env),
		zap.Int("port", cfg.Server.Port),
		zap.Bool("database", app.DB != nil),
		zap.String("notification_sink", cfg.Notification.Sink),
		zap.Bool("document_verification", verifier != nil),
	)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("server error", zap.Error(err))
	}

	<-done
	log.Info("server stopped")
}

// openStore connects to Postgres, or returns the in-memory store in limited mode.
func (app *App) openStore(ctx context.Context) (domain.Store, error) {
	cfg := app.Config
	if cfg.Database.Disabled {
		app.Log.Warn("database disabled, running in limited mode with in-memory store")
		return infrastructure.NewMemoryStore(), nil
	}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db.Pool, app.Log); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	app.DB = db
	return infrastructure.NewPostgresStore(db.Pool, cfg.Workflow.LockTimeout), nil
}

func (app *App) reportPoolStats(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.RecordDBConnections(int(app.DB.Pool.Stat().AcquiredConns()))
		}
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		stats := app.Dispatcher.Stats()
		checks["notifications"] = fmt.Sprintf("ready (sent %d, dropped %d)", stats.Sent, stats.Dropped)

		allReady := true
		for name, status := range checks {
			if name == "notifications" {
				continue
			}
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
