// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dap-crew/dap-server/internal/config"
	"github.com/dap-crew/dap-server/internal/database"
	"github.com/dap-crew/dap-server/internal/handler"
	"github.com/dap-crew/dap-server/internal/repository"
	"github.com/dap-crew/dap-server/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	setupLogger(cfg.Log.Level)

	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("connected to postgres")

	if cfg.Database.Migrate {
		if err := database.Migrate(cfg.Database.DSN); err != nil {
			slog.Error("migrate", "error", err)
			os.Exit(1)
		}
		slog.Info("migrations applied")
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	clock := clockwork.NewRealClock()

	lessonRepo := repository.NewLessonRepository(pool)
	participationRepo := repository.NewParticipationRepository(pool)
	userRepo := repository.NewUserRepository(pool)
	academyRepo := repository.NewAcademyRepository(pool)

	lessonSvc := service.NewLessonService(lessonRepo, userRepo, clock)
	participationSvc := service.NewParticipationService(userRepo, participationRepo, lessonRepo, clock)
	userSvc := service.NewUserService(userRepo, cfg.Auth, clock)
	academySvc := service.NewAcademyService(academyRepo)

	lessonHandler := handler.NewLessonHandler(lessonSvc, participationSvc)
	userHandler := handler.NewUserHandler(userSvc, participationSvc)
	academyHandler := handler.NewAcademyHandler(academySvc)

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.StripSlashes)
	r.Use(handler.Logger)
	r.Use(handler.CORS)

	r.Get("/health", handler.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	authed := handler.Auth(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)

	r.Route("/lesson", func(r chi.Router) {
		r.Get("/", lessonHandler.List)
		r.Get("/search", lessonHandler.Search)
		r.Get("/{id}", lessonHandler.Get)
		r.With(authed).Post("/", lessonHandler.Create)
		r.With(authed).Put("/{id}", lessonHandler.Update)
		r.With(authed).Delete("/{id}", lessonHandler.Delete)
		r.With(authed).Get("/{id}/participate", lessonHandler.Participate)
		r.With(authed).Put("/{id}/cancel", lessonHandler.Cancel)
	})

	r.Route("/user", func(r chi.Router) {
		r.Post("/", userHandler.Register)
		r.Post("/login", userHandler.Login)
		r.With(authed).Get("/classes", userHandler.MyClasses)
		r.Get("/{id}", userHandler.Get)
	})

	r.Route("/academy", func(r chi.Router) {
		r.Get("/", academyHandler.List)
		r.Get("/{id}", academyHandler.Get)
		r.With(authed).Post("/", academyHandler.Create)
	})

	r.Get("/genre", academyHandler.Genres)

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func setupLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)
}
