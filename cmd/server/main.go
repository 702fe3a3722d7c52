package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/RafliAndy/bank-sampah-app-sub000/internal/config"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/database"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/forum"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/gamification"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/logger"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/middleware"
	"github.com/RafliAndy/bank-sampah-app-sub000/internal/realtime"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))

	// Initialize database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to run migrations: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize engine
	hub := realtime.NewHub(nil)
	go hub.Run(ctx)

	directory := forum.NewDirectory(db)
	service := gamification.NewService(
		gamification.NewPostgresStore(db),
		directory,
		directory,
		hub,
		gamification.Options{
			ReclaimVotePoints:       cfg.Gamification.ReclaimVotePoints,
			LeaderboardDefaultLimit: cfg.Gamification.LeaderboardDefaultLimit,
		},
	)
	handler := gamification.NewHandler(service)

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger)
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/badges", handler.ListBadges).Methods("GET")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware([]byte(cfg.Auth.JWTSecret)))
	protected.HandleFunc("/votes", handler.CastVote).Methods("POST")
	protected.HandleFunc("/streak/login", handler.RecordLogin).Methods("POST")
	protected.HandleFunc("/activity", handler.RecordActivity).Methods("POST")
	protected.HandleFunc("/gamification/me", handler.GetGamification).Methods("GET")
	protected.HandleFunc("/gamification/transactions", handler.ListTransactions).Methods("GET")
	protected.HandleFunc("/leaderboard", handler.Leaderboard).Methods("GET")
	protected.HandleFunc("/ws", hub.ServeWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Shutdown: %v", err)
		}
	}()

	logger.Info("Server starting on :%s", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed: %v", err)
		os.Exit(1)
	}
}
