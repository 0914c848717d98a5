package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	"github.com/sub4sub/backend/docs"
	"github.com/sub4sub/backend/internal/config"
	"github.com/sub4sub/backend/internal/database"
	"github.com/sub4sub/backend/internal/handlers"
	mW "github.com/sub4sub/backend/internal/middleware"
	"github.com/sub4sub/backend/internal/scheduler"
	"github.com/sub4sub/backend/internal/services"
	httpSwagger "github.com/swaggo/http-swagger"
)

// @title Sub4Sub Credit Backend API
// @version 1.0
// @description API for the credit ledger and premium entitlement engine
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.ReadInConfig()

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")
	viper.BindEnv("app.base_url", "APP_BASE_URL")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Sub4Sub Credit Backend API"
	docs.SwaggerInfo.Description = "API for the credit ledger and premium entitlement engine"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	credits := config.LoadCreditsConfig()
	appURL := viper.GetString("app.base_url")
	if appURL == "" {
		appURL = "http://localhost:8080"
	}

	ledgerService := services.NewLedgerService(db, credits)
	referralService := services.NewReferralService(db, ledgerService, credits, appURL)
	entitlementService := services.NewEntitlementService(db, redisClient, referralService)
	watchService := services.NewWatchService(db, ledgerService, credits)
	expiryService := services.NewExpiryService(db, redisClient)
	qualityService := services.NewQualityService(db, redisClient)
	authService := services.NewAuthService(db, redisClient, ledgerService, referralService)

	creditHandler := handlers.NewCreditHandler(ledgerService)
	paymentHandler := handlers.NewPaymentHandler(entitlementService)
	referralHandler := handlers.NewReferralHandler(referralService)
	watchHandler := handlers.NewWatchHandler(watchService)

	// Periodic sweeps
	sched := scheduler.New(expiryService, qualityService, config.LoadSchedulerConfig())
	if err := sched.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Post("/payments/webhook", paymentHandler.Webhook)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware(redisClient))

			r.Get("/credits/balance", creditHandler.Balance)
			r.Post("/credits/spend", creditHandler.Spend)

			r.Get("/referrals/stats", referralHandler.Stats)
			r.Get("/referrals/qr", referralHandler.QR)

			r.Post("/rooms", watchHandler.CreateRoom)
			r.Post("/rooms/{roomId}/sessions", watchHandler.StartSession)
			r.Post("/sessions/{sessionId}/complete", watchHandler.CompleteSession)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
