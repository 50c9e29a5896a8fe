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
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/campusbank/backend/internal/database"
	"github.com/campusbank/backend/internal/handlers"
	"github.com/campusbank/backend/internal/ledger"
	mW "github.com/campusbank/backend/internal/middleware"
	"github.com/campusbank/backend/internal/services"
)

// @title CampusBank API
// @version 1.0
// @description Simulated banking backend: accounts, ledger, transfers, cards and QR peer transfers
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("storage.driver", "STORAGE_DRIVER")
	viper.BindEnv("storage.snapshot_path", "STORAGE_SNAPSHOT_PATH")

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

	viper.SetDefault("storage.driver", "file")
	viper.SetDefault("storage.snapshot_path", "campusbank.json")
	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	// Ledger store: "file" keeps everything in a local JSON snapshot,
	// "postgres" uses the document table.
	var store ledger.Store
	switch driver := viper.GetString("storage.driver"); driver {
	case "postgres":
		db := database.InitDatabase()
		defer db.Close()
		store = ledger.NewPgStore(db)
	case "file":
		var err error
		store, err = ledger.NewMemStore(viper.GetString("storage.snapshot_path"))
		if err != nil {
			log.Fatalf("Failed to open ledger snapshot: %v", err)
		}
	default:
		log.Fatalf("Unknown storage driver %q", driver)
	}

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Core components
	registry := ledger.NewRegistry(store)
	engine := ledger.NewEngine(store)
	projector := ledger.NewProjector(store)

	// Services
	authService := services.NewAuthService(registry, redisClient)
	transactionService := services.NewTransactionService(engine, projector, registry)
	accountService := services.NewAccountService(registry)
	cardService := services.NewCardService(registry)
	qrService := services.NewQRService(registry, redisClient)
	qrHandler := handlers.NewQRHandler(qrService)

	// Initialize auth middleware with Redis
	mW.InitAuthMiddleware(redisClient)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Timeout(60 * time.Second))

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

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/auth/account", authService.GetUserAccount)

			r.Get("/transactions", transactionService.ListTransactions)
			r.Get("/transactions/recent", transactionService.GetRecentTransactions)
			r.Post("/transactions/deposit", transactionService.Deposit)
			r.Post("/transactions/withdraw", transactionService.Withdraw)
			r.Post("/transactions/transfer", transactionService.Transfer)

			// Account enquiry and settings endpoints
			r.Get("/accounts/name-enquiry", transactionService.AccountNameEnquiry)
			r.Get("/accounts/balance-enquiry", transactionService.AccountBalanceEnquiry)
			r.Get("/accounts/balance-history", transactionService.GetBalanceHistory)
			r.Put("/accounts/profile", accountService.UpdateProfile)
			r.Put("/accounts/password", accountService.ChangePassword)
			r.Delete("/accounts", accountService.DeleteAccount)

			// Simulated card endpoints
			r.Post("/cards/generate", cardService.GenerateCard)
			r.Get("/cards", cardService.GetCard)

			// QR endpoints
			r.Post("/qr/generate", qrHandler.GenerateQR)
			r.Post("/qr/process", qrHandler.ProcessQR)
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
