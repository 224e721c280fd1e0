package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"analytics-backend/cmd"
	"analytics-backend/internal/agent"
	"analytics-backend/internal/api"
	"analytics-backend/internal/chat"
	"analytics-backend/internal/database"
	"analytics-backend/internal/messaging"
	"analytics-backend/internal/suggest"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type APIConfig struct {
	cmd.DatasetSettings
	cmd.LLMSettings

	DatabaseURL        string `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL        string `env:"RABBITMQ_URL,notEmpty,required"`
	APIPort            string `env:"API_PORT" envDefault:"8000"`
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000,http://localhost:3001"`
}

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	llmClient := cmd.NewLLMClient(cfg.LLMSettings)

	// A failed dataset load is not fatal; the server starts and /health
	// reports dataset_loaded=false.
	var analysisAgent *agent.Agent
	var suggester *suggest.Suggester
	frame, dict, err := cmd.LoadDataset(context.Background(), cfg.DatasetSettings)
	if err != nil {
		log.Printf("Warning: could not load dataset: %v", err)
		frame = nil
	} else {
		analysisAgent = agent.New(llmClient, frame, dict)
		suggester = suggest.NewSuggester(llmClient, frame.Context(dict))
		log.Printf("Dataset loaded: %d records, %d columns", frame.NumRows(), frame.NumColumns())
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSAllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	apiHandler := api.NewBackendService(db, publisher, analysisAgent, frame, suggester)
	apiHandler.AddRoutes(r)

	if analysisAgent != nil {
		manager := chat.NewChatSessionManager(db, analysisAgent, cfg.Model, cfg.APIKey, cfg.BaseURL)
		chatHandler := api.NewChatService(db, manager)
		chatHandler.AddRoutes(r)
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	log.Println("Server stopped.")
}
