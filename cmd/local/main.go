// Command local runs the whole stack in a single process: sqlite database,
// in-memory task queue, in-process worker, and the HTTP API.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
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
	"gorm.io/gorm"
)

type LocalConfig struct {
	cmd.DatasetSettings
	cmd.LLMSettings

	Root string `env:"ROOT" envDefault:"./data-chat"`
	Port int    `env:"PORT" envDefault:"8000"`
}

func createDatabase(root string) *gorm.DB {
	path := filepath.Join(root, "db", "data-chat.db")
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := database.NewDatabase(path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	return db
}

// requeuePending puts analyses that were queued when the process last stopped
// back on the queue.
func requeuePending(db *gorm.DB, queue *messaging.InMemoryQueue) {
	var pending []database.Analysis
	if err := db.Where("status = ?", database.AnalysisQueued).Find(&pending).Error; err != nil {
		log.Fatalf("Failed to fetch pending analyses from database: %v", err)
	}

	for _, analysis := range pending {
		if err := queue.PublishAnalysisTask(context.Background(), messaging.AnalysisTaskPayload{
			AnalysisId: analysis.Id,
		}); err != nil {
			log.Fatalf("Failed to requeue analysis task: %v", err)
		}
	}
}

func main() {
	cmd.LoadEnvFile()

	var cfg LocalConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating root directory: %v", err)
	}

	db := createDatabase(cfg.Root)

	queue := messaging.NewInMemoryQueue()
	requeuePending(db, queue)

	llmClient := cmd.NewLLMClient(cfg.LLMSettings)

	frame, dict, err := cmd.LoadDataset(context.Background(), cfg.DatasetSettings)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}
	log.Printf("Dataset loaded: %d records, %d columns", frame.NumRows(), frame.NumColumns())

	analysisAgent := agent.New(llmClient, frame, dict)
	suggester := suggest.NewSuggester(llmClient, frame.Context(dict))

	processor := agent.NewTaskProcessor(db, queue, analysisAgent)
	go processor.Start()
	defer processor.Stop()

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	apiHandler := api.NewBackendService(db, queue, analysisAgent, frame, suggester)
	apiHandler.AddRoutes(r)

	manager := chat.NewChatSessionManager(db, analysisAgent, cfg.Model, cfg.APIKey, cfg.BaseURL)
	chatHandler := api.NewChatService(db, manager)
	chatHandler.AddRoutes(r)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

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

	log.Printf("Server listening on port %d", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on port %d: %v", cfg.Port, err)
	}

	log.Println("Server stopped.")
}
