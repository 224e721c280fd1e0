package main

import (
	"context"
	"log"

	"analytics-backend/cmd"
	"analytics-backend/internal/agent"
	"analytics-backend/internal/database"
	"analytics-backend/internal/messaging"

	"github.com/caarlos0/env/v11"
)

type WorkerConfig struct {
	cmd.DatasetSettings
	cmd.LLMSettings

	DatabaseURL string `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL string `env:"RABBITMQ_URL,notEmpty,required"`
}

func main() {
	log.Println("Starting Worker Process...")

	cmd.LoadEnvFile()

	var cfg WorkerConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	frame, dict, err := cmd.LoadDataset(context.Background(), cfg.DatasetSettings)
	if err != nil {
		log.Fatalf("Failed to load dataset: %v", err)
	}
	log.Printf("Dataset loaded: %d records, %d columns", frame.NumRows(), frame.NumColumns())

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	llmClient := cmd.NewLLMClient(cfg.LLMSettings)
	analysisAgent := agent.New(llmClient, frame, dict)

	processor := agent.NewTaskProcessor(db, receiver, analysisAgent)
	defer processor.Stop()

	log.Println("Worker started. Waiting for tasks. Press Ctrl+C to exit.")
	processor.Start()
}
