package cmd

import (
	"context"
	"flag"
	"log"

	"analytics-backend/internal/dataset"
	"analytics-backend/internal/llm"
	"analytics-backend/internal/storage"

	"github.com/joho/godotenv"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	err := godotenv.Load(configPath)
	if err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// DatasetSettings selects where the dataset CSV comes from. S3Bucket empty
// means the CSV is read straight from DatasetPath.
type DatasetSettings struct {
	DatasetPath string `env:"DATASET_PATH" envDefault:"data/nyc_311.csv"`
	MaxRows     int    `env:"DATASET_MAX_ROWS" envDefault:"0"`

	S3Bucket          string `env:"DATASET_S3_BUCKET" envDefault:""`
	S3Key             string `env:"DATASET_S3_KEY" envDefault:"nyc_311.csv"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL" envDefault:""`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" envDefault:""`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" envDefault:""`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	CacheDir          string `env:"DATASET_CACHE_DIR" envDefault:"data"`
}

// LLMSettings configures the DeepSeek-backed clients.
type LLMSettings struct {
	APIKey  string `env:"DEEPSEEK_API_KEY,notEmpty,required"`
	BaseURL string `env:"DEEPSEEK_BASE_URL" envDefault:"https://api.deepseek.com"`
	Model   string `env:"DEEPSEEK_MODEL" envDefault:"deepseek-chat"`
}

func NewDatasetProvider(settings DatasetSettings) (storage.DatasetProvider, error) {
	if settings.S3Bucket == "" {
		return storage.NewLocalProvider(settings.DatasetPath), nil
	}
	return storage.NewS3Provider(&storage.S3ProviderConfig{
		S3EndpointURL:     settings.S3EndpointURL,
		S3AccessKeyID:     settings.S3AccessKeyID,
		S3SecretAccessKey: settings.S3SecretAccessKey,
		S3Region:          settings.S3Region,
		Bucket:            settings.S3Bucket,
		Key:               settings.S3Key,
		LocalDir:          settings.CacheDir,
	})
}

// LoadDataset fetches and parses the dataset CSV.
func LoadDataset(ctx context.Context, settings DatasetSettings) (*dataset.Frame, *dataset.Dictionary, error) {
	provider, err := NewDatasetProvider(settings)
	if err != nil {
		return nil, nil, err
	}

	path, err := provider.Fetch(ctx)
	if err != nil {
		return nil, nil, err
	}

	frame, err := dataset.LoadCSVFile(path, dataset.LoadOptions{MaxRows: settings.MaxRows})
	if err != nil {
		return nil, nil, err
	}

	dict, err := dataset.LoadDictionary()
	if err != nil {
		return nil, nil, err
	}

	return frame, dict, nil
}

func NewLLMClient(settings LLMSettings) *llm.DeepSeek {
	return llm.NewDeepSeek(llm.Config{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
	})
}
