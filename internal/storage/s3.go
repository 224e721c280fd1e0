package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type S3ProviderConfig struct {
	S3EndpointURL     string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string

	Bucket string
	Key    string

	// LocalDir is where the downloaded CSV is cached between restarts.
	LocalDir string
}

type S3Provider struct {
	client     *s3.Client
	downloader *manager.Downloader
	bucket     string
	key        string
	localDir   string
}

func NewS3Provider(cfg *S3ProviderConfig) (*S3Provider, error) {
	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) { // nolint:staticcheck
		if cfg.S3EndpointURL != "" {
			return aws.Endpoint{ // nolint:staticcheck
				PartitionID:       "aws",
				URL:               cfg.S3EndpointURL,
				SigningRegion:     cfg.S3Region,
				HostnameImmutable: true, // Important for MinIO
			}, nil
		}
		// fallback to default AWS endpoint resolution
		return aws.Endpoint{}, &aws.EndpointNotFoundError{} // nolint:staticcheck
	})

	opts := []func(*aws_config.LoadOptions) error{
		aws_config.WithRegion(cfg.S3Region),
		aws_config.WithEndpointResolverWithOptions(resolver), // nolint:staticcheck
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, aws_config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}

	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = true // Path-style addressing (needed for MinIO)
	})

	return &S3Provider{
		client:     client,
		downloader: manager.NewDownloader(client),
		bucket:     cfg.Bucket,
		key:        cfg.Key,
		localDir:   cfg.LocalDir,
	}, nil
}

func (p *S3Provider) Fetch(ctx context.Context) (string, error) {
	dest := filepath.Join(p.localDir, filepath.Base(p.key))
	if _, err := os.Stat(dest); err == nil {
		slog.Info("using cached dataset", "path", dest)
		return dest, nil
	}

	if err := os.MkdirAll(p.localDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create dataset dir %s: %w", p.localDir, err)
	}

	file, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create file %s: %w", dest, err)
	}
	defer file.Close()

	_, err = p.downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key),
	})
	if err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to download dataset from s3://%s/%s: %w", p.bucket, p.key, err)
	}
	slog.Info("dataset downloaded", "bucket", p.bucket, "key", p.key, "path", dest)

	return dest, nil
}
