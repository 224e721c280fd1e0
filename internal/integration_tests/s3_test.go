//go:build integration
// +build integration

package integrationtests

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"analytics-backend/internal/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	datasetBucket = "test-datasets"
	datasetKey    = "nyc_311.csv"
	datasetBody   = "Unique Key,Complaint Type,Borough\n1,Noise - Residential,BROOKLYN\n2,Illegal Parking,QUEENS\n"
)

func uploadDataset(t *testing.T, ctx context.Context, endpoint string) {
	t.Helper()

	resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) { // nolint:staticcheck
		return aws.Endpoint{URL: endpoint, HostnameImmutable: true}, nil // nolint:staticcheck
	})

	awsCfg, err := aws_config.LoadDefaultConfig(ctx,
		aws_config.WithRegion("us-east-1"),
		aws_config.WithEndpointResolverWithOptions(resolver), // nolint:staticcheck
		aws_config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(minioUsername, minioPassword, "")),
	)
	require.NoError(t, err)

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) { o.UsePathStyle = true })

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(datasetBucket)})
	require.NoError(t, err)

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(datasetBucket),
		Key:    aws.String(datasetKey),
		Body:   strings.NewReader(datasetBody),
	})
	require.NoError(t, err)
}

func TestS3DatasetFetch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	endpoint := setupMinioContainer(t, ctx)
	uploadDataset(t, ctx, endpoint)

	provider, err := storage.NewS3Provider(&storage.S3ProviderConfig{
		S3EndpointURL:     endpoint,
		S3AccessKeyID:     minioUsername,
		S3SecretAccessKey: minioPassword,
		S3Region:          "us-east-1",
		Bucket:            datasetBucket,
		Key:               datasetKey,
		LocalDir:          t.TempDir(),
	})
	require.NoError(t, err)

	path, err := provider.Fetch(ctx)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, datasetBody, string(data))

	// A second fetch serves the cached copy without touching the bucket.
	require.NoError(t, os.WriteFile(path, []byte("cached"), os.ModePerm))
	path2, err := provider.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, path, path2)

	data, err = os.ReadFile(path2)
	require.NoError(t, err)
	assert.Equal(t, "cached", string(data))
}

func TestS3DatasetFetchMissingKey(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	endpoint := setupMinioContainer(t, ctx)
	uploadDataset(t, ctx, endpoint)

	localDir := t.TempDir()
	provider, err := storage.NewS3Provider(&storage.S3ProviderConfig{
		S3EndpointURL:     endpoint,
		S3AccessKeyID:     minioUsername,
		S3SecretAccessKey: minioPassword,
		S3Region:          "us-east-1",
		Bucket:            datasetBucket,
		Key:               "missing.csv",
		LocalDir:          localDir,
	})
	require.NoError(t, err)

	_, err = provider.Fetch(ctx)
	require.Error(t, err)

	// No partial file is left behind.
	entries, err := os.ReadDir(localDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
