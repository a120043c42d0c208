package s3

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-portal/pkg/materials"
	"github.com/tendant/simple-portal/pkg/materials/storagetest"
)

func TestS3Backend_BasicConfiguration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("Defaults", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", backend.config.Region)
		assert.Equal(t, time.Hour, backend.presignDuration)
	})

	t.Run("CustomPresignDuration", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "test-bucket",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
			PresignDuration: 7200,
		})
		require.NoError(t, err)
		assert.Equal(t, 7200*time.Second, backend.presignDuration)
	})
}

func TestS3Backend_Keys(t *testing.T) {
	backend, err := New(Config{Bucket: "b", Prefix: "uploads", AccessKeyID: "k", SecretAccessKey: "s"})
	require.NoError(t, err)

	assert.Equal(t, "uploads/lessons/aula 1.pdf", backend.key(materials.CategoryLessons, "aula 1.pdf"))
	assert.Equal(t, "b/uploads/lessons/aula%201.pdf", copySource("b", "uploads/lessons/aula 1.pdf"))
}

func TestS3Backend_PublicLinks(t *testing.T) {
	backend, err := New(Config{
		Bucket:          "b",
		AccessKeyID:     "k",
		SecretAccessKey: "s",
		PublicBaseURL:   "https://cdn.example.com/",
	})
	require.NoError(t, err)

	item := &materials.MaterialItem{Name: "a b.pdf", Locator: "lessons/a b.pdf"}
	require.NoError(t, backend.attachLinks(context.Background(), item))
	assert.Equal(t, "https://cdn.example.com/lessons/a%20b.pdf", item.ViewURL)
	assert.Equal(t, item.ViewURL, item.DownloadURL)
}

func TestS3Backend_PresignedLinks(t *testing.T) {
	backend, err := New(Config{
		Bucket:          "b",
		AccessKeyID:     "k",
		SecretAccessKey: "s",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	item := &materials.MaterialItem{Name: "a.pdf", Locator: "lessons/a.pdf"}
	require.NoError(t, backend.attachLinks(context.Background(), item))
	assert.True(t, strings.HasPrefix(item.ViewURL, "http://localhost:9000/b/lessons/a.pdf?"), item.ViewURL)
	assert.Contains(t, item.ViewURL, "X-Amz-Signature=")
	assert.Contains(t, item.DownloadURL, "attachment")
	assert.NotEqual(t, item.ViewURL, item.DownloadURL)
}

// TestS3Backend_Contract runs the store suite against a live bucket.
func TestS3Backend_Contract(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	endpoint := os.Getenv("AWS_S3_ENDPOINT")
	bucket := os.Getenv("AWS_S3_BUCKET")
	if endpoint == "" || bucket == "" {
		t.Skip("Skipping integration test: S3/MinIO environment variables not set")
	}

	storagetest.Run(t, func(t *testing.T) materials.Store {
		backend, err := New(Config{
			Bucket:                 bucket,
			Prefix:                 "test-" + uuid.NewString(),
			Endpoint:               endpoint,
			AccessKeyID:            os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey:        os.Getenv("AWS_SECRET_ACCESS_KEY"),
			UsePathStyle:           true,
			CreateBucketIfNotExist: true,
		})
		require.NoError(t, err)
		return backend
	})
}
