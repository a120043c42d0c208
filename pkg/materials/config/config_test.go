package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-portal/pkg/materials"
	"github.com/tendant/simple-portal/pkg/materials/events"
	fsstorage "github.com/tendant/simple-portal/pkg/materials/storage/fs"
	memorystorage "github.com/tendant/simple-portal/pkg/materials/storage/memory"
	s3storage "github.com/tendant/simple-portal/pkg/materials/storage/s3"
)

func TestParseStorageURL(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    StorageSpec
		wantErr bool
	}{
		{"empty defaults to memory", "", StorageSpec{Kind: StorageMemory}, false},
		{"memory keyword", "memory", StorageSpec{Kind: StorageMemory}, false},
		{"memory URL", "memory://", StorageSpec{Kind: StorageMemory}, false},
		{"absolute file path", "file:///var/lib/portal", StorageSpec{Kind: StorageFS, Path: "/var/lib/portal"}, false},
		{"relative file path", "file://./uploads", StorageSpec{Kind: StorageFS, Path: "./uploads"}, false},
		{"empty file path", "file://", StorageSpec{}, true},
		{"s3 bucket only", "s3://materials", StorageSpec{Kind: StorageS3, Bucket: "materials"}, false},
		{
			"s3 with params",
			"s3://materials?region=sa-east-1&endpoint=http://localhost:9000&prefix=/uploads/&path_style=true",
			StorageSpec{Kind: StorageS3, Bucket: "materials", Region: "sa-east-1", Endpoint: "http://localhost:9000", Prefix: "uploads", PathStyle: true},
			false,
		},
		{"s3 bad bool", "s3://materials?path_style=maybe", StorageSpec{}, true},
		{"s3 without bucket", "s3://", StorageSpec{}, true},
		{
			"minio",
			"minio://localhost:9000/materials?secure=true&prefix=portal",
			StorageSpec{Kind: StorageMinIO, Endpoint: "localhost:9000", Bucket: "materials", Prefix: "portal", Secure: true},
			false,
		},
		{"minio without bucket", "minio://localhost:9000", StorageSpec{}, true},
		{"unsupported scheme", "ftp://host/dir", StorageSpec{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStorageURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("USERS", "maria:teacher:secret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "memory://", cfg.StorageURL)
	assert.Equal(t, materials.DefaultMaxUploadSize, cfg.MaxUploadSize)
	assert.True(t, cfg.AuthRequired)
	assert.Equal(t, 12*time.Hour, cfg.TokenTTL)
	assert.Equal(t, time.Hour, cfg.LinkTTL)
	assert.Equal(t, "material-events", cfg.KafkaTopic)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("AUTH_REQUIRED", "false")
	t.Setenv("PORT", "9090")
	t.Setenv("STORAGE_URL", "file:///tmp/portal")
	t.Setenv("MAX_UPLOAD_SIZE", "1024")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.AuthRequired)
	assert.Equal(t, int64(1024), cfg.MaxUploadSize)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7070\"\nusers: maria:teacher:secret\nstorage_url: memory://\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "maria:teacher:secret", cfg.Users)
}

func TestValidate(t *testing.T) {
	valid := func() ServerConfig {
		return ServerConfig{Port: "8080", StorageURL: "memory://", MaxUploadSize: 1, Users: "a:teacher:b", AuthRequired: true, KafkaTopic: "t"}
	}

	tests := []struct {
		name   string
		mutate func(*ServerConfig)
		errMsg string
	}{
		{"missing port", func(c *ServerConfig) { c.Port = "" }, "port is required"},
		{"zero upload size", func(c *ServerConfig) { c.MaxUploadSize = 0 }, "max_upload_size"},
		{"bad storage", func(c *ServerConfig) { c.StorageURL = "ftp://x" }, "unsupported STORAGE_URL"},
		{"auth without users", func(c *ServerConfig) { c.Users = "" }, "users or database_url"},
		{"production without secret", func(c *ServerConfig) { c.Environment = "production" }, "jwt_secret"},
		{"kafka without topic", func(c *ServerConfig) { c.KafkaBrokers = []string{"k"}; c.KafkaTopic = "" }, "kafka_topic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			require.NoError(t, c.Validate())
			tt.mutate(&c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestBuildStore(t *testing.T) {
	ctx := context.Background()

	cfg := &ServerConfig{StorageURL: "memory://"}
	store, err := cfg.BuildStore(ctx, cfg.LinkSigner())
	require.NoError(t, err)
	assert.IsType(t, &memorystorage.Backend{}, store)

	cfg = &ServerConfig{StorageURL: "file://" + t.TempDir()}
	store, err = cfg.BuildStore(ctx, cfg.LinkSigner())
	require.NoError(t, err)
	assert.IsType(t, &fsstorage.Backend{}, store)

	cfg = &ServerConfig{
		StorageURL: "s3://materials?prefix=uploads",
		S3:         S3Config{AccessKeyID: "k", SecretAccessKey: "s", Region: "us-east-1"},
	}
	store, err = cfg.BuildStore(ctx, cfg.LinkSigner())
	require.NoError(t, err)
	assert.IsType(t, &s3storage.Backend{}, store)
}

func TestBuildStore_SignedLinks(t *testing.T) {
	cfg := &ServerConfig{StorageURL: "memory://", LinkSecret: "k", LinkTTL: time.Minute, PublicBaseURL: "https://portal.example.com"}
	store, err := cfg.BuildStore(context.Background(), cfg.LinkSigner())
	require.NoError(t, err)

	item, err := store.Put(context.Background(), materials.CategoryLessons, "a.pdf", materials.MimePDF, strings.NewReader("x"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(item.ViewURL, "https://portal.example.com/files/lessons/a.pdf?"), item.ViewURL)
	assert.Contains(t, item.DownloadURL, "signature=")
}

func TestBuildAuthenticator_Static(t *testing.T) {
	cfg := &ServerConfig{Users: "maria:professor:secret,joao:aluno:1234"}
	authn, cleanup, err := cfg.BuildAuthenticator(context.Background())
	require.NoError(t, err)
	defer cleanup()

	role, err := authn.Authenticate(context.Background(), "maria", "secret")
	require.NoError(t, err)
	assert.Equal(t, materials.RoleTeacher, role)

	_, _, err = (&ServerConfig{Users: "broken"}).BuildAuthenticator(context.Background())
	assert.Error(t, err)
}

func TestBuildEventSink(t *testing.T) {
	cfg := &ServerConfig{}
	sink, cleanup, err := cfg.BuildEventSink(slog.Default())
	require.NoError(t, err)
	cleanup()
	assert.IsType(t, &materials.NoopEventSink{}, sink)

	cfg = &ServerConfig{EnableEventLogging: true, EnableMetrics: true}
	sink, cleanup, err = cfg.BuildEventSink(slog.Default())
	require.NoError(t, err)
	cleanup()
	require.IsType(t, events.Multi{}, sink)
	assert.Len(t, sink.(events.Multi), 2)
}

func TestBuildService(t *testing.T) {
	cfg := &ServerConfig{MaxUploadSize: 42}
	svc, err := cfg.BuildService(memorystorage.New(nil), materials.NewNoopEventSink(), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, int64(42), svc.MaxUploadSize())
}

func TestBuildTokens(t *testing.T) {
	tokens := (&ServerConfig{TokenTTL: time.Hour}).BuildTokens()
	token, err := tokens.Issue("maria", materials.RoleTeacher)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestUsage(t *testing.T) {
	assert.Contains(t, Usage(), "STORAGE_URL")
}
