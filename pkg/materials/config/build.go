package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-portal/pkg/materials"
	"github.com/tendant/simple-portal/pkg/materials/auth"
	"github.com/tendant/simple-portal/pkg/materials/events"
	"github.com/tendant/simple-portal/pkg/materials/presigned"
	fsstorage "github.com/tendant/simple-portal/pkg/materials/storage/fs"
	memorystorage "github.com/tendant/simple-portal/pkg/materials/storage/memory"
	miniostorage "github.com/tendant/simple-portal/pkg/materials/storage/minio"
	s3storage "github.com/tendant/simple-portal/pkg/materials/storage/s3"
)

// LinkSigner returns the signer for portal-served links; it is disabled
// when no link secret is configured.
func (c *ServerConfig) LinkSigner() *presigned.Signer {
	opts := []presigned.Option{presigned.WithSecretKey(c.LinkSecret)}
	if c.LinkTTL > 0 {
		opts = append(opts, presigned.WithDefaultExpiration(c.LinkTTL))
	}
	return presigned.New(opts...)
}

// BuildStore creates the storage backend selected by STORAGE_URL.
func (c *ServerConfig) BuildStore(ctx context.Context, signer *presigned.Signer) (materials.Store, error) {
	spec, err := ParseStorageURL(c.StorageURL)
	if err != nil {
		return nil, err
	}
	links := presigned.Links(signer, c.PublicBaseURL)

	switch spec.Kind {
	case StorageMemory:
		return memorystorage.New(links), nil

	case StorageFS:
		b, err := fsstorage.New(fsstorage.Config{BaseDir: spec.Path, Links: links})
		if err != nil {
			return nil, fmt.Errorf("failed to build fs storage: %w", err)
		}
		return b, nil

	case StorageS3:
		region := spec.Region
		if region == "" {
			region = c.S3.Region
		}
		b, err := s3storage.New(s3storage.Config{
			Region:                 region,
			Bucket:                 spec.Bucket,
			Prefix:                 spec.Prefix,
			AccessKeyID:            c.S3.AccessKeyID,
			SecretAccessKey:        c.S3.SecretAccessKey,
			Endpoint:               spec.Endpoint,
			UsePathStyle:           spec.PathStyle,
			PresignDuration:        c.S3.PresignDuration,
			PublicBaseURL:          c.S3.PublicBaseURL,
			RedirectDownloads:      c.RedirectDownloads,
			EnableSSE:              c.S3.EnableSSE,
			SSEAlgorithm:           c.S3.SSEAlgorithm,
			SSEKMSKeyID:            c.S3.SSEKMSKeyID,
			CreateBucketIfNotExist: c.S3.CreateBucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build s3 storage: %w", err)
		}
		return b, nil

	case StorageMinIO:
		b, err := miniostorage.New(ctx, miniostorage.Config{
			Endpoint:          spec.Endpoint,
			AccessKeyID:       c.MinIO.AccessKeyID,
			SecretAccessKey:   c.MinIO.SecretAccessKey,
			UseSSL:            spec.Secure,
			Region:            spec.Region,
			Bucket:            spec.Bucket,
			Prefix:            spec.Prefix,
			PresignExpiry:     time.Duration(c.S3.PresignDuration) * time.Second,
			RedirectDownloads: c.RedirectDownloads,
			CreateBucket:      c.MinIO.CreateBucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build minio storage: %w", err)
		}
		return b, nil
	}
	return nil, fmt.Errorf("unsupported storage backend type: %s", spec.Kind)
}

// BuildAuthenticator returns the postgres authenticator when DATABASE_URL
// is set, otherwise a static table built from USERS. The returned cleanup
// releases the database pool.
func (c *ServerConfig) BuildAuthenticator(ctx context.Context) (materials.Authenticator, func(), error) {
	if c.DatabaseURL != "" {
		pool, err := NewDBPool(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		pg := auth.NewPostgresWithPool(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return pg, pool.Close, nil
	}

	users, err := auth.ParseUsers(c.Users)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid USERS: %w", err)
	}
	static, err := auth.NewStatic(users)
	if err != nil {
		return nil, nil, err
	}
	return static, func() {}, nil
}

// NewDBPool connects to postgres and verifies the connection.
func NewDBPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// BuildTokens creates the session token issuer. Without a configured
// secret a random one is generated, so tokens do not survive a restart.
func (c *ServerConfig) BuildTokens() *auth.Tokens {
	secret := c.JWTSecret
	if secret == "" {
		slog.Warn("JWT_SECRET not set, using a random secret")
		secret = uuid.NewString() + uuid.NewString()
	}
	return auth.NewTokens(secret, c.TokenTTL)
}

// BuildEventSink combines the enabled sinks. The returned cleanup flushes
// the Kafka producer.
func (c *ServerConfig) BuildEventSink(logger *slog.Logger) (materials.EventSink, func(), error) {
	var sinks events.Multi
	cleanup := func() {}

	if c.EnableEventLogging {
		sinks = append(sinks, events.NewLogger(logger))
	}
	if c.EnableMetrics {
		m, err := events.NewMetrics(nil)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, m)
	}
	if len(c.KafkaBrokers) > 0 {
		k := events.NewKafka(c.KafkaBrokers, c.KafkaTopic)
		sinks = append(sinks, k)
		cleanup = func() {
			if err := k.Close(); err != nil {
				slog.Error("failed to flush kafka producer", "err", err)
			}
		}
	}

	if len(sinks) == 0 {
		return materials.NewNoopEventSink(), cleanup, nil
	}
	return sinks, cleanup, nil
}

// BuildService creates a Service over the configured store and sinks.
func (c *ServerConfig) BuildService(store materials.Store, sink materials.EventSink, logger *slog.Logger) (materials.Service, error) {
	return materials.New(
		materials.WithStore(store),
		materials.WithMaxUploadSize(c.MaxUploadSize),
		materials.WithEventSink(sink),
		materials.WithLogger(logger),
	)
}
