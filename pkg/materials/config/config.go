// Package config loads the portal configuration and assembles the service,
// storage backend, authenticator and event sinks it describes.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ServerConfig represents server configuration for the materials portal.
type ServerConfig struct {
	Port        string `yaml:"port" env:"PORT" env-default:"8080"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"development"` // development, production, testing
	StaticDir   string `yaml:"static_dir" env:"STATIC_DIR" env-default:"./public"`

	// Storage
	StorageURL        string `yaml:"storage_url" env:"STORAGE_URL" env-default:"memory://"`
	PublicBaseURL     string `yaml:"public_base_url" env:"PUBLIC_BASE_URL"` // prefix for portal-served links
	MaxUploadSize     int64  `yaml:"max_upload_size" env:"MAX_UPLOAD_SIZE" env-default:"104857600"`
	RedirectDownloads bool   `yaml:"redirect_downloads" env:"REDIRECT_DOWNLOADS" env-default:"false"`
	S3                S3Config
	MinIO             MinIOConfig

	// Signed links for portal-served files
	LinkSecret string        `yaml:"link_secret" env:"LINK_SECRET"`
	LinkTTL    time.Duration `yaml:"link_ttl" env:"LINK_TTL" env-default:"1h"`

	// Authentication
	AuthRequired bool          `yaml:"auth_required" env:"AUTH_REQUIRED" env-default:"true"`
	JWTSecret    string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL     time.Duration `yaml:"token_ttl" env:"TOKEN_TTL" env-default:"12h"`
	Users        string        `yaml:"users" env:"USERS"` // name:role:bcrypt-hash,...
	DatabaseURL  string        `yaml:"database_url" env:"DATABASE_URL"`

	// Events
	EnableEventLogging bool     `yaml:"enable_event_logging" env:"ENABLE_EVENT_LOGGING" env-default:"true"`
	EnableMetrics      bool     `yaml:"enable_metrics" env:"ENABLE_METRICS" env-default:"true"`
	KafkaBrokers       []string `yaml:"kafka_brokers" env:"KAFKA_BROKERS" env-separator:","`
	KafkaTopic         string   `yaml:"kafka_topic" env:"KAFKA_TOPIC" env-default:"material-events"`
}

// S3Config carries credentials and options that do not fit in STORAGE_URL.
type S3Config struct {
	AccessKeyID     string `yaml:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY"`
	Region          string `yaml:"region" env:"AWS_REGION" env-default:"us-east-1"`
	PublicBaseURL   string `yaml:"public_base_url" env:"S3_PUBLIC_BASE_URL"` // CDN in front of the bucket
	PresignDuration int    `yaml:"presign_duration" env:"S3_PRESIGN_DURATION" env-default:"3600"`
	EnableSSE       bool   `yaml:"enable_sse" env:"S3_ENABLE_SSE" env-default:"false"`
	SSEAlgorithm    string `yaml:"sse_algorithm" env:"S3_SSE_ALGORITHM" env-default:"AES256"`
	SSEKMSKeyID     string `yaml:"sse_kms_key_id" env:"S3_SSE_KMS_KEY_ID"`
	CreateBucket    bool   `yaml:"create_bucket" env:"S3_CREATE_BUCKET" env-default:"false"`
}

// MinIOConfig carries MinIO credentials.
type MinIOConfig struct {
	AccessKeyID     string `yaml:"access_key" env:"MINIO_ACCESS_KEY"`
	SecretAccessKey string `yaml:"secret_key" env:"MINIO_SECRET_KEY"`
	CreateBucket    bool   `yaml:"create_bucket" env:"MINIO_CREATE_BUCKET" env-default:"true"`
}

// Load reads configuration from the optional file at path (YAML or .env),
// then the environment, then validates it.
func Load(path string) (*ServerConfig, error) {
	var cfg ServerConfig
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Usage describes every environment variable the server reads.
func Usage() string {
	var cfg ServerConfig
	desc, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return err.Error()
	}
	return desc
}

// IsProduction reports whether the server runs in production.
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("max_upload_size must be positive, got %d", c.MaxUploadSize)
	}
	if _, err := ParseStorageURL(c.StorageURL); err != nil {
		return err
	}
	if c.AuthRequired && c.Users == "" && c.DatabaseURL == "" {
		return errors.New("users or database_url is required when auth_required is set")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return errors.New("jwt_secret is required in production")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("kafka_topic is required when kafka_brokers is set")
	}
	return nil
}
