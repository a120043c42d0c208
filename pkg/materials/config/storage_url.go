package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Storage backend kinds selectable through STORAGE_URL.
const (
	StorageMemory = "memory"
	StorageFS     = "fs"
	StorageS3     = "s3"
	StorageMinIO  = "minio"
)

// StorageSpec is a parsed STORAGE_URL.
type StorageSpec struct {
	Kind string

	// fs
	Path string

	// s3 and minio
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // s3: custom endpoint URL; minio: host:port
	PathStyle bool
	Secure    bool
}

// ParseStorageURL parses one of
//
//	memory://
//	file:///path/to/data
//	s3://bucket?region=us-east-1&endpoint=http://localhost:9000&prefix=uploads&path_style=true
//	minio://host:9000/bucket?secure=false&prefix=uploads
func ParseStorageURL(raw string) (StorageSpec, error) {
	if raw == "" || raw == "memory" || raw == "memory://" {
		return StorageSpec{Kind: StorageMemory}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return StorageSpec{}, fmt.Errorf("invalid STORAGE_URL %q: %w", raw, err)
	}
	q := u.Query()

	switch u.Scheme {
	case "file":
		path := u.Path
		if u.Host != "" && u.Host != "localhost" {
			// file://relative/dir
			path = u.Host + u.Path
		}
		if path == "" {
			return StorageSpec{}, fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
		}
		return StorageSpec{Kind: StorageFS, Path: path}, nil

	case "s3":
		if u.Host == "" {
			return StorageSpec{}, fmt.Errorf("S3 bucket name cannot be empty in STORAGE_URL")
		}
		pathStyle, err := parseBool(q, "path_style", false)
		if err != nil {
			return StorageSpec{}, err
		}
		return StorageSpec{
			Kind:      StorageS3,
			Bucket:    u.Host,
			Prefix:    strings.Trim(q.Get("prefix"), "/"),
			Region:    q.Get("region"),
			Endpoint:  q.Get("endpoint"),
			PathStyle: pathStyle,
		}, nil

	case "minio":
		bucket := strings.Trim(u.Path, "/")
		if u.Host == "" || bucket == "" {
			return StorageSpec{}, fmt.Errorf("minio STORAGE_URL needs host and bucket, got %q", raw)
		}
		secure, err := parseBool(q, "secure", false)
		if err != nil {
			return StorageSpec{}, err
		}
		return StorageSpec{
			Kind:     StorageMinIO,
			Endpoint: u.Host,
			Bucket:   bucket,
			Prefix:   strings.Trim(q.Get("prefix"), "/"),
			Region:   q.Get("region"),
			Secure:   secure,
		}, nil
	}

	return StorageSpec{}, fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', 's3://...' or 'minio://...')", raw)
}

func parseBool(q url.Values, key string, def bool) (bool, error) {
	raw := q.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid boolean for STORAGE_URL %s: %w", key, err)
	}
	return v, nil
}
