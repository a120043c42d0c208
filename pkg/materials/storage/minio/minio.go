package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tendant/simple-portal/pkg/materials"
)

const (
	backendName = "minio"

	// defaultPartSize bounds the memory a streaming upload of unknown length
	// holds at once.
	defaultPartSize uint64 = 16 << 20
)

// Config options for the MinIO backend
type Config struct {
	Endpoint          string // host:port of the MinIO server
	AccessKeyID       string
	SecretAccessKey   string
	UseSSL            bool
	Region            string // Signing region (default: us-east-1)
	Bucket            string
	Prefix            string        // Key prefix under which categories live
	PresignExpiry     time.Duration // Lifetime of view/download links (default: 1h)
	PartSize          uint64        // Multipart part size (default: 16 MiB)
	RedirectDownloads bool          // Open returns a presigned redirect instead of a stream
	CreateBucket      bool          // Create the bucket on start-up when missing
}

// Backend is a MinIO implementation of the materials.Store interface
type Backend struct {
	client *minio.Client
	config Config
}

// New creates a MinIO-backed store
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.PresignExpiry == 0 {
		config.PresignExpiry = time.Hour
	}
	if config.PartSize == 0 {
		config.PartSize = defaultPartSize
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	if config.CreateBucket {
		exists, err := client.BucketExists(ctx, config.Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to check bucket existence: %w", err)
		}
		if !exists {
			if err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{}); err != nil {
				return nil, fmt.Errorf("failed to create bucket: %w", err)
			}
		}
	}

	return &Backend{client: client, config: config}, nil
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound", "NoSuchObject":
		return true
	}
	return false
}

func (b *Backend) key(category materials.Category, name string) string {
	return materials.ObjectKey(b.config.Prefix, category, name)
}

func (b *Backend) storageErr(key, op string, err error) error {
	return materials.NewStorageError(backendName, key, op, err)
}

// Put streams r as a multipart upload of unknown length; MinIO discards the
// parts if r fails before completion.
func (b *Backend) Put(ctx context.Context, category materials.Category, name, contentType string, r io.Reader) (*materials.MaterialItem, error) {
	if err := materials.ValidateName(name); err != nil {
		return nil, err
	}
	key := b.key(category, name)
	_, err := b.client.PutObject(ctx, b.config.Bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    b.config.PartSize,
	})
	if err != nil {
		return nil, b.storageErr(key, "put", err)
	}
	return b.stat(ctx, category, name)
}

func (b *Backend) stat(ctx context.Context, category materials.Category, name string) (*materials.MaterialItem, error) {
	key := b.key(category, name)
	info, err := b.client.StatObject(ctx, b.config.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, materials.ErrNotFound
		}
		return nil, b.storageErr(key, "stat", err)
	}
	return b.item(ctx, category, name, info)
}

func (b *Backend) item(ctx context.Context, category materials.Category, name string, info minio.ObjectInfo) (*materials.MaterialItem, error) {
	item := &materials.MaterialItem{
		Category:    category,
		Name:        name,
		Size:        info.Size,
		ContentType: info.ContentType,
		Locator:     info.Key,
		UpdatedAt:   info.LastModified,
	}
	if item.ContentType == "" {
		item.ContentType = materials.ContentTypeByName(name)
	}

	view, err := b.presign(ctx, item.Locator, materials.InlineDisposition(name))
	if err != nil {
		return nil, err
	}
	download, err := b.presign(ctx, item.Locator, materials.AttachmentDisposition(name))
	if err != nil {
		return nil, err
	}
	item.ViewURL, item.DownloadURL = view, download
	return item, nil
}

func (b *Backend) presign(ctx context.Context, key, disposition string) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", disposition)
	u, err := b.client.PresignedGetObject(ctx, b.config.Bucket, key, b.config.PresignExpiry, params)
	if err != nil {
		return "", b.storageErr(key, "presign", err)
	}
	return u.String(), nil
}

func (b *Backend) List(ctx context.Context, category materials.Category) ([]*materials.MaterialItem, error) {
	prefix := materials.CategoryPrefix(b.config.Prefix, category)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	items := []*materials.MaterialItem{}
	for info := range b.client.ListObjects(ctx, b.config.Bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if info.Err != nil {
			return nil, b.storageErr(prefix, "list", info.Err)
		}
		name := strings.TrimPrefix(info.Key, prefix)
		if materials.ValidateName(name) != nil {
			continue
		}
		if info.ContentType == "" {
			info.ContentType = materials.ContentTypeByName(name)
		}
		item, err := b.item(ctx, category, name, info)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Rename is a server-side copy followed by a delete of the source.
func (b *Backend) Rename(ctx context.Context, category materials.Category, oldName, newName string) (*materials.MaterialItem, error) {
	if err := materials.ValidateName(oldName); err != nil {
		return nil, err
	}
	if err := materials.ValidateName(newName); err != nil {
		return nil, err
	}
	if _, err := b.stat(ctx, category, oldName); err != nil {
		return nil, err
	}
	if _, err := b.stat(ctx, category, newName); err == nil {
		return nil, materials.ErrAlreadyExists
	} else if !errors.Is(err, materials.ErrNotFound) {
		return nil, err
	}

	oldKey, newKey := b.key(category, oldName), b.key(category, newName)
	_, err := b.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: b.config.Bucket, Object: newKey},
		minio.CopySrcOptions{Bucket: b.config.Bucket, Object: oldKey},
	)
	if err != nil {
		return nil, b.storageErr(oldKey, "rename", err)
	}
	if err := b.client.RemoveObject(ctx, b.config.Bucket, oldKey, minio.RemoveObjectOptions{}); err != nil {
		return nil, b.storageErr(oldKey, "rename", err)
	}
	return b.stat(ctx, category, newName)
}

func (b *Backend) Delete(ctx context.Context, category materials.Category, name string) error {
	if err := materials.ValidateName(name); err != nil {
		return err
	}
	key := b.key(category, name)
	if _, err := b.client.StatObject(ctx, b.config.Bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return materials.ErrNotFound
		}
		return b.storageErr(key, "delete", err)
	}
	if err := b.client.RemoveObject(ctx, b.config.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return b.storageErr(key, "delete", err)
	}
	return nil
}

func (b *Backend) Open(ctx context.Context, category materials.Category, name string) (*materials.Download, error) {
	if err := materials.ValidateName(name); err != nil {
		return nil, err
	}
	key := b.key(category, name)

	if b.config.RedirectDownloads {
		item, err := b.stat(ctx, category, name)
		if err != nil {
			return nil, err
		}
		return &materials.Download{
			Name:        name,
			ContentType: item.ContentType,
			Size:        item.Size,
			ModTime:     item.UpdatedAt,
			RedirectURL: item.DownloadURL,
		}, nil
	}

	obj, err := b.client.GetObject(ctx, b.config.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, b.storageErr(key, "open", err)
	}
	// GetObject is lazy; Stat surfaces a missing key.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if isNotFound(err) {
			return nil, materials.ErrNotFound
		}
		return nil, b.storageErr(key, "open", err)
	}
	return &materials.Download{
		Name:        name,
		ContentType: info.ContentType,
		Size:        info.Size,
		ModTime:     info.LastModified,
		Body:        obj,
	}, nil
}
