package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/tendant/simple-portal/pkg/materials"
)

const backendName = "s3"

// Config options for the S3 backend
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	Prefix          string // Key prefix under which categories live (e.g. "uploads")
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)
	PresignDuration int    // Duration in seconds for presigned URLs (default: 3600)

	// PublicBaseURL, when set, is used for view/download links instead of
	// presigned URLs (for buckets fronted by a CDN).
	PublicBaseURL string

	// RedirectDownloads makes Open return a presigned redirect instead of
	// streaming the object through the portal.
	RedirectDownloads bool

	// Server-side encryption options
	EnableSSE    bool   // Enable server-side encryption
	SSEAlgorithm string // SSE algorithm (AES256 or aws:kms)
	SSEKMSKeyID  string // Optional KMS key ID for aws:kms algorithm

	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// Backend is an S3-compatible implementation of the materials.Store interface
type Backend struct {
	client          *s3.Client
	presignClient   *s3.PresignClient
	uploader        *manager.Uploader
	presignDuration time.Duration
	config          Config
}

// New creates a new S3-compatible storage backend
func New(config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.PresignDuration == 0 {
		config.PresignDuration = 3600
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}
	client := s3.NewFromConfig(awsCfg, s3Options...)

	backend := &Backend{
		client:          client,
		presignClient:   s3.NewPresignClient(client),
		uploader:        manager.NewUploader(client),
		presignDuration: time.Duration(config.PresignDuration) * time.Second,
		config:          config,
	}

	if config.CreateBucketIfNotExist {
		if err := backend.createBucketIfNotExists(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return backend, nil
}

func (b *Backend) createBucketIfNotExists(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.config.Bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) && !strings.Contains(err.Error(), "BadRequest") {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(b.config.Bucket)}
	if b.config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.config.Region),
		}
	}
	if _, err := b.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return err
	}
	return nil
}

// isNotFound covers the typed errors and the bare codes some S3-compatible
// servers return from HEAD requests.
func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) || errors.As(err, &noSuchBucket) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}

func (b *Backend) key(category materials.Category, name string) string {
	return materials.ObjectKey(b.config.Prefix, category, name)
}

func (b *Backend) storageErr(key, op string, err error) error {
	return materials.NewStorageError(backendName, key, op, err)
}

func (b *Backend) applySSE(input *s3.PutObjectInput) {
	if !b.config.EnableSSE {
		return
	}
	switch b.config.SSEAlgorithm {
	case "AES256":
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	case "aws:kms":
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		if b.config.SSEKMSKeyID != "" {
			input.SSEKMSKeyId = aws.String(b.config.SSEKMSKeyID)
		}
	}
}

// Put streams r through the multipart uploader, which holds at most a few
// parts in memory and aborts the upload if r fails.
func (b *Backend) Put(ctx context.Context, category materials.Category, name, contentType string, r io.Reader) (*materials.MaterialItem, error) {
	if err := materials.ValidateName(name); err != nil {
		return nil, err
	}
	key := b.key(category, name)
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	b.applySSE(input)

	if _, err := b.uploader.Upload(ctx, input); err != nil {
		return nil, b.storageErr(key, "put", err)
	}
	return b.head(ctx, category, name)
}

func (b *Backend) head(ctx context.Context, category materials.Category, name string) (*materials.MaterialItem, error) {
	key := b.key(category, name)
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, materials.ErrNotFound
		}
		return nil, b.storageErr(key, "head", err)
	}

	item := &materials.MaterialItem{
		Category:    category,
		Name:        name,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
		Locator:     key,
		UpdatedAt:   aws.ToTime(out.LastModified),
	}
	if item.ContentType == "" {
		item.ContentType = materials.ContentTypeByName(name)
	}
	if err := b.attachLinks(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (b *Backend) List(ctx context.Context, category materials.Category) ([]*materials.MaterialItem, error) {
	prefix := materials.CategoryPrefix(b.config.Prefix, category)
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(b.config.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	items := []*materials.MaterialItem{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, b.storageErr(prefix, "list", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if materials.ValidateName(name) != nil {
				continue
			}
			item := &materials.MaterialItem{
				Category:    category,
				Name:        name,
				Size:        aws.ToInt64(obj.Size),
				ContentType: materials.ContentTypeByName(name),
				Locator:     aws.ToString(obj.Key),
				UpdatedAt:   aws.ToTime(obj.LastModified),
			}
			if err := b.attachLinks(ctx, item); err != nil {
				return nil, err
			}
			items = append(items, item)
		}
	}
	return items, nil
}

// Rename copies the object to its new key and removes the old one. S3 has no
// conditional rename, so a concurrent writer to newName can still race the
// existence check.
func (b *Backend) Rename(ctx context.Context, category materials.Category, oldName, newName string) (*materials.MaterialItem, error) {
	if err := materials.ValidateName(oldName); err != nil {
		return nil, err
	}
	if err := materials.ValidateName(newName); err != nil {
		return nil, err
	}
	if _, err := b.head(ctx, category, oldName); err != nil {
		return nil, err
	}
	if _, err := b.head(ctx, category, newName); err == nil {
		return nil, materials.ErrAlreadyExists
	} else if !errors.Is(err, materials.ErrNotFound) {
		return nil, err
	}

	oldKey, newKey := b.key(category, oldName), b.key(category, newName)
	_, err := b.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(b.config.Bucket),
		Key:        aws.String(newKey),
		CopySource: aws.String(copySource(b.config.Bucket, oldKey)),
	})
	if err != nil {
		return nil, b.storageErr(oldKey, "rename", err)
	}
	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(oldKey),
	}); err != nil {
		return nil, b.storageErr(oldKey, "rename", err)
	}
	return b.head(ctx, category, newName)
}

// copySource escapes each key segment for the x-amz-copy-source header.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

// Delete checks for the object first; DeleteObject itself succeeds for
// missing keys.
func (b *Backend) Delete(ctx context.Context, category materials.Category, name string) error {
	if err := materials.ValidateName(name); err != nil {
		return err
	}
	key := b.key(category, name)
	if _, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		if isNotFound(err) {
			return materials.ErrNotFound
		}
		return b.storageErr(key, "delete", err)
	}
	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
	}); err != nil {
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
		item, err := b.head(ctx, category, name)
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

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, materials.ErrNotFound
		}
		return nil, b.storageErr(key, "open", err)
	}
	return &materials.Download{
		Name:        name,
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
		ModTime:     aws.ToTime(out.LastModified),
		Body:        out.Body,
	}, nil
}

func (b *Backend) attachLinks(ctx context.Context, item *materials.MaterialItem) error {
	if b.config.PublicBaseURL != "" {
		link := strings.TrimRight(b.config.PublicBaseURL, "/") + "/" + strings.TrimPrefix(copySource("", item.Locator), "/")
		item.ViewURL, item.DownloadURL = link, link
		return nil
	}

	view, err := b.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(b.config.Bucket),
		Key:                        aws.String(item.Locator),
		ResponseContentDisposition: aws.String("inline"),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = b.presignDuration
	})
	if err != nil {
		return b.storageErr(item.Locator, "presign", err)
	}
	download, err := b.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(b.config.Bucket),
		Key:                        aws.String(item.Locator),
		ResponseContentDisposition: aws.String(materials.AttachmentDisposition(item.Name)),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = b.presignDuration
	})
	if err != nil {
		return b.storageErr(item.Locator, "presign", err)
	}
	item.ViewURL, item.DownloadURL = view.URL, download.URL
	return nil
}
