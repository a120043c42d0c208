package materials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// DefaultMaxUploadSize is the upload ceiling used when none is configured.
const DefaultMaxUploadSize int64 = 100 << 20

// service implements the Service interface
type service struct {
	store         Store
	policies      Policies
	maxUploadSize int64
	eventSink     EventSink
	logger        *slog.Logger
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithStore sets the storage backend
func WithStore(store Store) Option {
	return func(s *service) {
		s.store = store
	}
}

// WithPolicies replaces the category policy table
func WithPolicies(policies Policies) Option {
	return func(s *service) {
		s.policies = policies
	}
}

// WithMaxUploadSize sets the upload ceiling in bytes
func WithMaxUploadSize(n int64) Option {
	return func(s *service) {
		s.maxUploadSize = n
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger used for non-fatal failures
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		policies:      DefaultPolicies(),
		maxUploadSize: DefaultMaxUploadSize,
		eventSink:     NewNoopEventSink(),
		logger:        slog.Default(),
	}

	for _, option := range options {
		option(s)
	}

	if s.store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if s.maxUploadSize <= 0 {
		return nil, fmt.Errorf("max upload size must be positive, got %d", s.maxUploadSize)
	}
	for _, c := range Categories {
		if _, ok := s.policies[c]; !ok {
			return nil, fmt.Errorf("missing policy for category %s", c)
		}
	}

	return s, nil
}

func (s *service) ValidateCategory(label string) (Category, error) {
	return s.policies.Resolve(label)
}

func (s *service) CategoryLabel(category Category) string {
	if p, ok := s.policies[category]; ok && p.Label != "" {
		return p.Label
	}
	return string(category)
}

func (s *service) AcceptedContentTypes(category Category) []string {
	p, ok := s.policies[category]
	if !ok {
		return nil
	}
	return sortedCopy(p.ContentTypes)
}

func (s *service) MaxUploadSize() int64 {
	return s.maxUploadSize
}

// ReceiveUpload runs every check that can fail without reading the body
// before the store sees a single byte.
func (s *service) ReceiveUpload(ctx context.Context, req UploadRequest) (*MaterialItem, error) {
	category, err := s.ValidateCategory(req.Category)
	if err != nil {
		return nil, err
	}
	if err := ValidateName(req.Filename); err != nil {
		return nil, err
	}
	if !s.policies[category].Accepts(req.ContentType) {
		return nil, fmt.Errorf("%w: %q is not accepted for %s", ErrUnsupportedType, req.ContentType, category)
	}
	if req.Size > s.maxUploadSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, req.Size, s.maxUploadSize)
	}
	if req.Body == nil {
		return nil, errors.New("upload body is required")
	}

	body := &limitedReader{r: req.Body, remaining: s.maxUploadSize}
	item, err := s.store.Put(ctx, category, req.Filename, NormalizeContentType(req.ContentType), body)
	if err != nil {
		if body.exceeded {
			return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrPayloadTooLarge, s.maxUploadSize)
		}
		return nil, s.wrap(category, req.Filename, "upload", err)
	}

	if err := s.eventSink.MaterialUploaded(ctx, item); err != nil {
		s.logger.Warn("Failed to publish upload event", "category", category, "name", item.Name, "error", err)
	}
	return item, nil
}

func (s *service) ListCategory(ctx context.Context, label string) ([]*MaterialItem, error) {
	category, err := s.ValidateCategory(label)
	if err != nil {
		return nil, err
	}
	items, err := s.store.List(ctx, category)
	if err != nil {
		return nil, s.wrap(category, "", "list", err)
	}
	if items == nil {
		items = []*MaterialItem{}
	}
	return items, nil
}

func (s *service) RenameItem(ctx context.Context, label, oldName, newName string) (*MaterialItem, error) {
	category, err := s.ValidateCategory(label)
	if err != nil {
		return nil, err
	}
	if err := ValidateName(oldName); err != nil {
		return nil, err
	}
	if err := ValidateName(newName); err != nil {
		return nil, err
	}
	item, err := s.store.Rename(ctx, category, oldName, newName)
	if err != nil {
		return nil, s.wrap(category, oldName, "rename", err)
	}

	if err := s.eventSink.MaterialRenamed(ctx, oldName, item); err != nil {
		s.logger.Warn("Failed to publish rename event", "category", category, "name", item.Name, "error", err)
	}
	return item, nil
}

func (s *service) DeleteItem(ctx context.Context, label, name string) error {
	category, err := s.ValidateCategory(label)
	if err != nil {
		return err
	}
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, category, name); err != nil {
		return s.wrap(category, name, "delete", err)
	}

	if err := s.eventSink.MaterialDeleted(ctx, category, name); err != nil {
		s.logger.Warn("Failed to publish delete event", "category", category, "name", name, "error", err)
	}
	return nil
}

func (s *service) ResolveDownload(ctx context.Context, label, name string) (*Download, error) {
	category, err := s.ValidateCategory(label)
	if err != nil {
		return nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	dl, err := s.store.Open(ctx, category, name)
	if err != nil {
		return nil, s.wrap(category, name, "download", err)
	}
	return dl, nil
}

// wrap attaches operation context; anything that is not a domain sentinel
// is reported as a storage failure.
func (s *service) wrap(category Category, name, op string, err error) error {
	return &MaterialError{
		Category: category,
		Name:     name,
		Op:       op,
		Err:      NewStorageError("store", ObjectKey("", category, name), op, err),
	}
}

// limitedReader fails with ErrPayloadTooLarge as soon as more than
// remaining bytes have been read.
type limitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.exceeded {
		return 0, ErrPayloadTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)
	if int64(n) > l.remaining {
		l.exceeded = true
		return int(l.remaining), ErrPayloadTooLarge
	}
	l.remaining -= int64(n)
	return n, err
}
