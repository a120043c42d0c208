package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/tendant/simple-portal/pkg/materials"
)

const backendName = "memory"

type object struct {
	data        []byte
	contentType string
	updatedAt   time.Time
}

// Backend is an in-memory implementation of the materials.Store interface
type Backend struct {
	mu      sync.RWMutex
	objects map[materials.Category]map[string]*object
	links   materials.LinkBuilder
}

// New creates a new in-memory storage backend. A nil links builder yields
// host-relative portal links.
func New(links materials.LinkBuilder) *Backend {
	if links == nil {
		links = materials.PathLinks{}
	}
	return &Backend{
		objects: make(map[materials.Category]map[string]*object),
		links:   links,
	}
}

// Put copies the reader into memory and registers the item once the copy
// completes, so a failed read leaves any previous version untouched.
func (b *Backend) Put(ctx context.Context, category materials.Category, name, contentType string, r io.Reader) (*materials.MaterialItem, error) {
	if err := materials.ValidateName(name); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return nil, materials.NewStorageError(backendName, materials.ObjectKey("", category, name), "put", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, materials.NewStorageError(backendName, materials.ObjectKey("", category, name), "put", err)
	}

	obj := &object{data: buf.Bytes(), contentType: contentType, updatedAt: time.Now().UTC()}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects[category] == nil {
		b.objects[category] = make(map[string]*object)
	}
	b.objects[category][name] = obj
	return b.item(category, name, obj), nil
}

func (b *Backend) List(ctx context.Context, category materials.Category) ([]*materials.MaterialItem, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.objects[category]))
	for name := range b.objects[category] {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]*materials.MaterialItem, 0, len(names))
	for _, name := range names {
		items = append(items, b.item(category, name, b.objects[category][name]))
	}
	return items, nil
}

func (b *Backend) Rename(ctx context.Context, category materials.Category, oldName, newName string) (*materials.MaterialItem, error) {
	if err := materials.ValidateName(oldName); err != nil {
		return nil, err
	}
	if err := materials.ValidateName(newName); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	obj, ok := b.objects[category][oldName]
	if !ok {
		return nil, materials.ErrNotFound
	}
	if _, taken := b.objects[category][newName]; taken {
		return nil, materials.ErrAlreadyExists
	}
	delete(b.objects[category], oldName)
	b.objects[category][newName] = obj
	return b.item(category, newName, obj), nil
}

func (b *Backend) Delete(ctx context.Context, category materials.Category, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.objects[category][name]; !ok {
		return materials.ErrNotFound
	}
	delete(b.objects[category], name)
	return nil
}

func (b *Backend) Open(ctx context.Context, category materials.Category, name string) (*materials.Download, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, ok := b.objects[category][name]
	if !ok {
		return nil, materials.ErrNotFound
	}
	return &materials.Download{
		Name:        name,
		ContentType: obj.contentType,
		Size:        int64(len(obj.data)),
		ModTime:     obj.updatedAt,
		Body:        reader{bytes.NewReader(obj.data)},
	}, nil
}

func (b *Backend) item(category materials.Category, name string, obj *object) *materials.MaterialItem {
	view, download := b.links.Links(category, name)
	return &materials.MaterialItem{
		Category:    category,
		Name:        name,
		Size:        int64(len(obj.data)),
		ContentType: obj.contentType,
		Locator:     materials.ObjectKey("", category, name),
		ViewURL:     view,
		DownloadURL: download,
		UpdatedAt:   obj.updatedAt,
	}
}

// reader lets the HTTP layer seek for range requests.
type reader struct {
	*bytes.Reader
}

func (reader) Close() error { return nil }
