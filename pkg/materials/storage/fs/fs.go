package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/tendant/simple-portal/pkg/materials"
)

const (
	backendName = "fs"
	stagingDir  = ".staging"
	metaDir     = ".meta"
)

// Backend is a filesystem implementation of the materials.Store interface.
//
// Items live at <base>/<category>/<name> with the name used verbatim. Uploads
// are streamed into <base>/.staging and renamed into place once complete, and
// the declared content type is kept in <base>/.meta/<category>/<name>.
type Backend struct {
	mu      sync.RWMutex
	baseDir string
	links   materials.LinkBuilder
}

// Config options for the filesystem backend
type Config struct {
	BaseDir string                // Base directory for storing files
	Links   materials.LinkBuilder // Builds view/download links; host-relative when nil
}

// New creates a new filesystem storage backend
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	baseDir, err := filepath.Abs(config.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	for _, dir := range []string{baseDir, filepath.Join(baseDir, stagingDir), filepath.Join(baseDir, metaDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	links := config.Links
	if links == nil {
		links = materials.PathLinks{}
	}
	b := &Backend{baseDir: baseDir, links: links}
	b.sweepStaging()
	return b, nil
}

// sweepStaging removes uploads left behind by a crash.
func (b *Backend) sweepStaging() {
	dir := filepath.Join(b.baseDir, stagingDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			slog.Warn("Failed to remove stale staging file", "name", e.Name(), "error", err)
		}
	}
}

func (b *Backend) itemPath(category materials.Category, name string) string {
	return filepath.Join(b.baseDir, string(category), name)
}

func (b *Backend) metaPath(category materials.Category, name string) string {
	return filepath.Join(b.baseDir, metaDir, string(category), name)
}

func checkKey(category materials.Category, names ...string) error {
	if !category.Valid() {
		return materials.ErrUnknownCategory
	}
	for _, name := range names {
		if err := materials.ValidateName(name); err != nil {
			return err
		}
	}
	return nil
}

func storageErr(category materials.Category, name, op string, err error) error {
	return materials.NewStorageError(backendName, materials.ObjectKey("", category, name), op, err)
}

// Put streams r into a staging file and renames it into place.
func (b *Backend) Put(ctx context.Context, category materials.Category, name, contentType string, r io.Reader) (*materials.MaterialItem, error) {
	if err := checkKey(category, name); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(b.baseDir, string(category)), 0o755); err != nil {
		return nil, storageErr(category, name, "put", err)
	}
	if err := os.MkdirAll(filepath.Join(b.baseDir, metaDir, string(category)), 0o755); err != nil {
		return nil, storageErr(category, name, "put", err)
	}

	tmp := filepath.Join(b.baseDir, stagingDir, uuid.NewString())
	if err := writeFile(tmp, r); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return nil, storageErr(category, name, "put", err)
	}
	if err := ctx.Err(); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return nil, storageErr(category, name, "put", err)
	}
	metaTmp, err := b.stageMeta(contentType)
	if err != nil {
		os.Remove(tmp) //nolint:errcheck
		return nil, storageErr(category, name, "put", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// The content type record only changes once the data is in place.
	if err := os.Rename(tmp, b.itemPath(category, name)); err != nil {
		os.Remove(tmp) //nolint:errcheck
		if metaTmp != "" {
			os.Remove(metaTmp) //nolint:errcheck
		}
		return nil, storageErr(category, name, "put", err)
	}
	if err := b.commitMeta(category, name, metaTmp); err != nil {
		return nil, storageErr(category, name, "put", err)
	}
	return b.stat(category, name)
}

func writeFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return f.Close()
}

// stageMeta writes contentType to a staging file and returns its path, or
// "" when there is no content type to record.
func (b *Backend) stageMeta(contentType string) (string, error) {
	if contentType == "" {
		return "", nil
	}
	tmp := filepath.Join(b.baseDir, stagingDir, uuid.NewString())
	if err := os.WriteFile(tmp, []byte(contentType), 0o644); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return "", fmt.Errorf("failed to stage content type: %w", err)
	}
	return tmp, nil
}

func (b *Backend) commitMeta(category materials.Category, name, staged string) error {
	if staged == "" {
		err := os.Remove(b.metaPath(category, name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return os.Rename(staged, b.metaPath(category, name))
}

func (b *Backend) List(ctx context.Context, category materials.Category) ([]*materials.MaterialItem, error) {
	if !category.Valid() {
		return nil, materials.ErrUnknownCategory
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(b.baseDir, string(category)))
	if errors.Is(err, fs.ErrNotExist) {
		return []*materials.MaterialItem{}, nil
	}
	if err != nil {
		return nil, storageErr(category, "", "list", err)
	}

	items := make([]*materials.MaterialItem, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		item, err := b.stat(category, e.Name())
		if errors.Is(err, materials.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Rename refuses to replace an existing target. The existence check and the
// rename happen under the backend lock.
func (b *Backend) Rename(ctx context.Context, category materials.Category, oldName, newName string) (*materials.MaterialItem, error) {
	if err := checkKey(category, oldName, newName); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := os.Stat(b.itemPath(category, oldName)); errors.Is(err, fs.ErrNotExist) {
		return nil, materials.ErrNotFound
	} else if err != nil {
		return nil, storageErr(category, oldName, "rename", err)
	}
	if _, err := os.Lstat(b.itemPath(category, newName)); err == nil {
		return nil, materials.ErrAlreadyExists
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, storageErr(category, newName, "rename", err)
	}

	if err := os.Rename(b.itemPath(category, oldName), b.itemPath(category, newName)); err != nil {
		return nil, storageErr(category, oldName, "rename", err)
	}
	if err := os.Rename(b.metaPath(category, oldName), b.metaPath(category, newName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to move content type record", "category", category, "name", newName, "error", err)
	}
	return b.stat(category, newName)
}

func (b *Backend) Delete(ctx context.Context, category materials.Category, name string) error {
	if err := checkKey(category, name); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := os.Remove(b.itemPath(category, name)); errors.Is(err, fs.ErrNotExist) {
		return materials.ErrNotFound
	} else if err != nil {
		return storageErr(category, name, "delete", err)
	}
	if err := os.Remove(b.metaPath(category, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to remove content type record", "category", category, "name", name, "error", err)
	}
	return nil
}

func (b *Backend) Open(ctx context.Context, category materials.Category, name string) (*materials.Download, error) {
	if err := checkKey(category, name); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	f, err := os.Open(b.itemPath(category, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, materials.ErrNotFound
	} else if err != nil {
		return nil, storageErr(category, name, "open", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, storageErr(category, name, "open", err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, materials.ErrNotFound
	}

	return &materials.Download{
		Name:        name,
		ContentType: b.contentType(category, name),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Body:        f,
	}, nil
}

func (b *Backend) stat(category materials.Category, name string) (*materials.MaterialItem, error) {
	path := b.itemPath(category, name)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, materials.ErrNotFound
	} else if err != nil {
		return nil, storageErr(category, name, "stat", err)
	}

	view, download := b.links.Links(category, name)
	return &materials.MaterialItem{
		Category:    category,
		Name:        name,
		Size:        info.Size(),
		ContentType: b.contentType(category, name),
		Locator:     path,
		ViewURL:     view,
		DownloadURL: download,
		UpdatedAt:   info.ModTime().UTC(),
	}, nil
}

// contentType prefers the recorded upload type, then the extension, then
// sniffing the first bytes of the file.
func (b *Backend) contentType(category materials.Category, name string) string {
	if data, err := os.ReadFile(b.metaPath(category, name)); err == nil {
		if ct := strings.TrimSpace(string(data)); ct != "" {
			return ct
		}
	}
	if ct := materials.ContentTypeByName(name); ct != materials.MimeOctet {
		return ct
	}
	f, err := os.Open(b.itemPath(category, name))
	if err != nil {
		return materials.MimeOctet
	}
	defer f.Close()
	buffer := make([]byte, 512)
	n, _ := f.Read(buffer)
	if n == 0 {
		return materials.MimeOctet
	}
	return materials.NormalizeContentType(http.DetectContentType(buffer[:n]))
}
