// Package storagetest holds the behavioral suite every materials.Store
// backend must pass.
package storagetest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-portal/pkg/materials"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) materials.Store

var errBrokenReader = errors.New("connection reset")

// brokenReader yields some bytes and then fails, like a client that
// disconnects mid-upload.
type brokenReader struct {
	data []byte
	done bool
}

func (r *brokenReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, errBrokenReader
	}
	r.done = true
	return copy(p, r.data), nil
}

// Put is a test helper that uploads data and fails the test on error.
func Put(t *testing.T, store materials.Store, category materials.Category, name, contentType string, data []byte) *materials.MaterialItem {
	t.Helper()
	item, err := store.Put(context.Background(), category, name, contentType, bytes.NewReader(data))
	require.NoError(t, err)
	require.NotNil(t, item)
	return item
}

// ReadAll opens an item and returns its bytes.
func ReadAll(t *testing.T, store materials.Store, category materials.Category, name string) []byte {
	t.Helper()
	dl, err := store.Open(context.Background(), category, name)
	require.NoError(t, err)
	require.NotNil(t, dl.Body, "expected a streamed download")
	defer dl.Body.Close()
	data, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	return data
}

// Names lists a category and returns just the item names.
func Names(t *testing.T, store materials.Store, category materials.Category) []string {
	t.Helper()
	items, err := store.List(context.Background(), category)
	require.NoError(t, err)
	names := make([]string, 0, len(items))
	for _, item := range items {
		names = append(names, item.Name)
	}
	return names
}

// Run exercises the Store contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()
	lessons := materials.CategoryLessons

	t.Run("PutThenList", func(t *testing.T) {
		store := newStore(t)
		item := Put(t, store, lessons, "syllabus.pdf", materials.MimePDF, bytes.Repeat([]byte("a"), 1024))

		assert.Equal(t, "syllabus.pdf", item.Name)
		assert.Equal(t, lessons, item.Category)
		assert.Equal(t, int64(1024), item.Size)
		assert.NotEmpty(t, item.ViewURL)
		assert.NotEmpty(t, item.DownloadURL)
		assert.Equal(t, []string{"syllabus.pdf"}, Names(t, store, lessons))
	})

	t.Run("ListEmptyCategory", func(t *testing.T) {
		store := newStore(t)
		items, err := store.List(ctx, materials.CategoryAttachments)
		require.NoError(t, err)
		assert.NotNil(t, items)
		assert.Empty(t, items)
	})

	t.Run("CategoriesAreIsolated", func(t *testing.T) {
		store := newStore(t)
		Put(t, store, lessons, "notes.pdf", materials.MimePDF, []byte("lesson"))
		Put(t, store, materials.CategoryExercises, "notes.pdf", materials.MimePDF, []byte("exercise"))

		assert.Equal(t, []byte("lesson"), ReadAll(t, store, lessons, "notes.pdf"))
		assert.Equal(t, []byte("exercise"), ReadAll(t, store, materials.CategoryExercises, "notes.pdf"))
		assert.Empty(t, Names(t, store, materials.CategoryAttachments))
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		store := newStore(t)
		Put(t, store, lessons, "week1.pdf", materials.MimePDF, []byte("first"))
		item := Put(t, store, lessons, "week1.pdf", materials.MimePDF, []byte("second version"))

		assert.Equal(t, int64(len("second version")), item.Size)
		assert.Equal(t, []string{"week1.pdf"}, Names(t, store, lessons))
		assert.Equal(t, []byte("second version"), ReadAll(t, store, lessons, "week1.pdf"))
	})

	t.Run("PutRejectsUnsafeNames", func(t *testing.T) {
		store := newStore(t)
		for _, name := range []string{"", "..", "../escape.pdf", "a/b.pdf", `a\b.pdf`, ".hidden"} {
			_, err := store.Put(ctx, lessons, name, materials.MimePDF, strings.NewReader("x"))
			assert.ErrorIs(t, err, materials.ErrInvalidName, "name %q", name)
		}
		assert.Empty(t, Names(t, store, lessons))
	})

	t.Run("FailedPutLeavesNothingVisible", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Put(ctx, lessons, "partial.pdf", materials.MimePDF, &brokenReader{data: []byte("half")})
		require.Error(t, err)
		assert.Empty(t, Names(t, store, lessons))

		_, err = store.Open(ctx, lessons, "partial.pdf")
		assert.ErrorIs(t, err, materials.ErrNotFound)
	})

	t.Run("FailedOverwriteKeepsPreviousVersion", func(t *testing.T) {
		store := newStore(t)
		Put(t, store, lessons, "keep.pdf", materials.MimePDF, []byte("original"))
		_, err := store.Put(ctx, lessons, "keep.pdf", materials.MimePDF, &brokenReader{data: []byte("new")})
		require.Error(t, err)
		assert.Equal(t, []byte("original"), ReadAll(t, store, lessons, "keep.pdf"))
	})

	t.Run("RenameMovesBytes", func(t *testing.T) {
		store := newStore(t)
		data := []byte("course outline")
		Put(t, store, lessons, "syllabus.pdf", materials.MimePDF, data)
		before := ReadAll(t, store, lessons, "syllabus.pdf")

		item, err := store.Rename(ctx, lessons, "syllabus.pdf", "outline.pdf")
		require.NoError(t, err)
		assert.Equal(t, "outline.pdf", item.Name)
		assert.Equal(t, materials.MimePDF, item.ContentType)
		assert.Equal(t, int64(len(data)), item.Size)

		assert.Equal(t, []string{"outline.pdf"}, Names(t, store, lessons))
		assert.Equal(t, before, ReadAll(t, store, lessons, "outline.pdf"))
		_, err = store.Open(ctx, lessons, "syllabus.pdf")
		assert.ErrorIs(t, err, materials.ErrNotFound)
	})

	t.Run("RenameMissing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Rename(ctx, lessons, "ghost.pdf", "other.pdf")
		assert.ErrorIs(t, err, materials.ErrNotFound)
	})

	t.Run("RenameNeverOverwrites", func(t *testing.T) {
		store := newStore(t)
		Put(t, store, lessons, "a.pdf", materials.MimePDF, []byte("aaa"))
		Put(t, store, lessons, "b.pdf", materials.MimePDF, []byte("bbb"))

		_, err := store.Rename(ctx, lessons, "a.pdf", "b.pdf")
		assert.ErrorIs(t, err, materials.ErrAlreadyExists)
		assert.Equal(t, []byte("aaa"), ReadAll(t, store, lessons, "a.pdf"))
		assert.Equal(t, []byte("bbb"), ReadAll(t, store, lessons, "b.pdf"))
	})

	t.Run("RenameOntoItself", func(t *testing.T) {
		store := newStore(t)
		Put(t, store, lessons, "same.pdf", materials.MimePDF, []byte("same"))

		_, err := store.Rename(ctx, lessons, "same.pdf", "same.pdf")
		assert.ErrorIs(t, err, materials.ErrAlreadyExists)
		assert.Equal(t, []byte("same"), ReadAll(t, store, lessons, "same.pdf"))
	})

	t.Run("DeleteTwice", func(t *testing.T) {
		store := newStore(t)
		Put(t, store, lessons, "old.pdf", materials.MimePDF, []byte("old"))

		require.NoError(t, store.Delete(ctx, lessons, "old.pdf"))
		assert.Empty(t, Names(t, store, lessons))
		assert.ErrorIs(t, store.Delete(ctx, lessons, "old.pdf"), materials.ErrNotFound)
	})

	t.Run("OpenMissing", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Open(ctx, lessons, "missing.pdf")
		assert.ErrorIs(t, err, materials.ErrNotFound)
	})

	t.Run("OpenReportsMetadata", func(t *testing.T) {
		store := newStore(t)
		Put(t, store, materials.CategoryAttachments, "photo.png", materials.MimePNG, []byte("\x89PNG\r\n\x1a\nxxxx"))

		dl, err := store.Open(ctx, materials.CategoryAttachments, "photo.png")
		require.NoError(t, err)
		require.NotNil(t, dl.Body)
		defer dl.Body.Close()
		assert.Equal(t, "photo.png", dl.Name)
		assert.Equal(t, materials.MimePNG, dl.ContentType)
		assert.Equal(t, int64(12), dl.Size)
	})

	t.Run("Lifecycle", func(t *testing.T) {
		store := newStore(t)
		Put(t, store, lessons, "syllabus.pdf", materials.MimePDF, make([]byte, 1024))
		assert.Equal(t, []string{"syllabus.pdf"}, Names(t, store, lessons))

		_, err := store.Rename(ctx, lessons, "syllabus.pdf", "outline.pdf")
		require.NoError(t, err)
		assert.Equal(t, []string{"outline.pdf"}, Names(t, store, lessons))

		require.NoError(t, store.Delete(ctx, lessons, "outline.pdf"))
		assert.Empty(t, Names(t, store, lessons))
	})
}
