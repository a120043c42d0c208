package materials_test

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
	"github.com/tendant/simple-portal/pkg/materials/storage/memory"
)

// recordingStore counts calls so tests can prove validation happens first.
type recordingStore struct {
	materials.Store
	puts    int
	renames int
	deletes int
	failErr error
}

func (r *recordingStore) Put(ctx context.Context, c materials.Category, name, ct string, rd io.Reader) (*materials.MaterialItem, error) {
	r.puts++
	if r.failErr != nil {
		return nil, r.failErr
	}
	return r.Store.Put(ctx, c, name, ct, rd)
}

func (r *recordingStore) Rename(ctx context.Context, c materials.Category, oldName, newName string) (*materials.MaterialItem, error) {
	r.renames++
	return r.Store.Rename(ctx, c, oldName, newName)
}

func (r *recordingStore) Delete(ctx context.Context, c materials.Category, name string) error {
	r.deletes++
	if r.failErr != nil {
		return r.failErr
	}
	return r.Store.Delete(ctx, c, name)
}

type recordingSink struct {
	uploaded []string
	renamed  []string
	deleted  []string
	err      error
}

func (s *recordingSink) MaterialUploaded(ctx context.Context, item *materials.MaterialItem) error {
	s.uploaded = append(s.uploaded, item.Name)
	return s.err
}

func (s *recordingSink) MaterialRenamed(ctx context.Context, oldName string, item *materials.MaterialItem) error {
	s.renamed = append(s.renamed, oldName+"->"+item.Name)
	return s.err
}

func (s *recordingSink) MaterialDeleted(ctx context.Context, c materials.Category, name string) error {
	s.deleted = append(s.deleted, name)
	return s.err
}

func setupTestService(t *testing.T, opts ...materials.Option) (materials.Service, *recordingStore) {
	t.Helper()
	store := &recordingStore{Store: memory.New(nil)}
	svc, err := materials.New(append([]materials.Option{materials.WithStore(store)}, opts...)...)
	require.NoError(t, err)
	require.NotNil(t, svc)
	return svc, store
}

func upload(name, category, contentType string, data []byte) materials.UploadRequest {
	return materials.UploadRequest{
		Category:    category,
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	}
}

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []materials.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []materials.Option{},
			expectError: true,
		},
		{
			name:        "with store should succeed",
			options:     []materials.Option{materials.WithStore(memory.New(nil))},
			expectError: false,
		},
		{
			name: "non-positive upload size should fail",
			options: []materials.Option{
				materials.WithStore(memory.New(nil)),
				materials.WithMaxUploadSize(0),
			},
			expectError: true,
		},
		{
			name: "policy table missing a category should fail",
			options: []materials.Option{
				materials.WithStore(memory.New(nil)),
				materials.WithPolicies(materials.Policies{
					materials.CategoryLessons: {ContentTypes: []string{materials.MimePDF}},
				}),
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := materials.New(tt.options...)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestValidateCategory(t *testing.T) {
	svc, _ := setupTestService(t)

	for label, want := range map[string]materials.Category{
		"lessons":     materials.CategoryLessons,
		"aulas":       materials.CategoryLessons,
		"Exercicios":  materials.CategoryExercises,
		"attachments": materials.CategoryAttachments,
		"anexos":      materials.CategoryAttachments,
	} {
		got, err := svc.ValidateCategory(label)
		require.NoError(t, err, label)
		assert.Equal(t, want, got, label)
	}

	_, err := svc.ValidateCategory("homework")
	assert.ErrorIs(t, err, materials.ErrUnknownCategory)
	assert.Equal(t, "Lessons", svc.CategoryLabel(materials.CategoryLessons))
}

func TestValidateCategory_FromPolicyTable(t *testing.T) {
	policies := materials.DefaultPolicies()
	lessons := policies[materials.CategoryLessons]
	lessons.Label = "Lectures"
	lessons.Aliases = []string{"clases"}
	policies[materials.CategoryLessons] = lessons

	svc, _ := setupTestService(t, materials.WithPolicies(policies))

	for _, label := range []string{"lessons", "Lectures", " CLASES "} {
		got, err := svc.ValidateCategory(label)
		require.NoError(t, err, label)
		assert.Equal(t, materials.CategoryLessons, got, label)
	}

	_, err := svc.ValidateCategory("aulas")
	assert.ErrorIs(t, err, materials.ErrUnknownCategory)
	assert.Equal(t, "Lectures", svc.CategoryLabel(materials.CategoryLessons))
}

func TestAcceptedContentTypes(t *testing.T) {
	svc, _ := setupTestService(t)

	lessons := svc.AcceptedContentTypes(materials.CategoryLessons)
	exercises := svc.AcceptedContentTypes(materials.CategoryExercises)
	attachments := svc.AcceptedContentTypes(materials.CategoryAttachments)

	assert.Contains(t, lessons, materials.MimePDF)
	assert.NotContains(t, lessons, materials.MimePNG)
	assert.Contains(t, exercises, materials.MimeZip)
	assert.Contains(t, exercises, materials.MimeDOCX)
	assert.Contains(t, attachments, materials.MimeMP4)
	assert.NotContains(t, attachments, materials.MimeDOC)
	assert.Greater(t, len(exercises), len(lessons))
	assert.Nil(t, svc.AcceptedContentTypes(materials.Category("unknown")))
}

func TestReceiveUpload_Scenario(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()

	item, err := svc.ReceiveUpload(ctx, upload("syllabus.pdf", "lessons", materials.MimePDF, make([]byte, 1024)))
	require.NoError(t, err)
	assert.Equal(t, "syllabus.pdf", item.Name)
	assert.Equal(t, int64(1024), item.Size)

	items, err := svc.ListCategory(ctx, "lessons")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "syllabus.pdf", items[0].Name)

	renamed, err := svc.RenameItem(ctx, "lessons", "syllabus.pdf", "outline.pdf")
	require.NoError(t, err)
	assert.Equal(t, "outline.pdf", renamed.Name)

	items, err = svc.ListCategory(ctx, "lessons")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "outline.pdf", items[0].Name)

	require.NoError(t, svc.DeleteItem(ctx, "lessons", "outline.pdf"))
	items, err = svc.ListCategory(ctx, "lessons")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReceiveUpload_UnsupportedTypeNeverReachesStore(t *testing.T) {
	svc, store := setupTestService(t)
	ctx := context.Background()

	_, err := svc.ReceiveUpload(ctx, upload("setup.exe", "lessons", "application/x-msdownload", []byte("MZ")))
	assert.ErrorIs(t, err, materials.ErrUnsupportedType)
	assert.True(t, materials.IsValidationError(err))
	assert.Equal(t, 0, store.puts)

	items, err := svc.ListCategory(ctx, "lessons")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReceiveUpload_ValidationOrder(t *testing.T) {
	svc, store := setupTestService(t, materials.WithMaxUploadSize(16))
	ctx := context.Background()

	tests := []struct {
		name string
		req  materials.UploadRequest
		want error
	}{
		{"unknown category", upload("a.pdf", "homework", materials.MimePDF, nil), materials.ErrUnknownCategory},
		{"traversal name", upload("../a.pdf", "lessons", materials.MimePDF, nil), materials.ErrInvalidName},
		{"empty name", upload("", "lessons", materials.MimePDF, nil), materials.ErrInvalidName},
		{"image in lessons", upload("a.png", "lessons", materials.MimePNG, nil), materials.ErrUnsupportedType},
		{"missing type", upload("a.pdf", "lessons", "", nil), materials.ErrUnsupportedType},
		{"declared too large", upload("a.pdf", "lessons", materials.MimePDF, make([]byte, 17)), materials.ErrPayloadTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ReceiveUpload(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, 0, store.puts)
}

func TestReceiveUpload_UndeclaredOversizeBodyIsAborted(t *testing.T) {
	svc, store := setupTestService(t, materials.WithMaxUploadSize(8))
	ctx := context.Background()

	req := materials.UploadRequest{
		Category:    "exercises",
		Filename:    "big.txt",
		ContentType: "text/plain; charset=utf-8",
		Size:        -1,
		Body:        strings.NewReader("this body is longer than eight bytes"),
	}
	_, err := svc.ReceiveUpload(ctx, req)
	assert.ErrorIs(t, err, materials.ErrPayloadTooLarge)
	assert.Equal(t, 1, store.puts)

	items, err := svc.ListCategory(ctx, "exercises")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReceiveUpload_ExactlyAtLimit(t *testing.T) {
	svc, _ := setupTestService(t, materials.WithMaxUploadSize(8))

	req := materials.UploadRequest{
		Category:    "exercises",
		Filename:    "eight.txt",
		ContentType: materials.MimeText,
		Size:        -1,
		Body:        strings.NewReader("12345678"),
	}
	item, err := svc.ReceiveUpload(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(8), item.Size)
}

func TestReceiveUpload_NormalizesContentType(t *testing.T) {
	svc, _ := setupTestService(t)

	item, err := svc.ReceiveUpload(context.Background(), upload("notes.txt", "exercicios", "Text/Plain; charset=UTF-8", []byte("hi")))
	require.NoError(t, err)
	assert.Equal(t, materials.CategoryExercises, item.Category)
	assert.Equal(t, materials.MimeText, item.ContentType)
}

func TestStorageFailuresAreWrapped(t *testing.T) {
	svc, store := setupTestService(t)
	store.failErr = errors.New("disk on fire")

	_, err := svc.ReceiveUpload(context.Background(), upload("a.pdf", "lessons", materials.MimePDF, []byte("x")))
	require.Error(t, err)
	assert.ErrorIs(t, err, materials.ErrStorageFailure)
	assert.False(t, materials.IsValidationError(err))

	var me *materials.MaterialError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "upload", me.Op)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestRenameItem(t *testing.T) {
	svc, store := setupTestService(t)
	ctx := context.Background()
	_, err := svc.ReceiveUpload(ctx, upload("a.pdf", "lessons", materials.MimePDF, []byte("a")))
	require.NoError(t, err)
	_, err = svc.ReceiveUpload(ctx, upload("b.pdf", "lessons", materials.MimePDF, []byte("b")))
	require.NoError(t, err)

	_, err = svc.RenameItem(ctx, "lessons", "a.pdf", "b.pdf")
	assert.ErrorIs(t, err, materials.ErrAlreadyExists)
	assert.NotErrorIs(t, err, materials.ErrStorageFailure)

	_, err = svc.RenameItem(ctx, "lessons", "a.pdf", "a.pdf")
	assert.ErrorIs(t, err, materials.ErrAlreadyExists)

	_, err = svc.RenameItem(ctx, "lessons", "missing.pdf", "c.pdf")
	assert.ErrorIs(t, err, materials.ErrNotFound)

	renames := store.renames
	_, err = svc.RenameItem(ctx, "lessons", "a.pdf", "sub/c.pdf")
	assert.ErrorIs(t, err, materials.ErrInvalidName)
	_, err = svc.RenameItem(ctx, "lessons", "a.pdf", "")
	assert.ErrorIs(t, err, materials.ErrInvalidName)
	assert.Equal(t, renames, store.renames)
}

func TestDeleteItem_SecondDeleteReportsNotFound(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	_, err := svc.ReceiveUpload(ctx, upload("old.pdf", "anexos", materials.MimePDF, []byte("x")))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteItem(ctx, "anexos", "old.pdf"))
	err = svc.DeleteItem(ctx, "anexos", "old.pdf")
	assert.ErrorIs(t, err, materials.ErrNotFound)
}

func TestResolveDownload(t *testing.T) {
	svc, _ := setupTestService(t)
	ctx := context.Background()
	_, err := svc.ReceiveUpload(ctx, upload("song.mp3", "attachments", materials.MimeMP3, []byte("ID3")))
	require.NoError(t, err)

	dl, err := svc.ResolveDownload(ctx, "attachments", "song.mp3")
	require.NoError(t, err)
	defer dl.Body.Close()
	data, err := io.ReadAll(dl.Body)
	require.NoError(t, err)
	assert.Equal(t, "ID3", string(data))
	assert.Equal(t, materials.MimeMP3, dl.ContentType)

	_, err = svc.ResolveDownload(ctx, "attachments", "nope.mp3")
	assert.ErrorIs(t, err, materials.ErrNotFound)
}

func TestEventSink(t *testing.T) {
	sink := &recordingSink{}
	svc, _ := setupTestService(t, materials.WithEventSink(sink))
	ctx := context.Background()

	_, err := svc.ReceiveUpload(ctx, upload("a.pdf", "lessons", materials.MimePDF, []byte("a")))
	require.NoError(t, err)
	_, err = svc.RenameItem(ctx, "lessons", "a.pdf", "b.pdf")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteItem(ctx, "lessons", "b.pdf"))

	assert.Equal(t, []string{"a.pdf"}, sink.uploaded)
	assert.Equal(t, []string{"a.pdf->b.pdf"}, sink.renamed)
	assert.Equal(t, []string{"b.pdf"}, sink.deleted)

	// Failed operations fire nothing.
	_, err = svc.RenameItem(ctx, "lessons", "b.pdf", "c.pdf")
	require.Error(t, err)
	assert.Len(t, sink.renamed, 1)
}

func TestEventSinkFailureDoesNotFailOperation(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	svc, _ := setupTestService(t, materials.WithEventSink(sink))

	_, err := svc.ReceiveUpload(context.Background(), upload("a.pdf", "lessons", materials.MimePDF, []byte("a")))
	assert.NoError(t, err)
	assert.Len(t, sink.uploaded, 1)
}
