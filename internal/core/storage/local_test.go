package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenyhq/ragserve/internal/core"
	"github.com/xenyhq/ragserve/internal/models"
)

func newLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	require.NoError(t, s.SaveFile(ctx, "acme", "doc.txt", []byte("hello")))

	data, err := s.ReadFile(ctx, "acme", "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	files, err := s.ListFiles(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc.txt"}, files)
}

func TestLocalStorageMissingFile(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	_, err := s.ReadFile(ctx, "acme", "nope.txt")
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = s.DeleteFile(ctx, "acme", "nope.txt")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	assert.Error(t, s.SaveFile(ctx, "../escape", "doc.txt", []byte("x")))
	assert.Error(t, s.SaveFile(ctx, "acme", "../doc.txt", []byte("x")))
	_, err := s.ReadFile(ctx, "a/b", "doc.txt")
	assert.Error(t, err)
}

func TestLocalStorageListExcludesMetadata(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	require.NoError(t, s.SaveFile(ctx, "acme", "doc.txt", []byte("x")))
	require.NoError(t, WriteMetadata(ctx, s, "acme", map[string]models.FileInfo{}))

	files, err := s.ListFiles(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc.txt"}, files)
}

func TestLocalStorageCompanies(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	exists, err := s.CompanyExists(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.SaveFile(ctx, "acme", "a.txt", []byte("x")))
	require.NoError(t, s.SaveFile(ctx, "globex", "b.txt", []byte("y")))

	exists, err = s.CompanyExists(ctx, "acme")
	require.NoError(t, err)
	assert.True(t, exists)

	companies, err := s.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"acme", "globex"}, companies)

	require.NoError(t, s.DeleteCompany(ctx, "acme"))
	companies, err = s.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"globex"}, companies)
}

func TestMetadataRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newLocal(t)

	// Missing metadata reads as empty, not as an error.
	meta, err := ReadMetadata(ctx, s, "acme")
	require.NoError(t, err)
	assert.Empty(t, meta)

	now := time.Now().UTC().Truncate(time.Second)
	meta["f-1"] = models.FileInfo{
		FileID:           "f-1",
		Filename:         "f-1.txt",
		OriginalFilename: "notes.txt",
		CompanyID:        "acme",
		Size:             5,
		Extension:        ".txt",
		Status:           models.FileStatusUploaded,
		CreatedAt:        now,
	}
	require.NoError(t, WriteMetadata(ctx, s, "acme", meta))

	got, err := ReadMetadata(ctx, s, "acme")
	require.NoError(t, err)
	require.Contains(t, got, "f-1")
	assert.Equal(t, "notes.txt", got["f-1"].OriginalFilename)
	assert.Equal(t, models.FileStatusUploaded, got["f-1"].Status)
}
