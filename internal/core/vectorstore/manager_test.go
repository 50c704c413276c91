package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := NewChromemStore("", &wordHashEmbedder{}, zap.NewNop())
	require.NoError(t, err)
	return NewManager(store, zap.NewNop())
}

func TestManagerRebuildReplacesCollection(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	require.NoError(t, m.RebuildCompany(ctx, "acme", []Chunk{
		{ID: "a", Text: "old content about shipping"},
		{ID: "b", Text: "old content about billing"},
	}))
	require.NoError(t, m.RebuildCompany(ctx, "acme", []Chunk{
		{ID: "c", Text: "new content about refunds"},
	}))

	stats, err := m.CompanyStats(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)

	results, err := m.QueryCompany(ctx, "acme", "refunds", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c", results[0].ID)
}

func TestManagerAppendCompanyKeepsExisting(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	require.NoError(t, m.RebuildCompany(ctx, "acme", []Chunk{
		{ID: "a", Text: "old content about shipping"},
	}))
	require.NoError(t, m.AppendCompany(ctx, "acme", []Chunk{
		{ID: "b", Text: "new content about refunds"},
	}))

	stats, err := m.CompanyStats(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)
}

func TestManagerAppendCompanyCreatesCollection(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	require.NoError(t, m.AppendCompany(ctx, "fresh", []Chunk{
		{ID: "a", Text: "first ever document"},
	}))

	stats, err := m.CompanyStats(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, stats.Exists)
	assert.Equal(t, 1, stats.Count)
}

func TestManagerCompanyIsolation(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	require.NoError(t, m.RebuildCompany(ctx, "acme", []Chunk{{ID: "a", Text: "acme pricing tiers"}}))
	require.NoError(t, m.RebuildCompany(ctx, "globex", []Chunk{{ID: "g", Text: "globex pricing tiers"}}))

	results, err := m.QueryCompany(ctx, "acme", "pricing tiers", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestManagerFileCollections(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	fileID := "123e4567-e89b-12d3-a456-426614174000"

	empty, err := m.FileCollectionEmpty(ctx, "acme", fileID)
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, m.CreateFileCollection(ctx, "acme", fileID, []Chunk{
		{ID: "f1", Text: "contents of the uploaded contract"},
	}))

	empty, err = m.FileCollectionEmpty(ctx, "acme", fileID)
	require.NoError(t, err)
	assert.False(t, empty)

	results, err := m.QueryFile(ctx, "acme", fileID, "contract", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NoError(t, m.DeleteFile(ctx, "acme", fileID))
	empty, err = m.FileCollectionEmpty(ctx, "acme", fileID)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestManagerDeleteCompany(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	require.NoError(t, m.RebuildCompany(ctx, "acme", []Chunk{{ID: "a", Text: "doc"}}))
	require.NoError(t, m.DeleteCompany(ctx, "acme"))

	stats, err := m.CompanyStats(ctx, "acme")
	require.NoError(t, err)
	assert.False(t, stats.Exists)

	// Deleting again is harmless.
	assert.NoError(t, m.DeleteCompany(ctx, "acme"))
}
