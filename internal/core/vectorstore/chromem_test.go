package vectorstore

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// wordHashEmbedder produces a deterministic bag-of-words vector so that
// lexically similar texts score higher without calling any real provider.
type wordHashEmbedder struct {
	failNext error
}

func (e *wordHashEmbedder) embed(text string) []float32 {
	v := make([]float32, 32)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%32]++
	}
	// Ensure a non-zero vector even for empty input.
	v[0] += 0.001
	return v
}

func (e *wordHashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if e.failNext != nil {
		err := e.failNext
		e.failNext = nil
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *wordHashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func newTestStore(t *testing.T) (*ChromemStore, *wordHashEmbedder) {
	t.Helper()
	emb := &wordHashEmbedder{}
	store, err := NewChromemStore("", emb, zap.NewNop())
	require.NoError(t, err)
	return store, emb
}

func TestChromemStoreCreateAndQuery(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	chunks := []Chunk{
		{ID: "a", Text: "the refund policy allows returns within thirty days", Metadata: map[string]string{"source": "policy.txt"}},
		{ID: "b", Text: "our office is located in Berlin", Metadata: map[string]string{"source": "about.txt"}},
		{ID: "c", Text: "refund requests are processed weekly", Metadata: map[string]string{"source": "policy.txt"}},
	}
	require.NoError(t, store.CreateCollection(ctx, "company_acme", chunks))

	results, err := store.Query(ctx, "company_acme", "what is the refund policy", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "policy.txt", results[0].Metadata["source"])
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestChromemStoreQueryCapsK(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.CreateCollection(ctx, "company_small", []Chunk{
		{ID: "only", Text: "a single document"},
	}))

	results, err := store.Query(ctx, "company_small", "document", 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromemStoreQueryMissingCollection(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Query(context.Background(), "company_ghost", "anything", 3)
	assert.ErrorIs(t, err, ErrCollectionNotFound)
}

func TestChromemStoreEmptyChunks(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.CreateCollection(context.Background(), "company_acme", nil)
	assert.ErrorIs(t, err, ErrEmptyChunks)
}

func TestChromemStoreEmbedFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	store, emb := newTestStore(t)

	emb.failNext = errors.New("provider down")
	err := store.CreateCollection(ctx, "company_acme", []Chunk{{ID: "a", Text: "hello"}})
	require.Error(t, err)

	stats, err := store.Stats(ctx, "company_acme")
	require.NoError(t, err)
	// The collection shell may exist but must hold no documents.
	assert.Zero(t, stats.Count)
}

func TestChromemStoreAppend(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.CreateCollection(ctx, "company_acme", []Chunk{{ID: "a", Text: "first"}}))
	require.NoError(t, store.AppendToCollection(ctx, "company_acme", []Chunk{{ID: "b", Text: "second"}}))

	stats, err := store.Stats(ctx, "company_acme")
	require.NoError(t, err)
	assert.True(t, stats.Exists)
	assert.Equal(t, 2, stats.Count)
}

func TestChromemStoreDelete(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	require.NoError(t, store.CreateCollection(ctx, "company_acme", []Chunk{{ID: "a", Text: "doc"}}))
	require.NoError(t, store.DeleteCollection(ctx, "company_acme"))

	stats, err := store.Stats(ctx, "company_acme")
	require.NoError(t, err)
	assert.False(t, stats.Exists)

	// Deleting a collection that never existed is not an error.
	assert.NoError(t, store.DeleteCollection(ctx, "company_never"))
}

func TestChromemStorePersistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	emb := &wordHashEmbedder{}

	store, err := NewChromemStore(dir, emb, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.CreateCollection(ctx, "company_acme", []Chunk{{ID: "a", Text: "persisted chunk"}}))
	require.NoError(t, store.Close())

	reopened, err := NewChromemStore(dir, emb, zap.NewNop())
	require.NoError(t, err)
	stats, err := reopened.Stats(ctx, "company_acme")
	require.NoError(t, err)
	assert.True(t, stats.Exists)
	assert.Equal(t, 1, stats.Count)
}
