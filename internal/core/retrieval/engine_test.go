package retrieval

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenyhq/ragserve/internal/core"
	"github.com/xenyhq/ragserve/internal/core/ingestion"
	"github.com/xenyhq/ragserve/internal/core/llm"
	"github.com/xenyhq/ragserve/internal/core/storage"
	"github.com/xenyhq/ragserve/internal/core/vectorstore"
	"github.com/xenyhq/ragserve/internal/models"
)

// hashEmbedder is a deterministic bag-of-words embedder for tests.
type hashEmbedder struct{}

func (hashEmbedder) embed(text string) []float32 {
	v := make([]float32, 32)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%32]++
	}
	v[0] += 0.001
	return v
}

func (e hashEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

// scriptedLLM drives each Generate call through a caller-supplied script.
type scriptedLLM struct {
	mu       sync.Mutex
	calls    int
	generate func(call int, system string, history []models.ChatMessage, user string) (string, error)
}

func (f *scriptedLLM) Generate(ctx context.Context, system string, history []models.ChatMessage, user string) (string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	return f.generate(call, system, history, user)
}

type engineFixture struct {
	engine  *Engine
	builder *ingestion.Builder
	storage *storage.LocalStorage
	index   *vectorstore.Manager
	ring    *llm.Keyring
}

func newEngineFixture(t *testing.T, provider core.LLMProvider) *engineFixture {
	t.Helper()

	st, err := storage.NewLocalStorage(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	store, err := vectorstore.NewChromemStore("", hashEmbedder{}, zap.NewNop())
	require.NoError(t, err)
	index := vectorstore.NewManager(store, zap.NewNop())

	ring, err := llm.NewKeyring([]string{"key-a", "key-b"})
	require.NoError(t, err)

	builder := ingestion.NewBuilder(st, index,
		ingestion.NewLoader(zap.NewNop()), ingestion.NewSplitter(500, 50), ring, zap.NewNop())

	return &engineFixture{
		engine:  NewEngine(index, builder, st, provider, ring, 5, zap.NewNop()),
		builder: builder,
		storage: st,
		index:   index,
		ring:    ring,
	}
}

func (f *engineFixture) seedAndBuild(t *testing.T, companyID string, docs map[string]string) {
	t.Helper()
	ctx := context.Background()

	meta := map[string]models.FileInfo{}
	for fileID, content := range docs {
		filename := fileID + ".txt"
		require.NoError(t, f.storage.SaveFile(ctx, companyID, filename, []byte(content)))
		meta[fileID] = models.FileInfo{
			FileID:           fileID,
			Filename:         filename,
			OriginalFilename: "orig-" + filename,
			CompanyID:        companyID,
			Extension:        ".txt",
			Status:           models.FileStatusUploaded,
			CreatedAt:        time.Now().UTC(),
		}
	}
	require.NoError(t, storage.WriteMetadata(ctx, f.storage, companyID, meta))
	require.NoError(t, f.builder.Build(ctx, companyID))
}

func TestEngineAnswersWithSources(t *testing.T) {
	provider := &scriptedLLM{generate: func(call int, system string, history []models.ChatMessage, user string) (string, error) {
		return "Acme answers support tickets within one day.", nil
	}}
	f := newEngineFixture(t, provider)
	f.seedAndBuild(t, "acme", map[string]string{
		"file-1": "Support tickets are answered within one business day.",
	})

	ans, err := f.engine.AnswerCompany(context.Background(), "acme", "how fast is support?", nil)
	require.NoError(t, err)
	assert.Equal(t, "Acme answers support tickets within one day.", ans.Response)
	assert.Equal(t, []string{"file-1"}, ans.Sources)
}

func TestEngineTriesNextVariationOnSentinel(t *testing.T) {
	provider := &scriptedLLM{generate: func(call int, system string, history []models.ChatMessage, user string) (string, error) {
		if call == 1 {
			return Sentinel + ". For more details, please contact support.", nil
		}
		return "UrbanPiper integrates restaurant ordering channels.", nil
	}}
	f := newEngineFixture(t, provider)
	f.seedAndBuild(t, "UrbanPiper", map[string]string{
		"file-1": "UrbanPiper integrates ordering channels for restaurants.",
	})

	ans, err := f.engine.AnswerCompany(context.Background(), "UrbanPiper", "What is Urban Piper?", nil)
	require.NoError(t, err)
	assert.Equal(t, "UrbanPiper integrates restaurant ordering channels.", ans.Response)
	assert.GreaterOrEqual(t, provider.calls, 2)
}

func TestEngineFallsBackToFirstSentinelResponse(t *testing.T) {
	first := Sentinel + ". For more details, please contact the first desk."
	provider := &scriptedLLM{generate: func(call int, system string, history []models.ChatMessage, user string) (string, error) {
		if call == 1 {
			return first, nil
		}
		return Sentinel + ". For more details, please contact a later desk.", nil
	}}
	f := newEngineFixture(t, provider)
	f.seedAndBuild(t, "acme", map[string]string{"file-1": "unrelated content"})

	ans, err := f.engine.AnswerCompany(context.Background(), "acme", "some question", nil)
	require.NoError(t, err)
	assert.Equal(t, first, ans.Response)
}

func TestEngineRotatesAndRetriesOnProviderOutage(t *testing.T) {
	// The single-word query yields exactly one variation, so call 1 is the
	// failing variation attempt and call 2 is the post-rotation retry.
	provider := &scriptedLLM{generate: func(call int, system string, history []models.ChatMessage, user string) (string, error) {
		if call == 1 {
			return "", fmt.Errorf("%w: quota exceeded", core.ErrProvider)
		}
		return "recovered answer", nil
	}}
	f := newEngineFixture(t, provider)
	f.seedAndBuild(t, "acme", map[string]string{"file-1": "some indexed content"})

	_, genBefore := f.ring.Current()
	ans, err := f.engine.AnswerCompany(context.Background(), "acme", "anything", nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered answer", ans.Response)

	_, genAfter := f.ring.Current()
	assert.Greater(t, genAfter, genBefore)
}

func TestEngineUnknownCompany(t *testing.T) {
	provider := &scriptedLLM{generate: func(call int, system string, history []models.ChatMessage, user string) (string, error) {
		return "should not be called", nil
	}}
	f := newEngineFixture(t, provider)

	_, err := f.engine.AnswerCompany(context.Background(), "ghost", "hello", nil)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestEngineReformulatesWithHistory(t *testing.T) {
	var sawReformulate bool
	provider := &scriptedLLM{generate: func(call int, system string, history []models.ChatMessage, user string) (string, error) {
		if strings.Contains(system, "standalone question") {
			sawReformulate = true
			return "What are Acme's support hours?", nil
		}
		return "Acme support runs nine to five.", nil
	}}
	f := newEngineFixture(t, provider)
	f.seedAndBuild(t, "acme", map[string]string{"file-1": "Support hours are nine to five."})

	history := []models.ChatMessage{
		{Message: "Tell me about Acme support", Sender: "user"},
		{Message: "Acme offers email support.", Sender: "bot"},
	}
	ans, err := f.engine.AnswerCompany(context.Background(), "acme", "what are its hours?", history)
	require.NoError(t, err)
	assert.True(t, sawReformulate)
	assert.Equal(t, "Acme support runs nine to five.", ans.Response)
}

func TestEngineAnswerFileMaterializesOnce(t *testing.T) {
	ctx := context.Background()
	provider := &scriptedLLM{generate: func(call int, system string, history []models.ChatMessage, user string) (string, error) {
		return "The contract runs for two years.", nil
	}}
	f := newEngineFixture(t, provider)

	meta := map[string]models.FileInfo{
		"file-9": {
			FileID:           "file-9",
			Filename:         "file-9.txt",
			OriginalFilename: "contract.txt",
			CompanyID:        "acme",
			Extension:        ".txt",
			Status:           models.FileStatusUploaded,
			CreatedAt:        time.Now().UTC(),
		},
	}
	require.NoError(t, f.storage.SaveFile(ctx, "acme", "file-9.txt", []byte("The contract term is two years.")))
	require.NoError(t, storage.WriteMetadata(ctx, f.storage, "acme", meta))

	ans, err := f.engine.AnswerFile(ctx, "acme", "file-9", "how long is the contract?", nil)
	require.NoError(t, err)
	assert.Equal(t, "The contract runs for two years.", ans.Response)
	assert.Equal(t, []string{"acme/file-9.txt"}, ans.Sources)
	assert.Equal(t, "file-9", ans.FileID)
	assert.Equal(t, "contract.txt", ans.Filename)

	empty, err := f.index.FileCollectionEmpty(ctx, "acme", "file-9")
	require.NoError(t, err)
	assert.False(t, empty)

	// Second query reuses the materialized collection.
	_, err = f.engine.AnswerFile(ctx, "acme", "file-9", "any renewal terms?", nil)
	require.NoError(t, err)
}

func TestEngineAnswerFileUnknown(t *testing.T) {
	provider := &scriptedLLM{generate: func(call int, system string, history []models.ChatMessage, user string) (string, error) {
		return "", nil
	}}
	f := newEngineFixture(t, provider)

	_, err := f.engine.AnswerFile(context.Background(), "acme", "ghost", "q", nil)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
