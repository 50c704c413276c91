package llm

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"

	"github.com/xenyhq/ragserve/internal/core"
)

type GeminiEmbedder struct {
	cache     *clientCache
	modelName string
}

func NewGeminiEmbedder(ring *Keyring, modelName string) *GeminiEmbedder {
	if modelName == "" {
		modelName = "text-embedding-004"
	}
	return &GeminiEmbedder{cache: newClientCache(ring), modelName: modelName}
}

func (g *GeminiEmbedder) Close() error {
	return g.cache.Close()
}

// EmbedTexts batches all texts in one request via BatchEmbedContents.
func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	cl, err := g.cache.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini client: %v", core.ErrProvider, err)
	}
	em := cl.EmbeddingModel(g.modelName)

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini batch embed: %v", core.ErrProvider, err)
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}

func (g *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	cl, err := g.cache.get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini client: %v", core.ErrProvider, err)
	}
	em := cl.EmbeddingModel(g.modelName)

	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("%w: gemini embed: %v", core.ErrProvider, err)
	}
	return resp.Embedding.Values, nil
}

var _ core.EmbeddingProvider = (*GeminiEmbedder)(nil)
