package core

import (
	"context"

	"github.com/xenyhq/ragserve/internal/models"
)

// EmbeddingProvider turns text into fixed-length vectors.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// LLMProvider composes an answer from a system instruction, prior chat
// turns and the current user prompt.
type LLMProvider interface {
	Generate(ctx context.Context, systemPrompt string, history []models.ChatMessage, userPrompt string) (string, error)
}
