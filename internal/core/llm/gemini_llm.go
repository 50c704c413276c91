package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"github.com/xenyhq/ragserve/internal/core"
	"github.com/xenyhq/ragserve/internal/models"
)

type GeminiLLM struct {
	cache     *clientCache
	modelName string
}

func NewGeminiLLM(ring *Keyring, modelName string) *GeminiLLM {
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiLLM{cache: newClientCache(ring), modelName: modelName}
}

func (g *GeminiLLM) Close() error {
	return g.cache.Close()
}

func (g *GeminiLLM) Generate(ctx context.Context, systemPrompt string, history []models.ChatMessage, userPrompt string) (string, error) {
	cl, err := g.cache.get(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: gemini client: %v", core.ErrProvider, err)
	}

	m := cl.GenerativeModel(g.modelName)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	cs := m.StartChat()
	for _, turn := range history {
		role := "user"
		if turn.Sender != "user" {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Message)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate: %v", core.ErrProvider, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

var _ core.LLMProvider = (*GeminiLLM)(nil)
