package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xenyhq/ragserve/internal/core"
	"github.com/xenyhq/ragserve/internal/core/ingestion"
	"github.com/xenyhq/ragserve/internal/core/llm"
	"github.com/xenyhq/ragserve/internal/core/storage"
	"github.com/xenyhq/ragserve/internal/core/vectorstore"
	"github.com/xenyhq/ragserve/internal/models"
)

// outcome classifies one attempt so the orchestration loop can decide
// between "try next variation" and "rotate and retry" explicitly.
type outcome int

const (
	outcomeAnswer outcome = iota
	outcomeUnavailable
	outcomeProviderError
)

// Engine orchestrates query answering across variations, fallbacks and
// credential rotation. Pipelines are cached per collection and invalidated
// when a rotation makes their provider client stale.
type Engine struct {
	index    *vectorstore.Manager
	builder  *ingestion.Builder
	storage  storage.Storage
	provider core.LLMProvider
	ring     *llm.Keyring
	topK     int
	logger   *zap.Logger

	mu        sync.Mutex
	pipelines map[string]*pipeline
}

func NewEngine(
	index *vectorstore.Manager,
	builder *ingestion.Builder,
	st storage.Storage,
	provider core.LLMProvider,
	ring *llm.Keyring,
	topK int,
	logger *zap.Logger,
) *Engine {
	if topK <= 0 {
		topK = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		index:     index,
		builder:   builder,
		storage:   st,
		provider:  provider,
		ring:      ring,
		topK:      topK,
		logger:    logger,
		pipelines: map[string]*pipeline{},
	}
}

func (e *Engine) companyPipeline(companyID string) *pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := companyID
	if p, ok := e.pipelines[key]; ok {
		return p
	}
	p := newCompanyPipeline(e.index, e.provider, companyID, e.topK)
	e.pipelines[key] = p
	return p
}

func (e *Engine) filePipeline(companyID, fileID string) *pipeline {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := companyID + "::" + fileID
	if p, ok := e.pipelines[key]; ok {
		return p
	}
	p := newFilePipeline(e.index, e.provider, companyID, fileID, e.topK)
	e.pipelines[key] = p
	return p
}

func (e *Engine) dropPipeline(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pipelines, key)
}

// ForgetCompany drops any cached pipelines for the company, called when its
// documents or index change.
func (e *Engine) ForgetCompany(companyID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.pipelines {
		if key == companyID || strings.HasPrefix(key, companyID+"::") {
			delete(e.pipelines, key)
		}
	}
}

// AnswerCompany answers a query against the company's knowledge base.
func (e *Engine) AnswerCompany(ctx context.Context, companyID, query string, history []models.ChatMessage) (models.Answer, error) {
	p := e.companyPipeline(companyID)
	ans, err := e.answer(ctx, p, companyID, query, history)
	if err != nil {
		return models.Answer{}, err
	}
	return ans, nil
}

// AnswerFile answers a query against a single uploaded file, materializing
// the file's collection first if it has never been indexed.
func (e *Engine) AnswerFile(ctx context.Context, companyID, fileID, query string, history []models.ChatMessage) (models.Answer, error) {
	meta, err := storage.ReadMetadata(ctx, e.storage, companyID)
	if err != nil {
		return models.Answer{}, err
	}
	info, ok := meta[fileID]
	if !ok {
		return models.Answer{}, fmt.Errorf("%w: file %s for company %s", core.ErrNotFound, fileID, companyID)
	}

	empty, err := e.index.FileCollectionEmpty(ctx, companyID, fileID)
	if err != nil {
		return models.Answer{}, err
	}
	if empty {
		if err := e.builder.MaterializeFile(ctx, companyID, fileID); err != nil {
			return models.Answer{}, err
		}
	}

	p := e.filePipeline(companyID, fileID)
	ans, err := e.answer(ctx, p, companyID+"::"+fileID, query, history)
	if err != nil {
		return models.Answer{}, err
	}

	ans.Sources = []string{companyID + "/" + info.Filename}
	ans.FileID = fileID
	ans.Filename = info.OriginalFilename
	if ans.Filename == "" {
		ans.Filename = info.Filename
	}
	return ans, nil
}

// answer runs the variation loop, then the single rotate-and-retry pass
// when every attempt failed at the provider.
func (e *Engine) answer(ctx context.Context, p *pipeline, key, query string, history []models.ChatMessage) (models.Answer, error) {
	var (
		fallback    *models.Answer
		providerErr error
		attempts    int
	)

	for _, variation := range Variations(query) {
		attempts++
		ans, kind, err := e.attempt(ctx, p, variation, history)
		switch kind {
		case outcomeAnswer:
			return ans, nil
		case outcomeUnavailable:
			if fallback == nil && ans.Response != "" {
				fallback = &ans
			}
		case outcomeProviderError:
			providerErr = err
			e.logger.Warn("query attempt hit provider error",
				zap.String("collection_key", key),
				zap.String("variation", variation),
				zap.Error(err),
			)
		}
		if err != nil && kind != outcomeProviderError {
			return models.Answer{}, err
		}
	}

	// The source ordering is intentional: the first obtained response wins
	// even when it is the unavailability notice.
	if fallback != nil {
		return *fallback, nil
	}

	if providerErr != nil {
		e.ring.Rotate()
		e.dropPipeline(key)
		e.logger.Info("rotated credentials after provider failures",
			zap.String("collection_key", key),
			zap.Int("attempts", attempts),
		)

		ans, kind, err := e.attempt(ctx, p, query, history)
		if kind == outcomeAnswer || (kind == outcomeUnavailable && ans.Response != "") {
			return ans, nil
		}
		if err != nil {
			return models.Answer{}, fmt.Errorf("query failed after credential rotation: %w", err)
		}
	}

	return models.Answer{Response: Sentinel + "."}, nil
}

func (e *Engine) attempt(ctx context.Context, p *pipeline, query string, history []models.ChatMessage) (models.Answer, outcome, error) {
	response, sources, err := p.run(ctx, query, history)
	if err != nil {
		if errors.Is(err, core.ErrProvider) {
			return models.Answer{}, outcomeProviderError, err
		}
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return models.Answer{}, outcomeUnavailable, fmt.Errorf("%w: no knowledge base for this company", core.ErrNotFound)
		}
		return models.Answer{}, outcomeUnavailable, err
	}

	ans := models.Answer{Response: response, Sources: sources}
	if response == "" || strings.Contains(response, Sentinel) {
		return ans, outcomeUnavailable, nil
	}
	return ans, outcomeAnswer, nil
}
