package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenyhq/ragserve/internal/core"
	"github.com/xenyhq/ragserve/internal/core/llm"
	"github.com/xenyhq/ragserve/internal/core/storage"
	"github.com/xenyhq/ragserve/internal/core/vectorstore"
	"github.com/xenyhq/ragserve/internal/models"
)

const loadConcurrency = 4

// Builder runs company knowledge-base builds: load every stored document,
// split into chunks, embed and index into the company collection. A build
// always replaces the previous collection.
type Builder struct {
	storage  storage.Storage
	index    *vectorstore.Manager
	loader   *Loader
	splitter *Splitter
	ring     *llm.Keyring
	statuses *StatusStore
	logger   *zap.Logger
}

func NewBuilder(
	st storage.Storage,
	index *vectorstore.Manager,
	loader *Loader,
	splitter *Splitter,
	ring *llm.Keyring,
	logger *zap.Logger,
) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		storage:  st,
		index:    index,
		loader:   loader,
		splitter: splitter,
		ring:     ring,
		statuses: NewStatusStore(),
		logger:   logger,
	}
}

func (b *Builder) Status(companyID string) models.BuildStatus {
	return b.statuses.Get(companyID)
}

func (b *Builder) ForgetStatus(companyID string) {
	b.statuses.Delete(companyID)
}

// Dispatch starts a build in the background. It reports false without
// side effects when a build for the company is already running.
func (b *Builder) Dispatch(companyID string) bool {
	if !b.statuses.TryStart(companyID) {
		return false
	}
	go func() {
		// The build outlives the triggering request.
		if err := b.run(context.Background(), companyID); err != nil {
			b.logger.Error("build failed",
				zap.String("company_id", companyID),
				zap.Error(err),
			)
		}
	}()
	return true
}

// Build runs synchronously, claiming the build slot first.
func (b *Builder) Build(ctx context.Context, companyID string) error {
	if !b.statuses.TryStart(companyID) {
		return fmt.Errorf("build already in progress for %s", companyID)
	}
	return b.run(ctx, companyID)
}

func (b *Builder) run(ctx context.Context, companyID string) error {
	b.statuses.Update(companyID, "Loading documents...", 0.1)

	docs, err := b.loadCompanyDocuments(ctx, companyID)
	if err != nil {
		b.statuses.Fail(companyID, err.Error())
		return err
	}
	if len(docs) == 0 {
		err := fmt.Errorf("%w: company %s", core.ErrNoDocuments, companyID)
		b.statuses.Fail(companyID, err.Error())
		return err
	}

	b.statuses.Update(companyID, fmt.Sprintf("Splitting %d documents into chunks...", len(docs)), 0.3)

	var chunks []vectorstore.Chunk
	for _, doc := range docs {
		chunks = append(chunks, b.chunkDocument(companyID, doc.info, doc.text)...)
	}
	docCount := len(docs)
	if len(chunks) == 0 {
		err := fmt.Errorf("%w: company %s", core.ErrNoDocuments, companyID)
		b.statuses.Fail(companyID, err.Error())
		return err
	}

	b.statuses.Update(companyID, fmt.Sprintf("Creating embeddings for %d chunks...", len(chunks)), 0.6)

	if err := b.index.RebuildCompany(ctx, companyID, chunks); err != nil {
		if errors.Is(err, core.ErrProvider) && b.ring != nil {
			b.ring.Rotate()
		}
		b.statuses.Fail(companyID, err.Error())
		return err
	}

	b.statuses.Update(companyID, "Finalizing index...", 0.9)
	b.markFilesIndexed(ctx, companyID)

	b.statuses.Finish(companyID,
		fmt.Sprintf("Successfully processed %d documents into %d chunks", docCount, len(chunks)))
	b.logger.Info("build completed",
		zap.String("company_id", companyID),
		zap.Int("documents", docCount),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// loadCompanyDocuments extracts text from every readable document for the
// company. Files that fail to load are skipped, matching upload-time
// validation being the strict gate.
func (b *Builder) loadCompanyDocuments(ctx context.Context, companyID string) ([]loadedDocument, error) {
	meta, err := storage.ReadMetadata(ctx, b.storage, companyID)
	if err != nil {
		return nil, err
	}

	fileIDs := make([]string, 0, len(meta))
	for id := range meta {
		fileIDs = append(fileIDs, id)
	}

	var (
		mu      sync.Mutex
		perFile = make([]*loadedDocument, len(fileIDs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, fileID := range fileIDs {
		i, fileID := i, fileID
		info := meta[fileID]
		g.Go(func() error {
			text, err := b.loadFileText(gctx, companyID, info)
			if err != nil {
				b.logger.Warn("skipping unreadable document",
					zap.String("company_id", companyID),
					zap.String("file_id", fileID),
					zap.Error(err),
				)
				return nil
			}
			mu.Lock()
			perFile[i] = &loadedDocument{info: info, text: text}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var docs []loadedDocument
	for _, doc := range perFile {
		if doc != nil {
			docs = append(docs, *doc)
		}
	}
	return docs, nil
}

type loadedDocument struct {
	info models.FileInfo
	text string
}

func (b *Builder) loadFileText(ctx context.Context, companyID string, info models.FileInfo) (string, error) {
	data, err := b.storage.ReadFile(ctx, companyID, info.Filename)
	if err != nil {
		return "", err
	}
	return b.loader.Load(ctx, data, info.Extension)
}

func (b *Builder) chunkDocument(companyID string, info models.FileInfo, text string) []vectorstore.Chunk {
	pieces := b.splitter.Split(text)
	chunks := make([]vectorstore.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = vectorstore.Chunk{
			ID:   fmt.Sprintf("%s_%d", info.FileID, i),
			Text: piece,
			Metadata: map[string]string{
				"file_id":           info.FileID,
				"company_id":        companyID,
				"original_filename": info.OriginalFilename,
				"file_type":         trimDot(info.Extension),
			},
		}
	}
	return chunks
}

func (b *Builder) loadFileChunks(ctx context.Context, companyID string, info models.FileInfo) ([]vectorstore.Chunk, error) {
	text, err := b.loadFileText(ctx, companyID, info)
	if err != nil {
		return nil, err
	}
	return b.chunkDocument(companyID, info, text), nil
}

func (b *Builder) markFilesIndexed(ctx context.Context, companyID string) {
	meta, err := storage.ReadMetadata(ctx, b.storage, companyID)
	if err != nil || len(meta) == 0 {
		return
	}
	for id, info := range meta {
		info.Status = models.FileStatusIndexed
		meta[id] = info
	}
	if err := storage.WriteMetadata(ctx, b.storage, companyID, meta); err != nil {
		b.logger.Warn("failed to update file statuses",
			zap.String("company_id", companyID),
			zap.Error(err),
		)
	}
}

// MaterializeFile indexes a single uploaded file into its own collection so
// file-scoped chat can run before (or without) a full company build.
func (b *Builder) MaterializeFile(ctx context.Context, companyID, fileID string) error {
	meta, err := storage.ReadMetadata(ctx, b.storage, companyID)
	if err != nil {
		return err
	}
	info, ok := meta[fileID]
	if !ok {
		return fmt.Errorf("%w: file %s for company %s", core.ErrNotFound, fileID, companyID)
	}

	chunks, err := b.loadFileChunks(ctx, companyID, info)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: file %s", core.ErrNoDocuments, fileID)
	}

	if err := b.index.CreateFileCollection(ctx, companyID, fileID, chunks); err != nil {
		if errors.Is(err, core.ErrProvider) && b.ring != nil {
			b.ring.Rotate()
		}
		return err
	}
	b.logger.Info("materialized file collection",
		zap.String("company_id", companyID),
		zap.String("file_id", fileID),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

// AppendFile adds one uploaded file's chunks to the company's collection
// without rebuilding it, so the document is queryable immediately. The
// collection is created when the company has never been built.
func (b *Builder) AppendFile(ctx context.Context, companyID, fileID string) error {
	meta, err := storage.ReadMetadata(ctx, b.storage, companyID)
	if err != nil {
		return err
	}
	info, ok := meta[fileID]
	if !ok {
		return fmt.Errorf("%w: file %s for company %s", core.ErrNotFound, fileID, companyID)
	}

	chunks, err := b.loadFileChunks(ctx, companyID, info)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: file %s", core.ErrNoDocuments, fileID)
	}

	if err := b.index.AppendCompany(ctx, companyID, chunks); err != nil {
		if errors.Is(err, core.ErrProvider) && b.ring != nil {
			b.ring.Rotate()
		}
		return err
	}

	info.Status = models.FileStatusIndexed
	meta[fileID] = info
	if err := storage.WriteMetadata(ctx, b.storage, companyID, meta); err != nil {
		b.logger.Warn("failed to update file status",
			zap.String("company_id", companyID),
			zap.String("file_id", fileID),
			zap.Error(err),
		)
	}

	b.logger.Info("appended file to company index",
		zap.String("company_id", companyID),
		zap.String("file_id", fileID),
		zap.Int("chunks", len(chunks)),
	)
	return nil
}

func trimDot(ext string) string {
	if len(ext) > 0 && ext[0] == '.' {
		return ext[1:]
	}
	return ext
}
