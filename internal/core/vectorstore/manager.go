package vectorstore

import (
	"context"

	"go.uber.org/zap"
)

// Manager scopes a Store to per-company and per-file collections so callers
// never touch raw collection names.
type Manager struct {
	store  Store
	logger *zap.Logger
}

func NewManager(store Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, logger: logger}
}

// RebuildCompany replaces the company's collection wholesale. A build is
// always a full re-index, so any existing collection is dropped first.
func (m *Manager) RebuildCompany(ctx context.Context, companyID string, chunks []Chunk) error {
	name := CompanyCollection(companyID)
	if err := m.store.DeleteCollection(ctx, name); err != nil {
		return err
	}
	m.logger.Info("rebuilding company collection",
		zap.String("company_id", companyID),
		zap.Int("chunks", len(chunks)),
	)
	return m.store.CreateCollection(ctx, name, chunks)
}

// AppendCompany adds chunks to the company's collection without touching
// the documents already indexed, creating the collection when the company
// has never been built.
func (m *Manager) AppendCompany(ctx context.Context, companyID string, chunks []Chunk) error {
	m.logger.Info("appending to company collection",
		zap.String("company_id", companyID),
		zap.Int("chunks", len(chunks)),
	)
	return m.store.AppendToCollection(ctx, CompanyCollection(companyID), chunks)
}

func (m *Manager) QueryCompany(ctx context.Context, companyID string, query string, k int) ([]SearchResult, error) {
	return m.store.Query(ctx, CompanyCollection(companyID), query, k)
}

func (m *Manager) CompanyStats(ctx context.Context, companyID string) (CollectionStats, error) {
	return m.store.Stats(ctx, CompanyCollection(companyID))
}

func (m *Manager) DeleteCompany(ctx context.Context, companyID string) error {
	return m.store.DeleteCollection(ctx, CompanyCollection(companyID))
}

// CreateFileCollection indexes a single file into its own collection,
// replacing any previous contents for that file.
func (m *Manager) CreateFileCollection(ctx context.Context, companyID, fileID string, chunks []Chunk) error {
	name := FileCollection(companyID, fileID)
	if err := m.store.DeleteCollection(ctx, name); err != nil {
		return err
	}
	return m.store.CreateCollection(ctx, name, chunks)
}

func (m *Manager) QueryFile(ctx context.Context, companyID, fileID string, query string, k int) ([]SearchResult, error) {
	return m.store.Query(ctx, FileCollection(companyID, fileID), query, k)
}

// FileCollectionEmpty reports whether the file's collection is missing or
// holds no documents, in which case it must be materialized before querying.
func (m *Manager) FileCollectionEmpty(ctx context.Context, companyID, fileID string) (bool, error) {
	stats, err := m.store.Stats(ctx, FileCollection(companyID, fileID))
	if err != nil {
		return false, err
	}
	return stats.Count == 0, nil
}

func (m *Manager) DeleteFile(ctx context.Context, companyID, fileID string) error {
	return m.store.DeleteCollection(ctx, FileCollection(companyID, fileID))
}
