package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenyhq/ragserve/internal/core"
	"github.com/xenyhq/ragserve/internal/core/ingestion"
	"github.com/xenyhq/ragserve/internal/core/storage"
	"github.com/xenyhq/ragserve/internal/core/vectorstore"
	"github.com/xenyhq/ragserve/internal/models"
)

// MaxFileSize caps uploads at 50MB.
const MaxFileSize = 50 << 20

// DocumentService owns the document lifecycle: validated upload, metadata
// bookkeeping, and the cascade when files or whole companies are removed.
type DocumentService struct {
	storage storage.Storage
	index   *vectorstore.Manager
	builder *ingestion.Builder
	logger  *zap.Logger
}

func NewDocumentService(st storage.Storage, index *vectorstore.Manager, builder *ingestion.Builder, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{storage: st, index: index, builder: builder, logger: logger}
}

// Upload validates and stores a document, records its metadata, and returns
// the file record. Indexing is the caller's concern.
func (s *DocumentService) Upload(ctx context.Context, companyID, originalFilename string, data []byte) (models.FileInfo, error) {
	ext := strings.ToLower(filepath.Ext(originalFilename))
	if !ingestion.ExtensionAllowed(ext) {
		return models.FileInfo{}, fmt.Errorf("%w: file type %s not allowed", core.ErrValidation, ext)
	}
	if len(data) == 0 {
		return models.FileInfo{}, fmt.Errorf("%w: empty file", core.ErrValidation)
	}
	if len(data) > MaxFileSize {
		return models.FileInfo{}, fmt.Errorf("%w: file exceeds %d bytes", core.ErrValidation, MaxFileSize)
	}
	if ext == ".json" && !json.Valid(data) {
		return models.FileInfo{}, fmt.Errorf("%w: invalid JSON content", core.ErrValidation)
	}

	fileID := uuid.NewString()
	info := models.FileInfo{
		FileID:           fileID,
		Filename:         fileID + ext,
		OriginalFilename: originalFilename,
		CompanyID:        companyID,
		Size:             int64(len(data)),
		Extension:        ext,
		Status:           models.FileStatusUploaded,
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.storage.SaveFile(ctx, companyID, info.Filename, data); err != nil {
		return models.FileInfo{}, err
	}

	meta, err := storage.ReadMetadata(ctx, s.storage, companyID)
	if err != nil {
		return models.FileInfo{}, err
	}
	meta[fileID] = info
	if err := storage.WriteMetadata(ctx, s.storage, companyID, meta); err != nil {
		return models.FileInfo{}, err
	}

	s.logger.Info("uploaded file",
		zap.String("company_id", companyID),
		zap.String("file_id", fileID),
		zap.String("original_filename", originalFilename),
		zap.Int64("size", info.Size),
	)
	return info, nil
}

func (s *DocumentService) ListFiles(ctx context.Context, companyID string) ([]models.FileInfo, error) {
	meta, err := storage.ReadMetadata(ctx, s.storage, companyID)
	if err != nil {
		return nil, err
	}

	out := make([]models.FileInfo, 0, len(meta))
	for _, info := range meta {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *DocumentService) GetFile(ctx context.Context, companyID, fileID string) (models.FileInfo, error) {
	meta, err := storage.ReadMetadata(ctx, s.storage, companyID)
	if err != nil {
		return models.FileInfo{}, err
	}
	info, ok := meta[fileID]
	if !ok {
		return models.FileInfo{}, fmt.Errorf("%w: file %s for company %s", core.ErrNotFound, fileID, companyID)
	}
	return info, nil
}

// DeleteFile removes the stored file, its metadata entry and its dedicated
// collection. The company-level index keeps the file's chunks until the
// next rebuild.
func (s *DocumentService) DeleteFile(ctx context.Context, companyID, fileID string) error {
	info, err := s.GetFile(ctx, companyID, fileID)
	if err != nil {
		return err
	}

	if err := s.storage.DeleteFile(ctx, companyID, info.Filename); err != nil && !isNotFound(err) {
		return err
	}

	meta, err := storage.ReadMetadata(ctx, s.storage, companyID)
	if err != nil {
		return err
	}
	delete(meta, fileID)
	if err := storage.WriteMetadata(ctx, s.storage, companyID, meta); err != nil {
		return err
	}

	if err := s.index.DeleteFile(ctx, companyID, fileID); err != nil {
		s.logger.Warn("failed to drop file collection",
			zap.String("company_id", companyID),
			zap.String("file_id", fileID),
			zap.Error(err),
		)
	}
	return nil
}

// FindCompanyByFileID scans company metadata for the owner of a file id, so
// file-scoped chat can omit the company.
func (s *DocumentService) FindCompanyByFileID(ctx context.Context, fileID string) (string, models.FileInfo, error) {
	companies, err := s.storage.ListCompanies(ctx)
	if err != nil {
		return "", models.FileInfo{}, err
	}
	for _, companyID := range companies {
		meta, err := storage.ReadMetadata(ctx, s.storage, companyID)
		if err != nil {
			continue
		}
		if info, ok := meta[fileID]; ok {
			return companyID, info, nil
		}
	}
	return "", models.FileInfo{}, fmt.Errorf("%w: file %s", core.ErrNotFound, fileID)
}

// CreateCompany provisions the company's namespace. Creating an existing
// company is not an error; it returns the current view.
func (s *DocumentService) CreateCompany(ctx context.Context, companyID, name, description string) (models.CompanyInfo, error) {
	if strings.TrimSpace(companyID) == "" {
		return models.CompanyInfo{}, fmt.Errorf("%w: company_id is required", core.ErrValidation)
	}

	meta, err := storage.ReadMetadata(ctx, s.storage, companyID)
	if err != nil {
		return models.CompanyInfo{}, err
	}

	// Files already present in storage but absent from the catalog (for
	// example dropped in out of band) are registered on create.
	if exists, err := s.storage.CompanyExists(ctx, companyID); err == nil && exists {
		names, err := s.storage.ListFiles(ctx, companyID)
		if err != nil {
			return models.CompanyInfo{}, err
		}
		for _, stored := range names {
			ext := filepath.Ext(stored)
			fileID := strings.TrimSuffix(stored, ext)
			if _, ok := meta[fileID]; ok {
				continue
			}
			meta[fileID] = models.FileInfo{
				FileID:           fileID,
				Filename:         stored,
				OriginalFilename: stored,
				CompanyID:        companyID,
				Extension:        ext,
				Status:           models.FileStatusUploaded,
				CreatedAt:        time.Now().UTC(),
			}
		}
	}

	if err := storage.WriteMetadata(ctx, s.storage, companyID, meta); err != nil {
		return models.CompanyInfo{}, err
	}

	if name == "" {
		name = companyID
	}
	return models.CompanyInfo{
		CompanyID:   companyID,
		Name:        name,
		Description: description,
		CreatedAt:   time.Now().UTC(),
		FileCount:   len(meta),
	}, nil
}

func (s *DocumentService) GetCompany(ctx context.Context, companyID string) (models.CompanyInfo, error) {
	exists, err := s.storage.CompanyExists(ctx, companyID)
	if err != nil {
		return models.CompanyInfo{}, err
	}
	if !exists {
		return models.CompanyInfo{}, fmt.Errorf("%w: company %s", core.ErrNotFound, companyID)
	}

	files, err := s.ListFiles(ctx, companyID)
	if err != nil {
		return models.CompanyInfo{}, err
	}

	info := models.CompanyInfo{
		CompanyID: companyID,
		Name:      companyID,
		FileCount: len(files),
	}
	if len(files) > 0 {
		info.CreatedAt = files[0].CreatedAt
		last := files[len(files)-1].CreatedAt
		info.LastUpdated = &last
	}
	return info, nil
}

func (s *DocumentService) ListCompanies(ctx context.Context) ([]models.CompanyInfo, error) {
	ids, err := s.storage.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.CompanyInfo, 0, len(ids))
	for _, id := range ids {
		info, err := s.GetCompany(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// DeleteCompany cascades: vector collections, stored files and metadata,
// and the build status slot.
func (s *DocumentService) DeleteCompany(ctx context.Context, companyID string) error {
	exists, err := s.storage.CompanyExists(ctx, companyID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: company %s", core.ErrNotFound, companyID)
	}

	meta, err := storage.ReadMetadata(ctx, s.storage, companyID)
	if err == nil {
		for fileID := range meta {
			if err := s.index.DeleteFile(ctx, companyID, fileID); err != nil {
				s.logger.Warn("failed to drop file collection during cascade",
					zap.String("company_id", companyID),
					zap.String("file_id", fileID),
					zap.Error(err),
				)
			}
		}
	}

	if err := s.index.DeleteCompany(ctx, companyID); err != nil {
		return err
	}
	if err := s.storage.DeleteCompany(ctx, companyID); err != nil {
		return err
	}
	s.builder.ForgetStatus(companyID)

	s.logger.Info("deleted company", zap.String("company_id", companyID))
	return nil
}

// IndexStats reports the company's collection state alongside file counts.
func (s *DocumentService) IndexStats(ctx context.Context, companyID string) (vectorstore.CollectionStats, int, error) {
	stats, err := s.index.CompanyStats(ctx, companyID)
	if err != nil {
		return vectorstore.CollectionStats{}, 0, err
	}
	files, err := s.ListFiles(ctx, companyID)
	if err != nil {
		return vectorstore.CollectionStats{}, 0, err
	}
	return stats, len(files), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
