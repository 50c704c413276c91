// Package storage persists raw uploaded documents and their per-company
// metadata. Files for a company live in a flat namespace under the company
// ID; metadata.json in that namespace maps file IDs to file records.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xenyhq/ragserve/internal/core"
	"github.com/xenyhq/ragserve/internal/models"
)

const metadataFile = "metadata.json"

// Storage abstracts where company documents live. Local disk and S3
// implementations are provided; which one runs is a config choice.
type Storage interface {
	SaveFile(ctx context.Context, companyID, filename string, data []byte) error
	ReadFile(ctx context.Context, companyID, filename string) ([]byte, error)
	ListFiles(ctx context.Context, companyID string) ([]string, error)
	DeleteFile(ctx context.Context, companyID, filename string) error

	ListCompanies(ctx context.Context) ([]string, error)
	CompanyExists(ctx context.Context, companyID string) (bool, error)
	DeleteCompany(ctx context.Context, companyID string) error
}

// ReadMetadata loads the company's file-ID index. A missing metadata file
// yields an empty map.
func ReadMetadata(ctx context.Context, s Storage, companyID string) (map[string]models.FileInfo, error) {
	data, err := s.ReadFile(ctx, companyID, metadataFile)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return map[string]models.FileInfo{}, nil
		}
		return nil, err
	}

	out := map[string]models.FileInfo{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing metadata for %s: %w", companyID, err)
	}
	return out, nil
}

func WriteMetadata(ctx context.Context, s Storage, companyID string, meta map[string]models.FileInfo) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", companyID, err)
	}
	return s.SaveFile(ctx, companyID, metadataFile, data)
}

// IsMetadataFile reports whether a stored name is the metadata index rather
// than an uploaded document.
func IsMetadataFile(name string) bool {
	return name == metadataFile
}
