package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/xenyhq/ragserve/internal/core"
)

// LocalStorage keeps company documents on the local filesystem under a root
// data directory, one subdirectory per company.
type LocalStorage struct {
	root   string
	logger *zap.Logger
}

func NewLocalStorage(root string, logger *zap.Logger) (*LocalStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", root, err)
	}
	return &LocalStorage{root: root, logger: logger}, nil
}

// companyDir resolves the company's directory, rejecting IDs that would
// escape the data root.
func (s *LocalStorage) companyDir(companyID string) (string, error) {
	if companyID == "" || strings.ContainsAny(companyID, `/\`) || strings.Contains(companyID, "..") {
		return "", fmt.Errorf("invalid company id %q", companyID)
	}
	return filepath.Join(s.root, companyID), nil
}

func (s *LocalStorage) filePath(companyID, filename string) (string, error) {
	dir, err := s.companyDir(companyID)
	if err != nil {
		return "", err
	}
	if filename == "" || filename != filepath.Base(filename) {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return filepath.Join(dir, filename), nil
}

func (s *LocalStorage) SaveFile(ctx context.Context, companyID, filename string, data []byte) error {
	path, err := s.filePath(companyID, filename)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating company directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	s.logger.Debug("saved file",
		zap.String("company_id", companyID),
		zap.String("filename", filename),
		zap.Int("bytes", len(data)),
	)
	return nil
}

func (s *LocalStorage) ReadFile(ctx context.Context, companyID, filename string) ([]byte, error) {
	path, err := s.filePath(companyID, filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s", core.ErrNotFound, companyID, filename)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func (s *LocalStorage) ListFiles(ctx context.Context, companyID string) ([]string, error) {
	dir, err := s.companyDir(companyID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	out := []string{}
	for _, e := range entries {
		if e.IsDir() || IsMetadataFile(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

func (s *LocalStorage) DeleteFile(ctx context.Context, companyID, filename string) error {
	path, err := s.filePath(companyID, filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s/%s", core.ErrNotFound, companyID, filename)
		}
		return fmt.Errorf("deleting %s: %w", path, err)
	}
	return nil
}

func (s *LocalStorage) ListCompanies(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.root, err)
	}
	out := []string{}
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *LocalStorage) CompanyExists(ctx context.Context, companyID string) (bool, error) {
	dir, err := s.companyDir(companyID)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (s *LocalStorage) DeleteCompany(ctx context.Context, companyID string) error {
	dir, err := s.companyDir(companyID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting company directory %s: %w", dir, err)
	}
	s.logger.Info("deleted company directory", zap.String("company_id", companyID))
	return nil
}

var _ Storage = (*LocalStorage)(nil)
