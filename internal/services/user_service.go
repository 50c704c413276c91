package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/xenyhq/ragserve/internal/core"
	"github.com/xenyhq/ragserve/internal/models"
)

// userRecord is the on-disk shape; models.User hides the hash from JSON so
// persistence needs its own struct.
type userRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserService manages accounts in a users.json file next to the data
// directory. Suitable for the small operator-facing user set this service
// carries.
type UserService struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

func NewUserService(path string, logger *zap.Logger) (*UserService, error) {
	if path == "" {
		return nil, fmt.Errorf("users file path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating users directory: %w", err)
	}
	return &UserService{path: path, logger: logger}, nil
}

func (s *UserService) Register(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", core.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return nil, err
	}
	if _, exists := users[email]; exists {
		return nil, fmt.Errorf("%w: user %s already exists", core.ErrValidation, email)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	rec := userRecord{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	users[email] = rec
	if err := s.save(users); err != nil {
		return nil, err
	}

	s.logger.Info("registered user", zap.String("email", email))
	return recordToUser(rec), nil
}

func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.load()
	if err != nil {
		return nil, err
	}
	rec, ok := users[email]
	if !ok {
		return nil, fmt.Errorf("%w: unknown user", core.ErrNotFound)
	}
	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
		return nil, fmt.Errorf("%w: invalid credentials", core.ErrValidation)
	}
	return recordToUser(rec), nil
}

func (s *UserService) load() (map[string]userRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]userRecord{}, nil
		}
		return nil, fmt.Errorf("reading users file: %w", err)
	}

	users := map[string]userRecord{}
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("parsing users file: %w", err)
	}
	return users, nil
}

func (s *UserService) save(users map[string]userRecord) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding users: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing users file: %w", err)
	}
	return nil
}

func recordToUser(rec userRecord) *models.User {
	return &models.User{
		ID:           rec.ID,
		Email:        rec.Email,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    rec.CreatedAt,
	}
}
