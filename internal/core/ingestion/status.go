package ingestion

import (
	"sync"
	"time"

	"github.com/xenyhq/ragserve/internal/models"
)

// StatusStore tracks the latest build status per company. TryStart is the
// only entry point for starting a build, so the building check and the
// transition to building happen under one lock.
type StatusStore struct {
	mu       sync.Mutex
	statuses map[string]models.BuildStatus
}

func NewStatusStore() *StatusStore {
	return &StatusStore{statuses: map[string]models.BuildStatus{}}
}

// TryStart atomically claims the build slot for a company. It returns false
// when a build is already in flight.
func (s *StatusStore) TryStart(companyID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.statuses[companyID]; ok && cur.Status == models.BuildBuilding {
		return false
	}
	s.statuses[companyID] = models.BuildStatus{
		Status:    models.BuildBuilding,
		Message:   "Starting knowledge base build...",
		CompanyID: companyID,
		Progress:  0,
		Timestamp: time.Now().UTC(),
	}
	return true
}

func (s *StatusStore) Update(companyID, message string, progress float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.statuses[companyID]
	cur.Status = models.BuildBuilding
	cur.Message = message
	cur.CompanyID = companyID
	cur.Progress = progress
	cur.Timestamp = time.Now().UTC()
	s.statuses[companyID] = cur
}

func (s *StatusStore) Finish(companyID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[companyID] = models.BuildStatus{
		Status:    models.BuildCompleted,
		Message:   message,
		CompanyID: companyID,
		Progress:  1.0,
		Timestamp: time.Now().UTC(),
	}
}

func (s *StatusStore) Fail(companyID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.statuses[companyID]
	s.statuses[companyID] = models.BuildStatus{
		Status:    models.BuildError,
		Message:   message,
		CompanyID: companyID,
		Progress:  cur.Progress,
		Timestamp: time.Now().UTC(),
	}
}

// Get returns the latest status. Companies that never built report idle.
func (s *StatusStore) Get(companyID string) models.BuildStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.statuses[companyID]; ok {
		return cur
	}
	return models.BuildStatus{
		Status:    models.BuildIdle,
		Message:   "No build has been started",
		CompanyID: companyID,
		Timestamp: time.Now().UTC(),
	}
}

func (s *StatusStore) Delete(companyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.statuses, companyID)
}
