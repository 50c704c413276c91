package models

import (
	"time"
)

// FileStatus tracks a document through the ingestion lifecycle.
type FileStatus string

const (
	FileStatusUploaded   FileStatus = "uploaded"
	FileStatusProcessing FileStatus = "processing"
	FileStatusIndexed    FileStatus = "indexed"
	FileStatusError      FileStatus = "error"
)

// BuildState is the state of a company's knowledge-base build.
type BuildState string

const (
	BuildIdle      BuildState = "idle"
	BuildBuilding  BuildState = "building"
	BuildCompleted BuildState = "completed"
	BuildError     BuildState = "error"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// FileInfo is the metadata record kept for every uploaded document.
// Records are persisted per company as a metadata.json map keyed by FileID.
type FileInfo struct {
	FileID           string     `json:"file_id"`
	Filename         string     `json:"filename"` // stored name: <file_id><ext>
	OriginalFilename string     `json:"original_filename"`
	CompanyID        string     `json:"company_id"`
	Size             int64      `json:"size"`
	Extension        string     `json:"extension"`
	Status           FileStatus `json:"status"`
	CreatedAt        time.Time  `json:"created_at"`
}

// BuildStatus reports the progress of a company knowledge-base build.
// Progress is advisory, 0.0 to 1.0; only the latest build is retained.
type BuildStatus struct {
	Status    BuildState `json:"status"`
	Message   string     `json:"message"`
	CompanyID string     `json:"company_id,omitempty"`
	Progress  float64    `json:"progress"`
	Timestamp time.Time  `json:"timestamp"`
}

// ChatMessage is one turn in a chat session transcript.
type ChatMessage struct {
	Message   string    `json:"message"`
	Sender    string    `json:"sender"` // "user" or "bot"
	SessionID string    `json:"session_id"`
	CompanyID string    `json:"company_id"`
	Timestamp time.Time `json:"timestamp"`
}

// CompanyInfo summarizes a company namespace for listing endpoints.
type CompanyInfo struct {
	CompanyID   string     `json:"company_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	FileCount   int        `json:"file_count"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

// Answer is the result of a knowledge-base query: the composed response
// plus the deduplicated originating file ids of the retrieved chunks.
type Answer struct {
	Response string   `json:"response"`
	Sources  []string `json:"sources"`
	FileID   string   `json:"file_id,omitempty"`
	Filename string   `json:"filename,omitempty"`
}
