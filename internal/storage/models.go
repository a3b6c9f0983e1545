package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidFaq is returned when an FAQ entry is empty after normalization
// or carries an unknown source tag.
var ErrInvalidFaq = errors.New("invalid faq entry")

// FaqSource records where an FAQ entry came from.
type FaqSource string

const (
	SourceManual       FaqSource = "manual"
	SourcePDF          FaqSource = "pdf"
	SourceConversation FaqSource = "conversation"
)

// Valid reports whether s is one of the known source tags.
func (s FaqSource) Valid() bool {
	switch s {
	case SourceManual, SourcePDF, SourceConversation:
		return true
	}
	return false
}

// MemoryTurn is one completed user/assistant exchange. Turns are append-only.
type MemoryTurn struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

// FaqEntry is one knowledge-base fact shared by every user's prompts.
type FaqEntry struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Source    FaqSource `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// AvailabilityFlag is the singleton switch gating the assistant.
type AvailabilityFlag struct {
	Enabled   bool      `json:"enabled"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Job types processed by the ingest worker.
const (
	JobFaqExtract = "faq_extract"
	JobFaqLearn   = "faq_learn"
)

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// ExtractPayload is the payload of a faq_extract job.
type ExtractPayload struct {
	Document string `json:"document"`
}

// LearnPayload is the payload of a faq_learn job.
type LearnPayload struct {
	TurnID   string `json:"turn_id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
