package domain

import (
	"fmt"
	"time"
)

// Paper represents a research paper record. ID is the upstream archive
// identifier (e.g. "2301.04567"), not a surrogate key.
type Paper struct {
	ID            string
	Title         string
	Authors       string
	Abstract      string
	Categories    []string
	PublishedDate *time.Time
	PDFURL        string
	FullText      string
	Version       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewPaper creates a new Paper instance
func NewPaper(id, title, authors, abstract string, createdAt time.Time) *Paper {
	return &Paper{
		ID:        id,
		Title:     title,
		Authors:   authors,
		Abstract:  abstract,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// CorpusStats summarizes the ingested corpus for the stats endpoint.
type CorpusStats struct {
	PaperCount        int `json:"paper_count"`
	ChunkCount        int `json:"chunk_count"`
	EmbeddedPapers    int `json:"embedded_papers"`
	ConversationCount int `json:"conversation_count"`
	PendingJobs       int `json:"pending_jobs"`
}

// ValidatePaper validates a Paper instance
func ValidatePaper(p *Paper) error {
	if p == nil {
		return fmt.Errorf("paper cannot be nil")
	}

	if p.ID == "" {
		return fmt.Errorf("paper ID is required")
	}

	if p.Title == "" {
		return fmt.Errorf("paper Title is required")
	}

	if p.Abstract == "" && p.FullText == "" {
		return fmt.Errorf("paper must have an Abstract or FullText")
	}

	return nil
}
