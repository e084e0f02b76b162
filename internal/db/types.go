package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/handle-crawler/internal/types"
)

// Run represents a crawl run record
type Run struct {
	ID           uuid.UUID       `json:"id"`
	DirectoryURL string          `json:"directory_url"`
	Status       string          `json:"status"`
	Stats        *types.RunStats `json:"stats,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// Run status values
const (
	RunStatusRunning     = "running"
	RunStatusDone        = "done"
	RunStatusFailed      = "failed"
	RunStatusInterrupted = "interrupted"
)
