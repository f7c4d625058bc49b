package domain

import "time"

// IngestJobStatus represents the status of an ingestion job
type IngestJobStatus string

const (
	IngestJobStatusPending   IngestJobStatus = "pending"
	IngestJobStatusCompleted IngestJobStatus = "completed"
	IngestJobStatusFailed    IngestJobStatus = "failed"
)

// IngestJob represents a queued ingestion pass over a knowledge item:
// chunking, embedding and chunk storage. Jobs run once; a failed job marks
// its item as errored and is not retried.
type IngestJob struct {
	ID              string
	KnowledgeItemID string
	Status          IngestJobStatus
	Error           string
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}

// NewIngestJob creates a new pending IngestJob instance
func NewIngestJob(id, knowledgeItemID string, createdAt time.Time) *IngestJob {
	return &IngestJob{
		ID:              id,
		KnowledgeItemID: knowledgeItemID,
		Status:          IngestJobStatusPending,
		CreatedAt:       createdAt,
	}
}

// IsValidIngestJobStatus checks if an IngestJobStatus is valid
func IsValidIngestJobStatus(s IngestJobStatus) bool {
	switch s {
	case IngestJobStatusPending, IngestJobStatusCompleted, IngestJobStatusFailed:
		return true
	}
	return false
}
