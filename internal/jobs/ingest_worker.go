package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/vantor-labs/vantor/internal/domain"
)

const (
	// DefaultBatchSize is the maximum number of jobs picked up per poll
	DefaultBatchSize = 10
)

// IngestJobStore defines the interface for ingestion job persistence
type IngestJobStore interface {
	// GetPending retrieves pending ingestion jobs, oldest first
	GetPending(ctx context.Context, limit int) ([]*domain.IngestJob, error)

	// MarkCompleted records a successful processing attempt
	MarkCompleted(ctx context.Context, id string) error

	// MarkFailed records a failed processing attempt
	MarkFailed(ctx context.Context, id, errMsg string) error
}

// KnowledgeStore defines the knowledge item operations the worker needs
type KnowledgeStore interface {
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	UpdateStatus(ctx context.Context, id string, status domain.KnowledgeStatus) error
}

// ChunkIngester chunks, embeds and stores a knowledge item's content
type ChunkIngester interface {
	ProcessAndStore(ctx context.Context, item *domain.KnowledgeItem) (int, error)
	DeleteForItem(ctx context.Context, knowledgeItemID string) error
}

// IngestWorker processes ingestion jobs. Each job runs exactly once: a
// failure marks both the job and its knowledge item as failed without
// scheduling a retry.
type IngestWorker struct {
	jobs      IngestJobStore
	knowledge KnowledgeStore
	ingester  ChunkIngester
	batchSize int
}

// NewIngestWorker creates a new IngestWorker instance
func NewIngestWorker(jobs IngestJobStore, knowledge KnowledgeStore, ingester ChunkIngester) *IngestWorker {
	return &IngestWorker{
		jobs:      jobs,
		knowledge: knowledge,
		ingester:  ingester,
		batchSize: DefaultBatchSize,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.jobs.GetPending(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending ingestion jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *IngestWorker) processJob(ctx context.Context, job *domain.IngestJob) error {
	item, err := w.knowledge.GetByID(ctx, job.KnowledgeItemID)
	if err != nil {
		// The item was deleted between enqueue and pickup
		if markErr := w.jobs.MarkFailed(ctx, job.ID, "knowledge item no longer exists"); markErr != nil {
			return fmt.Errorf("failed to mark orphaned job as failed: %w", markErr)
		}
		return nil
	}

	// Drop any chunks left behind by an interrupted earlier run so that
	// re-processing the same item never duplicates them
	if err := w.ingester.DeleteForItem(ctx, item.ID); err != nil {
		return w.handleJobFailure(ctx, job, item, err)
	}

	count, err := w.ingester.ProcessAndStore(ctx, item)
	if err != nil {
		return w.handleJobFailure(ctx, job, item, err)
	}

	if err := w.jobs.MarkCompleted(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to mark job as completed: %w", err)
	}

	if err := w.knowledge.UpdateStatus(ctx, item.ID, domain.KnowledgeStatusReady); err != nil {
		return fmt.Errorf("failed to mark knowledge item as ready: %w", err)
	}

	log.Printf("Job %s completed: %d chunks stored for item %s", job.ID, count, item.ID)
	return nil
}

func (w *IngestWorker) handleJobFailure(ctx context.Context, job *domain.IngestJob, item *domain.KnowledgeItem, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if err := w.jobs.MarkFailed(ctx, job.ID, jobErr.Error()); err != nil {
		return fmt.Errorf("failed to mark job as failed: %w", err)
	}

	if err := w.knowledge.UpdateStatus(ctx, item.ID, domain.KnowledgeStatusError); err != nil {
		return fmt.Errorf("failed to mark knowledge item as errored: %w", err)
	}

	return nil
}
