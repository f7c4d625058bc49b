package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vantor-labs/vantor/internal/domain"
	"github.com/vantor-labs/vantor/internal/pagination"
	"github.com/vantor-labs/vantor/internal/telemetry"
)

// KnowledgeRepositoryInterface defines the repository interface for knowledge item persistence
type KnowledgeRepositoryInterface interface {
	Create(ctx context.Context, item *domain.KnowledgeItem) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.KnowledgeItem, error)
	ListByWorkspaceWithCursor(ctx context.Context, workspaceID string, cursor *pagination.Cursor, limit int) (*KnowledgePageResult, error)
	UpdateStatus(ctx context.Context, id string, status domain.KnowledgeStatus) error
	Delete(ctx context.Context, id string) error
}

// KnowledgePageResult is one page of knowledge items.
type KnowledgePageResult struct {
	Items      []*domain.KnowledgeItem
	NextCursor string
	HasMore    bool
}

// IngestJobRepositoryInterface defines the repository interface for ingestion job persistence
type IngestJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IngestJob) error
}

// DocumentStore persists raw uploaded payloads for file-backed knowledge
// items. The extracted plain text always lives in the knowledge repository;
// the original bytes are parked here.
type DocumentStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// ChunkDeleter removes the chunks derived from a knowledge item.
type ChunkDeleter interface {
	DeleteForItem(ctx context.Context, knowledgeItemID string) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// KnowledgeService handles the lifecycle of knowledge items: creation in
// processing state, ingestion job queueing, and cascade deletion of chunks.
type KnowledgeService struct {
	repo      KnowledgeRepositoryInterface
	jobRepo   IngestJobRepositoryInterface
	chunks    ChunkDeleter
	documents DocumentStore
	uuidGen   UUIDGenerator
}

// NewKnowledgeService creates a new KnowledgeService instance. documents may
// be nil when no object storage is configured.
func NewKnowledgeService(repo KnowledgeRepositoryInterface, jobRepo IngestJobRepositoryInterface, chunks ChunkDeleter, documents DocumentStore) *KnowledgeService {
	return &KnowledgeService{
		repo:      repo,
		jobRepo:   jobRepo,
		chunks:    chunks,
		documents: documents,
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// NewKnowledgeServiceWithUUIDGen creates a KnowledgeService with a custom UUID generator (for testing)
func NewKnowledgeServiceWithUUIDGen(repo KnowledgeRepositoryInterface, jobRepo IngestJobRepositoryInterface, chunks ChunkDeleter, documents DocumentStore, uuidGen UUIDGenerator) *KnowledgeService {
	s := NewKnowledgeService(repo, jobRepo, chunks, documents)
	s.uuidGen = uuidGen
	return s
}

// CreateInput represents the input for creating a knowledge item
type CreateInput struct {
	WorkspaceID string
	Type        domain.KnowledgeType
	Name        string
	Content     string
	// Payload holds the raw uploaded bytes for file-backed items; nil
	// otherwise. Content must already be the extracted plain text.
	Payload     []byte
	ContentType string
}

// ListInput selects a page of a workspace's knowledge items.
type ListInput struct {
	WorkspaceID string
	Cursor      string
	Limit       int
}

// ListOutput is a page of knowledge items with continuation state.
type ListOutput struct {
	Items   []*domain.KnowledgeItem
	Cursor  string
	HasMore bool
}

// Create creates a knowledge item in processing state and queues its
// ingestion job. For file-backed items the raw payload is parked in the
// document store first.
func (s *KnowledgeService) Create(ctx context.Context, input CreateInput) (*domain.KnowledgeItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Create", telemetry.SpanAttributes{
		WorkspaceID: input.WorkspaceID,
		Operation:   "create",
	})
	defer span.End()

	now := time.Now().UTC()
	item := domain.NewKnowledgeItem(s.uuidGen.NewString(), input.WorkspaceID, input.Type, input.Name, input.Content, now)

	if err := domain.ValidateKnowledgeItem(item); err != nil {
		return nil, err
	}

	if len(input.Payload) > 0 {
		if s.documents == nil {
			return nil, domain.NewDomainError(domain.ErrCodeInvalidOperation, "document storage is not configured")
		}
		key := fmt.Sprintf("%s/%s/%s", input.WorkspaceID, item.ID, input.Name)
		if err := s.documents.Put(ctx, key, input.Payload, input.ContentType); err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to store document payload", err)
		}
		item.StorageKey = key
	}

	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}

	job := domain.NewIngestJob(s.uuidGen.NewString(), item.ID, now)
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	return item, nil
}

// GetByID retrieves a knowledge item by ID
func (s *KnowledgeService) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves a page of a workspace's knowledge items.
func (s *KnowledgeService) List(ctx context.Context, input ListInput) (*ListOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.List", telemetry.SpanAttributes{
		WorkspaceID: input.WorkspaceID,
		Operation:   "list",
	})
	defer span.End()

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	page, err := s.repo.ListByWorkspaceWithCursor(ctx, input.WorkspaceID, cursor, input.Limit)
	if err != nil {
		return nil, err
	}

	return &ListOutput{
		Items:   page.Items,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	}, nil
}

// Delete removes a knowledge item, cascading to its chunks and any stored
// raw payload.
func (s *KnowledgeService) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Delete", telemetry.SpanAttributes{
		KnowledgeID: id,
		Operation:   "delete",
	})
	defer span.End()

	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.chunks.DeleteForItem(ctx, item.ID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}

	if item.StorageKey != "" && s.documents != nil {
		if err := s.documents.Delete(ctx, item.StorageKey); err != nil {
			// The item record is still removed; orphaned payloads are
			// reclaimed by bucket lifecycle rules.
			span.SetError(err)
		}
	}

	return s.repo.Delete(ctx, item.ID)
}
