package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/vantor-labs/vantor/internal/domain"
)

// MockJobProcessor is a mock implementation of JobProcessor
type MockJobProcessor struct {
	mock.Mock
}

func (m *MockJobProcessor) ProcessJobs(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockIngestJobStore is a mock implementation of IngestJobStore
type MockIngestJobStore struct {
	mock.Mock
}

func (m *MockIngestJobStore) GetPending(ctx context.Context, limit int) ([]*domain.IngestJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.IngestJob), args.Error(1)
}

func (m *MockIngestJobStore) MarkCompleted(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockIngestJobStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	args := m.Called(ctx, id, errMsg)
	return args.Error(0)
}

// MockKnowledgeStore is a mock implementation of KnowledgeStore
type MockKnowledgeStore struct {
	mock.Mock
}

func (m *MockKnowledgeStore) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeStore) UpdateStatus(ctx context.Context, id string, status domain.KnowledgeStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

// MockChunkIngester is a mock implementation of ChunkIngester
type MockChunkIngester struct {
	mock.Mock
}

func (m *MockChunkIngester) ProcessAndStore(ctx context.Context, item *domain.KnowledgeItem) (int, error) {
	args := m.Called(ctx, item)
	return args.Int(0), args.Error(1)
}

func (m *MockChunkIngester) DeleteForItem(ctx context.Context, knowledgeItemID string) error {
	args := m.Called(ctx, knowledgeItemID)
	return args.Error(0)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockProcessor := new(MockJobProcessor)
	mockProcessor.On("ProcessJobs", mock.Anything).Return(nil)

	worker := NewWorker(mockProcessor, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockProcessor.AssertCalled(t, "ProcessJobs", mock.Anything)
}

func TestIngestWorker_ProcessJobs_NoPendingJobs(t *testing.T) {
	mockJobs := new(MockIngestJobStore)
	mockKnowledge := new(MockKnowledgeStore)
	mockIngester := new(MockChunkIngester)

	mockJobs.On("GetPending", mock.Anything, DefaultBatchSize).Return([]*domain.IngestJob{}, nil)

	worker := NewIngestWorker(mockJobs, mockKnowledge, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockJobs.AssertExpectations(t)
	mockIngester.AssertNotCalled(t, "ProcessAndStore", mock.Anything, mock.Anything)
}

func TestIngestWorker_ProcessJobs_Success(t *testing.T) {
	mockJobs := new(MockIngestJobStore)
	mockKnowledge := new(MockKnowledgeStore)
	mockIngester := new(MockChunkIngester)

	item := &domain.KnowledgeItem{
		ID:          "item-1",
		WorkspaceID: "ws-1",
		Type:        domain.KnowledgeTypeText,
		Status:      domain.KnowledgeStatusProcessing,
		Name:        "Return Policy",
		Content:     "Items may be returned within 30 days.",
	}
	job := &domain.IngestJob{ID: "job-1", KnowledgeItemID: "item-1", Status: domain.IngestJobStatusPending}

	mockJobs.On("GetPending", mock.Anything, DefaultBatchSize).Return([]*domain.IngestJob{job}, nil)
	mockKnowledge.On("GetByID", mock.Anything, "item-1").Return(item, nil)
	mockIngester.On("DeleteForItem", mock.Anything, "item-1").Return(nil)
	mockIngester.On("ProcessAndStore", mock.Anything, item).Return(3, nil)
	mockJobs.On("MarkCompleted", mock.Anything, "job-1").Return(nil)
	mockKnowledge.On("UpdateStatus", mock.Anything, "item-1", domain.KnowledgeStatusReady).Return(nil)

	worker := NewIngestWorker(mockJobs, mockKnowledge, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockJobs.AssertExpectations(t)
	mockKnowledge.AssertExpectations(t)
	mockIngester.AssertExpectations(t)
}

func TestIngestWorker_ProcessJobs_Failure(t *testing.T) {
	mockJobs := new(MockIngestJobStore)
	mockKnowledge := new(MockKnowledgeStore)
	mockIngester := new(MockChunkIngester)

	item := &domain.KnowledgeItem{ID: "item-1", WorkspaceID: "ws-1", Name: "Doc"}
	job := &domain.IngestJob{ID: "job-1", KnowledgeItemID: "item-1", Status: domain.IngestJobStatusPending}

	mockJobs.On("GetPending", mock.Anything, DefaultBatchSize).Return([]*domain.IngestJob{job}, nil)
	mockKnowledge.On("GetByID", mock.Anything, "item-1").Return(item, nil)
	mockIngester.On("DeleteForItem", mock.Anything, "item-1").Return(nil)
	mockIngester.On("ProcessAndStore", mock.Anything, item).Return(0, errors.New("embedding provider unreachable"))
	mockJobs.On("MarkFailed", mock.Anything, "job-1", "embedding provider unreachable").Return(nil)
	mockKnowledge.On("UpdateStatus", mock.Anything, "item-1", domain.KnowledgeStatusError).Return(nil)

	worker := NewIngestWorker(mockJobs, mockKnowledge, mockIngester)
	err := worker.ProcessJobs(context.Background())

	// A single failed job does not abort the polling pass
	assert.NoError(t, err)
	mockJobs.AssertExpectations(t)
	mockKnowledge.AssertExpectations(t)
	mockIngester.AssertExpectations(t)
}

func TestIngestWorker_ProcessJobs_OrphanedJob(t *testing.T) {
	mockJobs := new(MockIngestJobStore)
	mockKnowledge := new(MockKnowledgeStore)
	mockIngester := new(MockChunkIngester)

	job := &domain.IngestJob{ID: "job-1", KnowledgeItemID: "item-gone", Status: domain.IngestJobStatusPending}

	mockJobs.On("GetPending", mock.Anything, DefaultBatchSize).Return([]*domain.IngestJob{job}, nil)
	mockKnowledge.On("GetByID", mock.Anything, "item-gone").Return(nil, domain.ErrKnowledgeNotFound)
	mockJobs.On("MarkFailed", mock.Anything, "job-1", "knowledge item no longer exists").Return(nil)

	worker := NewIngestWorker(mockJobs, mockKnowledge, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockJobs.AssertExpectations(t)
	mockIngester.AssertNotCalled(t, "ProcessAndStore", mock.Anything, mock.Anything)
}

func TestIngestWorker_ProcessJobs_MultipleJobs(t *testing.T) {
	mockJobs := new(MockIngestJobStore)
	mockKnowledge := new(MockKnowledgeStore)
	mockIngester := new(MockChunkIngester)

	item1 := &domain.KnowledgeItem{ID: "item-1", WorkspaceID: "ws-1", Name: "One"}
	item2 := &domain.KnowledgeItem{ID: "item-2", WorkspaceID: "ws-1", Name: "Two"}
	jobList := []*domain.IngestJob{
		{ID: "job-1", KnowledgeItemID: "item-1", Status: domain.IngestJobStatusPending},
		{ID: "job-2", KnowledgeItemID: "item-2", Status: domain.IngestJobStatusPending},
	}

	mockJobs.On("GetPending", mock.Anything, DefaultBatchSize).Return(jobList, nil)

	mockKnowledge.On("GetByID", mock.Anything, "item-1").Return(item1, nil)
	mockIngester.On("DeleteForItem", mock.Anything, "item-1").Return(nil)
	mockIngester.On("ProcessAndStore", mock.Anything, item1).Return(2, nil)
	mockJobs.On("MarkCompleted", mock.Anything, "job-1").Return(nil)
	mockKnowledge.On("UpdateStatus", mock.Anything, "item-1", domain.KnowledgeStatusReady).Return(nil)

	mockKnowledge.On("GetByID", mock.Anything, "item-2").Return(item2, nil)
	mockIngester.On("DeleteForItem", mock.Anything, "item-2").Return(nil)
	mockIngester.On("ProcessAndStore", mock.Anything, item2).Return(5, nil)
	mockJobs.On("MarkCompleted", mock.Anything, "job-2").Return(nil)
	mockKnowledge.On("UpdateStatus", mock.Anything, "item-2", domain.KnowledgeStatusReady).Return(nil)

	worker := NewIngestWorker(mockJobs, mockKnowledge, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.NoError(t, err)
	mockJobs.AssertExpectations(t)
	mockKnowledge.AssertExpectations(t)
	mockIngester.AssertExpectations(t)
}

func TestIngestWorker_ProcessJobs_RepositoryError(t *testing.T) {
	mockJobs := new(MockIngestJobStore)
	mockKnowledge := new(MockKnowledgeStore)
	mockIngester := new(MockChunkIngester)

	mockJobs.On("GetPending", mock.Anything, DefaultBatchSize).Return(nil, errors.New("database error"))

	worker := NewIngestWorker(mockJobs, mockKnowledge, mockIngester)
	err := worker.ProcessJobs(context.Background())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch pending jobs")
	mockJobs.AssertExpectations(t)
}
