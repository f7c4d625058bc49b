package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockOpenAIAPI is a mock for the OpenAI API
type MockOpenAIAPI struct {
	mock.Mock
}

func (m *MockOpenAIAPI) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func TestClient_GenerateEmbedding_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, model: DefaultEmbeddingModel, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	text := "Items may be returned within 30 days of purchase."
	expectedEmbedding := make([]float32, DefaultEmbeddingDimensions)
	for i := range expectedEmbedding {
		expectedEmbedding[i] = float32(i) * 0.001
	}

	mockAPI.On("CreateEmbeddings", ctx, text).Return(expectedEmbedding, nil)

	embedding, err := client.GenerateEmbedding(ctx, text)

	assert.NoError(t, err)
	assert.Len(t, embedding, DefaultEmbeddingDimensions)
	assert.Equal(t, expectedEmbedding, embedding)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_EmptyText(t *testing.T) {
	client := NewClient("")

	ctx := context.Background()
	embedding, err := client.GenerateEmbedding(ctx, "")

	assert.Error(t, err)
	assert.Nil(t, embedding)
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_GenerateEmbedding_APIError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, model: DefaultEmbeddingModel, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, "some text").Return(nil, errors.New("rate limit exceeded"))

	embedding, err := client.GenerateEmbedding(ctx, "some text")

	assert.Error(t, err)
	assert.Nil(t, embedding)
	assert.Contains(t, err.Error(), "failed to create embedding")
}

func TestClient_GenerateEmbedding_WrongDimensions(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, model: DefaultEmbeddingModel, dimensions: DefaultEmbeddingDimensions}

	ctx := context.Background()
	mockAPI.On("CreateEmbeddings", ctx, "some text").Return(make([]float32, 768), nil)

	embedding, err := client.GenerateEmbedding(ctx, "some text")

	assert.ErrorIs(t, err, ErrWrongDimensions)
	assert.Nil(t, embedding)
}

func TestClient_Model(t *testing.T) {
	client := NewClient("key")
	assert.Equal(t, string(DefaultEmbeddingModel), client.Model())

	custom := NewClientWithConfig(Config{APIKey: "key", EmbeddingModel: "text-embedding-3-large", EmbeddingDimensions: 3072})
	assert.Equal(t, "text-embedding-3-large", custom.Model())
}
