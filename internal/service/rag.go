package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/vantor-labs/vantor/internal/domain"
	"github.com/vantor-labs/vantor/internal/telemetry"
)

// DefaultSearchLimit is the number of chunks returned when the caller does
// not ask for a specific count.
const DefaultSearchLimit = 5

// ErrRateLimited is returned when the admission gate rejects an outbound
// provider call. Callers treat it as a soft failure.
var ErrRateLimited = errors.New("rate limit exceeded")

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	// Model identifies the embedding model, stored alongside each chunk so
	// search never compares vectors across providers.
	Model() string
}

// ChunkStore defines the persistence contract for embedded chunks. Appends
// must be visible to subsequent reads in the same process; workspace
// filtering must be exact.
type ChunkStore interface {
	AppendChunks(ctx context.Context, chunks []domain.KnowledgeChunk) error
	GetChunks(ctx context.Context, workspaceID string) ([]domain.KnowledgeChunk, error)
	DeleteChunksForItem(ctx context.Context, knowledgeItemID string) error
}

// RateGate admits or rejects an outbound provider call.
type RateGate interface {
	Allow() bool
}

// RagConfig tunes retrieval behaviour.
type RagConfig struct {
	Chunking ChunkConfig
	// MinScore drops results scoring below it. Zero keeps the permissive
	// policy: callers always receive the best available matches.
	MinScore float64
}

// RagService orchestrates chunking, embedding, chunk storage and similarity
// search for a workspace's knowledge base.
type RagService struct {
	store    ChunkStore
	embedder EmbeddingClient
	limiter  RateGate
	cfg      RagConfig
	uuidGen  UUIDGenerator
}

// NewRagService creates a new RagService instance. limiter may be nil to
// disable admission gating (tests).
func NewRagService(store ChunkStore, embedder EmbeddingClient, limiter RateGate, cfg RagConfig) *RagService {
	if cfg.Chunking.Size <= 0 {
		cfg.Chunking = DefaultChunkConfig()
	}
	return &RagService{
		store:    store,
		embedder: embedder,
		limiter:  limiter,
		cfg:      cfg,
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// NewRagServiceWithUUIDGen creates a RagService with a custom UUID generator (for testing)
func NewRagServiceWithUUIDGen(store ChunkStore, embedder EmbeddingClient, limiter RateGate, cfg RagConfig, uuidGen UUIDGenerator) *RagService {
	s := NewRagService(store, embedder, limiter, cfg)
	s.uuidGen = uuidGen
	return s
}

// ProcessAndStore chunks the item's content, embeds each chunk behind a
// provenance header, and appends the successfully embedded chunks in one
// batch. Embedding failures skip the affected chunk only: a document with
// some unembeddable chunks is still partially searchable. The returned count
// is the number of chunks stored; an error means the batch append itself
// failed.
func (s *RagService) ProcessAndStore(ctx context.Context, item *domain.KnowledgeItem) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "RagService.ProcessAndStore", telemetry.SpanAttributes{
		WorkspaceID: item.WorkspaceID,
		KnowledgeID: item.ID,
		Operation:   "ingest",
	})
	defer span.End()

	segments := ChunkText(item.Content, s.cfg.Chunking)
	log.Printf("chunked %q into %d segments", item.Name, len(segments))

	chunks := make([]domain.KnowledgeChunk, 0, len(segments))
	for _, segment := range segments {
		text := fmt.Sprintf("Source: %s (%s)\nContent: %s", item.Name, item.Type, segment)

		embedding, err := s.embed(ctx, text)
		if err != nil {
			log.Printf("skipping unembeddable chunk of %q: %v", item.Name, err)
			continue
		}

		chunks = append(chunks, domain.KnowledgeChunk{
			ID:              s.uuidGen.NewString(),
			KnowledgeItemID: item.ID,
			WorkspaceID:     item.WorkspaceID,
			Text:            text,
			Embedding:       embedding,
			EmbeddingModel:  s.embedder.Model(),
		})
	}

	if len(chunks) == 0 {
		return 0, nil
	}

	if err := s.store.AppendChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}

	return len(chunks), nil
}

// EmbedQuery embeds a search query through the same gated provider used for
// indexing.
func (s *RagService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.embed(ctx, text)
}

// SearchResult pairs a chunk with its similarity score.
type SearchResult struct {
	Chunk domain.KnowledgeChunk
	Score float64
}

// Search ranks the workspace's chunks by cosine similarity to the query
// embedding and returns the top limit entries. An empty store yields an
// empty result. Chunks whose embedding dimensionality differs from the
// query's are skipped rather than scored degenerately.
func (s *RagService) Search(ctx context.Context, workspaceID string, queryEmbedding []float32, limit int) ([]SearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RagService.Search", telemetry.SpanAttributes{
		WorkspaceID: workspaceID,
		Operation:   "search",
	})
	defer span.End()

	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	chunks, err := s.store.GetChunks(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	results := make([]SearchResult, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) != len(queryEmbedding) {
			log.Printf("skipping chunk %s: embedding dimensionality %d does not match query %d (model %s)",
				chunk.ID, len(chunk.Embedding), len(queryEmbedding), chunk.EmbeddingModel)
			continue
		}

		score := CosineSimilarity(queryEmbedding, chunk.Embedding)
		if s.cfg.MinScore > 0 && score < s.cfg.MinScore {
			continue
		}
		results = append(results, SearchResult{Chunk: chunk, Score: score})
	}

	// Stable: ties keep their original append order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteForItem removes all chunks derived from a knowledge item.
func (s *RagService) DeleteForItem(ctx context.Context, knowledgeItemID string) error {
	return s.store.DeleteChunksForItem(ctx, knowledgeItemID)
}

func (s *RagService) embed(ctx context.Context, text string) ([]float32, error) {
	if s.limiter != nil && !s.limiter.Allow() {
		return nil, ErrRateLimited
	}
	return s.embedder.GenerateEmbedding(ctx, text)
}

// CosineSimilarity computes dot(a,b) / (|a|*|b|). It returns 0 when either
// vector has zero magnitude, guarding against divide-by-zero and NaN
// propagation. Embedding magnitude carries no meaning for text models; only
// direction drives ranking.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}

	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
