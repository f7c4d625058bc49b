package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/vantor-labs/vantor/internal/domain"
)

// KnowledgeChunkRepository handles persistence of embedded chunks. It
// implements the chunk store consumed by the retrieval service: batch
// appends, full workspace reads for in-process ranking, and cascade
// deletion by parent item.
type KnowledgeChunkRepository struct {
	pool *pgxpool.Pool
}

func NewKnowledgeChunkRepository(pool *pgxpool.Pool) *KnowledgeChunkRepository {
	return &KnowledgeChunkRepository{pool: pool}
}

// AppendChunks inserts a batch of chunks in a single transaction. The batch
// is all-or-nothing: a failed insert leaves no partial chunk set behind.
func (r *KnowledgeChunkRepository) AppendChunks(ctx context.Context, chunks []domain.KnowledgeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		_, err := tx.Exec(ctx,
			`INSERT INTO knowledge_chunks (id, knowledge_item_id, workspace_id, text, embedding, embedding_model)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.KnowledgeItemID, c.WorkspaceID, c.Text, pgvector.NewVector(c.Embedding), c.EmbeddingModel,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetChunks returns all chunks of a workspace. Similarity ranking happens in
// the service layer, so the full candidate set is loaded rather than
// pre-filtered by the database.
func (r *KnowledgeChunkRepository) GetChunks(ctx context.Context, workspaceID string) ([]domain.KnowledgeChunk, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, knowledge_item_id, workspace_id, text, embedding, embedding_model
		 FROM knowledge_chunks WHERE workspace_id = $1`,
		workspaceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.KnowledgeChunk
	for rows.Next() {
		var c domain.KnowledgeChunk
		var vec pgvector.Vector
		if err := rows.Scan(&c.ID, &c.KnowledgeItemID, &c.WorkspaceID, &c.Text, &vec, &c.EmbeddingModel); err != nil {
			return nil, err
		}
		c.Embedding = vec.Slice()
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DeleteChunksForItem removes all chunks derived from a knowledge item.
func (r *KnowledgeChunkRepository) DeleteChunksForItem(ctx context.Context, knowledgeItemID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM knowledge_chunks WHERE knowledge_item_id = $1`,
		knowledgeItemID,
	)
	return err
}
