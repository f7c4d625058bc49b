package domain

import "fmt"

// KnowledgeChunk represents an embedded segment of a knowledge item, the unit
// of retrieval. Chunks are write-once: they are created during ingestion and
// destroyed when their parent item is deleted.
type KnowledgeChunk struct {
	ID              string
	KnowledgeItemID string
	WorkspaceID     string
	// Text is the provenance-prefixed segment that was embedded, e.g.
	// "Source: Return Policy (text)\nContent: ...".
	Text      string
	Embedding []float32
	// EmbeddingModel identifies the provider model that produced the vector.
	// Search refuses to compare vectors across models of different
	// dimensionality.
	EmbeddingModel string
}

// ValidateKnowledgeChunk validates a KnowledgeChunk against its parent item
func ValidateKnowledgeChunk(c *KnowledgeChunk, parent *KnowledgeItem) error {
	if c == nil {
		return fmt.Errorf("knowledge chunk cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("knowledge chunk ID is required")
	}

	if c.KnowledgeItemID == "" {
		return fmt.Errorf("knowledge chunk KnowledgeItemID is required")
	}

	if c.WorkspaceID == "" {
		return fmt.Errorf("knowledge chunk WorkspaceID is required")
	}

	if parent != nil && c.WorkspaceID != parent.WorkspaceID {
		return ErrWorkspaceMismatch
	}

	return nil
}
