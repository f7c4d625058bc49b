package domain

import (
	"fmt"
	"time"
)

// KnowledgeType represents how a knowledge item entered the system
type KnowledgeType string

const (
	KnowledgeTypeText    KnowledgeType = "text"
	KnowledgeTypeFile    KnowledgeType = "file"
	KnowledgeTypeWebsite KnowledgeType = "website"
	KnowledgeTypeQnA     KnowledgeType = "qna"
)

// KnowledgeStatus represents the ingestion lifecycle of a knowledge item.
// Items are created as processing, move to ready once their chunks are
// embedded and stored, or to error when ingestion fails. Failed items are
// not retried automatically.
type KnowledgeStatus string

const (
	KnowledgeStatusProcessing KnowledgeStatus = "processing"
	KnowledgeStatusReady      KnowledgeStatus = "ready"
	KnowledgeStatusError      KnowledgeStatus = "error"
)

// KnowledgeItem represents a logical document in a workspace's knowledge base.
// Content is plain text; file format extraction happens upstream.
type KnowledgeItem struct {
	ID          string
	WorkspaceID string
	Type        KnowledgeType
	Status      KnowledgeStatus
	Name        string
	Content     string
	// StorageKey holds the object key of the raw uploaded payload for
	// file-backed items. Empty for items created from plain text.
	StorageKey string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewKnowledgeItem creates a new KnowledgeItem instance in processing state
func NewKnowledgeItem(id, workspaceID string, itemType KnowledgeType, name, content string, createdAt time.Time) *KnowledgeItem {
	return &KnowledgeItem{
		ID:          id,
		WorkspaceID: workspaceID,
		Type:        itemType,
		Status:      KnowledgeStatusProcessing,
		Name:        name,
		Content:     content,
		CreatedAt:   createdAt,
		UpdatedAt:   createdAt,
	}
}

// ValidateKnowledgeItem validates a KnowledgeItem instance
func ValidateKnowledgeItem(k *KnowledgeItem) error {
	if k == nil {
		return fmt.Errorf("knowledge item cannot be nil")
	}

	if k.ID == "" {
		return fmt.Errorf("knowledge item ID is required")
	}

	if k.WorkspaceID == "" {
		return fmt.Errorf("knowledge item WorkspaceID is required")
	}

	if k.Name == "" {
		return fmt.Errorf("knowledge item Name is required")
	}

	if !isValidKnowledgeType(k.Type) {
		return fmt.Errorf("knowledge item Type is invalid: %s", k.Type)
	}

	if !isValidKnowledgeStatus(k.Status) {
		return fmt.Errorf("knowledge item Status is invalid: %s", k.Status)
	}

	return nil
}

// isValidKnowledgeType checks if a KnowledgeType is valid
func isValidKnowledgeType(t KnowledgeType) bool {
	switch t {
	case KnowledgeTypeText, KnowledgeTypeFile, KnowledgeTypeWebsite, KnowledgeTypeQnA:
		return true
	}
	return false
}

// isValidKnowledgeStatus checks if a KnowledgeStatus is valid
func isValidKnowledgeStatus(s KnowledgeStatus) bool {
	switch s {
	case KnowledgeStatusProcessing, KnowledgeStatusReady, KnowledgeStatusError:
		return true
	}
	return false
}
