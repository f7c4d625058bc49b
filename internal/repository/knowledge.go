package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vantor-labs/vantor/internal/domain"
	"github.com/vantor-labs/vantor/internal/pagination"
	"github.com/vantor-labs/vantor/internal/service"
)

// KnowledgeRepository handles knowledge item persistence.
type KnowledgeRepository struct {
	db dbtx
}

func NewKnowledgeRepository(pool *pgxpool.Pool) *KnowledgeRepository {
	return &KnowledgeRepository{db: pool}
}

func NewKnowledgeRepositoryWithTx(tx pgx.Tx) *KnowledgeRepository {
	return &KnowledgeRepository{db: tx}
}

func (r *KnowledgeRepository) Create(ctx context.Context, item *domain.KnowledgeItem) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO knowledge_items (id, workspace_id, type, status, name, content, storage_key, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		item.ID, item.WorkspaceID, item.Type, item.Status, item.Name, item.Content, nullableString(item.StorageKey), item.CreatedAt, item.UpdatedAt,
	)
	return err
}

func (r *KnowledgeRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	var item domain.KnowledgeItem
	var storageKey *string
	err := r.db.QueryRow(ctx,
		`SELECT id, workspace_id, type, status, name, content, storage_key, created_at, updated_at
		 FROM knowledge_items WHERE id = $1`,
		id,
	).Scan(&item.ID, &item.WorkspaceID, &item.Type, &item.Status, &item.Name, &item.Content, &storageKey, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeNotFound
		}
		return nil, err
	}
	if storageKey != nil {
		item.StorageKey = *storageKey
	}
	return &item, nil
}

func (r *KnowledgeRepository) ListByWorkspace(ctx context.Context, workspaceID string) ([]*domain.KnowledgeItem, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, workspace_id, type, status, name, content, storage_key, created_at, updated_at
		 FROM knowledge_items WHERE workspace_id = $1 ORDER BY updated_at DESC`,
		workspaceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanKnowledgeItemRows(rows)
}

func (r *KnowledgeRepository) ListByWorkspaceWithCursor(ctx context.Context, workspaceID string, cursor *pagination.Cursor, limit int) (*service.KnowledgePageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, workspace_id, type, status, name, content, storage_key, created_at, updated_at
			 FROM knowledge_items
			 WHERE workspace_id = $1 AND (updated_at, id) < ($2, $3)
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $4`,
			workspaceID, cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, workspace_id, type, status, name, content, storage_key, created_at, updated_at
			 FROM knowledge_items
			 WHERE workspace_id = $1
			 ORDER BY updated_at DESC, id DESC
			 LIMIT $2`,
			workspaceID, limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanKnowledgeItemRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.UpdatedAt)
	}

	return &service.KnowledgePageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

func (r *KnowledgeRepository) UpdateStatus(ctx context.Context, id string, status domain.KnowledgeStatus) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_items SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeNotFound
	}
	return nil
}

func (r *KnowledgeRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`DELETE FROM knowledge_items WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrKnowledgeNotFound
	}
	return nil
}

func scanKnowledgeItemRows(rows pgx.Rows) ([]*domain.KnowledgeItem, error) {
	var results []*domain.KnowledgeItem
	for rows.Next() {
		var item domain.KnowledgeItem
		var storageKey *string
		if err := rows.Scan(&item.ID, &item.WorkspaceID, &item.Type, &item.Status, &item.Name, &item.Content, &storageKey, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		if storageKey != nil {
			item.StorageKey = *storageKey
		}
		results = append(results, &item)
	}
	return results, rows.Err()
}
