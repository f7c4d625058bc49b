//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vantor-labs/vantor/internal/domain"
	"github.com/vantor-labs/vantor/internal/pagination"
	"github.com/vantor-labs/vantor/internal/testutil"
)

func seedKnowledgeItem(ctx context.Context, t *testing.T, repo *KnowledgeRepository, workspaceID, name string, updatedAt time.Time) *domain.KnowledgeItem {
	item := &domain.KnowledgeItem{
		ID:          uuid.NewString(),
		WorkspaceID: workspaceID,
		Type:        domain.KnowledgeTypeText,
		Status:      domain.KnowledgeStatusReady,
		Name:        name,
		Content:     "Some content",
		CreatedAt:   updatedAt,
		UpdatedAt:   updatedAt,
	}
	require.NoError(t, repo.Create(ctx, item))
	return item
}

func TestKnowledgeRepository_Create(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	wsRepo := NewWorkspaceRepository(pool)
	repo := NewKnowledgeRepository(pool)

	ws := seedWorkspace(ctx, t, wsRepo, "Knowledge Workspace")

	item := &domain.KnowledgeItem{
		ID:          uuid.NewString(),
		WorkspaceID: ws.ID,
		Type:        domain.KnowledgeTypeFile,
		Status:      domain.KnowledgeStatusProcessing,
		Name:        "handbook.pdf",
		Content:     "Extracted handbook text",
		StorageKey:  ws.ID + "/items/handbook.pdf",
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
		UpdatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}

	err := repo.Create(ctx, item)
	require.NoError(t, err)

	retrieved, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Type, retrieved.Type)
	assert.Equal(t, item.Status, retrieved.Status)
	assert.Equal(t, item.Name, retrieved.Name)
	assert.Equal(t, item.StorageKey, retrieved.StorageKey)
}

func TestKnowledgeRepository_Create_WithoutStorageKey(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	wsRepo := NewWorkspaceRepository(pool)
	repo := NewKnowledgeRepository(pool)

	ws := seedWorkspace(ctx, t, wsRepo, "Knowledge Workspace")

	item := seedKnowledgeItem(ctx, t, repo, ws.ID, "Return Policy", time.Now().UTC().Truncate(time.Microsecond))

	retrieved, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, retrieved.StorageKey)
}

func TestKnowledgeRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrKnowledgeNotFound)
}

func TestKnowledgeRepository_ListByWorkspace(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	wsRepo := NewWorkspaceRepository(pool)
	repo := NewKnowledgeRepository(pool)

	ws := seedWorkspace(ctx, t, wsRepo, "Knowledge Workspace")
	other := seedWorkspace(ctx, t, wsRepo, "Other Workspace")

	base := time.Now().UTC().Truncate(time.Microsecond)
	older := seedKnowledgeItem(ctx, t, repo, ws.ID, "Older", base)
	newer := seedKnowledgeItem(ctx, t, repo, ws.ID, "Newer", base.Add(time.Second))
	seedKnowledgeItem(ctx, t, repo, other.ID, "Elsewhere", base)

	items, err := repo.ListByWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, newer.Name, items[0].Name)
	assert.Equal(t, older.Name, items[1].Name)
}

func TestKnowledgeRepository_ListByWorkspaceWithCursor(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	wsRepo := NewWorkspaceRepository(pool)
	repo := NewKnowledgeRepository(pool)

	ws := seedWorkspace(ctx, t, wsRepo, "Knowledge Workspace")

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		seedKnowledgeItem(ctx, t, repo, ws.ID, fmt.Sprintf("Item %d", i), base.Add(time.Duration(i)*time.Second))
	}

	// First page
	page1, err := repo.ListByWorkspaceWithCursor(ctx, ws.ID, nil, 2)
	require.NoError(t, err)
	require.Len(t, page1.Items, 2)
	assert.True(t, page1.HasMore)
	assert.NotEmpty(t, page1.NextCursor)
	assert.Equal(t, "Item 4", page1.Items[0].Name)
	assert.Equal(t, "Item 3", page1.Items[1].Name)

	// Second page picks up where the first left off
	cursor, err := pagination.DecodeCursor(page1.NextCursor)
	require.NoError(t, err)

	page2, err := repo.ListByWorkspaceWithCursor(ctx, ws.ID, cursor, 2)
	require.NoError(t, err)
	require.Len(t, page2.Items, 2)
	assert.True(t, page2.HasMore)
	assert.Equal(t, "Item 2", page2.Items[0].Name)
	assert.Equal(t, "Item 1", page2.Items[1].Name)

	// Final page
	cursor, err = pagination.DecodeCursor(page2.NextCursor)
	require.NoError(t, err)

	page3, err := repo.ListByWorkspaceWithCursor(ctx, ws.ID, cursor, 2)
	require.NoError(t, err)
	require.Len(t, page3.Items, 1)
	assert.False(t, page3.HasMore)
	assert.Empty(t, page3.NextCursor)
	assert.Equal(t, "Item 0", page3.Items[0].Name)
}

func TestKnowledgeRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	wsRepo := NewWorkspaceRepository(pool)
	repo := NewKnowledgeRepository(pool)

	ws := seedWorkspace(ctx, t, wsRepo, "Knowledge Workspace")
	item := seedKnowledgeItem(ctx, t, repo, ws.ID, "Pending Item", time.Now().UTC().Truncate(time.Microsecond))

	err := repo.UpdateStatus(ctx, item.ID, domain.KnowledgeStatusError)
	require.NoError(t, err)

	retrieved, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.KnowledgeStatusError, retrieved.Status)
	assert.True(t, retrieved.UpdatedAt.After(item.UpdatedAt))
}

func TestKnowledgeRepository_UpdateStatus_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeRepository(pool)

	err := repo.UpdateStatus(ctx, uuid.NewString(), domain.KnowledgeStatusReady)
	assert.ErrorIs(t, err, domain.ErrKnowledgeNotFound)
}

func TestKnowledgeRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	wsRepo := NewWorkspaceRepository(pool)
	repo := NewKnowledgeRepository(pool)

	ws := seedWorkspace(ctx, t, wsRepo, "Knowledge Workspace")
	item := seedKnowledgeItem(ctx, t, repo, ws.ID, "To Delete", time.Now().UTC().Truncate(time.Microsecond))

	err := repo.Delete(ctx, item.ID)
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, item.ID)
	assert.ErrorIs(t, err, domain.ErrKnowledgeNotFound)
}

func TestKnowledgeRepository_Delete_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeRepository(pool)

	err := repo.Delete(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrKnowledgeNotFound)
}
