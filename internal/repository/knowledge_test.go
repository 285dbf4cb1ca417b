//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/pagination"
	"github.com/deldesir/gateway/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newItem(title string, createdAt time.Time) *domain.KnowledgeItem {
	return domain.NewKnowledgeItem(uuid.NewString(), title, "Body of "+title, "", "", createdAt.UTC().Truncate(time.Microsecond))
}

func TestKnowledgeItemRepository_Create(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeItemRepository(pool)

	k := newItem("Return policy", time.Now())
	k.SourceURI = "https://example.com/returns"
	k.PersonaScope = "support"
	require.NoError(t, repo.Create(ctx, k))

	got, err := repo.GetByID(ctx, k.ID)
	require.NoError(t, err)
	assert.Equal(t, k.Title, got.Title)
	assert.Equal(t, k.Content, got.Content)
	assert.Equal(t, "https://example.com/returns", got.SourceURI)
	assert.Equal(t, "support", got.PersonaScope)
	assert.True(t, k.CreatedAt.Equal(got.CreatedAt))

	err = repo.Create(ctx, k)
	assert.ErrorIs(t, err, domain.ErrKnowledgeItemAlreadyExists)
}

func TestKnowledgeItemRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeItemRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrKnowledgeItemNotFound)
}

func TestKnowledgeItemRepository_ListAllAndCount(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeItemRepository(pool)

	base := time.Now().Add(-time.Hour)
	second := newItem("second", base.Add(time.Minute))
	first := newItem("first", base)
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, first))

	items, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "first", items[0].Title)
	assert.Equal(t, "second", items[1].Title)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestKnowledgeItemRepository_ListWithCursor(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeItemRepository(pool)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, newItem(string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute))))
	}

	page, err := repo.ListWithCursor(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "e", page.Items[0].Title)
	assert.Equal(t, "d", page.Items[1].Title)

	cursor, err := pagination.Decode(page.NextCursor)
	require.NoError(t, err)

	page, err = repo.ListWithCursor(ctx, cursor, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "c", page.Items[0].Title)

	cursor, err = pagination.Decode(page.NextCursor)
	require.NoError(t, err)

	page, err = repo.ListWithCursor(ctx, cursor, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)
}

func TestKnowledgeItemRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewKnowledgeItemRepository(pool)

	k := newItem("doomed", time.Now())
	require.NoError(t, repo.Create(ctx, k))
	require.NoError(t, repo.Delete(ctx, k.ID))

	_, err := repo.GetByID(ctx, k.ID)
	assert.ErrorIs(t, err, domain.ErrKnowledgeItemNotFound)

	err = repo.Delete(ctx, k.ID)
	assert.ErrorIs(t, err, domain.ErrKnowledgeItemNotFound)
}
