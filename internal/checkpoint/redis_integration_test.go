//go:build integration

package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRedisContainer(ctx, t)
	defer rc.Terminate(ctx)

	store, err := NewRedisStore(ctx, rc.URL(), 0)
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRedisContainer(ctx, t)
	defer rc.Terminate(ctx)

	store, err := NewRedisStore(ctx, rc.URL(), time.Second)
	require.NoError(t, err)
	defer store.Close()

	s := domain.NewConversationState("u1:jim:ttl", "jim")
	require.NoError(t, store.Put(ctx, s.ThreadID, s))

	ttl, err := store.client.TTL(ctx, key(s.ThreadID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	assert.Eventually(t, func() bool {
		_, err := store.Get(ctx, s.ThreadID)
		return err != nil
	}, 5*time.Second, 100*time.Millisecond)
}

func TestNewRedisStore_BadURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "not a url", 0)
	assert.Error(t, err)
}
