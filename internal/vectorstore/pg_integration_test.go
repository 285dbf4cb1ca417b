//go:build integration

package vectorstore

import (
	"context"
	"testing"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgStore(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	s, err := NewPgStore(pool, 2)
	require.NoError(t, err)

	t.Run("add and search", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		c := chunk("a")
		c.PersonaScope = "konex"
		require.NoError(t, s.Add(ctx,
			[][]float32{{3, 0}, {1, 0}, {1, 0}},
			[]domain.Chunk{chunk("far"), c, chunk("tie")},
			true,
		))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		res, err := s.Search(ctx, []float32{0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "a", res[0].Chunk.ID)
		assert.Equal(t, "konex", res[0].Chunk.PersonaScope)
		assert.InDelta(t, 1.0, res[0].Distance, 1e-5)
		assert.Equal(t, "tie", res[1].Chunk.ID)
	})

	t.Run("length mismatch writes nothing", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		err := s.Add(ctx, [][]float32{{1, 1}}, nil, false)
		require.ErrorIs(t, err, domain.ErrLengthMismatch)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("id already stored aborts the batch", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		require.NoError(t, s.Add(ctx, [][]float32{{1, 1}}, []domain.Chunk{chunk("a")}, false))

		err := s.Add(ctx, [][]float32{{2, 2}, {3, 3}}, []domain.Chunk{chunk("b"), chunk("a")}, false)
		require.ErrorIs(t, err, domain.ErrDuplicateChunkID)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("empty chunk writes nothing", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		err := s.Add(ctx, [][]float32{{1, 1}}, []domain.Chunk{{ID: "", Text: ""}}, false)
		require.Error(t, err)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("replace", func(t *testing.T) {
		require.NoError(t, testutil.TruncateAll(ctx, pool))
		require.NoError(t, s.Add(ctx, [][]float32{{1, 1}}, []domain.Chunk{chunk("old")}, false))
		require.NoError(t, s.Replace(ctx, [][]float32{{2, 2}, {3, 3}}, []domain.Chunk{chunk("n1"), chunk("n2")}))

		res, err := s.Search(ctx, []float32{0, 0}, 10)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "n1", res[0].Chunk.ID)
		assert.InDelta(t, 8.0, res[0].Distance, 1e-4)
	})
}
