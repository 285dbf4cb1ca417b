package vectorstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(id string) domain.Chunk {
	return domain.Chunk{ID: id, Text: "text " + id, ChunkType: domain.ChunkTypeQuote}
}

// committedFile returns the path of name inside the generation CURRENT names.
func committedFile(t *testing.T, dir, name string) string {
	t.Helper()
	pointer, err := os.ReadFile(filepath.Join(dir, CurrentFile))
	require.NoError(t, err)
	return filepath.Join(dir, strings.TrimSpace(string(pointer)), name)
}

func openEmpty(t *testing.T, dim int) *FlatStore {
	t.Helper()
	s, err := Open(t.TempDir(), dim)
	require.NoError(t, err)
	return s
}

func TestOpen_RejectsNonPositiveDimension(t *testing.T) {
	_, err := Open(t.TempDir(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrMissingDimension))
}

func TestFlatStore_Add(t *testing.T) {
	ctx := context.Background()

	t.Run("appends in lockstep and marks dirty", func(t *testing.T) {
		s := openEmpty(t, 2)
		assert.False(t, s.Dirty())

		err := s.Add(ctx, [][]float32{{0, 0}, {1, 1}}, []domain.Chunk{chunk("a"), chunk("b")}, false)
		require.NoError(t, err)
		assert.Equal(t, 2, s.Len())
		assert.True(t, s.Dirty())
	})

	t.Run("length mismatch leaves store unchanged", func(t *testing.T) {
		s := openEmpty(t, 2)
		require.NoError(t, s.Add(ctx, [][]float32{{0, 0}}, []domain.Chunk{chunk("a")}, false))

		err := s.Add(ctx, [][]float32{{1, 1}, {2, 2}}, []domain.Chunk{chunk("b")}, false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrLengthMismatch))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("dimension mismatch leaves store unchanged", func(t *testing.T) {
		s := openEmpty(t, 2)
		err := s.Add(ctx, [][]float32{{1, 1}, {1, 2, 3}}, []domain.Chunk{chunk("a"), chunk("b")}, false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
		assert.Equal(t, 0, s.Len())
		assert.False(t, s.Dirty())
	})

	t.Run("id already in store is rejected", func(t *testing.T) {
		s := openEmpty(t, 2)
		require.NoError(t, s.Add(ctx, [][]float32{{0, 0}}, []domain.Chunk{chunk("a")}, false))

		err := s.Add(ctx, [][]float32{{1, 1}, {2, 2}}, []domain.Chunk{chunk("b"), chunk("a")}, false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrDuplicateChunkID))
		assert.Equal(t, 1, s.Len())

		res, err := s.Search(ctx, []float32{1, 1}, 5)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "a", res[0].Chunk.ID)
	})

	t.Run("id repeated within one batch is rejected", func(t *testing.T) {
		s := openEmpty(t, 2)
		err := s.Add(ctx, [][]float32{{0, 0}, {1, 1}}, []domain.Chunk{chunk("a"), chunk("a")}, false)
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrDuplicateChunkID))
		assert.Equal(t, 0, s.Len())
		assert.False(t, s.Dirty())
	})

	t.Run("empty chunk is rejected", func(t *testing.T) {
		s := openEmpty(t, 2)
		err := s.Add(ctx, [][]float32{{0, 0}}, []domain.Chunk{{ID: "", Text: ""}}, false)
		require.Error(t, err)
		assert.Equal(t, 0, s.Len())

		blank := chunk("a")
		blank.Text = "   "
		err = s.Add(ctx, [][]float32{{0, 0}}, []domain.Chunk{blank}, false)
		require.Error(t, err)
		assert.Equal(t, 0, s.Len())
	})

	t.Run("persist flag commits a generation and clears dirty", func(t *testing.T) {
		dir := t.TempDir()
		s, err := Open(dir, 2)
		require.NoError(t, err)

		require.NoError(t, s.Add(ctx, [][]float32{{1, 2}}, []domain.Chunk{chunk("a")}, true))
		assert.False(t, s.Dirty())
		assert.FileExists(t, filepath.Join(dir, CurrentFile))
		assert.FileExists(t, filepath.Join(dir, generationDir(s.Generation()), IndexFile))
		assert.FileExists(t, filepath.Join(dir, generationDir(s.Generation()), MetadataFile))
	})

	t.Run("ids survive a reload", func(t *testing.T) {
		dir := t.TempDir()
		s, err := Open(dir, 2)
		require.NoError(t, err)
		require.NoError(t, s.Add(ctx, [][]float32{{1, 2}}, []domain.Chunk{chunk("a")}, true))

		reloaded, err := Open(dir, 2)
		require.NoError(t, err)
		err = reloaded.Add(ctx, [][]float32{{3, 4}}, []domain.Chunk{chunk("a")}, false)
		assert.True(t, errors.Is(err, domain.ErrDuplicateChunkID))
		assert.Equal(t, 1, reloaded.Len())
	})
}

func TestFlatStore_Search(t *testing.T) {
	ctx := context.Background()
	s := openEmpty(t, 2)
	require.NoError(t, s.Add(ctx,
		[][]float32{{3, 0}, {1, 0}, {0, 1}, {1, 0}},
		[]domain.Chunk{chunk("far"), chunk("near1"), chunk("mid"), chunk("near2")},
		false,
	))

	t.Run("ascending squared distance with stable ties", func(t *testing.T) {
		res, err := s.Search(ctx, []float32{1, 0}, 3)
		require.NoError(t, err)
		require.Len(t, res, 3)
		assert.Equal(t, "near1", res[0].Chunk.ID)
		assert.Equal(t, "near2", res[1].Chunk.ID)
		assert.Equal(t, "mid", res[2].Chunk.ID)
		assert.Equal(t, float32(0), res[0].Distance)
		assert.Equal(t, float32(2), res[2].Distance)
	})

	t.Run("k larger than index", func(t *testing.T) {
		res, err := s.Search(ctx, []float32{0, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, res, 4)
		assert.Equal(t, float32(9), res[3].Distance)
	})

	t.Run("non-positive k", func(t *testing.T) {
		res, err := s.Search(ctx, []float32{0, 0}, 0)
		require.NoError(t, err)
		assert.Empty(t, res)
	})

	t.Run("empty index", func(t *testing.T) {
		res, err := openEmpty(t, 2).Search(ctx, []float32{0, 0}, 5)
		require.NoError(t, err)
		assert.Empty(t, res)
	})

	t.Run("query dimension mismatch", func(t *testing.T) {
		_, err := s.Search(ctx, []float32{0}, 5)
		assert.True(t, errors.Is(err, domain.ErrDimensionMismatch))
	})
}

func TestFlatStore_PersistReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir, 3)
	require.NoError(t, err)
	c := chunk("a")
	c.PersonaScope = "konex"
	c.Mentions = []string{"ada"}
	require.NoError(t, s.Add(ctx, [][]float32{{0.5, -1.25, 3}, {0, 0, 0}}, []domain.Chunk{c, chunk("b")}, false))
	require.NoError(t, s.Persist(ctx))

	reloaded, err := Open(dir, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())
	assert.False(t, reloaded.Dirty())
	assert.Equal(t, s.Generation(), reloaded.Generation())

	res, err := reloaded.Search(ctx, []float32{0.5, -1.25, 3}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "a", res[0].Chunk.ID)
	assert.Equal(t, "konex", res[0].Chunk.PersonaScope)
	assert.Equal(t, []string{"ada"}, res[0].Chunk.Mentions)
	assert.Equal(t, float32(0), res[0].Distance)
}

func TestFlatStore_Replace(t *testing.T) {
	ctx := context.Background()
	s := openEmpty(t, 1)
	require.NoError(t, s.Add(ctx, [][]float32{{1}, {2}}, []domain.Chunk{chunk("a"), chunk("b")}, true))

	require.NoError(t, s.Replace(ctx, [][]float32{{5}}, []domain.Chunk{chunk("z")}))
	assert.Equal(t, 1, s.Len())
	assert.True(t, s.Dirty())

	res, err := s.Search(ctx, []float32{0}, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "z", res[0].Chunk.ID)

	err = s.Replace(ctx, [][]float32{{1}}, nil)
	assert.True(t, errors.Is(err, domain.ErrLengthMismatch))
	assert.Equal(t, 1, s.Len())

	err = s.Replace(ctx, [][]float32{{1}, {2}}, []domain.Chunk{chunk("y"), chunk("y")})
	assert.True(t, errors.Is(err, domain.ErrDuplicateChunkID))
	assert.Equal(t, 1, s.Len())

	// ids dropped by a replace can be added again
	require.NoError(t, s.Add(ctx, [][]float32{{3}}, []domain.Chunk{chunk("a")}, false))
	assert.Equal(t, 2, s.Len())
}

func TestFlatStore_InterruptedPersist(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir, 2)
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, [][]float32{{1, 2}}, []domain.Chunk{chunk("a")}, true))
	committed := s.Generation()

	// a generation written but never committed, as after a crash mid-persist
	orphan, err := writeGeneration(dir, &snapshot{
		dim:    2,
		data:   []float32{1, 2, 3, 4},
		chunks: []domain.Chunk{chunk("a"), chunk("b")},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "."+CurrentFile+".partial"), []byte("gen-"), 0o644))

	reloaded, err := Open(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Len())
	assert.Equal(t, committed, reloaded.Generation())

	require.NoError(t, reloaded.Add(ctx, [][]float32{{5, 6}}, []domain.Chunk{chunk("c")}, true))
	assert.NoDirExists(t, filepath.Join(dir, generationDir(orphan)))
	assert.NoDirExists(t, filepath.Join(dir, generationDir(committed)))
	assert.NoFileExists(t, filepath.Join(dir, "."+CurrentFile+".partial"))

	again, err := Open(dir, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, again.Len())
}

func TestOpen_Corruption(t *testing.T) {
	ctx := context.Background()

	persisted := func(t *testing.T) string {
		dir := t.TempDir()
		s, err := Open(dir, 2)
		require.NoError(t, err)
		require.NoError(t, s.Add(ctx, [][]float32{{1, 2}}, []domain.Chunk{chunk("a")}, true))
		return dir
	}

	t.Run("only index present", func(t *testing.T) {
		dir := persisted(t)
		require.NoError(t, os.Remove(committedFile(t, dir, MetadataFile)))
		_, err := Open(dir, 2)
		assert.True(t, errors.Is(err, domain.ErrCorruptStore))
	})

	t.Run("only metadata present", func(t *testing.T) {
		dir := persisted(t)
		require.NoError(t, os.Remove(committedFile(t, dir, IndexFile)))
		_, err := Open(dir, 2)
		assert.True(t, errors.Is(err, domain.ErrCorruptStore))
	})

	t.Run("pointer names a missing generation", func(t *testing.T) {
		dir := persisted(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, CurrentFile), []byte("gen-missing\n"), 0o644))
		_, err := Open(dir, 2)
		assert.True(t, errors.Is(err, domain.ErrCorruptStore))
	})

	t.Run("pointer escapes the store directory", func(t *testing.T) {
		dir := persisted(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, CurrentFile), []byte("../gen-x\n"), 0o644))
		_, err := Open(dir, 2)
		assert.True(t, errors.Is(err, domain.ErrCorruptStore))
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		dir := persisted(t)
		_, err := Open(dir, 3)
		assert.True(t, errors.Is(err, domain.ErrCorruptStore))
	})

	t.Run("generation mismatch", func(t *testing.T) {
		dir := persisted(t)
		other := persisted(t)
		data, err := os.ReadFile(committedFile(t, other, MetadataFile))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(committedFile(t, dir, MetadataFile), data, 0o644))

		_, err = Open(dir, 2)
		assert.True(t, errors.Is(err, domain.ErrCorruptStore))
	})

	t.Run("bad magic", func(t *testing.T) {
		dir := persisted(t)
		path := committedFile(t, dir, IndexFile)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		copy(data, "XXXX")
		require.NoError(t, os.WriteFile(path, data, 0o644))

		_, err = Open(dir, 2)
		assert.True(t, errors.Is(err, domain.ErrCorruptStore))
	})

	t.Run("header count beyond file size", func(t *testing.T) {
		dir := persisted(t)
		path := committedFile(t, dir, IndexFile)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		// Count follows magic, version and dim
		binary.LittleEndian.PutUint64(data[12:], 1<<61)
		require.NoError(t, os.WriteFile(path, data, 0o644))

		_, err = Open(dir, 2)
		assert.True(t, errors.Is(err, domain.ErrCorruptStore))
	})

	t.Run("truncated vector data", func(t *testing.T) {
		dir := persisted(t)
		path := committedFile(t, dir, IndexFile)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(path, data[:len(data)-4], 0o644))

		_, err = Open(dir, 2)
		assert.True(t, errors.Is(err, domain.ErrCorruptStore))
	})

	t.Run("undecodable metadata", func(t *testing.T) {
		dir := persisted(t)
		require.NoError(t, os.WriteFile(committedFile(t, dir, MetadataFile), []byte("{not json"), 0o644))
		_, err := Open(dir, 2)
		assert.True(t, errors.Is(err, domain.ErrCorruptStore))
	})
}

func TestFlatStore_SizeInvariant(t *testing.T) {
	ctx := context.Background()
	s := openEmpty(t, 4)
	for i := 0; i < 10; i++ {
		_ = s.Add(ctx, [][]float32{{1, 2, 3, 4}}, []domain.Chunk{chunk(fmt.Sprintf("x%d", i))}, false)
		_ = s.Add(ctx, [][]float32{{1, 2, 3}}, []domain.Chunk{chunk("bad")}, false)
		s.mu.RLock()
		assert.Equal(t, len(s.chunks)*s.dim, len(s.data))
		s.mu.RUnlock()
	}
	assert.Equal(t, 10, s.Len())
}
