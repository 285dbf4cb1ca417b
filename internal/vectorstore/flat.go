package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/rs/zerolog/log"
)

// FlatStore is an exact (brute force) index kept in memory and persisted to
// a generation directory in dir. All in-process writes are serialized by mu.
type FlatStore struct {
	dir string
	dim int

	mu         sync.RWMutex
	data       []float32 // len(chunks) * dim values, row-major
	chunks     []domain.Chunk
	ids        map[string]struct{}
	generation string
	dirty      bool
	version    uint64

	persistMu sync.Mutex
}

// Open loads the generation committed in dir, or returns an empty store when
// nothing was committed yet. A missing or mismatched pair of files is
// reported as domain.ErrCorruptStore and must stop the process.
func Open(dir string, dim int) (*FlatStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrMissingDimension, dim)
	}

	s := &FlatStore{dir: dir, dim: dim, ids: map[string]struct{}{}}

	snap, err := readFiles(dir, dim)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		log.Info().Str("dir", dir).Int("dim", dim).Msg("vector store initialized empty")
		return s, nil
	}

	ids, err := idSet(snap.chunks)
	if err != nil {
		return nil, corrupt("%v", err)
	}
	s.data = snap.data
	s.chunks = snap.chunks
	s.ids = ids
	s.generation = snap.generation
	log.Info().Str("dir", dir).Int("dim", dim).Int("count", len(s.chunks)).Msg("vector store loaded")
	return s, nil
}

// Dim returns the vector dimension.
func (s *FlatStore) Dim() int {
	return s.dim
}

// Len returns the number of entries.
func (s *FlatStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Count implements Store.
func (s *FlatStore) Count(_ context.Context) (int, error) {
	return s.Len(), nil
}

// Dirty reports whether there are writes not yet persisted.
func (s *FlatStore) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Add implements Store. A chunk id already in the store fails the whole
// batch with domain.ErrDuplicateChunkID.
func (s *FlatStore) Add(ctx context.Context, vectors [][]float32, chunks []domain.Chunk, persist bool) error {
	if err := validateBatch(s.dim, vectors, chunks); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	for _, c := range chunks {
		if _, taken := s.ids[c.ID]; taken {
			s.mu.Unlock()
			return fmt.Errorf("%w: %s", domain.ErrDuplicateChunkID, c.ID)
		}
	}
	for i, v := range vectors {
		s.data = append(s.data, v...)
		s.chunks = append(s.chunks, chunks[i])
		s.ids[chunks[i].ID] = struct{}{}
	}
	s.dirty = true
	s.version++
	s.mu.Unlock()

	if persist {
		return s.Persist(ctx)
	}
	return nil
}

// Replace implements Store.
func (s *FlatStore) Replace(ctx context.Context, vectors [][]float32, chunks []domain.Chunk) error {
	if err := validateBatch(s.dim, vectors, chunks); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data := make([]float32, 0, len(vectors)*s.dim)
	for _, v := range vectors {
		data = append(data, v...)
	}
	rebuilt := append([]domain.Chunk(nil), chunks...)
	ids, err := idSet(rebuilt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data = data
	s.chunks = rebuilt
	s.ids = ids
	s.dirty = true
	s.version++
	s.mu.Unlock()

	log.Info().Int("count", len(rebuilt)).Msg("vector store replaced")
	return nil
}

// Search implements Store. Equal distances keep insertion order.
func (s *FlatStore) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has %d values, want %d", domain.ErrDimensionMismatch, len(query), s.dim)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.chunks)
	if k <= 0 || n == 0 {
		return []Result{}, nil
	}

	order := make([]int, n)
	dist := make([]float32, n)
	for i := 0; i < n; i++ {
		order[i] = i
		dist[i] = squaredL2(query, s.data[i*s.dim:(i+1)*s.dim])
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dist[order[a]] < dist[order[b]]
	})

	if k > n {
		k = n
	}
	results := make([]Result, k)
	for i := 0; i < k; i++ {
		idx := order[i]
		results[i] = Result{Distance: dist[idx], Chunk: s.chunks[idx]}
	}
	return results, nil
}

// Persist writes a new generation and commits it by swapping CURRENT. The
// dirty flag is only cleared when no write happened while the snapshot was
// being saved.
func (s *FlatStore) Persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	snap := &snapshot{
		dim:    s.dim,
		data:   s.data[:len(s.data):len(s.data)],
		chunks: s.chunks[:len(s.chunks):len(s.chunks)],
	}
	version := s.version
	s.mu.RUnlock()

	generation, err := writeFiles(s.dir, snap)
	if err != nil {
		return fmt.Errorf("failed to persist vector store: %w", err)
	}

	s.mu.Lock()
	s.generation = generation
	if s.version == version {
		s.dirty = false
	}
	s.mu.Unlock()

	log.Debug().Str("dir", s.dir).Int("count", len(snap.chunks)).Str("generation", generation).Msg("vector store persisted")
	return nil
}

// Generation returns the id of the generation last loaded or persisted.
func (s *FlatStore) Generation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func idSet(chunks []domain.Chunk) (map[string]struct{}, error) {
	ids := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		if _, taken := ids[c.ID]; taken {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateChunkID, c.ID)
		}
		ids[c.ID] = struct{}{}
	}
	return ids, nil
}
