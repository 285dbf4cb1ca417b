package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/deldesir/gateway/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
)

// PgStore keeps the index in the memory_vectors table. Rows are never
// updated; position gives insertion order for tie breaking. chunk_id carries
// a unique index, so a repeated id aborts the whole batch.
type PgStore struct {
	pool *pgxpool.Pool
	dim  int
}

func NewPgStore(pool *pgxpool.Pool, dim int) (*PgStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrMissingDimension, dim)
	}
	return &PgStore{pool: pool, dim: dim}, nil
}

func (s *PgStore) Dim() int {
	return s.dim
}

func (s *PgStore) Add(ctx context.Context, vectors [][]float32, chunks []domain.Chunk, _ bool) error {
	if err := validateBatch(s.dim, vectors, chunks); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := insertRows(ctx, tx, vectors, chunks); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (s *PgStore) Replace(ctx context.Context, vectors [][]float32, chunks []domain.Chunk) error {
	if err := validateBatch(s.dim, vectors, chunks); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `TRUNCATE memory_vectors RESTART IDENTITY`); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := insertRows(ctx, tx, vectors, chunks); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Info().Int("count", len(chunks)).Msg("postgres vector store replaced")
	return nil
}

func insertRows(ctx context.Context, tx pgx.Tx, vectors [][]float32, chunks []domain.Chunk) error {
	batch := &pgx.Batch{}
	for i, v := range vectors {
		meta, err := sonic.Marshal(chunks[i])
		if err != nil {
			return fmt.Errorf("failed to encode chunk %s: %w", chunks[i].ID, err)
		}
		batch.Queue(
			`INSERT INTO memory_vectors (chunk_id, embedding, metadata) VALUES ($1, $2, $3)`,
			chunks[i].ID, pgvector.NewVector(v), meta,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateChunkID, pgErr.Detail)
		}
		return err
	}
	return nil
}

func (s *PgStore) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if len(query) != s.dim {
		return nil, fmt.Errorf("%w: query has %d values, want %d", domain.ErrDimensionMismatch, len(query), s.dim)
	}
	if k <= 0 {
		return []Result{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT metadata, embedding <-> $1 AS distance
		 FROM memory_vectors
		 ORDER BY distance ASC, position ASC
		 LIMIT $2`,
		pgvector.NewVector(query), k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]Result, 0, k)
	for rows.Next() {
		var meta []byte
		var distance float64
		if err := rows.Scan(&meta, &distance); err != nil {
			return nil, err
		}
		var chunk domain.Chunk
		if err := sonic.Unmarshal(meta, &chunk); err != nil {
			return nil, fmt.Errorf("failed to decode chunk metadata: %w", err)
		}
		// <-> is plain euclidean distance
		results = append(results, Result{Distance: float32(distance * distance), Chunk: chunk})
	}
	return results, rows.Err()
}

// Persist is a no-op: every Add is committed.
func (s *PgStore) Persist(_ context.Context) error {
	return nil
}

func (s *PgStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM memory_vectors`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
