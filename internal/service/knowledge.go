package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deldesir/gateway/internal/domain"
	"github.com/deldesir/gateway/internal/ingest"
	"github.com/deldesir/gateway/internal/pagination"
	"github.com/deldesir/gateway/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// KnowledgeItemRepositoryInterface defines the repository interface for knowledge item persistence
type KnowledgeItemRepositoryInterface interface {
	Create(ctx context.Context, k *domain.KnowledgeItem) error
	GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	ListAll(ctx context.Context) ([]*domain.KnowledgeItem, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*KnowledgePageResult, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

type KnowledgePageResult struct {
	Items      []*domain.KnowledgeItem
	NextCursor string
	HasMore    bool
}

// ReindexJobRepositoryInterface defines the repository interface for reindex job persistence
type ReindexJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.ReindexJob) error
	GetByID(ctx context.Context, id string) (*domain.ReindexJob, error)
	ClaimPending(ctx context.Context, limit int) ([]*domain.ReindexJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.ReindexJobStatus, errMsg string) error
	IncrementRetries(ctx context.Context, id string) error
}

// Embedder turns texts into vectors, one per text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex is the write side of a vector store.
type VectorIndex interface {
	Add(ctx context.Context, vectors [][]float32, chunks []domain.Chunk, persist bool) error
	Replace(ctx context.Context, vectors [][]float32, chunks []domain.Chunk) error
	Persist(ctx context.Context) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// KnowledgeService manages knowledge items and keeps the vector index in
// step with them. writeMu serializes Add against ReindexAll so an append
// cannot land between a rebuild's snapshot of the items and its Replace.
type KnowledgeService struct {
	writeMu sync.Mutex

	items       KnowledgeItemRepositoryInterface
	jobs        ReindexJobRepositoryInterface
	txRunner    TxRunner
	embedder    Embedder
	index       VectorIndex
	chunkCfg    ChunkConfig
	corpusPaths []string
	batchSize   int
	uuidGen     UUIDGenerator
	notifier    JobNotifier
}

// JobNotifier is woken whenever a reindex job is queued.
type JobNotifier interface {
	Wake()
}

type KnowledgeOption func(*KnowledgeService)

// WithCorpusPaths adds JSONL corpora that every full reindex re-ingests.
func WithCorpusPaths(paths []string) KnowledgeOption {
	return func(s *KnowledgeService) {
		s.corpusPaths = append([]string(nil), paths...)
	}
}

func WithChunkConfig(cfg ChunkConfig) KnowledgeOption {
	return func(s *KnowledgeService) {
		s.chunkCfg = cfg
	}
}

func WithUUIDGenerator(gen UUIDGenerator) KnowledgeOption {
	return func(s *KnowledgeService) {
		s.uuidGen = gen
	}
}

// NewKnowledgeService creates a KnowledgeService. items, jobs and txRunner
// may be nil when no database is configured; only corpus reindexing works
// then.
func NewKnowledgeService(
	items KnowledgeItemRepositoryInterface,
	jobs ReindexJobRepositoryInterface,
	txRunner TxRunner,
	embedder Embedder,
	index VectorIndex,
	opts ...KnowledgeOption,
) *KnowledgeService {
	s := &KnowledgeService{
		items:     items,
		jobs:      jobs,
		txRunner:  txRunner,
		embedder:  embedder,
		index:     index,
		chunkCfg:  DefaultChunkConfig(),
		batchSize: ingest.DefaultBatchSize,
		uuidGen:   &DefaultUUIDGenerator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NotifyJobs registers the worker that drains reindex jobs, so queued jobs
// run without waiting for its next poll.
func (s *KnowledgeService) NotifyJobs(n JobNotifier) {
	s.notifier = n
}

func (s *KnowledgeService) jobQueued() {
	if s.notifier != nil {
		s.notifier.Wake()
	}
}

// AddKnowledgeInput represents the input for adding a knowledge item
type AddKnowledgeInput struct {
	Title        string
	Content      string
	SourceURI    string
	PersonaScope string
}

type ListKnowledgeInput struct {
	Cursor string
	Limit  int
}

type ListKnowledgeOutput struct {
	Items   []*domain.KnowledgeItem
	Cursor  string
	HasMore bool
}

// ReindexStats summarizes a full rebuild.
type ReindexStats struct {
	Items        int `json:"items"`
	CorpusChunks int `json:"corpus_chunks"`
	Skipped      int `json:"skipped"`
	Chunks       int `json:"chunks"`
}

func (s *KnowledgeService) requireDB() error {
	if s.items == nil {
		return fmt.Errorf("%w: knowledge items need DATABASE_URL", domain.ErrProviderNotEnabled)
	}
	return nil
}

// Add stores a knowledge item, then chunks, embeds and appends it to the
// index. If indexing fails the item is kept and is picked up by the next
// reindex.
func (s *KnowledgeService) Add(ctx context.Context, input AddKnowledgeInput) (*domain.KnowledgeItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Add", telemetry.SpanAttributes{
		Persona:   input.PersonaScope,
		Operation: "create",
	})
	defer span.End()

	if err := s.requireDB(); err != nil {
		return nil, err
	}

	item := domain.NewKnowledgeItem(s.uuidGen.NewString(), input.Title, input.Content, input.SourceURI, input.PersonaScope, time.Now().UTC())
	if err := domain.ValidateKnowledgeItem(item); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.items.Create(ctx, item); err != nil {
		return nil, err
	}

	chunks := knowledgeChunks(item, s.chunkCfg)
	vectors, err := s.embed(ctx, chunks)
	if err != nil {
		return item, fmt.Errorf("failed to index knowledge item: %w", err)
	}
	if err := s.index.Add(ctx, vectors, chunks, true); err != nil {
		return item, fmt.Errorf("failed to index knowledge item: %w", err)
	}

	log.Info().Str("knowledge_id", item.ID).Int("chunks", len(chunks)).Msg("knowledge item indexed")
	return item, nil
}

// GetByID retrieves a knowledge item by ID
func (s *KnowledgeService) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	if err := s.requireDB(); err != nil {
		return nil, err
	}
	return s.items.GetByID(ctx, id)
}

func (s *KnowledgeService) List(ctx context.Context, input ListKnowledgeInput) (*ListKnowledgeOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.List", telemetry.SpanAttributes{
		Operation: "list",
	})
	defer span.End()

	if err := s.requireDB(); err != nil {
		return nil, err
	}

	cursor, err := pagination.Decode(input.Cursor)
	if err != nil {
		log.Debug().Str("cursor", input.Cursor).Msg("invalid cursor, listing from the start")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 20
	}

	result, err := s.items.ListWithCursor(ctx, cursor, limit)
	if err != nil {
		return nil, err
	}

	return &ListKnowledgeOutput{
		Items:   result.Items,
		Cursor:  result.NextCursor,
		HasMore: result.HasMore,
	}, nil
}

// Delete removes a knowledge item and queues a reindex job in the same
// transaction. The index only drops the item's chunks once the job runs.
func (s *KnowledgeService) Delete(ctx context.Context, id string) (*domain.ReindexJob, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.Delete", telemetry.SpanAttributes{
		Operation: "delete",
	})
	defer span.End()

	if err := s.requireDB(); err != nil {
		return nil, err
	}

	job := domain.NewReindexJob(s.uuidGen.NewString(), "knowledge item "+id+" deleted", time.Now().UTC())
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.KnowledgeItems().Delete(ctx, id); err != nil {
			return err
		}
		return repos.ReindexJobs().Create(ctx, job)
	})
	if err != nil {
		return nil, err
	}
	s.jobQueued()
	return job, nil
}

// RequestReindex queues a reindex job for the worker.
func (s *KnowledgeService) RequestReindex(ctx context.Context, reason string) (*domain.ReindexJob, error) {
	if s.jobs == nil {
		return nil, fmt.Errorf("%w: reindex jobs need DATABASE_URL", domain.ErrProviderNotEnabled)
	}
	if reason == "" {
		reason = "requested"
	}
	job := domain.NewReindexJob(s.uuidGen.NewString(), reason, time.Now().UTC())
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	s.jobQueued()
	return job, nil
}

// GetReindexJob retrieves a reindex job by ID
func (s *KnowledgeService) GetReindexJob(ctx context.Context, id string) (*domain.ReindexJob, error) {
	if s.jobs == nil {
		return nil, fmt.Errorf("%w: reindex jobs need DATABASE_URL", domain.ErrProviderNotEnabled)
	}
	return s.jobs.GetByID(ctx, id)
}

// ReindexAll rebuilds the whole index from the knowledge items and the
// configured corpora. The index is replaced in one step and persisted once.
// When a chunk id repeats across sources the first occurrence is kept.
func (s *KnowledgeService) ReindexAll(ctx context.Context) (ReindexStats, error) {
	ctx, span := telemetry.StartSpan(ctx, "KnowledgeService.ReindexAll", telemetry.SpanAttributes{
		Operation: "reindex",
	})
	defer span.End()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var stats ReindexStats
	var chunks []domain.Chunk

	log.Warn().Msg("starting full reindex")

	for _, path := range s.corpusPaths {
		corpus, st, err := ingest.LoadFile(path)
		if err != nil {
			span.SetError(err)
			return stats, err
		}
		chunks = append(chunks, corpus...)
		stats.CorpusChunks += len(corpus)
		stats.Skipped += st.Skipped
	}

	if s.items != nil {
		items, err := s.items.ListAll(ctx)
		if err != nil {
			span.SetError(err)
			return stats, fmt.Errorf("failed to list knowledge items: %w", err)
		}
		for _, item := range items {
			chunks = append(chunks, knowledgeChunks(item, s.chunkCfg)...)
		}
		stats.Items = len(items)
	}

	chunks, repeated := uniqueChunks(chunks)
	stats.Skipped += repeated

	vectors, err := s.embed(ctx, chunks)
	if err != nil {
		span.SetError(err)
		return stats, err
	}

	if err := s.index.Replace(ctx, vectors, chunks); err != nil {
		span.SetError(err)
		return stats, fmt.Errorf("failed to replace index: %w", err)
	}
	if err := s.index.Persist(ctx); err != nil {
		span.SetError(err)
		return stats, fmt.Errorf("failed to persist index: %w", err)
	}

	stats.Chunks = len(chunks)
	log.Info().Int("items", stats.Items).Int("corpus_chunks", stats.CorpusChunks).Int("chunks", stats.Chunks).Msg("reindex complete")
	return stats, nil
}

func uniqueChunks(chunks []domain.Chunk) ([]domain.Chunk, int) {
	seen := make(map[string]struct{}, len(chunks))
	kept := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if _, dup := seen[c.ID]; dup {
			log.Warn().Str("chunk_id", c.ID).Msg("skipping repeated chunk id during reindex")
			continue
		}
		seen[c.ID] = struct{}{}
		kept = append(kept, c)
	}
	return kept, len(chunks) - len(kept)
}

// embed embeds chunks in batches and checks the count of every batch.
func (s *KnowledgeService) embed(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += s.batchSize {
		end := start + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			texts = append(texts, chunks[i].EmbeddingText())
		}

		batch, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks: %w", err)
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d chunks", domain.ErrEmbeddingCountMismatch, len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
