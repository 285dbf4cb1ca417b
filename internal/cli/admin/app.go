package admin

import (
	"context"
	"fmt"

	"github.com/deldesir/gateway/internal/config"
	"github.com/deldesir/gateway/internal/database"
	"github.com/deldesir/gateway/internal/logger"
	"github.com/deldesir/gateway/internal/persona"
	"github.com/deldesir/gateway/internal/provider"
	"github.com/deldesir/gateway/internal/repository"
	"github.com/deldesir/gateway/internal/service"
	"github.com/deldesir/gateway/internal/storage"
	"github.com/deldesir/gateway/internal/vectorstore"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// vectorIndex is what the gateway needs from either vector backend.
type vectorIndex interface {
	vectorstore.Store
	Dim() int
}

// app holds the components shared by serve and the offline commands.
type app struct {
	cfg          *config.Config
	pool         *pgxpool.Pool
	factory      *provider.Factory
	embedder     *provider.CheckedEmbedder
	index        vectorIndex
	flat         *vectorstore.FlatStore
	registry     *persona.Registry
	personaRepo  *repository.PersonaRepository
	personaCache *persona.CachedSource
	knowledge    persona.KnowledgeStore
	personas     *service.PersonaService
	items        *service.KnowledgeService
}

type appOptions struct {
	migrate bool
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, err
	}
	return cfg, nil
}

func providerConfig(cfg *config.Config) provider.Config {
	return provider.Config{
		OpenAIAPIKey:        cfg.OpenAIAPIKey,
		OpenAIBaseURL:       cfg.OpenAIBaseURL,
		GeminiAPIKey:        cfg.GeminiAPIKey,
		ChatModel:           cfg.LLMModel,
		SummaryModel:        cfg.LLMSummaryModel,
		Temperature:         cfg.LLMTemperature,
		MaxTokens:           cfg.LLMMaxTokens,
		Timeout:             cfg.LLMTimeout,
		EmbeddingProvider:   cfg.EmbeddingProvider,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	}
}

// newApp connects storage and builds the embedding, persona and knowledge
// components. Call close when done.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg, factory: provider.NewFactory(providerConfig(cfg))}

	if cfg.HasDatabase() {
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.pool = pool
		log.Info().Msg("connected to database")

		if opts.migrate {
			if err := database.Migrate(cfg.DatabaseURL, database.DefaultMigrationsDir); err != nil {
				a.close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
	}

	embedder, err := a.factory.Embedder(ctx)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	a.embedder = embedder

	if err := a.openIndex(ctx); err != nil {
		a.close()
		return nil, err
	}

	if err := a.buildPersonas(ctx); err != nil {
		a.close()
		return nil, err
	}

	a.buildKnowledge()
	return a, nil
}

func (a *app) openIndex(_ context.Context) error {
	switch a.cfg.VectorBackend {
	case config.VectorBackendPgvector:
		store, err := vectorstore.NewPgStore(a.pool, a.cfg.EmbeddingDimensions)
		if err != nil {
			return fmt.Errorf("failed to open pgvector store: %w", err)
		}
		a.index = store
	default:
		store, err := vectorstore.Open(a.cfg.VectorStorePath, a.cfg.EmbeddingDimensions)
		if err != nil {
			return fmt.Errorf("failed to open vector store: %w", err)
		}
		a.flat = store
		a.index = store
		log.Info().Str("path", a.cfg.VectorStorePath).Int("entries", store.Len()).Msg("vector store loaded")
	}
	return nil
}

func (a *app) buildPersonas(ctx context.Context) error {
	registry := persona.NewRegistry()
	if a.cfg.PersonaRegistryPath != "" {
		loaded, err := persona.LoadRegistry(a.cfg.PersonaRegistryPath)
		if err != nil {
			return fmt.Errorf("failed to load persona registry: %w", err)
		}
		registry = loaded
	}
	a.registry = registry

	var files persona.KnowledgeStore = persona.NewDirKnowledge(a.cfg.KnowledgeDir)
	if a.cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        a.cfg.S3Endpoint,
			Region:          a.cfg.S3Region,
			AccessKeyID:     a.cfg.S3AccessKey,
			SecretAccessKey: a.cfg.S3SecretKey,
			Bucket:          a.cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Info().Str("bucket", a.cfg.S3Bucket).Msg("persona knowledge in S3")
		files = persona.NewS3Knowledge(s3Client, a.cfg.KnowledgeS3Prefix)
	}
	a.knowledge = persona.NewCachedKnowledge(files, a.cfg.PersonaCacheSize, a.cfg.PersonaCacheTTL)

	var opts []service.PersonaOption
	opts = append(opts, service.WithKnowledgeFiles(a.knowledge))

	if a.pool == nil {
		a.personas = service.NewPersonaService(nil, registry, opts...)
		return nil
	}

	a.personaRepo = repository.NewPersonaRepository(a.pool)
	a.personaCache = persona.NewCachedSource(persona.NewStoreSource(a.personaRepo), a.cfg.PersonaCacheSize, a.cfg.PersonaCacheTTL)
	opts = append(opts, service.WithPersonaCache(a.personaCache))
	a.personas = service.NewPersonaService(a.personaRepo, registry, opts...)
	return nil
}

func (a *app) buildKnowledge() {
	opts := []service.KnowledgeOption{service.WithCorpusPaths(a.cfg.CorpusPaths)}
	if a.pool == nil {
		a.items = service.NewKnowledgeService(nil, nil, nil, a.embedder, a.index, opts...)
		return
	}
	a.items = service.NewKnowledgeService(
		repository.NewKnowledgeItemRepository(a.pool),
		repository.NewReindexJobRepository(a.pool),
		repository.NewTxRunner(a.pool),
		a.embedder,
		a.index,
		opts...,
	)
}

// resolver chains the static registry ahead of runtime personas.
func (a *app) resolver() *persona.Resolver {
	sources := []persona.Source{a.registry}
	if a.personaCache != nil {
		sources = append(sources, a.personaCache)
	}
	return persona.NewResolver(sources, persona.WithKnowledge(a.knowledge))
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
