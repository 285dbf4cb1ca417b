package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/deldesir/gateway/internal/api/handlers"
	"github.com/deldesir/gateway/internal/api/middleware"
	"github.com/deldesir/gateway/internal/checkpoint"
	"github.com/deldesir/gateway/internal/jobs"
	"github.com/deldesir/gateway/internal/orchestrator"
	"github.com/deldesir/gateway/internal/repository"
	"github.com/deldesir/gateway/internal/retriever"
	"github.com/deldesir/gateway/internal/server"
	"github.com/deldesir/gateway/internal/service"
	"github.com/deldesir/gateway/internal/telemetry"
	"github.com/deldesir/gateway/internal/trust"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the gateway API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.SentryDSN != "" {
		// 10% sampling in production, everything in development
		sampleRate := 0.1
		if cfg.Environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Warn().Err(err).Msg("telemetry init failed, continuing without tracing")
		} else {
			defer shutdownTelemetry()
		}
	}

	if port, _ := cmd.Flags().GetString("port"); cmd.Flags().Changed("port") {
		cfg.Port = port
	}
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")

	a, err := newApp(ctx, cfg, appOptions{migrate: !noMigrate})
	if err != nil {
		return err
	}
	defer a.close()

	generator, err := a.factory.Generator(ctx)
	if err != nil {
		return fmt.Errorf("failed to create chat model: %w", err)
	}
	summarizer, err := a.factory.Summarizer(ctx)
	if err != nil {
		return fmt.Errorf("failed to create summary model: %w", err)
	}

	checkpoints, err := checkpoint.Open(ctx, checkpoint.Config{
		Backend:  cfg.CheckpointBackend,
		Path:     cfg.CheckpointPath,
		RedisURL: cfg.RedisURL,
		TTL:      cfg.CheckpointTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	defer checkpoints.Close()

	recall := retriever.New(a.embedder, a.index, retriever.WithK(cfg.RetrievalK), retriever.WithRecallK(cfg.RecallK))
	orch := orchestrator.New(
		generator,
		summarizer,
		recall,
		a.resolver(),
		trust.NewEngine(cfg.HostileKeywords, cfg.PoliteKeywords),
		orchestrator.WithHistoryThreshold(cfg.HistoryThreshold),
		orchestrator.WithRetrievalK(cfg.RetrievalK),
	)

	routerCfg := server.RouterConfig{
		HealthHandler:  handlers.NewHealthHandler(a.index),
		ChatHandler:    handlers.NewChatHandler(service.NewChatService(orch, checkpoints)),
		PersonaHandler: handlers.NewPersonaHandler(a.personas),
		MemoryHandler:  handlers.NewMemoryHandler(service.NewMemoryService(recall)),
	}
	if cfg.APIKey != "" {
		routerCfg.AuthValidator = middleware.StaticAPIKey(cfg.APIKey)
	}

	var reindexWorker *jobs.Worker
	if a.pool != nil {
		routerCfg.KnowledgeHandler = handlers.NewKnowledgeHandler(a.items)

		processor := jobs.NewReindexWorker(repository.NewReindexJobRepository(a.pool), a.items)
		reindexWorker = jobs.NewWorker("reindex", processor, cfg.ReindexPollInterval)
		a.items.NotifyJobs(reindexWorker)
		go reindexWorker.Start(ctx)
	}

	var persistScheduler *jobs.PersistScheduler
	if a.flat != nil {
		persistScheduler, err = jobs.NewPersistScheduler(cfg.PersistSchedule, a.flat)
		if err != nil {
			return fmt.Errorf("failed to schedule vector store persistence: %w", err)
		}
		persistScheduler.Start()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.NewRouter(routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	if reindexWorker != nil {
		reindexWorker.Stop()
	}
	if persistScheduler != nil {
		if err := persistScheduler.Stop(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("final vector store persist failed")
		}
	}

	log.Info().Msg("server exited")
	return nil
}
