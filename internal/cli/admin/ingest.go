package admin

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/deldesir/gateway/internal/ingest"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// IngestCmd returns the ingest command
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file.jsonl>...",
		Short: "Append JSONL corpora to the vector store",
		Long: `Read chunks from JSONL files, embed them in batches and append them to
the configured vector store. Malformed lines and repeated ids are skipped
and counted.

A full reindex rebuilds the store from knowledge items and the files in
GATEWAY_CORPUS_PATHS only. Chunks ingested from any other file are dropped
by the next reindex, and a warning is logged for each such file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().IntP("batch-size", "b", ingest.DefaultBatchSize, "Chunks per embedding batch")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	batchSize, _ := cmd.Flags().GetInt("batch-size")
	pipeline := ingest.NewPipeline(a.embedder, a.index, ingest.WithBatchSize(batchSize))

	for _, path := range untrackedCorpora(args, cfg.CorpusPaths) {
		log.Warn().Str("path", path).Msg("corpus is not in GATEWAY_CORPUS_PATHS; its chunks will be dropped by the next reindex")
	}

	var total ingest.Stats
	for _, path := range args {
		stats, err := pipeline.IngestFile(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: read %d, ingested %d, skipped %d\n", path, stats.Read, stats.Ingested, stats.Skipped)
		total.Read += stats.Read
		total.Ingested += stats.Ingested
		total.Skipped += stats.Skipped
		total.Batches += stats.Batches
	}

	n, err := a.index.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d chunk(s) in %d batch(es); index now holds %d\n", total.Ingested, total.Batches, n)
	return nil
}

// untrackedCorpora returns the paths a full reindex would not re-ingest.
func untrackedCorpora(paths, corpusPaths []string) []string {
	tracked := make(map[string]bool, len(corpusPaths))
	for _, p := range corpusPaths {
		tracked[absPath(p)] = true
	}

	var untracked []string
	for _, p := range paths {
		if !tracked[absPath(p)] {
			untracked = append(untracked, p)
		}
	}
	return untracked
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
