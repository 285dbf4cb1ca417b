package admin

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// ReindexCmd returns the reindex command
func ReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the vector store",
		Long: `Rebuild the vector store from the configured corpus files and every
knowledge item, replacing its contents. Run it with the server stopped when
using the flat backend.`,
		Args: cobra.NoArgs,
		RunE: runReindex,
	}
}

func runReindex(cmd *cobra.Command, args []string) error {
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

	stats, err := a.items.ReindexAll(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Reindexed %d chunk(s): %d from corpus files, %d knowledge item(s), %d line(s) skipped\n",
		stats.Chunks, stats.CorpusChunks, stats.Items, stats.Skipped)
	return nil
}
