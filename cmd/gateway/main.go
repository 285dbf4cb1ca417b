package main

import (
	"fmt"
	"os"

	"github.com/deldesir/gateway/internal/cli"
	"github.com/deldesir/gateway/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "gateway",
		Short: "Persona gateway client",
		Long: `Talk to personas and manage the knowledge behind them.

Environment variables:
  GATEWAY_API_URL   API base URL (default: http://localhost:8080)
  GATEWAY_API_KEY   API key, when the server requires one
  GATEWAY_USER_ID   User id sent as X-User-Id`,
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-key", "", "API key (overrides env and config)")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	rootCmd.PersistentFlags().String("user", "", "User id (overrides env and config)")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.PersonaCmd())
	rootCmd.AddCommand(client.KnowledgeCmd())
	rootCmd.AddCommand(client.SearchCmd())
	rootCmd.AddCommand(client.ConfigCmd())

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
