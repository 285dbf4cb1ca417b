package client

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// SearchRequest is the body of POST /memory/search.
type SearchRequest struct {
	Query   string `json:"query"`
	Persona string `json:"persona,omitempty"`
	K       int    `json:"k,omitempty"`
	Strict  bool   `json:"strict,omitempty"`
}

// SearchHit is one reranked memory excerpt.
type SearchHit struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Speaker   string  `json:"speaker,omitempty"`
	Persona   string  `json:"persona,omitempty"`
	ChunkType string  `json:"chunk_type,omitempty"`
	SourceURI string  `json:"source_uri,omitempty"`
	Score     float64 `json:"score"`
	Distance  float32 `json:"distance"`
}

type SearchResponse struct {
	Results []SearchHit `json:"results"`
}

// SearchCmd creates the search command.
func SearchCmd() *cobra.Command {
	var (
		persona string
		k       int
		strict  bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search long-term memory",
		Long:  "Runs the retriever the way a persona would, and shows scores. --strict drops chunks scoped to other personas.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post(cmd.Context(), "/memory/search", SearchRequest{
				Query:   args[0],
				Persona: persona,
				K:       k,
				Strict:  strict,
			})
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			var out SearchResponse
			if err := resp.Decode(&out); err != nil {
				return err
			}
			if wantsJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			if len(out.Results) == 0 {
				fmt.Fprintln(w, "No results found.")
				return nil
			}

			fmt.Fprintf(w, "Found %d results:\n\n", len(out.Results))
			for i, hit := range out.Results {
				who := hit.Speaker
				if who == "" {
					who = "-"
				}
				fmt.Fprintf(w, "%d. [%s] %s (score %.2f, distance %.3f)\n", i+1, hit.ChunkType, who, hit.Score, hit.Distance)
				fmt.Fprintf(w, "   %s\n", truncate(hit.Text, 160))
				fmt.Fprintf(w, "   ID: %s\n", hit.ID)
				if i < len(out.Results)-1 {
					fmt.Fprintln(w, strings.Repeat("-", 40))
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&persona, "persona", "p", "", "Persona to rank for")
	cmd.Flags().IntVarP(&k, "k", "k", 5, "Number of results")
	cmd.Flags().BoolVar(&strict, "strict", false, "Only the persona's own and global chunks")

	return cmd
}
