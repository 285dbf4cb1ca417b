package client

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// KnowledgeItem is a stored knowledge item.
type KnowledgeItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	SourceURI    string `json:"source_uri,omitempty"`
	PersonaScope string `json:"persona_scope,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type knowledgeList struct {
	Items   []KnowledgeItem `json:"items"`
	Cursor  string          `json:"cursor,omitempty"`
	HasMore bool            `json:"has_more"`
}

// ReindexJob is the status of a vector store rebuild.
type ReindexJob struct {
	ID          string `json:"id"`
	Reason      string `json:"reason"`
	Status      string `json:"status"`
	Retries     int    `json:"retries"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

type createKnowledgeRequest struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	SourceURI    string `json:"source_uri,omitempty"`
	PersonaScope string `json:"persona_scope,omitempty"`
}

// KnowledgeCmd creates the knowledge command.
func KnowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "knowledge",
		Aliases: []string{"kn"},
		Short:   "Manage knowledge items",
		Long:    "Add, list and delete knowledge items, and trigger vector store rebuilds.",
	}

	cmd.AddCommand(knowledgeAddCmd())
	cmd.AddCommand(knowledgeListCmd())
	cmd.AddCommand(knowledgeDeleteCmd())
	cmd.AddCommand(knowledgeReindexCmd())

	return cmd
}

func knowledgeAddCmd() *cobra.Command {
	var (
		title   string
		file    string
		source  string
		persona string
	)

	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Add a knowledge item",
		Long:  "Adds a knowledge item from an argument or a file (--file). It is searchable as soon as the command returns.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content := ""
			switch {
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				content = string(data)
				if source == "" {
					source = "file://" + file
				}
			case len(args) == 1:
				content = args[0]
			default:
				return fmt.Errorf("content or --file is required")
			}
			if title == "" {
				return fmt.Errorf("--title is required")
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post(cmd.Context(), "/knowledge/items", createKnowledgeRequest{
				Title:        title,
				Content:      content,
				SourceURI:    source,
				PersonaScope: persona,
			})
			if err != nil {
				return fmt.Errorf("failed to add knowledge: %w", err)
			}

			var item KnowledgeItem
			if err := resp.Decode(&item); err != nil {
				return err
			}
			if wantsJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), item)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", item.ID, item.Title)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Title")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read content from a file")
	cmd.Flags().StringVar(&source, "source", "", "Source URI")
	cmd.Flags().StringVar(&persona, "persona", "", "Persona the item is about")

	return cmd
}

func knowledgeListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			q := url.Values{}
			q.Set("limit", strconv.Itoa(limit))
			if cursor != "" {
				q.Set("cursor", cursor)
			}

			resp, err := api.Get(cmd.Context(), "/knowledge/items?"+q.Encode())
			if err != nil {
				return fmt.Errorf("failed to list knowledge: %w", err)
			}

			var list knowledgeList
			if err := resp.Decode(&list); err != nil {
				return err
			}
			if wantsJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), list)
			}

			if len(list.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No knowledge items.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tPERSONA\tCREATED")
			for _, k := range list.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k.ID, truncate(k.Title, 40), k.PersonaScope, k.CreatedAt)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if list.HasMore && list.Cursor != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\nMore items available. Use --cursor %s\n", strings.Repeat("-", 40), list.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of items")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func knowledgeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a knowledge item",
		Long:  "Deletes a knowledge item. Its text leaves search results once the queued rebuild finishes.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Delete(cmd.Context(), "/knowledge/items/"+url.PathEscape(args[0]))
			if err != nil {
				return fmt.Errorf("failed to delete knowledge: %w", err)
			}

			var job ReindexJob
			if err := resp.Decode(&job); err != nil {
				return err
			}
			if wantsJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), job)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s; rebuild queued as job %s\n", args[0], job.ID)
			return nil
		},
	}
}

func knowledgeReindexCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reindex [job-id]",
		Short: "Queue a vector store rebuild, or show a queued one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			var resp *APIResponse
			if len(args) == 1 {
				resp, err = api.Get(cmd.Context(), "/knowledge/reindex/"+url.PathEscape(args[0]))
			} else {
				resp, err = api.Post(cmd.Context(), "/knowledge/reindex", map[string]string{"reason": reason})
			}
			if err != nil {
				return fmt.Errorf("reindex failed: %w", err)
			}

			var job ReindexJob
			if err := resp.Decode(&job); err != nil {
				return err
			}
			if wantsJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), job)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s: %s", job.ID, job.Status)
			if job.Error != "" {
				fmt.Fprintf(cmd.OutOrStdout(), " (%s)", job.Error)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the rebuild is needed")

	return cmd
}
