package admin

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/deldesir/gateway/internal/service"
	"github.com/spf13/cobra"
)

// PersonaCmd returns the persona command
func PersonaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "persona",
		Short: "Manage personas",
		Long:  "List built-in and runtime personas, and create or delete runtime personas",
	}

	cmd.AddCommand(personaListCmd())
	cmd.AddCommand(personaCreateCmd())
	cmd.AddCommand(personaDeleteCmd())

	return cmd
}

func withPersonaService(fn func(ctx context.Context, svc *service.PersonaService) error) error {
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

	return fn(ctx, a.personas)
}

func personaListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPersonaService(func(ctx context.Context, svc *service.PersonaService) error {
				personas, err := svc.List(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tKIND\tTOOLS")
				for _, p := range personas {
					kind := "runtime"
					if p.Builtin {
						kind = "builtin"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, kind, strings.Join(p.AllowedTools, ","))
				}
				return w.Flush()
			})
		},
	}
}

func personaCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a runtime persona",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input := service.CreatePersonaInput{}
			input.ID, _ = cmd.Flags().GetString("id")
			input.Name, _ = cmd.Flags().GetString("name")
			input.Personality, _ = cmd.Flags().GetString("personality")
			input.Style, _ = cmd.Flags().GetString("style")
			input.SystemPrompt, _ = cmd.Flags().GetString("system-prompt")
			input.AllowedTools, _ = cmd.Flags().GetStringSlice("tools")

			if path, _ := cmd.Flags().GetString("knowledge-file"); path != "" {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read knowledge file: %w", err)
				}
				input.Knowledge = string(data)
			}

			return withPersonaService(func(ctx context.Context, svc *service.PersonaService) error {
				p, err := svc.Create(ctx, input)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created persona %s (%s)\n", p.ID, p.Name)
				return nil
			})
		},
	}

	cmd.Flags().String("id", "", "Persona id (lowercase letters, digits, - and _)")
	cmd.Flags().String("name", "", "Display name")
	cmd.Flags().String("personality", "", "Personality description")
	cmd.Flags().String("style", "", "Speaking style")
	cmd.Flags().String("system-prompt", "", "Full system prompt, replacing the character card")
	cmd.Flags().StringSlice("tools", []string{"retrieval"}, "Allowed tools")
	cmd.Flags().String("knowledge-file", "", "File with background knowledge text")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func personaDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a runtime persona",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPersonaService(func(ctx context.Context, svc *service.PersonaService) error {
				if err := svc.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted persona %s\n", args[0])
				return nil
			})
		},
	}
}
