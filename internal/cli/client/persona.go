package client

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// Persona is a persona as listed by the API.
type Persona struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Personality  string   `json:"personality"`
	Style        string   `json:"style"`
	AllowedTools []string `json:"allowed_tools"`
	Builtin      bool     `json:"builtin"`
}

type personaList struct {
	Items []Persona `json:"items"`
}

// PersonaCmd creates the persona command.
func PersonaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "persona",
		Short: "Inspect personas",
	}
	cmd.AddCommand(personaListCmd())
	return cmd
}

func personaListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List personas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Get(cmd.Context(), "/personas")
			if err != nil {
				return fmt.Errorf("failed to list personas: %w", err)
			}

			var list personaList
			if err := resp.Decode(&list); err != nil {
				return err
			}

			if wantsJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), list.Items)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tKIND\tTOOLS\tPERSONALITY")
			for _, p := range list.Items {
				kind := "runtime"
				if p.Builtin {
					kind = "builtin"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name, kind, strings.Join(p.AllowedTools, ","), truncate(p.Personality, 40))
			}
			return w.Flush()
		},
	}
}
