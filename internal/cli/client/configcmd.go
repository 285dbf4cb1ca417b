package client

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// ConfigCmd creates the config command.
func ConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or store client settings",
		Long:  "Settings resolve from flags, then GATEWAY_* environment variables, then the config file.",
	}

	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configSetCmd())

	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective settings and where they come from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flagKey, _ := cmd.Flags().GetString("api-key")
			flagURL, _ := cmd.Flags().GetString("api-url")
			flagUser, _ := cmd.Flags().GetString("user")

			rc, err := ResolveConfig(flagKey, flagURL, flagUser)
			if err != nil {
				return err
			}
			if rc.APIKey.Value != "" {
				rc.APIKey.Value = maskKey(rc.APIKey.Value)
			}

			if wantsJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), rc)
			}

			path, _ := GetConfigPath()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "api_url\t%s\t(%s)\n", rc.APIURL.Value, rc.APIURL.Source)
			fmt.Fprintf(w, "api_key\t%s\t(%s)\n", rc.APIKey.Value, rc.APIKey.Source)
			fmt.Fprintf(w, "user_id\t%s\t(%s)\n", rc.UserID.Value, rc.UserID.Source)
			fmt.Fprintf(w, "config file\t%s\t\n", path)
			return w.Flush()
		},
	}
}

func configSetCmd() *cobra.Command {
	var apiKey, apiURL, userID string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store settings in the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" && apiURL == "" && userID == "" {
				return fmt.Errorf("nothing to set: use --key, --url or --user-id")
			}

			config, err := LoadGlobalConfig()
			if err != nil {
				return err
			}
			if config == nil {
				config = &GlobalConfig{}
			}
			if apiKey != "" {
				config.APIKey = apiKey
			}
			if apiURL != "" {
				config.APIURL = apiURL
			}
			if userID != "" {
				config.UserID = userID
			}

			if err := SaveGlobalConfig(config); err != nil {
				return err
			}
			path, _ := GetConfigPath()
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "key", "", "API key")
	cmd.Flags().StringVar(&apiURL, "url", "", "API URL")
	cmd.Flags().StringVar(&userID, "user-id", "", "User id sent as X-User-Id")

	return cmd
}

func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
