// -- cmd/settings.go --
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/foresight/internal/observability"
	"github.com/xkilldash9x/foresight/internal/settings"
)

func newSettingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Print the effective engine settings after config, environment and clamping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			s := settings.New(cfg.Foresight().Partial(), observability.GetLogger())
			out, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode settings: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
