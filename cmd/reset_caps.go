package cmd

import (
	"fmt"

	"github.com/conneroisu/kbdebug/internal/config"
	"github.com/conneroisu/kbdebug/internal/roles"
	"github.com/spf13/cobra"
)

var resetCapsCmd = &cobra.Command{
	Use:   "reset-caps",
	Short: "Rebuild the roles file from the default roles",
	Long: `Delete the roles file and write the default roles and capabilities
(administrator, editor, author, contributor, subscriber).

This is the same action KB_RESET_CAPS performs at the start of a request.

Examples:
  kbdebug reset-caps
  KBDEBUG_ROLES_PATH=/tmp/roles.yml kbdebug reset-caps`,
	Args: cobra.NoArgs,
	RunE: runResetCaps,
}

func init() {
	rootCmd.AddCommand(resetCapsCmd)
}

func runResetCaps(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	store := roles.NewFileStore(cfg.Roles.Path)
	if err := roles.Reset(cmd.Context(), store); err != nil {
		return fmt.Errorf("resetting roles: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d default roles to %s\n", len(roles.Defaults()), store.Path())
	return nil
}
