package cmd

import (
	"fmt"
	"io"

	"github.com/conneroisu/kbdebug/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect kbdebug configuration",
	Long: `Inspect the configuration kbdebug would run with.

Examples:
  kbdebug config show                      # Effective configuration as YAML
  kbdebug config show --config other.yml   # Load a specific file`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults, the config file and KBDEBUG_
environment overrides have been applied.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return writeConfig(cmd.OutOrStdout(), viper.ConfigFileUsed(), cfg)
}

func writeConfig(out io.Writer, source string, cfg *config.Config) error {
	if source != "" {
		if _, err := fmt.Fprintf(out, "# source: %s\n", source); err != nil {
			return err
		}
	}
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}
	return enc.Close()
}
