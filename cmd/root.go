// Package cmd provides the command-line interface for kbdebug.
//
// Configuration is read from, in order of precedence:
//
//	1. Command-line flags (--config, --port, ...)
//	2. KBDEBUG_CONFIG_FILE: path to the configuration file
//	3. KBDEBUG_<SECTION>_<OPTION> environment variables (KBDEBUG_DEBUG_ENABLED=true)
//	4. .kbdebug.yml in the working directory
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "kbdebug",
	Short: "Per-request error and hook debugging for web handlers",
	Long: `kbdebug intercepts notices and hook invocations while a request is served
and appends an HTML report to the page once the request finishes.

Feature flags (constants, config keys or query parameters):
  KB_DEBUG              render the report
  KB_DISPLAY_HOOKS      include every hook that had callbacks
  KB_DISPLAY_CONSTANTS  dump user-defined constants as a notice
  KB_FORCE_HIDE         collect but render nothing
  KB_RESET_CAPS         rebuild the default roles file

Quick Start:
  kbdebug serve                   Start the demo site with the debug middleware
  kbdebug config show             Print the effective configuration
  kbdebug reset-caps              Rebuild the roles file`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .kbdebug.yml, can also use KBDEBUG_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig points viper at the config file and enables KBDEBUG_ env
// overrides. A missing file is not an error; defaults apply.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("KBDEBUG_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".kbdebug")
	}

	viper.SetEnvPrefix("KBDEBUG")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
