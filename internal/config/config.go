// Package config provides configuration management for kbdebug using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration covers the demo server, the debug feature flags
// (KB_DEBUG, KB_DISPLAY_HOOKS, ...), the role maintenance store, logging and
// the live console. Environment overrides use the KBDEBUG_ prefix.
package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	kberrors "github.com/conneroisu/kbdebug/internal/errors"
	"github.com/spf13/viper"
)

// DefaultExcludedHooks are the high-frequency translation hooks that are
// counted but never logged individually.
var DefaultExcludedHooks = []string{"gettext", "gettext_with_context"}

type Config struct {
	Server    ServerConfig           `yaml:"server" mapstructure:"server"`
	Debug     DebugConfig            `yaml:"debug" mapstructure:"debug"`
	Roles     RolesConfig            `yaml:"roles" mapstructure:"roles"`
	Logging   LoggingConfig          `yaml:"logging" mapstructure:"logging"`
	Console   ConsoleConfig          `yaml:"console" mapstructure:"console"`
	Constants map[string]interface{} `yaml:"constants" mapstructure:"constants"`
}

type ServerConfig struct {
	Port        int    `yaml:"port" mapstructure:"port"`
	Host        string `yaml:"host" mapstructure:"host"`
	WatchConfig bool   `yaml:"watch_config" mapstructure:"watch_config"`
}

// DebugConfig mirrors the KB_* feature flags plus collection settings.
type DebugConfig struct {
	Enabled            bool     `yaml:"enabled" mapstructure:"enabled"`
	DisplayHooks       bool     `yaml:"display_hooks" mapstructure:"display_hooks"`
	DisplayConstants   bool     `yaml:"display_constants" mapstructure:"display_constants"`
	ForceHide          bool     `yaml:"force_hide" mapstructure:"force_hide"`
	ResetCaps          bool     `yaml:"reset_caps" mapstructure:"reset_caps"`
	QueryFlags         bool     `yaml:"query_flags" mapstructure:"query_flags"`
	SkipAjax           bool     `yaml:"skip_ajax" mapstructure:"skip_ajax"`
	SuppressDeprecated bool     `yaml:"suppress_deprecated" mapstructure:"suppress_deprecated"`
	ExcludedHooks      []string `yaml:"excluded_hooks" mapstructure:"excluded_hooks"`
	FilePatterns       []string `yaml:"file_patterns" mapstructure:"file_patterns"`
}

type RolesConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, kberrors.NewConfigError("ERR_CONFIG_DECODE", err.Error())
	}

	if config.Server.Port == 0 && !viper.IsSet("server.port") {
		config.Server.Port = 8080
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if !viper.IsSet("server.watch_config") {
		config.Server.WatchConfig = true
	}

	// Defaults for the debug block; bools need IsSet because false is a
	// meaningful explicit value.
	if !viper.IsSet("debug.query_flags") {
		config.Debug.QueryFlags = true
	}
	if !viper.IsSet("debug.skip_ajax") {
		config.Debug.SkipAjax = true
	}
	if !viper.IsSet("debug.suppress_deprecated") {
		config.Debug.SuppressDeprecated = true
	}
	if viper.IsSet("debug.excluded_hooks") && len(config.Debug.ExcludedHooks) == 0 {
		config.Debug.ExcludedHooks = viper.GetStringSlice("debug.excluded_hooks")
		// An explicit empty list disables exclusion; nil would mean defaults.
		if config.Debug.ExcludedHooks == nil {
			config.Debug.ExcludedHooks = []string{}
		}
	}
	if !viper.IsSet("debug.excluded_hooks") {
		config.Debug.ExcludedHooks = append([]string(nil), DefaultExcludedHooks...)
	}
	if viper.IsSet("debug.file_patterns") && len(config.Debug.FilePatterns) == 0 {
		config.Debug.FilePatterns = viper.GetStringSlice("debug.file_patterns")
	}

	if config.Roles.Path == "" {
		config.Roles.Path = ".kbdebug/roles.yml"
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}

	if !viper.IsSet("console.enabled") {
		config.Console.Enabled = true
	}
	if config.Console.Path == "" {
		config.Console.Path = "/_kbdebug"
	}

	if config.Constants == nil {
		config.Constants = make(map[string]interface{})
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateDebugConfig(&config.Debug); err != nil {
		return fmt.Errorf("debug config: %w", err)
	}

	if err := validatePath(config.Roles.Path); err != nil {
		return fmt.Errorf("roles config: %w", err)
	}

	switch config.Logging.Format {
	case "text", "json":
	default:
		return kberrors.NewValidationError("ERR_LOG_FORMAT",
			fmt.Sprintf("logging format %q must be text or json", config.Logging.Format))
	}

	if !strings.HasPrefix(config.Console.Path, "/") {
		return kberrors.NewValidationError("ERR_CONSOLE_PATH",
			fmt.Sprintf("console path %q must start with /", config.Console.Path))
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// 0 is allowed for system-assigned ports in tests
	if config.Port < 0 || config.Port > 65535 {
		return kberrors.NewValidationError("ERR_PORT",
			fmt.Sprintf("port %d is not in valid range 0-65535", config.Port))
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
	for _, char := range dangerousChars {
		if strings.Contains(config.Host, char) {
			return kberrors.NewValidationError("ERR_HOST",
				fmt.Sprintf("host contains dangerous character: %s", char))
		}
	}

	return nil
}

func validateDebugConfig(config *DebugConfig) error {
	for _, name := range config.ExcludedHooks {
		if strings.TrimSpace(name) == "" {
			return kberrors.NewValidationError("ERR_EXCLUDED_HOOK", "excluded hook names cannot be empty")
		}
	}
	for _, pattern := range config.FilePatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return kberrors.NewValidationError("ERR_FILE_PATTERN",
				fmt.Sprintf("file pattern %q: %v", pattern, err))
		}
	}
	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
