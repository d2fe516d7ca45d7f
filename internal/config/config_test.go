package config

import (
	"strings"
	"testing"

	kberrors "github.com/conneroisu/kbdebug/internal/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name          string
		setup         func()
		expectError   bool
		expectedHooks []string
	}{
		{
			name: "successful load with defaults",
			setup: func() {
				viper.Reset()
			},
			expectedHooks: []string{"gettext", "gettext_with_context"},
		},
		{
			name: "custom exclusion set",
			setup: func() {
				viper.Reset()
				viper.Set("debug.excluded_hooks", []string{"gettext", "esc_html"})
			},
			expectedHooks: []string{"gettext", "esc_html"},
		},
		{
			name: "explicitly empty exclusion set",
			setup: func() {
				viper.Reset()
				viper.Set("debug.excluded_hooks", []string{})
			},
			expectedHooks: []string{},
		},
		{
			name: "invalid viper config",
			setup: func() {
				viper.Reset()
				viper.Set("server.port", "invalid_port")
			},
			expectError: true,
		},
		{
			name: "port out of range",
			setup: func() {
				viper.Reset()
				viper.Set("server.port", 70000)
			},
			expectError: true,
		},
		{
			name: "bad file pattern",
			setup: func() {
				viper.Reset()
				viper.Set("debug.file_patterns", []string{"plugins/(unclosed"})
			},
			expectError: true,
		},
		{
			name: "roles path traversal",
			setup: func() {
				viper.Reset()
				viper.Set("roles.path", "../../etc/roles.yml")
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()

			config, err := Load()

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, config)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, config)
			assert.ElementsMatch(t, tt.expectedHooks, config.Debug.ExcludedHooks)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.True(t, config.Server.WatchConfig)

	assert.False(t, config.Debug.Enabled)
	assert.False(t, config.Debug.DisplayHooks)
	assert.False(t, config.Debug.ForceHide)
	assert.True(t, config.Debug.QueryFlags)
	assert.True(t, config.Debug.SkipAjax)
	assert.True(t, config.Debug.SuppressDeprecated)

	assert.Equal(t, ".kbdebug/roles.yml", config.Roles.Path)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "text", config.Logging.Format)
	assert.True(t, config.Console.Enabled)
	assert.Equal(t, "/_kbdebug", config.Console.Path)
	assert.NotNil(t, config.Constants)
}

func TestConfigStructure(t *testing.T) {
	viper.Reset()
	viper.Set("server.port", 9090)
	viper.Set("server.host", "127.0.0.1")
	viper.Set("server.watch_config", false)

	viper.Set("debug.enabled", true)
	viper.Set("debug.display_hooks", true)
	viper.Set("debug.display_constants", true)
	viper.Set("debug.force_hide", false)
	viper.Set("debug.query_flags", false)
	viper.Set("debug.skip_ajax", false)
	viper.Set("debug.file_patterns", []string{"plugins/gallery"})

	viper.Set("logging.level", "debug")
	viper.Set("logging.format", "json")
	viper.Set("console.enabled", false)
	viper.Set("constants", map[string]interface{}{"SITE_NAME": "demo"})

	config, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.False(t, config.Server.WatchConfig)

	assert.True(t, config.Debug.Enabled)
	assert.True(t, config.Debug.DisplayHooks)
	assert.True(t, config.Debug.DisplayConstants)
	assert.False(t, config.Debug.QueryFlags)
	assert.False(t, config.Debug.SkipAjax)
	assert.Equal(t, []string{"plugins/gallery"}, config.Debug.FilePatterns)

	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.False(t, config.Console.Enabled)
	require.Len(t, config.Constants, 1)
	for name, value := range config.Constants {
		assert.True(t, strings.EqualFold("SITE_NAME", name))
		assert.Equal(t, "demo", value)
	}
}

func TestValidateConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   string
	}{
		{"dangerous host", func(c *Config) { c.Server.Host = "localhost;rm" }, "ERR_HOST"},
		{"empty excluded hook", func(c *Config) { c.Debug.ExcludedHooks = []string{" "} }, "ERR_EXCLUDED_HOOK"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "ERR_LOG_FORMAT"},
		{"console path", func(c *Config) { c.Console.Path = "kbdebug" }, "ERR_CONSOLE_PATH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Server:  ServerConfig{Port: 8080, Host: "localhost"},
				Roles:   RolesConfig{Path: "roles.yml"},
				Logging: LoggingConfig{Level: "info", Format: "text"},
				Console: ConsoleConfig{Path: "/_kbdebug"},
			}
			tt.mutate(cfg)

			err := validateConfig(cfg)
			require.Error(t, err)

			var de *kberrors.DebugError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.code, de.Code)
		})
	}
}

func TestLoad_EmptyExclusionFromFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetConfigType("yaml")
	require.NoError(t, viper.ReadConfig(strings.NewReader("debug:\n  excluded_hooks: []\n")))

	config, err := Load()
	require.NoError(t, err)

	require.NotNil(t, config.Debug.ExcludedHooks, "an empty list must not fall back to the defaults")
	assert.Empty(t, config.Debug.ExcludedHooks)
}
