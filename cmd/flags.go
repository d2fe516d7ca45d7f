package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ServerFlags are the listener flags shared by commands that start a server.
type ServerFlags struct {
	Port        int
	Host        string
	WatchConfig bool
}

// serverBindings maps flag names to config keys.
var serverBindings = map[string]string{
	"port":         "server.port",
	"host":         "server.host",
	"watch-config": "server.watch_config",
}

// AddServerFlags registers --port, --host and --watch-config on cmd and
// binds them to their config keys.
func AddServerFlags(cmd *cobra.Command) *ServerFlags {
	flags := &ServerFlags{}
	fs := cmd.Flags()
	fs.IntVarP(&flags.Port, "port", "p", 8080, "Port to serve on")
	fs.StringVar(&flags.Host, "host", "localhost", "Host to bind to")
	fs.BoolVar(&flags.WatchConfig, "watch-config", true, "Reload the config file when it changes")

	if err := bindFlags(viper.GetViper(), fs, serverBindings); err != nil {
		panic(err)
	}
	return flags
}

// bindFlags binds each named flag in fs to its viper key. Unknown flag
// names are an error.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, bindings map[string]string) error {
	names := make([]string, 0, len(bindings))
	for name := range bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		flag := fs.Lookup(name)
		if flag == nil {
			return fmt.Errorf("flag --%s is not defined", name)
		}
		if err := v.BindPFlag(bindings[name], flag); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}
