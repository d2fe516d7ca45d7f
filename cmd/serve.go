package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/conneroisu/kbdebug/internal/config"
	"github.com/conneroisu/kbdebug/internal/console"
	"github.com/conneroisu/kbdebug/internal/constants"
	"github.com/conneroisu/kbdebug/internal/hooks"
	"github.com/conneroisu/kbdebug/internal/logging"
	"github.com/conneroisu/kbdebug/internal/middleware"
	"github.com/conneroisu/kbdebug/internal/notice"
	"github.com/conneroisu/kbdebug/internal/roles"
	"github.com/conneroisu/kbdebug/internal/site"
	"github.com/conneroisu/kbdebug/internal/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	reloadDelay     = 250 * time.Millisecond
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the demo site behind the debug middleware",
	Long: `Start the demo site with the debug middleware installed.

Every page fires hooks and raises a few notices. With KB_DEBUG set the report
is appended to the page and pushed to the live console.

Examples:
  kbdebug serve                          # http://localhost:8080
  kbdebug serve --port 3000
  curl 'localhost:8080/?KB_DEBUG&KB_DISPLAY_HOOKS'`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	AddServerFlags(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(cfg)
	notice.SetFallbackLogger(logger.WithComponent("notice"))

	a := newApp(cfg, logger)
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if path := viper.ConfigFileUsed(); path != "" && cfg.Server.WatchConfig {
		cw, err := watcher.NewConfigWatcher(path, reloadDelay, a.reload, logger)
		if err != nil {
			logger.Warn(ctx, err, "Config watching disabled", "path", path)
		} else {
			cw.Start(ctx)
			defer cw.Stop()
		}
	}

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving kbdebug demo at http://%s\n", addr)
	if cfg.Console.Enabled {
		fmt.Fprintf(cmd.OutOrStdout(), "Live console: http://%s%s/\n", addr, cfg.Console.Path)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if a.console != nil {
		if err := a.console.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, err, "Console shutdown failed")
		}
	}
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg *config.Config) *logging.KBLogger {
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.Logging.Level),
		Format:    cfg.Logging.Format,
		Output:    os.Stderr,
		Component: "kbdebug",
	})
}

// app is the wired server: demo site, debug middleware and live console.
type app struct {
	cfg     atomic.Pointer[config.Config]
	logger  logging.Logger
	console *console.Manager
	handler http.Handler
}

func newApp(cfg *config.Config, logger *logging.KBLogger) *app {
	a := &app{logger: logger}
	a.cfg.Store(cfg)

	registry := hooks.NewRegistry()
	table := constants.FromMap(cfg.Constants)
	current := a.cfg.Load

	pages := http.NewServeMux()
	site.New(site.Options{
		Registry:  registry,
		Config:    current,
		Constants: table,
		Slog:      logger.Slog(),
	}).Routes(pages)

	opts := middleware.DebugOptions{
		Registry:  registry,
		Config:    current,
		Constants: table,
		RoleStore: roles.NewFileStore(cfg.Roles.Path),
		Logger:    logger,
	}

	root := http.NewServeMux()
	if cfg.Console.Enabled {
		a.console = console.NewManager(console.Options{Logger: logger})
		a.console.Routes(root, cfg.Console.Path)
		opts.Console = a.console
	}

	debug := middleware.NewDebug(opts)
	root.Handle("/", middleware.NewChain(
		middleware.RequestLogging(logger),
		debug.Middleware(),
	).Apply(pages))

	a.handler = root
	return a
}

// reload re-reads the config file and swaps it in. Constants stay as
// defined at startup.
func (a *app) reload(ctx context.Context, events []watcher.ChangeEvent) error {
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg.Store(cfg)
	a.logger.Info(ctx, "Configuration reloaded", "events", len(events), "debug", cfg.Debug.Enabled)
	return nil
}

func (a *app) close() {
	if a.console == nil || a.console.IsShutdown() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = a.console.Shutdown(ctx)
}
