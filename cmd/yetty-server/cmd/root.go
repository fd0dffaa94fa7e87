// Package cmd implements the yetty-server command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zokrezyl/yetty-sub000/internal/config"
	"github.com/zokrezyl/yetty-sub000/internal/server"
	"github.com/zokrezyl/yetty-sub000/internal/signals"
	"github.com/zokrezyl/yetty-sub000/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "yetty-server",
	Short: "Headless terminal session server",
	Long: `yetty-server runs a shell behind a pseudo-terminal and publishes its
screen over shared memory. Renderers attach through a Unix control
socket, map the shared region named in the CONNECTED greeting, and read
consistent frames without ever blocking the session.

PROTOCOL (newline-framed ASCII on the control socket):
  KEY <codepoint> <mod>     Send a unicode keypress
  SPECIAL <key> <mod>       Send a named key (arrows, F-keys, ...)
  RAW <len>                 Send <len> literal bytes (follow the newline)
  RESIZE <cols> <rows>      Resize the session; the region is recreated
  SCROLL <lines>            Scroll the viewport (positive = history)
  SCROLL_TOP / SCROLL_BOTTOM
  START                     Acknowledged with OK

The server answers with CONNECTED/RESIZED (region name + dimensions),
DAMAGE (a frame was published), and BELL.

Examples:
  yetty-server                          # defaults: 80x24, $SHELL
  yetty-server --cols 120 --rows 40 --exec /bin/zsh
  yetty-server --socket /tmp/demo.sock --verbose`,
	RunE:          runServer,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagSocket     string
	flagShmName    string
	flagCols       int
	flagRows       int
	flagExec       string
	flagScrollback int
	flagSyncMS     int
	flagConfig     string
	flagPIDFile    string
	flagVerbose    bool
	flagJSONLogs   bool
)

func init() {
	rootCmd.Version = version.Info("yetty-server")

	f := rootCmd.Flags()
	f.StringVar(&flagSocket, "socket", "", "control socket path (default from config)")
	f.StringVar(&flagShmName, "shm", "", "shared region name (default: generated per session)")
	f.IntVar(&flagCols, "cols", 0, "initial columns")
	f.IntVar(&flagRows, "rows", 0, "initial rows")
	f.StringVar(&flagExec, "exec", "", "command to run (default: $SHELL)")
	f.IntVar(&flagScrollback, "scrollback", 0, "scrollback lines")
	f.IntVar(&flagSyncMS, "sync-interval", 0, "publish interval in milliseconds")
	f.StringVar(&flagConfig, "config", "", "config file (default: ~/.config/yetty/server.yaml)")
	f.StringVar(&flagPIDFile, "pid-file", "", "pid file path (default: $XDG_RUNTIME_DIR/yetty/server.pid)")
	f.BoolVar(&flagVerbose, "verbose", false, "enable debug logging")
	f.BoolVar(&flagJSONLogs, "json", false, "output logs in JSON format")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func newLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if flagVerbose {
		logLevel = slog.LevelDebug
	}
	logOpts := &slog.HandlerOptions{Level: logLevel}
	var handler slog.Handler
	if flagJSONLogs {
		handler = slog.NewJSONHandler(os.Stderr, logOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, logOpts)
	}
	return slog.New(handler)
}

// buildConfig overlays flags on the config file on the defaults.
func buildConfig() (config.Server, error) {
	path := flagConfig
	if path == "" {
		path = config.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if flagSocket != "" {
		cfg.Socket = flagSocket
	}
	if flagShmName != "" {
		cfg.ShmName = flagShmName
	}
	if flagCols > 0 {
		cfg.Cols = flagCols
	}
	if flagRows > 0 {
		cfg.Rows = flagRows
	}
	if flagExec != "" {
		cfg.Shell = flagExec
	}
	if flagScrollback > 0 {
		cfg.ScrollbackLines = flagScrollback
	}
	if flagSyncMS > 0 {
		cfg.SyncIntervalMS = flagSyncMS
	}
	if cfg.ShmName == "" {
		cfg.ShmName = "yetty-grid-" + uuid.NewString()[:8]
	}
	return cfg, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	slog.SetDefault(logger)

	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Socket), 0o755); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}

	if err := signals.WritePIDFile(flagPIDFile, os.Getpid()); err != nil {
		return err
	}
	defer func() {
		if err := signals.RemovePIDFile(flagPIDFile); err != nil {
			logger.Warn("remove pid file failed", "error", err)
		}
	}()

	srv, err := server.New(server.Config{
		SocketPath:      cfg.Socket,
		ShmName:         cfg.ShmName,
		Cols:            cfg.Cols,
		Rows:            cfg.Rows,
		Shell:           cfg.Shell,
		ScrollbackLines: cfg.ScrollbackLines,
		SyncInterval:    cfg.SyncInterval(),
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	handler := signals.New()
	defer handler.Close()
	go func() {
		sig := <-handler.Shutdown()
		logger.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	return srv.Run(ctx)
}
