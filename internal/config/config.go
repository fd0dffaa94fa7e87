// Package config manages the yetty server configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Server is the on-disk server configuration. Every field has a
// working default; an absent file is not an error.
type Server struct {
	// Socket is the Unix socket path the control channel listens on.
	// Default: $XDG_RUNTIME_DIR/yetty/server.sock, falling back to
	// /tmp/yetty-server.sock.
	Socket string `yaml:"socket,omitempty"`

	// ShmName is the shared region name. Empty means a unique name is
	// generated per session.
	ShmName string `yaml:"shm_name,omitempty"`

	// Cols and Rows are the initial grid dimensions.
	// Default: 80x24.
	Cols int `yaml:"cols,omitempty"`
	Rows int `yaml:"rows,omitempty"`

	// Shell is the command to run. Empty means $SHELL, then /bin/sh.
	Shell string `yaml:"shell,omitempty"`

	// ScrollbackLines bounds retained history.
	// Default: 10000.
	ScrollbackLines int `yaml:"scrollback_lines,omitempty"`

	// SyncIntervalMS is the publish tick in milliseconds.
	// Default: 20 (50 Hz).
	SyncIntervalMS int `yaml:"sync_interval_ms,omitempty"`
}

// DefaultServer returns a Server with stock values.
func DefaultServer() Server {
	return Server{
		Socket:          DefaultSocketPath(),
		Cols:            80,
		Rows:            24,
		ScrollbackLines: 10000,
		SyncIntervalMS:  20,
	}
}

// DefaultSocketPath returns the per-user control socket path.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "yetty", "server.sock")
	}
	return "/tmp/yetty-server.sock"
}

// ConfigPath returns the default configuration file location,
// honoring XDG_CONFIG_HOME.
func ConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "yetty", "server.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".yetty", "server.yaml")
	}
	return filepath.Join(home, ".config", "yetty", "server.yaml")
}

// Load reads a config file and overlays it on the defaults. A missing
// file yields the defaults; a malformed file is an error.
func Load(path string) (Server, error) {
	cfg := DefaultServer()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.withDefaults(), nil
}

func (c Server) withDefaults() Server {
	def := DefaultServer()
	if c.Socket == "" {
		c.Socket = def.Socket
	}
	if c.Cols <= 0 {
		c.Cols = def.Cols
	}
	if c.Rows <= 0 {
		c.Rows = def.Rows
	}
	if c.ScrollbackLines <= 0 {
		c.ScrollbackLines = def.ScrollbackLines
	}
	if c.SyncIntervalMS <= 0 {
		c.SyncIntervalMS = def.SyncIntervalMS
	}
	return c
}

// SyncInterval returns the publish tick as a duration.
func (c Server) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMS) * time.Millisecond
}
