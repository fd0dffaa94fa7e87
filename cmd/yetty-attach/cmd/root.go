// Package cmd implements the yetty-attach command line.
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zokrezyl/yetty-sub000/internal/client"
	"github.com/zokrezyl/yetty-sub000/internal/config"
	"github.com/zokrezyl/yetty-sub000/internal/version"
)

// detachByte detaches the viewer without killing the session (Ctrl-]).
const detachByte = 0x1d

var rootCmd = &cobra.Command{
	Use:   "yetty-attach",
	Short: "Attach a terminal to a running yetty-server session",
	Long: `yetty-attach connects to a yetty-server control socket, maps the
session's shared grid, and mirrors it onto the local terminal. Local
keystrokes are forwarded verbatim; the session keeps running after the
viewer detaches.

Press Ctrl-] to detach.

Examples:
  yetty-attach
  yetty-attach --socket /tmp/demo.sock`,
	RunE:          runAttach,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	flagSocket   string
	flagNoResize bool
)

func init() {
	rootCmd.Version = version.Info("yetty-attach")

	f := rootCmd.Flags()
	f.StringVar(&flagSocket, "socket", "", "control socket path (default: per-user runtime dir)")
	f.BoolVar(&flagNoResize, "no-resize", false, "do not resize the session to this terminal")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func runAttach(cmd *cobra.Command, args []string) error {
	socket := flagSocket
	if socket == "" {
		socket = config.DefaultSocketPath()
	}

	c, err := client.Dial(socket)
	if err != nil {
		return err
	}
	defer c.Close()

	stdin := int(os.Stdin.Fd())
	if !term.IsTerminal(stdin) {
		return fmt.Errorf("stdin is not a terminal")
	}
	oldState, err := term.MakeRaw(stdin)
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	defer term.Restore(stdin, oldState)

	if !flagNoResize {
		if cols, rows, err := term.GetSize(stdin); err == nil {
			if err := c.Resize(cols, rows); err != nil {
				return err
			}
		}
	}

	// Local window changes follow the same path as the initial resize.
	winch := make(chan os.Signal, 1)
	if !flagNoResize {
		signal.Notify(winch, syscall.SIGWINCH)
		defer signal.Stop(winch)
		go func() {
			for range winch {
				if cols, rows, err := term.GetSize(stdin); err == nil {
					_ = c.Resize(cols, rows)
				}
			}
		}()
	}

	// Forward stdin as RAW frames until the detach byte shows up.
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 1024)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			chunk := buf[:n]
			for i, b := range chunk {
				if b == detachByte {
					if i > 0 {
						_ = c.SendRaw(chunk[:i])
					}
					return
				}
			}
			if err := c.SendRaw(chunk); err != nil {
				return
			}
		}
	}()

	r := newRenderer(os.Stdout)
	r.enterScreen()
	defer r.leaveScreen()

	grid := c.NewGrid()
	if hdr, err := c.Snapshot(grid); err == nil {
		r.draw(grid, hdr)
	}

	events := make(chan client.Event)
	errCh := make(chan error, 1)
	go func() {
		for {
			ev, err := c.NextEvent()
			if err != nil {
				errCh <- err
				return
			}
			events <- ev
		}
	}()

	for {
		select {
		case <-done:
			return nil
		case err := <-errCh:
			return fmt.Errorf("session closed: %w", err)
		case ev := <-events:
			switch ev.Kind {
			case client.EventDamage:
				hdr, err := c.Snapshot(grid)
				if err != nil {
					return err
				}
				r.draw(grid, hdr)
			case client.EventResized:
				grid = c.NewGrid()
				hdr, err := c.Snapshot(grid)
				if err != nil {
					return err
				}
				r.draw(grid, hdr)
			case client.EventBell:
				r.bell()
			}
		}
	}
}
