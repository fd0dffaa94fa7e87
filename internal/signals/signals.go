// Package signals owns process lifecycle plumbing: termination
// signals and the server pid file.
package signals

import (
	"os"
	"os/signal"
	"syscall"
)

// Handler listens for OS signals and exposes a normalized shutdown
// channel. SIGINT, SIGTERM, and SIGHUP all mean shut down; the session
// dies with its server, so HUP has no reload meaning here.
type Handler struct {
	shutdown chan os.Signal
	stop     func()
}

// New starts a signal handler for the current process.
func New() *Handler {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	return &Handler{
		shutdown: ch,
		stop:     func() { signal.Stop(ch) },
	}
}

// Shutdown returns the channel that receives termination signals.
func (h *Handler) Shutdown() <-chan os.Signal {
	if h == nil {
		return nil
	}
	return h.shutdown
}

// Close stops signal delivery.
func (h *Handler) Close() error {
	if h == nil || h.stop == nil {
		return nil
	}
	h.stop()
	return nil
}

// SendHUP asks another server process to shut down.
func SendHUP(pid int) error {
	return syscall.Kill(pid, syscall.SIGHUP)
}

// isProcessAlive reports whether a pid refers to a live process we can
// signal.
func isProcessAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
