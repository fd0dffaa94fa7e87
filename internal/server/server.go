// Package server runs the terminal session server: one shell behind a
// pty, its grid published over shared memory, and a Unix-socket
// control channel for input, resize, and scroll commands. All session
// state is owned by the single goroutine inside Run; client reader and
// writer goroutines touch nothing but their channels.
package server

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/zokrezyl/yetty-sub000/internal/backend"
	"github.com/zokrezyl/yetty-sub000/internal/shm"
)

// Config configures a Server.
type Config struct {
	SocketPath      string
	ShmName         string
	Cols, Rows      int
	Shell           string
	ScrollbackLines int
	SyncInterval    time.Duration
	Logger          *slog.Logger
}

// DefaultConfig returns the stock configuration. The shared region
// name is left empty; the caller picks a unique one.
func DefaultConfig() Config {
	return Config{
		SocketPath:      "/tmp/yetty-server.sock",
		Cols:            80,
		Rows:            24,
		ScrollbackLines: 10000,
		SyncInterval:    20 * time.Millisecond,
	}
}

// clientSendBuffer is the per-client outbound queue depth. A client
// that falls this far behind is disconnected rather than allowed to
// stall the session.
const clientSendBuffer = 64

type client struct {
	id   int
	conn net.Conn
	send chan []byte
	gone bool
}

type clientCommand struct {
	from *client
	cmd  Command
}

// Server owns one terminal session and its clients.
type Server struct {
	cfg    Config
	logger *slog.Logger

	backend  *backend.Backend
	grid     *shm.SharedGrid
	listener net.Listener

	clients      []*client
	nextClientID int

	accepts     chan net.Conn
	commands    chan clientCommand
	disconnects chan *client
	done        chan struct{}
}

// New starts the shell, creates the shared region, and binds the
// control socket. Any failure here is fatal to the session.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ShmName == "" {
		return nil, fmt.Errorf("shm name must not be empty")
	}

	s := &Server{
		cfg:         cfg,
		logger:      cfg.Logger,
		accepts:     make(chan net.Conn),
		commands:    make(chan clientCommand),
		disconnects: make(chan *client),
		done:        make(chan struct{}),
	}

	s.backend = backend.New(backend.Config{
		Cols:            cfg.Cols,
		Rows:            cfg.Rows,
		Shell:           cfg.Shell,
		ScrollbackLines: cfg.ScrollbackLines,
		Logger:          cfg.Logger,
	})
	s.backend.OnBell(func() { s.broadcast(msgBell) })
	s.backend.OnResizeRequest(func(cols, rows int) {
		if err := s.resize(cols, rows); err != nil {
			s.logger.Error("application resize failed", "error", err)
		}
	})
	if err := s.backend.Start(); err != nil {
		return nil, err
	}

	grid, err := shm.CreateServer(cfg.ShmName, cfg.Cols, cfg.Rows)
	if err != nil {
		s.backend.Stop()
		return nil, err
	}
	s.grid = grid

	// A leftover socket from a dead server would make Listen fail.
	_ = os.Remove(cfg.SocketPath)
	listener, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		s.backend.Stop()
		grid.Close()
		grid.Unlink()
		return nil, fmt.Errorf("listen %s: %w", cfg.SocketPath, err)
	}
	// Any local user may attach.
	if err := os.Chmod(cfg.SocketPath, 0o666); err != nil {
		s.logger.Warn("chmod socket failed", "error", err)
	}
	s.listener = listener

	s.logger.Info("server ready", "socket", cfg.SocketPath, "shm", cfg.ShmName,
		"cols", cfg.Cols, "rows", cfg.Rows)
	return s, nil
}

// Run drives the session until the context is canceled or the shell
// exits. It must be called exactly once.
func (s *Server) Run(ctx context.Context) error {
	go s.acceptLoop()

	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case conn := <-s.accepts:
			s.addClient(conn)

		case cc := <-s.commands:
			s.handleCommand(cc)

		case c := <-s.disconnects:
			s.removeClient(c)

		case data, ok := <-s.backend.Output():
			if !ok {
				s.logger.Info("shell exited, shutting down")
				break loop
			}
			s.backend.Feed(data)

		case <-ticker.C:
			s.publish()
		}
	}

	s.shutdown()
	return nil
}

// shutdown tears the session down in dependency order: no new clients,
// then no clients, then no shell, then no shared region. Closing done
// first releases any reader or accept goroutine parked on a channel
// send, since nothing drains those channels anymore.
func (s *Server) shutdown() {
	close(s.done)
	_ = s.listener.Close()
	_ = os.Remove(s.cfg.SocketPath)
	for _, c := range s.clients {
		c.gone = true
		close(c.send)
		_ = c.conn.Close()
	}
	s.clients = nil
	s.backend.Stop()
	_ = s.grid.Close()
	_ = s.grid.Unlink()
	s.logger.Info("server stopped")
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		select {
		case s.accepts <- conn:
		case <-s.done:
			_ = conn.Close()
			return
		}
	}
}

func (s *Server) addClient(conn net.Conn) {
	s.nextClientID++
	c := &client{
		id:   s.nextClientID,
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}
	s.clients = append(s.clients, c)
	s.logger.Info("client connected", "id", c.id, "total", len(s.clients))

	go s.writeLoop(c)
	go s.readLoop(c)

	s.sendTo(c, formatConnected(s.cfg.ShmName, s.cfg.Cols, s.cfg.Rows))
}

func (s *Server) removeClient(c *client) {
	if c.gone {
		return
	}
	c.gone = true
	for i, existing := range s.clients {
		if existing == c {
			s.clients = append(s.clients[:i], s.clients[i+1:]...)
			break
		}
	}
	close(c.send)
	_ = c.conn.Close()
	s.logger.Info("client disconnected", "id", c.id, "remaining", len(s.clients))
}

// writeLoop drains a client's send queue. A write error just stops the
// drain; the read side notices the dead connection and reports it.
func (s *Server) writeLoop(c *client) {
	for msg := range c.send {
		if _, err := c.conn.Write(msg); err != nil {
			return
		}
	}
}

func (s *Server) readLoop(c *client) {
	r := bufio.NewReader(c.conn)
	for {
		cmd, err := ReadCommand(r)
		if err != nil {
			select {
			case s.disconnects <- c:
			case <-s.done:
			}
			return
		}
		select {
		case s.commands <- clientCommand{from: c, cmd: cmd}:
		case <-s.done:
			return
		}
	}
}

// sendTo queues a message for one client, disconnecting it when the
// queue is full rather than blocking the session.
func (s *Server) sendTo(c *client, msg []byte) {
	if c.gone {
		return
	}
	select {
	case c.send <- msg:
	default:
		s.logger.Warn("client too slow, dropping", "id", c.id)
		s.removeClient(c)
	}
}

func (s *Server) broadcast(msg []byte) {
	// Iterate a copy: sendTo may remove entries.
	for _, c := range append([]*client(nil), s.clients...) {
		s.sendTo(c, msg)
	}
}

func (s *Server) handleCommand(cc clientCommand) {
	if cc.from.gone {
		return
	}
	cmd := cc.cmd
	switch cmd.Kind {
	case CmdKey:
		if err := s.backend.SendKey(cmd.Codepoint, cmd.Mod); err != nil {
			s.logger.Debug("key dropped", "error", err)
		}
	case CmdSpecial:
		if err := s.backend.SendSpecialKey(cmd.Key, cmd.Mod); err != nil {
			s.logger.Debug("key dropped", "error", err)
		}
	case CmdRaw:
		if err := s.backend.SendRaw(cmd.Data); err != nil {
			s.logger.Debug("raw input dropped", "error", err)
		}
	case CmdResize:
		if err := s.resize(cmd.Cols, cmd.Rows); err != nil {
			s.logger.Error("resize failed", "error", err)
		}
	case CmdScroll:
		if cmd.Lines > 0 {
			s.backend.ScrollUp(cmd.Lines)
		} else {
			s.backend.ScrollDown(-cmd.Lines)
		}
	case CmdScrollTop:
		s.backend.ScrollToTop()
	case CmdScrollBottom:
		s.backend.ScrollToBottom()
	case CmdStart:
		// The shell starts with the server; just acknowledge.
		s.sendTo(cc.from, msgOK)
	}
}

// resize reallocates the session and recreates the shared region under
// the same name, then tells every client to remap.
func (s *Server) resize(cols, rows int) error {
	if cols == s.cfg.Cols && rows == s.cfg.Rows {
		return nil
	}
	if err := s.backend.Resize(cols, rows); err != nil {
		return err
	}
	s.cfg.Cols, s.cfg.Rows = cols, rows

	_ = s.grid.Close()
	_ = s.grid.Unlink()
	grid, err := shm.CreateServer(s.cfg.ShmName, cols, rows)
	if err != nil {
		return fmt.Errorf("recreate shared grid: %w", err)
	}
	s.grid = grid

	s.logger.Info("resized", "cols", cols, "rows", rows)
	s.broadcast(formatResized(s.cfg.ShmName, cols, rows))
	return nil
}

// publish runs one sync cycle: if anything changed, compose the grid,
// write it to the back buffer, swap, and notify clients.
func (s *Server) publish() {
	if !s.backend.HasDamage() {
		return
	}
	s.backend.SyncToGrid()

	row, col, visible := s.backend.CursorForViewport()
	hdr := shm.BufferHeader{
		CursorRow:     int32(row),
		CursorCol:     int32(col),
		CursorVisible: visible,
		AltScreen:     s.backend.IsAltScreen(),
		FullDamage:    s.backend.FullDamage(),
		Damage:        s.backend.DamageBounds(),
		ScrollOffset:  int32(s.backend.ScrollOffset()),
	}
	if err := s.grid.Publish(s.backend.Grid(), hdr); err != nil {
		s.logger.Error("publish failed", "error", err)
		return
	}
	s.backend.ClearDamage()
	s.broadcast(formatDamage(s.grid.FrontHeader()))
}
