// Package client attaches to a running session server: it speaks the
// control channel over the Unix socket and reads grid frames out of
// the shared region the server names in its CONNECTED greeting.
package client

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/zokrezyl/yetty-sub000/internal/shm"
	"github.com/zokrezyl/yetty-sub000/internal/term"
	"github.com/zokrezyl/yetty-sub000/internal/vte"
)

// EventKind discriminates server messages.
type EventKind int

const (
	EventDamage EventKind = iota
	EventResized
	EventBell
	EventOK
)

// Event is one message from the server. Damage events carry the
// published frame's header fields; Resized events carry the new
// dimensions (the shared region has already been remapped when
// NextEvent returns).
type Event struct {
	Kind       EventKind
	Seq        uint32
	FullDamage bool
	Damage     term.Rect
	CursorRow  int
	CursorCol  int
	CursorVis  bool
	Cols, Rows int
}

// Client is one attached viewer.
type Client struct {
	conn net.Conn
	r    *bufio.Reader

	grid       *shm.SharedGrid
	shmName    string
	cols, rows int
}

// Dial connects to the server socket, waits for the CONNECTED
// greeting, and maps the shared region it names.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", socketPath, err)
	}
	c := &Client{conn: conn, r: bufio.NewReader(conn)}

	line, err := c.readLine()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read greeting: %w", err)
	}
	name, cols, rows, err := parseRegionLine(line, "CONNECTED")
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := c.remap(name, cols, rows); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) readLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *Client) remap(name string, cols, rows int) error {
	if c.grid != nil {
		_ = c.grid.Close()
		c.grid = nil
	}
	grid, err := shm.OpenClient(name)
	if err != nil {
		return err
	}
	if grid.Cols() != cols || grid.Rows() != rows {
		grid.Close()
		return fmt.Errorf("region %s is %dx%d, server said %dx%d",
			name, grid.Cols(), grid.Rows(), cols, rows)
	}
	c.grid = grid
	c.shmName = name
	c.cols, c.rows = cols, rows
	return nil
}

// Cols returns the current session width.
func (c *Client) Cols() int { return c.cols }

// Rows returns the current session height.
func (c *Client) Rows() int { return c.rows }

// ShmName returns the shared region name in use.
func (c *Client) ShmName() string { return c.shmName }

// NewGrid returns a grid sized to the current session, suitable for
// Snapshot. After an EventResized the old grid is stale; allocate a
// fresh one.
func (c *Client) NewGrid() *term.Grid { return term.NewGrid(c.cols, c.rows) }

// Snapshot copies the latest published frame into dst.
func (c *Client) Snapshot(dst *term.Grid) (shm.BufferHeader, error) {
	return c.grid.Snapshot(dst)
}

// NextEvent blocks for the next server message. On RESIZED the shared
// region is remapped before the event is returned.
func (c *Client) NextEvent() (Event, error) {
	for {
		line, err := c.readLine()
		if err != nil {
			return Event{}, err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "DAMAGE":
			ev, err := parseDamage(fields)
			if err != nil {
				return Event{}, err
			}
			return ev, nil
		case "RESIZED":
			name, cols, rows, err := parseRegionLine(line, "RESIZED")
			if err != nil {
				return Event{}, err
			}
			if err := c.remap(name, cols, rows); err != nil {
				return Event{}, err
			}
			return Event{Kind: EventResized, Cols: cols, Rows: rows}, nil
		case "BELL":
			return Event{Kind: EventBell}, nil
		case "OK":
			return Event{Kind: EventOK}, nil
		default:
			// Unknown message from a newer server; skip.
		}
	}
}

func parseRegionLine(line, verb string) (name string, cols, rows int, err error) {
	fields := strings.Fields(line)
	if len(fields) != 4 || fields[0] != verb {
		return "", 0, 0, fmt.Errorf("malformed %s message %q", verb, line)
	}
	cols, err1 := strconv.Atoi(fields[2])
	rows, err2 := strconv.Atoi(fields[3])
	if err1 != nil || err2 != nil || cols <= 0 || rows <= 0 {
		return "", 0, 0, fmt.Errorf("malformed %s message %q", verb, line)
	}
	return fields[1], cols, rows, nil
}

func parseDamage(fields []string) (Event, error) {
	if len(fields) != 10 {
		return Event{}, fmt.Errorf("malformed DAMAGE message (%d fields)", len(fields))
	}
	nums := make([]int, 9)
	for i := range nums {
		n, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return Event{}, fmt.Errorf("malformed DAMAGE field %q", fields[i+1])
		}
		nums[i] = n
	}
	return Event{
		Kind:       EventDamage,
		Seq:        uint32(nums[0]),
		FullDamage: nums[1] != 0,
		Damage: term.Rect{
			StartRow: nums[2], StartCol: nums[3],
			EndRow: nums[4], EndCol: nums[5],
		},
		CursorRow: nums[6],
		CursorCol: nums[7],
		CursorVis: nums[8] != 0,
	}, nil
}

//
// commands
//

func (c *Client) command(format string, args ...any) error {
	if _, err := fmt.Fprintf(c.conn, format, args...); err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	return nil
}

// SendKey sends a unicode keypress.
func (c *Client) SendKey(cp rune, mod vte.Modifier) error {
	return c.command("KEY %d %d\n", cp, int(mod))
}

// SendSpecialKey sends a named key.
func (c *Client) SendSpecialKey(key vte.Key, mod vte.Modifier) error {
	return c.command("SPECIAL %d %d\n", int(key), int(mod))
}

// SendRaw sends literal bytes to the shell, length-framed.
func (c *Client) SendRaw(data []byte) error {
	if err := c.command("RAW %d\n", len(data)); err != nil {
		return err
	}
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("send raw payload: %w", err)
	}
	return nil
}

// Resize asks the server for new session dimensions. The server
// answers with RESIZED once the region is recreated.
func (c *Client) Resize(cols, rows int) error {
	return c.command("RESIZE %d %d\n", cols, rows)
}

// Scroll moves the server-side viewport; positive goes into history.
func (c *Client) Scroll(lines int) error {
	return c.command("SCROLL %d\n", lines)
}

// ScrollTop jumps to the oldest retained line.
func (c *Client) ScrollTop() error { return c.command("SCROLL_TOP\n") }

// ScrollBottom returns to live output.
func (c *Client) ScrollBottom() error { return c.command("SCROLL_BOTTOM\n") }

// Start acknowledges session start; the server replies OK.
func (c *Client) Start() error { return c.command("START\n") }

// Close drops the connection and unmaps the region.
func (c *Client) Close() error {
	if c.grid != nil {
		_ = c.grid.Close()
		c.grid = nil
	}
	return c.conn.Close()
}
