// Package backend owns one interactive shell session: the
// pseudo-terminal, the escape-sequence engine driving it, and the
// Grid/damage/scrollback state published to clients. All mutation
// happens on the single goroutine that calls Feed; only the pty reader
// goroutine runs concurrently, and it shares nothing but a channel.
package backend

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"

	"github.com/creack/pty"

	"github.com/zokrezyl/yetty-sub000/internal/term"
	"github.com/zokrezyl/yetty-sub000/internal/vte"
)

const ptyReadBufferSize = 32 * 1024

// Config configures a Backend.
type Config struct {
	Cols, Rows      int
	Shell           string // command to run; empty means $SHELL or /bin/sh
	ScrollbackLines int
	Logger          *slog.Logger
}

// Backend is the terminal session state machine. It implements
// vte.Callbacks; every engine effect lands here and is translated into
// Grid mutations and damage records.
type Backend struct {
	logger *slog.Logger

	cols, rows int
	shell      string

	engine     *vte.Engine
	grid       *term.Grid
	damage     *term.DamageTracker
	scrollback *term.Scrollback

	cmd     *exec.Cmd
	ptmx    *os.File
	input   io.Writer
	running atomic.Bool
	output  chan []byte

	cursorRow, cursorCol int
	cursorVisible        bool
	altScreen            bool
	mouseMode            int
	title                string

	scrollOffset int

	sel selection

	// hooks wired by the server
	onBell          func()
	onResizeRequest func(cols, rows int)
}

// New builds a backend without starting a shell. Multiple backends can
// coexist in one process, which the tests rely on.
func New(cfg Config) *Backend {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	b := &Backend{
		logger:        cfg.Logger,
		cols:          cfg.Cols,
		rows:          cfg.Rows,
		grid:          term.NewGrid(cfg.Cols, cfg.Rows),
		damage:        term.NewDamageTracker(),
		scrollback:    term.NewScrollback(cfg.ScrollbackLines),
		output:        make(chan []byte, 64),
		cursorVisible: true,
	}
	b.engine = vte.New(cfg.Cols, cfg.Rows, b)
	b.damage.MarkFull()
	b.shell = cfg.Shell
	return b
}

// Start spawns the shell on a new pseudo-terminal and begins reading
// its output. The read loop sends chunks on Output; the owner feeds
// them back through Feed on its own goroutine.
func (b *Backend) Start() error {
	if b.running.Load() {
		return fmt.Errorf("backend already running")
	}
	shell := b.shell
	if shell == "" {
		shell = os.Getenv("SHELL")
	}
	if shell == "" {
		shell = "/bin/sh"
	}

	cmd := exec.Command(shell)
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Cols: uint16(b.cols),
		Rows: uint16(b.rows),
	})
	if err != nil {
		return fmt.Errorf("pty start: %w", err)
	}

	b.cmd = cmd
	b.ptmx = ptmx
	b.input = ptmx
	b.running.Store(true)
	b.logger.Info("shell started", "command", shell, "pid", cmd.Process.Pid,
		"cols", b.cols, "rows", b.rows)

	go b.readLoop()
	return nil
}

// readLoop reads pty output and forwards copies on the output channel.
// On EOF or error it reaps the child, marks the backend not-running,
// and closes the channel; the owner sees the close and winds down the
// session (the shell is never restarted here).
func (b *Backend) readLoop() {
	buf := make([]byte, ptyReadBufferSize)
	for {
		n, err := b.ptmx.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			b.output <- chunk
		}
		if err != nil {
			break
		}
	}
	state, _ := b.cmd.Process.Wait()
	exitCode := 0
	if state != nil {
		exitCode = state.ExitCode()
	}
	b.running.Store(false)
	b.logger.Info("shell exited", "pid", b.cmd.Process.Pid, "code", exitCode)
	close(b.output)
}

// Output is the channel of raw pty output chunks. It is closed when
// the shell exits.
func (b *Backend) Output() <-chan []byte { return b.output }

// Running reports whether the shell process is still alive.
func (b *Backend) Running() bool { return b.running.Load() }

// Stop terminates the shell. Safe to call when not running.
func (b *Backend) Stop() {
	if !b.running.Load() {
		return
	}
	if b.cmd != nil && b.cmd.Process != nil {
		_ = b.cmd.Process.Signal(syscall.SIGHUP)
	}
	if b.ptmx != nil {
		_ = b.ptmx.Close()
	}
}

// Feed pushes pty output bytes through the escape-sequence engine.
// Must be called from the owning goroutine only.
func (b *Backend) Feed(data []byte) {
	_, _ = b.engine.Write(data)
}

//
// dimensions and properties
//

// Cols returns the session width.
func (b *Backend) Cols() int { return b.cols }

// Rows returns the session height.
func (b *Backend) Rows() int { return b.rows }

// Grid returns the published grid. Callers must treat it as read-only
// outside SyncToGrid.
func (b *Backend) Grid() *term.Grid { return b.grid }

// Title returns the window title (OSC 0/2).
func (b *Backend) Title() string { return b.title }

// IsAltScreen reports whether the application is on the alternate screen.
func (b *Backend) IsAltScreen() bool { return b.altScreen }

// MouseMode returns the engine's mouse reporting mode.
func (b *Backend) MouseMode() int { return b.mouseMode }

// WantsMouseEvents reports whether the application asked for mouse input.
func (b *Backend) WantsMouseEvents() bool { return b.mouseMode != vte.MouseNone }

// OnBell registers a hook invoked on BEL. Runs on the Feed goroutine.
func (b *Backend) OnBell(fn func()) { b.onBell = fn }

// OnResizeRequest registers a hook for application-requested resizes.
func (b *Backend) OnResizeRequest(fn func(cols, rows int)) { b.onResizeRequest = fn }

//
// damage
//

// HasDamage reports whether anything changed since the last publish.
func (b *Backend) HasDamage() bool { return b.damage.HasDamage() }

// FullDamage reports whether the whole screen is dirty.
func (b *Backend) FullDamage() bool { return b.damage.Full() }

// DamageBounds returns the aggregate damage rect for this cycle.
func (b *Backend) DamageBounds() term.Rect {
	if b.damage.Full() {
		return term.Rect{EndRow: b.rows, EndCol: b.cols}
	}
	bounds, ok := b.damage.Bounds()
	if !ok {
		return term.Rect{}
	}
	return bounds
}

// ClearDamage resets damage tracking after a publish.
func (b *Backend) ClearDamage() { b.damage.Clear() }

//
// cursor
//

// CursorForViewport returns the cursor in viewport coordinates. When
// scrolled back the cursor may fall below the viewport, in which case
// it is reported invisible.
func (b *Backend) CursorForViewport() (row, col int, visible bool) {
	row = b.cursorRow + b.scrollOffset
	if row >= b.rows {
		return 0, 0, false
	}
	return row, b.cursorCol, b.cursorVisible
}

//
// scroll offset
//

// ScrollOffset returns how far the viewer has scrolled back; 0 tracks
// live output.
func (b *Backend) ScrollOffset() int { return b.scrollOffset }

// IsScrolledBack reports whether the viewport shows history.
func (b *Backend) IsScrolledBack() bool { return b.scrollOffset > 0 }

// ScrollbackSize returns the number of retained history lines.
func (b *Backend) ScrollbackSize() int { return b.scrollback.Len() }

// ScrollUp moves the viewport further into history.
func (b *Backend) ScrollUp(lines int) { b.setScrollOffset(b.scrollOffset + lines) }

// ScrollDown moves the viewport toward live output.
func (b *Backend) ScrollDown(lines int) { b.setScrollOffset(b.scrollOffset - lines) }

// ScrollToTop jumps to the oldest retained line.
func (b *Backend) ScrollToTop() { b.setScrollOffset(b.scrollback.Len()) }

// ScrollToBottom returns to live output.
func (b *Backend) ScrollToBottom() { b.setScrollOffset(0) }

func (b *Backend) setScrollOffset(offset int) {
	if offset < 0 {
		offset = 0
	}
	if offset > b.scrollback.Len() {
		offset = b.scrollback.Len()
	}
	if offset == b.scrollOffset {
		return
	}
	b.scrollOffset = offset
	b.damage.MarkFull()
}

//
// input
//

// SendKey encodes a unicode keypress and writes it to the pty.
func (b *Backend) SendKey(cp rune, mod vte.Modifier) error {
	return b.writeInput(vte.EncodeKey(cp, mod))
}

// SendSpecialKey encodes a named key and writes it to the pty.
func (b *Backend) SendSpecialKey(key vte.Key, mod vte.Modifier) error {
	return b.writeInput(vte.EncodeSpecialKey(key, mod))
}

// SendRaw writes literal bytes (e.g. pasted text) to the pty.
func (b *Backend) SendRaw(data []byte) error {
	return b.writeInput(data)
}

func (b *Backend) writeInput(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if b.input == nil {
		return fmt.Errorf("backend not started")
	}
	if _, err := b.input.Write(data); err != nil {
		return fmt.Errorf("pty write: %w", err)
	}
	return nil
}

//
// resize
//

// maxTermDim bounds session dimensions; pty winsize fields are uint16.
const maxTermDim = 65535

// Resize reallocates the session at the new dimensions: the pty window
// is resized, both engine screens and the grid are recreated blank,
// the viewport returns to live output, and any selection is dropped.
// The owner must recreate the shared region in the same step.
func (b *Backend) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 || cols > maxTermDim || rows > maxTermDim {
		return fmt.Errorf("invalid dimensions %dx%d", cols, rows)
	}
	b.cols, b.rows = cols, rows
	b.scrollOffset = 0
	b.ClearSelection()
	b.engine.Resize(cols, rows)
	b.grid.Resize(cols, rows)
	b.damage.MarkFull()
	if b.ptmx != nil {
		if err := pty.Setsize(b.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)}); err != nil {
			return fmt.Errorf("pty resize: %w", err)
		}
	}
	b.logger.Debug("resized", "cols", cols, "rows", rows)
	return nil
}

//
// grid sync
//

// SyncToGrid re-reads the engine-visible state into the Grid,
// composing scrollback lines above the live screen when the viewport
// is scrolled back. Run defensively before every publish so the grid
// always reflects the engine even if callbacks were coalesced.
func (b *Backend) SyncToGrid() {
	off := b.scrollOffset
	for row := 0; row < b.rows; row++ {
		if row < off {
			id := b.scrollback.Total() - off + row
			line, _ := b.scrollback.ByID(id)
			b.grid.SetRow(row, line)
			continue
		}
		live := row - off
		for col := 0; col < b.cols; col++ {
			b.grid.SetCell(row, col, b.engine.Cell(live, col))
		}
	}
}

//
// vte.Callbacks implementation
//

var _ vte.Callbacks = (*Backend)(nil)

// Damage records a dirty rect. While scrolled back the composed
// viewport cannot be mapped rect-for-rect, so the whole screen is
// flagged instead.
func (b *Backend) Damage(r term.Rect) {
	if b.scrollOffset > 0 {
		b.damage.MarkFull()
		return
	}
	b.damage.Record(r)
}

// MoveCursor tracks the engine cursor and dirties both cell positions
// so a cursor-only change still triggers a publish.
func (b *Backend) MoveCursor(row, col int, visible bool) {
	if row == b.cursorRow && col == b.cursorCol && visible == b.cursorVisible {
		return
	}
	b.Damage(term.CellRect(b.cursorRow, b.cursorCol))
	b.cursorRow, b.cursorCol, b.cursorVisible = row, col, visible
	b.Damage(term.CellRect(row, col))
}

// PropChange tracks title, alt-screen, mouse-mode, and cursor
// visibility changes.
func (b *Backend) PropChange(prop vte.Prop, value any) {
	switch prop {
	case vte.PropAltScreen:
		b.altScreen, _ = value.(bool)
		b.damage.MarkFull()
	case vte.PropCursorVisible:
		b.cursorVisible, _ = value.(bool)
	case vte.PropMouseMode:
		b.mouseMode, _ = value.(int)
	case vte.PropTitle:
		b.title, _ = value.(string)
		b.logger.Debug("title changed", "title", b.title)
	}
}

// RequestResize forwards an application-requested resize to the owner.
func (b *Backend) RequestResize(cols, rows int) {
	if b.onResizeRequest != nil {
		b.onResizeRequest(cols, rows)
	}
}

// Bell forwards BEL to the owner.
func (b *Backend) Bell() {
	if b.onBell != nil {
		b.onBell()
	}
}

// OSC logs unconsumed OS-command strings.
func (b *Backend) OSC(cmd int, data []byte) {
	b.logger.Debug("unhandled OSC", "cmd", cmd, "len", len(data))
}

// SbPushLine stores a row evicted off the top of the live screen.
func (b *Backend) SbPushLine(cells []term.Cell) {
	b.scrollback.Push(cells)
	if b.scrollOffset > 0 {
		// Composed viewport shifts under the viewer.
		b.damage.MarkFull()
	}
}

// SbPopLine hands the newest history line back to the engine.
func (b *Backend) SbPopLine() ([]term.Cell, bool) {
	return b.scrollback.Pop()
}

// MoveRect treats moved cells as damage at their destination.
func (b *Backend) MoveRect(dest, src term.Rect) {
	b.Damage(dest)
}
