// Package vte interprets a terminal byte stream. The engine turns
// escape sequences into screen mutations and reports every effect
// through the Callbacks interface; the backend implements Callbacks
// and mirrors the engine state into its Grid. The engine is consumed
// strictly at this boundary so it can be swapped without touching the
// backend or the transport.
//
// The package also owns the reverse direction: EncodeKey and
// EncodeSpecialKey produce the byte sequences a terminal application
// expects on its input side.
package vte

import (
	"github.com/zokrezyl/yetty-sub000/internal/term"
)

// Prop identifies a terminal property reported through PropChange.
type Prop int

const (
	// PropCursorVisible carries a bool.
	PropCursorVisible Prop = iota
	// PropAltScreen carries a bool.
	PropAltScreen
	// PropMouseMode carries an int (one of the Mouse* constants).
	PropMouseMode
	// PropTitle carries a string (OSC 0/2).
	PropTitle
	// PropBracketedPaste carries a bool.
	PropBracketedPaste
)

// Mouse reporting modes, ordered by how much they report.
const (
	MouseNone = iota
	MouseClick
	MouseDrag
	MouseMove
)

// Callbacks receives every externally visible effect of the byte
// stream, one method per callback. Implementations run on the
// goroutine that calls Engine.Write.
type Callbacks interface {
	// Damage reports a rectangle of mutated cells.
	Damage(r term.Rect)
	// MoveCursor reports the new cursor position and visibility.
	MoveCursor(row, col int, visible bool)
	// PropChange reports a property change; the value type depends on
	// the property.
	PropChange(prop Prop, value any)
	// RequestResize reports a size requested by the application
	// (DECCOLM). The owner decides whether to honor it.
	RequestResize(cols, rows int)
	// Bell reports BEL.
	Bell()
	// OSC reports an operating-system command string that the engine
	// does not consume itself.
	OSC(cmd int, data []byte)
	// SbPushLine hands over a row evicted off the top of the primary
	// screen. The receiver owns the slice.
	SbPushLine(cells []term.Cell)
	// SbPopLine asks for the newest scrollback line back when the
	// primary screen un-scrolls. ok is false when history is empty.
	SbPopLine() ([]term.Cell, bool)
	// MoveRect reports cells moved wholesale from src to dest
	// (scrolling). Receivers that do not track moves may treat dest
	// as damaged.
	MoveRect(dest, src term.Rect)
}

// pen is the attribute state applied to newly written cells.
type pen struct {
	fg   term.Color
	bg   term.Color
	attr term.Attr
}

func defaultPen() pen {
	return pen{fg: term.DefaultColor, bg: term.DefaultColor}
}

type savedCursor struct {
	row, col int
	pen      pen
	valid    bool
}

// Engine is the escape-sequence interpreter. It is not safe for
// concurrent use; the owning backend feeds it from a single goroutine.
type Engine struct {
	cb Callbacks

	cols, rows int

	primary []term.Cell
	alt     []term.Cell
	onAlt   bool

	cursorRow, cursorCol int
	cursorVisible        bool
	pendingWrap          bool

	pen   pen
	saved savedCursor
	// cursor saved on alt-screen entry (DECSET 1049)
	altSaved savedCursor

	scrollTop    int // inclusive
	scrollBottom int // exclusive

	autoWrap   bool
	originMode bool

	mouseMode      int
	bracketedPaste bool
	title          string

	p parser
}

// New returns an engine with a blank cols x rows screen. The callback
// sink must be non-nil.
func New(cols, rows int, cb Callbacks) *Engine {
	e := &Engine{cb: cb}
	e.reset(cols, rows)
	return e
}

func (e *Engine) reset(cols, rows int) {
	e.cols, e.rows = cols, rows
	e.primary = blankScreen(cols, rows)
	e.alt = blankScreen(cols, rows)
	e.onAlt = false
	e.cursorRow, e.cursorCol = 0, 0
	e.cursorVisible = true
	e.pendingWrap = false
	e.pen = defaultPen()
	e.saved = savedCursor{}
	e.altSaved = savedCursor{}
	e.scrollTop, e.scrollBottom = 0, rows
	e.autoWrap = true
	e.originMode = false
	e.mouseMode = MouseNone
	e.bracketedPaste = false
	e.p = parser{}
}

func blankScreen(cols, rows int) []term.Cell {
	cells := make([]term.Cell, cols*rows)
	for i := range cells {
		cells[i] = term.Blank
	}
	return cells
}

// Write feeds raw pty output into the interpreter. Callbacks fire
// inline. Malformed sequences are dropped; Write never fails.
func (e *Engine) Write(data []byte) (int, error) {
	for _, b := range data {
		e.p.feed(e, b)
	}
	return len(data), nil
}

// Resize reallocates both screens blank at the new dimensions and
// resets the scroll region. Content is not preserved; the shell is
// expected to redraw after SIGWINCH.
func (e *Engine) Resize(cols, rows int) {
	title, mouse, paste := e.title, e.mouseMode, e.bracketedPaste
	e.reset(cols, rows)
	e.title, e.mouseMode, e.bracketedPaste = title, mouse, paste
	e.cb.Damage(e.fullRect())
	e.cb.MoveCursor(0, 0, e.cursorVisible)
}

// Cols returns the screen width.
func (e *Engine) Cols() int { return e.cols }

// Rows returns the screen height.
func (e *Engine) Rows() int { return e.rows }

// Cell returns the cell at (row, col) on the active screen.
func (e *Engine) Cell(row, col int) term.Cell {
	if row < 0 || row >= e.rows || col < 0 || col >= e.cols {
		return term.Blank
	}
	return e.screen()[row*e.cols+col]
}

// CursorPos returns the cursor position.
func (e *Engine) CursorPos() (row, col int) { return e.cursorRow, e.cursorCol }

// CursorVisible reports cursor visibility (DECTCEM).
func (e *Engine) CursorVisible() bool { return e.cursorVisible }

// IsAltScreen reports whether the alternate screen is active.
func (e *Engine) IsAltScreen() bool { return e.onAlt }

// Title returns the window title set via OSC 0/2.
func (e *Engine) Title() string { return e.title }

// MouseMode returns the current mouse reporting mode.
func (e *Engine) MouseMode() int { return e.mouseMode }

// BracketedPaste reports whether bracketed paste mode is on.
func (e *Engine) BracketedPaste() bool { return e.bracketedPaste }

//
// screen helpers
//

func (e *Engine) screen() []term.Cell {
	if e.onAlt {
		return e.alt
	}
	return e.primary
}

func (e *Engine) fullRect() term.Rect {
	return term.Rect{EndRow: e.rows, EndCol: e.cols}
}

func (e *Engine) setCell(row, col int, c term.Cell) {
	if row < 0 || row >= e.rows || col < 0 || col >= e.cols {
		return
	}
	e.screen()[row*e.cols+col] = c
}

func (e *Engine) row(row int) []term.Cell {
	return e.screen()[row*e.cols : (row+1)*e.cols]
}

func (e *Engine) blankCell() term.Cell {
	// Erased cells keep the pen background (BCE).
	return term.Cell{Rune: ' ', FG: term.DefaultColor, BG: e.pen.bg}
}

func (e *Engine) clearRect(r term.Rect) {
	blank := e.blankCell()
	for row := r.StartRow; row < r.EndRow; row++ {
		for col := r.StartCol; col < r.EndCol; col++ {
			e.setCell(row, col, blank)
		}
	}
	e.cb.Damage(r)
}

//
// cursor movement
//

func (e *Engine) moveCursor(row, col int) {
	if row < 0 {
		row = 0
	}
	if row >= e.rows {
		row = e.rows - 1
	}
	if col < 0 {
		col = 0
	}
	if col >= e.cols {
		col = e.cols - 1
	}
	e.cursorRow, e.cursorCol = row, col
	e.pendingWrap = false
	e.cb.MoveCursor(row, col, e.cursorVisible)
}

//
// printing
//

func (e *Engine) print(r rune) {
	if e.pendingWrap && e.autoWrap {
		e.pendingWrap = false
		e.cursorCol = 0
		e.lineFeed()
	}
	e.setCell(e.cursorRow, e.cursorCol, term.Cell{
		Rune: r,
		FG:   e.pen.fg,
		BG:   e.pen.bg,
		Attr: e.pen.attr,
	})
	e.cb.Damage(term.CellRect(e.cursorRow, e.cursorCol))
	if e.cursorCol == e.cols-1 {
		// DECAWM defers the wrap until the next printable character.
		e.pendingWrap = true
	} else {
		e.cursorCol++
	}
	e.cb.MoveCursor(e.cursorRow, e.cursorCol, e.cursorVisible)
}

//
// control characters
//

func (e *Engine) execute(b byte) {
	switch b {
	case 0x07: // BEL
		e.cb.Bell()
	case 0x08: // BS
		if e.cursorCol > 0 {
			e.moveCursor(e.cursorRow, e.cursorCol-1)
		}
	case 0x09: // HT, fixed stops every 8 columns
		next := (e.cursorCol/8 + 1) * 8
		if next >= e.cols {
			next = e.cols - 1
		}
		e.moveCursor(e.cursorRow, next)
	case 0x0a, 0x0b, 0x0c: // LF, VT, FF
		e.lineFeed()
	case 0x0d: // CR
		e.moveCursor(e.cursorRow, 0)
	}
}

func (e *Engine) lineFeed() {
	if e.cursorRow == e.scrollBottom-1 {
		e.scrollUp(e.scrollTop, e.scrollBottom, 1)
		e.cb.MoveCursor(e.cursorRow, e.cursorCol, e.cursorVisible)
		return
	}
	e.moveCursor(e.cursorRow+1, e.cursorCol)
}

func (e *Engine) reverseIndex() {
	if e.cursorRow == e.scrollTop {
		e.scrollDown(e.scrollTop, e.scrollBottom, 1)
		e.cb.MoveCursor(e.cursorRow, e.cursorCol, e.cursorVisible)
		return
	}
	e.moveCursor(e.cursorRow-1, e.cursorCol)
}

//
// scrolling
//
// Rows leaving the top of the primary screen's full scroll region are
// handed to the scrollback owner; rows re-entering on scroll-down are
// requested back. The alternate screen never touches scrollback.
//

func (e *Engine) scrollUp(top, bottom, n int) {
	if n <= 0 || top >= bottom {
		return
	}
	if n > bottom-top {
		n = bottom - top
	}
	pushes := top == 0 && !e.onAlt
	for i := 0; i < n && pushes; i++ {
		line := make([]term.Cell, e.cols)
		copy(line, e.row(top+i))
		e.cb.SbPushLine(line)
	}
	screen := e.screen()
	copy(screen[top*e.cols:(bottom-n)*e.cols], screen[(top+n)*e.cols:bottom*e.cols])
	blank := e.blankCell()
	for row := bottom - n; row < bottom; row++ {
		dst := e.row(row)
		for i := range dst {
			dst[i] = blank
		}
	}
	e.cb.MoveRect(
		term.Rect{StartRow: top, EndRow: bottom - n, EndCol: e.cols},
		term.Rect{StartRow: top + n, EndRow: bottom, EndCol: e.cols},
	)
	e.cb.Damage(term.Rect{StartRow: top, EndRow: bottom, EndCol: e.cols})
}

func (e *Engine) scrollDown(top, bottom, n int) {
	if n <= 0 || top >= bottom {
		return
	}
	if n > bottom-top {
		n = bottom - top
	}
	screen := e.screen()
	copy(screen[(top+n)*e.cols:bottom*e.cols], screen[top*e.cols:(bottom-n)*e.cols])
	pops := top == 0 && !e.onAlt
	blank := e.blankCell()
	for row := top + n - 1; row >= top; row-- {
		dst := e.row(row)
		restored := false
		if pops {
			if line, ok := e.cb.SbPopLine(); ok {
				n := copy(dst, line)
				for i := n; i < len(dst); i++ {
					dst[i] = blank
				}
				restored = true
			}
		}
		if !restored {
			for i := range dst {
				dst[i] = blank
			}
		}
	}
	e.cb.MoveRect(
		term.Rect{StartRow: top + n, EndRow: bottom, EndCol: e.cols},
		term.Rect{StartRow: top, EndRow: bottom - n, EndCol: e.cols},
	)
	e.cb.Damage(term.Rect{StartRow: top, EndRow: bottom, EndCol: e.cols})
}

//
// alternate screen
//

func (e *Engine) enterAltScreen(saveCursor bool) {
	if e.onAlt {
		return
	}
	if saveCursor {
		e.altSaved = savedCursor{row: e.cursorRow, col: e.cursorCol, pen: e.pen, valid: true}
	}
	e.onAlt = true
	e.alt = blankScreen(e.cols, e.rows)
	e.cb.PropChange(PropAltScreen, true)
	e.cb.Damage(e.fullRect())
}

func (e *Engine) leaveAltScreen(restoreCursor bool) {
	if !e.onAlt {
		return
	}
	e.onAlt = false
	if restoreCursor && e.altSaved.valid {
		e.pen = e.altSaved.pen
		e.moveCursor(e.altSaved.row, e.altSaved.col)
		e.altSaved.valid = false
	}
	e.cb.PropChange(PropAltScreen, false)
	e.cb.Damage(e.fullRect())
}
