package cmd

import (
	"bufio"
	"fmt"
	"io"

	"github.com/zokrezyl/yetty-sub000/internal/shm"
	"github.com/zokrezyl/yetty-sub000/internal/term"
)

// renderer paints grid snapshots onto the local terminal with plain
// ANSI sequences. It redraws the whole frame every time; the damage
// rect in the header is a hint this simple viewer does not need.
type renderer struct {
	w *bufio.Writer

	// pen state of the local terminal, to skip redundant SGRs
	fg   term.Color
	bg   term.Color
	attr term.Attr
}

func newRenderer(w io.Writer) *renderer {
	r := &renderer{w: bufio.NewWriterSize(w, 64*1024)}
	r.resetPen()
	return r
}

func (r *renderer) resetPen() {
	r.fg, r.bg, r.attr = term.DefaultColor, term.DefaultColor, 0
}

func (r *renderer) enterScreen() {
	// Alternate screen, clear, hide cursor while drawing.
	fmt.Fprint(r.w, "\x1b[?1049h\x1b[2J\x1b[?25l")
	r.w.Flush()
}

func (r *renderer) leaveScreen() {
	fmt.Fprint(r.w, "\x1b[0m\x1b[?25h\x1b[?1049l")
	r.w.Flush()
}

func (r *renderer) bell() {
	r.w.WriteByte(0x07)
	r.w.Flush()
}

func (r *renderer) draw(grid *term.Grid, hdr shm.BufferHeader) {
	fmt.Fprint(r.w, "\x1b[?25l\x1b[H\x1b[0m")
	r.resetPen()

	for row := 0; row < grid.Rows(); row++ {
		fmt.Fprintf(r.w, "\x1b[%d;1H", row+1)
		for col := 0; col < grid.Cols(); col++ {
			cell := grid.Cell(row, col)
			r.applyPen(cell)
			ch := cell.Rune
			if ch == 0 {
				ch = ' '
			}
			r.w.WriteRune(ch)
		}
	}

	fmt.Fprint(r.w, "\x1b[0m")
	r.resetPen()
	if hdr.CursorVisible {
		fmt.Fprintf(r.w, "\x1b[%d;%dH\x1b[?25h", hdr.CursorRow+1, hdr.CursorCol+1)
	}
	r.w.Flush()
}

// applyPen emits the SGR sequences needed to move the local pen to the
// cell's style.
func (r *renderer) applyPen(cell term.Cell) {
	if cell.Attr != r.attr {
		fmt.Fprint(r.w, "\x1b[0m")
		r.fg, r.bg = term.DefaultColor, term.DefaultColor
		writeAttrs(r.w, cell.Attr)
		r.attr = cell.Attr
	}
	if cell.FG != r.fg {
		writeColor(r.w, cell.FG, 30)
		r.fg = cell.FG
	}
	if cell.BG != r.bg {
		writeColor(r.w, cell.BG, 40)
		r.bg = cell.BG
	}
}

func writeAttrs(w *bufio.Writer, attr term.Attr) {
	if attr&term.AttrBold != 0 {
		fmt.Fprint(w, "\x1b[1m")
	}
	if attr&term.AttrDim != 0 {
		fmt.Fprint(w, "\x1b[2m")
	}
	if attr&term.AttrItalic != 0 {
		fmt.Fprint(w, "\x1b[3m")
	}
	if attr.Underline() != term.UnderlineNone {
		fmt.Fprint(w, "\x1b[4m")
	}
	if attr&term.AttrBlink != 0 {
		fmt.Fprint(w, "\x1b[5m")
	}
	if attr&term.AttrReverse != 0 {
		fmt.Fprint(w, "\x1b[7m")
	}
	if attr&term.AttrStrike != 0 {
		fmt.Fprint(w, "\x1b[9m")
	}
}

// writeColor emits a foreground (base 30) or background (base 40)
// color sequence.
func writeColor(w *bufio.Writer, c term.Color, base int) {
	switch {
	case c.IsDefault():
		fmt.Fprintf(w, "\x1b[%dm", base+9)
	case c.IsPalette():
		fmt.Fprintf(w, "\x1b[%d;5;%dm", base+8, c.PaletteIndex())
	default:
		red, green, blue := c.RGB()
		fmt.Fprintf(w, "\x1b[%d;2;%d;%d;%dm", base+8, red, green, blue)
	}
}
