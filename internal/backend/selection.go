package backend

import (
	"strings"

	"github.com/zokrezyl/yetty-sub000/internal/term"
)

// SelectionMode selects how a drag expands into selected cells.
type SelectionMode int

const (
	SelectionNone SelectionMode = iota
	SelectionCharacter
	SelectionWord
	SelectionLine
)

// position addresses a cell by absolute line id and column. Absolute
// ids are monotonic over the session (evicted history keeps counting),
// so anchors stay valid while output scrolls underneath them.
type position struct {
	line int
	col  int
}

func (p position) before(q position) bool {
	return p.line < q.line || (p.line == q.line && p.col < q.col)
}

type selection struct {
	mode    SelectionMode
	anchor  position
	current position
}

// absolutePos converts viewport coordinates to an absolute position.
// The mapping is uniform across the scrollback/live boundary: viewport
// row v shows absolute line Total-offset+v.
func (b *Backend) absolutePos(row, col int) position {
	return position{line: b.scrollback.Total() - b.scrollOffset + row, col: col}
}

// lineCells returns the cells of an absolute line, or nil when the
// line was evicted or lies outside the session.
func (b *Backend) lineCells(line int) []term.Cell {
	total := b.scrollback.Total()
	if line >= total {
		live := line - total
		if live < 0 || live >= b.rows {
			return nil
		}
		cells := make([]term.Cell, b.cols)
		for col := 0; col < b.cols; col++ {
			cells[col] = b.engine.Cell(live, col)
		}
		return cells
	}
	cells, _ := b.scrollback.ByID(line)
	return cells
}

// StartSelection anchors a new selection at the given viewport cell.
func (b *Backend) StartSelection(row, col int, mode SelectionMode) {
	if mode == SelectionNone {
		b.ClearSelection()
		return
	}
	pos := b.absolutePos(row, col)
	b.sel = selection{mode: mode, anchor: pos, current: pos}
	b.damage.MarkFull()
}

// ExtendSelection drags the selection endpoint to a viewport cell.
func (b *Backend) ExtendSelection(row, col int) {
	if b.sel.mode == SelectionNone {
		return
	}
	b.sel.current = b.absolutePos(row, col)
	b.damage.MarkFull()
}

// ClearSelection drops the selection, if any.
func (b *Backend) ClearSelection() {
	if b.sel.mode == SelectionNone {
		return
	}
	b.sel = selection{}
	b.damage.MarkFull()
}

// HasSelection reports whether a selection is active.
func (b *Backend) HasSelection() bool { return b.sel.mode != SelectionNone }

// selectionRange returns the normalized, mode-expanded selection as an
// inclusive [start, end] cell range in absolute coordinates.
func (b *Backend) selectionRange() (start, end position) {
	start, end = b.sel.anchor, b.sel.current
	if end.before(start) {
		start, end = end, start
	}
	switch b.sel.mode {
	case SelectionWord:
		start.col = b.wordStart(start)
		end.col = b.wordEnd(end)
	case SelectionLine:
		start.col = 0
		end.col = b.cols - 1
	}
	return start, end
}

// wordStart walks left from pos to the first column of the word under
// it. Words are runs of non-whitespace cells.
func (b *Backend) wordStart(pos position) int {
	cells := b.lineCells(pos.line)
	col := pos.col
	if col >= len(cells) {
		col = len(cells) - 1
	}
	for col > 0 && !isWordBreak(cells[col-1]) {
		col--
	}
	if col < 0 {
		col = 0
	}
	return col
}

func (b *Backend) wordEnd(pos position) int {
	cells := b.lineCells(pos.line)
	if len(cells) == 0 {
		return pos.col
	}
	col := pos.col
	if col >= len(cells) {
		col = len(cells) - 1
	}
	for col < len(cells)-1 && !isWordBreak(cells[col+1]) {
		col++
	}
	return col
}

func isWordBreak(c term.Cell) bool {
	return c.Rune == 0 || c.Rune == ' ' || c.Rune == '\t'
}

// IsInSelection reports whether the viewport cell falls inside the
// active selection. Used by renderers to invert selected cells.
func (b *Backend) IsInSelection(row, col int) bool {
	if b.sel.mode == SelectionNone {
		return false
	}
	pos := b.absolutePos(row, col)
	start, end := b.selectionRange()
	if pos.line < start.line || pos.line > end.line {
		return false
	}
	if pos.line == start.line && pos.col < start.col {
		return false
	}
	if pos.line == end.line && pos.col > end.col {
		return false
	}
	return true
}

// SelectedText extracts the selected cells as text. Lines are joined
// with "\n"; trailing blanks are trimmed from every fully selected
// line. Evicted lines contribute nothing.
func (b *Backend) SelectedText() string {
	if b.sel.mode == SelectionNone {
		return ""
	}
	start, end := b.selectionRange()

	var sb strings.Builder
	for line := start.line; line <= end.line; line++ {
		if line > start.line {
			sb.WriteByte('\n')
		}
		cells := b.lineCells(line)
		if cells == nil {
			continue
		}
		from, to := 0, len(cells)-1
		if line == start.line {
			from = start.col
		}
		if line == end.line && end.col < to {
			to = end.col
		}
		sb.WriteString(lineText(cells, from, to, line != end.line || to == len(cells)-1))
	}
	return sb.String()
}

// lineText renders cells [from, to] as a string. When the span reaches
// the line's right edge, trailing blanks are trimmed.
func lineText(cells []term.Cell, from, to int, trimRight bool) string {
	if trimRight {
		for to >= from && blankRune(cells[to].Rune) {
			to--
		}
	}
	var sb strings.Builder
	for i := from; i <= to && i < len(cells); i++ {
		r := cells[i].Rune
		if r == 0 {
			r = ' '
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func blankRune(r rune) bool { return r == 0 || r == ' ' }
