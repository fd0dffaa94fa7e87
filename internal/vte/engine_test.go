package vte

import (
	"strings"
	"testing"

	"github.com/zokrezyl/yetty-sub000/internal/term"
)

// recorder implements Callbacks and keeps everything the engine
// reports so tests can assert on the side effects.
type recorder struct {
	damage  []term.Rect
	props   map[Prop]any
	bells   int
	pushed  [][]term.Cell
	moved   int
	oscCmds []int
	resizes [][2]int
}

func newRecorder() *recorder {
	return &recorder{props: make(map[Prop]any)}
}

func (r *recorder) Damage(rect term.Rect)           { r.damage = append(r.damage, rect) }
func (r *recorder) MoveCursor(row, col int, v bool) {}
func (r *recorder) PropChange(p Prop, v any)        { r.props[p] = v }
func (r *recorder) RequestResize(cols, rows int)    { r.resizes = append(r.resizes, [2]int{cols, rows}) }
func (r *recorder) Bell()                           { r.bells++ }
func (r *recorder) OSC(cmd int, data []byte)        { r.oscCmds = append(r.oscCmds, cmd) }
func (r *recorder) SbPushLine(cells []term.Cell)    { r.pushed = append(r.pushed, cells) }
func (r *recorder) MoveRect(dest, src term.Rect)    { r.moved++ }

func (r *recorder) SbPopLine() ([]term.Cell, bool) {
	if len(r.pushed) == 0 {
		return nil, false
	}
	line := r.pushed[len(r.pushed)-1]
	r.pushed = r.pushed[:len(r.pushed)-1]
	return line, true
}

func feed(t *testing.T, e *Engine, s string) {
	t.Helper()
	if _, err := e.Write([]byte(s)); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

// rowText renders a screen row for assertions, trimming trailing blanks.
func rowText(e *Engine, row int) string {
	var sb strings.Builder
	for col := 0; col < e.Cols(); col++ {
		sb.WriteRune(e.Cell(row, col).Rune)
	}
	return strings.TrimRight(sb.String(), " ")
}

func TestPrintAndCursor(t *testing.T) {
	e := New(20, 5, newRecorder())
	feed(t, e, "hello")

	if got := rowText(e, 0); got != "hello" {
		t.Errorf("row 0 = %q, want %q", got, "hello")
	}
	row, col := e.CursorPos()
	if row != 0 || col != 5 {
		t.Errorf("cursor = (%d,%d), want (0,5)", row, col)
	}
}

func TestCarriageReturnLineFeed(t *testing.T) {
	e := New(20, 5, newRecorder())
	feed(t, e, "one\r\ntwo")

	if got := rowText(e, 0); got != "one" {
		t.Errorf("row 0 = %q", got)
	}
	if got := rowText(e, 1); got != "two" {
		t.Errorf("row 1 = %q", got)
	}
}

func TestDeferredWrap(t *testing.T) {
	e := New(5, 3, newRecorder())
	feed(t, e, "abcde")

	// Cursor sits on the last column, wrap pending.
	row, col := e.CursorPos()
	if row != 0 || col != 4 {
		t.Fatalf("cursor = (%d,%d), want (0,4) with wrap pending", row, col)
	}

	feed(t, e, "f")
	if got := rowText(e, 1); got != "f" {
		t.Errorf("row 1 = %q, want %q", got, "f")
	}
	if got := rowText(e, 0); got != "abcde" {
		t.Errorf("row 0 = %q, want intact %q", got, "abcde")
	}
}

func TestUTF8Print(t *testing.T) {
	e := New(10, 2, newRecorder())
	feed(t, e, "h\xc3\xa9llo \xe2\x82\xac") // héllo €

	if got := e.Cell(0, 1).Rune; got != 'é' {
		t.Errorf("cell (0,1) = %q, want 'é'", got)
	}
	if got := e.Cell(0, 6).Rune; got != '€' {
		t.Errorf("cell (0,6) = %q, want '€'", got)
	}
}

func TestSplitUTF8AcrossWrites(t *testing.T) {
	e := New(10, 2, newRecorder())
	feed(t, e, "\xe2\x82")
	feed(t, e, "\xac") // second half of €
	if got := e.Cell(0, 0).Rune; got != '€' {
		t.Errorf("cell (0,0) = %q, want '€'", got)
	}
}

func TestCursorMovementClamped(t *testing.T) {
	e := New(10, 5, newRecorder())
	feed(t, e, "\x1b[100;100H")
	row, col := e.CursorPos()
	if row != 4 || col != 9 {
		t.Errorf("cursor = (%d,%d), want clamped (4,9)", row, col)
	}

	feed(t, e, "\x1b[100A")
	row, _ = e.CursorPos()
	if row != 0 {
		t.Errorf("cursor row = %d after huge CUU, want 0", row)
	}
}

func TestEraseDisplayAndLine(t *testing.T) {
	e := New(10, 3, newRecorder())
	feed(t, e, "aaaaaaaaaa\r\nbbbbbbbbbb\r\ncccc")

	feed(t, e, "\x1b[2;5H\x1b[K") // erase to end of line from (1,4)
	if got := rowText(e, 1); got != "bbbb" {
		t.Errorf("row 1 = %q after EL, want %q", got, "bbbb")
	}

	feed(t, e, "\x1b[2J")
	for row := 0; row < 3; row++ {
		if got := rowText(e, row); got != "" {
			t.Errorf("row %d = %q after ED 2, want empty", row, got)
		}
	}
}

func TestSGRColors(t *testing.T) {
	e := New(20, 2, newRecorder())
	feed(t, e, "\x1b[31mr\x1b[38;5;200mp\x1b[38;2;1;2;3mt\x1b[0md")

	if got := e.Cell(0, 0).FG; got != term.PaletteColor(1) {
		t.Errorf("cell 0 fg = %#x, want palette 1", got)
	}
	if got := e.Cell(0, 1).FG; got != term.PaletteColor(200) {
		t.Errorf("cell 1 fg = %#x, want palette 200", got)
	}
	if got := e.Cell(0, 2).FG; got != term.RGB(1, 2, 3) {
		t.Errorf("cell 2 fg = %#x, want rgb(1,2,3)", got)
	}
	if got := e.Cell(0, 3).FG; !got.IsDefault() {
		t.Errorf("cell 3 fg = %#x, want default after reset", got)
	}
}

func TestSGRAttributes(t *testing.T) {
	e := New(20, 2, newRecorder())
	feed(t, e, "\x1b[1;4;7mx\x1b[22;24;27my")

	x := e.Cell(0, 0)
	if x.Attr&term.AttrBold == 0 || x.Attr&term.AttrReverse == 0 {
		t.Errorf("x attrs = %#x, want bold+reverse", x.Attr)
	}
	if x.Attr.Underline() != term.UnderlineSingle {
		t.Errorf("x underline = %d, want single", x.Attr.Underline())
	}
	y := e.Cell(0, 1)
	if y.Attr != 0 {
		t.Errorf("y attrs = %#x, want cleared", y.Attr)
	}
}

func TestScrollPushesToScrollback(t *testing.T) {
	rec := newRecorder()
	e := New(10, 3, rec)
	feed(t, e, "one\r\ntwo\r\nthree\r\nfour")

	if len(rec.pushed) != 1 {
		t.Fatalf("pushed %d lines, want 1", len(rec.pushed))
	}
	if got := rec.pushed[0][0].Rune; got != 'o' {
		t.Errorf("pushed line starts with %q, want 'o' (from %q)", got, "one")
	}
	if got := rowText(e, 2); got != "four" {
		t.Errorf("bottom row = %q, want %q", got, "four")
	}
}

func TestScrollRegionDoesNotPush(t *testing.T) {
	rec := newRecorder()
	e := New(10, 5, rec)
	feed(t, e, "\x1b[2;4r") // scroll region rows 2-4 (top != 0)
	feed(t, e, "\x1b[4;1H")
	feed(t, e, "a\r\nb\r\nc\r\nd")

	if len(rec.pushed) != 0 {
		t.Errorf("pushed %d lines from an inner scroll region, want 0", len(rec.pushed))
	}
}

func TestAltScreenRoundTrip(t *testing.T) {
	rec := newRecorder()
	e := New(10, 3, rec)
	feed(t, e, "base")
	feed(t, e, "\x1b[?1049h")

	if !e.IsAltScreen() {
		t.Fatal("not on alt screen after 1049h")
	}
	if got := rowText(e, 0); got != "" {
		t.Errorf("alt screen row 0 = %q, want blank", got)
	}
	if v, _ := rec.props[PropAltScreen].(bool); !v {
		t.Error("PropAltScreen not reported true")
	}

	feed(t, e, "full\r\nscreen\r\napp")
	if len(rec.pushed) != 0 {
		t.Error("alt screen must never push to scrollback")
	}

	feed(t, e, "\x1b[?1049l")
	if e.IsAltScreen() {
		t.Fatal("still on alt screen after 1049l")
	}
	if got := rowText(e, 0); got != "base" {
		t.Errorf("primary row 0 = %q after return, want %q", got, "base")
	}
	row, col := e.CursorPos()
	if row != 0 || col != 4 {
		t.Errorf("cursor = (%d,%d) after 1049l, want restored (0,4)", row, col)
	}
}

func TestOSCTitle(t *testing.T) {
	rec := newRecorder()
	e := New(10, 2, rec)
	feed(t, e, "\x1b]0;my title\x07")

	if e.Title() != "my title" {
		t.Errorf("title = %q", e.Title())
	}
	if v, _ := rec.props[PropTitle].(string); v != "my title" {
		t.Errorf("PropTitle = %q", v)
	}

	// ST-terminated form.
	feed(t, e, "\x1b]2;other\x1b\\")
	if e.Title() != "other" {
		t.Errorf("title = %q after ST form", e.Title())
	}
}

func TestUnknownOSCForwarded(t *testing.T) {
	rec := newRecorder()
	e := New(10, 2, rec)
	feed(t, e, "\x1b]52;c;aGVsbG8=\x07")
	if len(rec.oscCmds) != 1 || rec.oscCmds[0] != 52 {
		t.Errorf("osc cmds = %v, want [52]", rec.oscCmds)
	}
}

func TestCANAbortsSequence(t *testing.T) {
	e := New(10, 2, newRecorder())
	feed(t, e, "\x1b[3\x18ok")
	if got := rowText(e, 0); got != "ok" {
		t.Errorf("row 0 = %q, want %q (CSI aborted by CAN)", got, "ok")
	}
}

func TestBellAndMouseMode(t *testing.T) {
	rec := newRecorder()
	e := New(10, 2, rec)
	feed(t, e, "\x07\x1b[?1002h")

	if rec.bells != 1 {
		t.Errorf("bells = %d, want 1", rec.bells)
	}
	if e.MouseMode() != MouseDrag {
		t.Errorf("mouse mode = %d, want drag", e.MouseMode())
	}
	feed(t, e, "\x1b[?1002l")
	if e.MouseMode() != MouseNone {
		t.Errorf("mouse mode = %d after reset, want none", e.MouseMode())
	}
}

func TestCursorVisibility(t *testing.T) {
	rec := newRecorder()
	e := New(10, 2, rec)
	feed(t, e, "\x1b[?25l")
	if e.CursorVisible() {
		t.Error("cursor still visible after 25l")
	}
	feed(t, e, "\x1b[?25h")
	if !e.CursorVisible() {
		t.Error("cursor hidden after 25h")
	}
}

func TestDECCOLMRequestsResize(t *testing.T) {
	rec := newRecorder()
	e := New(80, 24, rec)
	feed(t, e, "\x1b[?3h")
	if len(rec.resizes) != 1 || rec.resizes[0] != [2]int{132, 24} {
		t.Errorf("resizes = %v, want [[132 24]]", rec.resizes)
	}
}

func TestResizeBlanksBothScreens(t *testing.T) {
	e := New(10, 3, newRecorder())
	feed(t, e, "text\x1b[?1049halt")

	e.Resize(6, 2)
	if e.Cols() != 6 || e.Rows() != 2 {
		t.Fatalf("dimensions = %dx%d", e.Cols(), e.Rows())
	}
	if got := rowText(e, 0); got != "" {
		t.Errorf("row 0 = %q after resize, want blank", got)
	}
	if e.IsAltScreen() {
		t.Error("resize should return to the primary screen")
	}

	row, col := e.CursorPos()
	if row != 0 || col != 0 {
		t.Errorf("cursor = (%d,%d) after resize, want (0,0)", row, col)
	}
}

func TestInsertDeleteChars(t *testing.T) {
	e := New(10, 2, newRecorder())
	feed(t, e, "abcdef\x1b[1;3H\x1b[2@") // insert 2 blanks at col 2

	if got := rowText(e, 0); got != "ab  cdef" {
		t.Errorf("after ICH row = %q, want %q", got, "ab  cdef")
	}

	feed(t, e, "\x1b[1;1H\x1b[4P") // delete 4 from col 0
	if got := rowText(e, 0); got != "cdef" {
		t.Errorf("after DCH row = %q, want %q", got, "cdef")
	}
}

func TestReverseIndexScrollsDown(t *testing.T) {
	rec := newRecorder()
	e := New(10, 3, rec)
	feed(t, e, "one\r\ntwo\r\nthree\r\nfour") // "one" pushed out
	feed(t, e, "\x1b[1;1H\x1bM")              // RI at top pops it back

	if got := rowText(e, 0); got != "one" {
		t.Errorf("row 0 = %q after RI, want restored %q", got, "one")
	}
	if len(rec.pushed) != 0 {
		t.Errorf("scrollback still holds %d lines, want 0 after pop", len(rec.pushed))
	}
}

func TestTabStops(t *testing.T) {
	e := New(20, 2, newRecorder())
	feed(t, e, "a\tb")
	if got := e.Cell(0, 8).Rune; got != 'b' {
		t.Errorf("cell (0,8) = %q, want 'b' at the next tab stop", got)
	}
}
