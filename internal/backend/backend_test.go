package backend

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/zokrezyl/yetty-sub000/internal/term"
)

func newTestBackend(t *testing.T, cols, rows int) *Backend {
	t.Helper()
	return New(Config{
		Cols:            cols,
		Rows:            rows,
		ScrollbackLines: 100,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func gridRow(g *term.Grid, row int) string {
	var sb strings.Builder
	for col := 0; col < g.Cols(); col++ {
		sb.WriteRune(g.Cell(row, col).Rune)
	}
	return strings.TrimRight(sb.String(), " ")
}

func TestFeedUpdatesGrid(t *testing.T) {
	b := newTestBackend(t, 20, 5)
	b.ClearDamage()

	b.Feed([]byte("hello"))
	if !b.HasDamage() {
		t.Fatal("no damage after output")
	}
	b.SyncToGrid()
	if got := gridRow(b.Grid(), 0); got != "hello" {
		t.Errorf("grid row 0 = %q, want %q", got, "hello")
	}

	row, col, visible := b.CursorForViewport()
	if row != 0 || col != 5 || !visible {
		t.Errorf("cursor = (%d,%d,%v), want (0,5,true)", row, col, visible)
	}
}

func TestDamageClearedBetweenCycles(t *testing.T) {
	b := newTestBackend(t, 20, 5)
	b.Feed([]byte("x"))
	b.SyncToGrid()
	b.ClearDamage()

	if b.HasDamage() {
		t.Fatal("damage survived Clear")
	}
	b.Feed([]byte("y"))
	if !b.HasDamage() {
		t.Fatal("new output did not register damage")
	}
}

func TestScrollOffsetClamped(t *testing.T) {
	b := newTestBackend(t, 10, 3)
	// Ten lines through a 3-row screen leaves 7 in scrollback.
	for i := 0; i < 10; i++ {
		b.Feed([]byte("line\r\n"))
	}
	if b.ScrollbackSize() == 0 {
		t.Fatal("nothing reached scrollback")
	}

	b.ScrollUp(1000)
	if got := b.ScrollOffset(); got != b.ScrollbackSize() {
		t.Errorf("offset = %d, want clamped to %d", got, b.ScrollbackSize())
	}

	b.ScrollDown(1000)
	if got := b.ScrollOffset(); got != 0 {
		t.Errorf("offset = %d after overscroll down, want 0", got)
	}

	b.ScrollToTop()
	if got := b.ScrollOffset(); got != b.ScrollbackSize() {
		t.Errorf("ScrollToTop offset = %d, want %d", got, b.ScrollbackSize())
	}
	b.ScrollToBottom()
	if b.IsScrolledBack() {
		t.Error("still scrolled back after ScrollToBottom")
	}
}

func TestScrolledBackViewportComposesHistory(t *testing.T) {
	b := newTestBackend(t, 10, 3)
	b.Feed([]byte("one\r\ntwo\r\nthree\r\nfour"))
	// "one" scrolled out; live screen is two/three/four.

	b.ScrollUp(1)
	b.SyncToGrid()

	g := b.Grid()
	if got := gridRow(g, 0); got != "one" {
		t.Errorf("view row 0 = %q, want history line %q", got, "one")
	}
	if got := gridRow(g, 1); got != "two" {
		t.Errorf("view row 1 = %q, want %q", got, "two")
	}
	if got := gridRow(g, 2); got != "three" {
		t.Errorf("view row 2 = %q, want %q", got, "three")
	}
}

func TestCursorHiddenWhileScrolledPastIt(t *testing.T) {
	b := newTestBackend(t, 10, 3)
	b.Feed([]byte("one\r\ntwo\r\nthree\r\nfour"))
	// Cursor is on the bottom live row; one step back pushes it out.
	b.ScrollUp(1)

	if _, _, visible := b.CursorForViewport(); visible {
		t.Error("cursor should be invisible once scrolled past it")
	}
	b.ScrollToBottom()
	if _, _, visible := b.CursorForViewport(); !visible {
		t.Error("cursor should reappear at the live viewport")
	}
}

func TestResizeResetsSession(t *testing.T) {
	b := newTestBackend(t, 10, 3)
	b.Feed([]byte("one\r\ntwo\r\nthree\r\nfour"))
	b.ScrollUp(1)
	b.StartSelection(0, 0, SelectionCharacter)
	b.ClearDamage()

	if err := b.Resize(20, 6); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if b.Cols() != 20 || b.Rows() != 6 {
		t.Fatalf("dimensions = %dx%d", b.Cols(), b.Rows())
	}
	if b.ScrollOffset() != 0 {
		t.Error("scroll offset survived resize")
	}
	if b.HasSelection() {
		t.Error("selection survived resize")
	}
	if !b.FullDamage() {
		t.Error("resize must mark full damage")
	}

	b.SyncToGrid()
	for row := 0; row < 6; row++ {
		if got := gridRow(b.Grid(), row); got != "" {
			t.Errorf("row %d = %q after resize, want blank", row, got)
		}
	}
}

func TestResizeRejectsBadDimensions(t *testing.T) {
	b := newTestBackend(t, 10, 3)
	if err := b.Resize(0, 5); err == nil {
		t.Error("Resize(0,5) should fail")
	}
	if err := b.Resize(5, -1); err == nil {
		t.Error("Resize(5,-1) should fail")
	}
	// Anything past the uint16 pty winsize range would silently
	// truncate the pty while the grid allocates at full size.
	if err := b.Resize(70000, 40); err == nil {
		t.Error("Resize(70000,40) should fail")
	}
	if err := b.Resize(40, 70000); err == nil {
		t.Error("Resize(40,70000) should fail")
	}
}

func TestInputBeforeStartFails(t *testing.T) {
	b := newTestBackend(t, 10, 3)
	if err := b.SendRaw([]byte("x")); err == nil {
		t.Error("SendRaw before Start should fail")
	}
	if err := b.SendRaw(nil); err != nil {
		t.Errorf("empty SendRaw should be a no-op, got %v", err)
	}
}

func TestInputEncoding(t *testing.T) {
	b := newTestBackend(t, 10, 3)
	var sink strings.Builder
	b.input = &sink

	if err := b.SendKey('a', 0); err != nil {
		t.Fatalf("SendKey: %v", err)
	}
	if err := b.SendKey('c', 4); err != nil { // ctrl
		t.Fatalf("SendKey: %v", err)
	}
	if got := sink.String(); got != "a\x03" {
		t.Errorf("pty received %q, want %q", got, "a\x03")
	}
}

func TestBellHook(t *testing.T) {
	b := newTestBackend(t, 10, 3)
	bells := 0
	b.OnBell(func() { bells++ })
	b.Feed([]byte("ding\x07"))
	if bells != 1 {
		t.Errorf("bells = %d, want 1", bells)
	}
}

func TestTitleAndMouseMode(t *testing.T) {
	b := newTestBackend(t, 10, 3)
	b.Feed([]byte("\x1b]0;session\x07\x1b[?1000h"))

	if b.Title() != "session" {
		t.Errorf("title = %q", b.Title())
	}
	if !b.WantsMouseEvents() {
		t.Error("mouse events should be wanted after 1000h")
	}
}

func TestDamageBoundsFullScreen(t *testing.T) {
	b := newTestBackend(t, 10, 3)
	// New backends start with full damage pending.
	want := term.Rect{EndRow: 3, EndCol: 10}
	if got := b.DamageBounds(); got != want {
		t.Errorf("DamageBounds = %+v, want %+v", got, want)
	}
}
