package shm

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zokrezyl/yetty-sub000/internal/term"
)

func testRegionName() string {
	return "yetty-test-" + uuid.NewString()[:8]
}

func newTestServer(t *testing.T, cols, rows int) *SharedGrid {
	t.Helper()
	g, err := CreateServer(testRegionName(), cols, rows)
	if err != nil {
		t.Fatalf("CreateServer: %v", err)
	}
	t.Cleanup(func() {
		g.Close()
		g.Unlink()
	})
	return g
}

// fillGrid writes the same rune into every cell; uniform frames make
// tearing detectable.
func fillGrid(g *term.Grid, r rune) {
	for row := 0; row < g.Rows(); row++ {
		for col := 0; col < g.Cols(); col++ {
			g.SetCell(row, col, term.Cell{Rune: r, FG: term.DefaultColor, BG: term.DefaultColor})
		}
	}
}

// seqRune derives the expected uniform cell rune from a frame's
// sequence number.
func seqRune(seq uint32) rune {
	return 'A' + rune(seq%26)
}

func errSeqWentBackwards(last, got uint32) error {
	return fmt.Errorf("sequence went backwards: %d then %d", last, got)
}

func errTornFrame(seq uint32, row, col int, got, want rune) error {
	return fmt.Errorf("torn frame seq %d: cell (%d,%d) = %q, want %q", seq, row, col, got, want)
}

func TestSizeLayout(t *testing.T) {
	want := 64 + 2*(64+80*24*16)
	if got := Size(80, 24); got != want {
		t.Errorf("Size(80,24) = %d, want %d", got, want)
	}
}

func TestCreateServerRejectsBadDimensions(t *testing.T) {
	if _, err := CreateServer(testRegionName(), 0, 24); err == nil {
		t.Error("CreateServer(0,24) should fail")
	}
	if _, err := CreateServer(testRegionName(), 80, -1); err == nil {
		t.Error("CreateServer(80,-1) should fail")
	}
}

func TestRegionNameValidation(t *testing.T) {
	if _, err := CreateRegion("", 64); err == nil {
		t.Error("empty name should fail")
	}
	if _, err := CreateRegion("a/b", 64); err == nil {
		t.Error("name with path separator should fail")
	}
}

func TestOpenClientValidation(t *testing.T) {
	if _, err := OpenClient("yetty-test-does-not-exist"); err == nil {
		t.Error("opening a missing region should fail")
	}

	// A region with the wrong magic must be rejected.
	name := testRegionName()
	region, err := CreateRegion(name, Size(4, 2))
	if err != nil {
		t.Fatalf("CreateRegion: %v", err)
	}
	defer func() {
		region.Close()
		region.Unlink()
	}()
	le.PutUint32(region.Data()[0:], 0xdeadbeef)
	if _, err := OpenClient(name); err == nil {
		t.Error("bad magic should fail validation")
	}
}

func TestPublishSnapshotRoundTrip(t *testing.T) {
	srv := newTestServer(t, 10, 4)

	src := term.NewGrid(10, 4)
	src.SetCell(0, 0, term.Cell{Rune: 'x', FG: term.PaletteColor(3), BG: term.RGB(9, 8, 7), Attr: term.AttrBold})
	src.SetCell(3, 9, term.Cell{Rune: '€', FG: term.DefaultColor, BG: term.DefaultColor})

	hdr := BufferHeader{
		CursorRow:     3,
		CursorCol:     7,
		CursorVisible: true,
		FullDamage:    true,
		Damage:        term.Rect{EndRow: 4, EndCol: 10},
		ScrollOffset:  2,
	}
	if err := srv.Publish(src, hdr); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	cli, err := OpenClient(srv.Name())
	if err != nil {
		t.Fatalf("OpenClient: %v", err)
	}
	defer cli.Close()
	if cli.Cols() != 10 || cli.Rows() != 4 {
		t.Fatalf("client sees %dx%d, want 10x4", cli.Cols(), cli.Rows())
	}

	dst := term.NewGrid(10, 4)
	got, err := cli.Snapshot(dst)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if got.Seq != 1 {
		t.Errorf("seq = %d, want 1", got.Seq)
	}
	if got.CursorRow != 3 || got.CursorCol != 7 || !got.CursorVisible {
		t.Errorf("cursor = (%d,%d,%v)", got.CursorRow, got.CursorCol, got.CursorVisible)
	}
	if !got.FullDamage || got.ScrollOffset != 2 {
		t.Errorf("header = %+v", got)
	}
	if c := dst.Cell(0, 0); c != src.Cell(0, 0) {
		t.Errorf("cell (0,0) = %+v, want %+v", c, src.Cell(0, 0))
	}
	if c := dst.Cell(3, 9); c.Rune != '€' {
		t.Errorf("cell (3,9) = %q, want '€'", c.Rune)
	}
	if c := dst.Cell(1, 1); c != term.Blank {
		t.Errorf("untouched cell = %+v, want blank", c)
	}
}

func TestPublishRejectsMismatchedGrid(t *testing.T) {
	srv := newTestServer(t, 10, 4)
	if err := srv.Publish(term.NewGrid(5, 4), BufferHeader{}); err == nil {
		t.Error("mismatched grid dimensions should fail")
	}
}

func TestSequenceMonotonic(t *testing.T) {
	srv := newTestServer(t, 4, 2)
	src := term.NewGrid(4, 2)

	for i := 1; i <= 10; i++ {
		if err := srv.Publish(src, BufferHeader{}); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
		if got := srv.FrontHeader().Seq; got != uint32(i) {
			t.Fatalf("seq after publish %d = %d", i, got)
		}
	}
}

func TestSnapshotIgnoresBackBufferGarbage(t *testing.T) {
	srv := newTestServer(t, 6, 3)

	src := term.NewGrid(6, 3)
	fillGrid(src, 'B') // seq 1 frame
	if err := srv.Publish(src, BufferHeader{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	// Scribble over the back buffer without swapping, as a writer
	// mid-publish would.
	back := 1 - atomic.LoadUint32(srv.front())
	cells := srv.cellBytes(back)
	for i := range cells {
		cells[i] = 0xff
	}
	le.PutUint32(srv.headerBytes(back)[0:], 99)

	cli, err := OpenClient(srv.Name())
	if err != nil {
		t.Fatalf("OpenClient: %v", err)
	}
	defer cli.Close()

	dst := term.NewGrid(6, 3)
	hdr, err := cli.Snapshot(dst)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if hdr.Seq != 1 {
		t.Fatalf("seq = %d, want 1", hdr.Seq)
	}
	for row := 0; row < 3; row++ {
		for col := 0; col < 6; col++ {
			if got := dst.Cell(row, col).Rune; got != 'B' {
				t.Fatalf("cell (%d,%d) = %q, want 'B'", row, col, got)
			}
		}
	}
}

// TestNoTearUnderConcurrentPublish hammers Publish from one goroutine
// while readers snapshot through their own mapping. Every observed
// frame must be uniform and consistent with its sequence number, and
// sequence numbers must never go backwards.
func TestNoTearUnderConcurrentPublish(t *testing.T) {
	const (
		cols, rows = 24, 8
		frames     = 2000
		readers    = 3
	)
	srv := newTestServer(t, cols, rows)

	// Frame 0 (both buffers blank) never escapes: publish seq 1 first
	// so readers always see a stamped frame.
	src := term.NewGrid(cols, rows)
	fillGrid(src, seqRune(1))
	if err := srv.Publish(src, BufferHeader{}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, readers)

	for i := 0; i < readers; i++ {
		cli, err := OpenClient(srv.Name())
		if err != nil {
			t.Fatalf("OpenClient: %v", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cli.Close()
			dst := term.NewGrid(cols, rows)
			var lastSeq uint32
			for {
				select {
				case <-stop:
					return
				default:
				}
				hdr, err := cli.Snapshot(dst)
				if err != nil {
					errs <- err
					return
				}
				if hdr.Seq < lastSeq {
					errs <- errSeqWentBackwards(lastSeq, hdr.Seq)
					return
				}
				lastSeq = hdr.Seq
				want := seqRune(hdr.Seq)
				for row := 0; row < rows; row++ {
					for col := 0; col < cols; col++ {
						if got := dst.Cell(row, col).Rune; got != want {
							errs <- errTornFrame(hdr.Seq, row, col, got, want)
							return
						}
					}
				}
			}
		}()
	}

	for i := 2; i <= frames; i++ {
		fillGrid(src, seqRune(uint32(i)))
		if err := srv.Publish(src, BufferHeader{}); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
		// Pace the writer like the sync ticker does; back-to-back swaps
		// would starve the bounded snapshot retry.
		time.Sleep(50 * time.Microsecond)
	}
	close(stop)
	wg.Wait()

	select {
	case err := <-errs:
		t.Fatal(err)
	default:
	}
}
