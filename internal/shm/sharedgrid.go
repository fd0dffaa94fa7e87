package shm

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/zokrezyl/yetty-sub000/internal/term"
)

// Region layout, all little-endian:
//
//	offset 0   magic   uint32
//	offset 4   version uint32
//	offset 8   cols    uint32
//	offset 12  rows    uint32
//	offset 16  front   uint32   (atomic; index of the readable buffer)
//	...pad to 64
//	buffer 0: 64-byte header + cols*rows cells of 16 bytes
//	buffer 1: same
//
// Per-buffer header:
//
//	offset 0   seq            uint32
//	offset 4   cursorRow      int32
//	offset 8   cursorCol      int32
//	offset 12  cursorVisible  uint32
//	offset 16  altScreen      uint32
//	offset 20  fullDamage     uint32
//	offset 24  dmgStartRow    uint32
//	offset 28  dmgStartCol    uint32
//	offset 32  dmgEndRow      uint32
//	offset 36  dmgEndCol      uint32
//	offset 40  scrollOffset   int32
//	...pad to 64
//
// Cell: codepoint uint32, fg uint32, bg uint32, attrs uint32.
const (
	regionMagic   = 0x44524759 // "YGRD" little-endian
	regionVersion = 1

	regionHeaderSize = 64
	bufferHeaderSize = 64
	cellSize         = 16

	frontOffset = 16
)

// Size returns the region size in bytes for the given dimensions.
func Size(cols, rows int) int {
	return regionHeaderSize + 2*(bufferHeaderSize+cols*rows*cellSize)
}

// BufferHeader is the per-publish metadata riding alongside the cells.
type BufferHeader struct {
	Seq           uint32
	CursorRow     int32
	CursorCol     int32
	CursorVisible bool
	AltScreen     bool
	FullDamage    bool
	Damage        term.Rect
	ScrollOffset  int32
}

// SharedGrid is one end of the double-buffered grid transport. The
// server side publishes; client sides snapshot. Publish is single-
// writer: exactly one goroutine may call it.
type SharedGrid struct {
	region     *Region
	cols, rows int
	writable   bool
}

var le = binary.LittleEndian

// CreateServer creates the region and initializes both buffers blank
// with seq 0 and front = 0.
func CreateServer(name string, cols, rows int) (*SharedGrid, error) {
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", cols, rows)
	}
	region, err := CreateRegion(name, Size(cols, rows))
	if err != nil {
		return nil, err
	}
	g := &SharedGrid{region: region, cols: cols, rows: rows, writable: true}

	data := region.Data()
	for i := range data {
		data[i] = 0
	}
	le.PutUint32(data[0:], regionMagic)
	le.PutUint32(data[4:], regionVersion)
	le.PutUint32(data[8:], uint32(cols))
	le.PutUint32(data[12:], uint32(rows))

	blank := term.Blank
	for i := 0; i < 2; i++ {
		cells := g.cellBytes(uint32(i))
		for off := 0; off < len(cells); off += cellSize {
			encodeCell(cells[off:], blank)
		}
	}
	return g, nil
}

// OpenClient maps an existing region and validates its header.
func OpenClient(name string) (*SharedGrid, error) {
	region, err := OpenRegion(name)
	if err != nil {
		return nil, err
	}
	data := region.Data()
	if len(data) < regionHeaderSize {
		region.Close()
		return nil, fmt.Errorf("shm %s: region too small (%d bytes)", name, len(data))
	}
	if magic := le.Uint32(data[0:]); magic != regionMagic {
		region.Close()
		return nil, fmt.Errorf("shm %s: bad magic %#x", name, magic)
	}
	if v := le.Uint32(data[4:]); v != regionVersion {
		region.Close()
		return nil, fmt.Errorf("shm %s: unsupported version %d", name, v)
	}
	cols := int(le.Uint32(data[8:]))
	rows := int(le.Uint32(data[12:]))
	if cols <= 0 || rows <= 0 || len(data) < Size(cols, rows) {
		region.Close()
		return nil, fmt.Errorf("shm %s: inconsistent geometry %dx%d for %d bytes",
			name, cols, rows, len(data))
	}
	return &SharedGrid{region: region, cols: cols, rows: rows}, nil
}

// Name returns the region name.
func (g *SharedGrid) Name() string { return g.region.Name() }

// Cols returns the grid width.
func (g *SharedGrid) Cols() int { return g.cols }

// Rows returns the grid height.
func (g *SharedGrid) Rows() int { return g.rows }

// front returns a pointer suitable for atomic access to the front
// designator. The mapping is page-aligned, so offset 16 keeps the
// required 4-byte alignment.
func (g *SharedGrid) front() *uint32 {
	return (*uint32)(unsafe.Pointer(&g.region.Data()[frontOffset]))
}

func (g *SharedGrid) bufferOffset(i uint32) int {
	return regionHeaderSize + int(i)*(bufferHeaderSize+g.cols*g.rows*cellSize)
}

func (g *SharedGrid) headerBytes(i uint32) []byte {
	off := g.bufferOffset(i)
	return g.region.Data()[off : off+bufferHeaderSize]
}

func (g *SharedGrid) cellBytes(i uint32) []byte {
	off := g.bufferOffset(i) + bufferHeaderSize
	return g.region.Data()[off : off+g.cols*g.rows*cellSize]
}

// Publish writes the grid and header into the back buffer, stamps it
// with the next sequence number, and swaps it to front. The previous
// front buffer is untouched, so a reader mid-copy still sees a
// consistent frame.
func (g *SharedGrid) Publish(grid *term.Grid, hdr BufferHeader) error {
	if !g.writable {
		return fmt.Errorf("shm %s: read-only mapping", g.Name())
	}
	if grid.Cols() != g.cols || grid.Rows() != g.rows {
		return fmt.Errorf("shm %s: grid is %dx%d, region is %dx%d",
			g.Name(), grid.Cols(), grid.Rows(), g.cols, g.rows)
	}

	front := atomic.LoadUint32(g.front())
	back := 1 - front

	cells := g.cellBytes(back)
	for row := 0; row < g.rows; row++ {
		for col := 0; col < g.cols; col++ {
			off := (row*g.cols + col) * cellSize
			encodeCell(cells[off:], grid.Cell(row, col))
		}
	}

	hdr.Seq = le.Uint32(g.headerBytes(front)[0:]) + 1
	encodeHeader(g.headerBytes(back), hdr)

	atomic.StoreUint32(g.front(), back)
	return nil
}

// maxSnapshotRetries bounds how often a reader restarts its copy after
// observing a swap. The writer publishes at tick granularity, so more
// than a couple of retries means something is badly wrong.
const maxSnapshotRetries = 16

// Snapshot copies the front buffer into dst and returns its header.
// If the front designator moves while copying, the copy restarts; the
// returned frame is always internally consistent.
func (g *SharedGrid) Snapshot(dst *term.Grid) (BufferHeader, error) {
	if dst.Cols() != g.cols || dst.Rows() != g.rows {
		return BufferHeader{}, fmt.Errorf("shm %s: snapshot grid is %dx%d, region is %dx%d",
			g.Name(), dst.Cols(), dst.Rows(), g.cols, g.rows)
	}
	for attempt := 0; attempt < maxSnapshotRetries; attempt++ {
		front := atomic.LoadUint32(g.front())
		hdr := decodeHeader(g.headerBytes(front))

		cells := g.cellBytes(front)
		for row := 0; row < g.rows; row++ {
			for col := 0; col < g.cols; col++ {
				off := (row*g.cols + col) * cellSize
				dst.SetCell(row, col, decodeCell(cells[off:]))
			}
		}

		// Re-check both the designator and the sequence: the designator
		// alone could swing away and back between our two loads.
		if atomic.LoadUint32(g.front()) == front &&
			le.Uint32(g.headerBytes(front)[0:]) == hdr.Seq {
			return hdr, nil
		}
	}
	return BufferHeader{}, fmt.Errorf("shm %s: snapshot kept racing the writer", g.Name())
}

// FrontHeader reads the current front header without copying cells.
func (g *SharedGrid) FrontHeader() BufferHeader {
	return decodeHeader(g.headerBytes(atomic.LoadUint32(g.front())))
}

// Close unmaps the region.
func (g *SharedGrid) Close() error { return g.region.Close() }

// Unlink removes the backing file. Server-side only.
func (g *SharedGrid) Unlink() error { return g.region.Unlink() }

func encodeCell(b []byte, c term.Cell) {
	le.PutUint32(b[0:], uint32(c.Rune))
	le.PutUint32(b[4:], uint32(c.FG))
	le.PutUint32(b[8:], uint32(c.BG))
	le.PutUint32(b[12:], uint32(c.Attr))
}

func decodeCell(b []byte) term.Cell {
	return term.Cell{
		Rune: rune(le.Uint32(b[0:])),
		FG:   term.Color(le.Uint32(b[4:])),
		BG:   term.Color(le.Uint32(b[8:])),
		Attr: term.Attr(le.Uint32(b[12:])),
	}
}

func encodeHeader(b []byte, h BufferHeader) {
	le.PutUint32(b[0:], h.Seq)
	le.PutUint32(b[4:], uint32(h.CursorRow))
	le.PutUint32(b[8:], uint32(h.CursorCol))
	le.PutUint32(b[12:], boolWord(h.CursorVisible))
	le.PutUint32(b[16:], boolWord(h.AltScreen))
	le.PutUint32(b[20:], boolWord(h.FullDamage))
	le.PutUint32(b[24:], uint32(h.Damage.StartRow))
	le.PutUint32(b[28:], uint32(h.Damage.StartCol))
	le.PutUint32(b[32:], uint32(h.Damage.EndRow))
	le.PutUint32(b[36:], uint32(h.Damage.EndCol))
	le.PutUint32(b[40:], uint32(h.ScrollOffset))
}

func decodeHeader(b []byte) BufferHeader {
	return BufferHeader{
		Seq:           le.Uint32(b[0:]),
		CursorRow:     int32(le.Uint32(b[4:])),
		CursorCol:     int32(le.Uint32(b[8:])),
		CursorVisible: le.Uint32(b[12:]) != 0,
		AltScreen:     le.Uint32(b[16:]) != 0,
		FullDamage:    le.Uint32(b[20:]) != 0,
		Damage: term.Rect{
			StartRow: int(le.Uint32(b[24:])),
			StartCol: int(le.Uint32(b[28:])),
			EndRow:   int(le.Uint32(b[32:])),
			EndCol:   int(le.Uint32(b[36:])),
		},
		ScrollOffset: int32(le.Uint32(b[40:])),
	}
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
