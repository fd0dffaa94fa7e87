package term

// Grid is a fixed-size cols x rows matrix of cells plus cursor and
// viewport metadata. Dimensions are fixed for the Grid's lifetime;
// Resize reallocates the cell storage rather than mutating it in
// place. The Grid has no concurrency control: it is mutated only by
// its owning backend on a single goroutine.
type Grid struct {
	cols, rows int
	cells      []Cell
}

// NewGrid allocates a blank grid.
func NewGrid(cols, rows int) *Grid {
	g := &Grid{cols: cols, rows: rows}
	g.cells = make([]Cell, cols*rows)
	g.Clear()
	return g
}

// Cols returns the grid width in columns.
func (g *Grid) Cols() int { return g.cols }

// Rows returns the grid height in rows.
func (g *Grid) Rows() int { return g.rows }

// Cell returns the cell at (row, col). Out-of-bounds reads return the
// blank cell.
func (g *Grid) Cell(row, col int) Cell {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return Blank
	}
	return g.cells[row*g.cols+col]
}

// SetCell replaces the cell at (row, col). Out-of-bounds writes are
// discarded.
func (g *Grid) SetCell(row, col int, c Cell) {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return
	}
	g.cells[row*g.cols+col] = c
}

// Row returns the live cell slice for a row. The slice aliases grid
// storage; callers that keep it must copy.
func (g *Grid) Row(row int) []Cell {
	if row < 0 || row >= g.rows {
		return nil
	}
	return g.cells[row*g.cols : (row+1)*g.cols]
}

// SetRow copies cells into a row, padding with blanks when the source
// is shorter than the grid width.
func (g *Grid) SetRow(row int, cells []Cell) {
	if row < 0 || row >= g.rows {
		return
	}
	dst := g.Row(row)
	n := copy(dst, cells)
	for i := n; i < g.cols; i++ {
		dst[i] = Blank
	}
}

// ScrollUp shifts all rows up by n, returning copies of the evicted
// top rows (oldest first) so the caller can move them into scrollback.
// Vacated bottom rows are blanked.
func (g *Grid) ScrollUp(n int) [][]Cell {
	if n <= 0 {
		return nil
	}
	if n > g.rows {
		n = g.rows
	}
	evicted := make([][]Cell, 0, n)
	for row := 0; row < n; row++ {
		line := make([]Cell, g.cols)
		copy(line, g.Row(row))
		evicted = append(evicted, line)
	}
	copy(g.cells, g.cells[n*g.cols:])
	for row := g.rows - n; row < g.rows; row++ {
		g.blankRow(row)
	}
	return evicted
}

// ScrollDown shifts all rows down by n, blanking the vacated top rows.
func (g *Grid) ScrollDown(n int) {
	if n <= 0 {
		return
	}
	if n > g.rows {
		n = g.rows
	}
	copy(g.cells[n*g.cols:], g.cells[:(g.rows-n)*g.cols])
	for row := 0; row < n; row++ {
		g.blankRow(row)
	}
}

// Resize reallocates the grid at the new dimensions. Content is not
// preserved: every cell of the resized grid is blank. Callers that
// share the grid across processes must recreate the shared counterpart
// at the same time.
func (g *Grid) Resize(cols, rows int) {
	g.cols = cols
	g.rows = rows
	g.cells = make([]Cell, cols*rows)
	g.Clear()
}

// Clear resets every cell to blank.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = Blank
	}
}

func (g *Grid) blankRow(row int) {
	dst := g.Row(row)
	for i := range dst {
		dst[i] = Blank
	}
}
