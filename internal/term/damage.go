package term

// Rect is a half-open rectangle of cells: rows in
// [StartRow, EndRow), columns in [StartCol, EndCol).
type Rect struct {
	StartRow, StartCol int
	EndRow, EndCol     int
}

// CellRect returns the rect covering a single cell.
func CellRect(row, col int) Rect {
	return Rect{StartRow: row, StartCol: col, EndRow: row + 1, EndCol: col + 1}
}

// RowRect returns the rect covering columns [startCol, endCol) of one row.
func RowRect(row, startCol, endCol int) Rect {
	return Rect{StartRow: row, StartCol: startCol, EndRow: row + 1, EndCol: endCol}
}

// Empty reports whether the rect covers no cells.
func (r Rect) Empty() bool {
	return r.EndRow <= r.StartRow || r.EndCol <= r.StartCol
}

// Union returns the bounding rect of r and o.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	return Rect{
		StartRow: min(r.StartRow, o.StartRow),
		StartCol: min(r.StartCol, o.StartCol),
		EndRow:   max(r.EndRow, o.EndRow),
		EndCol:   max(r.EndCol, o.EndCol),
	}
}

// Touches reports whether r and o overlap or share an edge. Touching
// rects merge without growing the union beyond their combined bounds
// by more than the gap between them, which keeps the tracked set small
// under typical row-at-a-time redraw patterns.
func (r Rect) Touches(o Rect) bool {
	if r.Empty() || o.Empty() {
		return false
	}
	return r.StartRow <= o.EndRow && o.StartRow <= r.EndRow &&
		r.StartCol <= o.EndCol && o.StartCol <= r.EndCol
}

// Contains reports whether the cell (row, col) lies inside r.
func (r Rect) Contains(row, col int) bool {
	return row >= r.StartRow && row < r.EndRow && col >= r.StartCol && col < r.EndCol
}

// maxDamageRects bounds the tracked set. When a record would create
// more disjoint rects than this, the whole set collapses to a single
// bounding rect: precision is traded for bounded memory and a
// deterministic, testable rule.
const maxDamageRects = 8

// DamageTracker accumulates the set of rectangles mutated since the
// last publish. Full damage supersedes the rect list.
type DamageTracker struct {
	rects []Rect
	full  bool
}

// NewDamageTracker returns an empty tracker.
func NewDamageTracker() *DamageTracker {
	return &DamageTracker{rects: make([]Rect, 0, maxDamageRects)}
}

// Record unions a rect into the tracked set. A rect that touches an
// existing entry is merged into that entry's bounding box; otherwise
// it is appended, collapsing everything to one bounding rect when the
// capacity is exceeded.
func (d *DamageTracker) Record(r Rect) {
	if d.full || r.Empty() {
		return
	}
	for i := range d.rects {
		if d.rects[i].Touches(r) {
			d.rects[i] = d.rects[i].Union(r)
			return
		}
	}
	if len(d.rects) == maxDamageRects {
		bounds := r
		for _, existing := range d.rects {
			bounds = bounds.Union(existing)
		}
		d.rects = append(d.rects[:0], bounds)
		return
	}
	d.rects = append(d.rects, r)
}

// MarkFull flags the whole screen dirty and clears the rect list.
func (d *DamageTracker) MarkFull() {
	d.full = true
	d.rects = d.rects[:0]
}

// HasDamage reports whether anything changed since the last Clear.
func (d *DamageTracker) HasDamage() bool {
	return d.full || len(d.rects) > 0
}

// Full reports whether the whole screen must be treated as dirty.
func (d *DamageTracker) Full() bool { return d.full }

// Rects returns the tracked rects. The slice is owned by the tracker.
func (d *DamageTracker) Rects() []Rect { return d.rects }

// Bounds returns the bounding rect over all tracked damage. ok is
// false when nothing is damaged. When full damage is set the caller
// should use the grid dimensions instead.
func (d *DamageTracker) Bounds() (bounds Rect, ok bool) {
	if len(d.rects) == 0 {
		return Rect{}, false
	}
	bounds = d.rects[0]
	for _, r := range d.rects[1:] {
		bounds = bounds.Union(r)
	}
	return bounds, true
}

// Clear resets the tracker. Called once per publish cycle after the
// damage has been consumed.
func (d *DamageTracker) Clear() {
	d.full = false
	d.rects = d.rects[:0]
}
