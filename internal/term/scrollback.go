package term

// Scrollback is the bounded history of rows evicted from the top of
// the live grid. It is owned exclusively by the backend; clients never
// see it directly (a scrolled-back viewport is composed into the grid
// before publishing).
//
// Lines carry monotonically increasing absolute ids: the first line
// ever pushed has id 0, and evicting old lines never renumbers the
// rest. Selection anchors use these ids so that new output does not
// move an existing selection.
type Scrollback struct {
	lines   [][]Cell
	max     int
	evicted int
}

// DefaultScrollbackLines bounds history when no limit is configured.
const DefaultScrollbackLines = 10000

// NewScrollback returns an empty store holding at most max lines.
func NewScrollback(max int) *Scrollback {
	if max <= 0 {
		max = DefaultScrollbackLines
	}
	return &Scrollback{max: max}
}

// Push appends an evicted top row as the newest history line, dropping
// the oldest line when the store is at capacity. The store takes
// ownership of the slice.
func (s *Scrollback) Push(line []Cell) {
	if len(s.lines) == s.max {
		copy(s.lines, s.lines[1:])
		s.lines = s.lines[:s.max-1]
		s.evicted++
	}
	s.lines = append(s.lines, line)
}

// Pop removes and returns the newest history line. Used when the
// engine un-scrolls (e.g. leaving the alternate screen) and a line
// must be restored into the live grid.
func (s *Scrollback) Pop() ([]Cell, bool) {
	if len(s.lines) == 0 {
		return nil, false
	}
	line := s.lines[len(s.lines)-1]
	s.lines = s.lines[:len(s.lines)-1]
	return line, true
}

// Len returns the number of retained lines.
func (s *Scrollback) Len() int { return len(s.lines) }

// Max returns the configured capacity.
func (s *Scrollback) Max() int { return s.max }

// Line returns retained line i, where 0 is the oldest. Returns nil
// when out of range.
func (s *Scrollback) Line(i int) []Cell {
	if i < 0 || i >= len(s.lines) {
		return nil
	}
	return s.lines[i]
}

// Evicted returns how many lines have been dropped from the front.
func (s *Scrollback) Evicted() int { return s.evicted }

// Total returns the absolute id one past the newest history line,
// i.e. the id the current top live row will get when it scrolls out.
func (s *Scrollback) Total() int { return s.evicted + len(s.lines) }

// ByID returns the line with absolute id. ok is false when the id has
// been evicted or has not scrolled out yet.
func (s *Scrollback) ByID(id int) (line []Cell, ok bool) {
	if id < s.evicted || id >= s.Total() {
		return nil, false
	}
	return s.lines[id-s.evicted], true
}
