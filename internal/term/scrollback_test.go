package term

import "testing"

func sbLine(r rune) []Cell {
	return []Cell{{Rune: r, FG: DefaultColor, BG: DefaultColor}}
}

func TestScrollbackFIFOBound(t *testing.T) {
	s := NewScrollback(3)
	for _, r := range "abcde" {
		s.Push(sbLine(r))
	}

	if s.Len() != 3 {
		t.Fatalf("Len = %d, want 3 (capacity)", s.Len())
	}
	if s.Evicted() != 2 {
		t.Fatalf("Evicted = %d, want 2", s.Evicted())
	}
	// Oldest retained line is 'c'.
	if got := s.Line(0)[0].Rune; got != 'c' {
		t.Errorf("oldest line = %q, want 'c'", got)
	}
	if got := s.Line(2)[0].Rune; got != 'e' {
		t.Errorf("newest line = %q, want 'e'", got)
	}
}

func TestScrollbackPopNewestFirst(t *testing.T) {
	s := NewScrollback(10)
	s.Push(sbLine('a'))
	s.Push(sbLine('b'))

	line, ok := s.Pop()
	if !ok || line[0].Rune != 'b' {
		t.Fatalf("Pop = %v/%v, want 'b'", line, ok)
	}
	line, ok = s.Pop()
	if !ok || line[0].Rune != 'a' {
		t.Fatalf("Pop = %v/%v, want 'a'", line, ok)
	}
	if _, ok := s.Pop(); ok {
		t.Error("Pop on empty store should report !ok")
	}
}

func TestScrollbackAbsoluteIDsSurviveEviction(t *testing.T) {
	s := NewScrollback(2)
	s.Push(sbLine('a')) // id 0
	s.Push(sbLine('b')) // id 1
	s.Push(sbLine('c')) // id 2, evicts id 0

	if s.Total() != 3 {
		t.Fatalf("Total = %d, want 3", s.Total())
	}

	if _, ok := s.ByID(0); ok {
		t.Error("evicted id 0 should not resolve")
	}
	line, ok := s.ByID(1)
	if !ok || line[0].Rune != 'b' {
		t.Errorf("ByID(1) = %v/%v, want 'b'", line, ok)
	}
	line, ok = s.ByID(2)
	if !ok || line[0].Rune != 'c' {
		t.Errorf("ByID(2) = %v/%v, want 'c'", line, ok)
	}
	if _, ok := s.ByID(3); ok {
		t.Error("id 3 has not scrolled out yet and should not resolve")
	}
}

func TestScrollbackDefaultCapacity(t *testing.T) {
	s := NewScrollback(0)
	if s.Max() != DefaultScrollbackLines {
		t.Errorf("Max = %d, want %d", s.Max(), DefaultScrollbackLines)
	}
}

func TestScrollbackLineOutOfRange(t *testing.T) {
	s := NewScrollback(4)
	s.Push(sbLine('a'))
	if s.Line(-1) != nil || s.Line(1) != nil {
		t.Error("out-of-range Line should return nil")
	}
}
