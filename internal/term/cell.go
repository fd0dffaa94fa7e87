// Package term holds the screen-state data model: cells, the grid,
// damage tracking, and the scrollback store. Nothing in this package
// performs I/O or synchronization; the backend owns all mutation.
package term

// Color packs a cell color into a single word. Bit 31 marks the
// terminal's default color, bit 30 marks a palette index (stored in the
// low 8 bits); otherwise the low 24 bits hold 8-bit RGB. The packed
// form is written verbatim into the shared region, so the layout is
// part of the wire format.
type Color uint32

const (
	colorDefaultBit Color = 1 << 31
	colorPaletteBit Color = 1 << 30
)

// DefaultColor is the terminal default foreground or background.
const DefaultColor = colorDefaultBit

// RGB returns a direct-color value.
func RGB(r, g, b uint8) Color {
	return Color(r)<<16 | Color(g)<<8 | Color(b)
}

// PaletteColor returns an indexed color (0-255).
func PaletteColor(index uint8) Color {
	return colorPaletteBit | Color(index)
}

// IsDefault reports whether c is the terminal default color.
func (c Color) IsDefault() bool { return c&colorDefaultBit != 0 }

// IsPalette reports whether c is a palette index.
func (c Color) IsPalette() bool { return c&colorPaletteBit != 0 && !c.IsDefault() }

// PaletteIndex returns the palette index for an indexed color.
func (c Color) PaletteIndex() uint8 { return uint8(c) }

// RGB returns the direct-color components.
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Attr is the style attribute bitset of a cell. The underline kind
// occupies two bits so the three underline styles stay mutually
// exclusive.
type Attr uint32

const (
	AttrBold Attr = 1 << iota
	AttrDim
	AttrItalic
	AttrBlink
	AttrReverse
	AttrStrike
)

// Underline kinds, stored in bits 6-7 of Attr.
type Underline uint32

const (
	UnderlineNone Underline = iota
	UnderlineSingle
	UnderlineDouble
	UnderlineCurly
)

const (
	underlineShift      = 6
	underlineMask  Attr = 3 << underlineShift
)

// WithUnderline returns a copy of a with the underline kind replaced.
func (a Attr) WithUnderline(u Underline) Attr {
	return a&^underlineMask | Attr(u)<<underlineShift
}

// Underline returns the underline kind encoded in a.
func (a Attr) Underline() Underline {
	return Underline(a&underlineMask) >> underlineShift
}

// Cell is a single grid position. Cells are plain values; once written
// into a Grid they are only ever replaced, never mutated in place.
type Cell struct {
	Rune rune
	FG   Color
	BG   Color
	Attr Attr
}

// Blank is the cell new grid positions default to.
var Blank = Cell{Rune: ' ', FG: DefaultColor, BG: DefaultColor}

// IsBlank reports whether the cell renders as empty space with default
// colors. Used when trimming trailing blanks from extracted text.
func (c Cell) IsBlank() bool {
	return (c.Rune == ' ' || c.Rune == 0) && c.BG.IsDefault() && c.Attr == 0
}
