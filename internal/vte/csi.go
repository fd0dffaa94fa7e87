package vte

import "github.com/zokrezyl/yetty-sub000/internal/term"

// csiDispatch executes a completed CSI sequence. Unknown finals are
// dropped; the session must survive arbitrary garbage on the stream.
func (e *Engine) csiDispatch(private byte, params []int, final byte) {
	n := paramOr(params, 0, 1)
	if private == '?' {
		switch final {
		case 'h':
			e.setPrivateModes(params, true)
		case 'l':
			e.setPrivateModes(params, false)
		}
		return
	}
	if private != 0 {
		return
	}

	switch final {
	case 'A': // CUU
		e.moveCursor(e.cursorRow-n, e.cursorCol)
	case 'B': // CUD
		e.moveCursor(e.cursorRow+n, e.cursorCol)
	case 'C': // CUF
		e.moveCursor(e.cursorRow, e.cursorCol+n)
	case 'D': // CUB
		e.moveCursor(e.cursorRow, e.cursorCol-n)
	case 'E': // CNL
		e.moveCursor(e.cursorRow+n, 0)
	case 'F': // CPL
		e.moveCursor(e.cursorRow-n, 0)
	case 'G', '`': // CHA, HPA
		e.moveCursor(e.cursorRow, n-1)
	case 'd': // VPA
		e.moveCursor(n-1, e.cursorCol)
	case 'H', 'f': // CUP, HVP
		row := paramOr(params, 0, 1) - 1
		col := paramOr(params, 1, 1) - 1
		if e.originMode {
			row += e.scrollTop
		}
		e.moveCursor(row, col)
	case 'J':
		e.eraseDisplay(paramOr(params, 0, 0))
	case 'K':
		e.eraseLine(paramOr(params, 0, 0))
	case 'L': // IL
		if e.cursorRow >= e.scrollTop && e.cursorRow < e.scrollBottom {
			e.scrollDown(e.cursorRow, e.scrollBottom, n)
		}
	case 'M': // DL
		if e.cursorRow >= e.scrollTop && e.cursorRow < e.scrollBottom {
			e.scrollUp(e.cursorRow, e.scrollBottom, n)
		}
	case '@': // ICH
		e.insertChars(n)
	case 'P': // DCH
		e.deleteChars(n)
	case 'X': // ECH
		end := e.cursorCol + n
		if end > e.cols {
			end = e.cols
		}
		e.clearRect(term.RowRect(e.cursorRow, e.cursorCol, end))
	case 'S': // SU
		e.scrollUp(e.scrollTop, e.scrollBottom, n)
	case 'T': // SD
		e.scrollDown(e.scrollTop, e.scrollBottom, n)
	case 'r': // DECSTBM
		top := paramOr(params, 0, 1) - 1
		bottom := paramOr(params, 1, e.rows)
		if top < 0 || bottom > e.rows || top >= bottom-1 {
			top, bottom = 0, e.rows
		}
		e.scrollTop, e.scrollBottom = top, bottom
		e.moveCursor(e.scrollTop, 0)
	case 'm':
		e.selectGraphicRendition(params)
	case 's': // save cursor (ANSI.SYS)
		e.saved = savedCursor{row: e.cursorRow, col: e.cursorCol, pen: e.pen, valid: true}
	case 'u': // restore cursor
		if e.saved.valid {
			e.pen = e.saved.pen
			e.moveCursor(e.saved.row, e.saved.col)
		}
	}
}

func (e *Engine) eraseDisplay(mode int) {
	switch mode {
	case 0: // cursor to end
		e.clearRect(term.RowRect(e.cursorRow, e.cursorCol, e.cols))
		if e.cursorRow+1 < e.rows {
			e.clearRect(term.Rect{StartRow: e.cursorRow + 1, EndRow: e.rows, EndCol: e.cols})
		}
	case 1: // start to cursor
		if e.cursorRow > 0 {
			e.clearRect(term.Rect{EndRow: e.cursorRow, EndCol: e.cols})
		}
		e.clearRect(term.RowRect(e.cursorRow, 0, e.cursorCol+1))
	case 2, 3:
		e.clearRect(e.fullRect())
	}
}

func (e *Engine) eraseLine(mode int) {
	switch mode {
	case 0:
		e.clearRect(term.RowRect(e.cursorRow, e.cursorCol, e.cols))
	case 1:
		e.clearRect(term.RowRect(e.cursorRow, 0, e.cursorCol+1))
	case 2:
		e.clearRect(term.RowRect(e.cursorRow, 0, e.cols))
	}
}

func (e *Engine) insertChars(n int) {
	row := e.row(e.cursorRow)
	if n > e.cols-e.cursorCol {
		n = e.cols - e.cursorCol
	}
	copy(row[e.cursorCol+n:], row[e.cursorCol:])
	blank := e.blankCell()
	for i := e.cursorCol; i < e.cursorCol+n; i++ {
		row[i] = blank
	}
	e.cb.Damage(term.RowRect(e.cursorRow, e.cursorCol, e.cols))
}

func (e *Engine) deleteChars(n int) {
	row := e.row(e.cursorRow)
	if n > e.cols-e.cursorCol {
		n = e.cols - e.cursorCol
	}
	copy(row[e.cursorCol:], row[e.cursorCol+n:])
	blank := e.blankCell()
	for i := e.cols - n; i < e.cols; i++ {
		row[i] = blank
	}
	e.cb.Damage(term.RowRect(e.cursorRow, e.cursorCol, e.cols))
}

// setPrivateModes handles DECSET/DECRST.
func (e *Engine) setPrivateModes(params []int, set bool) {
	for _, p := range params {
		switch p {
		case 3: // DECCOLM: the application asks for 132/80 columns
			if set {
				e.cb.RequestResize(132, e.rows)
			} else {
				e.cb.RequestResize(80, e.rows)
			}
		case 6:
			e.originMode = set
			e.moveCursor(e.scrollTop, 0)
		case 7:
			e.autoWrap = set
		case 25:
			e.cursorVisible = set
			e.cb.PropChange(PropCursorVisible, set)
			e.cb.MoveCursor(e.cursorRow, e.cursorCol, set)
		case 47:
			if set {
				e.enterAltScreen(false)
			} else {
				e.leaveAltScreen(false)
			}
		case 1047:
			if set {
				e.enterAltScreen(false)
			} else {
				e.leaveAltScreen(false)
			}
		case 1049:
			if set {
				e.enterAltScreen(true)
			} else {
				e.leaveAltScreen(true)
			}
		case 1000:
			e.setMouseMode(MouseClick, set)
		case 1002:
			e.setMouseMode(MouseDrag, set)
		case 1003:
			e.setMouseMode(MouseMove, set)
		case 2004:
			e.bracketedPaste = set
			e.cb.PropChange(PropBracketedPaste, set)
		}
	}
}

func (e *Engine) setMouseMode(mode int, set bool) {
	if !set {
		mode = MouseNone
	}
	if e.mouseMode == mode {
		return
	}
	e.mouseMode = mode
	e.cb.PropChange(PropMouseMode, mode)
}

// selectGraphicRendition applies SGR parameters to the pen.
func (e *Engine) selectGraphicRendition(params []int) {
	if len(params) == 0 {
		params = []int{0}
	}
	for i := 0; i < len(params); i++ {
		switch p := params[i]; {
		case p == 0:
			e.pen = defaultPen()
		case p == 1:
			e.pen.attr |= term.AttrBold
		case p == 2:
			e.pen.attr |= term.AttrDim
		case p == 3:
			e.pen.attr |= term.AttrItalic
		case p == 4:
			e.pen.attr = e.pen.attr.WithUnderline(term.UnderlineSingle)
		case p == 5:
			e.pen.attr |= term.AttrBlink
		case p == 7:
			e.pen.attr |= term.AttrReverse
		case p == 9:
			e.pen.attr |= term.AttrStrike
		case p == 21:
			e.pen.attr = e.pen.attr.WithUnderline(term.UnderlineDouble)
		case p == 22:
			e.pen.attr &^= term.AttrBold | term.AttrDim
		case p == 23:
			e.pen.attr &^= term.AttrItalic
		case p == 24:
			e.pen.attr = e.pen.attr.WithUnderline(term.UnderlineNone)
		case p == 25:
			e.pen.attr &^= term.AttrBlink
		case p == 27:
			e.pen.attr &^= term.AttrReverse
		case p == 29:
			e.pen.attr &^= term.AttrStrike
		case p >= 30 && p <= 37:
			e.pen.fg = term.PaletteColor(uint8(p - 30))
		case p == 38:
			if c, skip, ok := extendedColor(params[i+1:]); ok {
				e.pen.fg = c
				i += skip
			} else {
				return
			}
		case p == 39:
			e.pen.fg = term.DefaultColor
		case p >= 40 && p <= 47:
			e.pen.bg = term.PaletteColor(uint8(p - 40))
		case p == 48:
			if c, skip, ok := extendedColor(params[i+1:]); ok {
				e.pen.bg = c
				i += skip
			} else {
				return
			}
		case p == 49:
			e.pen.bg = term.DefaultColor
		case p >= 90 && p <= 97:
			e.pen.fg = term.PaletteColor(uint8(p - 90 + 8))
		case p >= 100 && p <= 107:
			e.pen.bg = term.PaletteColor(uint8(p - 100 + 8))
		}
	}
}

// extendedColor parses the tail of SGR 38/48: either "5;<idx>" or
// "2;<r>;<g>;<b>". skip is how many parameters were consumed.
func extendedColor(rest []int) (c term.Color, skip int, ok bool) {
	if len(rest) >= 2 && rest[0] == 5 {
		return term.PaletteColor(uint8(rest[1])), 2, true
	}
	if len(rest) >= 4 && rest[0] == 2 {
		return term.RGB(uint8(rest[1]), uint8(rest[2]), uint8(rest[3])), 4, true
	}
	return 0, 0, false
}

// escDispatch executes a completed non-CSI escape sequence.
func (e *Engine) escDispatch(intermediate, final byte) {
	if intermediate != 0 {
		// Charset designations and similar; not modeled.
		return
	}
	switch final {
	case '7': // DECSC
		e.saved = savedCursor{row: e.cursorRow, col: e.cursorCol, pen: e.pen, valid: true}
	case '8': // DECRC
		if e.saved.valid {
			e.pen = e.saved.pen
			e.moveCursor(e.saved.row, e.saved.col)
		}
	case 'D': // IND
		e.lineFeed()
	case 'E': // NEL
		e.moveCursor(e.cursorRow, 0)
		e.lineFeed()
	case 'M': // RI
		e.reverseIndex()
	case 'c': // RIS
		e.reset(e.cols, e.rows)
		e.cb.PropChange(PropAltScreen, false)
		e.cb.Damage(e.fullRect())
		e.cb.MoveCursor(0, 0, true)
	}
}

// oscDispatch handles a completed OSC string. Titles are consumed;
// everything else is forwarded.
func (e *Engine) oscDispatch(cmd int, data []byte) {
	switch cmd {
	case 0, 2:
		e.title = string(data)
		e.cb.PropChange(PropTitle, e.title)
	default:
		e.cb.OSC(cmd, data)
	}
}

// paramOr returns params[i], substituting def for missing or zero
// parameters (CSI treats 0 and absent the same for counts).
func paramOr(params []int, i, def int) int {
	if i >= len(params) || params[i] == 0 {
		return def
	}
	return params[i]
}
