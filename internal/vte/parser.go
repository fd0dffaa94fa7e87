package vte

import "unicode/utf8"

// parser is the byte-level state machine. It owns no screen state;
// completed tokens are dispatched straight onto the Engine. The
// recovery rule for malformed input is to abandon the sequence and
// return to ground, never to error out.
type parser struct {
	state parseState

	// pending multi-byte UTF-8 sequence in ground state
	runeBuf [utf8.UTFMax]byte
	runeLen int

	// CSI accumulation
	private      byte
	params       []int
	curParam     int
	haveParam    bool
	intermediate byte

	// OSC accumulation
	oscCmd    int
	oscHasCmd bool
	oscData   []byte
}

type parseState int

const (
	stateGround parseState = iota
	stateEscape
	stateCSI
	stateOSC
	stateOSCEsc // saw ESC inside OSC, expecting ST terminator
)

const (
	maxCSIParams = 16
	maxOSCBytes  = 4096
)

func (p *parser) feed(e *Engine, b byte) {
	// CAN and SUB abort any sequence in progress.
	if b == 0x18 || b == 0x1a {
		p.state = stateGround
		p.runeLen = 0
		return
	}

	switch p.state {
	case stateGround:
		p.feedGround(e, b)
	case stateEscape:
		p.feedEscape(e, b)
	case stateCSI:
		p.feedCSI(e, b)
	case stateOSC:
		p.feedOSC(e, b)
	case stateOSCEsc:
		if b == '\\' { // ESC \ = ST
			p.dispatchOSC(e)
		} else {
			// Not a terminator after all; drop the OSC and let the
			// escape byte start a fresh sequence.
			p.state = stateEscape
			p.feedEscape(e, b)
		}
	}
}

func (p *parser) feedGround(e *Engine, b byte) {
	if p.runeLen > 0 {
		// Continuation of a multi-byte rune.
		if b&0xc0 == 0x80 {
			p.runeBuf[p.runeLen] = b
			p.runeLen++
			if utf8.FullRune(p.runeBuf[:p.runeLen]) {
				if r, _ := utf8.DecodeRune(p.runeBuf[:p.runeLen]); r != utf8.RuneError {
					e.print(r)
				}
				p.runeLen = 0
			} else if p.runeLen == utf8.UTFMax {
				p.runeLen = 0
			}
			return
		}
		// Broken sequence; drop it and reprocess b.
		p.runeLen = 0
	}

	switch {
	case b == 0x1b:
		p.state = stateEscape
	case b < 0x20 || b == 0x7f:
		e.execute(b)
	case b < 0x80:
		e.print(rune(b))
	default:
		p.runeBuf[0] = b
		p.runeLen = 1
	}
}

func (p *parser) feedEscape(e *Engine, b byte) {
	switch {
	case b == '[':
		p.state = stateCSI
		p.private = 0
		p.params = p.params[:0]
		p.curParam = 0
		p.haveParam = false
		p.intermediate = 0
	case b == ']':
		p.state = stateOSC
		p.oscCmd = 0
		p.oscHasCmd = false
		p.oscData = p.oscData[:0]
	case b >= 0x20 && b <= 0x2f:
		// Single intermediate is enough for the sequences we model
		// (charset designations); the final byte still terminates.
		p.intermediate = b
	case b >= 0x30 && b <= 0x7e:
		p.state = stateGround
		e.escDispatch(p.intermediate, b)
		p.intermediate = 0
	default:
		p.state = stateGround
		p.intermediate = 0
	}
}

func (p *parser) feedCSI(e *Engine, b byte) {
	switch {
	case b >= '0' && b <= '9':
		p.curParam = p.curParam*10 + int(b-'0')
		if p.curParam > 65535 {
			p.curParam = 65535
		}
		p.haveParam = true
	case b == ';' || b == ':':
		p.pushParam()
	case b == '?' || b == '>' || b == '<' || b == '=':
		p.private = b
	case b >= 0x20 && b <= 0x2f:
		p.intermediate = b
	case b >= 0x40 && b <= 0x7e:
		if p.haveParam || len(p.params) > 0 {
			p.pushParam()
		}
		p.state = stateGround
		if p.intermediate == 0 {
			e.csiDispatch(p.private, p.params, b)
		}
		p.intermediate = 0
	case b < 0x20:
		// Control characters execute inside CSI without aborting it.
		e.execute(b)
	default:
		p.state = stateGround
	}
}

func (p *parser) pushParam() {
	if len(p.params) < maxCSIParams {
		p.params = append(p.params, p.curParam)
	}
	p.curParam = 0
	p.haveParam = false
}

func (p *parser) feedOSC(e *Engine, b byte) {
	switch {
	case b == 0x07: // BEL terminator
		p.dispatchOSC(e)
	case b == 0x1b:
		p.state = stateOSCEsc
	case !p.oscHasCmd && b >= '0' && b <= '9':
		p.oscCmd = p.oscCmd*10 + int(b-'0')
	case !p.oscHasCmd && b == ';':
		p.oscHasCmd = true
	default:
		p.oscHasCmd = true
		if len(p.oscData) < maxOSCBytes {
			p.oscData = append(p.oscData, b)
		}
	}
}

func (p *parser) dispatchOSC(e *Engine) {
	p.state = stateGround
	e.oscDispatch(p.oscCmd, p.oscData)
}
