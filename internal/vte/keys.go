package vte

import "unicode/utf8"

// Modifier is the keyboard modifier bitmask carried by KEY and SPECIAL
// commands. The values match the xterm modifier encoding minus one,
// so the CSI parameter is always 1+Modifier.
type Modifier int

const (
	ModShift Modifier = 1 << iota
	ModAlt
	ModCtrl
)

// Key names a special (non-printing) key for SPECIAL commands. The
// numeric values are part of the control-channel protocol and must
// not be reordered.
type Key int

const (
	KeyNone Key = iota
	KeyEnter
	KeyTab
	KeyBackspace
	KeyEscape
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyInsert
	KeyDelete
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
)

// Function keys occupy a separate range: KeyF1 = 256, KeyF2 = 257, ...
const KeyF1 Key = 256

// FunctionKey returns the Key for Fn (1-based).
func FunctionKey(n int) Key { return KeyF1 + Key(n-1) }

// EncodeKey encodes a unicode keypress into the bytes a terminal
// application expects. Ctrl maps letters and the usual punctuation to
// C0 controls; Alt prefixes ESC.
func EncodeKey(cp rune, mod Modifier) []byte {
	var out []byte
	if mod&ModAlt != 0 {
		out = append(out, 0x1b)
	}
	if mod&ModCtrl != 0 {
		if c, ok := ctrlByte(cp); ok {
			return append(out, c)
		}
	}
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], cp)
	return append(out, buf[:n]...)
}

// ctrlByte maps a codepoint to its C0 control form.
func ctrlByte(cp rune) (byte, bool) {
	switch {
	case cp >= 'a' && cp <= 'z':
		return byte(cp-'a') + 1, true
	case cp >= 'A' && cp <= 'Z':
		return byte(cp-'A') + 1, true
	case cp >= '@' && cp <= '_':
		return byte(cp - '@'), true
	case cp == ' ':
		return 0, true
	case cp == '?':
		return 0x7f, true
	}
	return 0, false
}

// tilde-coded keys: CSI <code> ~ (or CSI <code> ; <mod> ~)
var tildeCodes = map[Key]int{
	KeyInsert:   2,
	KeyDelete:   3,
	KeyPageUp:   5,
	KeyPageDown: 6,
}

// letter-coded keys: CSI <letter> (or CSI 1 ; <mod> <letter>)
var letterCodes = map[Key]byte{
	KeyUp:    'A',
	KeyDown:  'B',
	KeyRight: 'C',
	KeyLeft:  'D',
	KeyHome:  'H',
	KeyEnd:   'F',
}

// F5 and up are tilde-coded with xterm's historical gaps.
var functionCodes = []int{15, 17, 18, 19, 20, 21, 23, 24}

// EncodeSpecialKey encodes a named special key with modifiers.
// Unknown keys encode to nil, which callers treat as a no-op.
func EncodeSpecialKey(key Key, mod Modifier) []byte {
	param := 1 + int(mod)

	switch key {
	case KeyEnter:
		return modPrefix(mod, '\r')
	case KeyTab:
		if mod&ModShift != 0 {
			return []byte("\x1b[Z") // CBT
		}
		return modPrefix(mod, '\t')
	case KeyBackspace:
		return modPrefix(mod, 0x7f)
	case KeyEscape:
		return []byte{0x1b}
	}

	if letter, ok := letterCodes[key]; ok {
		if mod == 0 {
			return []byte{0x1b, '[', letter}
		}
		return appendCSI(nil, 1, param, letter)
	}
	if code, ok := tildeCodes[key]; ok {
		if mod == 0 {
			return appendCSI(nil, code, 0, '~')
		}
		return appendCSI(nil, code, param, '~')
	}
	if key >= KeyF1 && key < KeyF1+4 {
		// F1-F4 are SS3 P/Q/R/S without modifiers.
		letter := byte('P' + key - KeyF1)
		if mod == 0 {
			return []byte{0x1b, 'O', letter}
		}
		return appendCSI(nil, 1, param, letter)
	}
	if key >= KeyF1+4 && key < KeyF1+4+Key(len(functionCodes)) {
		code := functionCodes[key-KeyF1-4]
		if mod == 0 {
			return appendCSI(nil, code, 0, '~')
		}
		return appendCSI(nil, code, param, '~')
	}
	return nil
}

// modPrefix applies the Alt ESC-prefix rule to a single-byte key.
func modPrefix(mod Modifier, b byte) []byte {
	if mod&ModAlt != 0 {
		return []byte{0x1b, b}
	}
	return []byte{b}
}

// appendCSI writes "ESC [ code (;param) final". param 0 means no
// modifier parameter.
func appendCSI(dst []byte, code, param int, final byte) []byte {
	dst = append(dst, 0x1b, '[')
	dst = appendInt(dst, code)
	if param != 0 {
		dst = append(dst, ';')
		dst = appendInt(dst, param)
	}
	return append(dst, final)
}

func appendInt(dst []byte, n int) []byte {
	if n >= 10 {
		dst = appendInt(dst, n/10)
	}
	return append(dst, byte('0'+n%10))
}
