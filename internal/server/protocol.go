package server

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/zokrezyl/yetty-sub000/internal/shm"
	"github.com/zokrezyl/yetty-sub000/internal/vte"
)

// The control channel speaks newline-framed ASCII. Client commands:
//
//	KEY <codepoint> <mod>
//	SPECIAL <key> <mod>
//	RAW <len>\n<len raw bytes>
//	RESIZE <cols> <rows>
//	SCROLL <lines>          positive scrolls into history
//	SCROLL_TOP
//	SCROLL_BOTTOM
//	START
//
// Server messages:
//
//	CONNECTED <shm> <cols> <rows>
//	RESIZED <shm> <cols> <rows>
//	DAMAGE <seq> <full> <startRow> <startCol> <endRow> <endCol> <cursorRow> <cursorCol> <cursorVisible>
//	BELL
//	OK

// CommandKind discriminates parsed client commands.
type CommandKind int

const (
	CmdKey CommandKind = iota
	CmdSpecial
	CmdRaw
	CmdResize
	CmdScroll
	CmdScrollTop
	CmdScrollBottom
	CmdStart
)

// maxRawLen bounds a single RAW payload so a bad length cannot make
// the server allocate unbounded memory.
const maxRawLen = 1 << 20

// maxResizeDim matches the pty winsize range; larger values would
// truncate the pty while the shared region allocates at full size.
const maxResizeDim = 65535

// Command is one parsed client command.
type Command struct {
	Kind       CommandKind
	Codepoint  rune
	Key        vte.Key
	Mod        vte.Modifier
	Data       []byte
	Cols, Rows int
	Lines      int

	rawLen int
}

// ReadCommand reads the next command from the stream. Blank lines are
// skipped; a malformed line is an error so the owner drops the
// connection. Skipping instead would desynchronize the stream: a RAW
// line with a rejected length leaves its payload in the buffer to be
// misread as commands. A well-formed RAW command consumes exactly its
// declared payload after the framing newline, so a following command
// line is never swallowed.
func ReadCommand(r *bufio.Reader) (Command, error) {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return Command{}, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}
		cmd, ok := parseCommandLine(line)
		if !ok {
			return Command{}, fmt.Errorf("malformed command %q", line)
		}
		if cmd.Kind == CmdRaw {
			cmd.Data = make([]byte, cmd.rawLen)
			if _, err := io.ReadFull(r, cmd.Data); err != nil {
				return Command{}, fmt.Errorf("raw payload: %w", err)
			}
		}
		return cmd, nil
	}
}

func parseCommandLine(line string) (Command, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, false
	}
	switch fields[0] {
	case "KEY":
		cp, ok1 := parseInt(fields, 1)
		mod, ok2 := parseInt(fields, 2)
		if !ok1 || !ok2 || cp < 0 {
			return Command{}, false
		}
		return Command{Kind: CmdKey, Codepoint: rune(cp), Mod: vte.Modifier(mod)}, true
	case "SPECIAL":
		key, ok1 := parseInt(fields, 1)
		mod, ok2 := parseInt(fields, 2)
		if !ok1 || !ok2 {
			return Command{}, false
		}
		return Command{Kind: CmdSpecial, Key: vte.Key(key), Mod: vte.Modifier(mod)}, true
	case "RAW":
		n, ok := parseInt(fields, 1)
		if !ok || n < 0 || n > maxRawLen {
			return Command{}, false
		}
		return Command{Kind: CmdRaw, rawLen: n}, true
	case "RESIZE":
		cols, ok1 := parseInt(fields, 1)
		rows, ok2 := parseInt(fields, 2)
		if !ok1 || !ok2 || cols <= 0 || rows <= 0 || cols > maxResizeDim || rows > maxResizeDim {
			return Command{}, false
		}
		return Command{Kind: CmdResize, Cols: cols, Rows: rows}, true
	case "SCROLL":
		lines, ok := parseInt(fields, 1)
		if !ok {
			return Command{}, false
		}
		return Command{Kind: CmdScroll, Lines: lines}, true
	case "SCROLL_TOP":
		return Command{Kind: CmdScrollTop}, true
	case "SCROLL_BOTTOM":
		return Command{Kind: CmdScrollBottom}, true
	case "START":
		return Command{Kind: CmdStart}, true
	}
	return Command{}, false
}

func parseInt(fields []string, i int) (int, bool) {
	if i >= len(fields) {
		return 0, false
	}
	n, err := strconv.Atoi(fields[i])
	if err != nil {
		return 0, false
	}
	return n, true
}

func formatConnected(shmName string, cols, rows int) []byte {
	return []byte(fmt.Sprintf("CONNECTED %s %d %d\n", shmName, cols, rows))
}

func formatResized(shmName string, cols, rows int) []byte {
	return []byte(fmt.Sprintf("RESIZED %s %d %d\n", shmName, cols, rows))
}

func formatDamage(hdr shm.BufferHeader) []byte {
	return []byte(fmt.Sprintf("DAMAGE %d %d %d %d %d %d %d %d %d\n",
		hdr.Seq, boolField(hdr.FullDamage),
		hdr.Damage.StartRow, hdr.Damage.StartCol,
		hdr.Damage.EndRow, hdr.Damage.EndCol,
		hdr.CursorRow, hdr.CursorCol, boolField(hdr.CursorVisible)))
}

var (
	msgOK   = []byte("OK\n")
	msgBell = []byte("BELL\n")
)

func boolField(b bool) int {
	if b {
		return 1
	}
	return 0
}
