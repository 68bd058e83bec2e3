package main

import (
	"fmt"
	"io"
	"slices"
)

const (
	keyCtrlA     = 1
	keyCtrlC     = 3
	keyCtrlD     = 4
	keyCtrlE     = 5
	keyCtrlH     = 8
	keyCtrlW     = 23
	keyEsc       = 27
	keyBackspace = 127
)

type escState int

const (
	escNone escState = iota
	escStart
	escCSI
)

// editResult tells the terminal loop what to do after a byte was consumed.
type editResult int

const (
	editContinue editResult = iota
	editRedraw
	editSubmit
	editInterrupt
	editEOF
)

// editor is the state of one line being typed at a terminal: the bytes, the
// cursor, the history walk and any half-read escape sequence. It does no I/O
// apart from render.
type editor struct {
	buf    []byte
	cursor int

	history  []string
	histPos  int
	browsing bool
	draft    string

	esc escState
	csi []byte
}

func newEditor(history []string) *editor {
	return &editor{buf: make([]byte, 0, 256), history: history, histPos: len(history)}
}

func (e *editor) line() string { return string(e.buf) }

// feed consumes one input byte.
func (e *editor) feed(b byte) editResult {
	if e.esc != escNone {
		return e.feedEscape(b)
	}
	switch b {
	case keyEsc:
		e.esc = escStart
		return editContinue
	case '\r', '\n':
		return editSubmit
	case keyCtrlC:
		return editInterrupt
	case keyCtrlD:
		if len(e.buf) == 0 {
			return editEOF
		}
		return editContinue
	case keyBackspace, keyCtrlH:
		return redrawIf(e.deleteRange(max(e.cursor-1, 0), e.cursor))
	case keyCtrlA:
		return redrawIf(e.moveTo(0))
	case keyCtrlE:
		return redrawIf(e.moveTo(len(e.buf)))
	case keyCtrlW:
		return redrawIf(e.deleteRange(e.wordStart(), e.cursor))
	}
	if b < ' ' {
		return editContinue
	}
	e.buf = slices.Insert(e.buf, e.cursor, b)
	e.cursor++
	return editRedraw
}

// feedEscape handles Alt+key (ESC key) and CSI sequences (ESC [ ... final).
func (e *editor) feedEscape(b byte) editResult {
	if e.esc == escStart {
		e.esc = escNone
		switch b {
		case '[':
			e.esc = escCSI
			e.csi = e.csi[:0]
		case 'b', 'B':
			return redrawIf(e.moveTo(e.wordStart()))
		case 'f', 'F':
			return redrawIf(e.moveTo(e.wordEnd()))
		case keyBackspace:
			return redrawIf(e.deleteRange(e.wordStart(), e.cursor))
		}
		return editContinue
	}
	e.csi = append(e.csi, b)
	if !(b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' || b == '~') {
		return editContinue
	}
	e.esc = escNone
	return redrawIf(e.csiKey(string(e.csi)))
}

func (e *editor) csiKey(seq string) bool {
	switch seq {
	case "A":
		return e.historyPrev()
	case "B":
		return e.historyNext()
	case "C":
		return e.moveTo(e.cursor + 1)
	case "D":
		return e.moveTo(e.cursor - 1)
	case "H":
		return e.moveTo(0)
	case "F":
		return e.moveTo(len(e.buf))
	case "3~":
		return e.deleteRange(e.cursor, min(e.cursor+1, len(e.buf)))
	case "1;5C", "5C":
		return e.moveTo(e.wordEnd())
	case "1;5D", "5D":
		return e.moveTo(e.wordStart())
	case "3;5~":
		return e.deleteRange(e.cursor, e.wordEnd())
	}
	return false
}

func (e *editor) moveTo(pos int) bool {
	pos = min(max(pos, 0), len(e.buf))
	if pos == e.cursor {
		return false
	}
	e.cursor = pos
	return true
}

// deleteRange removes buf[from:to] and leaves the cursor at from.
func (e *editor) deleteRange(from, to int) bool {
	if from >= to {
		return false
	}
	e.buf = slices.Delete(e.buf, from, to)
	e.cursor = from
	return true
}

// wordStart is where Alt+b lands: back over blanks, then over the word.
func (e *editor) wordStart() int {
	i := e.cursor
	for i > 0 && isBlank(e.buf[i-1]) {
		i--
	}
	for i > 0 && !isBlank(e.buf[i-1]) {
		i--
	}
	return i
}

func (e *editor) wordEnd() int {
	i := e.cursor
	for i < len(e.buf) && isBlank(e.buf[i]) {
		i++
	}
	for i < len(e.buf) && !isBlank(e.buf[i]) {
		i++
	}
	return i
}

func (e *editor) historyPrev() bool {
	if len(e.history) == 0 {
		return false
	}
	if !e.browsing {
		e.draft = string(e.buf)
		e.browsing = true
		e.histPos = len(e.history)
	}
	if e.histPos == 0 {
		return false
	}
	e.histPos--
	e.setLine(e.history[e.histPos])
	return true
}

// historyNext walks forward and restores the unsent draft past the newest entry.
func (e *editor) historyNext() bool {
	if !e.browsing {
		return false
	}
	if e.histPos < len(e.history)-1 {
		e.histPos++
		e.setLine(e.history[e.histPos])
		return true
	}
	e.histPos = len(e.history)
	e.browsing = false
	e.setLine(e.draft)
	return true
}

func (e *editor) setLine(s string) {
	e.buf = append(e.buf[:0], s...)
	e.cursor = len(e.buf)
}

// render repaints prompt and line, clears the rest of the row and parks the
// terminal cursor at the edit position.
func (e *editor) render(w io.Writer, prompt string) {
	_, _ = fmt.Fprintf(w, "\r%s%s\x1b[K", prompt, e.buf)
	if e.cursor < len(e.buf) {
		_, _ = fmt.Fprintf(w, "\r%s%s", prompt, e.buf[:e.cursor])
	}
}

func redrawIf(changed bool) editResult {
	if changed {
		return editRedraw
	}
	return editContinue
}

func isBlank(b byte) bool { return b == ' ' || b == '\t' }
