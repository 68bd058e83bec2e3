package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

type StreamMode string

const (
	StreamInstant StreamMode = "instant"
	StreamQuiet   StreamMode = "quiet"
)

func parseStreamMode(s string) (StreamMode, error) {
	switch m := StreamMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", StreamInstant:
		return StreamInstant, nil
	case StreamQuiet:
		return StreamQuiet, nil
	default:
		return "", fmt.Errorf("unknown stream mode %q (want instant or quiet)", s)
	}
}

// StreamWriter prints generated text. Instant mode writes every piece as it
// arrives; quiet mode holds everything until Flush. Raw output escapes
// control characters so the text can be inspected exactly.
type StreamWriter struct {
	mode   StreamMode
	raw    bool
	buffer *bufio.Writer

	mu          sync.Mutex
	accumulator strings.Builder
}

func NewStreamWriter(mode StreamMode, raw bool, out io.Writer) *StreamWriter {
	return &StreamWriter{
		mode:   mode,
		raw:    raw,
		buffer: bufio.NewWriterSize(out, 4096),
	}
}

// Write is an inference.StreamFunc.
func (w *StreamWriter) Write(piece string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.accumulator.WriteString(piece)
	if w.mode == StreamQuiet {
		return
	}
	w.emit(piece)
	_ = w.buffer.Flush()
}

// Flush writes anything held back and returns all text seen so far.
func (w *StreamWriter) Flush() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	text := w.accumulator.String()
	if w.mode == StreamQuiet {
		w.emit(text)
		w.accumulator.Reset()
	}
	_ = w.buffer.Flush()
	return text
}

func (w *StreamWriter) emit(s string) {
	if w.raw {
		s = escapeRawOutput(s)
	}
	_, _ = w.buffer.WriteString(s)
}

func escapeRawOutput(s string) string {
	var b strings.Builder
	for _, r := range s {
		b.WriteString(escapeRawOutputRune(r))
	}
	return b.String()
}

func escapeRawOutputRune(r rune) string {
	switch r {
	case '\n':
		return `\n`
	case '\r':
		return `\r`
	case '\t':
		return `\t`
	case '\\':
		return `\\`
	default:
		if strconv.IsPrint(r) {
			return string(r)
		}
		return fmt.Sprintf(`\u%04x`, r)
	}
}
