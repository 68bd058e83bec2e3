package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReadBuffered(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	l := newTerminalLines("> ", strings.NewReader("first\r\nsecond\nlast"), &out)
	for _, want := range []string{"first", "second", "last"} {
		got, err := l.readBuffered()
		if err != nil || got != want {
			t.Fatalf("readBuffered = %q, %v; want %q", got, err, want)
		}
	}
	if _, err := l.readBuffered(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if out.String() != "> > > > " {
		t.Fatalf("prompt output = %q", out.String())
	}
}

func TestReadLineHonoursContext(t *testing.T) {
	t.Parallel()

	l := newTerminalLines("", strings.NewReader("x\n"), io.Discard)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.ReadLine(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTrimTrailingNewline(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{"a\n": "a", "a\r\n": "a", "a": "a", "": "", "\n": ""} {
		if got := trimTrailingNewline(in); got != want {
			t.Fatalf("trimTrailingNewline(%q) = %q", in, got)
		}
	}
}
