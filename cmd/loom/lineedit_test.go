package main

import (
	"bytes"
	"testing"
)

// typeKeys feeds s byte by byte and returns the last result.
func typeKeys(e *editor, s string) editResult {
	res := editContinue
	for i := 0; i < len(s); i++ {
		res = e.feed(s[i])
	}
	return res
}

func TestEditorKeys(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		keys   string
		line   string
		cursor int
	}{
		{"insert in middle", "helo\x1b[Dl", "hello", 4},
		{"backspace", "abc\x7f", "ab", 2},
		{"home and end", "bc\x01a\x05d", "abcd", 4},
		{"delete under cursor", "abc\x01\x1b[3~", "bc", 0},
		{"ctrl w", "one two\x17", "one ", 4},
		{"alt backspace", "one two\x1b\x7f", "one ", 4},
		{"alt b then type", "one two\x1bbX", "one Xtwo", 5},
		{"ctrl left and right", "a b c\x1b[1;5D\x1b[1;5D\x1b[1;5C", "a b c", 3},
		{"ctrl delete", "one two\x01\x1b[3;5~", " two", 0},
		{"control bytes ignored", "a\x02b", "ab", 2},
		{"cursor clamps", "\x1b[D\x1b[Dab\x1b[C", "ab", 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := newEditor(nil)
			typeKeys(e, tc.keys)
			if e.line() != tc.line || e.cursor != tc.cursor {
				t.Fatalf("line=%q cursor=%d, want %q at %d", e.line(), e.cursor, tc.line, tc.cursor)
			}
		})
	}
}

func TestEditorResults(t *testing.T) {
	t.Parallel()

	if got := typeKeys(newEditor(nil), "hi\r"); got != editSubmit {
		t.Fatalf("enter = %v", got)
	}
	if got := typeKeys(newEditor(nil), "\x04"); got != editEOF {
		t.Fatalf("ctrl d on empty line = %v", got)
	}
	if got := typeKeys(newEditor(nil), "x\x04"); got != editContinue {
		t.Fatalf("ctrl d with text = %v", got)
	}
	if got := typeKeys(newEditor(nil), "x\x03"); got != editInterrupt {
		t.Fatalf("ctrl c = %v", got)
	}
	if got := typeKeys(newEditor(nil), "\x7f"); got != editContinue {
		t.Fatalf("backspace on empty line = %v", got)
	}
}

func TestEditorHistory(t *testing.T) {
	t.Parallel()

	e := newEditor([]string{"first", "second"})
	typeKeys(e, "draft")

	typeKeys(e, "\x1b[A")
	if e.line() != "second" {
		t.Fatalf("up = %q", e.line())
	}
	typeKeys(e, "\x1b[A\x1b[A")
	if e.line() != "first" {
		t.Fatalf("up past oldest = %q", e.line())
	}
	typeKeys(e, "\x1b[B")
	if e.line() != "second" {
		t.Fatalf("down = %q", e.line())
	}
	typeKeys(e, "\x1b[B")
	if e.line() != "draft" || e.cursor != 5 {
		t.Fatalf("draft not restored: %q at %d", e.line(), e.cursor)
	}
	if got := typeKeys(e, "\x1b[B"); got != editContinue {
		t.Fatalf("down outside history = %v", got)
	}
}

func TestEditorRender(t *testing.T) {
	t.Parallel()

	e := newEditor(nil)
	typeKeys(e, "abc\x1b[D")
	var out bytes.Buffer
	e.render(&out, "> ")
	if want := "\r> abc\x1b[K\r> ab"; out.String() != want {
		t.Fatalf("render = %q, want %q", out.String(), want)
	}
}
