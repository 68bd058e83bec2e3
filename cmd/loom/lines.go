package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// terminalLines feeds user input to a waiting session. On a Linux terminal
// it edits lines in raw mode with history; elsewhere it reads buffered lines.
type terminalLines struct {
	prompt  string
	in      *bufio.Reader
	out     io.Writer
	history []string
}

func newTerminalLines(prompt string, in io.Reader, out io.Writer) *terminalLines {
	return &terminalLines{prompt: prompt, in: bufio.NewReader(in), out: out}
}

// ReadLine implements inference.LineSource. io.EOF ends the conversation.
func (t *terminalLines) ReadLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return t.readLine()
}

func (t *terminalLines) readBuffered() (string, error) {
	if t.prompt != "" {
		_, _ = fmt.Fprint(t.out, t.prompt)
	}
	s, err := t.in.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", err
	}
	return trimTrailingNewline(s), nil
}

func trimTrailingNewline(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '\r' {
		s = s[:len(s)-1]
	}
	return s
}
