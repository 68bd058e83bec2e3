//go:build linux

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

func (t *terminalLines) readLine() (string, error) {
	if !stdinIsTTY() {
		return t.readBuffered()
	}
	return t.readRaw()
}

// readRaw edits one line with the terminal in non-canonical mode. Arrow keys
// walk the history; Ctrl+C and Ctrl+D on an empty line end the input.
func (t *terminalLines) readRaw() (string, error) {
	restore, err := rawMode(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	defer restore()

	_, _ = fmt.Fprint(t.out, t.prompt)
	ed := newEditor(t.history)
	var chunk [16]byte
	for {
		n, err := os.Stdin.Read(chunk[:])
		if err != nil {
			return "", err
		}
		for _, b := range chunk[:n] {
			switch ed.feed(b) {
			case editRedraw:
				ed.render(t.out, t.prompt)
			case editSubmit:
				_, _ = fmt.Fprint(t.out, "\r\n")
				line := ed.line()
				if strings.TrimSpace(line) != "" {
					t.history = append(t.history, line)
				}
				return line, nil
			case editInterrupt:
				_, _ = fmt.Fprint(t.out, "^C\r\n")
				return "", io.EOF
			case editEOF:
				_, _ = fmt.Fprint(t.out, "\r\n")
				return "", io.EOF
			}
		}
	}
}

// rawMode turns off line buffering and echo on fd and returns a func that
// restores the previous settings.
func rawMode(fd int) (func(), error) {
	old, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, err
	}
	raw := *old
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return nil, err
	}
	return func() { _ = unix.IoctlSetTermios(fd, unix.TCSETS, old) }, nil
}
