//go:build !linux

package main

func (t *terminalLines) readLine() (string, error) {
	return t.readBuffered()
}
