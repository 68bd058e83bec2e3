package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

const (
	envVocab  = "LOOM_VOCAB"
	envConfig = "LOOM_CONFIG"
)

// stdinIsTTY is a small seam for tests.
var stdinIsTTY = isTTY

func resolveVocabPath(vocabFlag string) (string, error) {
	if p := strings.TrimSpace(vocabFlag); p != "" {
		return filepath.Clean(p), nil
	}
	if p := strings.TrimSpace(os.Getenv(envVocab)); p != "" {
		return filepath.Clean(p), nil
	}
	return "", fmt.Errorf("--vocab is required unless %s is set", envVocab)
}

// resolvePrompt picks the prompt from the flag, then the prompt file, then a
// piped stdin. Stdin is left alone in interactive runs since user input is
// read from it.
func resolvePrompt(prompt, file string, interactive bool, stdin io.Reader) (string, error) {
	if prompt != "" {
		return prompt, nil
	}
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read prompt file: %w", err)
		}
		return string(b), nil
	}
	if !interactive && !stdinIsTTY() {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read prompt from stdin: %w", err)
		}
		if len(b) > 0 {
			return string(b), nil
		}
	}
	return "", errors.New("--prompt or --file is required")
}

func isTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
