// Package window tracks the model-visible token history of a generation
// session and decides when and how to shrink it.
package window

import (
	"errors"
	"fmt"
)

// ErrOverflow means a batch cannot fit in the context even after eviction.
var ErrOverflow = errors.New("context overflow")

// Window holds the tokens already evaluated by the model (n_past of them).
// The first keep tokens form a prefix that eviction never touches.
type Window struct {
	size   int
	keep   int
	tokens []int
}

// New returns an empty window of capacity size that preserves keep leading
// tokens on eviction.
func New(size, keep int) (*Window, error) {
	if size < 1 {
		return nil, fmt.Errorf("window size must be >= 1, got %d", size)
	}
	if keep < 0 || keep >= size {
		return nil, fmt.Errorf("kept prefix %d must be in [0,%d)", keep, size)
	}
	return &Window{size: size, keep: keep, tokens: make([]int, 0, size)}, nil
}

// Size is the capacity n_ctx.
func (w *Window) Size() int { return w.size }

// Keep is the length of the preserved prefix.
func (w *Window) Keep() int { return w.keep }

// NPast is the number of tokens the model has seen at its current position.
func (w *Window) NPast() int { return len(w.tokens) }

// Push records an evaluated token.
func (w *Window) Push(tok int) error {
	if len(w.tokens) >= w.size {
		return fmt.Errorf("%w: window full at %d tokens", ErrOverflow, w.size)
	}
	w.tokens = append(w.tokens, tok)
	return nil
}

// Tokens returns a copy of the current history.
func (w *Window) Tokens() []int {
	return append([]int(nil), w.tokens...)
}

// Prefix returns a copy of the kept prefix as far as it has been filled.
func (w *Window) Prefix() []int {
	return append([]int(nil), w.tokens[:min(w.keep, len(w.tokens))]...)
}

// NeedsEviction reports whether evaluating pending more tokens would overrun
// the window.
func (w *Window) NeedsEviction(pending int) bool {
	return len(w.tokens)+pending > w.size
}

// Evict drops everything after the kept prefix and returns the tokens that
// must be evaluated again right after it: the most recent half of the
// discarded region, trimmed so that prefix, reprocess and pending fit.
// After Evict, NPast equals Keep.
func (w *Window) Evict(pending int) (nPast int, reprocess []int, err error) {
	if w.keep+pending > w.size {
		return len(w.tokens), nil, fmt.Errorf("%w: %d kept + %d pending exceeds %d",
			ErrOverflow, w.keep, pending, w.size)
	}
	if len(w.tokens) < w.keep {
		return len(w.tokens), nil, fmt.Errorf("%w: cannot evict before the kept prefix is filled", ErrOverflow)
	}
	n := (len(w.tokens) - w.keep) / 2
	n = min(n, w.size-w.keep-pending)
	reprocess = append([]int(nil), w.tokens[len(w.tokens)-n:]...)
	w.tokens = w.tokens[:w.keep]
	return w.keep, reprocess, nil
}
