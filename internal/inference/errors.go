package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/samcharles93/loom/internal/logits"
	"github.com/samcharles93/loom/internal/window"
)

var (
	// ErrInvalidParameter covers every configuration error caught before the
	// first model step.
	ErrInvalidParameter = logits.ErrInvalidParameter
	// ErrPromptTooLong means the prompt leaves no room to generate.
	ErrPromptTooLong = errors.New("prompt too long")
	// ErrEvaluate wraps evaluator failures. The session is stopped.
	ErrEvaluate = errors.New("evaluate failed")
	// ErrContextOverflow means a batch cannot fit even after eviction.
	ErrContextOverflow = window.ErrOverflow
	// ErrNotAwaitingInput is returned by Submit outside AwaitingUserInput.
	ErrNotAwaitingInput = errors.New("session is not awaiting input")
)

type paramError struct {
	field string
	msg   string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.field, e.msg)
}

func (e *paramError) Unwrap() error { return ErrInvalidParameter }

func invalid(field, format string, args ...any) error {
	return &paramError{field: field, msg: fmt.Sprintf(format, args...)}
}

func safeEvaluate(ctx context.Context, ev Evaluator, tokens []int, nPast, threads int) (out []float32, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Evaluate: %v", rec)
		}
	}()
	return ev.Evaluate(ctx, tokens, nPast, threads)
}

func safeEncode(tok Encoder, text string) (ids []int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Encode: %v", rec)
		}
	}()
	return tok.Encode(text)
}

func safeReadLine(ctx context.Context, src LineSource) (line string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in ReadLine: %v", rec)
		}
	}()
	return src.ReadLine(ctx)
}
