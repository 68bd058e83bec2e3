package inference

import (
	"context"
	"time"
)

// StreamFunc receives the text of each emitted token, in order.
type StreamFunc func(token string)

// Evaluator runs the model forward over tokens placed at position nPast and
// returns next-token logits for the last of them, one entry per vocabulary id.
// It is a blocking call; implementations may parallelise across threads.
type Evaluator interface {
	Evaluate(ctx context.Context, tokens []int, nPast, threads int) ([]float32, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, tokens []int, nPast, threads int) ([]float32, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, tokens []int, nPast, threads int) ([]float32, error) {
	return f(ctx, tokens, nPast, threads)
}

// LineSource supplies user input in interactive sessions. It returns io.EOF
// when no more input will arrive.
type LineSource interface {
	ReadLine(ctx context.Context) (string, error)
}

// Encoder turns text into token ids.
type Encoder interface {
	Encode(text string) ([]int, error)
}

// State is the coarse position of a session in its lifecycle.
type State int

const (
	Generating State = iota
	AwaitingUserInput
	Stopped
)

func (s State) String() string {
	switch s {
	case Generating:
		return "generating"
	case AwaitingUserInput:
		return "awaiting_input"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// StopReason explains why a session reached Stopped.
type StopReason string

const (
	StopNone        StopReason = ""
	StopBudget      StopReason = "budget"
	StopEOS         StopReason = "eos"
	StopCancelled   StopReason = "cancelled"
	StopInputClosed StopReason = "input_closed"
	StopError       StopReason = "error"
)

// Sampled is the outcome of one sampling step.
type Sampled struct {
	ID int
	// Antiprompt is set when the text ending with this token matched a
	// configured antiprompt.
	Antiprompt bool
}

type Stats struct {
	PromptTokens    int
	TokensGenerated int
	EvalCalls       int
	Evictions       int
	Duration        time.Duration
	TPS             float64
}

type Result struct {
	SessionID string
	// Tokens are the sampled ids, EOS included. Prompt and user input are not.
	Tokens []int
	Text   string
	Reason StopReason
	Seed   int64
	Stats  Stats
}
