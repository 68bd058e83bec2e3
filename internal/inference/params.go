package inference

import (
	"math"

	"github.com/samcharles93/loom/internal/logits"
)

// Params configures one generation session.
type Params struct {
	// Seed < 0 derives the seed from the wall clock.
	Seed    int64
	Threads int
	// NPredict is the sampling budget; -1 is unbounded.
	NPredict int
	NCtx     int
	NBatch   int
	// NKeep leading prompt tokens survive eviction. Values < 0 or beyond the
	// prompt length keep the whole prompt.
	NKeep int

	TopK          int
	TopP          float32
	Temperature   float32
	RepeatPenalty float32
	RepeatLastN   int

	Interactive      bool
	InteractiveStart bool
	Instruct         bool
	Antiprompts      []string
	InputPrefix      string
	IgnoreEOS        bool
	EchoPrompt       bool
}

// promptMargin is the number of context slots a prompt may never occupy.
const promptMargin = 4

const (
	instructPrefix     = "\n\n### Instruction:\n\n"
	instructSuffix     = "\n\n### Response:\n\n"
	instructAntiprompt = "### Instruction:\n\n"
)

func DefaultParams() Params {
	return Params{
		Seed:          -1,
		Threads:       4,
		NPredict:      128,
		NCtx:          512,
		NBatch:        8,
		NKeep:         0,
		TopK:          40,
		TopP:          0.95,
		Temperature:   0.8,
		RepeatPenalty: 1.3,
		RepeatLastN:   64,
	}
}

// Validate checks every field that can be checked without a prompt.
func (p Params) Validate() error {
	switch {
	case p.Threads < 1:
		return invalid("threads", "must be >= 1, got %d", p.Threads)
	case p.NPredict < -1:
		return invalid("n_predict", "must be >= -1, got %d", p.NPredict)
	case p.NCtx < 1:
		return invalid("n_ctx", "must be >= 1, got %d", p.NCtx)
	case p.NBatch < 1:
		return invalid("n_batch", "must be >= 1, got %d", p.NBatch)
	case p.NBatch > p.NCtx:
		return invalid("n_batch", "%d exceeds n_ctx %d", p.NBatch, p.NCtx)
	case p.TopK < 1:
		return invalid("top_k", "must be >= 1, got %d", p.TopK)
	case !(p.TopP > 0 && p.TopP <= 1):
		return invalid("top_p", "must be in (0,1], got %v", p.TopP)
	case !(p.Temperature > 0) || math.IsInf(float64(p.Temperature), 0):
		return invalid("temperature", "must be > 0, got %v", p.Temperature)
	case !(p.RepeatPenalty >= 1):
		return invalid("repeat_penalty", "must be >= 1, got %v", p.RepeatPenalty)
	case p.RepeatLastN < 0:
		return invalid("repeat_last_n", "must be >= 0, got %d", p.RepeatLastN)
	case p.RepeatLastN > p.NCtx:
		return invalid("repeat_last_n", "%d exceeds n_ctx %d", p.RepeatLastN, p.NCtx)
	}
	for i, a := range p.Antiprompts {
		if a == "" {
			return invalid("antiprompt", "entry %d is empty", i)
		}
	}
	return nil
}

// normalize applies the implications between modes: instruct starts
// interactive and pauses on the instruction marker, and any antiprompt or
// interactive start makes the session interactive.
func (p Params) normalize() Params {
	p.Antiprompts = append([]string(nil), p.Antiprompts...)
	if p.Instruct {
		p.InteractiveStart = true
		p.Antiprompts = append(p.Antiprompts, instructAntiprompt)
	}
	if len(p.Antiprompts) > 0 || p.InteractiveStart {
		p.Interactive = true
	}
	return p
}

func (p Params) samplerConfig(eos int) logits.Config {
	return logits.Config{
		Temperature:   p.Temperature,
		TopK:          p.TopK,
		TopP:          p.TopP,
		RepeatPenalty: p.RepeatPenalty,
		IgnoreEOS:     p.IgnoreEOS,
		EOS:           eos,
	}
}
