package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/loom/internal/logger"
	"github.com/samcharles93/loom/internal/logits"
	"github.com/samcharles93/loom/internal/vocab"
	"github.com/samcharles93/loom/internal/window"
)

// Options are the collaborators and settings of one session.
type Options struct {
	Params    Params
	Prompt    string
	Vocab     *vocab.Vocabulary
	Tokenizer Encoder
	Evaluator Evaluator
	// Stream receives emitted text. It may be nil.
	Stream StreamFunc
	// Logger defaults to the one carried by the context passed to NewSession.
	Logger logger.Logger
}

// Session is a suspendable generation loop. Step advances it until it needs
// user input or stops; Submit resumes it with input. Apart from Cancel, a
// Session must be driven from a single goroutine. Sessions share nothing
// mutable, so any number may run concurrently over one Vocabulary.
type Session struct {
	id     string
	params Params
	seed   int64

	vocab  *vocab.Vocabulary
	enc    Encoder
	eval   Evaluator
	stream StreamFunc
	log    logger.Logger

	sampler *logits.Sampler
	rng     *rand.Rand
	win     *window.Window
	penalty *window.Ring
	recent  *window.Ring
	history []int

	pending []int
	batch   []int
	logits  []float32
	inPfx   []int
	inSfx   []int

	remain      int
	echo        bool
	sampled     bool
	interacting bool
	antiprompt  bool
	maxAntiLen  int

	state     State
	reason    StopReason
	cancelled atomic.Bool
	last      Sampled

	tokens []int
	text   strings.Builder
	stats  Stats
	start  time.Time
}

// NewSession validates the configuration and tokenizes the prompt. It never
// calls the evaluator, so every configuration error surfaces here.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	switch {
	case opts.Vocab == nil:
		return nil, invalid("vocabulary", "is required")
	case opts.Tokenizer == nil:
		return nil, invalid("tokenizer", "is required")
	case opts.Evaluator == nil:
		return nil, invalid("evaluator", "is required")
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, err
	}
	p := opts.Params.normalize()
	if p.Instruct && opts.Vocab.Newline() < 0 {
		return nil, invalid("instruct", "vocabulary has no newline token")
	}

	log := opts.Logger
	if log == nil {
		log = logger.FromContext(ctx)
	}

	s := &Session{
		id:     uuid.NewString(),
		vocab:  opts.Vocab,
		enc:    opts.Tokenizer,
		eval:   opts.Evaluator,
		stream: opts.Stream,
	}
	s.log = log.With("session", s.id)

	prompt, err := s.encode(opts.Prompt, true)
	if err != nil {
		return nil, fmt.Errorf("encode prompt: %w", err)
	}
	if len(prompt) == 0 {
		return nil, invalid("prompt", "encodes to no tokens")
	}
	if limit := p.NCtx - promptMargin; len(prompt) > limit {
		return nil, fmt.Errorf("%w: %d tokens, max %d", ErrPromptTooLong, len(prompt), max(limit, 0))
	}
	if p.NKeep < 0 || p.NKeep > len(prompt) || p.Instruct {
		p.NKeep = len(prompt)
	}
	if p.Instruct {
		if s.inPfx, err = s.encode(instructPrefix, true); err != nil {
			return nil, fmt.Errorf("encode instruct prefix: %w", err)
		}
		if s.inSfx, err = s.encode(instructSuffix, false); err != nil {
			return nil, fmt.Errorf("encode instruct suffix: %w", err)
		}
	}

	if s.win, err = window.New(p.NCtx, p.NKeep); err != nil {
		return nil, invalid("n_keep", "%v", err)
	}
	if s.sampler, err = logits.NewSampler(p.samplerConfig(opts.Vocab.EOS())); err != nil {
		return nil, err
	}

	s.seed = p.Seed
	if s.seed < 0 {
		s.seed = time.Now().UnixNano()
	}
	s.rng = rand.New(rand.NewSource(s.seed))
	s.params = p
	s.penalty = window.NewRing(p.RepeatLastN, -1)
	s.recent = window.NewRing(p.NCtx, -1)
	s.pending = prompt
	s.remain = p.NPredict
	s.echo = p.EchoPrompt
	s.interacting = p.Interactive && p.InteractiveStart
	for _, a := range p.Antiprompts {
		s.maxAntiLen = max(s.maxAntiLen, len(a))
	}
	s.stats.PromptTokens = len(prompt)

	s.log.Debug("session created",
		"seed", s.seed,
		"prompt_tokens", len(prompt),
		"n_ctx", p.NCtx,
		"n_batch", p.NBatch,
		"n_keep", p.NKeep,
		"n_predict", p.NPredict,
		"top_k", p.TopK,
		"top_p", p.TopP,
		"temperature", p.Temperature,
		"repeat_penalty", p.RepeatPenalty,
		"repeat_last_n", p.RepeatLastN,
		"interactive", p.Interactive,
		"instruct", p.Instruct,
	)
	return s, nil
}

// Generate runs a new session to completion.
func Generate(ctx context.Context, opts Options, src LineSource) (*Result, error) {
	s, err := NewSession(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, src)
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State { return s.state }

// Params returns the effective parameters after mode implications and
// n_keep clamping.
func (s *Session) Params() Params { return s.params }

// Seed is the seed actually used by the random source.
func (s *Session) Seed() int64 { return s.seed }

// Last reports the most recent sampling outcome.
func (s *Session) Last() (Sampled, bool) {
	return s.last, len(s.tokens) > 0
}

// Cancel asks the session to stop before its next model step. It is safe to
// call from any goroutine.
func (s *Session) Cancel() { s.cancelled.Store(true) }

// Step runs one iteration: evaluate the queued batch, then either forward
// pending input or sample one token, emit, and update the state. It is a
// no-op outside Generating. Cancellation is reported through the state, not
// as an error.
func (s *Session) Step(ctx context.Context) (State, error) {
	if s.state != Generating {
		return s.state, nil
	}
	if s.start.IsZero() {
		s.start = time.Now()
	}
	if s.shouldCancel(ctx) {
		s.stop(StopCancelled)
		return s.state, nil
	}
	if !s.params.Interactive && s.remain == 0 {
		s.stop(StopBudget)
		return s.state, nil
	}

	if len(s.batch) > 0 {
		if err := s.evaluate(ctx); err != nil {
			if ctx.Err() != nil {
				s.stop(StopCancelled)
				return s.state, nil
			}
			s.stop(StopError)
			return s.state, err
		}
	}

	if len(s.pending) == 0 && !s.interacting {
		s.sample()
	} else {
		s.feed()
	}

	if s.echo {
		for _, id := range s.batch {
			s.emit(id)
			if s.shouldCancel(ctx) {
				s.stop(StopCancelled)
				return s.state, nil
			}
		}
	}

	eos := s.vocab.EOS()
	if s.sampled && eos >= 0 && s.last.ID == eos && !s.params.Instruct {
		s.stop(StopEOS)
		return s.state, nil
	}

	if s.params.Interactive && len(s.pending) == 0 {
		if s.matchAntiprompt() {
			s.interacting = true
			s.antiprompt = true
			if s.sampled {
				s.last.Antiprompt = true
			}
		}
		if s.interacting && s.win.NPast() > 0 {
			s.state = AwaitingUserInput
		}
	}

	if s.params.Interactive && s.remain <= 0 && s.params.NPredict != -1 {
		s.remain = s.params.NPredict
		s.interacting = true
	}
	if !s.params.Interactive && s.remain == 0 {
		s.stop(StopBudget)
	}
	return s.state, nil
}

// Submit resumes a session waiting for input. input is used verbatim after
// the configured input prefix; a buffer of at most one byte hands control
// back to the model without queuing anything.
func (s *Session) Submit(input string) error {
	if s.state != AwaitingUserInput {
		return ErrNotAwaitingInput
	}
	buf := s.params.InputPrefix + input
	if len(buf) > 1 {
		ids, err := s.encode(buf, false)
		if err != nil {
			return fmt.Errorf("encode input: %w", err)
		}
		if s.params.Instruct && !s.antiprompt {
			s.pending = append(s.pending, s.inPfx...)
		}
		s.pending = append(s.pending, ids...)
		if s.params.Instruct {
			s.pending = append(s.pending, s.inSfx...)
		}
		s.remain -= len(ids)
		if s.params.NPredict != -1 && s.remain <= 0 {
			s.remain = s.params.NPredict
		}
		s.log.Debug("input queued", "tokens", len(ids), "pending", len(s.pending))
	}
	s.echo = false
	s.interacting = false
	s.antiprompt = false
	s.state = Generating
	return nil
}

// CloseInput ends a session waiting for input, as when the input source is
// exhausted.
func (s *Session) CloseInput() {
	if s.state == AwaitingUserInput {
		s.stop(StopInputClosed)
	}
}

// Run drives the session until it stops, reading input from src whenever
// the session waits for it. Lines ending in a backslash continue onto the
// next line. A nil src behaves like an exhausted one.
func (s *Session) Run(ctx context.Context, src LineSource) (*Result, error) {
	for {
		st, err := s.Step(ctx)
		if err != nil {
			return s.Result(), err
		}
		switch st {
		case Stopped:
			return s.Result(), nil
		case AwaitingUserInput:
			if err := s.awaitInput(ctx, src); err != nil {
				return s.Result(), err
			}
		}
	}
}

func (s *Session) awaitInput(ctx context.Context, src LineSource) error {
	if src == nil {
		s.CloseInput()
		return nil
	}
	var buf strings.Builder
	for {
		line, err := safeReadLine(ctx, src)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.CloseInput()
				return nil
			case ctx.Err() != nil:
				s.stop(StopCancelled)
				return nil
			}
			s.stop(StopError)
			return fmt.Errorf("read input: %w", err)
		}
		if rest, more := strings.CutSuffix(line, `\`); more {
			buf.WriteString(rest)
			buf.WriteByte('\n')
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
		break
	}
	return s.Submit(buf.String())
}

// Result snapshots the output so far.
func (s *Session) Result() *Result {
	st := s.stats
	if s.state != Stopped && !s.start.IsZero() {
		st.Duration = time.Since(s.start)
		st.TPS = tps(st.TokensGenerated, st.Duration)
	}
	return &Result{
		SessionID: s.id,
		Tokens:    slices.Clone(s.tokens),
		Text:      s.text.String(),
		Reason:    s.reason,
		Seed:      s.seed,
		Stats:     st,
	}
}

func (s *Session) evaluate(ctx context.Context) error {
	batch := s.batch
	defer func() { s.batch = s.batch[:0] }()

	if s.win.NeedsEviction(len(batch)) {
		nPast, reprocess, err := s.win.Evict(len(batch))
		if err != nil {
			return err
		}
		s.stats.Evictions++
		s.log.Debug("context evicted", "n_past", nPast, "reprocess", len(reprocess))
		batch = append(reprocess, batch...)
	}

	for start := 0; start < len(batch); start += s.params.NBatch {
		chunk := batch[start:min(start+s.params.NBatch, len(batch))]
		out, err := safeEvaluate(ctx, s.eval, chunk, s.win.NPast(), s.params.Threads)
		s.stats.EvalCalls++
		if err != nil {
			return fmt.Errorf("%w: %w", ErrEvaluate, err)
		}
		if len(out) != s.vocab.Size() {
			return fmt.Errorf("%w: got %d logits, want %d", ErrEvaluate, len(out), s.vocab.Size())
		}
		for _, tok := range chunk {
			if err := s.win.Push(tok); err != nil {
				return err
			}
		}
		s.logits = out
	}
	return nil
}

func (s *Session) sample() {
	s.history = s.penalty.AppendTo(s.history[:0])
	id := s.sampler.Sample(s.logits, s.history, s.rng)

	eos := s.vocab.EOS()
	if id == eos && eos >= 0 && s.params.Interactive && s.params.Instruct {
		id = s.vocab.Newline()
		s.interacting = true
	}
	s.penalty.Push(id)
	s.recent.Push(id)
	s.batch = append(s.batch, id)
	s.tokens = append(s.tokens, id)
	if id != eos {
		s.text.WriteString(s.vocab.Token(id))
	}
	s.last = Sampled{ID: id}
	s.sampled = true
	s.echo = true
	s.remain--
	s.stats.TokensGenerated++
}

// feed moves the next batch of queued tokens into the model input. A batch
// never exceeds the room behind the kept prefix, so eviction can always make
// space for it.
func (s *Session) feed() {
	n := min(len(s.pending), s.params.NBatch, s.win.Size()-s.win.Keep())
	for _, tok := range s.pending[:n] {
		s.batch = append(s.batch, tok)
		s.penalty.Push(tok)
		s.recent.Push(tok)
	}
	s.pending = s.pending[n:]
	s.sampled = false
}

// emit streams the text of id. EOS is a control token and has no text.
func (s *Session) emit(id int) {
	if s.stream == nil || id == s.vocab.EOS() {
		return
	}
	if text := s.vocab.Token(id); text != "" {
		s.stream(text)
	}
}

// matchAntiprompt reports whether the recent text ends with an antiprompt.
// Only as many trailing tokens as the longest antiprompt needs are decoded.
func (s *Session) matchAntiprompt() bool {
	if s.maxAntiLen == 0 {
		return false
	}
	var parts []string
	n := 0
	for i := 0; i < s.recent.Len() && n < s.maxAntiLen; i++ {
		t := s.vocab.Token(s.recent.Last(i))
		parts = append(parts, t)
		n += len(t)
	}
	slices.Reverse(parts)
	tail := strings.Join(parts, "")
	for _, a := range s.params.Antiprompts {
		if strings.HasSuffix(tail, a) {
			return true
		}
	}
	return false
}

func (s *Session) encode(text string, bos bool) ([]int, error) {
	ids, err := safeEncode(s.enc, text)
	if err != nil {
		return nil, err
	}
	if id := s.vocab.BOS(); bos && id >= 0 {
		ids = append([]int{id}, ids...)
	}
	return ids, nil
}

func (s *Session) shouldCancel(ctx context.Context) bool {
	return s.cancelled.Load() || ctx.Err() != nil
}

func (s *Session) stop(reason StopReason) {
	if s.state == Stopped {
		return
	}
	s.state = Stopped
	s.reason = reason
	if !s.start.IsZero() {
		s.stats.Duration = time.Since(s.start)
	}
	s.stats.TPS = tps(s.stats.TokensGenerated, s.stats.Duration)
	s.log.Info("generation stopped",
		"reason", string(reason),
		"generated", s.stats.TokensGenerated,
		"evictions", s.stats.Evictions,
	)
}

func tps(n int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}
