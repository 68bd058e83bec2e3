package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/samcharles93/loom/internal/inference"
	"github.com/samcharles93/loom/internal/logger"
	"github.com/samcharles93/loom/internal/tokenizer"
	"github.com/samcharles93/loom/internal/vocab"
)

type ServiceConfig struct {
	Vocab     *vocab.Vocabulary
	Tokenizer *tokenizer.Greedy
	Evaluator inference.Evaluator
	// Defaults apply to every request before its overrides.
	Defaults inference.Params
	// MaxConcurrent bounds how many sessions evaluate at once. Extra
	// requests wait for a slot until their context ends.
	MaxConcurrent int
	Retain        int
	Logger        logger.Logger
}

// Service runs generation sessions on behalf of HTTP handlers.
type Service struct {
	vocab    *vocab.Vocabulary
	tok      *tokenizer.Greedy
	eval     inference.Evaluator
	defaults inference.Params
	sem      *semaphore.Weighted
	store    *GenerationStore
	log      logger.Logger
	clock    func() time.Time
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Vocab == nil || cfg.Tokenizer == nil || cfg.Evaluator == nil {
		return nil, errors.New("service needs a vocabulary, tokenizer and evaluator")
	}
	if err := cfg.Defaults.Validate(); err != nil {
		return nil, fmt.Errorf("default params: %w", err)
	}
	slots := cfg.MaxConcurrent
	if slots < 1 {
		slots = 1
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		vocab:    cfg.Vocab,
		tok:      cfg.Tokenizer,
		eval:     cfg.Evaluator,
		defaults: cfg.Defaults,
		sem:      semaphore.NewWeighted(int64(slots)),
		store:    NewGenerationStore(cfg.Retain),
		log:      log,
		clock:    time.Now,
	}, nil
}

// Params merges the request overrides into the service defaults. Requests
// always run in batch mode: stop sequences end the generation instead of
// waiting for input.
func (s *Service) Params(req *GenerateRequest) inference.Params {
	p := s.defaults
	p.Interactive = false
	p.InteractiveStart = false
	p.Instruct = false
	p.InputPrefix = ""
	p.EchoPrompt = false
	p.Antiprompts = req.Stop
	if req.MaxTokens != nil {
		p.NPredict = *req.MaxTokens
	}
	if req.Seed != nil {
		p.Seed = *req.Seed
	}
	if req.Temperature != nil {
		p.Temperature = *req.Temperature
	}
	if req.TopK != nil {
		p.TopK = *req.TopK
	}
	if req.TopP != nil {
		p.TopP = *req.TopP
	}
	if req.RepeatPenalty != nil {
		p.RepeatPenalty = *req.RepeatPenalty
	}
	if req.RepeatLastN != nil {
		p.RepeatLastN = *req.RepeatLastN
	}
	if req.NKeep != nil {
		p.NKeep = *req.NKeep
	}
	if req.IgnoreEOS != nil {
		p.IgnoreEOS = *req.IgnoreEOS
	}
	return p
}

// Prepare validates the request and builds its session without evaluating
// anything. stream may be nil.
func (s *Service) Prepare(ctx context.Context, req *GenerateRequest, stream inference.StreamFunc) (*inference.Session, error) {
	if req.Prompt == "" {
		return nil, newInvalidRequest("prompt is required")
	}
	return inference.NewSession(ctx, inference.Options{
		Params:    s.Params(req),
		Prompt:    req.Prompt,
		Vocab:     s.vocab,
		Tokenizer: s.tok,
		Evaluator: s.eval,
		Stream:    stream,
		Logger:    s.log,
	})
}

// Run waits for a free slot and drives sess to completion. The returned
// response is also stored for later lookup.
func (s *Service) Run(ctx context.Context, sess *inference.Session) (GenerateResponse, error) {
	resp := s.Snapshot(sess)
	s.store.Start(sess, resp)

	if err := s.sem.Acquire(ctx, 1); err != nil {
		now := s.clock().Unix()
		resp.CompletedAt = &now
		resp.Status = statusCancelled
		resp.StopReason = string(inference.StopCancelled)
		s.store.Finish(resp)
		return resp, err
	}
	defer s.sem.Release(1)

	res, matched, err := drive(ctx, sess)
	s.finish(&resp, res, err)
	if res != nil && res.Reason == inference.StopInputClosed && !matched {
		resp.StopReason = string(inference.StopBudget)
	}
	s.store.Finish(resp)

	s.log.Info("generation finished",
		"session", resp.ID,
		"status", resp.Status,
		"stop_reason", resp.StopReason,
		"tokens", resp.Usage.CompletionTokens,
	)
	return resp, err
}

// drive steps sess until it stops. A request has no further input, so the
// first time the session waits for some its input is closed. matched
// reports whether that wait followed a stop sequence rather than an
// exhausted budget.
func drive(ctx context.Context, sess *inference.Session) (*inference.Result, bool, error) {
	matched := false
	for {
		st, err := sess.Step(ctx)
		if err != nil {
			return sess.Result(), matched, err
		}
		switch st {
		case inference.Stopped:
			return sess.Result(), matched, nil
		case inference.AwaitingUserInput:
			last, _ := sess.Last()
			matched = last.Antiprompt
			sess.CloseInput()
		}
	}
}

// Snapshot returns the pending response for a session before it runs.
func (s *Service) Snapshot(sess *inference.Session) GenerateResponse {
	return GenerateResponse{
		ID:        sess.ID(),
		Object:    "generation",
		CreatedAt: s.clock().Unix(),
		Status:    statusInProgress,
		Tokens:    []int{},
		Seed:      sess.Seed(),
	}
}

func (s *Service) finish(resp *GenerateResponse, res *inference.Result, err error) {
	now := s.clock().Unix()
	resp.CompletedAt = &now
	if res != nil {
		resp.Text = res.Text
		resp.Tokens = res.Tokens
		if resp.Tokens == nil {
			resp.Tokens = []int{}
		}
		resp.StopReason = stopReason(res.Reason)
		resp.Usage = Usage{
			PromptTokens:     res.Stats.PromptTokens,
			CompletionTokens: res.Stats.TokensGenerated,
			EvalCalls:        res.Stats.EvalCalls,
			Evictions:        res.Stats.Evictions,
			DurationMS:       res.Stats.Duration.Milliseconds(),
			TokensPerSecond:  res.Stats.TPS,
		}
	}
	switch {
	case err != nil || (res != nil && res.Reason == inference.StopError):
		resp.Status = statusFailed
		msg := "generation failed"
		if err != nil {
			msg = err.Error()
		}
		resp.Error = &ResponseError{Message: msg, Type: "server_error"}
	case res != nil && res.Reason == inference.StopCancelled:
		resp.Status = statusCancelled
	default:
		resp.Status = statusCompleted
	}
}

// stopReason maps session stop reasons onto the wire. Closed input means the
// session paused on a stop sequence; Run relabels the budget case.
func stopReason(r inference.StopReason) string {
	if r == inference.StopInputClosed {
		return "stop"
	}
	return string(r)
}

func (s *Service) Get(id string) (GenerateResponse, bool) { return s.store.Get(id) }

func (s *Service) Cancel(id string) (GenerateResponse, bool) { return s.store.Cancel(id) }

func (s *Service) Delete(id string) error { return s.store.Delete(id) }

func (s *Service) Running() int { return s.store.Running() }

func (s *Service) VocabSize() int { return s.vocab.Size() }

func (s *Service) Tokenize(text string) (TokenizeResponse, error) {
	ids, err := s.tok.Encode(text)
	if err != nil {
		return TokenizeResponse{}, err
	}
	pieces := make([]string, len(ids))
	for i, id := range ids {
		pieces[i] = s.vocab.Token(id)
	}
	if ids == nil {
		ids = []int{}
	}
	return TokenizeResponse{Tokens: ids, Pieces: pieces, Count: len(ids)}, nil
}
