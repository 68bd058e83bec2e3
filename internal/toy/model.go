// Package toy provides a tiny random-weight language model that satisfies
// inference.Evaluator. It lets the CLI and the HTTP service run end to end
// without a real tensor engine, and gives tests a reproducible logit source.
package toy

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"
)

// Model is an embedding lookup followed by a projection back to vocabulary
// logits. The hidden state is the embedding of the last token of a batch
// plus a sinusoidal encoding of its position, so identical tokens at
// different positions score differently. Weights are immutable after New,
// which makes Evaluate safe for concurrent sessions.
type Model struct {
	vocab  int
	hidden int

	emb  []float32 // [vocab x hidden]
	proj []float32 // [vocab x hidden], row j scores token j
	bias []float32 // [vocab]
}

// New builds a model with weights drawn from seed.
func New(vocab, hidden int, seed int64) (*Model, error) {
	if vocab < 1 || hidden < 1 {
		return nil, fmt.Errorf("toy model needs vocab >= 1 and hidden >= 1, got %d and %d", vocab, hidden)
	}
	m := &Model{
		vocab:  vocab,
		hidden: hidden,
		emb:    make([]float32, vocab*hidden),
		proj:   make([]float32, vocab*hidden),
		bias:   make([]float32, vocab),
	}
	fillRand(m.emb, seed+11)
	fillRand(m.proj, seed+23)
	fillRand(m.bias, seed+37)
	for i := range m.bias {
		m.bias[i] *= 0.1
	}
	return m, nil
}

func (m *Model) VocabSize() int { return m.vocab }

// Evaluate returns next-token logits for the last of tokens, placed at
// position nPast+len(tokens)-1. The projection is split across threads
// workers.
func (m *Model) Evaluate(ctx context.Context, tokens []int, nPast, threads int) ([]float32, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("evaluate: empty batch")
	}
	if nPast < 0 {
		return nil, fmt.Errorf("evaluate: negative position %d", nPast)
	}
	for _, t := range tokens {
		if t < 0 || t >= m.vocab {
			return nil, fmt.Errorf("evaluate: token %d outside vocabulary of %d", t, m.vocab)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h := m.hiddenState(tokens[len(tokens)-1], nPast+len(tokens)-1)
	out := make([]float32, m.vocab)

	workers := max(1, min(threads, m.vocab))
	span := (m.vocab + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < m.vocab; start += span {
		end := min(start+span, m.vocab)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m.project(out[start:end], start, h)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Model) hiddenState(tok, pos int) []float32 {
	h := make([]float32, m.hidden)
	copy(h, m.emb[tok*m.hidden:(tok+1)*m.hidden])
	for i := range h {
		freq := 1 / math.Pow(10000, float64(i)/float64(m.hidden))
		h[i] += 0.25 * float32(math.Sin(float64(pos)*freq))
	}
	return h
}

// project writes logits for tokens [first, first+len(dst)).
func (m *Model) project(dst []float32, first int, h []float32) {
	for k := range dst {
		j := first + k
		row := m.proj[j*m.hidden : (j+1)*m.hidden]
		var sum float32
		for i, x := range h {
			sum += x * row[i]
		}
		dst[k] = sum + m.bias[j]
	}
}

// fillRand fills x with uniform values in [-1, 1).
func fillRand(x []float32, seed int64) {
	r := rand.New(rand.NewSource(seed))
	for i := range x {
		x[i] = r.Float32()*2 - 1
	}
}
