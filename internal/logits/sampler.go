// Package logits turns a next-token score vector into a single token id.
package logits

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// ErrInvalidParameter is returned for sampler settings that can never produce
// a valid distribution.
var ErrInvalidParameter = errors.New("invalid parameter")

// Config configures a Sampler.
type Config struct {
	Temperature   float32
	TopK          int
	TopP          float32
	RepeatPenalty float32
	// IgnoreEOS removes EOS from every candidate set. EOS < 0 disables it.
	IgnoreEOS bool
	EOS       int
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	switch {
	case !(c.Temperature > 0):
		return fmt.Errorf("%w: temperature must be > 0, got %v", ErrInvalidParameter, c.Temperature)
	case c.TopK < 1:
		return fmt.Errorf("%w: top_k must be >= 1, got %d", ErrInvalidParameter, c.TopK)
	case !(c.TopP > 0 && c.TopP <= 1):
		return fmt.Errorf("%w: top_p must be in (0,1], got %v", ErrInvalidParameter, c.TopP)
	case !(c.RepeatPenalty >= 1):
		return fmt.Errorf("%w: repeat_penalty must be >= 1, got %v", ErrInvalidParameter, c.RepeatPenalty)
	}
	return nil
}

// Sampler applies repetition penalty, temperature, top-k and top-p before
// drawing a token. It keeps scratch buffers between calls and must not be
// shared between goroutines; each generation session owns one.
type Sampler struct {
	cfg Config

	scaled    []float32
	topIdx    []int
	topVal    []float32
	prob      []float64
	seenMark  []uint32
	seenEpoch uint32
}

// NewSampler validates cfg.
func NewSampler(cfg Config) (*Sampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sampler{cfg: cfg}, nil
}

// Config returns the settings the sampler was built with.
func (s *Sampler) Config() Config { return s.cfg }

// Sample draws one token id. logits is not modified. history holds the recent
// token ids subject to the repetition penalty; negative ids are ignored.
func (s *Sampler) Sample(logits []float32, history []int, rng *rand.Rand) int {
	idx, prob := s.candidates(logits, history)
	if len(idx) == 0 {
		return 0
	}
	if len(idx) == 1 {
		return idx[0]
	}
	r := rng.Float64()
	var c float64
	for i := range prob {
		c += prob[i]
		if r < c {
			return idx[i]
		}
	}
	return idx[len(idx)-1]
}

// candidates runs every step except the draw and returns the retained ids,
// best first, with probabilities summing to 1.
func (s *Sampler) candidates(logits []float32, history []int) ([]int, []float64) {
	if len(logits) == 0 {
		return nil, nil
	}
	scaled := s.penalize(logits, history)
	if s.cfg.IgnoreEOS && s.cfg.EOS >= 0 && s.cfg.EOS < len(scaled) {
		scaled[s.cfg.EOS] = float32(math.Inf(-1))
	}

	invTemp := 1 / s.cfg.Temperature
	for i := range scaled {
		scaled[i] *= invTemp
	}

	k := min(s.cfg.TopK, len(scaled))
	idx, val := s.topK(scaled, k)
	prob := s.softmax(val)
	if s.cfg.TopP < 1 {
		idx, prob = truncateTopP(idx, prob, float64(s.cfg.TopP))
	}
	return idx, prob
}

// penalize copies logits into scratch space and scales each distinct history
// id once: positive scores are divided by the penalty, negative multiplied.
func (s *Sampler) penalize(logits []float32, history []int) []float32 {
	if cap(s.scaled) < len(logits) {
		s.scaled = make([]float32, len(logits))
	}
	scaled := s.scaled[:len(logits)]
	copy(scaled, logits)

	p := s.cfg.RepeatPenalty
	if p == 1 || len(history) == 0 {
		return scaled
	}
	if len(s.seenMark) < len(logits) {
		s.seenMark = make([]uint32, len(logits))
		s.seenEpoch = 0
	}
	s.seenEpoch++
	if s.seenEpoch == 0 {
		clear(s.seenMark)
		s.seenEpoch = 1
	}
	for _, id := range history {
		if id < 0 || id >= len(scaled) || s.seenMark[id] == s.seenEpoch {
			continue
		}
		s.seenMark[id] = s.seenEpoch
		if scaled[id] > 0 {
			scaled[id] /= p
		} else {
			scaled[id] *= p
		}
	}
	return scaled
}

// topK keeps the k largest values in descending order. An equal value never
// displaces an earlier one, so the lower id wins ties.
func (s *Sampler) topK(vals []float32, k int) ([]int, []float32) {
	if cap(s.topIdx) < k+1 {
		s.topIdx = make([]int, 0, k+1)
		s.topVal = make([]float32, 0, k+1)
	}
	topIdx := s.topIdx[:0]
	topVal := s.topVal[:0]

	for i, v := range vals {
		pos := len(topVal)
		for pos > 0 && topVal[pos-1] < v {
			pos--
		}
		if pos >= k {
			continue
		}
		topIdx = append(topIdx, 0)
		topVal = append(topVal, 0)
		copy(topIdx[pos+1:], topIdx[pos:])
		copy(topVal[pos+1:], topVal[pos:])
		topIdx[pos] = i
		topVal[pos] = v
		if len(topVal) > k {
			topIdx = topIdx[:k]
			topVal = topVal[:k]
		}
	}
	s.topIdx, s.topVal = topIdx, topVal
	return topIdx, topVal
}

// softmax over descending vals. The first entry is the maximum.
func (s *Sampler) softmax(vals []float32) []float64 {
	if cap(s.prob) < len(vals) {
		s.prob = make([]float64, len(vals))
	}
	prob := s.prob[:len(vals)]
	maxv := float64(vals[0])
	if math.IsInf(maxv, -1) {
		// every candidate was masked; fall back to uniform
		for i := range prob {
			prob[i] = 1 / float64(len(prob))
		}
		return prob
	}
	if math.IsInf(maxv, 1) {
		// a tiny temperature overflowed; the +Inf entries share all mass
		n := 0
		for n < len(vals) && math.IsInf(float64(vals[n]), 1) {
			n++
		}
		for i := range prob {
			prob[i] = 0
			if i < n {
				prob[i] = 1 / float64(n)
			}
		}
		return prob
	}
	var sum float64
	for i, v := range vals {
		prob[i] = math.Exp(float64(v) - maxv)
		sum += prob[i]
	}
	for i := range prob {
		prob[i] /= sum
	}
	return prob
}

// truncateTopP keeps the shortest prefix whose mass reaches p and
// renormalises it.
func truncateTopP(idx []int, prob []float64, p float64) ([]int, []float64) {
	var cum float64
	cut := len(prob)
	for i := range prob {
		cum += prob[i]
		if cum >= p {
			cut = i + 1
			break
		}
	}
	idx, prob = idx[:cut], prob[:cut]
	for i := range prob {
		prob[i] /= cum
	}
	return idx, prob
}

// Argmax returns the index of the largest value, the first one on ties.
func Argmax(x []float32) int {
	best := 0
	for i := 1; i < len(x); i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}
