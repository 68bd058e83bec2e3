package toy

import (
	"context"
	"math"
	"testing"
)

func mustModel(t *testing.T, vocab, hidden int, seed int64) *Model {
	t.Helper()
	m, err := New(vocab, hidden, seed)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

// TestEvaluateMatchesNaive compares the threaded projection against a direct
// computation for a single token.
func TestEvaluateMatchesNaive(t *testing.T) {
	t.Parallel()
	m := mustModel(t, 37, 6, 5)
	tok, pos := 3, 9

	got, err := m.Evaluate(context.Background(), []int{1, tok}, pos-1, 4)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	h := make([]float32, m.hidden)
	for i := range h {
		freq := 1 / math.Pow(10000, float64(i)/float64(m.hidden))
		h[i] = m.emb[tok*m.hidden+i] + 0.25*float32(math.Sin(float64(pos)*freq))
	}
	for j := range got {
		var sum float32
		for i := range h {
			sum += h[i] * m.proj[j*m.hidden+i]
		}
		ref := sum + m.bias[j]
		if math.Abs(float64(got[j]-ref)) > 1e-4 {
			t.Fatalf("logit %d: got %f, want %f", j, got[j], ref)
		}
	}
}

func TestEvaluateIndependentOfThreads(t *testing.T) {
	t.Parallel()
	m := mustModel(t, 50, 8, 1)
	ctx := context.Background()
	one, err := m.Evaluate(ctx, []int{7}, 3, 1)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for _, threads := range []int{0, 2, 3, 7, 64} {
		many, err := m.Evaluate(ctx, []int{7}, 3, threads)
		if err != nil {
			t.Fatalf("threads=%d: %v", threads, err)
		}
		for i := range one {
			if one[i] != many[i] {
				t.Fatalf("threads=%d: logit %d differs", threads, i)
			}
		}
	}
}

func TestSeedAndPositionMatter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	a, _ := mustModel(t, 10, 4, 1).Evaluate(ctx, []int{2}, 0, 1)
	b, _ := mustModel(t, 10, 4, 1).Evaluate(ctx, []int{2}, 0, 1)
	c, _ := mustModel(t, 10, 4, 2).Evaluate(ctx, []int{2}, 0, 1)
	d, _ := mustModel(t, 10, 4, 1).Evaluate(ctx, []int{2}, 5, 1)
	same := func(x, y []float32) bool {
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	}
	if !same(a, b) {
		t.Fatal("same seed produced different logits")
	}
	if same(a, c) {
		t.Fatal("different seeds produced identical logits")
	}
	if same(a, d) {
		t.Fatal("position had no effect")
	}
}

func TestEvaluateErrors(t *testing.T) {
	t.Parallel()
	m := mustModel(t, 4, 2, 0)
	ctx := context.Background()
	if _, err := m.Evaluate(ctx, nil, 0, 1); err == nil {
		t.Fatal("expected error for empty batch")
	}
	if _, err := m.Evaluate(ctx, []int{4}, 0, 1); err == nil {
		t.Fatal("expected error for out of range token")
	}
	if _, err := m.Evaluate(ctx, []int{1}, -1, 1); err == nil {
		t.Fatal("expected error for negative position")
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := m.Evaluate(cancelled, []int{1}, 0, 1); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if _, err := New(0, 2, 0); err == nil {
		t.Fatal("expected error for empty vocabulary")
	}
}
