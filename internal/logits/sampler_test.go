package logits

import (
	"errors"
	"math/rand"
	"testing"
)

func defaultConfig() Config {
	return Config{Temperature: 0.8, TopK: 40, TopP: 0.95, RepeatPenalty: 1.3, EOS: -1}
}

func mustSampler(t *testing.T, cfg Config) *Sampler {
	t.Helper()
	s, err := NewSampler(cfg)
	if err != nil {
		t.Fatalf("NewSampler: %v", err)
	}
	return s
}

func TestTopKOneIsArgmax(t *testing.T) {
	t.Parallel()
	vectors := [][]float32{
		{-1, 5, 3, 7, 2},
		{0.1, 0.1, 0.1},
		{-9, -3, -4},
		{4, 9, 9, 1},
	}
	for _, temp := range []float32{0.01, 0.8, 1, 5} {
		cfg := Config{Temperature: temp, TopK: 1, TopP: 0.5, RepeatPenalty: 1, EOS: -1}
		s := mustSampler(t, cfg)
		for seed := int64(0); seed < 5; seed++ {
			rng := rand.New(rand.NewSource(seed))
			for _, v := range vectors {
				if got, want := s.Sample(v, nil, rng), Argmax(v); got != want {
					t.Fatalf("temp=%v seed=%d %v: got %d, want argmax %d", temp, seed, v, got, want)
				}
			}
		}
	}
}

func TestTopPOneKeepsAllCandidates(t *testing.T) {
	t.Parallel()
	v := []float32{10, 0, 0, 0, 0, -1, 3, 2}
	for _, k := range []int{1, 3, 5, 8, 100} {
		cfg := defaultConfig()
		cfg.TopK, cfg.TopP = k, 1
		idx, prob := mustSampler(t, cfg).candidates(v, nil)
		if want := min(k, len(v)); len(idx) != want {
			t.Fatalf("top_k=%d: %d candidates, want %d", k, len(idx), want)
		}
		var sum float64
		for _, p := range prob {
			sum += p
		}
		if sum < 0.999999 || sum > 1.000001 {
			t.Fatalf("probabilities sum to %v", sum)
		}
	}
}

func TestTopPTruncatesAndRenormalises(t *testing.T) {
	t.Parallel()
	cfg := defaultConfig()
	cfg.Temperature, cfg.TopP, cfg.RepeatPenalty = 1, 0.5, 1
	s := mustSampler(t, cfg)

	idx, prob := s.candidates([]float32{10, 0, 0, 0, 0}, nil)
	if len(idx) != 1 || idx[0] != 0 || prob[0] != 1 {
		t.Fatalf("expected single dominant candidate, got %v %v", idx, prob)
	}

	rng := rand.New(rand.NewSource(7))
	for range 20 {
		if got := s.Sample([]float32{10, 0, 0, 0, 0}, nil, rng); got != 0 {
			t.Fatalf("top-p sampling returned %d", got)
		}
	}
}

func TestTinyTemperatureOverflow(t *testing.T) {
	t.Parallel()
	cfg := Config{Temperature: 1e-38, TopK: 2, TopP: 1, RepeatPenalty: 1, EOS: -1}
	s := mustSampler(t, cfg)

	_, prob := s.candidates([]float32{5, 1}, nil)
	if prob[0] != 1 || prob[1] != 0 {
		t.Fatalf("prob = %v, want [1 0]", prob)
	}
	for seed := int64(0); seed < 5; seed++ {
		if got := s.Sample([]float32{5, 1}, nil, rand.New(rand.NewSource(seed))); got != 0 {
			t.Fatalf("seed=%d: got %d, want argmax 0", seed, got)
		}
	}

	// both logits overflow and split the mass
	_, prob = s.candidates([]float32{5, 4}, nil)
	if prob[0] != 0.5 || prob[1] != 0.5 {
		t.Fatalf("prob = %v, want [0.5 0.5]", prob)
	}
}

func TestTopKTiesPreferLowerID(t *testing.T) {
	t.Parallel()
	cfg := defaultConfig()
	cfg.TopK, cfg.TopP, cfg.RepeatPenalty = 2, 1, 1
	idx, _ := mustSampler(t, cfg).candidates([]float32{1, 3, 2, 3, 3}, nil)
	if len(idx) != 2 || idx[0] != 1 || idx[1] != 3 {
		t.Fatalf("tie order = %v, want [1 3]", idx)
	}
}

func TestSampleDeterministicForSeed(t *testing.T) {
	t.Parallel()
	v := []float32{0, 1, 2, 3, 4, 5, 2.5, 1.5}
	history := []int{5, 5, 4, -1}
	run := func() []int {
		s := mustSampler(t, defaultConfig())
		rng := rand.New(rand.NewSource(42))
		out := make([]int, 64)
		for i := range out {
			out[i] = s.Sample(v, history, rng)
		}
		return out
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("draw %d differs: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestRepetitionPenalty(t *testing.T) {
	t.Parallel()
	cfg := defaultConfig()
	cfg.RepeatPenalty = 1.5
	s := mustSampler(t, cfg)

	in := []float32{2, 2, -2, -2, 0}
	out := s.penalize(in, []int{0, 2, 0, 0, 99, -1})
	if !(out[0] < out[1]) {
		t.Fatalf("positive repeated logit %v not below %v", out[0], out[1])
	}
	if out[0] != 2/1.5 {
		t.Fatalf("repeated id penalised more than once: %v", out[0])
	}
	if !(out[2] < out[3]) || out[2] != -3 {
		t.Fatalf("negative repeated logit = %v", out[2])
	}
	if in[0] != 2 {
		t.Fatal("caller logits were modified")
	}

	// the next call starts from a clean slate
	out = s.penalize(in, []int{1})
	if out[0] != 2 || out[1] != 2/1.5 {
		t.Fatalf("penalty leaked across calls: %v", out)
	}
}

func TestIgnoreEOS(t *testing.T) {
	t.Parallel()
	cfg := defaultConfig()
	cfg.TopK, cfg.IgnoreEOS, cfg.EOS = 1, true, 3
	s := mustSampler(t, cfg)
	rng := rand.New(rand.NewSource(1))
	if got := s.Sample([]float32{0, 1, 0, 50}, nil, rng); got != 1 {
		t.Fatalf("EOS should be masked, got %d", got)
	}
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"zero temperature", func(c *Config) { c.Temperature = 0 }},
		{"negative temperature", func(c *Config) { c.Temperature = -1 }},
		{"zero top_k", func(c *Config) { c.TopK = 0 }},
		{"zero top_p", func(c *Config) { c.TopP = 0 }},
		{"top_p above one", func(c *Config) { c.TopP = 1.01 }},
		{"penalty below one", func(c *Config) { c.RepeatPenalty = 0.9 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := defaultConfig()
			tc.mut(&cfg)
			if _, err := NewSampler(cfg); !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}
}

func TestArgmax(t *testing.T) {
	t.Parallel()
	if got := Argmax([]float32{1, 4, 4, 2}); got != 1 {
		t.Fatalf("Argmax = %d, want 1", got)
	}
}
