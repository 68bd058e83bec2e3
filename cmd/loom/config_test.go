package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if cfg.TopK != nil || cfg.Vocab != nil {
		t.Fatalf("expected zero config, got %+v", cfg)
	}

	path := writeConfig(t, "vocab: /tmp/v.json\ntop_k: 5\ntemperature: 0.5\nreverse_prompts: [\"User:\"]\nignore_eos: false\n")
	cfg, err = loadConfigFile(path)
	if err != nil {
		t.Fatalf("loadConfigFile: %v", err)
	}
	if cfg.Vocab == nil || *cfg.Vocab != "/tmp/v.json" {
		t.Fatalf("vocab = %v", cfg.Vocab)
	}
	if cfg.TopK == nil || *cfg.TopK != 5 || cfg.Temperature == nil || *cfg.Temperature != 0.5 {
		t.Fatalf("sampling fields not parsed: %+v", cfg)
	}
	if cfg.IgnoreEOS == nil || *cfg.IgnoreEOS {
		t.Fatal("explicit false should be kept as a set pointer")
	}
	if len(cfg.Antiprompts) != 1 || cfg.Antiprompts[0] != "User:" {
		t.Fatalf("antiprompts = %q", cfg.Antiprompts)
	}

	if _, err := loadConfigFile(writeConfig(t, "top_k: [oops")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv(envConfig, writeConfig(t, "n_ctx: 2048\n"))
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.NCtx == nil || *cfg.NCtx != 2048 {
		t.Fatalf("n_ctx = %v", cfg.NCtx)
	}
}

func TestApplyGenRespectsFlags(t *testing.T) {
	t.Parallel()

	topK, temp, nCtx := int64(5), 0.25, int64(1024)
	cfg := Config{TopK: &topK, Temperature: &temp, NCtx: &nCtx, Antiprompts: []string{"Q:"}}

	var gen genOptions
	cmd := &cli.Command{
		Name:  "test",
		Flags: append(gen.samplingFlags(), gen.interactiveFlags()...),
		Action: func(_ context.Context, c *cli.Command) error {
			cfg.applyGen(c, &gen)
			return nil
		},
	}
	if err := cmd.Run(context.Background(), []string{"test", "--top-k", "9"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	p := gen.params()
	if p.TopK != 9 {
		t.Fatalf("flag should win over config: top_k = %d", p.TopK)
	}
	if p.Temperature != 0.25 || p.NCtx != 1024 {
		t.Fatalf("config not applied: temp=%v n_ctx=%d", p.Temperature, p.NCtx)
	}
	if len(p.Antiprompts) != 1 || p.Antiprompts[0] != "Q:" {
		t.Fatalf("antiprompts = %q", p.Antiprompts)
	}
	if p.TopP != 0.95 || p.RepeatLastN != 64 {
		t.Fatalf("defaults lost: %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("params invalid: %v", err)
	}
}
