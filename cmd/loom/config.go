package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the loom configuration file (~/.config/loom/config.yaml).
// All fields are pointers so we can distinguish "not set" from zero values.
type Config struct {
	Vocab      *string `yaml:"vocab"`
	Hidden     *int64  `yaml:"hidden"`
	WeightSeed *int64  `yaml:"weight_seed"`

	// Generation defaults
	Seed          *int64   `yaml:"seed"`
	Threads       *int64   `yaml:"threads"`
	NPredict      *int64   `yaml:"n_predict"`
	NCtx          *int64   `yaml:"n_ctx"`
	NBatch        *int64   `yaml:"n_batch"`
	NKeep         *int64   `yaml:"n_keep"`
	TopK          *int64   `yaml:"top_k"`
	TopP          *float64 `yaml:"top_p"`
	Temperature   *float64 `yaml:"temperature"`
	RepeatPenalty *float64 `yaml:"repeat_penalty"`
	RepeatLastN   *int64   `yaml:"repeat_last_n"`
	IgnoreEOS     *bool    `yaml:"ignore_eos"`
	Antiprompts   []string `yaml:"reverse_prompts"`
	InputPrefix   *string  `yaml:"in_prefix"`

	// Output
	StreamMode *string `yaml:"stream_mode"`
	LogLevel   *string `yaml:"log_level"`
	LogFormat  *string `yaml:"log_format"`

	// Server
	ServerAddress *string `yaml:"server_address"`
	MaxConcurrent *int64  `yaml:"max_concurrent"`
}

func configPath() string {
	if p := strings.TrimSpace(os.Getenv(envConfig)); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "loom", "config.yaml")
}

// LoadConfig reads the config file. A missing file yields a zero Config; a
// malformed one is an error.
func LoadConfig() (Config, error) {
	path := configPath()
	if path == "" {
		return Config{}, nil
	}
	return loadConfigFile(path)
}

func loadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (cfg Config) applyLogging(c *cli.Command) {
	setString(c, "log-level", cfg.LogLevel, &logLevel)
	setString(c, "log-format", cfg.LogFormat, &logFormat)
}

func (cfg Config) applyModel(c *cli.Command, m *modelOptions) {
	setString(c, "vocab", cfg.Vocab, &m.vocabPath)
	setInt(c, "hidden", cfg.Hidden, &m.hidden)
	setInt(c, "weight-seed", cfg.WeightSeed, &m.weightSeed)
}

// applyGen applies config file defaults to generation options when the
// corresponding flag was not explicitly set.
func (cfg Config) applyGen(c *cli.Command, g *genOptions) {
	setInt(c, "seed", cfg.Seed, &g.seed)
	setInt(c, "threads", cfg.Threads, &g.threads)
	setInt(c, "n-predict", cfg.NPredict, &g.nPredict)
	setInt(c, "ctx-size", cfg.NCtx, &g.nCtx)
	setInt(c, "batch-size", cfg.NBatch, &g.nBatch)
	setInt(c, "keep", cfg.NKeep, &g.nKeep)
	setInt(c, "top-k", cfg.TopK, &g.topK)
	setFloat(c, "top-p", cfg.TopP, &g.topP)
	setFloat(c, "temp", cfg.Temperature, &g.temp)
	setFloat(c, "repeat-penalty", cfg.RepeatPenalty, &g.repeatPenalty)
	setInt(c, "repeat-last-n", cfg.RepeatLastN, &g.repeatLastN)
	if cfg.IgnoreEOS != nil && !c.IsSet("ignore-eos") {
		g.ignoreEOS = *cfg.IgnoreEOS
	}
	if len(cfg.Antiprompts) > 0 && !c.IsSet("reverse-prompt") {
		g.antiprompts = cfg.Antiprompts
	}
	setString(c, "in-prefix", cfg.InputPrefix, &g.inputPrefix)
}

func setString(c *cli.Command, flag string, v *string, dst *string) {
	if v != nil && !c.IsSet(flag) {
		*dst = *v
	}
}

func setInt(c *cli.Command, flag string, v *int64, dst *int64) {
	if v != nil && !c.IsSet(flag) {
		*dst = *v
	}
}

func setFloat(c *cli.Command, flag string, v *float64, dst *float64) {
	if v != nil && !c.IsSet(flag) {
		*dst = *v
	}
}
