package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/loom/internal/inference"
	"github.com/samcharles93/loom/internal/logger"
)

var (
	logLevel  string
	logFormat string
	debug     bool
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// setupLogging builds the process logger from flags and the config file and
// stores it in the context handed to subcommands.
func setupLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	cfg.applyLogging(cmd)

	level := logger.ParseLevel(logLevel)
	if debug {
		level = slog.LevelDebug
	}
	log := logger.ForFormat(logFormat, os.Stderr, level)
	return logger.WithContext(ctx, log), nil
}

// modelOptions select the vocabulary and the toy evaluator weights.
type modelOptions struct {
	vocabPath  string
	hidden     int64
	weightSeed int64
}

func (m *modelOptions) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "vocab",
			Aliases:     []string{"v"},
			Usage:       "path to a {\"token\": id} vocabulary JSON file (or set " + envVocab + ")",
			Destination: &m.vocabPath,
		},
		&cli.Int64Flag{
			Name:        "hidden",
			Usage:       "hidden size of the toy evaluator",
			Value:       64,
			Destination: &m.hidden,
		},
		&cli.Int64Flag{
			Name:        "weight-seed",
			Usage:       "seed for the toy evaluator weights",
			Value:       1,
			Destination: &m.weightSeed,
		},
	}
}

// genOptions mirror inference.Params as flag destinations.
type genOptions struct {
	seed          int64
	threads       int64
	nPredict      int64
	nCtx          int64
	nBatch        int64
	nKeep         int64
	topK          int64
	topP          float64
	temp          float64
	repeatPenalty float64
	repeatLastN   int64

	interactive      bool
	interactiveStart bool
	instruct         bool
	antiprompts      []string
	inputPrefix      string
	ignoreEOS        bool
	echoPrompt       bool
}

// samplingFlags covers everything a server request may also override.
func (g *genOptions) samplingFlags() []cli.Flag {
	d := inference.DefaultParams()
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "seed",
			Aliases:     []string{"s"},
			Usage:       "sampling RNG seed (-1 = random)",
			Value:       d.Seed,
			Destination: &g.seed,
		},
		&cli.Int64Flag{
			Name:        "threads",
			Aliases:     []string{"t"},
			Usage:       "evaluator threads",
			Value:       int64(d.Threads),
			Destination: &g.threads,
		},
		&cli.Int64Flag{
			Name:        "n-predict",
			Aliases:     []string{"n", "n_predict"},
			Usage:       "number of tokens to predict (-1 = unbounded)",
			Value:       int64(d.NPredict),
			Destination: &g.nPredict,
		},
		&cli.Int64Flag{
			Name:        "ctx-size",
			Aliases:     []string{"c", "n_ctx"},
			Usage:       "context window size in tokens",
			Value:       int64(d.NCtx),
			Destination: &g.nCtx,
		},
		&cli.Int64Flag{
			Name:        "batch-size",
			Aliases:     []string{"b", "n_batch"},
			Usage:       "tokens per evaluator call while ingesting input",
			Value:       int64(d.NBatch),
			Destination: &g.nBatch,
		},
		&cli.Int64Flag{
			Name:        "keep",
			Aliases:     []string{"n_keep"},
			Usage:       "prompt tokens kept on context eviction (-1 = whole prompt)",
			Value:       int64(d.NKeep),
			Destination: &g.nKeep,
		},
		&cli.Int64Flag{
			Name:        "top-k",
			Aliases:     []string{"top_k"},
			Usage:       "top-k sampling",
			Value:       int64(d.TopK),
			Destination: &g.topK,
		},
		&cli.Float64Flag{
			Name:        "top-p",
			Aliases:     []string{"top_p"},
			Usage:       "top-p sampling",
			Value:       float64(d.TopP),
			Destination: &g.topP,
		},
		&cli.Float64Flag{
			Name:        "temp",
			Aliases:     []string{"temperature"},
			Usage:       "sampling temperature",
			Value:       float64(d.Temperature),
			Destination: &g.temp,
		},
		&cli.Float64Flag{
			Name:        "repeat-penalty",
			Aliases:     []string{"repeat_penalty"},
			Usage:       "repetition penalty (1.0 = disabled)",
			Value:       float64(d.RepeatPenalty),
			Destination: &g.repeatPenalty,
		},
		&cli.Int64Flag{
			Name:        "repeat-last-n",
			Aliases:     []string{"repeat_last_n"},
			Usage:       "last n tokens to penalize",
			Value:       int64(d.RepeatLastN),
			Destination: &g.repeatLastN,
		},
		&cli.BoolFlag{
			Name:        "ignore-eos",
			Usage:       "never sample the end-of-text token",
			Destination: &g.ignoreEOS,
		},
	}
}

func (g *genOptions) interactiveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:        "interactive",
			Aliases:     []string{"i"},
			Usage:       "hand control back to the user on antiprompts and budget exhaustion",
			Destination: &g.interactive,
		},
		&cli.BoolFlag{
			Name:        "interactive-first",
			Usage:       "wait for user input right after the prompt",
			Destination: &g.interactiveStart,
		},
		&cli.BoolFlag{
			Name:        "instruct",
			Aliases:     []string{"ins"},
			Usage:       "instruction mode (implies --interactive-first)",
			Destination: &g.instruct,
		},
		&cli.StringSliceFlag{
			Name:        "reverse-prompt",
			Aliases:     []string{"r"},
			Usage:       "antiprompt that returns control to the user (repeatable)",
			Destination: &g.antiprompts,
		},
		&cli.StringFlag{
			Name:        "in-prefix",
			Usage:       "text prepended to every user input",
			Destination: &g.inputPrefix,
		},
		&cli.BoolFlag{
			Name:        "echo-prompt",
			Usage:       "print the prompt before the generated text",
			Destination: &g.echoPrompt,
		},
	}
}

func (g *genOptions) params() inference.Params {
	return inference.Params{
		Seed:             g.seed,
		Threads:          int(g.threads),
		NPredict:         int(g.nPredict),
		NCtx:             int(g.nCtx),
		NBatch:           int(g.nBatch),
		NKeep:            int(g.nKeep),
		TopK:             int(g.topK),
		TopP:             float32(g.topP),
		Temperature:      float32(g.temp),
		RepeatPenalty:    float32(g.repeatPenalty),
		RepeatLastN:      int(g.repeatLastN),
		Interactive:      g.interactive,
		InteractiveStart: g.interactiveStart,
		Instruct:         g.instruct,
		Antiprompts:      g.antiprompts,
		InputPrefix:      g.inputPrefix,
		IgnoreEOS:        g.ignoreEOS,
		EchoPrompt:       g.echoPrompt,
	}
}
