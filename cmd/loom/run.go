package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/loom/internal/inference"
	"github.com/samcharles93/loom/internal/logger"
)

func runCmd() *cli.Command {
	var (
		model      modelOptions
		gen        genOptions
		prompt     string
		promptFile string
		streamMode string
		rawOutput  bool
		showStats  bool
	)

	flags := append(model.flags(), gen.samplingFlags()...)
	flags = append(flags, gen.interactiveFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "prompt",
			Aliases:     []string{"p"},
			Usage:       "prompt text",
			Destination: &prompt,
		},
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "read the prompt from a file",
			Destination: &promptFile,
		},
		&cli.StringFlag{
			Name:        "stream-mode",
			Usage:       "output mode (instant, quiet)",
			Value:       string(StreamInstant),
			Destination: &streamMode,
		},
		&cli.BoolFlag{
			Name:        "raw",
			Usage:       "escape control characters in the output",
			Destination: &rawOutput,
		},
		&cli.BoolFlag{
			Name:        "stats",
			Usage:       "print generation stats to stderr",
			Value:       true,
			Destination: &showStats,
		},
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Generate text, optionally chatting interactively",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := LoadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			cfg.applyModel(c, &model)
			cfg.applyGen(c, &gen)
			if cfg.StreamMode != nil && !c.IsSet("stream-mode") {
				streamMode = *cfg.StreamMode
			}
			mode, err := parseStreamMode(streamMode)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			params := gen.params()
			interactive := params.Interactive || params.InteractiveStart || params.Instruct || len(params.Antiprompts) > 0
			text, err := resolvePrompt(prompt, promptFile, interactive, os.Stdin)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			a, err := loadAssets(ctx, model, true)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
			defer stop()

			out := NewStreamWriter(mode, rawOutput, os.Stdout)
			sess, err := inference.NewSession(ctx, inference.Options{
				Params:    params,
				Prompt:    text,
				Vocab:     a.vocab,
				Tokenizer: a.tok,
				Evaluator: a.model,
				Stream:    out.Write,
				Logger:    logger.FromContext(ctx),
			})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			linePrompt := ""
			if params.Instruct {
				linePrompt = "> "
			}
			if interactive {
				_, _ = fmt.Fprintln(os.Stderr, "Interactive mode. Press Ctrl+D to finish, end a line with \\ to continue it.")
			}
			res, runErr := sess.Run(ctx, newTerminalLines(linePrompt, os.Stdin, os.Stdout))
			out.Flush()
			_, _ = fmt.Fprintln(os.Stdout)

			if showStats && res != nil {
				printStats(os.Stderr, res)
			}
			if runErr != nil {
				return cli.Exit(fmt.Sprintf("error: generation: %v", runErr), 1)
			}
			return nil
		},
	}
}

func printStats(w io.Writer, res *inference.Result) {
	st := res.Stats
	_, _ = fmt.Fprintf(w, "Stats: %s prompt tokens, %s generated in %s (%.2f TPS), %s evaluator calls, %s evictions, stop=%s, seed=%d\n",
		humanize.Comma(int64(st.PromptTokens)),
		humanize.Comma(int64(st.TokensGenerated)),
		st.Duration.Round(time.Millisecond),
		st.TPS,
		humanize.Comma(int64(st.EvalCalls)),
		humanize.Comma(int64(st.Evictions)),
		stopLabel(res.Reason),
		res.Seed,
	)
}

func stopLabel(r inference.StopReason) string {
	if r == inference.StopNone {
		return "none"
	}
	return string(r)
}
