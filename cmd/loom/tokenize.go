package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
)

func tokenizeCmd() *cli.Command {
	var (
		model   modelOptions
		idsOnly bool
	)
	return &cli.Command{
		Name:      "tokenize",
		Usage:     "Print the token ids of text (arguments or stdin)",
		ArgsUsage: "[text...]",
		Flags: append(model.flags(),
			&cli.BoolFlag{
				Name:        "ids-only",
				Usage:       "print only the ids, one line",
				Destination: &idsOnly,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, err := LoadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			cfg.applyModel(c, &model)

			text := strings.Join(c.Args().Slice(), " ")
			if text == "" {
				b, err := io.ReadAll(os.Stdin)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: read stdin: %v", err), 1)
				}
				text = string(b)
			}

			a, err := loadAssets(ctx, model, false)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			ids, err := a.tok.Encode(text)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: encode: %v", err), 1)
			}
			if idsOnly {
				fmt.Println(joinInts(ids))
				return nil
			}
			for _, id := range ids {
				fmt.Printf("%6d  %q\n", id, a.vocab.Token(id))
			}
			fmt.Printf("%d tokens\n", len(ids))
			return nil
		},
	}
}

func joinInts(ids []int) string {
	if len(ids) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(fmt.Sprintf("%d", id))
	}
	b.WriteByte(']')
	return b.String()
}
