package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/loom/internal/api"
	"github.com/samcharles93/loom/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		model         modelOptions
		gen           genOptions
		addr          string
		readTimeout   time.Duration
		maxConcurrent int64
		retain        int64
	)

	flags := append(model.flags(), gen.samplingFlags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       "127.0.0.1:8080",
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "read header timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
		&cli.Int64Flag{
			Name:        "max-concurrent",
			Usage:       "generations evaluated at once; others wait",
			Value:       4,
			Destination: &maxConcurrent,
		},
		&cli.Int64Flag{
			Name:        "retain",
			Usage:       "finished generations kept for lookup",
			Value:       api.DefaultRetain,
			Destination: &retain,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the generation REST API",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			log := logger.FromContext(ctx)

			cfg, err := LoadConfig()
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			cfg.applyModel(c, &model)
			cfg.applyGen(c, &gen)
			if cfg.ServerAddress != nil && !c.IsSet("addr") {
				addr = *cfg.ServerAddress
			}
			if cfg.MaxConcurrent != nil && !c.IsSet("max-concurrent") {
				maxConcurrent = *cfg.MaxConcurrent
			}

			a, err := loadAssets(ctx, model, true)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			service, err := api.NewService(api.ServiceConfig{
				Vocab:         a.vocab,
				Tokenizer:     a.tok,
				Evaluator:     a.model,
				Defaults:      gen.params(),
				MaxConcurrent: int(maxConcurrent),
				Retain:        int(retain),
				Logger:        log,
			})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			api.NewServer(service).Register(e)

			log.Info("starting server", "address", addr, "max_concurrent", maxConcurrent)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
