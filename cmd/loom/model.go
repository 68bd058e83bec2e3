package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/samcharles93/loom/internal/logger"
	"github.com/samcharles93/loom/internal/tokenizer"
	"github.com/samcharles93/loom/internal/toy"
	"github.com/samcharles93/loom/internal/vocab"
)

// assets is what every command that tokenizes or generates needs.
type assets struct {
	vocab *vocab.Vocabulary
	tok   *tokenizer.Greedy
	model *toy.Model
}

func loadAssets(ctx context.Context, m modelOptions, withModel bool) (*assets, error) {
	log := logger.FromContext(ctx)

	path, err := resolveVocabPath(m.vocabPath)
	if err != nil {
		return nil, err
	}
	v, err := vocab.LoadJSON(path)
	if err != nil {
		return nil, err
	}
	log.Info("vocabulary loaded",
		"path", path,
		"size", humanize.Comma(int64(v.Size())),
		"eos", v.EOS(),
		"bos", v.BOS(),
	)

	a := &assets{vocab: v, tok: tokenizer.NewGreedy(v, log)}
	if !withModel {
		return a, nil
	}
	if m.hidden < 1 {
		return nil, fmt.Errorf("--hidden must be >= 1, got %d", m.hidden)
	}
	a.model, err = toy.New(v.Size(), int(m.hidden), m.weightSeed)
	if err != nil {
		return nil, err
	}
	log.Debug("toy evaluator ready", "hidden", m.hidden, "weight_seed", m.weightSeed)
	return a, nil
}
