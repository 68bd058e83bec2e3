package tokenizer

import (
	"fmt"
	"regexp"
	"unicode"
	"unicode/utf8"

	"github.com/samcharles93/loom/internal/logger"
	"github.com/samcharles93/loom/internal/vocab"
)

// Tokenizer defines the minimal interface used by the generation loop.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
}

// Go regexp does not support lookahead, so the trailing whitespace branch
// (\s+(?!\S)) is collapsed into \s+ and the last whitespace rune is handed
// back to the following word in split.
var wordPattern = regexp.MustCompile(`'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`)

// Greedy segments text into vocabulary ids by longest match inside each
// pre-tokenized word.
type Greedy struct {
	vocab   *vocab.Vocabulary
	log     logger.Logger
	special []string
}

// NewGreedy returns a tokenizer over v. A nil log discards diagnostics.
func NewGreedy(v *vocab.Vocabulary, log logger.Logger) *Greedy {
	if log == nil {
		log = logger.Discard()
	}
	return &Greedy{
		vocab:   v,
		log:     log,
		special: collectSpecials(v),
	}
}

// Encode never fails on unknown input: characters with no matching token are
// dropped and reported through the logger.
func (g *Greedy) Encode(text string) ([]int, error) {
	if g == nil || g.vocab == nil {
		return nil, fmt.Errorf("tokenizer has no vocabulary")
	}
	var ids []int
	for _, part := range splitSpecials(text, g.special) {
		if part.isSpecial {
			id, _ := g.vocab.ID(part.text)
			ids = append(ids, id)
			continue
		}
		for _, word := range split(part.text) {
			ids = g.appendWord(ids, word)
		}
	}
	return ids, nil
}

// Decode concatenates token text. Out-of-range ids decode to "".
func (g *Greedy) Decode(ids []int) (string, error) {
	if g == nil || g.vocab == nil {
		return "", fmt.Errorf("tokenizer has no vocabulary")
	}
	return g.vocab.Decode(ids), nil
}

// Count returns the number of tokens text encodes to.
func (g *Greedy) Count(text string) int {
	ids, err := g.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}

func (g *Greedy) appendWord(ids []int, word string) []int {
	maxLen := g.vocab.MaxTokenLen()
	for i := 0; i < len(word); {
		j := min(len(word), i+maxLen)
		for ; j > i; j-- {
			if id, ok := g.vocab.ID(word[i:j]); ok {
				ids = append(ids, id)
				break
			}
		}
		if j > i {
			i = j
			continue
		}
		_, size := utf8.DecodeRuneInString(word[i:])
		g.log.Warn("unknown token", "fragment", word[i:i+size])
		i += size
	}
	return ids
}

// split breaks text into pre-tokenizer words. Concatenating the result always
// reproduces text.
func split(text string) []string {
	var words []string
	for pos := 0; pos < len(text); {
		loc := wordPattern.FindStringIndex(text[pos:])
		if loc == nil || loc[1] == 0 {
			words = append(words, text[pos:])
			break
		}
		if loc[0] > 0 {
			words = append(words, text[pos:pos+loc[0]])
		}
		start, end := pos+loc[0], pos+loc[1]
		word := text[start:end]
		if end < len(text) && isSpaceRun(word) {
			if _, size := utf8.DecodeLastRuneInString(word); size < len(word) {
				end -= size
				word = word[:len(word)-size]
			}
		}
		words = append(words, word)
		pos = end
	}
	return words
}

func isSpaceRun(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return s != ""
}
