// Package vocab holds the immutable token string <-> id table shared by the
// tokenizer, the sampler and the generation loop.
package vocab

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
)

// Vocabulary maps token strings to dense, 0-based ids and back.
// It is never mutated after construction and is safe for concurrent reads.
type Vocabulary struct {
	toID    map[string]int
	tokens  []string
	maxLen  int
	eos     int
	bos     int
	newline int
}

var (
	eosNames = []string{"</s>", "<eos>", "<|endoftext|>", "<|end_of_text|>"}
	bosNames = []string{"<s>", "<bos>", "<|startoftext|>", "<|begin_of_text|>"}
)

// New builds a vocabulary where tokens[i] has id i.
func New(tokens []string) (*Vocabulary, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty token list")
	}
	v := &Vocabulary{
		toID:   make(map[string]int, len(tokens)),
		tokens: append([]string(nil), tokens...),
	}
	for i, t := range v.tokens {
		if prev, ok := v.toID[t]; ok {
			return nil, fmt.Errorf("duplicate token %q at ids %d and %d", t, prev, i)
		}
		v.toID[t] = i
		v.maxLen = max(v.maxLen, len(t))
	}
	v.eos = v.firstOf(eosNames)
	v.bos = v.firstOf(bosNames)
	if v.bos == v.eos {
		v.bos = -1
	}
	v.newline = v.lookup("\n")
	return v, nil
}

// FromMap builds a vocabulary from a token -> id mapping. Ids must cover
// [0, len(m)) exactly once.
func FromMap(m map[string]int) (*Vocabulary, error) {
	if len(m) == 0 {
		return nil, fmt.Errorf("empty vocabulary")
	}
	tokens := make([]string, len(m))
	seen := make([]bool, len(m))
	for tok, id := range m {
		if id < 0 || id >= len(m) {
			return nil, fmt.Errorf("token %q: id %d out of range [0,%d)", tok, id, len(m))
		}
		if seen[id] {
			return nil, fmt.Errorf("token %q: id %d assigned twice", tok, id)
		}
		seen[id] = true
		tokens[id] = tok
	}
	return New(tokens)
}

// ParseJSON reads a {"token": id, ...} object. GPT-2 byte-level markers for
// space and newline are decoded into plain text.
func ParseJSON(data []byte) (*Vocabulary, error) {
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse vocabulary json: %w", err)
	}
	decoded := make(map[string]int, len(raw))
	for tok, id := range raw {
		key := decodeByteMarkers(tok)
		if other, ok := decoded[key]; ok {
			return nil, fmt.Errorf("token %q decodes to the same text as id %d", tok, other)
		}
		decoded[key] = id
	}
	return FromMap(decoded)
}

// LoadJSON reads and parses a vocabulary file.
func LoadJSON(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	return ParseJSON(data)
}

var byteMarkers = strings.NewReplacer("Ġ", " ", "Ċ", "\n")

func decodeByteMarkers(tok string) string {
	return byteMarkers.Replace(tok)
}

func (v *Vocabulary) firstOf(names []string) int {
	for _, n := range names {
		if id := v.lookup(n); id >= 0 {
			return id
		}
	}
	return -1
}

func (v *Vocabulary) lookup(tok string) int {
	if id, ok := v.toID[tok]; ok {
		return id
	}
	return -1
}

// ID returns the id of tok.
func (v *Vocabulary) ID(tok string) (int, bool) {
	id, ok := v.toID[tok]
	return id, ok
}

// Token returns the text of id, or "" when id is out of range.
func (v *Vocabulary) Token(id int) string {
	if id < 0 || id >= len(v.tokens) {
		return ""
	}
	return v.tokens[id]
}

// Size is the number of entries.
func (v *Vocabulary) Size() int { return len(v.tokens) }

// MaxTokenLen is the byte length of the longest token.
func (v *Vocabulary) MaxTokenLen() int { return v.maxLen }

// EOS is the end-of-sequence id, or -1.
func (v *Vocabulary) EOS() int { return v.eos }

// BOS is the beginning-of-sequence id, or -1.
func (v *Vocabulary) BOS() int { return v.bos }

// Newline is the id of "\n", or -1.
func (v *Vocabulary) Newline() int { return v.newline }

// Decode concatenates the text of ids.
func (v *Vocabulary) Decode(ids []int) string {
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(v.Token(id))
	}
	return b.String()
}
