package tokenizer

import (
	"sort"
	"strings"

	"github.com/samcharles93/loom/internal/vocab"
)

type textPart struct {
	text      string
	isSpecial bool
}

// collectSpecials returns the control tokens of v (<s>, </s>, <|endoftext|>, ...),
// longest first so that matching is greedy.
func collectSpecials(v *vocab.Vocabulary) []string {
	if v == nil {
		return nil
	}
	var out []string
	for id := 0; id < v.Size(); id++ {
		if t := v.Token(id); isSpecialToken(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

func isSpecialToken(s string) bool {
	if len(s) < 3 {
		return false
	}
	return strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") && !strings.ContainsAny(s, " \t\n")
}

func splitSpecials(text string, specials []string) []textPart {
	if len(specials) == 0 || !strings.Contains(text, "<") {
		return []textPart{{text: text}}
	}
	var parts []textPart
	var buf strings.Builder
	for i := 0; i < len(text); {
		match := ""
		if text[i] == '<' {
			for _, sp := range specials {
				if strings.HasPrefix(text[i:], sp) {
					match = sp
					break
				}
			}
		}
		if match != "" {
			if buf.Len() > 0 {
				parts = append(parts, textPart{text: buf.String()})
				buf.Reset()
			}
			parts = append(parts, textPart{text: match, isSpecial: true})
			i += len(match)
			continue
		}
		buf.WriteByte(text[i])
		i++
	}
	if buf.Len() > 0 {
		parts = append(parts, textPart{text: buf.String()})
	}
	return parts
}
