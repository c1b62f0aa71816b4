package rolemap

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Bilingual lexicons. Matching is on whole tokens after normalisation.
var (
	whWords = setOf(
		// fr
		"qui", "quoi", "quand", "où", "pourquoi", "comment", "lequel", "laquelle",
		"lesquels", "lesquelles", "combien", "quel", "quelle", "quels", "quelles",
		"est-ce", "qu'est-ce",
		// en
		"who", "what", "when", "where", "why", "how", "which", "whom", "whose",
	)

	selfWords = setOf(
		// fr
		"je", "moi", "mon", "ma", "mes", "me", "douleur", "mal",
		// en
		"i", "i'm", "i've", "i'd", "i'll", "my", "me", "mine", "myself",
		"pain", "ache", "hurts",
	)

	// French elided pronouns (j'ai, m'a …) count as self-reference.
	selfPrefixes = []string{"j'", "m'"}
)

func setOf(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// tokens lowercases and NFC-normalises text and strips punctuation around each
// whitespace-delimited token. Inner apostrophes and hyphens are kept.
func tokens(text string) []string {
	text = norm.NFC.String(strings.ToLower(text))
	text = strings.NewReplacer("’", "'", "‘", "'").Replace(text)
	fields := strings.Fields(text)
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func isQuestion(text string) bool {
	trimmed := strings.TrimSpace(text)
	if strings.HasSuffix(trimmed, "?") {
		return true
	}
	toks := tokens(trimmed)
	return len(toks) > 0 && whWords[toks[0]]
}

func countSelfReports(toks []string) int {
	n := 0
	for _, t := range toks {
		if selfWords[t] {
			n++
			continue
		}
		for _, p := range selfPrefixes {
			if strings.HasPrefix(t, p) {
				n++
				break
			}
		}
	}
	return n
}
