package cleanup

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Hesitations are stripped by every profile.
var hesitations = [][]string{
	{"euh"}, {"heu"}, {"hum"}, {"hmm"}, {"mmm"}, {"um"}, {"uh"}, {"er"}, {"erm"},
}

// Discourse markers are stripped by the default profile only, and only where
// they open a clause. Longest phrases first so "bon ben" wins over a shorter
// match.
var discourseMarkers = [][]string{
	{"vous", "savez"}, {"tu", "sais"}, {"bon", "ben"},
	{"you", "know"}, {"i", "mean"},
	{"tsé"}, {"bah"}, {"ben"}, {"basically"},
}

// Units that mark a dosage; together with digits they are never removed.
var protectedUnits = map[string]bool{
	"mg": true, "ml": true, "mcg": true, "µg": true, "g": true, "kg": true,
	"ui": true, "iu": true, "cc": true, "mmhg": true, "bpm": true,
	"milligrammes": true, "milligrams": true, "comprimés": true, "tablets": true,
}

// normalize lowercases, NFC-folds and strips surrounding punctuation.
func normalize(word string) string {
	w := norm.NFC.String(strings.ToLower(word))
	w = strings.NewReplacer("’", "'", "‘", "'").Replace(w)
	return strings.TrimFunc(w, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
}

func isProtected(n string) bool {
	if protectedUnits[n] {
		return true
	}
	return strings.ContainsFunc(n, unicode.IsDigit)
}
