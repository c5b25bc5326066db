// Package search holds the text matching and ordering rules used by the
// search service. Candidate rows come from the search store; everything that
// decides whether a row matches and where it ranks lives here so the result
// is identical on every database driver.
package search

import (
	"math"
	"strings"
	"unicode"
)

// Tokenize lowercases the query and splits it on whitespace. Duplicate tokens
// are dropped so repeating a word in the query does not inflate relevance.
func Tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

const partialWeight = 0.5

// Relevance scores text against tokens. A token contributes 1+ln(tf), where
// tf counts its occurrences anywhere in the text; the contribution is halved
// when the token never appears as a whole word. The sum is normalised by the
// text length so short exact posts beat long ones mentioning the term once.
// Zero means no token matched.
func Relevance(text string, tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	words := words(lower)

	var score float64
	for _, tok := range tokens {
		tf := strings.Count(lower, tok)
		if tf == 0 {
			continue
		}
		w := 1 + math.Log(float64(tf))
		if !containsWord(words, tok) {
			w *= partialWeight
		}
		score += w
	}
	if score == 0 {
		return 0
	}
	return score / (1 + math.Log(1+float64(len(words))))
}

// Matches reports whether any token occurs in text.
func Matches(text string, tokens []string) bool {
	lower := strings.ToLower(text)
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

func words(lower string) []string {
	fields := strings.Fields(lower)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, isEdgePunct)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func isEdgePunct(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '#' && r != '@' && r != '_'
}

// containsWord treats "#go" and "@go" as whole-word hits for "go".
func containsWord(words []string, tok string) bool {
	for _, w := range words {
		if w == tok || strings.TrimLeft(w, "#@") == tok {
			return true
		}
	}
	return false
}
