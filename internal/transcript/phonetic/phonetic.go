// Package phonetic resolves misheard spoken tokens against a small known
// vocabulary (email providers, suburbs, month names) using Double Metaphone
// codes to find candidates and Jaro-Winkler similarity to rank them.
//
// A vocabulary entry is accepted when it shares a phonetic code with the
// input and scores at least the phonetic threshold (default 0.70), or, with
// no shared code, scores at least the fuzzy threshold (default 0.85).
// Comparisons are case-insensitive and ignore spaces, so "hot male" can
// resolve to "hotmail".
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for a candidate
// that shares a phonetic code with the input.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a candidate with
// no phonetic overlap.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// Matcher is read-only after construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Matcher with the default thresholds unless overridden.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the vocabulary entry closest to input. When nothing is close
// enough, it returns input unchanged, confidence 0 and matched false.
func (m *Matcher) Match(input string, vocabulary []string) (entry string, confidence float64, matched bool) {
	in := squash(input)
	if in == "" || len(vocabulary) == 0 {
		return input, 0, false
	}
	inCodes := codes(strings.Fields(strings.ToLower(input)), in)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, v := range vocabulary {
		cand := squash(v)
		if cand == "" {
			continue
		}
		if cand == in {
			return v, 1, true
		}
		score := matchr.JaroWinkler(in, cand, false)
		phon := overlap(inCodes, codes(strings.Fields(strings.ToLower(v)), cand))
		switch {
		case phon && score >= m.phoneticThreshold:
			if !bestPhonetic || score > bestScore {
				best, bestScore, bestPhonetic = v, score, true
			}
		case !phon && !bestPhonetic && score >= m.fuzzyThreshold && score > bestScore:
			best, bestScore = v, score
		}
	}
	if best == "" {
		return input, 0, false
	}
	return best, bestScore, true
}

// Similarity returns the case-insensitive Jaro-Winkler similarity of a and b,
// ignoring spaces.
func Similarity(a, b string) float64 {
	sa, sb := squash(a), squash(b)
	if sa == "" || sb == "" {
		return 0
	}
	if sa == sb {
		return 1
	}
	return matchr.JaroWinkler(sa, sb, false)
}

// SoundsAlike reports whether a and b share a Double Metaphone code.
func SoundsAlike(a, b string) bool {
	sa, sb := squash(a), squash(b)
	if sa == "" || sb == "" {
		return false
	}
	return overlap(codes(nil, sa), codes(nil, sb))
}

// squash lower-cases s and removes whitespace.
func squash(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "")
}

// codes returns the Double Metaphone codes of every token plus the
// concatenated form.
func codes(tokens []string, joined string) map[string]struct{} {
	out := make(map[string]struct{}, 2*len(tokens)+2)
	add := func(w string) {
		p, s := matchr.DoubleMetaphone(w)
		if p != "" {
			out[p] = struct{}{}
		}
		if s != "" {
			out[s] = struct{}{}
		}
	}
	for _, t := range tokens {
		add(t)
	}
	if joined != "" {
		add(joined)
	}
	return out
}

func overlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for c := range a {
		if _, ok := b[c]; ok {
			return true
		}
	}
	return false
}
