package transcript

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/Spotfunnel/voiceOS-sub001/internal/transcript/phonetic"
	"github.com/Spotfunnel/voiceOS-sub001/pkg/provider/stt"
)

// DefaultTrustedWordConfidence is the per-word recogniser confidence at or
// above which a word is never rewritten.
const DefaultTrustedWordConfidence = 0.9

// spokenForms are words the capture parsers rely on. They are never rewritten
// to vocabulary entries.
var spokenForms = map[string]bool{
	"at": true, "dot": true, "com": true, "net": true, "org": true, "au": true,
	"underscore": true, "dash": true, "hyphen": true, "with": true, "and": true,
	"not": true, "the": true, "it's": true, "its": true, "is": true, "in": true,
	"oh": true, "double": true, "triple": true, "plus": true,
}

// Option is a functional option for [Normalizer].
type Option func(*Normalizer)

// WithPhoneticMatcher sets the matcher used for vocabulary correction.
func WithPhoneticMatcher(m PhoneticMatcher) Option {
	return func(n *Normalizer) {
		n.matcher = m
	}
}

// WithTrustedWordConfidence overrides [DefaultTrustedWordConfidence].
func WithTrustedWordConfidence(c float64) Option {
	return func(n *Normalizer) {
		n.trusted = c
	}
}

// Normalizer converts recogniser transcripts into [Utterance] values. It is
// read-only after construction and safe for concurrent use.
type Normalizer struct {
	matcher PhoneticMatcher
	trusted float64
}

// NewNormalizer returns a Normalizer using a default [phonetic.Matcher].
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		matcher: phonetic.New(),
		trusted: DefaultTrustedWordConfidence,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Normalize converts t into an utterance, correcting spans that sound like an
// entry of vocabulary. Multi-word entries are matched against windows of the
// same word count, longest first.
func (n *Normalizer) Normalize(t stt.Transcript, vocabulary []string) Utterance {
	if t.Timeout {
		return Utterance{Timeout: true}
	}
	raw := strings.Join(strings.Fields(norm.NFC.String(t.Text)), " ")
	u := Utterance{
		Text:       raw,
		Raw:        raw,
		Confidence: EffectiveConfidence(t),
	}
	if raw == "" || n.matcher == nil || len(vocabulary) == 0 {
		return u
	}

	byLen := make(map[int][]string)
	maxN := 0
	for _, v := range vocabulary {
		k := len(strings.Fields(v))
		if k == 0 {
			continue
		}
		byLen[k] = append(byLen[k], v)
		maxN = max(maxN, k)
	}

	tokens := strings.Fields(raw)
	wordConf := alignWords(tokens, t.Words)

	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		advanced := false
		for size := min(maxN, len(tokens)-i); size >= 1; size-- {
			cands := byLen[size]
			if len(cands) == 0 || !n.correctable(tokens[i:i+size], wordConf, i) {
				continue
			}
			span, trail := trimSpan(tokens[i : i+size])
			entry, conf, ok := n.matcher.Match(span, cands)
			if !ok || strings.EqualFold(squashed(entry), squashed(span)) {
				continue
			}
			u.Corrections = append(u.Corrections, Correction{Original: span, Corrected: entry, Confidence: conf})
			out = append(out, entry+trail)
			i += size
			advanced = true
			break
		}
		if !advanced {
			out = append(out, tokens[i])
			i++
		}
	}
	u.Text = strings.Join(out, " ")
	return u
}

// correctable reports whether the window starting at offset may be rewritten.
func (n *Normalizer) correctable(window []string, wordConf []float64, offset int) bool {
	for j, w := range window {
		core := strings.ToLower(strings.TrimFunc(w, isTrim))
		if len(core) < 3 || spokenForms[core] || strings.ContainsFunc(core, unicode.IsDigit) {
			return false
		}
		if wordConf != nil && wordConf[offset+j] >= n.trusted {
			return false
		}
	}
	return true
}

// EffectiveConfidence returns the transcript confidence, falling back to the
// mean word confidence. Zero means none was reported.
func EffectiveConfidence(t stt.Transcript) float64 {
	if t.Confidence > 0 {
		return min(t.Confidence, 1)
	}
	var sum float64
	var k int
	for _, w := range t.Words {
		if w.Confidence > 0 {
			sum += w.Confidence
			k++
		}
	}
	if k == 0 {
		return 0
	}
	return min(sum/float64(k), 1)
}

// alignWords maps word-level confidences onto tokens. It returns nil when
// the recogniser's word list does not line up with the text.
func alignWords(tokens []string, words []stt.WordDetail) []float64 {
	if len(words) != len(tokens) {
		return nil
	}
	out := make([]float64, len(words))
	for i, w := range words {
		out[i] = w.Confidence
	}
	return out
}

// trimSpan joins window and splits off trailing punctuation of the last word.
func trimSpan(window []string) (span, trail string) {
	joined := strings.Join(window, " ")
	core := strings.TrimRightFunc(joined, isTrim)
	return strings.TrimLeftFunc(core, isTrim), joined[len(core):]
}

func isTrim(r rune) bool {
	return unicode.IsPunct(r) && r != '\'' && r != '@'
}

func squashed(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
