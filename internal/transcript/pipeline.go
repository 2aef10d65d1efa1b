// Package transcript turns recogniser output into the utterances consumed by
// the capture core.
//
// Raw speech-to-text output is rarely perfect for the vocabulary callers use
// when dictating contact details: email providers, suburb names and month
// names are frequently misheard. The [Normalizer] applies Unicode NFC
// normalisation, then a phonetic vocabulary pass ([PhoneticMatcher]) that
// rewrites low-confidence words close to a known entry, and derives a single
// effective confidence for the utterance.
//
// Each [Correction] records the substitution and its confidence so sessions
// can log and audit what was changed. Nothing in this package decides
// control flow; the utterance is handed to the objective unchanged in
// meaning.
package transcript

// Correction captures a single substitution made by the normalizer.
type Correction struct {
	// Original is the text as produced by the recogniser.
	Original string

	// Corrected is the vocabulary entry that replaced it.
	Corrected string

	// Confidence is the matcher's score for this substitution (0.0–1.0).
	Confidence float64
}

// Utterance is a normalised, final transcript ready for parsing.
type Utterance struct {
	// Text is the normalised and corrected text.
	Text string

	// Raw is the recogniser text before correction.
	Raw string

	// Confidence is the effective recogniser confidence. Zero means the
	// recogniser reported none.
	Confidence float64

	// Corrections lists every substitution applied to Raw, in order.
	Corrections []Correction

	// Timeout is true when the utterance stands for caller silence.
	Timeout bool
}

// Empty reports whether the utterance carries no speech.
func (u Utterance) Empty() bool { return u.Text == "" }

// PhoneticMatcher finds the vocabulary entry closest to a recognised span.
// *phonetic.Matcher satisfies it.
type PhoneticMatcher interface {
	Match(input string, vocabulary []string) (entry string, confidence float64, matched bool)
}
