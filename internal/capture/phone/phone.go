// Package phone implements the phone-number capture primitive.
//
// Numbers are decomposed into a country prefix ("+61" or empty for national
// form), the leading trunk digits and the last four digits, which is the
// part callers most often correct. The default locale is Australia.
package phone

import (
	"regexp"
	"strings"

	"github.com/Spotfunnel/voiceOS-sub001/internal/capture"
)

// Component names.
const (
	FieldCountryPrefix = "country_prefix"
	FieldTrunkDigits   = "trunk_digits"
	FieldLastFour      = "last_four"
)

const defaultCountryCode = "61"

// Option configures a [Primitive].
type Option func(*Primitive)

// WithCountryCode sets the home country calling code, without "+".
func WithCountryCode(code string) Option {
	return func(p *Primitive) {
		if code = strings.TrimPrefix(code, "+"); code != "" {
			p.countryCode = code
		}
	}
}

// Primitive is the phone capture primitive.
type Primitive struct {
	countryCode string
}

var _ capture.Primitive = (*Primitive)(nil)

// New returns a phone primitive for the Australian numbering plan unless
// overridden.
func New(opts ...Option) *Primitive {
	p := &Primitive{countryCode: defaultCountryCode}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Kind implements [capture.Primitive].
func (p *Primitive) Kind() capture.Kind { return capture.KindPhone }

// Fields implements [capture.Primitive].
func (p *Primitive) Fields() []string {
	return []string{FieldCountryPrefix, FieldTrunkDigits, FieldLastFour}
}

// Vocabulary implements [capture.Primitive].
func (p *Primitive) Vocabulary() []string {
	return []string{"oh", "double", "triple", "plus"}
}

// Parse implements [capture.Primitive].
func (p *Primitive) Parse(raw string) capture.ParseResult {
	digits, plus := capture.SpokenDigits(capture.Normalize(raw))
	if digits == "" {
		return capture.NewParseResult(nil, 0)
	}
	prefix, national := p.splitCountry(digits, plus)
	return capture.NewParseResult(split(prefix, national), p.score(prefix, national))
}

// splitCountry separates the home country code from the national digits.
func (p *Primitive) splitCountry(digits string, plus bool) (prefix, national string) {
	home := "+" + p.countryCode
	switch {
	case plus && strings.HasPrefix(digits, p.countryCode):
		return home, strings.TrimPrefix(digits[len(p.countryCode):], "0")
	case plus:
		return "+", digits
	case len(digits) == 11 && strings.HasPrefix(digits, p.countryCode):
		return home, digits[len(p.countryCode):]
	default:
		return "", digits
	}
}

func (p *Primitive) score(prefix, national string) float64 {
	n := len(national)
	switch {
	case prefix == "" && n == 10 && national[0] == '0':
		return 0.9
	case prefix == "+"+p.countryCode && n == 9:
		return 0.9
	case prefix == "+" && n >= 8 && n <= 14:
		return 0.6
	case prefix == "" && n == 8:
		return 0.6
	case n >= 6 && n <= 15:
		return 0.4
	default:
		return 0.2
	}
}

func split(prefix, national string) capture.Components {
	c := capture.Components{FieldCountryPrefix: prefix}
	if len(national) <= 4 {
		c[FieldTrunkDigits], c[FieldLastFour] = national, ""
		return c
	}
	c[FieldTrunkDigits] = national[:len(national)-4]
	c[FieldLastFour] = national[len(national)-4:]
	return c
}

func national(c capture.Components) string {
	return c.Get(FieldTrunkDigits) + c.Get(FieldLastFour)
}

// Compose implements [capture.Primitive].
func (p *Primitive) Compose(c capture.Components) string {
	return c.Get(FieldCountryPrefix) + national(c)
}

// Valid reports whether c is a dialable number for the home country, or a
// plausible international number.
func (p *Primitive) Valid(c capture.Components) bool {
	return p.score(c.Get(FieldCountryPrefix), national(c)) >= 0.6
}

// ConfirmationPhrase implements [capture.Primitive]. Digits are grouped the
// way numbers are read aloud ("0412 345 678").
func (p *Primitive) ConfirmationPhrase(c capture.Components) string {
	return "Just to confirm, your number is " + group(c.Get(FieldCountryPrefix), national(c)) + ". Is that right?"
}

func group(prefix, n string) string {
	var parts []string
	switch {
	case prefix == "" && len(n) == 10 && strings.HasPrefix(n, "04"):
		parts = []string{n[:4], n[4:7], n[7:]}
	case prefix == "" && len(n) == 10:
		parts = []string{n[:2], n[2:6], n[6:]}
	case prefix != "" && len(n) == 9:
		parts = []string{prefix, n[:3], n[3:6], n[6:]}
	default:
		for len(n) > 4 {
			parts = append(parts, n[:3])
			n = n[3:]
		}
		parts = append(parts, n)
		if prefix != "" {
			parts = append([]string{prefix}, parts...)
		}
	}
	return strings.Join(parts, " ")
}

// IncrementalRepair implements [capture.Primitive].
func (p *Primitive) IncrementalRepair(correction string, prev capture.Components) (capture.Components, error) {
	return capture.ApplyRules(p.rules(), correction, prev)
}

// rules puts suffix and prefix corrections ahead of digit substitution and
// full replacement.
func (p *Primitive) rules() []capture.RepairRule {
	return []capture.RepairRule{
		{Name: "suffix", Target: FieldLastFour, Apply: repairSuffix},
		{Name: "prefix", Target: FieldTrunkDigits, Apply: repairPrefix},
		{Name: "substitution", Apply: repairSubstitution},
		{Name: "full_number", Apply: p.repairFull},
		{Name: "bare_digits", Apply: rejectBareDigits},
	}
}

var suffixCues = []string{
	"last four digits are", "last four digits is", "last four are", "last four is",
	"last digits are", "last four", "ending in", "ends in", "ending with", "ends with",
	"finishes with", "the end is",
}

var prefixCues = []string{
	"starts with", "starting with", "begins with", "beginning with",
	"first part is", "first four are", "first digits are",
}

// repairSuffix replaces the tail of the number. "ending in 6789 not 5678"
// names the rejected digits too; only the ones kept count. A suffix longer
// than the last four is not a suffix correction.
func repairSuffix(corr string, prev capture.Components) (capture.Components, capture.Match) {
	rest, ok := capture.AfterCue(corr, suffixCues...)
	if !ok {
		return nil, capture.NoMatch
	}
	d, _ := capture.SpokenDigits(capture.DropNegated(rest, capture.DigitSpan))
	n := national(prev)
	if d == "" || len(d) > max(len(prev.Get(FieldLastFour)), 4) || len(d) > len(n) {
		return nil, capture.Ambiguous
	}
	return split(prev.Get(FieldCountryPrefix), n[:len(n)-len(d)]+d), capture.Matched
}

func repairPrefix(corr string, prev capture.Components) (capture.Components, capture.Match) {
	rest, ok := capture.AfterCue(corr, prefixCues...)
	if !ok {
		return nil, capture.NoMatch
	}
	d, _ := capture.SpokenDigits(capture.DropNegated(rest, capture.DigitSpan))
	prefix, n := prev.Get(FieldCountryPrefix), national(prev)
	if prefix != "" && prefix != "+" && strings.HasPrefix(d, "0") {
		d = d[1:]
	}
	if d == "" || len(d) > len(n) {
		return nil, capture.Ambiguous
	}
	return split(prefix, d+n[len(d):]), capture.Matched
}

var (
	// "not 5678 it's 6789", "not 5678 but 6789"
	notThenRe = regexp.MustCompile(`^(?:it's |its |it is )?not (.+?) (?:it's|its|it is|but|it should be) (.+)$`)
	// "it's 6789 not 5678"
	thenNotRe = regexp.MustCompile(`^(?:it's |its |it is )?(.+?) not (.+)$`)
)

func repairSubstitution(corr string, prev capture.Components) (capture.Components, capture.Match) {
	var oldSpoken, newSpoken string
	if m := notThenRe.FindStringSubmatch(corr); m != nil {
		oldSpoken, newSpoken = m[1], m[2]
	} else if m := thenNotRe.FindStringSubmatch(corr); m != nil {
		newSpoken, oldSpoken = m[1], m[2]
	} else {
		return nil, capture.NoMatch
	}
	oldD, _ := capture.SpokenDigits(oldSpoken)
	newD, _ := capture.SpokenDigits(newSpoken)
	if oldD == "" || newD == "" {
		return nil, capture.NoMatch
	}
	n := national(prev)
	if strings.Count(n, oldD) != 1 {
		return nil, capture.Ambiguous
	}
	return split(prev.Get(FieldCountryPrefix), strings.Replace(n, oldD, newD, 1)), capture.Matched
}

func (p *Primitive) repairFull(corr string, _ capture.Components) (capture.Components, capture.Match) {
	d, _ := capture.SpokenDigits(corr)
	if len(d) < 8 {
		return nil, capture.NoMatch
	}
	r := p.Parse(corr)
	if r.LowConfidence {
		return nil, capture.Ambiguous
	}
	return r.Components, capture.Matched
}

// rejectBareDigits flags a few digits with no cue: there is no telling which
// part of the number they replace.
func rejectBareDigits(corr string, _ capture.Components) (capture.Components, capture.Match) {
	if d, _ := capture.SpokenDigits(corr); d != "" {
		return nil, capture.Ambiguous
	}
	return nil, capture.NoMatch
}
