// Package address implements the Australian street-address capture
// primitive.
//
// Addresses decompose into street, suburb, state code and postcode. Capture
// accepts abbreviations ("NSW", "St") and full names; confirmation always
// reads the state out in full.
package address

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Spotfunnel/voiceOS-sub001/internal/capture"
	"github.com/Spotfunnel/voiceOS-sub001/internal/transcript/phonetic"
)

// Component names.
const (
	FieldStreet    = "street"
	FieldSuburb    = "suburb"
	FieldStateCode = "state_code"
	FieldPostcode  = "postcode"
)

// Option configures a [Primitive].
type Option func(*Primitive)

// WithSuburbs sets a gazetteer of known suburb names. Heard suburbs are
// snapped to the closest gazetteer entry when one sounds alike.
func WithSuburbs(suburbs []string) Option {
	return func(p *Primitive) {
		p.suburbs = append([]string(nil), suburbs...)
	}
}

// WithLanguage sets the language used for title-casing.
func WithLanguage(tag language.Tag) Option {
	return func(p *Primitive) {
		p.lang = tag
	}
}

// Primitive is the address capture primitive.
type Primitive struct {
	suburbs []string
	lang    language.Tag
	matcher *phonetic.Matcher
}

var _ capture.Primitive = (*Primitive)(nil)

// New returns an address primitive.
func New(opts ...Option) *Primitive {
	p := &Primitive{
		lang:    language.MustParse("en-AU"),
		matcher: phonetic.New(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Kind implements [capture.Primitive].
func (p *Primitive) Kind() capture.Kind { return capture.KindAddress }

// Fields implements [capture.Primitive].
func (p *Primitive) Fields() []string {
	return []string{FieldStreet, FieldSuburb, FieldStateCode, FieldPostcode}
}

// Vocabulary implements [capture.Primitive].
func (p *Primitive) Vocabulary() []string {
	out := make([]string, 0, len(p.suburbs)+len(States))
	for _, s := range States {
		out = append(out, s.Name)
	}
	return append(out, p.suburbs...)
}

var leadIns = []string{
	"my address is ", "the address is ", "address is ", "i live at ", "i'm at ",
	"it's ", "it is ", "that's ",
}

func stripLeadIn(s string) string {
	for _, l := range leadIns {
		if rest, ok := strings.CutPrefix(s, l); ok {
			return rest
		}
	}
	return s
}

// Parse implements [capture.Primitive].
func (p *Primitive) Parse(raw string) capture.ParseResult {
	toks := capture.Words(stripLeadIn(capture.Normalize(raw)))
	for i, t := range toks {
		toks[i] = strings.Trim(t, ".")
	}
	if len(toks) == 0 {
		return capture.NewParseResult(nil, 0)
	}

	c := capture.Components{}
	for i := len(toks) - 1; i >= 0; i-- {
		// A leading four-digit token is a house number unless it stands alone.
		if isPostcode(toks[i]) && (i > 0 || len(toks) == 1) {
			c[FieldPostcode] = toks[i]
			toks = append(toks[:i:i], toks[i+1:]...)
			break
		}
	}
	if code, at, n, ok := findState(toks); ok && !(at+n < len(toks) && streetTypes[toks[at+n]]) {
		// "Victoria Street" names a street, not a state.
		c[FieldStateCode] = code
		toks = append(toks[:at:at], toks[at+n:]...)
	}

	street, suburb := splitStreet(toks)
	if street != "" {
		c[FieldStreet] = p.title(street)
	}
	if suburb != "" {
		c[FieldSuburb] = p.suburb(suburb)
	}

	inferred := false
	if c[FieldStateCode] == "" {
		if code, ok := StateForPostcode(c[FieldPostcode]); ok {
			c[FieldStateCode] = code
			inferred = true
		}
	}
	return capture.NewParseResult(c, score(c, inferred))
}

// splitStreet splits the remaining tokens at the first street type that
// follows a house number.
func splitStreet(toks []string) (street, suburb string) {
	if len(toks) == 0 {
		return "", ""
	}
	if !hasDigit(toks[0]) && toks[0] != "unit" && toks[0] != "apartment" {
		return "", strings.Join(toks, " ")
	}
	for i := 1; i < len(toks); i++ {
		if streetTypes[toks[i]] {
			return strings.Join(toks[:i+1], " "), strings.Join(toks[i+1:], " ")
		}
	}
	if len(toks) >= 3 {
		return strings.Join(toks[:len(toks)-1], " "), toks[len(toks)-1]
	}
	return strings.Join(toks, " "), ""
}

func score(c capture.Components, inferred bool) float64 {
	var s float64
	if street := c.Get(FieldStreet); street != "" {
		s += 0.15
		if hasStreetType(street) {
			s += 0.15
		}
	}
	if c.Get(FieldSuburb) != "" {
		s += 0.2
	}
	if c.Get(FieldStateCode) != "" && !inferred {
		s += 0.2
	}
	if c.Get(FieldPostcode) != "" {
		s += 0.2
	}
	if consistent(c) {
		s += 0.1
	} else {
		s = min(s, 0.5)
	}
	return s
}

func hasStreetType(street string) bool {
	for _, t := range strings.Fields(strings.ToLower(street)) {
		if streetTypes[t] {
			return true
		}
	}
	return false
}

// consistent reports whether the postcode belongs to the state. Missing
// components are not inconsistent.
func consistent(c capture.Components) bool {
	pc, code := c.Get(FieldPostcode), c.Get(FieldStateCode)
	if pc == "" || code == "" {
		return true
	}
	got, ok := StateForPostcode(pc)
	return ok && got == code
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

func (p *Primitive) title(s string) string {
	return cases.Title(p.lang).String(s)
}

func (p *Primitive) suburb(s string) string {
	if len(p.suburbs) > 0 {
		if m, _, ok := p.matcher.Match(s, p.suburbs); ok {
			return m
		}
	}
	return p.title(s)
}

// Compose implements [capture.Primitive]. The canonical form follows
// Australia Post: "12 George Street, Sydney NSW 2000".
func (p *Primitive) Compose(c capture.Components) string {
	tail := strings.Join(nonEmpty(c.Get(FieldSuburb), c.Get(FieldStateCode), c.Get(FieldPostcode)), " ")
	return strings.Join(nonEmpty(c.Get(FieldStreet), tail), ", ")
}

// Valid reports whether every component is present and the postcode belongs
// to the state.
func (p *Primitive) Valid(c capture.Components) bool {
	if !hasDigit(c.Get(FieldStreet)) || c.Get(FieldSuburb) == "" {
		return false
	}
	if StateName(c.Get(FieldStateCode)) == "" || !isPostcode(c.Get(FieldPostcode)) {
		return false
	}
	return consistent(c)
}

// ConfirmationPhrase implements [capture.Primitive]. The state is always
// read by its full name.
func (p *Primitive) ConfirmationPhrase(c capture.Components) string {
	parts := nonEmpty(c.Get(FieldStreet), c.Get(FieldSuburb), StateName(c.Get(FieldStateCode)), c.Get(FieldPostcode))
	return "Just to confirm, the address is " + strings.Join(parts, ", ") + ". Is that right?"
}

func nonEmpty(ss ...string) []string {
	out := ss[:0:0]
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IncrementalRepair implements [capture.Primitive].
func (p *Primitive) IncrementalRepair(correction string, prev capture.Components) (capture.Components, error) {
	return capture.ApplyRules(p.rules(), correction, prev)
}

func (p *Primitive) rules() []capture.RepairRule {
	return []capture.RepairRule{
		{Name: "full_address", Apply: p.repairFull},
		{Name: "postcode", Target: FieldPostcode, Apply: repairPostcode},
		{Name: "state", Target: FieldStateCode, Apply: repairState},
		{Name: "street_number", Target: FieldStreet, Apply: repairNumber},
		{Name: "street", Target: FieldStreet, Apply: p.repairStreet},
		{Name: "suburb", Target: FieldSuburb, Apply: p.repairSuburb},
	}
}

func (p *Primitive) repairFull(corr string, _ capture.Components) (capture.Components, capture.Match) {
	r := p.Parse(corr)
	filled := 0
	for _, f := range []string{FieldSuburb, FieldStateCode, FieldPostcode} {
		if r.Components.Get(f) != "" {
			filled++
		}
	}
	if r.Components.Get(FieldStreet) == "" || filled < 2 || r.LowConfidence {
		return nil, capture.NoMatch
	}
	return r.Components, capture.Matched
}

func repairPostcode(corr string, prev capture.Components) (capture.Components, capture.Match) {
	rest, ok := capture.AfterCue(corr, "postcode is", "post code is", "postcode's", "postcode", "post code", "zip code is")
	if !ok {
		return nil, capture.NoMatch
	}
	d, _ := capture.SpokenDigits(capture.DropNegated(rest, capture.DigitSpan))
	if !isPostcode(d) {
		return nil, capture.Ambiguous
	}
	return prev.With(FieldPostcode, d), capture.Matched
}

var fieldCues = []string{
	"suburb is", "suburb's", "street address is", "street is", "street's",
}

func repairState(corr string, prev capture.Components) (capture.Components, capture.Match) {
	if _, ok := capture.AfterCue(corr, fieldCues...); ok {
		// "the suburb is victoria park" names a suburb.
		return nil, capture.NoMatch
	}
	states := findStates(capture.Words(dropNegated(corr)))
	switch len(states) {
	case 0:
		return nil, capture.NoMatch
	case 1:
		return prev.With(FieldStateCode, states[0]), capture.Matched
	default:
		return nil, capture.Ambiguous
	}
}

var (
	numberCueRe = regexp.MustCompile(`(?:number is|number's|house number is|it's number|number) (\d+[a-z]?)(?:\s|$)`)
	numberSubRe = regexp.MustCompile(`^(?:it's |its |it is )?(\d+[a-z]?) not (\d+[a-z]?)$`)
)

func repairNumber(corr string, prev capture.Components) (capture.Components, capture.Match) {
	var num string
	if m := numberSubRe.FindStringSubmatch(corr); m != nil {
		num = m[1]
	} else if m := numberCueRe.FindStringSubmatch(corr); m != nil {
		num = m[1]
	} else {
		return nil, capture.NoMatch
	}
	street := prev.Get(FieldStreet)
	first, rest, _ := strings.Cut(street, " ")
	if !hasDigit(first) {
		return prev.With(FieldStreet, strings.TrimSpace(num+" "+street)), capture.Matched
	}
	return prev.With(FieldStreet, num+" "+rest), capture.Matched
}

func (p *Primitive) repairStreet(corr string, prev capture.Components) (capture.Components, capture.Match) {
	corr = dropNegated(corr)
	rest, ok := capture.AfterCue(corr, "street address is", "street is", "street's", "the street is")
	if !ok {
		rest = stripLeadIn(corr)
		if !hasDigit(rest) || !hasStreetType(rest) {
			return nil, capture.NoMatch
		}
	}
	if rest == "" {
		return nil, capture.Ambiguous
	}
	return prev.With(FieldStreet, p.title(rest)), capture.Matched
}

func (p *Primitive) repairSuburb(corr string, prev capture.Components) (capture.Components, capture.Match) {
	rest, ok := capture.AfterCue(dropNegated(corr), "suburb is", "suburb's", "the suburb is", "it's in", "in")
	if !ok || rest == "" || hasDigit(rest) {
		return nil, capture.NoMatch
	}
	return prev.With(FieldSuburb, p.suburb(rest)), capture.Matched
}

// dropNegated removes "not X" spans so "victoria not new south wales" keeps
// victoria. A negated state name, postcode or numbered street is removed
// whole.
func dropNegated(s string) string {
	return capture.DropNegated(s, func(rest []string) int {
		if _, at, n, ok := findState(rest[:min(3, len(rest))]); ok && at == 0 {
			return n
		}
		if len(rest) == 0 || !hasDigit(rest[0]) {
			return 1
		}
		for i := 1; i < min(6, len(rest)); i++ {
			if streetTypes[rest[i]] {
				return i + 1
			}
		}
		return 1
	})
}
