// Package email implements the email-address capture primitive.
//
// Spoken forms such as "jane at gmail dot com" are converted to written form,
// misheard provider names ("g male", "hot mail") are resolved against a
// provider vocabulary, and corrections like "it's jaine with an i" or "at
// outlook" rewrite only the local part or only the domain.
package email

import (
	"regexp"
	"slices"
	"strings"

	"github.com/Spotfunnel/voiceOS-sub001/internal/capture"
	"github.com/Spotfunnel/voiceOS-sub001/internal/transcript/phonetic"
)

// Component names.
const (
	FieldLocalPart = "local_part"
	FieldDomain    = "domain"
)

// defaultProviders maps spoken provider names to their mail domains.
var defaultProviders = map[string]string{
	"gmail":      "gmail.com",
	"googlemail": "googlemail.com",
	"outlook":    "outlook.com",
	"hotmail":    "hotmail.com",
	"live":       "live.com",
	"yahoo":      "yahoo.com",
	"icloud":     "icloud.com",
	"bigpond":    "bigpond.com",
	"optusnet":   "optusnet.com.au",
	"protonmail": "protonmail.com",
}

var knownTLDs = map[string]bool{
	"com": true, "net": true, "org": true, "edu": true, "gov": true, "io": true,
	"au": true, "nz": true, "uk": true, "co": true, "me": true, "info": true,
}

var (
	localRe  = regexp.MustCompile(`^[a-z0-9_%+-]+(\.[a-z0-9_%+-]+)*$`)
	domainRe = regexp.MustCompile(`^[a-z0-9-]+(\.[a-z0-9-]+)+$`)

	// spelledRe matches "jaine with an i", "jayne with a y", "ann with two n's".
	spelledRe = regexp.MustCompile(`(?:^|\s)([a-z][a-z'-]*) with (?:an?|two|double) ([a-z])(?:'?s)?(?:\s|$)`)
)

// Option configures a [Primitive].
type Option func(*Primitive)

// WithProviders replaces the provider vocabulary. Keys are spoken names,
// values are domains.
func WithProviders(providers map[string]string) Option {
	return func(p *Primitive) {
		if len(providers) > 0 {
			p.providers = providers
		}
	}
}

// Primitive is the email capture primitive. It is safe for concurrent use.
type Primitive struct {
	providers map[string]string
	names     []string
	loose     *phonetic.Matcher
	strict    *phonetic.Matcher
}

var _ capture.Primitive = (*Primitive)(nil)

// New returns an email primitive.
func New(opts ...Option) *Primitive {
	p := &Primitive{
		providers: defaultProviders,
		loose:     phonetic.New(),
		strict:    phonetic.New(phonetic.WithPhoneticThreshold(0.85), phonetic.WithFuzzyThreshold(0.92)),
	}
	for _, o := range opts {
		o(p)
	}
	for name := range p.providers {
		p.names = append(p.names, name)
	}
	return p
}

// Kind implements [capture.Primitive].
func (p *Primitive) Kind() capture.Kind { return capture.KindEmail }

// Fields implements [capture.Primitive].
func (p *Primitive) Fields() []string { return []string{FieldLocalPart, FieldDomain} }

// Vocabulary implements [capture.Primitive].
func (p *Primitive) Vocabulary() []string {
	out := make([]string, len(p.names))
	copy(out, p.names)
	return out
}

// Parse implements [capture.Primitive].
func (p *Primitive) Parse(raw string) capture.ParseResult {
	written := toWritten(stripLeadIn(capture.Normalize(raw)))
	if written == "" {
		return capture.NewParseResult(nil, 0)
	}

	local, domain, found := strings.Cut(written, "@")
	if !found {
		// No "at": keep whatever was heard as a partial local part.
		return capture.NewParseResult(capture.Components{FieldLocalPart: written}, 0.2)
	}
	if strings.Contains(domain, "@") {
		return capture.NewParseResult(capture.Components{FieldLocalPart: local}, 0.1)
	}

	localConf := 0.95
	if !localRe.MatchString(local) {
		localConf = 0.3
	}
	domain, domainConf := p.resolveDomain(domain)

	c := capture.Components{FieldLocalPart: local, FieldDomain: domain}
	return capture.NewParseResult(c, min(localConf, domainConf))
}

// resolveDomain maps a heard domain to a written one and scores it.
func (p *Primitive) resolveDomain(d string) (string, float64) {
	if d == "" {
		return "", 0.1
	}
	base, tld, hasTLD := strings.Cut(d, ".")
	if !hasTLD {
		if name, conf, ok := p.loose.Match(base, p.names); ok {
			return p.providers[name], min(conf, 0.85)
		}
		return d, 0.3
	}
	if !domainRe.MatchString(d) {
		return d, 0.3
	}
	last := d[strings.LastIndex(d, ".")+1:]
	if !knownTLDs[last] {
		return d, 0.6
	}
	if _, ok := p.providers[base]; ok {
		return d, 0.95
	}
	// "gmale.com" is far more likely to be gmail.com than a real domain.
	if name, conf, ok := p.strict.Match(base, p.names); ok {
		return name + "." + tld, min(conf, 0.85)
	}
	return d, 0.85
}

// Compose implements [capture.Primitive].
func (p *Primitive) Compose(c capture.Components) string {
	local, domain := c.Get(FieldLocalPart), c.Get(FieldDomain)
	if local == "" && domain == "" {
		return ""
	}
	return local + "@" + domain
}

// Valid reports whether c forms a syntactically valid address.
func (p *Primitive) Valid(c capture.Components) bool {
	local, domain := c.Get(FieldLocalPart), c.Get(FieldDomain)
	if !localRe.MatchString(local) || !domainRe.MatchString(domain) {
		return false
	}
	tld := domain[strings.LastIndex(domain, ".")+1:]
	return len(tld) >= 2
}

// ConfirmationPhrase implements [capture.Primitive]. The address is read the
// way people say it ("jane dot smith at gmail dot com"), never letter by
// letter.
func (p *Primitive) ConfirmationPhrase(c capture.Components) string {
	return "Just to confirm, your email is " + speak(c.Get(FieldLocalPart)) +
		" at " + speak(c.Get(FieldDomain)) + ". Is that right?"
}

// IncrementalRepair implements [capture.Primitive].
func (p *Primitive) IncrementalRepair(correction string, prev capture.Components) (capture.Components, error) {
	return capture.ApplyRules(p.rules(), correction, prev)
}

// rules is the ordered matcher list: a complete address wins, then explicit
// spelling hints for the local part, then domain cues, then bare local part.
func (p *Primitive) rules() []capture.RepairRule {
	return []capture.RepairRule{
		{Name: "full_address", Apply: p.repairFull},
		{Name: "spelled_local_part", Target: FieldLocalPart, Apply: repairSpelled},
		{Name: "domain", Target: FieldDomain, Apply: p.repairDomain},
		{Name: "local_part", Target: FieldLocalPart, Apply: p.repairLocal},
	}
}

func (p *Primitive) repairFull(corr string, _ capture.Components) (capture.Components, capture.Match) {
	written := toWritten(stripLeadIn(p.dropNegated(corr)))
	local, domain, ok := strings.Cut(written, "@")
	if !ok || local == "" || domain == "" {
		return nil, capture.NoMatch
	}
	r := p.Parse(written)
	if r.LowConfidence {
		return nil, capture.NoMatch
	}
	return r.Components, capture.Matched
}

func repairSpelled(corr string, prev capture.Components) (capture.Components, capture.Match) {
	m := spelledRe.FindStringSubmatch(corr)
	if m == nil {
		return nil, capture.NoMatch
	}
	name := strings.Trim(m[1], "'-")
	if name == "" || name == "it's" || name == "its" {
		return nil, capture.NoMatch
	}
	local := prev.Get(FieldLocalPart)
	if local == "" {
		return prev.With(FieldLocalPart, name), capture.Matched
	}
	updated, ok := replaceClosestToken(local, name)
	if !ok {
		return nil, capture.Ambiguous
	}
	return prev.With(FieldLocalPart, updated), capture.Matched
}

// repairDomain rewrites the domain after an explicit cue ("at outlook", "the
// domain is ..."). Without a cue only an exact provider name counts, unless
// the caller rejected a provider ("hot male not gmail"): names that merely
// sound like a provider ("olive", "gail") are left to the local-part rule.
func (p *Primitive) repairDomain(corr string, prev capture.Components) (capture.Components, capture.Match) {
	rejected := false
	for _, t := range capture.Negated(corr) {
		if _, _, ok := p.strict.Match(strings.Trim(t, "'."), p.names); ok {
			rejected = true
		}
	}
	corr = p.dropNegated(corr)
	if rest, ok := capture.AfterCue(corr, "domain is", "domain's", "at"); ok && rest != "" {
		written := toWritten(rest)
		if strings.Contains(written, "@") {
			return nil, capture.NoMatch
		}
		if d, conf := p.resolveDomain(written); conf >= 0.6 {
			return prev.With(FieldDomain, d), capture.Matched
		}
	}

	var found []string
	toks := capture.Words(corr)
	for i := range toks {
		for _, span := range []string{toks[i], strings.Join(toks[i:min(i+2, len(toks))], " ")} {
			span = strings.Trim(span, "'.")
			name, ok := p.providerName(span)
			if !ok && rejected {
				name, _, ok = p.strict.Match(span, p.names)
			}
			if ok && !slices.Contains(found, name) {
				found = append(found, name)
			}
		}
	}
	switch len(found) {
	case 0:
		return nil, capture.NoMatch
	case 1:
		return prev.With(FieldDomain, p.providers[found[0]]), capture.Matched
	default:
		return nil, capture.Ambiguous
	}
}

// providerName reports whether span is exactly a provider name, ignoring
// spaces ("hot mail").
func (p *Primitive) providerName(span string) (string, bool) {
	name := strings.ReplaceAll(span, " ", "")
	_, ok := p.providers[name]
	return name, ok
}

func (p *Primitive) repairLocal(corr string, prev capture.Components) (capture.Components, capture.Match) {
	rest, ok := capture.AfterCue(p.dropNegated(corr),
		"username is", "user name is", "first part is", "name part is", "before the at is",
		"it's", "it is", "its", "should be")
	if !ok || rest == "" {
		return nil, capture.NoMatch
	}
	if len(capture.Words(rest)) > 3 {
		return nil, capture.Ambiguous
	}
	written := toWritten(rest)
	if strings.ContainsAny(written, "@") || !localRe.MatchString(written) {
		return nil, capture.NoMatch
	}
	return prev.With(FieldLocalPart, written), capture.Matched
}

// replaceClosestToken swaps the separator-delimited token of local that best
// resembles name. With several tokens and no clear winner it reports false.
func replaceClosestToken(local, name string) (string, bool) {
	parts := strings.FieldsFunc(local, isSeparator)
	if len(parts) <= 1 {
		return name, true
	}
	best, bestScore, second := -1, 0.0, 0.0
	for i, part := range parts {
		s := phonetic.Similarity(part, name)
		if phonetic.SoundsAlike(part, name) {
			s += 0.1
		}
		switch {
		case s > bestScore:
			second, best, bestScore = bestScore, i, s
		case s > second:
			second = s
		}
	}
	if best < 0 || bestScore < 0.6 || bestScore-second < 0.05 {
		return "", false
	}
	start := 0
	for i := 0; i < best; i++ {
		start = strings.Index(local[start:], parts[i]) + start + len(parts[i])
	}
	idx := strings.Index(local[start:], parts[best]) + start
	return local[:idx] + name + local[idx+len(parts[best]):], true
}

func isSeparator(r rune) bool { return r == '.' || r == '_' || r == '-' }

var leadIns = []string{
	"my email address is ", "email address is ", "my email is ", "the email is ",
	"email is ", "it's ", "it is ", "its ", "that's ", "that is ",
}

func stripLeadIn(s string) string {
	for _, l := range leadIns {
		if rest, ok := strings.CutPrefix(s, l); ok {
			return rest
		}
	}
	return s
}

// dropNegated removes "not X" spans so "hotmail not gmail" keeps hotmail. A
// rejected provider may be spoken as two words ("not hot mail").
func (p *Primitive) dropNegated(s string) string {
	return capture.DropNegated(s, func(rest []string) int {
		if len(rest) >= 2 {
			if _, ok := p.providerName(rest[0] + rest[1]); ok {
				return 2
			}
		}
		return 1
	})
}

var spokenSymbols = map[string]string{
	"at": "@", "dot": ".", "period": ".", "point": ".",
	"underscore": "_", "dash": "-", "hyphen": "-",
	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
}

// toWritten converts spoken email tokens to written form and joins them.
func toWritten(s string) string {
	var b strings.Builder
	for _, t := range capture.Words(s) {
		if sym, ok := spokenSymbols[t]; ok {
			b.WriteString(sym)
			continue
		}
		b.WriteString(strings.Trim(t, "'"))
	}
	return strings.Trim(b.String(), ".")
}

// speak renders a written email fragment the way it is read aloud.
func speak(s string) string {
	r := strings.NewReplacer(".", " dot ", "_", " underscore ", "-", " dash ", "+", " plus ")
	return strings.Join(strings.Fields(r.Replace(s)), " ")
}
