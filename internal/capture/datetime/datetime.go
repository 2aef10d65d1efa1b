// Package datetime implements the appointment date/time capture primitive.
//
// A value has a date part (ISO "2006-01-02") and a time part (24-hour
// "15:04"); either may be missing while the other is being collected.
// Relative expressions ("tomorrow", "next friday") resolve against an
// injectable clock.
package datetime

import (
	"strconv"
	"strings"
	"time"

	"github.com/Spotfunnel/voiceOS-sub001/internal/capture"
)

// Component names.
const (
	FieldDatePart = "date_part"
	FieldTimePart = "time_part"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Option configures a [Primitive].
type Option func(*Primitive)

// WithClock sets the reference clock for relative dates.
func WithClock(now func() time.Time) Option {
	return func(p *Primitive) {
		if now != nil {
			p.now = now
		}
	}
}

// Primitive is the date/time capture primitive.
type Primitive struct {
	now func() time.Time
}

var _ capture.Primitive = (*Primitive)(nil)

// New returns a date/time primitive using the wall clock unless overridden.
func New(opts ...Option) *Primitive {
	p := &Primitive{now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Kind implements [capture.Primitive].
func (p *Primitive) Kind() capture.Kind { return capture.KindDateTime }

// Fields implements [capture.Primitive].
func (p *Primitive) Fields() []string { return []string{FieldDatePart, FieldTimePart} }

// Vocabulary implements [capture.Primitive].
func (p *Primitive) Vocabulary() []string {
	return []string{"tomorrow", "morning", "afternoon", "midday", "o'clock", "half past", "quarter past", "quarter to"}
}

// Parse implements [capture.Primitive]. A date alone or a time alone is a
// partial capture.
func (p *Primitive) Parse(raw string) capture.ParseResult {
	toks := prepare(capture.Normalize(raw))
	c := capture.Components{}

	d, hasDate := parseDate(toks, p.now())
	if hasDate {
		c[FieldDatePart] = d.Format(dateLayout)
	}
	t, hasTime := parseTime(toks)
	if hasTime {
		c[FieldTimePart] = t.String()
	}

	var conf float64
	switch {
	case hasDate && hasTime:
		conf = 0.9
	case hasDate || hasTime:
		conf = 0.5
	default:
		conf = 0.1
	}
	if hasTime && t.guessed {
		conf -= 0.1
	}
	return capture.NewParseResult(c, conf)
}

// Compose implements [capture.Primitive]: "2026-03-03 14:00".
func (p *Primitive) Compose(c capture.Components) string {
	return strings.TrimSpace(c.Get(FieldDatePart) + " " + c.Get(FieldTimePart))
}

// Valid reports whether both parts are present, well formed and not in the
// past.
func (p *Primitive) Valid(c capture.Components) bool {
	now := p.now()
	d, err := time.ParseInLocation(dateLayout, c.Get(FieldDatePart), now.Location())
	if err != nil {
		return false
	}
	t, err := time.Parse(timeLayout, c.Get(FieldTimePart))
	if err != nil {
		return false
	}
	at := time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	return !at.Before(now)
}

// ConfirmationPhrase implements [capture.Primitive]: "Tuesday the 3rd of
// March at 2pm".
func (p *Primitive) ConfirmationPhrase(c capture.Components) string {
	var parts []string
	if d, err := time.Parse(dateLayout, c.Get(FieldDatePart)); err == nil {
		parts = append(parts, d.Weekday().String()+" the "+ordinal(d.Day())+" of "+d.Month().String())
	}
	if t, err := time.Parse(timeLayout, c.Get(FieldTimePart)); err == nil {
		parts = append(parts, "at "+spokenTime(t.Hour(), t.Minute()))
	}
	if len(parts) == 0 {
		return "Could you tell me the day and time that suits you?"
	}
	return "Just to confirm, that's " + strings.Join(parts, " ") + ". Is that right?"
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return strconv.Itoa(n) + suffix
}

func spokenTime(h, m int) string {
	switch {
	case h == 12 && m == 0:
		return "midday"
	case h == 0 && m == 0:
		return "midnight"
	}
	mer := "am"
	if h >= 12 {
		mer = "pm"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	if m == 0 {
		return strconv.Itoa(h12) + mer
	}
	return strconv.Itoa(h12) + ":" + twoDigits(m) + mer
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// IncrementalRepair implements [capture.Primitive]. A correction that names
// only a time keeps the captured date, and vice versa.
func (p *Primitive) IncrementalRepair(correction string, prev capture.Components) (capture.Components, error) {
	return capture.ApplyRules(p.rules(), correction, prev)
}

func (p *Primitive) rules() []capture.RepairRule {
	return []capture.RepairRule{
		{Name: "date_and_time", Apply: p.repairBoth},
		{Name: "time_only", Target: FieldTimePart, Apply: p.repairTime},
		{Name: "date_only", Target: FieldDatePart, Apply: p.repairDate},
	}
}

func (p *Primitive) repairBoth(corr string, _ capture.Components) (capture.Components, capture.Match) {
	toks := prepare(p.dropNegated(corr))
	d, hasDate := parseDate(toks, p.now())
	t, hasTime := parseTime(toks)
	if !hasDate || !hasTime {
		return nil, capture.NoMatch
	}
	return capture.Components{FieldDatePart: d.Format(dateLayout), FieldTimePart: t.String()}, capture.Matched
}

func (p *Primitive) repairTime(corr string, prev capture.Components) (capture.Components, capture.Match) {
	t, ok := parseTime(prepare(p.dropNegated(corr)))
	if !ok {
		return nil, capture.NoMatch
	}
	return prev.With(FieldTimePart, t.String()), capture.Matched
}

func (p *Primitive) repairDate(corr string, prev capture.Components) (capture.Components, capture.Match) {
	d, ok := parseDate(prepare(p.dropNegated(corr)), p.now())
	if !ok {
		return nil, capture.NoMatch
	}
	return prev.With(FieldDatePart, d.Format(dateLayout)), capture.Matched
}

// dropNegated removes the date or time the caller rejects: "not tuesday,
// wednesday" keeps wednesday and "not half past three" drops all three words.
func (p *Primitive) dropNegated(corr string) string {
	return capture.DropNegated(corr, func(rest []string) int {
		for n := 1; n <= min(4, len(rest)); n++ {
			span := prepare(strings.Join(rest[:n], " "))
			if _, ok := parseTime(span); ok {
				return n
			}
			if _, ok := parseDate(span, p.now()); ok {
				return n
			}
		}
		return 1
	})
}
