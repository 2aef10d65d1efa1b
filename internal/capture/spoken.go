package capture

import (
	"strings"
	"unicode"
)

// fillers are leading discourse words stripped before matching. "oh" is not a
// filler: it is a spoken zero.
var fillers = map[string]bool{
	"um": true, "umm": true, "uh": true, "er": true, "erm": true, "hmm": true,
	"well": true, "so": true, "sorry": true, "actually": true, "okay": true,
	"ok": true, "yeah": true, "no": true, "nope": true,
}

// Normalize lower-cases s, folds typographic quotes, replaces clause
// punctuation with spaces, collapses whitespace and drops leading filler
// words. Dots, at-signs, hyphens and colons are kept since they are
// significant inside emails, times and numbers.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("’", "'", "‘", "'", "“", " ", "”", " ", "\"", " ").Replace(s)
	s = strings.Map(func(r rune) rune {
		switch r {
		case ',', ';', '!', '?', '(', ')':
			return ' '
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
	words := strings.Fields(s)
	for len(words) > 0 && fillers[strings.TrimRight(words[0], ".")] {
		words = words[1:]
	}
	out := strings.Join(words, " ")
	return strings.TrimRight(out, ". ")
}

// Words splits a normalised string into tokens.
func Words(s string) []string { return strings.Fields(s) }

// HasWord reports whether w occurs as a whole token in s.
func HasWord(s, w string) bool {
	for _, t := range strings.Fields(s) {
		if strings.TrimRight(t, ".:") == w {
			return true
		}
	}
	return false
}

// DropNegated removes every "not X" span from s, so "hotmail not gmail"
// keeps hotmail. span reports how many tokens after "not" the rejected value
// covers; nil means one.
func DropNegated(s string, span func(rest []string) int) string {
	toks := Words(s)
	out := toks[:0:0]
	for i := 0; i < len(toks); i++ {
		if toks[i] != "not" {
			out = append(out, toks[i])
			continue
		}
		n := 1
		if span != nil {
			n = max(span(toks[i+1:]), 1)
		}
		i += n
	}
	return strings.Join(out, " ")
}

// DigitSpan counts the leading tokens of rest that are spoken or written
// digits, so "not five six seven eight" drops all four words. It is a span
// function for [DropNegated].
func DigitSpan(rest []string) int {
	n := 0
	for _, t := range rest {
		if d, _ := SpokenDigits(t); d == "" && t != "double" && t != "triple" && t != "o" {
			break
		}
		n++
	}
	return n
}

// Negated returns the first token after each "not" in s.
func Negated(s string) []string {
	var out []string
	toks := Words(s)
	for i, t := range toks {
		if t == "not" && i+1 < len(toks) {
			out = append(out, toks[i+1])
		}
	}
	return out
}

// AfterCue returns the text following the first cue phrase found in s.
// Cues are matched on token boundaries in the order given.
func AfterCue(s string, cues ...string) (string, bool) {
	padded := " " + s + " "
	for _, cue := range cues {
		if i := strings.Index(padded, " "+cue+" "); i >= 0 {
			rest := padded[i+len(cue)+2:]
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

var digitWords = map[string]byte{
	"zero": '0', "oh": '0', "o": '0', "nought": '0', "nil": '0',
	"one": '1', "two": '2', "three": '3', "four": '4', "five": '5',
	"six": '6', "seven": '7', "eight": '8', "nine": '9',
}

// SpokenDigits extracts a digit string from spoken or written numbers:
// "oh four one two double three" becomes "041233". Written digits may carry
// separators ("0412-345-678"). Words that are not digits are skipped.
// plus reports whether a leading "plus" or "+" was present.
func SpokenDigits(s string) (digits string, plus bool) {
	var b strings.Builder
	toks := strings.Fields(strings.ToLower(s))
	repeat := 1
	for i, t := range toks {
		t = strings.Trim(t, ".,:")
		switch t {
		case "plus", "+":
			if b.Len() == 0 {
				plus = true
			}
			continue
		case "double":
			repeat = 2
			continue
		case "triple":
			repeat = 3
			continue
		}
		if strings.HasPrefix(t, "+") && b.Len() == 0 {
			plus = true
		}
		if d, ok := digitWords[t]; ok {
			// A lone "o" only counts as zero next to other digits.
			if t == "o" && !adjacentDigit(toks, i) {
				repeat = 1
				continue
			}
			for range repeat {
				b.WriteByte(d)
			}
			repeat = 1
			continue
		}
		written := onlyDigits(t)
		if written == "" {
			repeat = 1
			continue
		}
		if repeat > 1 && len(written) == 1 {
			written = strings.Repeat(written, repeat)
		}
		b.WriteString(written)
		repeat = 1
	}
	return b.String(), plus
}

func adjacentDigit(toks []string, i int) bool {
	isDigit := func(j int) bool {
		if j < 0 || j >= len(toks) {
			return false
		}
		t := strings.Trim(toks[j], ".,:")
		if _, ok := digitWords[t]; ok && t != "o" {
			return true
		}
		return onlyDigits(t) != "" || t == "double" || t == "triple"
	}
	return isDigit(i-1) || isDigit(i+1)
}

// onlyDigits returns the digits of t when t consists of digits and common
// separators only, otherwise "".
func onlyDigits(t string) string {
	var b strings.Builder
	for _, r := range t {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '.' || r == '(' || r == ')' || r == '+' || r == '/':
		default:
			return ""
		}
	}
	return b.String()
}
