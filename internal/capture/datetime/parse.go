package datetime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoRe   = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	slashRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{2}|\d{4}))?$`)
	dayRe   = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?$`)
	clockRe = regexp.MustCompile(`^(\d{1,2})(?:[:.](\d{2}))?(am|pm)?$`)
	yearRe  = regexp.MustCompile(`^\d{4}$`)
)

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may":  time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sep": time.September, "sept": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

var hourWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

// ordinals maps spoken ordinals to day numbers. Compound forms ("twenty
// first") are joined by [joinOrdinals] before lookup.
var ordinals = func() map[string]int {
	units := []string{"first", "second", "third", "fourth", "fifth", "sixth", "seventh", "eighth", "ninth"}
	teens := []string{"tenth", "eleventh", "twelfth", "thirteenth", "fourteenth", "fifteenth",
		"sixteenth", "seventeenth", "eighteenth", "nineteenth"}
	m := make(map[string]int, 31)
	for i, u := range units {
		m[u] = i + 1
		m["twenty "+u] = 21 + i
	}
	for i, t := range teens {
		m[t] = 10 + i
	}
	m["twentieth"] = 20
	m["thirtieth"] = 30
	m["thirty first"] = 31
	return m
}()

// prepare normalises spoken time markers and joins compound ordinals so each
// date or time element occupies one token.
func prepare(s string) []string {
	s = strings.NewReplacer(
		"p.m.", "pm", "a.m.", "am", "p.m", "pm", "a.m", "am",
		"o'clock", "oclock", "twenty-", "twenty ", "thirty-", "thirty ",
	).Replace(s)
	var toks []string
	for _, f := range strings.Fields(s) {
		toks = append(toks, strings.TrimSuffix(f, "."))
	}
	return joinOrdinals(toks)
}

func joinOrdinals(toks []string) []string {
	out := toks[:0:0]
	for i := 0; i < len(toks); i++ {
		if i+1 < len(toks) && (toks[i] == "twenty" || toks[i] == "thirty") {
			if n, ok := ordinals[toks[i]+" "+toks[i+1]]; ok {
				out = append(out, strconv.Itoa(n)+"th")
				i++
				continue
			}
		}
		if n, ok := ordinals[toks[i]]; ok {
			out = append(out, strconv.Itoa(n)+"th")
			continue
		}
		out = append(out, toks[i])
	}
	return out
}

// parseDate finds a calendar date in toks relative to now.
func parseDate(toks []string, now time.Time) (time.Time, bool) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for i, t := range toks {
		prev := ""
		if i > 0 {
			prev = toks[i-1]
		}
		switch {
		case isoRe.MatchString(t):
			if d, err := time.ParseInLocation("2006-01-02", t, now.Location()); err == nil {
				return d, true
			}
		case slashRe.MatchString(t):
			m := slashRe.FindStringSubmatch(t)
			day, _ := strconv.Atoi(m[1])
			mon, _ := strconv.Atoi(m[2])
			year := 0
			if m[3] != "" {
				year, _ = strconv.Atoi(m[3])
				if year < 100 {
					year += 2000
				}
			}
			if d, ok := calendarDate(today, year, time.Month(mon), day); ok {
				return d, true
			}
		case t == "today" || t == "tonight":
			return today, true
		case t == "tomorrow":
			if prev == "after" {
				return today.AddDate(0, 0, 2), true
			}
			return today.AddDate(0, 0, 1), true
		}
		if wd, ok := weekdays[strings.TrimSuffix(t, "s")]; ok {
			return nextWeekday(today, wd, prev == "this"), true
		}
		if mon, ok := months[t]; ok {
			day, ok := dayNear(toks, i)
			if !ok {
				continue
			}
			if d, ok := calendarDate(today, yearNear(toks, i), mon, day); ok {
				return d, true
			}
		}
	}
	return time.Time{}, false
}

// dayNear finds the day of month around the month token at i: "3rd of
// march", "the 3rd march" or "march 3rd".
func dayNear(toks []string, i int) (int, bool) {
	cands := []int{i + 1}
	if i > 0 {
		cands = append([]int{i - 1}, cands...)
		if toks[i-1] == "of" && i > 1 {
			cands[0] = i - 2
		}
	}
	if i+2 < len(toks) && toks[i+1] == "the" {
		cands = append(cands, i+2)
	}
	for _, j := range cands {
		if j >= len(toks) {
			continue
		}
		if m := dayRe.FindStringSubmatch(toks[j]); m != nil {
			n, _ := strconv.Atoi(m[1])
			if n >= 1 && n <= 31 {
				return n, true
			}
		}
	}
	return 0, false
}

func yearNear(toks []string, i int) int {
	for j := i + 1; j < len(toks) && j <= i+2; j++ {
		if yearRe.MatchString(toks[j]) {
			y, _ := strconv.Atoi(toks[j])
			return y
		}
	}
	return 0
}

// calendarDate builds a date, rolling a yearless date that has already passed
// into next year. Invalid days (31 February) are rejected.
func calendarDate(today time.Time, year int, mon time.Month, day int) (time.Time, bool) {
	if mon < time.January || mon > time.December || day < 1 {
		return time.Time{}, false
	}
	explicit := year != 0
	if !explicit {
		year = today.Year()
	}
	d := time.Date(year, mon, day, 0, 0, 0, 0, today.Location())
	if d.Day() != day {
		return time.Time{}, false
	}
	if !explicit && d.Before(today) {
		d = d.AddDate(1, 0, 0)
	}
	return d, true
}

// nextWeekday returns the next date falling on wd. A bare weekday never means
// today; "this friday" said on a Friday does.
func nextWeekday(today time.Time, wd time.Weekday, allowToday bool) time.Time {
	delta := (int(wd) - int(today.Weekday()) + 7) % 7
	if delta == 0 && !allowToday {
		delta = 7
	}
	return today.AddDate(0, 0, delta)
}

// clock is a parsed time of day.
type clock struct {
	hour, minute int

	// guessed is set when the meridiem was inferred rather than heard.
	guessed bool
}

func (c clock) String() string { return fmt.Sprintf("%02d:%02d", c.hour, c.minute) }

// parseTime finds a time of day in toks.
func parseTime(toks []string) (clock, bool) {
	meridiem := periodHint(toks)
	for i, t := range toks {
		next, prev := "", ""
		if i+1 < len(toks) {
			next = toks[i+1]
		}
		if i > 0 {
			prev = toks[i-1]
		}
		switch t {
		case "noon", "midday":
			return clock{hour: 12}, true
		case "midnight":
			return clock{hour: 0}, true
		case "half", "quarter":
			if i+2 >= len(toks) || (next != "past" && !(next == "to" && t == "quarter")) {
				continue
			}
			h, ok := hourToken(toks[i+2])
			if !ok {
				continue
			}
			minute := 30
			if t == "quarter" {
				minute = 15
			}
			if next == "to" {
				// quarter to three is 2:45
				h, minute = (h+10)%12+1, 45
			}
			return resolve(h, minute, marker(toks, i+3, meridiem)), true
		}

		if m := clockRe.FindStringSubmatch(t); m != nil {
			h, _ := strconv.Atoi(m[1])
			minute := 0
			if m[2] != "" {
				minute, _ = strconv.Atoi(m[2])
			}
			mer := m[3]
			if mer == "" && (next == "am" || next == "pm") {
				mer = next
			}
			timeLike := mer != "" || m[2] != "" || next == "oclock" || prev == "at"
			if !timeLike || h > 23 || minute > 59 {
				continue
			}
			if h > 12 || (m[2] != "" && h == 0) {
				return clock{hour: h, minute: minute}, true
			}
			if mer == "" {
				mer = meridiem
			}
			return resolve(h, minute, mer), true
		}

		if h, ok := hourWords[t]; ok && (next == "am" || next == "pm" || next == "oclock" || prev == "at") {
			return resolve(h, 0, marker(toks, i+1, meridiem)), true
		}
	}
	return clock{}, false
}

func hourToken(t string) (int, bool) {
	if h, ok := hourWords[t]; ok {
		return h, true
	}
	if h, err := strconv.Atoi(t); err == nil && h >= 1 && h <= 12 {
		return h, true
	}
	return 0, false
}

func marker(toks []string, i int, fallback string) string {
	if i < len(toks) && (toks[i] == "am" || toks[i] == "pm") {
		return toks[i]
	}
	return fallback
}

// periodHint reads "in the morning", "afternoon", "evening" or "tonight".
func periodHint(toks []string) string {
	for _, t := range toks {
		switch t {
		case "morning":
			return "am"
		case "afternoon", "evening", "tonight", "night", "arvo":
			return "pm"
		}
	}
	return ""
}

// resolve converts a 12-hour reading to 24-hour time. Without a meridiem,
// business hours are assumed: 7 to 11 is morning, 12 to 6 is afternoon.
func resolve(h, minute int, mer string) clock {
	switch mer {
	case "am":
		if h == 12 {
			h = 0
		}
		return clock{hour: h, minute: minute}
	case "pm":
		if h != 12 {
			h += 12
		}
		return clock{hour: h, minute: minute}
	}
	if h >= 1 && h <= 6 {
		h += 12
	}
	return clock{hour: h, minute: minute, guessed: true}
}
