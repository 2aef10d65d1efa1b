package address

import (
	"slices"
	"strconv"
	"strings"
)

// State is an Australian state or territory.
type State struct {
	Code string
	Name string

	// ranges are inclusive postcode ranges allocated to the state.
	ranges [][2]int
}

// States lists the Australian states and territories.
var States = []State{
	{Code: "NSW", Name: "New South Wales", ranges: [][2]int{{1000, 2599}, {2619, 2899}, {2921, 2999}}},
	{Code: "ACT", Name: "Australian Capital Territory", ranges: [][2]int{{200, 299}, {2600, 2618}, {2900, 2920}}},
	{Code: "VIC", Name: "Victoria", ranges: [][2]int{{3000, 3999}, {8000, 8999}}},
	{Code: "QLD", Name: "Queensland", ranges: [][2]int{{4000, 4999}, {9000, 9999}}},
	{Code: "SA", Name: "South Australia", ranges: [][2]int{{5000, 5999}}},
	{Code: "WA", Name: "Western Australia", ranges: [][2]int{{6000, 6999}}},
	{Code: "TAS", Name: "Tasmania", ranges: [][2]int{{7000, 7999}}},
	{Code: "NT", Name: "Northern Territory", ranges: [][2]int{{800, 999}}},
}

// StateName returns the full name for a state code, or "" if unknown.
func StateName(code string) string {
	if s, ok := lookupCode(code); ok {
		return s.Name
	}
	return ""
}

func lookupCode(code string) (State, bool) {
	code = strings.ToUpper(code)
	for _, s := range States {
		if s.Code == code {
			return s, true
		}
	}
	return State{}, false
}

// StateForPostcode returns the state code a postcode is allocated to.
func StateForPostcode(postcode string) (string, bool) {
	if !isPostcode(postcode) {
		return "", false
	}
	n, _ := strconv.Atoi(postcode)
	for _, s := range States {
		for _, r := range s.ranges {
			if n >= r[0] && n <= r[1] {
				return s.Code, true
			}
		}
	}
	return "", false
}

func isPostcode(t string) bool {
	if len(t) != 4 {
		return false
	}
	for _, r := range t {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// stateAliases maps lower-case spoken forms, including multi-word names, to
// state codes.
var stateAliases = func() map[string]string {
	m := make(map[string]string, 3*len(States))
	for _, s := range States {
		m[strings.ToLower(s.Code)] = s.Code
		m[strings.ToLower(s.Name)] = s.Code
	}
	m["vic"] = "VIC"
	m["tassie"] = "TAS"
	m["canberra act"] = "ACT"
	return m
}()

// findState locates the last state mention in toks. It returns the code, the
// index of the first token and the number of tokens the mention spans.
func findState(toks []string) (code string, at, n int, ok bool) {
	for i := len(toks) - 1; i >= 0; i-- {
		for span := 3; span >= 1; span-- {
			if i+span > len(toks) {
				continue
			}
			if c, found := stateAliases[strings.Join(toks[i:i+span], " ")]; found {
				return c, i, span, true
			}
		}
	}
	return "", 0, 0, false
}

// findStates returns every distinct state mentioned in toks.
func findStates(toks []string) []string {
	var out []string
	for i := 0; i < len(toks); i++ {
		for span := 3; span >= 1; span-- {
			if i+span > len(toks) {
				continue
			}
			c, found := stateAliases[strings.Join(toks[i:i+span], " ")]
			if !found {
				continue
			}
			if i+span < len(toks) && streetTypes[toks[i+span]] {
				i += span - 1
				break
			}
			if !slices.Contains(out, c) {
				out = append(out, c)
			}
			i += span - 1
			break
		}
	}
	return out
}

var streetTypes = map[string]bool{
	"street": true, "st": true, "road": true, "rd": true, "avenue": true, "ave": true,
	"drive": true, "dr": true, "lane": true, "ln": true, "place": true, "pl": true,
	"court": true, "ct": true, "crescent": true, "cres": true, "parade": true, "pde": true,
	"boulevard": true, "blvd": true, "terrace": true, "tce": true, "way": true,
	"highway": true, "hwy": true, "close": true, "cl": true, "circuit": true, "cct": true,
	"grove": true, "square": true, "sq": true, "esplanade": true, "esp": true,
}
