package session

import (
	"strings"
	"unicode"

	"github.com/Spotfunnel/voiceOS-sub001/internal/objective"
)

// Closing prompts once the graph has ended.
const (
	promptCompleted = "That's everything I need, thank you."
	promptAborted   = "Someone from the team will follow up with you to finish this."
)

// Reply is what the agent should say after an event.
type Reply struct {
	// Objective is the name of the active objective; empty once done.
	Objective string

	// State is the active objective's state.
	State objective.State

	// Prompt is the text to speak. A language model may rephrase it but never
	// chooses it.
	Prompt string

	Done    bool
	Aborted bool
}

func (s *Session) reply(ack string) Reply {
	r := Reply{Done: s.g.Done(), Aborted: s.g.Aborted()}
	if obj, ok := s.g.Active(); ok {
		r.Objective = obj.Type
		r.State = obj.State()
		r.Prompt = joinPrompt(ack, obj.Prompt())
		return r
	}
	if !r.Done {
		return r
	}
	if r.Aborted {
		r.Prompt = joinPrompt(ack, promptAborted)
	} else {
		r.Prompt = joinPrompt(ack, promptCompleted)
	}
	return r
}

func joinPrompt(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}

type replyKind int

const (
	replyOther replyKind = iota
	replyAffirm
)

// affirmWords carry the affirmation; glueWords may surround them.
var (
	affirmWords = map[string]bool{
		"yes": true, "yeah": true, "yep": true, "yup": true, "correct": true,
		"right": true, "sure": true, "perfect": true, "exactly": true,
		"absolutely": true, "ok": true, "okay": true, "affirmative": true,
	}
	glueWords = map[string]bool{
		"that's": true, "thats": true, "that": true, "is": true, "it's": true,
		"it": true, "all": true, "spot": true, "on": true, "sounds": true,
		"good": true, "great": true, "thanks": true, "thank": true, "you": true,
		"please": true, "mate": true, "uh": true, "um": true,
	}
)

// classify reports whether text in a confirmation turn is a plain
// affirmation. Anything else is treated as a correction attempt.
func classify(text string) replyKind {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\'' && r != '’'
	})
	affirmed := false
	for _, w := range words {
		w = strings.ReplaceAll(w, "’", "'")
		switch {
		case affirmWords[w]:
			affirmed = true
		case glueWords[w]:
		default:
			return replyOther
		}
	}
	if affirmed {
		return replyAffirm
	}
	return replyOther
}
