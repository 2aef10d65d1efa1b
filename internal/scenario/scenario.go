// Package scenario replays scripted calls through capture sessions.
//
// A scenario file lists calls. Each call is a sequence of caller turns (what
// the speech recogniser would have produced) and the results expected once
// the call ends. [Runner] plays every call through a fresh session and
// reports where the outcome differs from the expectation.
package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Spotfunnel/voiceOS-sub001/internal/objective"
	"github.com/Spotfunnel/voiceOS-sub001/pkg/provider/stt"
)

// File is the root of a scenario document.
type File struct {
	Calls []Call `yaml:"calls"`
}

// Call is one scripted conversation.
type Call struct {
	Name   string `yaml:"name"`
	Turns  []Turn `yaml:"turns"`
	Expect Expect `yaml:"expect"`
}

// Turn is one caller utterance.
type Turn struct {
	// Say is the recognised text.
	Say string `yaml:"say"`

	// Confidence is the recogniser's score; zero means none reported.
	Confidence float64 `yaml:"confidence"`

	// Silence replaces the utterance with a no-input timeout.
	Silence bool `yaml:"silence"`
}

// Transcript converts the turn into what the recogniser would deliver.
func (t Turn) Transcript() stt.Transcript {
	if t.Silence {
		return stt.Transcript{IsFinal: true, Timeout: true}
	}
	return stt.Transcript{Text: t.Say, IsFinal: true, Confidence: t.Confidence}
}

// Expect is checked once the call has been replayed. Empty fields are not
// checked.
type Expect struct {
	// Outcome is "completed", "aborted" or "abandoned".
	Outcome string `yaml:"outcome"`

	// Values maps objective names to the value they should hold.
	Values map[string]string `yaml:"values"`

	// States maps objective names to their final state (e.g., "failed").
	States map[string]string `yaml:"states"`
}

var outcomes = map[string]bool{"": true, "completed": true, "aborted": true, "abandoned": true}

// Load reads and validates the scenario file at path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: open %q: %w", path, err)
	}
	defer f.Close()

	sf, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("scenario: parse %q: %w", path, err)
	}
	return sf, nil
}

// Parse decodes a scenario document from r. Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	sf := &File{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(sf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("scenario: decode yaml: %w", err)
	}
	if err := sf.Validate(); err != nil {
		return nil, err
	}
	return sf, nil
}

// Validate checks the document and returns every problem found.
func (f *File) Validate() error {
	var errs []error
	if len(f.Calls) == 0 {
		errs = append(errs, errors.New("calls: at least one call is required"))
	}
	seen := make(map[string]bool, len(f.Calls))
	for i, c := range f.Calls {
		prefix := fmt.Sprintf("calls[%d]", i)
		switch {
		case c.Name == "":
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		case seen[c.Name]:
			errs = append(errs, fmt.Errorf("%s: duplicate call name %q", prefix, c.Name))
		}
		seen[c.Name] = true
		for j, t := range c.Turns {
			if t.Confidence < 0 || t.Confidence > 1 {
				errs = append(errs, fmt.Errorf("%s.turns[%d].confidence %.2f must be within [0, 1]", prefix, j, t.Confidence))
			}
			if t.Silence && t.Say != "" {
				errs = append(errs, fmt.Errorf("%s.turns[%d]: say and silence are exclusive", prefix, j))
			}
		}
		if !outcomes[c.Expect.Outcome] {
			errs = append(errs, fmt.Errorf("%s.expect.outcome %q is invalid; valid values: completed, aborted, abandoned", prefix, c.Expect.Outcome))
		}
		for name, st := range c.Expect.States {
			if _, err := objective.ParseState(st); err != nil {
				errs = append(errs, fmt.Errorf("%s.expect.states[%s]: %w", prefix, name, err))
			}
		}
	}
	return errors.Join(errs...)
}
