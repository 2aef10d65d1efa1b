package objective

import (
	"maps"
	"time"
)

// EventName identifies an inbound event. Unknown names are accepted by
// [Machine.Transition] and ignored.
type EventName string

const (
	EventStart         EventName = "start"
	EventUserSpoke     EventName = "user_spoke"
	EventValidate      EventName = "validate"
	EventUserAffirmed  EventName = "user_affirmed"
	EventUserCorrected EventName = "user_corrected"
	EventRepaired      EventName = "repaired"
	EventComplete      EventName = "complete"
)

// Payload keys understood by the machine.
const (
	KeyConfidence = "confidence"
	KeyValue      = "value"
	KeyIsValid    = "is_valid"
	KeyIsCritical = "is_critical" // echoed into the transition log only
	KeyNewValue   = "new_value"
)

// EventData is the named-parameter payload that accompanies an event.
// Missing or mistyped keys read as zero values.
type EventData map[string]any

// Float returns the float64 stored under key. Integer values are widened.
func (d EventData) Float(key string) float64 {
	switch v := d[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

// Bool returns the bool stored under key.
func (d EventData) Bool(key string) bool {
	v, _ := d[key].(bool)
	return v
}

// String returns the string stored under key and whether it was present.
func (d EventData) String(key string) (string, bool) {
	v, ok := d[key].(string)
	return v, ok
}

// Transition is an immutable audit record of one state change. Records are
// appended to an objective's log in order and never modified.
type Transition struct {
	From      State
	To        State
	Event     EventName
	Timestamp time.Time

	// Data is a private copy of the event payload.
	Data EventData
}

// clone returns a deep-enough copy of t for handing to observers: the payload
// map is copied so later mutation by the reader cannot reach the log.
func (t Transition) clone() Transition {
	t.Data = maps.Clone(t.Data)
	return t
}
