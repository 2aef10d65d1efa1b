// Package stt defines the speech-recogniser collaborator used by call
// sessions.
//
// A recogniser streams finalised [Transcript] values for one caller. The
// capture core never talks to a provider directly: the session layer reads
// finals from a [SessionHandle], normalises them and feeds the resulting
// utterances into the active objective. Keyword hints let the session bias
// recognition towards the vocabulary of the field being captured (email
// providers, suburbs, month names).
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrNotSupported is returned by SessionHandle.SetKeywords when the provider
// cannot update hints mid-session.
var ErrNotSupported = errors.New("stt: operation not supported")

// StreamConfig describes the audio format and recognition hints for a new
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. Telephony audio is usually 8000
	// or 16000.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-AU").
	Language string

	// Keywords is a list of vocabulary hints.
	Keywords []KeywordBoost
}

// SessionHandle represents an open recognition session for one caller.
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio. Calling SendAudio after
	// Close returns an error.
	SendAudio(chunk []byte) error

	// Partials emits interim hypotheses. They never drive the state machine.
	// The channel is closed when the session ends.
	Partials() <-chan Transcript

	// Finals emits committed recognition results. The channel is closed when
	// the session ends.
	Finals() <-chan Transcript

	// SetKeywords replaces the active keyword hints without restarting the
	// session. Providers that cannot do this return ErrNotSupported.
	SetKeywords(keywords []KeywordBoost) error

	// Close terminates the session. Calling Close more than once is safe.
	Close() error
}

// Provider opens recognition sessions.
type Provider interface {
	// StartStream opens a new streaming session. The caller owns the returned
	// handle and must Close it.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
