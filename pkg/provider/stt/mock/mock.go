// Package mock provides scripted recogniser doubles for session tests.
//
// A [Session] plays back a fixed list of final transcripts, as if a caller
// had said them in order, and records the keyword hints the session layer
// pushes between objectives.
//
//	h := mock.NewSession(
//	    stt.Transcript{Text: "jane at gmail dot com", IsFinal: true, Confidence: 0.95},
//	)
//	h.Hangup() // close Finals after the script
//	p := &mock.Provider{Sessions: []*mock.Session{h}}
package mock

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/Spotfunnel/voiceOS-sub001/pkg/provider/stt"
)

// ErrNoSession is returned by [Provider.StartStream] once every scripted
// session has been handed out.
var ErrNoSession = errors.New("mock: no scripted session left")

// Provider hands out scripted sessions in order.
type Provider struct {
	mu sync.Mutex

	// Sessions are returned by successive StartStream calls.
	Sessions []*Session

	// StartStreamErr, if non-nil, fails every StartStream call.
	StartStreamErr error

	// Configs records the StreamConfig of every StartStream call.
	Configs []stt.StreamConfig

	next int
}

// StartStream records cfg and returns the next scripted session.
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Configs = append(p.Configs, cfg)
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if p.next >= len(p.Sessions) {
		return nil, ErrNoSession
	}
	s := p.Sessions[p.next]
	p.next++
	return s, nil
}

// Calls returns the number of StartStream calls so far.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Configs)
}

var _ stt.Provider = (*Provider)(nil)

// Session is a scripted [stt.SessionHandle]. Finals are buffered up front;
// Partials never emits.
type Session struct {
	finals   chan stt.Transcript
	partials chan stt.Transcript

	mu       sync.Mutex
	hints    [][]stt.KeywordBoost
	closes   int
	hungUp   bool
	audio    int
	closeErr error

	// KeywordsErr, if non-nil, is returned by SetKeywords.
	KeywordsErr error
}

// NewSession returns a session whose Finals channel already holds turns.
func NewSession(turns ...stt.Transcript) *Session {
	s := &Session{
		finals:   make(chan stt.Transcript, len(turns)),
		partials: make(chan stt.Transcript),
	}
	for _, t := range turns {
		s.finals <- t
	}
	return s
}

// Hangup closes Finals once the buffered turns have been read, simulating a
// dropped stream. It is safe to call more than once.
func (s *Session) Hangup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hungUp {
		s.hungUp = true
		close(s.finals)
	}
}

// SetCloseErr makes Close return err.
func (s *Session) SetCloseErr(err error) {
	s.mu.Lock()
	s.closeErr = err
	s.mu.Unlock()
}

// SendAudio counts the chunk and discards it.
func (s *Session) SendAudio([]byte) error {
	s.mu.Lock()
	s.audio++
	s.mu.Unlock()
	return nil
}

func (s *Session) Partials() <-chan stt.Transcript { return s.partials }
func (s *Session) Finals() <-chan stt.Transcript   { return s.finals }

// SetKeywords records a copy of keywords.
func (s *Session) SetKeywords(keywords []stt.KeywordBoost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints = append(s.hints, slices.Clone(keywords))
	return s.KeywordsErr
}

// Hints returns every keyword list pushed so far, oldest first.
func (s *Session) Hints() [][]stt.KeywordBoost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.hints)
}

// Close counts the call and returns the configured error.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return s.closeErr
}

// Closes returns how many times Close was called.
func (s *Session) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

var _ stt.SessionHandle = (*Session)(nil)
