package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Spotfunnel/voiceOS-sub001/internal/observe"
	"github.com/Spotfunnel/voiceOS-sub001/pkg/provider/stt"
)

// Default redial parameters.
const (
	defaultMaxRetries = 5
	defaultBackoff    = 250 * time.Millisecond
	defaultMaxBackoff = 5 * time.Second
)

// DialerConfig configures a [Dialer].
type DialerConfig struct {
	// Provider opens speech streams.
	Provider stt.Provider

	// Stream is passed to every StartStream call.
	Stream stt.StreamConfig

	// MaxRetries bounds consecutive failed attempts. Defaults to 5 if zero.
	MaxRetries int

	// Backoff is the initial wait between attempts. Doubles each attempt up
	// to MaxBackoff. Defaults to 250ms if zero.
	Backoff time.Duration

	// MaxBackoff caps the wait. Defaults to 5s if zero.
	MaxBackoff time.Duration
}

// Dialer opens speech streams with exponential backoff. Safe for concurrent
// use.
type Dialer struct {
	provider   stt.Provider
	cfg        stt.StreamConfig
	maxRetries int
	backoff    time.Duration
	maxBackoff time.Duration
}

// NewDialer returns a Dialer for cfg.
func NewDialer(cfg DialerConfig) *Dialer {
	d := &Dialer{
		provider:   cfg.Provider,
		cfg:        cfg.Stream,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		maxBackoff: cfg.MaxBackoff,
	}
	if d.maxRetries <= 0 {
		d.maxRetries = defaultMaxRetries
	}
	if d.backoff <= 0 {
		d.backoff = defaultBackoff
	}
	if d.maxBackoff <= 0 {
		d.maxBackoff = defaultMaxBackoff
	}
	return d
}

// Dial opens a stream, retrying failed attempts. It gives up after
// MaxRetries attempts or when ctx is cancelled.
func (d *Dialer) Dial(ctx context.Context) (stt.SessionHandle, error) {
	log := observe.Logger(ctx)
	wait := d.backoff
	var errs []error
	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		h, err := d.provider.StartStream(ctx, d.cfg)
		if err == nil {
			if attempt > 1 {
				log.Info("speech stream reconnected", "attempt", attempt)
			}
			return h, nil
		}
		errs = append(errs, err)
		log.Warn("speech stream attempt failed",
			"attempt", attempt,
			"max_retries", d.maxRetries,
			"backoff", wait,
			"err", err,
		)
		if attempt == d.maxRetries {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("session: dial: %w", ctx.Err())
		case <-timer.C:
		}
		wait = min(wait*2, d.maxBackoff)
	}
	return nil, fmt.Errorf("session: dial failed after %d attempts: %w", d.maxRetries, errors.Join(errs...))
}

// Serve runs the session over streams from d until the graph ends. A stream
// that closes early is replaced; the call resumes where it left off. At most
// MaxRetries replacements are made.
func (s *Session) Serve(ctx context.Context, d *Dialer) error {
	for drops := 0; ; drops++ {
		h, err := d.Dial(ctx)
		if err != nil {
			return err
		}
		err = s.Run(ctx, h)
		if cerr := h.Close(); cerr != nil {
			observe.Logger(ctx).Debug("close speech stream", "err", cerr)
		}
		if !errors.Is(err, ErrStreamClosed) {
			return err
		}
		if drops >= d.maxRetries {
			return fmt.Errorf("session: stream dropped %d times: %w", drops+1, err)
		}
		observe.Logger(observe.WithSessionID(ctx, s.id)).Warn("speech stream dropped, redialling", "drops", drops+1)
	}
}
