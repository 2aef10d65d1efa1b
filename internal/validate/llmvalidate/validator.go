// Package llmvalidate implements a language-model-backed judge for captured
// values.
//
// The [Validator] sends the objective, the value kind and the composed value
// to an [llm.Provider] and asks for a structured JSON verdict. It is meant to
// run as a judge inside [validate.Chain], behind the deterministic rule gate:
// the model can veto a well-formed value (a typo'd provider domain, a date
// that is a public holiday) but never accept a malformed one.
//
// A reply that cannot be parsed is returned as an error wrapping
// [ErrUnparseable], so the chain fails over to the next judge or back to the
// rule verdict.
package llmvalidate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Spotfunnel/voiceOS-sub001/internal/validate"
	llm "github.com/Spotfunnel/voiceOS-sub001/pkg/provider/llm"
)

// Source is the Verdict.Source of verdicts produced by this package.
const Source = "llm"

const (
	defaultTemperature = 0.0
	defaultMaxTokens   = 256
	defaultLocale      = "en-AU"

	// defaultConfidence is used when the model omits a confidence. It sits
	// below the usual skip-confirmation threshold.
	defaultConfidence = 0.5
)

// ErrUnparseable is returned when the model reply is not a usable verdict.
var ErrUnparseable = errors.New("llmvalidate: unparseable reply")

const systemPromptTemplate = `You validate details that a caller has just given to a phone agent in the %s locale.

You will receive the objective being collected, the kind of value and the value itself as text transcribed from speech.

Rules:
- Judge only whether the value is plausible and usable for the objective.
- Flag common transcription errors, e.g. misspelt email providers ("gmial.com"), impossible street numbers or dates that cannot be meant.
- Do NOT correct the value. Do NOT invent missing parts.
- If you are unsure, say the value is valid with a low confidence.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{"is_valid": <true|false>, "confidence": <0.0-1.0>, "reason": "<short reason>"}`

type llmResponse struct {
	IsValid    *bool    `json:"is_valid"`
	Confidence *float64 `json:"confidence"`
	Reason     string   `json:"reason"`
}

// Option is a functional option for configuring a [Validator].
type Option func(*Validator)

// WithTemperature sets the sampling temperature. Default: 0.
func WithTemperature(temp float64) Option {
	return func(v *Validator) {
		v.temperature = temp
	}
}

// WithLocale names the caller locale in the system prompt. Default: en-AU.
func WithLocale(locale string) Option {
	return func(v *Validator) {
		if locale != "" {
			v.locale = locale
		}
	}
}

// WithMaxTokens caps the reply length. Default: 256.
func WithMaxTokens(n int) Option {
	return func(v *Validator) {
		v.maxTokens = n
	}
}

// Validator asks an [llm.Provider] to judge captured values. It is safe for
// concurrent use.
//
// Model selection follows the one-provider-per-model pattern: construct the
// [llm.Provider] with the model you want rather than overriding per request.
type Validator struct {
	llm         llm.Provider
	temperature float64
	maxTokens   int
	locale      string
}

var _ validate.Validator = (*Validator)(nil)

// New returns a Validator backed by provider.
func New(provider llm.Provider, opts ...Option) *Validator {
	v := &Validator{
		llm:         provider,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
		locale:      defaultLocale,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Validate implements [validate.Validator].
func (v *Validator) Validate(ctx context.Context, req validate.Request) (validate.Verdict, error) {
	resp, err := v.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: fmt.Sprintf(systemPromptTemplate, v.locale),
		Temperature:  v.temperature,
		MaxTokens:    v.maxTokens,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: userMessage(req)},
		},
	})
	if err != nil {
		return validate.Verdict{}, fmt.Errorf("llmvalidate: complete: %w", err)
	}
	if resp == nil {
		return validate.Verdict{}, fmt.Errorf("%w: empty response", ErrUnparseable)
	}
	return parseResponse(resp.Content)
}

func userMessage(req validate.Request) string {
	var sb strings.Builder
	if req.Objective != "" {
		fmt.Fprintf(&sb, "Objective: %s\n", req.Objective)
	}
	fmt.Fprintf(&sb, "Kind: %s\n", req.Kind.Label())
	fmt.Fprintf(&sb, "Value: %s", req.Value)
	return sb.String()
}

func parseResponse(content string) (validate.Verdict, error) {
	var r llmResponse
	if err := json.Unmarshal([]byte(stripMarkdown(content)), &r); err != nil {
		return validate.Verdict{}, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}
	if r.IsValid == nil {
		return validate.Verdict{}, fmt.Errorf("%w: missing is_valid", ErrUnparseable)
	}
	conf := defaultConfidence
	if r.Confidence != nil {
		conf = max(0, min(1, *r.Confidence))
	}
	return validate.Verdict{
		IsValid:    *r.IsValid,
		Confidence: conf,
		Reason:     strings.TrimSpace(r.Reason),
		Source:     Source,
	}, nil
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models put around JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
