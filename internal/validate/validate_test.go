package validate_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Spotfunnel/voiceOS-sub001/internal/capture"
	"github.com/Spotfunnel/voiceOS-sub001/internal/capture/address"
	"github.com/Spotfunnel/voiceOS-sub001/internal/capture/datetime"
	"github.com/Spotfunnel/voiceOS-sub001/internal/capture/email"
	"github.com/Spotfunnel/voiceOS-sub001/internal/capture/phone"
	"github.com/Spotfunnel/voiceOS-sub001/internal/observe"
	"github.com/Spotfunnel/voiceOS-sub001/internal/resilience"
	"github.com/Spotfunnel/voiceOS-sub001/internal/validate"
)

func newRules() *validate.RuleValidator {
	return validate.NewRuleValidator(capture.NewRegistry(email.New(), phone.New(), address.New(), datetime.New()))
}

// stubJudge is a hand-written Validator with a call counter.
type stubJudge struct {
	verdict validate.Verdict
	err     error
	block   bool
	calls   atomic.Int32
}

func (s *stubJudge) Validate(ctx context.Context, _ validate.Request) (validate.Verdict, error) {
	s.calls.Add(1)
	if s.block {
		<-ctx.Done()
		return validate.Verdict{}, ctx.Err()
	}
	return s.verdict, s.err
}

func TestRuleValidator(t *testing.T) {
	t.Parallel()

	v := newRules()
	tests := []struct {
		name string
		req  validate.Request
		want bool
	}{
		{"written email", validate.Request{Kind: capture.KindEmail, Value: "jane@gmail.com"}, true},
		{
			"email components without tld",
			validate.Request{Kind: capture.KindEmail, Components: capture.Components{email.FieldLocalPart: "jane", email.FieldDomain: "gmail"}},
			false,
		},
		{"mobile", validate.Request{Kind: capture.KindPhone, Value: "0412345678"}, true},
		{"short phone", validate.Request{Kind: capture.KindPhone, Value: "041234"}, false},
		{"address", validate.Request{Kind: capture.KindAddress, Value: "12 George Street, Sydney NSW 2000"}, true},
		{"postcode outside state", validate.Request{Kind: capture.KindAddress, Value: "12 George Street, Sydney QLD 2000"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := v.Validate(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if got.IsValid != tt.want {
				t.Errorf("Validate() IsValid = %v (%s), want %v", got.IsValid, got.Reason, tt.want)
			}
			if got.Confidence != 1 || got.Source != validate.RuleSource {
				t.Errorf("Validate() = %+v, want certain verdict from %s", got, validate.RuleSource)
			}
		})
	}
}

func TestRuleValidator_UnsupportedKind(t *testing.T) {
	t.Parallel()

	_, err := newRules().Validate(context.Background(), validate.Request{Kind: "fax", Value: "x"})
	if !errors.Is(err, validate.ErrUnsupportedKind) {
		t.Errorf("Validate(fax) error = %v, want ErrUnsupportedKind", err)
	}
}

func TestChain_GateRejectionSkipsJudges(t *testing.T) {
	t.Parallel()

	judge := &stubJudge{verdict: validate.Verdict{IsValid: true, Confidence: 0.99}}
	c := validate.NewChain(newRules(), validate.WithJudge("llm", judge))

	got, err := c.Validate(context.Background(), validate.Request{Kind: capture.KindPhone, Value: "041234"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got.IsValid || got.Source != validate.RuleSource {
		t.Errorf("Validate() = %+v, want gate rejection", got)
	}
	if n := judge.calls.Load(); n != 0 {
		t.Errorf("judge called %d times, want 0", n)
	}
}

func TestChain_JudgeVerdict(t *testing.T) {
	t.Parallel()

	judge := &stubJudge{verdict: validate.Verdict{IsValid: false, Confidence: 1.4, Reason: "typo domain"}}
	c := validate.NewChain(newRules(), validate.WithJudge("llm", judge))

	got, err := c.Validate(context.Background(), validate.Request{Kind: capture.KindEmail, Value: "jane@gmial.com"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want := validate.Verdict{IsValid: false, Confidence: 1, Reason: "typo domain", Source: "llm"}
	if got != want {
		t.Errorf("Validate() = %+v, want %+v", got, want)
	}
}

func TestChain_FailsOverBetweenJudges(t *testing.T) {
	t.Parallel()

	primary := &stubJudge{err: errors.New("model unavailable")}
	secondary := &stubJudge{verdict: validate.Verdict{IsValid: true, Confidence: 0.8, Source: "backup"}}
	c := validate.NewChain(newRules(),
		validate.WithJudge("primary", primary),
		validate.WithJudge("secondary", secondary),
	)

	got, err := c.Validate(context.Background(), validate.Request{Kind: capture.KindPhone, Value: "0412345678"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !got.IsValid || got.Confidence != 0.8 || got.Source != "backup" {
		t.Errorf("Validate() = %+v, want secondary verdict", got)
	}
	if primary.calls.Load() != 1 || secondary.calls.Load() != 1 {
		t.Errorf("calls = %d/%d, want 1/1", primary.calls.Load(), secondary.calls.Load())
	}
}

func TestChain_AllJudgesFailDegradesToGate(t *testing.T) {
	t.Parallel()

	slow := &stubJudge{block: true}
	broken := &stubJudge{err: errors.New("bad json")}
	c := validate.NewChain(newRules(),
		validate.WithJudge("slow", slow),
		validate.WithJudge("broken", broken),
		validate.WithTimeout(10*time.Millisecond),
	)
	if got := c.Judges(); len(got) != 2 || got[0] != "slow" {
		t.Fatalf("Judges() = %v", got)
	}

	got, err := c.Validate(context.Background(), validate.Request{Kind: capture.KindPhone, Value: "0412345678"})
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if !got.IsValid || got.Confidence != 1 || got.Source != validate.RuleSource {
		t.Errorf("Validate() = %+v, want gate verdict", got)
	}
}

func TestChain_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := validate.NewChain(newRules(), validate.WithJudge("llm", &stubJudge{}))
	if _, err := c.Validate(ctx, validate.Request{Kind: capture.KindPhone, Value: "0412345678"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Validate() error = %v, want context.Canceled", err)
	}
}

func TestChain_GateError(t *testing.T) {
	t.Parallel()

	c := validate.NewChain(newRules())
	if _, err := c.Validate(context.Background(), validate.Request{Kind: "fax"}); !errors.Is(err, validate.ErrUnsupportedKind) {
		t.Errorf("Validate() error = %v, want ErrUnsupportedKind", err)
	}
}

func TestChain_Metrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	judge := &stubJudge{err: errors.New("boom")}
	c := validate.NewChain(newRules(),
		validate.WithJudge("llm", judge),
		validate.WithMetrics(m),
		validate.WithBreaker(resilience.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour}),
	)
	req := validate.Request{Kind: capture.KindPhone, Value: "0412345678"}
	for range 2 {
		if _, err := c.Validate(context.Background(), req); err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
	}
	// The second call finds the breaker open and never reaches the judge.
	if n := judge.calls.Load(); n != 1 {
		t.Errorf("judge calls = %d, want 1", n)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if got := sumWhere(rm, "voiceos.validation.errors", "validator", "llm"); got != 1 {
		t.Errorf("validation errors{llm} = %d, want 1", got)
	}
	if got := sumWhere(rm, "voiceos.breaker.transitions", "to", "open"); got != 1 {
		t.Errorf("breaker transitions{to=open} = %d, want 1", got)
	}
}

func sumWhere(rm metricdata.ResourceMetrics, name, key, value string) int64 {
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != name {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				return -1
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value(observe.Attr(key, "").Key); ok && v.AsString() == value {
					return dp.Value
				}
			}
		}
	}
	return 0
}
