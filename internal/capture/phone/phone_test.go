package phone_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Spotfunnel/voiceOS-sub001/internal/capture"
	"github.com/Spotfunnel/voiceOS-sub001/internal/capture/phone"
)

func TestParse(t *testing.T) {
	t.Parallel()

	p := phone.New()
	tests := []struct {
		name    string
		in      string
		want    capture.Components
		wantLow bool
	}{
		{
			name: "spoken mobile",
			in:   "oh four one two three four five six seven eight",
			want: capture.Components{phone.FieldCountryPrefix: "", phone.FieldTrunkDigits: "041234", phone.FieldLastFour: "5678"},
		},
		{
			name: "international",
			in:   "+61 412 345 678",
			want: capture.Components{phone.FieldCountryPrefix: "+61", phone.FieldTrunkDigits: "41234", phone.FieldLastFour: "5678"},
		},
		{
			name: "international with trunk zero",
			in:   "plus six one oh four one two three four five six seven eight",
			want: capture.Components{phone.FieldCountryPrefix: "+61", phone.FieldTrunkDigits: "41234", phone.FieldLastFour: "5678"},
		},
		{
			name: "double and triple",
			in:   "oh two nine triple eight double seven six five",
			want: capture.Components{phone.FieldCountryPrefix: "", phone.FieldTrunkDigits: "029888", phone.FieldLastFour: "7765"},
		},
		{
			name:    "too short",
			in:      "four five six",
			want:    capture.Components{phone.FieldCountryPrefix: "", phone.FieldTrunkDigits: "456", phone.FieldLastFour: ""},
			wantLow: true,
		},
		{
			name:    "no digits",
			in:      "I don't have a phone",
			want:    capture.Components{},
			wantLow: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := p.Parse(tt.in)
			if diff := cmp.Diff(tt.want, r.Components); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
			if r.LowConfidence != tt.wantLow {
				t.Errorf("Parse(%q) LowConfidence = %v (%.2f), want %v", tt.in, r.LowConfidence, r.Confidence, tt.wantLow)
			}
		})
	}
}

func TestIncrementalRepair(t *testing.T) {
	t.Parallel()

	p := phone.New()
	prev := p.Parse("0412345678").Components
	tests := []struct {
		correction string
		want       string
	}{
		{"ending in 6789", "0412346789"},
		{"no, the last four digits are six seven eight nine", "0412346789"},
		{"it ends in 99", "0412345699"},
		{"starts with oh four one three", "0413345678"},
		{"not 5678 it's 6789", "0412346789"},
		{"it's 6789 not 5678", "0412346789"},
		{"it's oh four nine eight seven six five four three two", "0498765432"},
		{"ending in 6789 not 5678", "0412346789"},
		{"the last four are 6789 not 5678", "0412346789"},
		{"ending in six seven eight nine, not five six seven eight", "0412346789"},
		{"starts with 0413 not 0412", "0413345678"},
	}
	for _, tt := range tests {
		got, err := p.IncrementalRepair(tt.correction, prev)
		if err != nil {
			t.Errorf("IncrementalRepair(%q) error = %v", tt.correction, err)
			continue
		}
		if c := p.Compose(got); c != tt.want {
			t.Errorf("IncrementalRepair(%q) = %q, want %q", tt.correction, c, tt.want)
		}
	}
}

func TestIncrementalRepair_PreservesCountryPrefix(t *testing.T) {
	t.Parallel()

	p := phone.New()
	prev := p.Parse("+61 412 345 678").Components
	got, err := p.IncrementalRepair("ending in 6789", prev)
	if err != nil {
		t.Fatalf("IncrementalRepair() error = %v", err)
	}
	if c := p.Compose(got); c != "+61412346789" {
		t.Errorf("IncrementalRepair() = %q, want %q", c, "+61412346789")
	}
	if got.Get(phone.FieldCountryPrefix) != "+61" {
		t.Errorf("country prefix = %q, want +61", got.Get(phone.FieldCountryPrefix))
	}
}

func TestIncrementalRepair_Ambiguous(t *testing.T) {
	t.Parallel()

	p := phone.New()
	prev := p.Parse("0412345678").Components
	for _, corr := range []string{
		"six seven",
		"ending in",
		"not 4 it's 5",
		"that's not right",
		"ending in 346789",
		"ending in not 5678",
	} {
		_, err := p.IncrementalRepair(corr, prev)
		if !errors.Is(err, capture.ErrAmbiguousCorrection) {
			t.Errorf("IncrementalRepair(%q) error = %v, want ErrAmbiguousCorrection", corr, err)
		}
	}
}

func TestConfirmationPhrase(t *testing.T) {
	t.Parallel()

	p := phone.New()
	tests := []struct {
		in, want string
	}{
		{"0412345678", "0412 345 678"},
		{"0298887765", "02 9888 7765"},
		{"+61412345678", "+61 412 345 678"},
	}
	for _, tt := range tests {
		got := p.ConfirmationPhrase(p.Parse(tt.in).Components)
		if !strings.Contains(got, tt.want) {
			t.Errorf("ConfirmationPhrase(%s) = %q, want it to contain %q", tt.in, got, tt.want)
		}
	}
}

func TestValid(t *testing.T) {
	t.Parallel()

	p := phone.New()
	for in, want := range map[string]bool{
		"0412345678":   true,
		"+61412345678": true,
		"98765432":     true,
		"041234":       false,
		"12":           false,
	} {
		if got := p.Valid(p.Parse(in).Components); got != want {
			t.Errorf("Valid(%s) = %v, want %v", in, got, want)
		}
	}
}

func TestWithCountryCode(t *testing.T) {
	t.Parallel()

	p := phone.New(phone.WithCountryCode("+64"))
	got := p.Parse("+64 21 123 4567").Components
	if got.Get(phone.FieldCountryPrefix) != "+64" {
		t.Errorf("country prefix = %q, want +64", got.Get(phone.FieldCountryPrefix))
	}
	if p.Compose(got) != "+64211234567" {
		t.Errorf("Compose() = %q", p.Compose(got))
	}
}
