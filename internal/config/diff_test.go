package config_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Spotfunnel/voiceOS-sub001/internal/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Objectives: []config.ObjectiveConfig{
			{Name: "contact_email", Kind: "email"},
			{Name: "contact_phone", Kind: "phone", Critical: true},
			{Name: "service_address", Kind: "address"},
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := baseConfig()
	d := config.Diff(cfg, cfg)
	if d.PlanChanged || d.LogLevelChanged || len(d.ObjectiveChanges) != 0 {
		t.Errorf("Diff(identical) = %+v, want no changes", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("Diff() = %+v, want log level debug", d)
	}
	if d.PlanChanged {
		t.Error("PlanChanged = true for a log level change")
	}
}

func TestDiff_Objectives(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Objectives: []config.ObjectiveConfig{
			{Name: "contact_phone", Kind: "phone", Critical: false},
			{Name: "contact_email", Kind: "email"},
			{Name: "callback_time", Kind: "datetime"},
		},
	}

	d := config.Diff(old, new)
	want := []config.ObjectiveDiff{
		{Name: "contact_email", Moved: true},
		{Name: "contact_phone", CriticalChanged: true, Moved: true},
		{Name: "service_address", Removed: true},
		{Name: "callback_time", Added: true},
	}
	if diff := cmp.Diff(want, d.ObjectiveChanges); diff != "" {
		t.Errorf("ObjectiveChanges mismatch (-want +got):\n%s", diff)
	}
	if !d.PlanChanged {
		t.Error("PlanChanged = false")
	}
}

func TestDiff_KindChanged(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Objectives[2].Kind = "datetime"

	d := config.Diff(old, new)
	if len(d.ObjectiveChanges) != 1 || !d.ObjectiveChanges[0].KindChanged {
		t.Errorf("ObjectiveChanges = %+v, want service_address kind change", d.ObjectiveChanges)
	}
}

func TestDiff_Policy(t *testing.T) {
	t.Parallel()
	old := baseConfig()
	new := baseConfig()
	new.Graph.OnFailure = "skip"

	d := config.Diff(old, new)
	if !d.PolicyChanged || !d.PlanChanged {
		t.Errorf("Diff() = %+v, want policy change", d)
	}

	// "" and "abort" are the same policy.
	new.Graph.OnFailure = "abort"
	if d := config.Diff(old, new); d.PolicyChanged {
		t.Error("PolicyChanged = true for empty vs abort")
	}
}
