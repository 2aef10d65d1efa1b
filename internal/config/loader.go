package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/Spotfunnel/voiceOS-sub001/internal/graph"
)

// ValidProviderNames lists the LLM provider names that ship with the service.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = []string{"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Locale != "" {
		if _, err := language.Parse(cfg.Locale); err != nil {
			errs = append(errs, fmt.Errorf("locale %q is not a BCP-47 tag: %w", cfg.Locale, err))
		}
	}

	// Objectives
	if len(cfg.Objectives) == 0 {
		errs = append(errs, errors.New("objectives: at least one objective is required"))
	}
	seen := make(map[string]bool, len(cfg.Objectives))
	for i, o := range cfg.Objectives {
		prefix := fmt.Sprintf("objectives[%d]", i)
		if o.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else if seen[o.Name] {
			errs = append(errs, fmt.Errorf("%s: duplicate objective name %q", prefix, o.Name))
		}
		seen[o.Name] = true
		if !o.Kind.IsValid() {
			errs = append(errs, fmt.Errorf("%s.kind %q is invalid; valid values: email, phone, address, datetime", prefix, o.Kind))
		}
	}

	if _, err := graph.ParsePolicy(cfg.Graph.OnFailure); err != nil {
		errs = append(errs, fmt.Errorf("graph.on_failure: %w", err))
	}

	if cc := cfg.Capture.CountryCode; cc != "" && (!strings.HasPrefix(cc, "+") || len(cc) < 2) {
		errs = append(errs, fmt.Errorf("capture.country_code %q must look like +61", cc))
	}

	// Validator
	v := cfg.Validator
	if v.Mode != "" && !v.Mode.IsValid() {
		errs = append(errs, fmt.Errorf("validator.mode %q is invalid; valid values: rules, llm", v.Mode))
	}
	if v.Mode == ValidatorLLM && len(v.Providers) == 0 {
		errs = append(errs, errors.New("validator.providers: at least one provider is required in llm mode"))
	}
	for i, p := range v.Providers {
		prefix := fmt.Sprintf("validator.providers[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if p.Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", prefix))
		}
		validateProviderName(p.Name)
	}
	if v.Timeout < 0 {
		errs = append(errs, fmt.Errorf("validator.timeout %s must not be negative", v.Timeout))
	}
	if v.Temperature < 0 || v.Temperature > 2 {
		errs = append(errs, fmt.Errorf("validator.temperature %.2f must be within [0, 2]", v.Temperature))
	}
	cb := v.CircuitBreaker
	if cb.MaxFailures < 0 || cb.HalfOpenMax < 0 || cb.ResetTimeout < 0 {
		errs = append(errs, errors.New("validator.circuit_breaker: values must not be negative"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// [ValidProviderNames].
func validateProviderName(name string) {
	if name == "" || slices.Contains(ValidProviderNames, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"name", name,
		"known", ValidProviderNames,
	)
}
