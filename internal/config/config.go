package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultPageTimeout = 120 * time.Second
	DefaultEnvFile     = ".env"
	DefaultLogLevel    = "info"
)

type Config struct {
	TargetURL        string        `mapstructure:"target"`
	Parallel         int           `mapstructure:"parallel"`
	Repeat           int           `mapstructure:"repeat"`
	OpenDelay        time.Duration `mapstructure:"delay"`
	WaitText         string        `mapstructure:"wait_text"`
	PageTimeout      time.Duration `mapstructure:"page_timeout"`
	Headless         bool          `mapstructure:"headless"`
	ChromePath       string        `mapstructure:"chrome_path"`
	RemoteURL        string        `mapstructure:"remote_url"`
	ChromeFlags      []string      `mapstructure:"chrome_flags"`
	Rate             int           `mapstructure:"rate"`
	FailFast         bool          `mapstructure:"fail_fast"`
	NavigationTiming bool          `mapstructure:"navigation_timing"`
	JSONOutput       bool          `mapstructure:"json_output"`
	YAMLOutput       string        `mapstructure:"yaml_output"`
	HTMLOutput       string        `mapstructure:"html_output"`
	Dashboard        bool          `mapstructure:"dashboard"`
	Thresholds       []string      `mapstructure:"thresholds"`
	Tracing          TracingConfig `mapstructure:"tracing"`
	LogLevel         string        `mapstructure:"log_level"`
	ConfigFile       string        `mapstructure:"-"`
	EnvFile          string        `mapstructure:"-"`
}

// TracingConfig configures OpenTelemetry export of per-trial spans.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`     // OTLP collector address
	Protocol    string  `mapstructure:"protocol"`     // "grpc" (default) or "http"
	ServiceName string  `mapstructure:"service_name"` // defaults to OTEL_SERVICE_NAME, then "pagefire"
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"` // traceparent headers on page requests; nil follows Endpoint
}

// Enabled reports whether any tracing behavior was requested.
func (t TracingConfig) Enabled() bool {
	if t.Propagate != nil && *t.Propagate {
		return true
	}
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether W3C trace context is attached to page requests.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return strings.TrimSpace(t.Endpoint) != ""
}

// Skip reports whether the run has nothing to do. A missing target is a no-op,
// not an error.
func (c Config) Skip() bool {
	return strings.TrimSpace(c.TargetURL) == ""
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string
	var warnings []string

	if target := strings.TrimSpace(c.TargetURL); target != "" {
		if u, err := url.Parse(target); err != nil || u.Scheme == "" {
			issues = append(issues, fmt.Sprintf("target %q must be an absolute URL", target))
		}
	}

	if c.Parallel > 50 {
		warnings = append(warnings, fmt.Sprintf("WARNING: %d parallel browser sessions configured. Each session is a full browser tab; make sure the host has the memory for it.", c.Parallel))
	}
	if len(warnings) > 0 {
		for _, w := range warnings {
			fmt.Fprintln(os.Stderr, w)
		}
	}

	if c.Parallel < 1 {
		issues = append(issues, "parallel must be >= 1")
	}
	if c.Repeat < 1 {
		issues = append(issues, "repeat must be >= 1")
	}
	if c.OpenDelay < 0 {
		issues = append(issues, "delay must be >= 0")
	}
	if c.PageTimeout < 0 {
		issues = append(issues, "page-timeout must be >= 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.Dashboard && c.JSONOutput {
		issues = append(issues, "dashboard and json-output are mutually exclusive")
	}
	if strings.TrimSpace(c.RemoteURL) != "" && strings.TrimSpace(c.ChromePath) != "" {
		issues = append(issues, "remote-url and chrome-path are mutually exclusive")
	}

	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", "debug", "info", "warn", "error":
	default:
		issues = append(issues, fmt.Sprintf("log-level %q is not supported (debug, info, warn, error)", c.LogLevel))
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}

	return nil
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
