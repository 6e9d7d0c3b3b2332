package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/torosent/pagefire/internal/config"
)

var envNames = []string{
	"PARALLEL_COUNT", "STRESS_TARGET_URL", "REPEAT_COUNT", "OPEN_DELAY", "RENDER_WAIT_SELECTOR",
	"PAGEFIRE_PAGE_TIMEOUT", "PAGEFIRE_HEADLESS", "PAGEFIRE_CHROME_PATH", "PAGEFIRE_REMOTE_URL",
	"PAGEFIRE_CHROME_FLAGS", "PAGEFIRE_RATE", "PAGEFIRE_LOG_LEVEL",
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, name := range envNames {
		t.Setenv(name, "")
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestParseFlagsDefaults(t *testing.T) {
	isolateEnv(t)
	loader := config.NewLoader()

	cfg, err := loader.Load([]string{})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TargetURL != "" {
		t.Errorf("TargetURL = %q, want empty", cfg.TargetURL)
	}
	if !cfg.Skip() {
		t.Error("Skip() = false, want true without a target")
	}
	if cfg.Parallel != 1 {
		t.Errorf("Parallel = %d, want 1", cfg.Parallel)
	}
	if cfg.Repeat != 1 {
		t.Errorf("Repeat = %d, want 1", cfg.Repeat)
	}
	if cfg.OpenDelay != 0 {
		t.Errorf("OpenDelay = %s, want 0", cfg.OpenDelay)
	}
	if cfg.PageTimeout != 120*time.Second {
		t.Errorf("PageTimeout = %s, want 2m0s", cfg.PageTimeout)
	}
	if cfg.Headless {
		t.Error("Headless = true, want false")
	}
	if cfg.Tracing.SampleRate != 1.0 {
		t.Errorf("Tracing.SampleRate = %g, want 1", cfg.Tracing.SampleRate)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadPositionalArgs(t *testing.T) {
	isolateEnv(t)
	cfg, err := config.NewLoader().Load([]string{"3", "https://example.com/app", "2", "1000", "Welcome"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Parallel != 3 || cfg.Repeat != 2 {
		t.Errorf("Parallel/Repeat = %d/%d, want 3/2", cfg.Parallel, cfg.Repeat)
	}
	if cfg.TargetURL != "https://example.com/app" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.OpenDelay != time.Second {
		t.Errorf("OpenDelay = %s, want 1s", cfg.OpenDelay)
	}
	if cfg.WaitText != "Welcome" {
		t.Errorf("WaitText = %q, want Welcome", cfg.WaitText)
	}
}

func TestLoadTooManyPositionalArgs(t *testing.T) {
	isolateEnv(t)
	_, err := config.NewLoader().Load([]string{"1", "https://example.com", "1", "0", "x", "extra"})
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
}

func TestLoadEnvironment(t *testing.T) {
	isolateEnv(t)
	t.Setenv("PARALLEL_COUNT", "4")
	t.Setenv("STRESS_TARGET_URL", "https://env.example.com")
	t.Setenv("REPEAT_COUNT", "5")
	t.Setenv("OPEN_DELAY", "200")
	t.Setenv("RENDER_WAIT_SELECTOR", "Loaded")
	t.Setenv("PAGEFIRE_HEADLESS", "true")

	cfg, err := config.NewLoader().Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Parallel != 4 || cfg.Repeat != 5 {
		t.Errorf("Parallel/Repeat = %d/%d, want 4/5", cfg.Parallel, cfg.Repeat)
	}
	if cfg.TargetURL != "https://env.example.com" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.OpenDelay != 200*time.Millisecond {
		t.Errorf("OpenDelay = %s, want 200ms", cfg.OpenDelay)
	}
	if cfg.WaitText != "Loaded" {
		t.Errorf("WaitText = %q, want Loaded", cfg.WaitText)
	}
	if !cfg.Headless {
		t.Error("Headless = false, want true")
	}
}

func TestLoadEnvFile(t *testing.T) {
	isolateEnv(t)
	path := writeFile(t, "stress.env", strings.Join([]string{
		"PARALLEL_COUNT=2",
		"STRESS_TARGET_URL=https://dotenv.example.com",
		"REPEAT_COUNT=3",
	}, "\n"))
	t.Setenv("REPEAT_COUNT", "9")

	cfg, err := config.NewLoader().Load([]string{"--env-file", path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Parallel != 2 {
		t.Errorf("Parallel = %d, want 2 from env file", cfg.Parallel)
	}
	if cfg.TargetURL != "https://dotenv.example.com" {
		t.Errorf("TargetURL = %q", cfg.TargetURL)
	}
	if cfg.Repeat != 9 {
		t.Errorf("Repeat = %d, want 9 (process env wins over env file)", cfg.Repeat)
	}
	if cfg.EnvFile != path {
		t.Errorf("EnvFile = %q, want %q", cfg.EnvFile, path)
	}
}

func TestLoadExplicitEnvFileMissing(t *testing.T) {
	isolateEnv(t)
	missing := filepath.Join(t.TempDir(), "absent.env")
	if _, err := config.NewLoader().Load([]string{"--env-file", missing}); err == nil {
		t.Fatal("Load() error = nil, want error for missing explicit env file")
	}
}

func TestLoadPrecedence(t *testing.T) {
	isolateEnv(t)
	path := writeFile(t, "config.yaml", strings.Join([]string{
		"target: https://file.example.com",
		"parallel: 2",
		"repeat: 2",
		"delay: 100",
	}, "\n"))
	t.Setenv("PARALLEL_COUNT", "3")
	t.Setenv("REPEAT_COUNT", "3")

	cfg, err := config.NewLoader().Load([]string{"--config", path, "--repeat", "4", "5"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.TargetURL != "https://file.example.com" {
		t.Errorf("TargetURL = %q, want value from config file", cfg.TargetURL)
	}
	if cfg.Parallel != 5 {
		t.Errorf("Parallel = %d, want 5 from positional argument", cfg.Parallel)
	}
	if cfg.Repeat != 4 {
		t.Errorf("Repeat = %d, want 4 from flag", cfg.Repeat)
	}
	if cfg.OpenDelay != 100*time.Millisecond {
		t.Errorf("OpenDelay = %s, want 100ms from config file", cfg.OpenDelay)
	}
}

func TestLoadConfigFileJSON(t *testing.T) {
	isolateEnv(t)
	path := writeFile(t, "config.json", `{
		"target": "https://api.example.com",
		"parallel": 10,
		"repeat": 3,
		"waitText": "Ready",
		"pageTimeout": "45s",
		"rate": 5,
		"failFast": true,
		"jsonOutput": true,
		"thresholds": ["page_load:p95 < 2000"],
		"tracing": {"endpoint": "localhost:4318", "protocol": "http", "insecure": true}
	}`)

	cfg, err := config.NewLoader().Load([]string{"--config", path, "--headless"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Parallel != 10 || cfg.Repeat != 3 {
		t.Errorf("Parallel/Repeat = %d/%d, want 10/3", cfg.Parallel, cfg.Repeat)
	}
	if cfg.WaitText != "Ready" {
		t.Errorf("WaitText = %q, want Ready", cfg.WaitText)
	}
	if cfg.PageTimeout != 45*time.Second {
		t.Errorf("PageTimeout = %s, want 45s", cfg.PageTimeout)
	}
	if cfg.Rate != 5 || !cfg.FailFast || !cfg.JSONOutput || !cfg.Headless {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if len(cfg.Thresholds) != 1 {
		t.Errorf("Thresholds = %v", cfg.Thresholds)
	}
	if cfg.Tracing.Protocol != "http" || !cfg.Tracing.Insecure || !cfg.Tracing.ShouldPropagate() {
		t.Errorf("Tracing = %+v", cfg.Tracing)
	}
}

func TestLoadHelp(t *testing.T) {
	isolateEnv(t)
	_, err := config.NewLoader().Load([]string{"--help"})
	if !errors.Is(err, config.ErrHelpRequested) {
		t.Fatalf("Load(--help) error = %v, want ErrHelpRequested", err)
	}
}

func TestConfigValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		have config.Config
		want []string
	}{
		{
			name: "relative target",
			have: config.Config{TargetURL: "example.com", Parallel: 1, Repeat: 1},
			want: []string{"target"},
		},
		{
			name: "non-positive values",
			have: config.Config{
				TargetURL:   "https://example.com",
				Parallel:    0,
				Repeat:      0,
				OpenDelay:   -time.Millisecond,
				PageTimeout: -1,
				Rate:        -5,
			},
			want: []string{"parallel", "repeat", "delay", "page-timeout", "rate"},
		},
		{
			name: "output conflict",
			have: config.Config{
				TargetURL:  "https://example.com",
				Parallel:   1,
				Repeat:     1,
				Dashboard:  true,
				JSONOutput: true,
			},
			want: []string{"dashboard"},
		},
		{
			name: "browser conflict",
			have: config.Config{
				TargetURL:  "https://example.com",
				Parallel:   1,
				Repeat:     1,
				ChromePath: "/usr/bin/chromium",
				RemoteURL:  "ws://127.0.0.1:9222",
			},
			want: []string{"remote-url"},
		},
		{
			name: "tracing",
			have: config.Config{
				TargetURL: "https://example.com",
				Parallel:  1,
				Repeat:    1,
				Tracing:   config.TracingConfig{Protocol: "thrift", SampleRate: 2},
			},
			want: []string{"protocol", "sample_rate"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.have.Validate()
			if err == nil {
				t.Fatalf("Validate() error = nil, want error")
			}
			var verr config.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error type = %T, want ValidationError", err)
			}
			for _, want := range tc.want {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("Validate() error %q missing %q", err.Error(), want)
				}
			}
		})
	}
}

func TestConfigValidateAcceptsMissingTarget(t *testing.T) {
	cfg := config.Config{Parallel: 1, Repeat: 1}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestTracingConfigEnabled(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	if (config.TracingConfig{}).Enabled() {
		t.Error("empty TracingConfig should be disabled")
	}
	on, off := true, false
	if !(config.TracingConfig{Propagate: &on}).Enabled() {
		t.Error("Propagate should enable tracing")
	}
	tc := config.TracingConfig{Endpoint: "localhost:4317"}
	if !tc.Enabled() || !tc.ShouldPropagate() {
		t.Error("endpoint should enable tracing and propagation")
	}
	tc.Propagate = &off
	if tc.ShouldPropagate() {
		t.Error("explicit Propagate=false should win over the endpoint")
	}
}
