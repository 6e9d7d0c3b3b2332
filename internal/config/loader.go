package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files, the environment and
// command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// Positional arguments, in order.
const (
	argParallel = iota
	argTarget
	argRepeat
	argDelay
	argWaitText
	maxPositionalArgs
)

// envKeys lists the environment variables consulted, in viper's lowercase form.
// The unprefixed names are the historic ones and are still honored.
var envKeys = struct {
	parallel, target, repeat, delay, waitText                  string
	pageTimeout, headless, chromePath, remoteURL, chromeFlags string
	rate, logLevel                                             string
}{
	parallel:    "parallel_count",
	target:      "stress_target_url",
	repeat:      "repeat_count",
	delay:       "open_delay",
	waitText:    "render_wait_selector",
	pageTimeout: "pagefire_page_timeout",
	headless:    "pagefire_headless",
	chromePath:  "pagefire_chrome_path",
	remoteURL:   "pagefire_remote_url",
	chromeFlags: "pagefire_chrome_flags",
	rate:        "pagefire_rate",
	logLevel:    "pagefire_log_level",
}

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load produces a Config from, in increasing precedence: the config file, the
// .env file, the process environment, flags and positional arguments
// ([parallel] [url] [repeat] [delayMs] [waitText]).
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	positional := flagSet.Args()
	if len(positional) > maxPositionalArgs {
		return nil, fmt.Errorf("expected at most %d positional arguments, got %d", maxPositionalArgs, len(positional))
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	envFile := flagSet.Lookup("env-file").Value.String()
	env, err := readEnvSettings(envFile, flagSet.Changed("env-file"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Parallel:    1,
		Repeat:      1,
		PageTimeout: DefaultPageTimeout,
		LogLevel:    DefaultLogLevel,
		ConfigFile:  configPath,
		EnvFile:     envFile,
		Tracing:     TracingConfig{SampleRate: 1.0},
	}

	if err := applyConfigSettings(cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyEnvSettings(cfg, env); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}
	if err := applyPositionalArgs(cfg, positional); err != nil {
		return nil, err
	}

	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	return cfg, nil
}

// readEnvSettings merges the dotenv file at path with the process environment,
// the environment winning. A missing file is ignored unless it was named explicitly.
func readEnvSettings(path string, explicit bool) (map[string]interface{}, error) {
	v := viper.New()
	v.AutomaticEnv()
	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("env file %s: %w", path, err)
			}
		}
	}

	settings := map[string]interface{}{}
	for _, key := range []string{
		envKeys.parallel, envKeys.target, envKeys.repeat, envKeys.delay, envKeys.waitText,
		envKeys.pageTimeout, envKeys.headless, envKeys.chromePath, envKeys.remoteURL,
		envKeys.chromeFlags, envKeys.rate, envKeys.logLevel,
	} {
		val := v.Get(key)
		if val == nil {
			continue
		}
		if s, ok := val.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		settings[key] = val
	}
	return settings, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "target", "url"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "parallel"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("parallel: %w", err)
		}
		cfg.Parallel = val
	}

	if raw, ok := lookupSetting(settings, "repeat"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("repeat: %w", err)
		}
		cfg.Repeat = val
	}

	if raw, ok := lookupSetting(settings, "delay", "open_delay", "open-delay"); ok {
		val, err := asMillis(raw)
		if err != nil {
			return fmt.Errorf("delay: %w", err)
		}
		cfg.OpenDelay = val
	}

	if raw, ok := lookupSetting(settings, "wait_text", "waittext", "wait-text"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("waitText: %w", err)
		}
		cfg.WaitText = val
	}

	if raw, ok := lookupSetting(settings, "page_timeout", "pagetimeout", "page-timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("pageTimeout: %w", err)
		}
		cfg.PageTimeout = dur
	}

	if raw, ok := lookupSetting(settings, "headless"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("headless: %w", err)
		}
		cfg.Headless = val
	}

	if raw, ok := lookupSetting(settings, "chrome_path", "chromepath", "chrome-path"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("chromePath: %w", err)
		}
		cfg.ChromePath = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "remote_url", "remoteurl", "remote-url"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("remoteURL: %w", err)
		}
		cfg.RemoteURL = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "chrome_flags", "chromeflags", "chrome-flags"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("chromeFlags: %w", err)
		}
		cfg.ChromeFlags = val
	}

	if raw, ok := lookupSetting(settings, "rate"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("rate: %w", err)
		}
		cfg.Rate = val
	}

	if raw, ok := lookupSetting(settings, "fail_fast", "failfast", "fail-fast"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("failFast: %w", err)
		}
		cfg.FailFast = val
	}

	if raw, ok := lookupSetting(settings, "navigation_timing", "navigationtiming", "navigation-timing"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("navigationTiming: %w", err)
		}
		cfg.NavigationTiming = val
	}

	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("jsonOutput: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "yamloutput", "yaml_output", "yaml-output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("yamlOutput: %w", err)
		}
		cfg.YAMLOutput = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "htmloutput", "html_output", "html-output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("htmlOutput: %w", err)
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = val
	}

	if raw, ok := lookupSetting(settings, "log_level", "loglevel", "log-level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("logLevel: %w", err)
		}
		cfg.LogLevel = val
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tc, err := parseTracingConfig(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tc
	}

	return nil
}

func parseTracingConfig(value interface{}, base TracingConfig) (TracingConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	tc := base
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		if tc.Endpoint, err = asString(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		if tc.Protocol, err = asString(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "service_name", "servicename", "service-name"); ok {
		if tc.ServiceName, err = asString(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "sample_rate", "samplerate", "sample-rate"); ok {
		if tc.SampleRate, err = asFloat64(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		if tc.Insecure, err = asBool(raw); err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("propagate: %w", err)
		}
		tc.Propagate = &val
	}
	return tc, nil
}

// applyEnvSettings applies environment values collected by readEnvSettings.
func applyEnvSettings(cfg *Config, env map[string]interface{}) error {
	if len(env) == 0 {
		return nil
	}

	if raw, ok := env[envKeys.parallel]; ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("PARALLEL_COUNT: %w", err)
		}
		cfg.Parallel = val
	}
	if raw, ok := env[envKeys.target]; ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("STRESS_TARGET_URL: %w", err)
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if raw, ok := env[envKeys.repeat]; ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("REPEAT_COUNT: %w", err)
		}
		cfg.Repeat = val
	}
	if raw, ok := env[envKeys.delay]; ok {
		val, err := asMillis(raw)
		if err != nil {
			return fmt.Errorf("OPEN_DELAY: %w", err)
		}
		cfg.OpenDelay = val
	}
	if raw, ok := env[envKeys.waitText]; ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("RENDER_WAIT_SELECTOR: %w", err)
		}
		cfg.WaitText = val
	}
	if raw, ok := env[envKeys.pageTimeout]; ok {
		val, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("PAGEFIRE_PAGE_TIMEOUT: %w", err)
		}
		cfg.PageTimeout = val
	}
	if raw, ok := env[envKeys.headless]; ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("PAGEFIRE_HEADLESS: %w", err)
		}
		cfg.Headless = val
	}
	if raw, ok := env[envKeys.chromePath]; ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("PAGEFIRE_CHROME_PATH: %w", err)
		}
		cfg.ChromePath = strings.TrimSpace(val)
	}
	if raw, ok := env[envKeys.remoteURL]; ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("PAGEFIRE_REMOTE_URL: %w", err)
		}
		cfg.RemoteURL = strings.TrimSpace(val)
	}
	if raw, ok := env[envKeys.chromeFlags]; ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("PAGEFIRE_CHROME_FLAGS: %w", err)
		}
		cfg.ChromeFlags = strings.Fields(val)
	}
	if raw, ok := env[envKeys.rate]; ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("PAGEFIRE_RATE: %w", err)
		}
		cfg.Rate = val
	}
	if raw, ok := env[envKeys.logLevel]; ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("PAGEFIRE_LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = val
	}
	return nil
}

// applyPositionalArgs applies [parallel] [url] [repeat] [delayMs] [waitText].
// Empty strings leave the lower-precedence value in place.
func applyPositionalArgs(cfg *Config, args []string) error {
	for i, arg := range args {
		if strings.TrimSpace(arg) == "" {
			continue
		}
		switch i {
		case argParallel:
			val, err := asInt(arg)
			if err != nil {
				return fmt.Errorf("parallel argument %q: %w", arg, err)
			}
			cfg.Parallel = val
		case argTarget:
			cfg.TargetURL = strings.TrimSpace(arg)
		case argRepeat:
			val, err := asInt(arg)
			if err != nil {
				return fmt.Errorf("repeat argument %q: %w", arg, err)
			}
			cfg.Repeat = val
		case argDelay:
			val, err := asMillis(arg)
			if err != nil {
				return fmt.Errorf("delay argument %q: %w", arg, err)
			}
			cfg.OpenDelay = val
		case argWaitText:
			cfg.WaitText = arg
		}
	}
	return nil
}
