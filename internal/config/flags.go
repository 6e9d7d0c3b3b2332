package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Usage is the command line synopsis, including the positional arguments.
const Usage = "pagefire [parallel] [url] [repeat] [delayMs] [waitText] [flags]"

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           Usage,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Run shape
	flags.String("target", "", "Page URL to load (<ymdhms> and <rand> are expanded)")
	flags.IntP("parallel", "p", 1, "Number of concurrent browser sessions")
	flags.IntP("repeat", "n", 1, "Page loads per session")
	flags.IntP("delay", "d", 0, "Milliseconds between session starts")
	flags.StringP("wait-text", "w", "", "Text that must appear before a load counts as complete")
	flags.Duration("page-timeout", DefaultPageTimeout, "Upper bound for every browser operation")
	flags.IntP("rate", "r", 0, "Page loads per second across all sessions (0 means unlimited)")
	flags.Bool("fail-fast", false, "Cancel the remaining sessions after the first failure")

	// Browser
	flags.Bool("headless", false, "Run the browser without a window")
	flags.String("chrome-path", "", "Chrome or Chromium executable")
	flags.String("remote-url", "", "DevTools endpoint of an already running browser")
	flags.StringSlice("chrome-flag", nil, "Extra browser switch, e.g. --disable-gpu (repeatable)")
	flags.Bool("navigation-timing", false, "Capture Navigation Timing for every load")

	// Output
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.String("yaml-output", "", "Write a YAML report to the specified file path")
	flags.String("html-output", "", "Generate HTML report to the specified file path")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.String("log-level", DefaultLogLevel, "Log level: debug, info, warn or error")
	flags.StringSlice("threshold", nil, "Performance thresholds (repeatable, e.g., 'page_load:p95 < 2000')")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of trials to trace (0.0-1.0)")
	flags.Bool("tracing-insecure", false, "Disable TLS to the OTLP collector")
	flags.Bool("tracing-propagate", false, "Send W3C traceparent headers with page requests")

	// Sources
	flags.String("config", "", "Path to configuration file (JSON or YAML)")
	flags.String("env-file", DefaultEnvFile, "Dotenv file read for PARALLEL_COUNT, STRESS_TARGET_URL and friends")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
	fmt.Fprintf(out, "\nEnvironment:\n  PARALLEL_COUNT, STRESS_TARGET_URL, REPEAT_COUNT, OPEN_DELAY, RENDER_WAIT_SELECTOR\n")
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file and the environment.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("target") {
		val, err := fs.GetString("target")
		if err != nil {
			return err
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if fs.Changed("parallel") {
		val, err := fs.GetInt("parallel")
		if err != nil {
			return err
		}
		cfg.Parallel = val
	}
	if fs.Changed("repeat") {
		val, err := fs.GetInt("repeat")
		if err != nil {
			return err
		}
		cfg.Repeat = val
	}
	if fs.Changed("delay") {
		val, err := fs.GetInt("delay")
		if err != nil {
			return err
		}
		cfg.OpenDelay = time.Duration(val) * time.Millisecond
	}
	if fs.Changed("wait-text") {
		val, err := fs.GetString("wait-text")
		if err != nil {
			return err
		}
		cfg.WaitText = val
	}
	if fs.Changed("page-timeout") {
		val, err := fs.GetDuration("page-timeout")
		if err != nil {
			return err
		}
		cfg.PageTimeout = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}
	if fs.Changed("fail-fast") {
		val, err := fs.GetBool("fail-fast")
		if err != nil {
			return err
		}
		cfg.FailFast = val
	}
	if fs.Changed("headless") {
		val, err := fs.GetBool("headless")
		if err != nil {
			return err
		}
		cfg.Headless = val
	}
	if fs.Changed("chrome-path") {
		val, err := fs.GetString("chrome-path")
		if err != nil {
			return err
		}
		cfg.ChromePath = strings.TrimSpace(val)
	}
	if fs.Changed("remote-url") {
		val, err := fs.GetString("remote-url")
		if err != nil {
			return err
		}
		cfg.RemoteURL = strings.TrimSpace(val)
	}
	if fs.Changed("chrome-flag") {
		val, err := fs.GetStringSlice("chrome-flag")
		if err != nil {
			return err
		}
		cfg.ChromeFlags = val
	}
	if fs.Changed("navigation-timing") {
		val, err := fs.GetBool("navigation-timing")
		if err != nil {
			return err
		}
		cfg.NavigationTiming = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("yaml-output") {
		val, err := fs.GetString("yaml-output")
		if err != nil {
			return err
		}
		cfg.YAMLOutput = strings.TrimSpace(val)
	}
	if fs.Changed("html-output") {
		val, err := fs.GetString("html-output")
		if err != nil {
			return err
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = val
	}
	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}

	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = val
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}

	return nil
}
