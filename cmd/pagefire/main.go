package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/torosent/pagefire/internal/browser"
	"github.com/torosent/pagefire/internal/config"
	"github.com/torosent/pagefire/internal/dashboard"
	"github.com/torosent/pagefire/internal/metrics"
	"github.com/torosent/pagefire/internal/output"
	"github.com/torosent/pagefire/internal/placeholders"
	"github.com/torosent/pagefire/internal/runner"
	"github.com/torosent/pagefire/internal/threshold"
	"github.com/torosent/pagefire/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand(browser.NewChromeEngine()).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// newRootCommand wires the CLI. Flag parsing is left to config.Loader so that
// positional arguments, flags and the environment share one precedence chain.
func newRootCommand(engine browser.Engine) *cobra.Command {
	root := &cobra.Command{
		Use:                config.Usage,
		Short:              "Measure page load times with concurrent browser sessions",
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceErrors:      true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args, engine, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	root.AddCommand(&cobra.Command{
		Use:                "smoke [flags]",
		Short:              "Launch the browser, open a blank page and close it again",
		Args:               cobra.ArbitraryArgs,
		DisableFlagParsing: true,
		SilenceErrors:      true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return smoke(cmd.Context(), args, engine, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	})
	return root
}

func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, engine browser.Engine, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.NewLoader().Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if cfg.Skip() {
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(stderr, cfg.LogLevel)

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	collector := metrics.NewCollector()
	params := output.Params{
		TargetURL: cfg.TargetURL,
		Parallel:  cfg.Parallel,
		Repeat:    cfg.Repeat,
		OpenDelay: cfg.OpenDelay,
		WaitText:  cfg.WaitText,
		Headless:  cfg.Headless,
		Rate:      cfg.Rate,
	}

	// The dashboard owns the terminal while it runs; console lines are kept and
	// flushed once it has stopped.
	var consoleBuf bytes.Buffer
	consoleOut := stdout
	switch {
	case cfg.JSONOutput:
		consoleOut = nil
	case cfg.Dashboard:
		consoleOut = &consoleBuf
	}
	if consoleOut != nil {
		output.PrintParams(consoleOut, params)
	}
	observers := []runner.Observer{output.NewConsole(consoleOut)}

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, dashboard.TestConfig{
			TargetURL:   cfg.TargetURL,
			Parallel:    cfg.Parallel,
			Repeat:      cfg.Repeat,
			OpenDelay:   cfg.OpenDelay,
			WaitText:    cfg.WaitText,
			Rate:        cfg.Rate,
			PageTimeout: cfg.PageTimeout,
			Headless:    cfg.Headless,
			ConfigFile:  cfg.ConfigFile,
		}, cancelRun)
		if err != nil {
			return err
		}
		observers = append(observers, dash)
		dash.Start()
	}

	var progress *output.ProgressReporter
	if cfg.JSONOutput {
		progress = output.NewProgressReporter(collector, cfg.Parallel*cfg.Repeat, progressInterval, stderr)
		progress.Start()
	}

	r := runner.New(runner.Options{
		TargetURL:        cfg.TargetURL,
		Parallel:         cfg.Parallel,
		Repeat:           cfg.Repeat,
		OpenDelay:        cfg.OpenDelay,
		WaitText:         cfg.WaitText,
		PageTimeout:      cfg.PageTimeout,
		Engine:           engine,
		Launch:           launchOptions(cfg),
		Recorder:         collector,
		Observer:         runner.Observers(observers...),
		Logger:           logger,
		Tracer:           tp.Tracer(),
		Propagate:        tp.ShouldPropagate(),
		RatePerSecond:    cfg.Rate,
		FailFast:         cfg.FailFast,
		URLExpander:      placeholders.New().Expand,
		NavigationTiming: cfg.NavigationTiming,
	})

	// Mark the actual start time in the collector so that live views measure
	// throughput from the moment the test began.
	collector.Start()
	res, runErr := r.Run(runCtx)

	if dash != nil {
		dash.Stop()
		_, _ = consoleBuf.WriteTo(stdout)
	}
	if progress != nil {
		progress.Stop()
		fmt.Fprintln(stderr)
	}

	if res.Started.IsZero() {
		return runErr
	}

	report := output.NewReport(params, res.Started, res.Finished, collector, runErr)
	if len(thresholds) > 0 {
		report.WithThresholds(threshold.NewEvaluator(thresholds).Evaluate(report.Stats))
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(stdout, report); err != nil {
			return err
		}
	} else {
		output.PrintReport(stdout, report)
	}

	if cfg.YAMLOutput != "" {
		if err := output.WriteReportFile(cfg.YAMLOutput, report, output.WriteYAMLReport); err != nil {
			return err
		}
		logger.Info("YAML report written", "path", cfg.YAMLOutput)
	}
	if cfg.HTMLOutput != "" {
		if err := output.WriteReportFile(cfg.HTMLOutput, report, output.GenerateHTMLReport); err != nil {
			return err
		}
		logger.Info("HTML report written", "path", cfg.HTMLOutput)
	}

	if !report.Failed() {
		return nil
	}
	if runErr != nil {
		return fmt.Errorf("%d of %d sessions failed: %w", res.FailedSessions, cfg.Parallel, runErr)
	}
	if report.Thresholds != nil && report.Thresholds.Failed > 0 {
		return fmt.Errorf("%d of %d thresholds failed", report.Thresholds.Failed, report.Thresholds.Total)
	}
	return errors.New("run incomplete")
}

func smoke(ctx context.Context, args []string, engine browser.Engine, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	logger := newLogger(stderr, cfg.LogLevel)

	start := time.Now()
	if err := runner.Smoke(ctx, engine, launchOptions(cfg), cfg.PageTimeout); err != nil {
		return fmt.Errorf("smoke test failed: %w", err)
	}
	logger.Debug("smoke test finished", "elapsed", time.Since(start))
	fmt.Fprintf(stdout, "browser OK (%s)\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func launchOptions(cfg *config.Config) browser.LaunchOptions {
	return browser.LaunchOptions{
		Headless:   cfg.Headless,
		ExecPath:   cfg.ChromePath,
		RemoteURL:  cfg.RemoteURL,
		ExtraFlags: cfg.ChromeFlags,
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
