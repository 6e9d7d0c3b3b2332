package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/torosent/pagefire/internal/browser"
	"github.com/torosent/pagefire/internal/metrics"
	"github.com/torosent/pagefire/internal/threshold"
)

// TrialRecord is one entry of the result sequence as it appears in reports.
type TrialRecord struct {
	Browser    int                       `json:"browser" yaml:"browser"`
	Times      int                       `json:"times" yaml:"times"`
	DurationMs int64                     `json:"duration" yaml:"duration"`
	EndTime    string                    `json:"end_time" yaml:"end_time"`
	Timing     *browser.NavigationTiming `json:"navigation_timing,omitempty" yaml:"navigation_timing,omitempty"`
}

// ThresholdResultJSON is a threshold outcome in machine-readable form.
type ThresholdResultJSON struct {
	Threshold string  `json:"threshold" yaml:"threshold"`
	Metric    string  `json:"metric" yaml:"metric"`
	Aggregate string  `json:"aggregate" yaml:"aggregate"`
	Operator  string  `json:"operator" yaml:"operator"`
	Expected  float64 `json:"expected" yaml:"expected"`
	Actual    float64 `json:"actual" yaml:"actual"`
	Pass      bool    `json:"pass" yaml:"pass"`
}

// ThresholdSummary aggregates threshold outcomes.
type ThresholdSummary struct {
	Total   int                   `json:"total" yaml:"total"`
	Passed  int                   `json:"passed" yaml:"passed"`
	Failed  int                   `json:"failed" yaml:"failed"`
	Results []ThresholdResultJSON `json:"results" yaml:"results"`
}

// Report is the complete outcome of a run: parameters, summary statistics and the
// full result set.
type Report struct {
	RunID      string            `json:"run_id" yaml:"run_id"`
	Params     Params            `json:"params" yaml:"params"`
	Started    time.Time         `json:"started" yaml:"started"`
	Finished   time.Time         `json:"finished" yaml:"finished"`
	Stats      metrics.Stats     `json:"stats" yaml:"stats"`
	NoData     bool              `json:"no_data,omitempty" yaml:"no_data,omitempty"`
	Error      string            `json:"error,omitempty" yaml:"error,omitempty"`
	Thresholds *ThresholdSummary `json:"thresholds,omitempty" yaml:"thresholds,omitempty"`
	Sequence   []TrialRecord     `json:"sequence" yaml:"sequence"`
	Durations  [][]int64         `json:"durations" yaml:"durations"`

	thresholdResults []threshold.Result
}

// NewReport builds a report from the collector once all sessions have joined.
// runErr is the error returned by the run, if any.
func NewReport(params Params, started, finished time.Time, collector *metrics.Collector, runErr error) Report {
	params.OpenDelayMs = params.OpenDelay.Milliseconds()
	stats, err := collector.Stats(finished.Sub(started))

	r := Report{
		RunID:    strings.ToLower(ulid.Make().String()),
		Params:   params,
		Started:  started,
		Finished: finished,
		Stats:    stats,
		NoData:   errors.Is(err, metrics.ErrNoData),
	}
	if runErr != nil {
		r.Error = runErr.Error()
	}

	trials := collector.Trials()
	r.Sequence = make([]TrialRecord, len(trials))
	for i, t := range trials {
		r.Sequence[i] = TrialRecord{
			Browser:    t.Worker,
			Times:      t.Number,
			DurationMs: t.DurationMs(),
			EndTime:    t.End.Format(ClockFormat),
			Timing:     t.Timing,
		}
	}

	workers := params.Parallel
	byWorker := collector.DurationsByWorker()
	for w := range byWorker {
		if w > workers {
			workers = w
		}
	}
	r.Durations = make([][]int64, workers)
	for i := range r.Durations {
		durations := byWorker[i+1]
		r.Durations[i] = make([]int64, len(durations))
		for j, d := range durations {
			r.Durations[i][j] = d.Milliseconds()
		}
	}
	return r
}

// WithThresholds attaches threshold outcomes to the report.
func (r *Report) WithThresholds(results []threshold.Result) {
	r.thresholdResults = results
	r.Thresholds = summarizeThresholds(results)
}

// Failed reports whether the run failed or any threshold did not pass.
func (r Report) Failed() bool {
	if r.Error != "" || r.Stats.Incomplete {
		return true
	}
	return r.Thresholds != nil && r.Thresholds.Failed > 0
}

func summarizeThresholds(results []threshold.Result) *ThresholdSummary {
	if len(results) == 0 {
		return nil
	}
	summary := &ThresholdSummary{
		Total:   len(results),
		Results: make([]ThresholdResultJSON, len(results)),
	}
	for i, tr := range results {
		summary.Results[i] = ThresholdResultJSON{
			Threshold: tr.Threshold.Raw,
			Metric:    tr.Threshold.Metric,
			Aggregate: tr.Threshold.Aggregate,
			Operator:  tr.Threshold.Operator,
			Expected:  tr.Threshold.Value,
			Actual:    tr.Actual,
			Pass:      tr.Pass,
		}
		if tr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// PrintReport outputs the human-readable summary followed by the result set.
func PrintReport(w io.Writer, r Report) {
	stats := r.Stats
	fmt.Fprintln(w, "\n******** result ********")
	if r.NoData {
		fmt.Fprintln(w, "no data: no page load completed")
	} else {
		fmt.Fprintf(w, "mean:%.2f(ms) min: %d(ms) max:%d(ms)\n",
			stats.MeanLatencyMs, stats.MinLatency.Milliseconds(), stats.MaxLatency.Milliseconds())
	}
	if stats.Incomplete {
		fmt.Fprintf(w, "INCOMPLETE: %d of %d sessions failed\n", stats.FailedSessions, r.Params.Parallel)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "error: %s\n", r.Error)
	}

	if !r.NoData {
		fmt.Fprintln(w, "\nPage loads:")
		fmt.Fprintf(w, "  Trials:          %d\n", stats.Total)
		fmt.Fprintf(w, "  Duration:        %s\n", stats.Duration.Round(time.Millisecond))
		fmt.Fprintf(w, "  Trials/sec:      %.2f\n", stats.TrialsPerSec)
		fmt.Fprintf(w, "  P50:             %.0fms\n", stats.P50LatencyMs)
		fmt.Fprintf(w, "  P90:             %.0fms\n", stats.P90LatencyMs)
		fmt.Fprintf(w, "  P95:             %.0fms\n", stats.P95LatencyMs)
		fmt.Fprintf(w, "  P99:             %.0fms\n", stats.P99LatencyMs)
	}

	if len(stats.Workers) > 0 {
		fmt.Fprintln(w, "\nBrowsers:")
		for _, ws := range stats.Workers {
			line := fmt.Sprintf("  #%d: trials=%d", ws.Worker, ws.Trials)
			if ws.Trials > 0 {
				line += fmt.Sprintf(", mean=%.2fms, min=%.0fms, max=%.0fms", ws.MeanLatencyMs, ws.MinLatencyMs, ws.MaxLatencyMs)
			}
			if ws.Error != "" {
				line += ", error=" + ws.Error
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(stats.Errors) > 0 {
		fmt.Fprintln(w, "\nFailures:")
		for _, label := range slices.Sorted(maps.Keys(stats.Errors)) {
			fmt.Fprintf(w, "  %s: %d\n", label, stats.Errors[label])
		}
	}

	if r.Thresholds != nil {
		fmt.Fprintf(w, "\nThresholds (%d/%d passed):\n", r.Thresholds.Passed, r.Thresholds.Total)
		for _, tr := range r.thresholdResults {
			fmt.Fprintf(w, "  %s\n", tr.Message)
		}
	}

	printResultSet(w, r)
}

func printResultSet(w io.Writer, r Report) {
	fmt.Fprintln(w, "\nsequence:")
	if len(r.Sequence) == 0 {
		fmt.Fprintln(w, "  []")
	}
	for _, rec := range r.Sequence {
		fmt.Fprintf(w, "  { browser: %d, times: %d, duration: %d, endTime: '%s' }\n",
			rec.Browser, rec.Times, rec.DurationMs, rec.EndTime)
	}
	fmt.Fprintln(w, "durations:")
	for _, durations := range r.Durations {
		parts := make([]string, len(durations))
		for i, d := range durations {
			parts[i] = fmt.Sprintf("%d", d)
		}
		fmt.Fprintf(w, "  [ %s ]\n", strings.Join(parts, ", "))
	}
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteYAMLReport writes the report as YAML to w.
func WriteYAMLReport(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return err
	}
	return enc.Close()
}

// WriteReportFile creates path and writes the report into it with write.
func WriteReportFile(path string, r Report, write func(io.Writer, Report) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := write(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}
