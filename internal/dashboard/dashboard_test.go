package dashboard

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/pagefire/internal/metrics"
)

// newTestDashboard builds a dashboard with widgets but without a terminal.
func newTestDashboard(collector *metrics.Collector, cfg TestConfig) *Dashboard {
	d := newDashboard(collector, cfg, nil)
	d.initWidgets()
	return d
}

func TestPercentOf(t *testing.T) {
	tests := []struct {
		name        string
		part, total int64
		want        int
	}{
		{"zero total", 5, 0, 0},
		{"half", 5, 10, 50},
		{"complete", 10, 10, 100},
		{"clamped", 12, 10, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentOf(tt.part, tt.total); got != tt.want {
				t.Errorf("percentOf(%d, %d) = %d, want %d", tt.part, tt.total, got, tt.want)
			}
		})
	}
}

func TestFormatErrorRows(t *testing.T) {
	rows := formatErrorRows(nil)
	if len(rows) != 1 || !strings.Contains(rows[0], "No failures") {
		t.Fatalf("expected no failures row, got %v", rows)
	}

	rows = formatErrorRows(map[string]int{
		"Browser error": 1,
		"Timeout":       3,
	})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !strings.Contains(rows[0], "Timeout") || !strings.Contains(rows[0], " 3") {
		t.Errorf("expected most frequent error first, got %q", rows[0])
	}
}

func TestTrialCompletedKeepsBoundedHistory(t *testing.T) {
	d := newDashboard(metrics.NewCollector(), TestConfig{}, nil)

	for i := 1; i <= historySize+20; i++ {
		d.TrialCompleted(metrics.Trial{Worker: 1, Number: i, Duration: time.Duration(i) * time.Millisecond})
	}

	if len(d.latencyHistory) != historySize {
		t.Fatalf("history length = %d, want %d", len(d.latencyHistory), historySize)
	}
	if d.latencyHistory[0] != 21 {
		t.Errorf("oldest entry = %v, want 21", d.latencyHistory[0])
	}
	if d.lastByWorker[1] != int64(historySize+20) {
		t.Errorf("last duration = %d, want %d", d.lastByWorker[1], historySize+20)
	}
}

func TestUpdate(t *testing.T) {
	collector := metrics.NewCollector()
	d := newTestDashboard(collector, TestConfig{TargetURL: "https://example.com/", Parallel: 2, Repeat: 2})
	d.RunStarted(time.Now())

	for n, ms := range []int{400, 600} {
		trial := metrics.Trial{Worker: 1, Number: n + 1, Duration: time.Duration(ms) * time.Millisecond, End: time.Now()}
		collector.Record(trial)
		d.TrialCompleted(trial)
	}
	collector.RecordFailure(2, errors.New("net::ERR_CONNECTION_REFUSED"))

	d.update()

	if d.progressGauge.Percent != 50 {
		t.Errorf("progress = %d%%, want 50%%", d.progressGauge.Percent)
	}
	if !strings.Contains(d.progressGauge.Label, "2 / 4") {
		t.Errorf("unexpected gauge label %q", d.progressGauge.Label)
	}
	if !strings.Contains(d.latencyPara.Text, "Mean: 500.00ms") {
		t.Errorf("unexpected latency text %q", d.latencyPara.Text)
	}
	if !strings.Contains(d.summaryPara.Text, "https://example.com/") || !strings.Contains(d.summaryPara.Text, "Failed sessions: 1") {
		t.Errorf("unexpected summary %q", d.summaryPara.Text)
	}
	if len(d.workerList.Rows) != 2 {
		t.Fatalf("expected 2 browser rows, got %v", d.workerList.Rows)
	}
	if !strings.Contains(d.workerList.Rows[0], "Last   600ms") {
		t.Errorf("unexpected first row %q", d.workerList.Rows[0])
	}
	if !strings.Contains(d.workerList.Rows[1], "fg:red") {
		t.Errorf("failed browser not highlighted: %q", d.workerList.Rows[1])
	}
	if len(d.errorList.Rows) != 1 || !strings.Contains(d.errorList.Rows[0], "[Browser error](fg:red) 1") {
		t.Errorf("failure not shown with its label: %v", d.errorList.Rows)
	}
	if got := d.latencySparkle.Sparklines[0].Data; len(got) != 2 || got[1] != 600 {
		t.Errorf("unexpected sparkline data %v", got)
	}
}

func TestUpdateWithoutData(t *testing.T) {
	d := newTestDashboard(metrics.NewCollector(), TestConfig{Parallel: 1, Repeat: 1})
	d.update()

	if d.progressGauge.Percent != 0 {
		t.Errorf("progress = %d%%, want 0", d.progressGauge.Percent)
	}
	if !strings.Contains(d.latencyPara.Text, "Waiting") {
		t.Errorf("latency text should wait for data, got %q", d.latencyPara.Text)
	}
	if d.workerList.Rows[0] != "Awaiting data" {
		t.Errorf("unexpected worker rows %v", d.workerList.Rows)
	}
}

func TestUpdateWorkerList(t *testing.T) {
	d := &Dashboard{
		workerList:   widgets.NewList(),
		lastByWorker: map[int]int64{1: 320},
		testConfig:   TestConfig{Repeat: 5},
	}

	d.updateWorkerList(metrics.Stats{
		Workers: []metrics.WorkerStats{
			{Worker: 1, Trials: 3, MeanLatencyMs: 300.5},
		},
	})

	if len(d.workerList.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(d.workerList.Rows))
	}
	row := d.workerList.Rows[0]
	for _, want := range []string{"#1", "3/5", "300.50ms", "320ms"} {
		if !strings.Contains(row, want) {
			t.Errorf("row %q missing %q", row, want)
		}
	}
}

func TestFormatTestParams(t *testing.T) {
	tests := []struct {
		name     string
		config   TestConfig
		contains []string
		excludes []string
	}{
		{
			name: "basic config",
			config: TestConfig{
				Parallel:  10,
				Repeat:    3,
				Rate:      2,
				OpenDelay: 500 * time.Millisecond,
			},
			contains: []string{"Browsers: 10", "Repeat: 3", "Rate: 2/s", "Delay: 500ms"},
			excludes: []string{"Wait:", "Headless"},
		},
		{
			name:     "unlimited rate",
			config:   TestConfig{Parallel: 5},
			contains: []string{"Browsers: 5", "Rate: unlimited"},
			excludes: []string{"Delay:"},
		},
		{
			name:     "wait text shown",
			config:   TestConfig{Parallel: 1, WaitText: "Welcome"},
			contains: []string{`Wait: "Welcome"`},
		},
		{
			name:     "headless and timeout",
			config:   TestConfig{Parallel: 1, Headless: true, PageTimeout: 30 * time.Second},
			contains: []string{"Headless", "Timeout: 30s"},
		},
		{
			name:     "with config file",
			config:   TestConfig{Parallel: 5, ConfigFile: "test.yml"},
			contains: []string{"Config: test.yml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Dashboard{testConfig: tt.config}
			result := d.formatTestParams()

			for _, s := range tt.contains {
				if !strings.Contains(result, s) {
					t.Errorf("expected result to contain %q, got %q", s, result)
				}
			}

			for _, s := range tt.excludes {
				if strings.Contains(result, s) {
					t.Errorf("expected result NOT to contain %q, got %q", s, result)
				}
			}
		})
	}
}
