package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/pagefire/internal/metrics"
)

const historySize = 100

// TestConfig holds run parameters for display.
type TestConfig struct {
	TargetURL   string        // Page under test
	Parallel    int           // Number of browser sessions
	Repeat      int           // Page loads per session
	OpenDelay   time.Duration // Stagger between session starts
	WaitText    string        // Readiness text, empty for plain page load
	Rate        int           // Page loads per second (0 = unlimited)
	PageTimeout time.Duration // Bound for every browser operation
	Headless    bool
	ConfigFile  string // Path to config file if used
}

// Dashboard renders a live terminal UI for a page load run. It is a
// runner.Observer: completed trials feed the duration sparkline directly.
type Dashboard struct {
	collector    *metrics.Collector
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid           *ui.Grid
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	progressGauge  *widgets.Gauge
	errorList      *widgets.List
	workerList     *widgets.List
	summaryPara    *widgets.Paragraph
	metricsPara    *widgets.Paragraph

	latencyHistory []float64
	lastByWorker   map[int]int64
	startTime      time.Time
	testConfig     TestConfig
}

// New creates a new Dashboard. shutdownFunc is called when the user presses q.
func New(collector *metrics.Collector, cfg TestConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	d := newDashboard(collector, cfg, shutdownFunc)
	d.initWidgets()
	d.setupGrid()

	return d, nil
}

func newDashboard(collector *metrics.Collector, cfg TestConfig, shutdownFunc func()) *Dashboard {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dashboard{
		collector:      collector,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, historySize),
		lastByWorker:   make(map[int]int64),
		startTime:      time.Now(),
		testConfig:     cfg,
	}
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "Page load (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Page Loads"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = "Waiting for the first page load..."
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.progressGauge = widgets.NewGauge()
	d.progressGauge.Title = "Progress"
	d.progressGauge.Percent = 0
	d.progressGauge.BarColor = ui.ColorBlue
	d.progressGauge.BorderStyle.Fg = ui.ColorCyan
	d.progressGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.errorList = widgets.NewList()
	d.errorList.Title = "Failures"
	d.errorList.Rows = []string{"No failures"}
	d.errorList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.errorList.BorderStyle.Fg = ui.ColorCyan

	d.workerList = widgets.NewList()
	d.workerList.Title = "Browsers"
	d.workerList.Rows = []string{"Awaiting data"}
	d.workerList.TextStyle = ui.NewStyle(ui.ColorCyan)
	d.workerList.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run Summary"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Metrics"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.14,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.2,
			ui.NewCol(0.5, d.progressGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.3,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.36,
			ui.NewCol(0.6, d.workerList),
			ui.NewCol(0.4, d.errorList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

func (d *Dashboard) RunStarted(at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startTime = at
}

func (d *Dashboard) TrialCompleted(t metrics.Trial) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.latencyHistory = append(d.latencyHistory, float64(t.DurationMs()))
	if len(d.latencyHistory) > historySize {
		d.latencyHistory = d.latencyHistory[1:]
	}
	d.lastByWorker[t.Worker] = t.DurationMs()
}

func (d *Dashboard) RunFinished(time.Time) {}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			// Drain any remaining events
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Do not return here; wait for Stop() to cancel context
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the collector.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := time.Since(d.startTime)
	stats, err := d.collector.Stats(elapsed)
	hasData := err == nil

	if len(d.latencyHistory) > 0 {
		d.latencySparkle.Sparklines[0].Data = append([]float64(nil), d.latencyHistory...)
		d.latencySparkle.Title = fmt.Sprintf(
			"Page Loads | Last: %.0fms | Min: %.0fms | Max: %.0fms",
			d.latencyHistory[len(d.latencyHistory)-1],
			stats.MinLatencyMs,
			stats.MaxLatencyMs,
		)
	}

	expected := d.expectedTrials()
	d.progressGauge.Percent = percentOf(stats.Total, expected)
	d.progressGauge.Label = fmt.Sprintf("%d / %d page loads", stats.Total, expected)

	d.summaryPara.Text = fmt.Sprintf(
		"Target: %s\n%s\nElapsed: %s | Page loads: %d | Failed sessions: %d",
		d.testConfig.TargetURL,
		d.formatTestParams(),
		elapsed.Round(time.Second),
		stats.Total,
		stats.FailedSessions,
	)

	d.metricsPara.Text = fmt.Sprintf(
		"Page loads:        %d\nFailed sessions:   %d\nLoads/sec:         %.2f",
		stats.Total,
		stats.FailedSessions,
		stats.TrialsPerSec,
	)

	if hasData {
		d.latencyPara.Text = fmt.Sprintf(
			"Min:  %.0fms\nMean: %.2fms\nMax:  %.0fms\nP50:  %.0fms\nP90:  %.0fms\nP95:  %.0fms\nP99:  %.0fms",
			stats.MinLatencyMs,
			stats.MeanLatencyMs,
			stats.MaxLatencyMs,
			stats.P50LatencyMs,
			stats.P90LatencyMs,
			stats.P95LatencyMs,
			stats.P99LatencyMs,
		)
	}

	d.errorList.Rows = formatErrorRows(stats.Errors)
	d.updateWorkerList(stats)
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func (d *Dashboard) expectedTrials() int64 {
	return int64(d.testConfig.Parallel) * int64(d.testConfig.Repeat)
}

func percentOf(part, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(part * 100 / total)
	if p > 100 {
		p = 100
	}
	return p
}

// updateWorkerList must be called with d.mu held.
func (d *Dashboard) updateWorkerList(stats metrics.Stats) {
	if len(stats.Workers) == 0 {
		d.workerList.Rows = []string{"Awaiting data"}
		return
	}
	rows := make([]string, 0, len(stats.Workers))
	for _, ws := range stats.Workers {
		if ws.Error != "" {
			rows = append(rows, fmt.Sprintf("[#%d](fg:red) | %d/%d | %s", ws.Worker, ws.Trials, d.testConfig.Repeat, ws.Error))
			continue
		}
		rows = append(rows, fmt.Sprintf("[#%d](fg:cyan) | %d/%d | Mean %7.2fms | Last %5dms",
			ws.Worker,
			ws.Trials,
			d.testConfig.Repeat,
			ws.MeanLatencyMs,
			d.lastByWorker[ws.Worker],
		))
	}
	d.workerList.Rows = rows
}

func formatErrorRows(errs map[string]int) []string {
	if len(errs) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	kinds := make([]string, 0, len(errs))
	for kind := range errs {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if errs[kinds[i]] == errs[kinds[j]] {
			return kinds[i] < kinds[j]
		}
		return errs[kinds[i]] > errs[kinds[j]]
	})
	if len(kinds) > 10 {
		kinds = kinds[:10]
	}
	rows := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		rows = append(rows, fmt.Sprintf("[%s](fg:red) %d", kind, errs[kind]))
	}
	return rows
}

// formatTestParams formats the run parameters for display.
func (d *Dashboard) formatTestParams() string {
	var parts []string

	if d.testConfig.Parallel > 0 {
		parts = append(parts, fmt.Sprintf("Browsers: %d", d.testConfig.Parallel))
	}
	if d.testConfig.Repeat > 0 {
		parts = append(parts, fmt.Sprintf("Repeat: %d", d.testConfig.Repeat))
	}
	if d.testConfig.OpenDelay > 0 {
		parts = append(parts, fmt.Sprintf("Delay: %s", d.testConfig.OpenDelay))
	}

	if d.testConfig.Rate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %d/s", d.testConfig.Rate))
	} else {
		parts = append(parts, "Rate: unlimited")
	}

	if d.testConfig.WaitText != "" {
		parts = append(parts, fmt.Sprintf("Wait: %q", d.testConfig.WaitText))
	}
	if d.testConfig.PageTimeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", d.testConfig.PageTimeout))
	}
	if d.testConfig.Headless {
		parts = append(parts, "Headless")
	}
	if d.testConfig.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.testConfig.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
