package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt  string
	Report       Report
	SequenceJSON string
}

// GenerateHTMLReport generates a standalone HTML report with an embedded page load chart.
func GenerateHTMLReport(w io.Writer, r Report) error {
	sequenceJSON, err := json.Marshal(r.Sequence)
	if err != nil {
		return fmt.Errorf("failed to marshal sequence: %w", err)
	}

	data := HTMLReportData{
		GeneratedAt:  time.Now().Format(time.RFC3339),
		Report:       r,
		SequenceJSON: string(sequenceJSON),
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.Round(time.Millisecond).String()
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatMs": func(f float64) string {
			return fmt.Sprintf("%.0f", f)
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>pagefire Page Load Report</title>
    <style>
        * {
            margin: 0;
            padding: 0;
            box-sizing: border-box;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1400px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 {
            font-size: 2rem;
            margin-bottom: 10px;
        }
        header .meta {
            opacity: 0.9;
            font-size: 0.9rem;
        }
        .content {
            padding: 40px;
        }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(250px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #667eea;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value {
            font-size: 2rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .card .subvalue {
            font-size: 0.85rem;
            color: #6c757d;
            margin-top: 5px;
        }
        .card.success {
            border-left-color: #10b981;
        }
        .card.error {
            border-left-color: #ef4444;
        }
        .card.warning {
            border-left-color: #f59e0b;
        }
        .section {
            margin-bottom: 40px;
        }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        .chart-container {
            background: white;
            border-radius: 8px;
            padding: 20px;
            margin-bottom: 30px;
            border: 1px solid #e5e7eb;
        }
        .chart-container h3 {
            font-size: 1.1rem;
            margin-bottom: 15px;
            color: #4b5563;
        }
        .chart {
            width: 100%;
            height: 300px;
        }
        table {
            width: 100%;
            border-collapse: collapse;
            background: white;
        }
        th, td {
            text-align: left;
            padding: 12px;
            border-bottom: 1px solid #e5e7eb;
        }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            text-transform: uppercase;
            letter-spacing: 0.5px;
        }
        tr:hover {
            background: #f8f9fa;
        }
        .badge {
            display: inline-block;
            padding: 4px 12px;
            border-radius: 12px;
            font-size: 0.85rem;
            font-weight: 600;
        }
        .badge-success {
            background: #d1fae5;
            color: #065f46;
        }
        .badge-error {
            background: #fee2e2;
            color: #991b1b;
        }
        .latency-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
            gap: 15px;
            margin-top: 20px;
        }
        .latency-item {
            background: #f8f9fa;
            padding: 15px;
            border-radius: 6px;
            text-align: center;
        }
        .latency-item .label {
            font-size: 0.85rem;
            color: #6c757d;
            margin-bottom: 5px;
        }
        .latency-item .value {
            font-size: 1.3rem;
            font-weight: bold;
            color: #2c3e50;
        }
        .incomplete {
            background: #fee2e2;
            color: #991b1b;
            padding: 12px 20px;
            border-radius: 6px;
            margin-bottom: 30px;
            font-weight: 600;
        }
        .no-data {
            text-align: center;
            padding: 40px;
            color: #6c757d;
            font-style: italic;
        }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>🔥 pagefire Page Load Report</h1>
            <div class="meta" style="margin-top: 5px;">Target: <a href="{{.Report.Params.TargetURL}}" style="color: white; text-decoration: underline;">{{.Report.Params.TargetURL}}</a></div>
            <div class="meta">Run: {{.Report.RunID}} | Generated: {{.GeneratedAt}} | Duration: {{formatDuration .Report.Stats.Duration}}</div>
        </header>

        <div class="content">
            {{if .Report.Stats.Incomplete}}
            <div class="incomplete">INCOMPLETE: {{.Report.Stats.FailedSessions}} of {{.Report.Params.Parallel}} sessions failed{{if .Report.Error}} ({{.Report.Error}}){{end}}</div>
            {{end}}

            <!-- Summary Cards -->
            <div class="grid">
                <div class="card">
                    <h3>Page Loads</h3>
                    <div class="value">{{.Report.Stats.Total}}</div>
                    <div class="subvalue">{{.Report.Params.Parallel}} browsers x {{.Report.Params.Repeat}} times</div>
                </div>
                <div class="card success">
                    <h3>Mean</h3>
                    {{if .Report.NoData}}
                    <div class="value">n/a</div>
                    {{else}}
                    <div class="value">{{formatFloat .Report.Stats.MeanLatencyMs}}ms</div>
                    {{end}}
                </div>
                <div class="card error">
                    <h3>Failed Sessions</h3>
                    <div class="value">{{.Report.Stats.FailedSessions}}</div>
                </div>
                <div class="card warning">
                    <h3>Loads/sec</h3>
                    <div class="value">{{formatFloat .Report.Stats.TrialsPerSec}}</div>
                </div>
            </div>

            <!-- Chart -->
            {{if .Report.Sequence}}
            <div class="section">
                <h2>Page Load Sequence</h2>
                <div class="chart-container">
                    <h3>Duration per completed load</h3>
                    <div id="sequence-chart" class="chart"></div>
                </div>
            </div>
            {{else}}
            <div class="no-data">no data: no page load completed</div>
            {{end}}

            <!-- Latency Details -->
            {{if not .Report.NoData}}
            <div class="section">
                <h2>Page Load Latency</h2>
                <div class="latency-grid">
                    <div class="latency-item">
                        <div class="label">Min</div>
                        <div class="value">{{formatMs .Report.Stats.MinLatencyMs}}ms</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">Max</div>
                        <div class="value">{{formatMs .Report.Stats.MaxLatencyMs}}ms</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">Mean</div>
                        <div class="value">{{formatFloat .Report.Stats.MeanLatencyMs}}ms</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P50</div>
                        <div class="value">{{formatMs .Report.Stats.P50LatencyMs}}ms</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P90</div>
                        <div class="value">{{formatMs .Report.Stats.P90LatencyMs}}ms</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P95</div>
                        <div class="value">{{formatMs .Report.Stats.P95LatencyMs}}ms</div>
                    </div>
                    <div class="latency-item">
                        <div class="label">P99</div>
                        <div class="value">{{formatMs .Report.Stats.P99LatencyMs}}ms</div>
                    </div>
                </div>
            </div>
            {{end}}

            <!-- Thresholds -->
            {{with .Report.Thresholds}}
            <div class="section">
                <h2>Thresholds ({{.Passed}}/{{.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Threshold</th>
                            <th>Metric</th>
                            <th>Expected</th>
                            <th>Actual</th>
                            <th>Status</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Results}}
                        <tr>
                            <td>{{.Threshold}}</td>
                            <td>{{.Metric}} ({{.Aggregate}})</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>
                                {{if .Pass}}
                                <span class="badge badge-success">✓ PASS</span>
                                {{else}}
                                <span class="badge badge-error">✗ FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            <!-- Browsers -->
            {{if .Report.Stats.Workers}}
            <div class="section">
                <h2>Browsers</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Browser</th>
                            <th>Loads</th>
                            <th>Mean</th>
                            <th>Min</th>
                            <th>Max</th>
                            <th>Status</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Report.Stats.Workers}}
                        <tr>
                            <td><strong>#{{.Worker}}</strong></td>
                            <td>{{.Trials}}</td>
                            <td>{{formatFloat .MeanLatencyMs}}ms</td>
                            <td>{{formatMs .MinLatencyMs}}ms</td>
                            <td>{{formatMs .MaxLatencyMs}}ms</td>
                            <td>{{if .Error}}<span class="badge badge-error">{{.Error}}</span>{{else}}<span class="badge badge-success">OK</span>{{end}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            <!-- Failures -->
            {{if .Report.Stats.Errors}}
            <div class="section">
                <h2>Failures</h2>
                <table>
                    <thead>
                        <tr><th>Cause</th><th>Sessions</th></tr>
                    </thead>
                    <tbody>
                        {{range $label, $count := .Report.Stats.Errors}}
                        <tr><td>{{$label}}</td><td>{{$count}}</td></tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}

            <!-- Parameters -->
            <div class="section">
                <h2>Run Parameters</h2>
                <table>
                    <tbody>
                        <tr><td>Browsers</td><td>{{.Report.Params.Parallel}}</td></tr>
                        <tr><td>Repeat</td><td>{{.Report.Params.Repeat}}</td></tr>
                        <tr><td>Open delay</td><td>{{.Report.Params.OpenDelayMs}} ms</td></tr>
                        <tr><td>Wait text</td><td>{{if .Report.Params.WaitText}}{{.Report.Params.WaitText}}{{else}}<em>(page load)</em>{{end}}</td></tr>
                        <tr><td>Headless</td><td>{{.Report.Params.Headless}}</td></tr>
                        {{if .Report.Params.Rate}}<tr><td>Rate</td><td>{{.Report.Params.Rate}}/s</td></tr>{{end}}
                    </tbody>
                </table>
            </div>
        </div>
    </div>

    {{if .Report.Sequence}}
    <script>
        const sequenceJSON = {{.SequenceJSON}};
        const sequence = JSON.parse(sequenceJSON);

        if (sequence && sequence.length > 0) {
            const data = [
                sequence.map((_, i) => i + 1),
                sequence.map(d => d.duration)
            ];

            new uPlot({
                title: "Page Load Duration",
                width: document.getElementById('sequence-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Load #" },
                    {
                        label: "Duration (ms)",
                        stroke: "#667eea",
                        fill: "rgba(102, 126, 234, 0.1)",
                        width: 2
                    }
                ],
                axes: [
                    { label: "Completed load" },
                    { label: "Duration (ms)" }
                ]
            }, data, document.getElementById('sequence-chart'));
        }
    </script>
    {{end}}
</body>
</html>
`
