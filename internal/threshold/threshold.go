// Package threshold evaluates pass/fail assertions such as "page_load:p95 < 2000"
// against the statistics of a finished run.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/torosent/pagefire/internal/metrics"
)

// Threshold is one parsed assertion.
type Threshold struct {
	Metric    string  // page_load, sessions_failed or trials
	Aggregate string  // e.g. p95, mean, count, rate
	Operator  string  // <, <=, >, >=, ==
	Value     float64
	Raw       string
}

// Result is the outcome of one threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

type extractor func(metrics.Stats) (float64, error)

// catalog lists every metric with the aggregates it supports.
var catalog = map[string]map[string]extractor{
	// Page load latency in milliseconds. Undefined when nothing loaded.
	"page_load": {
		"p50":  latency(func(s metrics.Stats) float64 { return s.P50LatencyMs }),
		"p90":  latency(func(s metrics.Stats) float64 { return s.P90LatencyMs }),
		"p95":  latency(func(s metrics.Stats) float64 { return s.P95LatencyMs }),
		"p99":  latency(func(s metrics.Stats) float64 { return s.P99LatencyMs }),
		"avg":  latency(func(s metrics.Stats) float64 { return s.MeanLatencyMs }),
		"mean": latency(func(s metrics.Stats) float64 { return s.MeanLatencyMs }),
		"min":  latency(func(s metrics.Stats) float64 { return s.MinLatencyMs }),
		"max":  latency(func(s metrics.Stats) float64 { return s.MaxLatencyMs }),
	},
	"sessions_failed": {
		"count": always(func(s metrics.Stats) float64 { return float64(s.FailedSessions) }),
		"rate": always(func(s metrics.Stats) float64 {
			if len(s.Workers) == 0 {
				return 0
			}
			return float64(s.FailedSessions) / float64(len(s.Workers))
		}),
	},
	"trials": {
		"count": always(func(s metrics.Stats) float64 { return float64(s.Total) }),
		"rate":  always(func(s metrics.Stats) float64 { return s.TrialsPerSec }),
	},
}

func latency(field func(metrics.Stats) float64) extractor {
	return func(s metrics.Stats) (float64, error) {
		if s.Total == 0 {
			return 0, metrics.ErrNoData
		}
		return field(s), nil
	}
}

func always(field func(metrics.Stats) float64) extractor {
	return func(s metrics.Stats) (float64, error) { return field(s), nil }
}

const epsilon = 1e-9

var operators = map[string]func(actual, expected float64) bool{
	"<":  func(a, e float64) bool { return a < e },
	"<=": func(a, e float64) bool { return a <= e || math.Abs(a-e) < epsilon },
	">":  func(a, e float64) bool { return a > e },
	">=": func(a, e float64) bool { return a >= e || math.Abs(a-e) < epsilon },
	"==": func(a, e float64) bool { return math.Abs(a-e) < epsilon },
}

var thresholdPattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

// Parse reads "metric:aggregate operator value", for example
// "page_load:p95 < 2000", "sessions_failed:count == 0" or "trials:rate > 2".
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	m := thresholdPattern.FindStringSubmatch(s)
	if m == nil {
		return Threshold{}, fmt.Errorf("invalid threshold %q: want metric:aggregate operator value, e.g. 'page_load:p95 < 2000'", s)
	}
	metric, aggregate, operator := m[1], m[2], m[3]

	aggregates, ok := catalog[metric]
	if !ok {
		return Threshold{}, fmt.Errorf("unsupported metric %q (supported: %s)", metric, keys(catalog))
	}
	if _, ok := aggregates[aggregate]; !ok {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", aggregate, metric, keys(aggregates))
	}
	if _, ok := operators[operator]; !ok {
		return Threshold{}, fmt.Errorf("unsupported operator %q (supported: <, <=, >, >=, ==)", operator)
	}
	value, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %w", m[4], err)
	}

	return Threshold{Metric: metric, Aggregate: aggregate, Operator: operator, Value: value, Raw: s}, nil
}

// ParseMultiple parses every threshold and reports all invalid ones together.
func ParseMultiple(raw []string) ([]Threshold, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]Threshold, 0, len(raw))
	var problems []string
	for i, s := range raw {
		t, err := Parse(s)
		if err != nil {
			problems = append(problems, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		out = append(out, t)
	}
	if len(problems) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(problems, "; "))
	}
	return out, nil
}

func keys[V any](m map[string]V) string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}

// Evaluator checks a fixed set of thresholds.
type Evaluator struct {
	thresholds []Threshold
}

func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{thresholds: thresholds}
}

// Evaluate returns one Result per threshold, in order. A latency threshold fails
// when nothing was measured.
func (e *Evaluator) Evaluate(stats metrics.Stats) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}
	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		actual, err := extractMetricValue(t, stats)
		if err != nil {
			results = append(results, Result{Threshold: t, Message: fmt.Sprintf("✗ %s: %v", t.Raw, err)})
			continue
		}
		pass := compareValues(actual, t.Operator, t.Value)
		mark := "✓"
		if !pass {
			mark = "✗"
		}
		results = append(results, Result{
			Threshold: t,
			Actual:    actual,
			Pass:      pass,
			Message:   fmt.Sprintf("%s %s: %.2f %s %.2f", mark, t.Raw, actual, t.Operator, t.Value),
		})
	}
	return results
}

func extractMetricValue(t Threshold, stats metrics.Stats) (float64, error) {
	extract, ok := catalog[t.Metric][t.Aggregate]
	if !ok {
		return 0, fmt.Errorf("unsupported threshold %s:%s", t.Metric, t.Aggregate)
	}
	return extract(stats)
}

func compareValues(actual float64, operator string, expected float64) bool {
	cmp, ok := operators[operator]
	return ok && cmp(actual, expected)
}
