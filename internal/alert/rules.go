package alert

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/newthinker/chartgen/internal/core"
)

// Rule defines an alert rule over the metrics of one finished run.
type Rule struct {
	Name     string `mapstructure:"name"`
	Expr     string `mapstructure:"expr"`
	Runs     int    `mapstructure:"runs"` // consecutive matching runs before firing; 0 and 1 fire at once
	Severity string `mapstructure:"severity"`
	Message  string `mapstructure:"message"`
}

// "metric op value"
var exprPattern = regexp.MustCompile(`^(\w+)\s*(>=|<=|==|!=|>|<)\s*([\d.]+)$`)

// RunMetrics derives the values rules can refer to.
func RunMetrics(s core.RunSummary) map[string]float64 {
	m := map[string]float64{
		"total":            float64(s.Total),
		"saved":            float64(s.Saved),
		"no_data":          float64(s.NoData),
		"failed":           float64(s.Failed),
		"failure_ratio":    0,
		"no_data_ratio":    0,
		"duration_seconds": s.Duration().Seconds(),
	}
	if s.Total > 0 {
		m["failure_ratio"] = float64(s.Failed) / float64(s.Total)
		m["no_data_ratio"] = float64(s.NoData) / float64(s.Total)
	}
	return m
}

// MetricNames lists the names RunMetrics produces, sorted.
func MetricNames() []string {
	m := RunMetrics(core.RunSummary{})
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the rule parses and names a known metric.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("alert rule name is required")
	}
	matches := exprPattern.FindStringSubmatch(strings.TrimSpace(r.Expr))
	if len(matches) != 4 {
		return fmt.Errorf("alert rule %s: cannot parse %q, want \"metric op value\"", r.Name, r.Expr)
	}
	if _, err := strconv.ParseFloat(matches[3], 64); err != nil {
		return fmt.Errorf("alert rule %s: bad threshold %q", r.Name, matches[3])
	}
	if _, ok := RunMetrics(core.RunSummary{})[matches[1]]; !ok {
		return fmt.Errorf("alert rule %s: unknown metric %q (available: %s)",
			r.Name, matches[1], strings.Join(MetricNames(), ", "))
	}
	if r.Runs < 0 {
		return fmt.Errorf("alert rule %s: runs cannot be negative", r.Name)
	}
	return nil
}

// Evaluate evaluates the rule expression against metrics.
func (r *Rule) Evaluate(metrics map[string]float64) bool {
	matches := exprPattern.FindStringSubmatch(strings.TrimSpace(r.Expr))
	if len(matches) != 4 {
		return false
	}

	metricName := matches[1]
	op := matches[2]
	threshold, err := strconv.ParseFloat(matches[3], 64)
	if err != nil {
		return false
	}

	value, exists := metrics[metricName]
	if !exists {
		return false
	}

	switch op {
	case ">":
		return value > threshold
	case "<":
		return value < threshold
	case ">=":
		return value >= threshold
	case "<=":
		return value <= threshold
	case "==":
		return value == threshold
	case "!=":
		return value != threshold
	default:
		return false
	}
}

// FormatMessage formats the alert message with the metric's value.
func (r *Rule) FormatMessage(metrics map[string]float64) string {
	severity := r.Severity
	if severity == "" {
		severity = "warning"
	}
	msg := fmt.Sprintf("[%s] %s: %s", strings.ToUpper(severity), r.Name, r.Message)

	if matches := exprPattern.FindStringSubmatch(strings.TrimSpace(r.Expr)); len(matches) == 4 {
		if v, ok := metrics[matches[1]]; ok {
			msg += fmt.Sprintf(" (%s=%s)", matches[1], strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	return msg
}
