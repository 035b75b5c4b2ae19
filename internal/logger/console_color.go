package logger

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// colorScheme defines consistent colors for different metric types.
// Green: success/positive metrics
// Red: failure/error metrics
// Yellow: warning/threshold metrics
// Cyan: labels and identifiers
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	value   *color.Color
}

// newColorScheme creates the standard color scheme for metrics.
func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
	}
}

// formatColorizedMetric formats a single metric with colorized label and value.
func formatColorizedMetric(label string, value interface{}, scheme *colorScheme) string {
	labelColored := scheme.label.Sprint(label)
	valueColored := scheme.value.Sprintf("%v", value)
	return fmt.Sprintf("%s: %s", labelColored, valueColored)
}

// formatColorizedMetrics formats a task result's free-form metrics map with
// color coding: any key containing "error" or "fail" is colored red,
// everything else uses the cyan/white label/value pair. Colors are
// automatically disabled when output is not a TTY via fatih/color's
// built-in detection. Returns "" if metrics is empty.
func formatColorizedMetrics(metrics map[string]interface{}) string {
	if len(metrics) == 0 {
		return ""
	}

	scheme := newColorScheme()

	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	for i := 0; i < len(keys); i++ {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}

	var parts []string
	for _, label := range keys {
		value := metrics[label]
		lower := strings.ToLower(label)
		switch {
		case strings.Contains(lower, "error") || strings.Contains(lower, "fail"):
			labelColored := scheme.fail.Sprint(label)
			valueColored := scheme.fail.Sprintf("%v", value)
			parts = append(parts, fmt.Sprintf("%s: %s", labelColored, valueColored))
		default:
			parts = append(parts, formatColorizedMetric(label, value, scheme))
		}
	}

	return strings.Join(parts, ", ")
}
