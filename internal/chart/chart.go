// Package chart renders LLM-generated chart specs against query results into
// base64-encoded PNGs for the frontend.
package chart

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	gochart "github.com/wcharczuk/go-chart/v2"

	"analytics-backend/internal/query"
)

const (
	maxBarPoints  = 30
	maxLinePoints = 500
	maxPieSlices  = 12
	maxAxisTicks  = 12

	chartWidth  = 1024
	chartHeight = 600
)

// Spec is the JSON document the LLM emits to describe a visualization. Label
// and value columns are optional; when omitted the first string column and
// first numeric column of the result are used.
type Spec struct {
	Kind        string `json:"kind"` // bar | line | pie
	Title       string `json:"title"`
	XLabel      string `json:"x_label,omitempty"`
	YLabel      string `json:"y_label,omitempty"`
	LabelColumn string `json:"label_column,omitempty"`
	ValueColumn string `json:"value_column,omitempty"`
}

func ParseSpec(text string) (*Spec, error) {
	text = stripCodeFence(text)

	var spec Spec
	if err := json.Unmarshal([]byte(text), &spec); err != nil {
		return nil, fmt.Errorf("chart spec is not valid JSON: %w", err)
	}

	spec.Kind = strings.ToLower(strings.TrimSpace(spec.Kind))
	switch spec.Kind {
	case "bar", "line", "pie":
	default:
		return nil, fmt.Errorf("unsupported chart kind %q; use bar, line, or pie", spec.Kind)
	}
	return &spec, nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	if i := strings.LastIndex(text, "```"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// Render draws the spec over the result and returns a base64-encoded PNG.
func Render(spec *Spec, result *query.Result) (string, error) {
	if result.Scalar {
		return "", fmt.Errorf("scalar results cannot be charted")
	}

	labels, values, err := extractSeries(spec, result)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	switch spec.Kind {
	case "bar":
		err = renderBar(spec, labels, values, &buf)
	case "line":
		err = renderLine(spec, labels, values, &buf)
	case "pie":
		err = renderPie(spec, labels, values, &buf)
	}
	if err != nil {
		return "", fmt.Errorf("error rendering %s chart: %w", spec.Kind, err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// extractSeries pulls a label column and a numeric value column out of the
// result per the spec, defaulting sensibly when columns are unnamed.
func extractSeries(spec *Spec, result *query.Result) ([]string, []float64, error) {
	if len(result.Rows) == 0 {
		return nil, nil, fmt.Errorf("result has no rows to chart")
	}

	labelIdx, valueIdx := -1, -1

	if spec.LabelColumn != "" {
		idx, ok := result.ColumnIndex(spec.LabelColumn)
		if !ok {
			return nil, nil, fmt.Errorf("label column %q not in result columns: %s", spec.LabelColumn, strings.Join(result.Columns, ", "))
		}
		labelIdx = idx
	}
	if spec.ValueColumn != "" {
		idx, ok := result.ColumnIndex(spec.ValueColumn)
		if !ok {
			return nil, nil, fmt.Errorf("value column %q not in result columns: %s", spec.ValueColumn, strings.Join(result.Columns, ", "))
		}
		valueIdx = idx
	}

	first := result.Rows[0]
	for i, cell := range first {
		if valueIdx == -1 && cell.IsNum && i != labelIdx {
			valueIdx = i
		}
		if labelIdx == -1 && !cell.IsNum {
			labelIdx = i
		}
	}
	if valueIdx == -1 {
		return nil, nil, fmt.Errorf("result has no numeric column to chart; columns: %s", strings.Join(result.Columns, ", "))
	}
	if labelIdx == -1 {
		labelIdx = 0
		if labelIdx == valueIdx {
			return nil, nil, fmt.Errorf("result needs a label column and a numeric column; columns: %s", strings.Join(result.Columns, ", "))
		}
	}

	var labels []string
	var values []float64
	for _, row := range result.Rows {
		cell := row[valueIdx]
		if !cell.IsNum {
			continue
		}
		labels = append(labels, row[labelIdx].Text)
		values = append(values, cell.Num)
	}
	if len(values) == 0 {
		return nil, nil, fmt.Errorf("value column %q has no numeric values", result.Columns[valueIdx])
	}
	return labels, values, nil
}

func renderBar(spec *Spec, labels []string, values []float64, buf *bytes.Buffer) error {
	if len(values) > maxBarPoints {
		labels, values = labels[:maxBarPoints], values[:maxBarPoints]
	}

	bars := make([]gochart.Value, len(values))
	for i := range values {
		bars[i] = gochart.Value{Label: truncateLabel(labels[i]), Value: values[i]}
	}

	graph := gochart.BarChart{
		Title:    spec.Title,
		Width:    chartWidth,
		Height:   chartHeight,
		BarWidth: max(16, (chartWidth-100)/(len(bars)+1)),
		Bars:     bars,
		XAxis: gochart.Style{
			TextRotationDegrees: 45,
		},
		YAxis: gochart.YAxis{
			Range: barRange(values),
		},
	}
	return graph.Render(gochart.PNG, buf)
}

// barRange returns an explicit y-axis range so bars render even when every
// value is equal (single-row results included); go-chart rejects a collapsed
// data range.
func barRange(values []float64) gochart.Range {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	lo = math.Min(lo, 0)
	if hi <= lo {
		hi = lo + 1
	}
	return &gochart.ContinuousRange{Min: lo, Max: hi}
}

func renderLine(spec *Spec, labels []string, values []float64, buf *bytes.Buffer) error {
	if len(values) > maxLinePoints {
		labels, values = labels[:maxLinePoints], values[:maxLinePoints]
	}

	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}

	step := 1
	if len(labels) > maxAxisTicks {
		step = len(labels) / maxAxisTicks
	}
	var ticks []gochart.Tick
	for i := 0; i < len(labels); i += step {
		ticks = append(ticks, gochart.Tick{Value: float64(i), Label: truncateLabel(labels[i])})
	}

	graph := gochart.Chart{
		Title:  spec.Title,
		Width:  chartWidth,
		Height: chartHeight,
		XAxis: gochart.XAxis{
			Name:  spec.XLabel,
			Ticks: ticks,
		},
		YAxis: gochart.YAxis{
			Name: spec.YLabel,
		},
		Series: []gochart.Series{
			gochart.ContinuousSeries{XValues: xs, YValues: values},
		},
	}
	return graph.Render(gochart.PNG, buf)
}

func renderPie(spec *Spec, labels []string, values []float64, buf *bytes.Buffer) error {
	if len(values) > maxPieSlices {
		labels, values = labels[:maxPieSlices], values[:maxPieSlices]
	}

	slices := make([]gochart.Value, len(values))
	for i := range values {
		slices[i] = gochart.Value{Label: truncateLabel(labels[i]), Value: values[i]}
	}

	graph := gochart.PieChart{
		Title:  spec.Title,
		Width:  chartHeight, // square canvas reads better for pies
		Height: chartHeight,
		Values: slices,
	}
	return graph.Render(gochart.PNG, buf)
}

func truncateLabel(label string) string {
	const labelCap = 24
	if utf8.RuneCountInString(label) <= labelCap {
		return label
	}
	return string([]rune(label)[:labelCap-3]) + "..."
}
