package query

import (
	"fmt"
	"strings"
)

// previewRowCap bounds how much of a result is shown to the LLM and in logs.
const previewRowCap = 50

type Cell struct {
	Text  string
	Num   float64
	IsNum bool
}

func textCell(text string) Cell {
	return Cell{Text: text}
}

func numCell(v float64) Cell {
	text := fmt.Sprintf("%.4f", v)
	text = strings.TrimRight(strings.TrimRight(text, "0"), ".")
	if text == "" || text == "-" {
		text = "0"
	}
	return Cell{Text: text, Num: v, IsNum: true}
}

type Result struct {
	Columns []string
	Rows    [][]Cell

	// Scalar marks a single-value result (a plain COUNT), which renders as a
	// number instead of a table and never gets a chart.
	Scalar bool
}

func (r *Result) Kind() string {
	if r.Scalar {
		return "scalar"
	}
	return "table"
}

// Preview renders the result for LLM consumption, capped at previewRowCap rows
// the same way the result tables shown to users are.
func (r *Result) Preview() string {
	if r.Scalar {
		if len(r.Rows) > 0 && len(r.Rows[0]) > 0 {
			return r.Rows[0][0].Text
		}
		return ""
	}

	var b strings.Builder
	b.WriteString(strings.Join(r.Columns, " | "))
	b.WriteByte('\n')

	for i, row := range r.Rows {
		if i >= previewRowCap {
			fmt.Fprintf(&b, "... %d more rows\n", len(r.Rows)-previewRowCap)
			break
		}
		parts := make([]string, len(row))
		for j, cell := range row {
			parts[j] = cell.Text
		}
		b.WriteString(strings.Join(parts, " | "))
		b.WriteByte('\n')
	}
	return b.String()
}

func (r *Result) ColumnIndex(name string) (int, bool) {
	for i, col := range r.Columns {
		if strings.EqualFold(col, name) {
			return i, true
		}
	}
	return 0, false
}
