package dataset

import (
	"fmt"
	"sort"
	"strings"
)

const (
	contextColumnCap = 30
	contextSampleCap = 5
)

type valueCount struct {
	value string
	count int
}

// Context builds the dataset description handed to the LLM: shape, column
// types with null percentages, a few sample rows, and value breakdowns for the
// columns most questions hinge on. Computed once at startup and cached.
func (f *Frame) Context(dict *Dictionary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Dataset Shape: %d rows x %d columns\n", f.NumRows(), f.NumColumns())
	b.WriteString("\nColumn Names and Types:\n")

	for i, col := range f.Columns() {
		if i >= contextColumnCap {
			fmt.Fprintf(&b, "  ... and %d more columns\n", f.NumColumns()-contextColumnCap)
			break
		}
		nullPct := 0.0
		if f.NumRows() > 0 {
			nullPct = float64(col.NullCount()) / float64(f.NumRows()) * 100
		}
		fmt.Fprintf(&b, "  - %s: %s (%.1f%% null)", col.Name, col.Type, nullPct)
		if dict != nil {
			if desc := dict.Describe(col.Name); desc != "" {
				fmt.Fprintf(&b, " -- %s", desc)
			}
		}
		b.WriteByte('\n')
	}

	if f.NumRows() > 0 {
		fmt.Fprintf(&b, "\nFirst %d rows sample:\n", min(contextSampleCap, f.NumRows()))
		b.WriteString(f.sampleRows(contextSampleCap))
	}

	if col, ok := f.Column("Complaint Type"); ok {
		b.WriteString("\nTop 10 Complaint Types:\n")
		writeValueCounts(&b, topValues(col, 10))
	}
	if col, ok := f.Column("Borough"); ok {
		b.WriteString("\nComplaints by Borough:\n")
		writeValueCounts(&b, topValues(col, 0))
	}

	return b.String()
}

func (f *Frame) sampleRows(n int) string {
	if n > f.NumRows() {
		n = f.NumRows()
	}
	var b strings.Builder
	cols := f.Columns()
	if len(cols) > contextColumnCap {
		cols = cols[:contextColumnCap]
	}
	for row := 0; row < n; row++ {
		parts := make([]string, len(cols))
		for i, col := range cols {
			parts[i] = fmt.Sprintf("%s=%s", col.Name, col.Format(row))
		}
		fmt.Fprintf(&b, "  %s\n", strings.Join(parts, " | "))
	}
	return b.String()
}

// topValues counts distinct formatted values in a column. limit == 0 returns
// all values, sorted by descending count with ties broken alphabetically so
// output is deterministic.
func topValues(col *Column, limit int) []valueCount {
	counts := make(map[string]int)
	for row := 0; row < col.Len(); row++ {
		if col.IsNull(row) {
			continue
		}
		counts[col.Format(row)]++
	}

	values := make([]valueCount, 0, len(counts))
	for value, count := range counts {
		values = append(values, valueCount{value: value, count: count})
	}
	sort.Slice(values, func(i, j int) bool {
		if values[i].count != values[j].count {
			return values[i].count > values[j].count
		}
		return values[i].value < values[j].value
	})

	if limit > 0 && len(values) > limit {
		values = values[:limit]
	}
	return values
}

func writeValueCounts(b *strings.Builder, values []valueCount) {
	for _, vc := range values {
		fmt.Fprintf(b, "  %s: %d\n", vc.value, vc.count)
	}
}
