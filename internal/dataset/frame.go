package dataset

import (
	"fmt"
	"time"
)

type ColumnType int

const (
	StringColumn ColumnType = iota
	FloatColumn
	TimeColumn
)

func (t ColumnType) String() string {
	switch t {
	case FloatColumn:
		return "float"
	case TimeColumn:
		return "datetime"
	default:
		return "string"
	}
}

// Column holds a single dataset column in typed, dense storage. Exactly one of
// the value slices is populated depending on Type; Nulls is always len == rows.
type Column struct {
	Name string
	Type ColumnType

	Strings []string
	Floats  []float64
	Times   []time.Time
	Nulls   []bool
}

func (c *Column) Len() int {
	return len(c.Nulls)
}

func (c *Column) IsNull(row int) bool {
	return c.Nulls[row]
}

func (c *Column) NullCount() int {
	n := 0
	for _, isNull := range c.Nulls {
		if isNull {
			n++
		}
	}
	return n
}

// Format renders the value at row for display and string comparisons.
func (c *Column) Format(row int) string {
	if c.Nulls[row] {
		return ""
	}
	switch c.Type {
	case FloatColumn:
		v := c.Floats[row]
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%.4f", v)
	case TimeColumn:
		return c.Times[row].Format("2006-01-02 15:04:05")
	default:
		return c.Strings[row]
	}
}

// Frame is an immutable, column-major table loaded from the dataset CSV. It is
// safe for concurrent reads; nothing mutates it after load.
type Frame struct {
	columns []*Column
	index   map[string]int
	rows    int
}

func NewFrame(columns []*Column) (*Frame, error) {
	frame := &Frame{index: make(map[string]int, len(columns))}
	for i, col := range columns {
		if _, ok := frame.index[col.Name]; ok {
			return nil, fmt.Errorf("duplicate column %q", col.Name)
		}
		if i > 0 && col.Len() != columns[0].Len() {
			return nil, fmt.Errorf("column %q has %d rows, expected %d", col.Name, col.Len(), columns[0].Len())
		}
		frame.index[col.Name] = i
	}
	frame.columns = columns
	if len(columns) > 0 {
		frame.rows = columns[0].Len()
	}
	return frame, nil
}

func (f *Frame) NumRows() int {
	return f.rows
}

func (f *Frame) NumColumns() int {
	return len(f.columns)
}

func (f *Frame) Columns() []*Column {
	return f.columns
}

func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.columns))
	for i, col := range f.columns {
		names[i] = col.Name
	}
	return names
}

func (f *Frame) Column(name string) (*Column, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.columns[i], true
}
