package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Date layouts seen in NYC open data exports. The 311 extract uses the first
// one for Created Date / Closed Date.
var dateLayouts = []string{
	"01/02/2006 03:04:05 PM",
	"01/02/2006",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

const typeInferenceSample = 1000

type LoadOptions struct {
	// MaxRows caps the number of data rows loaded; 0 loads everything.
	MaxRows int
}

func LoadCSVFile(path string, opts LoadOptions) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open dataset csv: %w", err)
	}
	defer file.Close()

	return LoadCSV(file, opts)
}

// LoadCSV reads the whole CSV into a typed Frame. Column types are inferred
// from a sample of rows; values that fail to parse under the inferred type
// become nulls rather than aborting the load, since the 311 extract contains
// plenty of malformed cells.
func LoadCSV(r io.Reader, opts LoadOptions) (*Frame, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("could not read csv header: %w", err)
	}
	names := make([]string, len(header))
	for i, name := range header {
		names[i] = strings.TrimSpace(name)
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading csv row %d: %w", len(records)+2, err)
		}
		row := make([]string, len(names))
		for i := range names {
			if i < len(record) {
				row[i] = strings.TrimSpace(record[i])
			}
		}
		records = append(records, row)
		if opts.MaxRows > 0 && len(records) >= opts.MaxRows {
			slog.Info("dataset row cap reached, truncating load", "max_rows", opts.MaxRows)
			break
		}
	}

	columns := make([]*Column, len(names))
	for i, name := range names {
		columns[i] = buildColumn(name, i, records)
	}

	return NewFrame(columns)
}

func buildColumn(name string, idx int, records [][]string) *Column {
	colType := inferType(idx, records)

	col := &Column{
		Name:  name,
		Type:  colType,
		Nulls: make([]bool, len(records)),
	}

	switch colType {
	case FloatColumn:
		col.Floats = make([]float64, len(records))
		for row, record := range records {
			v, err := strconv.ParseFloat(record[idx], 64)
			if record[idx] == "" || err != nil {
				col.Nulls[row] = true
				continue
			}
			col.Floats[row] = v
		}
	case TimeColumn:
		col.Times = make([]time.Time, len(records))
		for row, record := range records {
			t, ok := ParseDate(record[idx])
			if !ok {
				col.Nulls[row] = true
				continue
			}
			col.Times[row] = t
		}
	default:
		col.Strings = make([]string, len(records))
		for row, record := range records {
			if record[idx] == "" {
				col.Nulls[row] = true
				continue
			}
			col.Strings[row] = record[idx]
		}
	}

	return col
}

// inferType samples non-empty values and picks the narrowest type that
// accounts for nearly all of them. The 95% threshold tolerates stray garbage
// without degrading an otherwise numeric or date column to strings.
func inferType(idx int, records [][]string) ColumnType {
	var sampled, floats, times int
	for _, record := range records {
		value := record[idx]
		if value == "" {
			continue
		}
		sampled++
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			floats++
		} else if _, ok := ParseDate(value); ok {
			times++
		}
		if sampled >= typeInferenceSample {
			break
		}
	}

	if sampled == 0 {
		return StringColumn
	}
	if float64(floats)/float64(sampled) >= 0.95 {
		return FloatColumn
	}
	if float64(times)/float64(sampled) >= 0.95 {
		return TimeColumn
	}
	return StringColumn
}

func ParseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
