package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"analytics-backend/internal/dataset"
)

// maxMaterializedRows bounds ungrouped results so a missing LIMIT cannot
// materialize the whole dataset.
const maxMaterializedRows = 10000

// Run parses and executes a query against the dataset. The frame is never
// mutated; every query works off row index lists and fresh output tables.
func Run(frame *dataset.Frame, dict *dataset.Dictionary, text string) (*Result, error) {
	pipeline, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return pipeline.Execute(frame, dict)
}

type sourceTable struct {
	frame   *dataset.Frame
	dict    *dataset.Dictionary
	derived map[string]*dataset.Column
}

func (s *sourceTable) column(name string) (*dataset.Column, error) {
	if col, ok := s.derived[name]; ok {
		return col, nil
	}
	canonical := name
	if s.dict != nil {
		canonical = s.dict.Resolve(name)
	}
	if col, ok := s.frame.Column(canonical); ok {
		return col, nil
	}
	return nil, fmt.Errorf("unknown column %q; available columns: %s", name, strings.Join(s.availableColumns(), ", "))
}

func (s *sourceTable) availableColumns() []string {
	names := s.frame.ColumnNames()
	for name := range s.derived {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Pipeline) Execute(frame *dataset.Frame, dict *dataset.Dictionary) (*Result, error) {
	src := &sourceTable{frame: frame, dict: dict, derived: make(map[string]*dataset.Column)}

	rows := make([]int, frame.NumRows())
	for i := range rows {
		rows[i] = i
	}

	var result *Result
	for _, stage := range p.Stages {
		var err error
		switch {
		case stage.Filter != nil:
			rows, err = applyFilter(src, rows, stage.Filter)
		case stage.Bucket != nil:
			err = applyBucket(src, stage.Bucket)
		case stage.Group != nil:
			result, err = applyGroup(src, rows, stage.Group)
		case stage.Count:
			result = &Result{Columns: []string{"count"}, Rows: [][]Cell{{numCell(float64(len(rows)))}}, Scalar: true}
		case stage.Sort != nil:
			if result != nil {
				err = sortResult(result, stage.Sort)
			} else {
				err = sortRows(src, rows, stage.Sort)
			}
		case stage.Limit != nil:
			if result != nil {
				if len(result.Rows) > stage.Limit.N {
					result.Rows = result.Rows[:stage.Limit.N]
				}
			} else if len(rows) > stage.Limit.N {
				rows = rows[:stage.Limit.N]
			}
		case stage.Select != nil:
			if result != nil {
				err = selectResultColumns(result, stage.Select.Columns)
			} else {
				result, err = materialize(src, rows, stage.Select.Columns)
			}
		}
		if err != nil {
			return nil, err
		}
	}

	if result == nil {
		var err error
		result, err = materialize(src, rows, nil)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func applyFilter(src *sourceTable, rows []int, stage *FilterStage) ([]int, error) {
	pred, err := stage.Expr.toPredicate(src)
	if err != nil {
		return nil, err
	}
	kept := rows[:0]
	for _, row := range rows {
		if pred.Matches(row) {
			kept = append(kept, row)
		}
	}
	return kept, nil
}

func applyBucket(src *sourceTable, stage *BucketStage) error {
	col, err := src.column(stage.Column)
	if err != nil {
		return err
	}
	if col.Type != dataset.TimeColumn {
		return fmt.Errorf("BUCKET requires a datetime column, but %q holds %s values", col.Name, col.Type)
	}

	name := stage.As
	if name == "" {
		name = strings.ToLower(stage.Unit)
	}

	derived := &dataset.Column{
		Name:    name,
		Type:    dataset.StringColumn,
		Strings: make([]string, col.Len()),
		Nulls:   make([]bool, col.Len()),
	}
	for row := 0; row < col.Len(); row++ {
		if col.IsNull(row) {
			derived.Nulls[row] = true
			continue
		}
		derived.Strings[row] = bucketValue(col.Times[row], stage.Unit)
	}

	src.derived[name] = derived
	return nil
}

func bucketValue(t time.Time, unit string) string {
	switch strings.ToUpper(unit) {
	case "YEAR":
		return t.Format("2006")
	case "MONTH":
		return t.Format("2006-01")
	case "DATE":
		return t.Format("2006-01-02")
	case "HOUR":
		return t.Format("15")
	case "WEEKDAY":
		return t.Weekday().String()
	}
	return t.Format("2006-01-02")
}

type groupBucket struct {
	key  []string
	rows []int
}

func applyGroup(src *sourceTable, rows []int, stage *GroupStage) (*Result, error) {
	keyCols := make([]*dataset.Column, len(stage.Columns))
	for i, name := range stage.Columns {
		col, err := src.column(name)
		if err != nil {
			return nil, err
		}
		keyCols[i] = col
	}

	var aggCol *dataset.Column
	op := strings.ToUpper(stage.Agg.Op)
	if op != "COUNT" {
		if stage.Agg.Column == "" {
			return nil, fmt.Errorf("%s requires a column, e.g. AGG %s \"Latitude\"", op, op)
		}
		col, err := src.column(stage.Agg.Column)
		if err != nil {
			return nil, err
		}
		if col.Type == dataset.StringColumn {
			return nil, fmt.Errorf("%s requires a numeric or datetime column, but %q holds strings", op, col.Name)
		}
		if (op == "SUM" || op == "MEAN") && col.Type != dataset.FloatColumn {
			return nil, fmt.Errorf("%s requires a numeric column, but %q holds %s values", op, col.Name, col.Type)
		}
		aggCol = col
	}

	groups := make(map[string]*groupBucket)
	var order []string
	for _, row := range rows {
		skip := false
		key := make([]string, len(keyCols))
		for i, col := range keyCols {
			if col.IsNull(row) {
				skip = true
				break
			}
			key[i] = col.Format(row)
		}
		if skip {
			// Rows with null group keys are dropped, matching how pandas
			// groupby treats NaN keys.
			continue
		}

		joined := strings.Join(key, "\x00")
		bucket, ok := groups[joined]
		if !ok {
			bucket = &groupBucket{key: key}
			groups[joined] = bucket
			order = append(order, joined)
		}
		bucket.rows = append(bucket.rows, row)
	}

	aggName := stage.As
	if aggName == "" {
		aggName = strings.ToLower(op)
	}

	result := &Result{Columns: append(append([]string{}, stage.Columns...), aggName)}
	for _, joined := range order {
		bucket := groups[joined]
		row := make([]Cell, 0, len(bucket.key)+1)
		for _, k := range bucket.key {
			row = append(row, textCell(k))
		}
		row = append(row, aggregate(aggCol, bucket.rows, op))
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

func aggregate(col *dataset.Column, rows []int, op string) Cell {
	if op == "COUNT" {
		return numCell(float64(len(rows)))
	}

	if col.Type == dataset.TimeColumn {
		var best time.Time
		found := false
		for _, row := range rows {
			if col.IsNull(row) {
				continue
			}
			v := col.Times[row]
			if !found || (op == "MIN" && v.Before(best)) || (op == "MAX" && v.After(best)) {
				best = v
				found = true
			}
		}
		if !found {
			return textCell("")
		}
		return textCell(best.Format("2006-01-02 15:04:05"))
	}

	var sum, minV, maxV float64
	count := 0
	for _, row := range rows {
		if col.IsNull(row) {
			continue
		}
		v := col.Floats[row]
		if count == 0 {
			minV, maxV = v, v
		} else {
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
		sum += v
		count++
	}
	if count == 0 {
		return textCell("")
	}

	switch op {
	case "SUM":
		return numCell(sum)
	case "MEAN":
		return numCell(sum / float64(count))
	case "MIN":
		return numCell(minV)
	case "MAX":
		return numCell(maxV)
	}
	return textCell("")
}

func sortRows(src *sourceTable, rows []int, stage *SortStage) error {
	col, err := src.column(stage.Column)
	if err != nil {
		return err
	}
	desc := stage.Descending()

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		// Nulls sort last regardless of direction.
		if col.IsNull(a) || col.IsNull(b) {
			return !col.IsNull(a) && col.IsNull(b)
		}
		var less bool
		switch col.Type {
		case dataset.FloatColumn:
			less = col.Floats[a] < col.Floats[b]
		case dataset.TimeColumn:
			less = col.Times[a].Before(col.Times[b])
		default:
			less = col.Strings[a] < col.Strings[b]
		}
		if desc {
			return !less && !equalAt(col, a, b)
		}
		return less
	})
	return nil
}

func equalAt(col *dataset.Column, a, b int) bool {
	switch col.Type {
	case dataset.FloatColumn:
		return col.Floats[a] == col.Floats[b]
	case dataset.TimeColumn:
		return col.Times[a].Equal(col.Times[b])
	default:
		return col.Strings[a] == col.Strings[b]
	}
}

func sortResult(result *Result, stage *SortStage) error {
	idx, ok := result.ColumnIndex(stage.Column)
	if !ok {
		return fmt.Errorf("unknown sort column %q; result columns: %s", stage.Column, strings.Join(result.Columns, ", "))
	}
	desc := stage.Descending()

	sort.SliceStable(result.Rows, func(i, j int) bool {
		a, b := result.Rows[i][idx], result.Rows[j][idx]
		var less bool
		if a.IsNum && b.IsNum {
			less = a.Num < b.Num
		} else {
			less = a.Text < b.Text
		}
		if desc {
			less = !less && !(a.Text == b.Text && a.Num == b.Num)
		}
		return less
	})
	return nil
}

func selectResultColumns(result *Result, columns []string) error {
	indices := make([]int, len(columns))
	for i, name := range columns {
		idx, ok := result.ColumnIndex(name)
		if !ok {
			return fmt.Errorf("unknown column %q in SELECT; result columns: %s", name, strings.Join(result.Columns, ", "))
		}
		indices[i] = idx
	}

	result.Columns = append([]string{}, columns...)
	for i, row := range result.Rows {
		selected := make([]Cell, len(indices))
		for j, idx := range indices {
			selected[j] = row[idx]
		}
		result.Rows[i] = selected
	}
	return nil
}

func materialize(src *sourceTable, rows []int, columns []string) (*Result, error) {
	var cols []*dataset.Column
	if len(columns) == 0 {
		cols = src.frame.Columns()
	} else {
		for _, name := range columns {
			col, err := src.column(name)
			if err != nil {
				return nil, err
			}
			cols = append(cols, col)
		}
	}

	if len(rows) > maxMaterializedRows {
		rows = rows[:maxMaterializedRows]
	}

	result := &Result{}
	for _, col := range cols {
		result.Columns = append(result.Columns, col.Name)
	}
	for _, row := range rows {
		cells := make([]Cell, len(cols))
		for i, col := range cols {
			if col.Type == dataset.FloatColumn && !col.IsNull(row) {
				cells[i] = numCell(col.Floats[row])
			} else {
				cells[i] = textCell(col.Format(row))
			}
		}
		result.Rows = append(result.Rows, cells)
	}
	return result, nil
}
