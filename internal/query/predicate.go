package query

import (
	"fmt"
	"strings"
	"time"

	"analytics-backend/internal/dataset"
)

// Predicate is a compiled row filter bound to concrete columns of the source
// table. Null cells never match a comparison; they only match IS NULL.
type Predicate interface {
	Matches(row int) bool
}

type andPredicate struct {
	preds []Predicate
}

func (p *andPredicate) Matches(row int) bool {
	for _, pred := range p.preds {
		if !pred.Matches(row) {
			return false
		}
	}
	return true
}

type orPredicate struct {
	preds []Predicate
}

func (p *orPredicate) Matches(row int) bool {
	for _, pred := range p.preds {
		if pred.Matches(row) {
			return true
		}
	}
	return false
}

type notPredicate struct {
	pred Predicate
}

func (p *notPredicate) Matches(row int) bool {
	return !p.pred.Matches(row)
}

type nullPredicate struct {
	col *dataset.Column
	not bool
}

func (p *nullPredicate) Matches(row int) bool {
	return p.col.IsNull(row) != p.not
}

type stringPredicate struct {
	col   *dataset.Column
	op    string
	value string
	lower string // precomputed for CONTAINS
}

func (p *stringPredicate) Matches(row int) bool {
	if p.col.IsNull(row) {
		return false
	}
	v := p.col.Strings[row]
	switch p.op {
	case "CONTAINS":
		return strings.Contains(strings.ToLower(v), p.lower)
	case "=":
		return v == p.value
	case "!=":
		return v != p.value
	case "<":
		return v < p.value
	case ">":
		return v > p.value
	case "<=":
		return v <= p.value
	case ">=":
		return v >= p.value
	}
	return false
}

type floatPredicate struct {
	col   *dataset.Column
	op    string
	value float64
}

func (p *floatPredicate) Matches(row int) bool {
	if p.col.IsNull(row) {
		return false
	}
	v := p.col.Floats[row]
	switch p.op {
	case "=":
		return v == p.value
	case "!=":
		return v != p.value
	case "<":
		return v < p.value
	case ">":
		return v > p.value
	case "<=":
		return v <= p.value
	case ">=":
		return v >= p.value
	}
	return false
}

type timePredicate struct {
	col   *dataset.Column
	op    string
	value time.Time
}

func (p *timePredicate) Matches(row int) bool {
	if p.col.IsNull(row) {
		return false
	}
	v := p.col.Times[row]
	switch p.op {
	case "=":
		return v.Equal(p.value)
	case "!=":
		return !v.Equal(p.value)
	case "<":
		return v.Before(p.value)
	case ">":
		return v.After(p.value)
	case "<=":
		return !v.After(p.value)
	case ">=":
		return !v.Before(p.value)
	}
	return false
}

func (e *Expr) toPredicate(src *sourceTable) (Predicate, error) {
	if len(e.Ors) == 0 {
		return nil, fmt.Errorf("empty filter expression")
	}
	if len(e.Ors) == 1 {
		return e.Ors[0].toPredicate(src)
	}
	var preds []Predicate
	for _, or := range e.Ors {
		pred, err := or.toPredicate(src)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return &orPredicate{preds: preds}, nil
}

func (o *OrExpr) toPredicate(src *sourceTable) (Predicate, error) {
	if len(o.Ands) == 0 {
		return nil, fmt.Errorf("empty filter expression")
	}
	if len(o.Ands) == 1 {
		return o.Ands[0].toPredicate(src)
	}
	var preds []Predicate
	for _, cond := range o.Ands {
		pred, err := cond.toPredicate(src)
		if err != nil {
			return nil, err
		}
		preds = append(preds, pred)
	}
	return &andPredicate{preds: preds}, nil
}

func (c *Condition) toPredicate(src *sourceTable) (Predicate, error) {
	var pred Predicate
	var err error
	if c.SubExpr != nil {
		pred, err = c.SubExpr.toPredicate(src)
	} else {
		pred, err = c.Cmp.toPredicate(src)
	}
	if err != nil {
		return nil, err
	}
	if c.Not {
		pred = &notPredicate{pred: pred}
	}
	return pred, nil
}

func (c *Comparison) toPredicate(src *sourceTable) (Predicate, error) {
	col, err := src.column(c.Column)
	if err != nil {
		return nil, err
	}

	if c.Null != nil {
		return &nullPredicate{col: col, not: c.Null.Not}, nil
	}

	op := strings.ToUpper(c.Op)

	switch col.Type {
	case dataset.StringColumn:
		s, ok := c.Value.(StringValue)
		if !ok {
			return nil, fmt.Errorf("column %q holds strings; compare it to a quoted string value", col.Name)
		}
		return &stringPredicate{col: col, op: op, value: s.Value, lower: strings.ToLower(s.Value)}, nil

	case dataset.FloatColumn:
		if op == "CONTAINS" {
			return nil, fmt.Errorf("CONTAINS is not supported on numeric column %q", col.Name)
		}
		switch v := c.Value.(type) {
		case NumberValue:
			return &floatPredicate{col: col, op: op, value: v.Value}, nil
		default:
			return nil, fmt.Errorf("column %q is numeric; compare it to a number", col.Name)
		}

	case dataset.TimeColumn:
		if op == "CONTAINS" {
			return nil, fmt.Errorf("CONTAINS is not supported on datetime column %q", col.Name)
		}
		s, ok := c.Value.(StringValue)
		if !ok {
			return nil, fmt.Errorf("column %q is a datetime; compare it to a quoted date like \"2023-01-01\"", col.Name)
		}
		t, ok2 := dataset.ParseDate(s.Value)
		if !ok2 {
			return nil, fmt.Errorf("could not parse %q as a date for column %q; use a format like \"2023-01-01\"", s.Value, col.Name)
		}
		return &timePredicate{col: col, op: op, value: t}, nil
	}

	return nil, fmt.Errorf("unsupported column type for %q", col.Name)
}
