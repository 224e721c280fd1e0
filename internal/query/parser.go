package query

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
)

/*
This is a parser for the analysis query language the agent asks the LLM to
emit. A query is a pipeline of stages joined by "|":

Pipeline    := Stage ( "|" Stage )*
Stage       := Filter | Bucket | Group | Sort | Limit | Select | Count
Filter      := "FILTER" Expr
Bucket      := "BUCKET" Column "BY" Unit ( "AS" Column )?
Group       := "GROUP" "BY" Column ( "," Column )* "AGG" Agg ( "AS" Column )?
Sort        := "SORT" Column ( "ASC" | "DESC" )?
Limit       := "LIMIT" <int>
Select      := "SELECT" Column ( "," Column )*
Count       := "COUNT"
Expr        := OrExpr ( "OR" OrExpr )*
OrExpr      := AndExpr ( "AND" AndExpr )*
AndExpr     := "NOT"? Condition
Condition   := Column Op Value | Column "IS" "NOT"? "NULL" | "(" Expr ")"
Op          := "CONTAINS" | "=" | "!=" | "<" | ">" | "<=" | ">="
Unit        := "YEAR" | "MONTH" | "DATE" | "HOUR" | "WEEKDAY"
Agg         := "COUNT" | ( "SUM" | "MEAN" | "MIN" | "MAX" ) Column
Value       := <string> | <number>

Columns may be bare identifiers or quoted strings (most 311 column names
contain spaces).
*/

var parser = participle.MustBuild[Pipeline](
	participle.Unquote("String"),
	participle.Union[Value](StringValue{}, NumberValue{}),
	participle.CaseInsensitive("Ident"),
)

func Parse(text string) (*Pipeline, error) {
	pipeline, err := parser.ParseString("", strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("error parsing query: %w", err)
	}
	if err := pipeline.validate(); err != nil {
		return nil, err
	}
	return pipeline, nil
}

type Pipeline struct {
	Stages []*Stage `@@ ( "|" @@ )*`
}

func (p *Pipeline) String() string {
	parts := make([]string, len(p.Stages))
	for i, stage := range p.Stages {
		parts[i] = stage.String()
	}
	return strings.Join(parts, " | ")
}

// validate rejects pipelines whose stage ordering has no sensible meaning,
// with messages written to be fed back to the LLM.
func (p *Pipeline) validate() error {
	if len(p.Stages) == 0 {
		return fmt.Errorf("query has no stages")
	}
	seenGroup, seenShape, seenCount := false, false, false
	for _, stage := range p.Stages {
		switch {
		case stage.Filter != nil, stage.Bucket != nil:
			if seenGroup || seenShape || seenCount {
				return fmt.Errorf("FILTER and BUCKET stages must come before GROUP BY, SORT, LIMIT, SELECT, and COUNT")
			}
		case stage.Group != nil:
			if seenGroup {
				return fmt.Errorf("only one GROUP BY stage is allowed")
			}
			if seenShape || seenCount {
				return fmt.Errorf("GROUP BY must come before SORT, LIMIT, and SELECT")
			}
			seenGroup = true
		case stage.Count:
			if seenGroup || seenShape || seenCount {
				return fmt.Errorf("COUNT must be the final stage and cannot follow GROUP BY")
			}
			seenCount = true
		default:
			if seenCount {
				return fmt.Errorf("COUNT must be the final stage")
			}
			seenShape = true
		}
	}
	return nil
}

type Stage struct {
	Filter *FilterStage `  "FILTER" @@`
	Bucket *BucketStage `| "BUCKET" @@`
	Group  *GroupStage  `| "GROUP" "BY" @@`
	Sort   *SortStage   `| "SORT" @@`
	Limit  *LimitStage  `| "LIMIT" @@`
	Select *SelectStage `| "SELECT" @@`
	Count  bool         `| @"COUNT"`
}

func (s *Stage) String() string {
	switch {
	case s.Filter != nil:
		return "FILTER " + s.Filter.Expr.String()
	case s.Bucket != nil:
		return s.Bucket.String()
	case s.Group != nil:
		return "GROUP BY " + s.Group.String()
	case s.Sort != nil:
		return s.Sort.String()
	case s.Limit != nil:
		return fmt.Sprintf("LIMIT %d", s.Limit.N)
	case s.Select != nil:
		return "SELECT " + strings.Join(s.Select.Columns, ", ")
	case s.Count:
		return "COUNT"
	}
	return ""
}

type FilterStage struct {
	Expr *Expr `@@`
}

type BucketStage struct {
	Column string `@(Ident | String)`
	Unit   string `"BY" @("YEAR" | "MONTH" | "DATE" | "HOUR" | "WEEKDAY")`
	As     string `( "AS" @(Ident | String) )?`
}

func (b *BucketStage) String() string {
	out := fmt.Sprintf("BUCKET %q BY %s", b.Column, strings.ToUpper(b.Unit))
	if b.As != "" {
		out += fmt.Sprintf(" AS %q", b.As)
	}
	return out
}

type GroupStage struct {
	Columns []string `@(Ident | String) ( "," @(Ident | String) )*`
	Agg     *AggExpr `"AGG" @@`
	As      string   `( "AS" @(Ident | String) )?`
}

func (g *GroupStage) String() string {
	out := strings.Join(g.Columns, ", ") + " AGG " + g.Agg.String()
	if g.As != "" {
		out += fmt.Sprintf(" AS %q", g.As)
	}
	return out
}

type AggExpr struct {
	Op     string `@("COUNT" | "SUM" | "MEAN" | "MIN" | "MAX")`
	Column string `( @(Ident | String) )?`
}

func (a *AggExpr) String() string {
	if a.Column == "" {
		return strings.ToUpper(a.Op)
	}
	return fmt.Sprintf("%s %q", strings.ToUpper(a.Op), a.Column)
}

type SortStage struct {
	Column string `@(Ident | String)`
	Order  string `( @("ASC" | "DESC") )?`
}

func (s *SortStage) String() string {
	out := fmt.Sprintf("SORT %q", s.Column)
	if s.Order != "" {
		out += " " + strings.ToUpper(s.Order)
	}
	return out
}

func (s *SortStage) Descending() bool {
	return strings.EqualFold(s.Order, "DESC")
}

type LimitStage struct {
	N int `@Int`
}

type SelectStage struct {
	Columns []string `@(Ident | String) ( "," @(Ident | String) )*`
}

type Expr struct {
	Ors []*OrExpr `@@ ( "OR" @@ )*`
}

func (e *Expr) String() string {
	if len(e.Ors) == 1 {
		return e.Ors[0].String()
	}
	parts := make([]string, len(e.Ors))
	for i, or := range e.Ors {
		parts[i] = fmt.Sprintf("(%s)", or.String())
	}
	return strings.Join(parts, " OR ")
}

type OrExpr struct {
	Ands []*Condition `@@ ( "AND" @@ )*`
}

func (o *OrExpr) String() string {
	if len(o.Ands) == 1 {
		return o.Ands[0].String()
	}
	parts := make([]string, len(o.Ands))
	for i, cond := range o.Ands {
		parts[i] = fmt.Sprintf("(%s)", cond.String())
	}
	return strings.Join(parts, " AND ")
}

type Condition struct {
	Not     bool        `@"NOT"?`
	SubExpr *Expr       `( "(" @@ ")"`
	Cmp     *Comparison `| @@ )`
}

func (c *Condition) String() string {
	var out string
	if c.SubExpr != nil {
		out = fmt.Sprintf("(%s)", c.SubExpr.String())
	} else {
		out = c.Cmp.String()
	}
	if c.Not {
		return "NOT " + out
	}
	return out
}

type Comparison struct {
	Column  string `@(Ident | String)`
	Null    *Null  `( "IS" @@`
	Op      string `| @("CONTAINS" | "<" "=" | ">" "=" | "!" "=" | "<" | ">" | "=")`
	Value   Value  `  @@ )`
}

func (c *Comparison) String() string {
	if c.Null != nil {
		if c.Null.Not {
			return fmt.Sprintf("%q IS NOT NULL", c.Column)
		}
		return fmt.Sprintf("%q IS NULL", c.Column)
	}
	return fmt.Sprintf("%q %s %s", c.Column, c.Op, c.Value)
}

type Null struct {
	Not bool `@"NOT"? "NULL"`
}

type Value interface {
	value()
	String() string
}

type StringValue struct {
	Value string `@String`
}

func (s StringValue) value() {}

func (s StringValue) String() string { return fmt.Sprintf("%q", s.Value) }

type NumberValue struct {
	Value float64 `@("-"? (Float | Int))`
}

func (n NumberValue) value() {}

func (n NumberValue) String() string { return fmt.Sprintf("%v", n.Value) }
