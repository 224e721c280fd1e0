package chart

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"analytics-backend/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tableResult(rows int) *query.Result {
	result := &query.Result{Columns: []string{"Borough", "count"}}
	for i := 0; i < rows; i++ {
		result.Rows = append(result.Rows, []query.Cell{
			{Text: fmt.Sprintf("Borough %d", i)},
			{Text: fmt.Sprintf("%d", (i+1)*10), Num: float64((i + 1) * 10), IsNum: true},
		})
	}
	return result
}

func TestParseSpec(t *testing.T) {
	spec, err := ParseSpec(`{"kind": "bar", "title": "Complaints by Borough", "label_column": "Borough", "value_column": "count"}`)
	require.NoError(t, err)
	assert.Equal(t, "bar", spec.Kind)
	assert.Equal(t, "Complaints by Borough", spec.Title)
}

func TestParseSpecStripsCodeFence(t *testing.T) {
	spec, err := ParseSpec("```json\n{\"kind\": \"LINE\", \"title\": \"Trend\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "line", spec.Kind)
}

func TestParseSpecErrors(t *testing.T) {
	_, err := ParseSpec(`not json`)
	assert.ErrorContains(t, err, "not valid JSON")

	_, err = ParseSpec(`{"kind": "scatter"}`)
	assert.ErrorContains(t, err, "unsupported chart kind")
}

func TestRenderKinds(t *testing.T) {
	result := tableResult(5)

	for _, kind := range []string{"bar", "line", "pie"} {
		image, err := Render(&Spec{Kind: kind, Title: "Test"}, result)
		require.NoError(t, err, "kind: %s", kind)

		png, err := base64.StdEncoding.DecodeString(image)
		require.NoError(t, err, "kind: %s", kind)
		// PNG magic bytes.
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4], "kind: %s", kind)
	}
}

func TestRenderSingleRowBar(t *testing.T) {
	// SORT ... DESC | LIMIT 1 answers produce one row; the bar chart must
	// still render even though the data range collapses.
	result := tableResult(1)

	image, err := Render(&Spec{Kind: "bar", Title: "Top Borough"}, result)
	require.NoError(t, err)

	png, err := base64.StdEncoding.DecodeString(image)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestRenderEqualValuesBar(t *testing.T) {
	result := &query.Result{Columns: []string{"Borough", "count"}}
	for _, borough := range []string{"BRONX", "QUEENS", "BROOKLYN"} {
		result.Rows = append(result.Rows, []query.Cell{
			{Text: borough},
			{Text: "7", Num: 7, IsNum: true},
		})
	}

	image, err := Render(&Spec{Kind: "bar"}, result)
	require.NoError(t, err)
	assert.NotEmpty(t, image)
}

func TestBarRange(t *testing.T) {
	r := barRange([]float64{7, 7, 7})
	assert.Equal(t, 0.0, r.GetMin())
	assert.Equal(t, 7.0, r.GetMax())

	r = barRange([]float64{0})
	assert.Equal(t, 0.0, r.GetMin())
	assert.Equal(t, 1.0, r.GetMax())

	r = barRange([]float64{-3, 5})
	assert.Equal(t, -3.0, r.GetMin())
	assert.Equal(t, 5.0, r.GetMax())
}

func TestRenderExplicitColumns(t *testing.T) {
	result := tableResult(3)

	image, err := Render(&Spec{Kind: "bar", LabelColumn: "Borough", ValueColumn: "count"}, result)
	require.NoError(t, err)
	assert.NotEmpty(t, image)
}

func TestRenderUnknownColumn(t *testing.T) {
	result := tableResult(3)

	_, err := Render(&Spec{Kind: "bar", ValueColumn: "total"}, result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `value column "total" not in result columns`)
	assert.Contains(t, err.Error(), "Borough, count")
}

func TestRenderScalarRejected(t *testing.T) {
	result := &query.Result{
		Columns: []string{"count"},
		Rows:    [][]query.Cell{{{Text: "42", Num: 42, IsNum: true}}},
		Scalar:  true,
	}

	_, err := Render(&Spec{Kind: "bar"}, result)
	assert.ErrorContains(t, err, "scalar")
}

func TestRenderNoNumericColumn(t *testing.T) {
	result := &query.Result{
		Columns: []string{"Borough", "Status"},
		Rows:    [][]query.Cell{{{Text: "BRONX"}, {Text: "Open"}}},
	}

	_, err := Render(&Spec{Kind: "bar"}, result)
	assert.ErrorContains(t, err, "no numeric column")
}

func TestTruncateLabel(t *testing.T) {
	assert.Equal(t, "short", truncateLabel("short"))
	long := "a very long complaint type label indeed"
	got := truncateLabel(long)
	assert.Len(t, got, 24)
	assert.Equal(t, "...", got[21:])

	// Truncation must not split a multi-byte character.
	accented := strings.Repeat("é", 30)
	got = truncateLabel(accented)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", 21)+"...", got)
}
