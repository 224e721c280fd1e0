package query_test

import (
	"testing"
	"time"

	"analytics-backend/internal/dataset"
	"analytics-backend/internal/query"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(value string) time.Time {
	t, _ := time.Parse("2006-01-02", value)
	return t
}

func testFrame(t *testing.T) *dataset.Frame {
	complaints := []string{
		"Noise - Residential", "Noise - Street", "Illegal Parking",
		"Noise - Residential", "Heat/Hot Water", "Illegal Parking",
		"Noise - Residential", "",
	}
	boroughs := []string{
		"BROOKLYN", "MANHATTAN", "BROOKLYN",
		"QUEENS", "BRONX", "BROOKLYN",
		"MANHATTAN", "BROOKLYN",
	}
	created := []time.Time{
		date("2023-01-15"), date("2023-01-20"), date("2023-02-03"),
		date("2023-02-10"), date("2023-03-01"), date("2023-03-15"),
		date("2024-01-05"), date("2024-02-01"),
	}
	lats := []float64{40.6, 40.7, 40.65, 40.72, 40.85, 0, 40.78, 40.61}

	rows := len(complaints)
	complaintNulls := make([]bool, rows)
	complaintNulls[7] = true
	latNulls := make([]bool, rows)
	latNulls[5] = true

	frame, err := dataset.NewFrame([]*dataset.Column{
		{Name: "Complaint Type", Type: dataset.StringColumn, Strings: complaints, Nulls: complaintNulls},
		{Name: "Borough", Type: dataset.StringColumn, Strings: boroughs, Nulls: make([]bool, rows)},
		{Name: "Created Date", Type: dataset.TimeColumn, Times: created, Nulls: make([]bool, rows)},
		{Name: "Latitude", Type: dataset.FloatColumn, Floats: lats, Nulls: latNulls},
	})
	require.NoError(t, err)
	return frame
}

func run(t *testing.T, frame *dataset.Frame, text string) *query.Result {
	result, err := query.Run(frame, nil, text)
	require.NoError(t, err, "query: %s", text)
	return result
}

func TestCount(t *testing.T) {
	frame := testFrame(t)

	result := run(t, frame, `COUNT`)
	assert.True(t, result.Scalar)
	assert.Equal(t, "scalar", result.Kind())
	assert.Equal(t, float64(8), result.Rows[0][0].Num)
}

func TestFilterCount(t *testing.T) {
	frame := testFrame(t)

	tests := []struct {
		query string
		want  float64
	}{
		{`FILTER Borough = "BROOKLYN" | COUNT`, 4},
		{`FILTER Borough != "BROOKLYN" | COUNT`, 4},
		{`FILTER "Complaint Type" CONTAINS "noise" | COUNT`, 4},
		{`FILTER "Complaint Type" IS NULL | COUNT`, 1},
		{`FILTER "Complaint Type" IS NOT NULL | COUNT`, 7},
		{`FILTER Latitude > 40.7 | COUNT`, 3},
		{`FILTER Latitude <= 40.65 | COUNT`, 3},
		{`FILTER "Created Date" >= "2024-01-01" | COUNT`, 2},
		{`FILTER "Created Date" < "2023-03-01" | COUNT`, 4},
		{`FILTER Borough = "BROOKLYN" AND "Complaint Type" CONTAINS "parking" | COUNT`, 2},
		{`FILTER Borough = "BRONX" OR Borough = "QUEENS" | COUNT`, 2},
		{`FILTER NOT Borough = "BROOKLYN" | COUNT`, 4},
	}

	for _, tt := range tests {
		result := run(t, frame, tt.query)
		assert.Equal(t, tt.want, result.Rows[0][0].Num, "query: %s", tt.query)
	}
}

func TestGroupCount(t *testing.T) {
	frame := testFrame(t)

	result := run(t, frame, `GROUP BY Borough AGG COUNT | SORT count DESC`)
	assert.Equal(t, []string{"Borough", "count"}, result.Columns)
	require.Len(t, result.Rows, 4)
	assert.Equal(t, "BROOKLYN", result.Rows[0][0].Text)
	assert.Equal(t, float64(4), result.Rows[0][1].Num)
}

func TestGroupDropsNullKeys(t *testing.T) {
	frame := testFrame(t)

	result := run(t, frame, `GROUP BY "Complaint Type" AGG COUNT`)
	for _, row := range result.Rows {
		assert.NotEmpty(t, row[0].Text)
	}
	require.Len(t, result.Rows, 4)
}

func TestGroupMean(t *testing.T) {
	frame := testFrame(t)

	result := run(t, frame, `FILTER Borough = "BROOKLYN" | GROUP BY Borough AGG MEAN "Latitude" AS avg_lat`)
	assert.Equal(t, []string{"Borough", "avg_lat"}, result.Columns)
	require.Len(t, result.Rows, 1)
	// Null latitude row is excluded from the mean.
	assert.InDelta(t, (40.6+40.65+40.61)/3, result.Rows[0][1].Num, 1e-9)
}

func TestBucketByMonth(t *testing.T) {
	frame := testFrame(t)

	result := run(t, frame, `FILTER "Created Date" < "2024-01-01" | BUCKET "Created Date" BY MONTH AS month | GROUP BY month AGG COUNT | SORT month ASC`)
	assert.Equal(t, []string{"month", "count"}, result.Columns)
	require.Len(t, result.Rows, 3)
	assert.Equal(t, "2023-01", result.Rows[0][0].Text)
	assert.Equal(t, float64(2), result.Rows[0][1].Num)
}

func TestSortAndLimitRows(t *testing.T) {
	frame := testFrame(t)

	result := run(t, frame, `FILTER Latitude IS NOT NULL | SORT Latitude DESC | SELECT Borough, Latitude | LIMIT 2`)
	assert.Equal(t, []string{"Borough", "Latitude"}, result.Columns)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "BRONX", result.Rows[0][0].Text)
	assert.Equal(t, 40.85, result.Rows[0][1].Num)
}

func TestUnknownColumnError(t *testing.T) {
	frame := testFrame(t)

	_, err := query.Run(frame, nil, `FILTER Zipcode = "11201" | COUNT`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown column "Zipcode"`)
	assert.Contains(t, err.Error(), "available columns")
}

func TestTypeMismatchErrors(t *testing.T) {
	frame := testFrame(t)

	_, err := query.Run(frame, nil, `FILTER Latitude CONTAINS "40" | COUNT`)
	assert.Error(t, err)

	_, err = query.Run(frame, nil, `GROUP BY Borough AGG SUM "Complaint Type"`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SUM")

	_, err = query.Run(frame, nil, `BUCKET Borough BY MONTH | GROUP BY month AGG COUNT`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "datetime")
}

func TestDictionaryResolvesAliases(t *testing.T) {
	frame := testFrame(t)
	dict, err := dataset.LoadDictionary()
	require.NoError(t, err)

	result, err := query.Run(frame, dict, `FILTER borough = "BROOKLYN" | COUNT`)
	require.NoError(t, err)
	assert.Equal(t, float64(4), result.Rows[0][0].Num)
}

func TestPreviewCapsRows(t *testing.T) {
	rows := 80
	values := make([]string, rows)
	for i := range values {
		values[i] = "x"
	}
	frame, err := dataset.NewFrame([]*dataset.Column{
		{Name: "Value", Type: dataset.StringColumn, Strings: values, Nulls: make([]bool, rows)},
	})
	require.NoError(t, err)

	result := run(t, frame, `SELECT Value`)
	require.Len(t, result.Rows, 80)
	preview := result.Preview()
	assert.Contains(t, preview, "... 30 more rows")
}
