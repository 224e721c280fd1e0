package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"analytics-backend/internal/query"
)

const queryLanguageGuide = `The analysis query language is a pipeline of stages joined by "|".

Stages, in order:
  FILTER <expr>                  keep rows matching a boolean expression; expressions
                                 combine comparisons with AND, OR, NOT, and parentheses.
                                 Comparisons: col = "v", col != "v", col CONTAINS "v",
                                 col < 5, col >= "2023-01-01", col IS NULL, col IS NOT NULL.
  BUCKET <col> BY <unit> AS <name>
                                 derive a new column from a datetime column;
                                 units: YEAR, MONTH, DATE, HOUR, WEEKDAY.
  GROUP BY <col>[, <col>] AGG <agg> AS <name>
                                 aggregate per group; aggs: COUNT, SUM <col>,
                                 MEAN <col>, MIN <col>, MAX <col>.
  SORT <col> [ASC|DESC]
  LIMIT <n>
  SELECT <col>[, <col>]          pick output columns (ungrouped results only need this
                                 when you want specific columns).
  COUNT                          final stage; returns a single number of matching rows.

Column names containing spaces must be double-quoted.

EXAMPLES:
  Top 10 complaint types:
    GROUP BY "Complaint Type" AGG COUNT | SORT count DESC | LIMIT 10
  Noise complaints per borough:
    FILTER "Complaint Type" CONTAINS "noise" | GROUP BY "Borough" AGG COUNT | SORT count DESC
  Monthly trend for 2023:
    FILTER "Created Date" >= "2023-01-01" AND "Created Date" < "2024-01-01" | BUCKET "Created Date" BY MONTH AS month | GROUP BY month AGG COUNT | SORT month ASC
  Total number of open requests:
    FILTER "Status" = "Open" | COUNT`

func planSystemPrompt(datasetContext string) string {
	return fmt.Sprintf(`You are an expert data analyst specializing in NYC 311 service request data.

DATASET INFORMATION:
%s

Your task: Analyze the user's question and create a clear, step-by-step analysis plan.

Consider:
1. What columns are needed?
2. What aggregations/calculations are required?
3. Are there any data cleaning steps needed?
4. What's the best way to present the results?

Provide a concise but complete analysis plan.`, datasetContext)
}

func generateQuerySystemPrompt(datasetContext, plan string) string {
	return fmt.Sprintf(`You are an expert at writing analysis queries for NYC 311 service request data.

DATASET CONTEXT:
%s

ANALYSIS PLAN:
%s

%s

Write a single query implementing the plan.

CRITICAL REQUIREMENTS:
1. Use only columns that exist in the dataset context above.
2. Quote every column name that contains spaces.
3. Filter out nulls with IS NOT NULL when a column has many nulls.
4. Return ONLY the query, no explanations.`, datasetContext, plan, queryLanguageGuide)
}

func retryQuerySystemPrompt(datasetContext, previousQuery, execError string) string {
	return fmt.Sprintf(`The previous query failed. Fix the error and generate a corrected query.

PREVIOUS QUERY:
%s

ERROR:
%s

DATASET CONTEXT:
%s

%s

Return ONLY the corrected query.`, previousQuery, execError, datasetContext, queryLanguageGuide)
}

const decideChartSystemPrompt = `You are a data visualization expert. Decide if a chart would enhance understanding.

CREATE VISUALIZATION whenever the data is visual in nature:
- Top N lists, rankings, comparisons
- Trends over time, distributions
- Geographic patterns, categorical breakdowns
- Any multi-value results that benefit from visual representation

DO NOT create a visualization ONLY if:
- The user explicitly says "no chart", "just numbers", "text only"
- The result is a single scalar value
- A yes/no answer
- The result would be unreadable as a chart

DEFAULT: When in doubt, CREATE the visualization.

Respond with ONLY 'YES' or 'NO'.`

// truncateText cuts a string to at most limit runes; slicing on byte offsets
// could split a multi-byte character in complaint text.
func truncateText(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}

func decideChartUserPrompt(question string, result *query.Result) string {
	preview := truncateText(result.Preview(), 200)
	return fmt.Sprintf(`User Query: %s

Result Type: %s
Result Preview: %s

Should we create a visualization? Answer YES or NO only.`, question, result.Kind(), preview)
}

func chartSystemPrompt(queryText string, result *query.Result, previousSpec, chartError string) string {
	preview := truncateText(result.Preview(), 500)

	var b strings.Builder
	if chartError != "" {
		fmt.Fprintf(&b, `You are a data visualization expert. The previous chart spec FAILED.

PREVIOUS CHART SPEC THAT FAILED:
%s

ERROR MESSAGE:
%s

`, previousSpec, chartError)
	} else {
		b.WriteString("You are a data visualization expert.\n\n")
	}

	fmt.Fprintf(&b, `The following analysis query was executed successfully:
%s

RESULT COLUMNS: %s
RESULT PREVIEW:
%s

Generate a JSON chart spec to visualize this result:
{"kind": "bar" | "line" | "pie", "title": "...", "x_label": "...", "y_label": "...", "label_column": "...", "value_column": "..."}

CRITICAL REQUIREMENTS:
1. label_column and value_column MUST be result columns listed above.
2. Choose an appropriate chart kind:
   - rankings and categorical breakdowns: bar
   - time series and trends: line
   - shares of a whole with few categories: pie
3. Give the chart a clear, descriptive title and labeled axes.

Return ONLY the JSON spec.`, queryText, strings.Join(result.Columns, ", "), preview)
	return b.String()
}

const formatSystemPrompt = `You are a helpful data analyst presenting findings to a user.

Format the results in a clear, professional manner:
1. Start with a direct answer to their question
2. Present key findings with specific numbers
3. Add relevant context or insights
4. Use bullet points for multiple items
5. Be conversational but precise
6. If a visualization was created, reference it naturally

Do NOT:
- Include the query used
- Use technical jargon unnecessarily
- Make claims not supported by the data`

func formatUserPrompt(question string, result *query.Result, hasChart bool) string {
	return fmt.Sprintf(`User Question: %s

Analysis Results:
%s

Visualization Created: %t

Format this into a clear, helpful response:`, question, result.Preview(), hasChart)
}

func errorResponse(execError string) string {
	return fmt.Sprintf(`I encountered an error while analyzing the data:

%s

Please try rephrasing your question or ask something else about the NYC 311 dataset.`, execError)
}
