package prompts

import "strings"

// BuildQueryAnalysisPrompt asks the LLM to classify a user query and name the
// tables it appears to reference. The planner's query-analysis node parses
// the JSON response with pkg/llm.ParseJSONResponse and falls back to
// QueryTypeDirect/depth 1 on any parse failure.
func BuildQueryAnalysisPrompt(query string) string {
	var b strings.Builder

	b.WriteString("# Query Analysis\n\n")
	b.WriteString("Classify the following user query and identify any database tables it mentions.\n\n")
	b.WriteString("Query: \"")
	b.WriteString(query)
	b.WriteString("\"\n\n")

	b.WriteString("## Classification\n")
	b.WriteString("- `direct`: a simple factual lookup answerable from a handful of rows\n")
	b.WriteString("- `exploration`: the query asks to discover or browse related data without a precise target\n")
	b.WriteString("- `analysis`: the query requires aggregation, comparison, or reasoning across several tables\n\n")

	b.WriteString("## Exploration depth\n")
	b.WriteString("Suggest how many hops of related tables (1, 2, or 3) would be useful to answer this query.\n\n")

	b.WriteString("## Output Format\n\n")
	b.WriteString("Respond in JSON with:\n")
	b.WriteString("- `query_type`: one of \"direct\", \"exploration\", \"analysis\"\n")
	b.WriteString("- `mentioned_tables`: array of table names you recognize in the query text (may be empty)\n")
	b.WriteString("- `exploration_depth`: integer, 1-3\n\n")

	b.WriteString("Example:\n")
	b.WriteString("```json\n")
	b.WriteString(`{"query_type": "analysis", "mentioned_tables": ["orders", "customers"], "exploration_depth": 2}`)
	b.WriteString("\n```\n\n")

	b.WriteString("Return ONLY the JSON, no additional text.\n")

	return b.String()
}

// BuildQueryAnalysisSystemMessage returns the system message for the
// query-analysis LLM call.
func BuildQueryAnalysisSystemMessage() string {
	return `You are a query routing expert for a database-backed retrieval system. Classify each query precisely; when uncertain, prefer "direct".`
}
