package prompts

import (
	"fmt"
	"strings"

	"github.com/mratomo/graphrag-engine/pkg/models"
)

// BuildSubQueryGenerationPrompt asks the LLM to propose up to three
// natural-language sub-questions that would help answer the original query,
// given the entities and relations already surfaced by graph exploration.
func BuildSubQueryGenerationPrompt(query string, entities []models.Entity, relations []models.Relation) string {
	var b strings.Builder

	b.WriteString("# Sub-Query Generation\n\n")
	b.WriteString("Original query: \"")
	b.WriteString(query)
	b.WriteString("\"\n\n")

	b.WriteString("## Tables identified so far\n")
	for _, e := range entities {
		b.WriteString(fmt.Sprintf("- %s.%s", e.Schema, e.Name))
		if e.Description != "" {
			b.WriteString(fmt.Sprintf(": %s", e.Description))
		}
		b.WriteString(fmt.Sprintf(" (relevance %.2f)\n", e.Relevance))
	}
	if len(entities) == 0 {
		b.WriteString("(none)\n")
	}
	b.WriteString("\n")

	b.WriteString("## Relations identified so far\n")
	for _, r := range relations {
		b.WriteString(fmt.Sprintf("- %s.%s → %s.%s\n", r.FromTable, r.ViaColumn, r.ToTable, r.ToColumn))
	}
	if len(relations) == 0 {
		b.WriteString("(none)\n")
	}
	b.WriteString("\n")

	b.WriteString("Propose up to three sub-questions whose answers would help fully answer the original query. ")
	b.WriteString("For each sub-question, decide whether answering it requires querying the schema/data directly " +
		"(`is_schema: true`) or can be answered from the tables/relations context above (`is_schema: false`).\n\n")

	b.WriteString("## Output Format\n\n")
	b.WriteString("Respond in JSON with:\n")
	b.WriteString("- `sub_queries`: array of objects\n")
	b.WriteString("  - `question`: the sub-question text\n")
	b.WriteString("  - `is_schema`: boolean\n\n")

	b.WriteString("Example:\n")
	b.WriteString("```json\n")
	b.WriteString(`{"sub_queries": [{"question": "How many orders does each customer have?", "is_schema": true}]}`)
	b.WriteString("\n```\n\n")

	b.WriteString("Return ONLY the JSON, no additional text. Return an empty array if no useful sub-questions exist.\n")

	return b.String()
}

// BuildSubQueryGenerationSystemMessage returns the system message for the
// sub-query generation LLM call.
func BuildSubQueryGenerationSystemMessage() string {
	return `You are a database query planning assistant. Decompose complex questions into a small number of concrete, independently answerable sub-questions.`
}

// BuildGraphQueryPrompt asks the LLM to turn one schema sub-question into a
// parameterized graph query the planner can execute against the graph store.
// The "parameterized" contract here is a single Cypher-shaped MATCH/RETURN
// statement using the table and column names already known to the planner;
// the planner never interpolates the question text itself into the query.
func BuildGraphQueryPrompt(question string, entities []models.Entity) string {
	var b strings.Builder

	b.WriteString("# Graph Query Generation\n\n")
	b.WriteString("Sub-question: \"")
	b.WriteString(question)
	b.WriteString("\"\n\n")

	b.WriteString("## Known tables\n")
	for _, e := range entities {
		b.WriteString(fmt.Sprintf("- %s.%s\n", e.Schema, e.Name))
	}
	b.WriteString("\n")

	b.WriteString("Write a single Cypher query against a graph where Tables are nodes (label `Table`, property " +
		"`name`) connected by `RELATES_TO` relationships carrying `via_column`/`to_column` properties, that would " +
		"answer the sub-question using only the tables listed above. Use only MATCH/WHERE/RETURN — no write " +
		"clauses.\n\n")

	b.WriteString("Respond in JSON with:\n")
	b.WriteString("- `cypher`: the query text\n\n")
	b.WriteString("Return ONLY the JSON, no additional text.\n")

	return b.String()
}
