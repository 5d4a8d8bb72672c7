package prompts

import (
	"fmt"
	"strings"

	"github.com/mratomo/graphrag-engine/pkg/models"
)

// AggregatedContext is the set of blocks the context-aggregation node
// concatenates, in the stable order required by spec §4.6 step 8: vector
// snippets, tables, connections between tables, additional information, and
// (for analysis queries only) communities.
type AggregatedContext struct {
	VectorSnippets []string
	Entities       []models.Entity
	Relations      []models.Relation
	Paths          []models.GraphPath
	SubQueries     []models.SubQuery
	Communities    []models.Community
	IncludeCommunities bool
}

// BuildAggregatedContext concatenates the blocks into the single context
// string fed to the RAG synthesis prompt.
func BuildAggregatedContext(ac AggregatedContext) string {
	var b strings.Builder

	if len(ac.VectorSnippets) > 0 {
		b.WriteString("## Retrieved passages\n\n")
		for i, snippet := range ac.VectorSnippets {
			b.WriteString(fmt.Sprintf("[%d] %s\n\n", i+1, snippet))
		}
	}

	if len(ac.Entities) > 0 {
		b.WriteString("## Tables\n\n")
		outgoing := make(map[string][]models.Relation)
		incoming := make(map[string][]models.Relation)
		for _, r := range ac.Relations {
			outgoing[r.FromTable] = append(outgoing[r.FromTable], r)
			incoming[r.ToTable] = append(incoming[r.ToTable], r)
		}
		for _, e := range ac.Entities {
			b.WriteString(fmt.Sprintf("### %s.%s\n", e.Schema, e.Name))
			if e.Description != "" {
				b.WriteString(e.Description + "\n")
			}
			for _, r := range outgoing[e.Name] {
				b.WriteString(fmt.Sprintf("- relates to %s via %s → %s\n", r.ToTable, r.ViaColumn, r.ToColumn))
			}
			for _, r := range incoming[e.Name] {
				b.WriteString(fmt.Sprintf("- referenced by %s via %s → %s\n", r.FromTable, r.ViaColumn, r.ToColumn))
			}
			b.WriteString("\n")
		}
	}

	if len(ac.Paths) > 0 {
		b.WriteString("## Connections between tables\n\n")
		for _, p := range ac.Paths {
			b.WriteString(fmt.Sprintf("- %s → %s: %s (%d hops)\n", p.FromTable, p.ToTable, strings.Join(p.Tables, " → "), p.Length))
		}
		b.WriteString("\n")
	}

	if len(ac.SubQueries) > 0 {
		b.WriteString("## Additional information\n\n")
		for _, sq := range ac.SubQueries {
			b.WriteString(fmt.Sprintf("Q: %s\nA: %s\n\n", sq.Question, sq.Answer))
		}
	}

	if ac.IncludeCommunities && len(ac.Communities) > 0 {
		b.WriteString("## Communities\n\n")
		for _, c := range ac.Communities {
			b.WriteString(fmt.Sprintf("- Community %d: %s\n", c.ID, strings.Join(c.Tables, ", ")))
		}
	}

	return b.String()
}

// BuildRAGSynthesisPrompt wraps the aggregated context and the original
// query into the final prompt dispatched to the LLM for response generation.
func BuildRAGSynthesisPrompt(query, aggregatedContext string) string {
	var b strings.Builder

	b.WriteString("# Answer the following question using only the context provided below.\n\n")
	b.WriteString("Question: ")
	b.WriteString(query)
	b.WriteString("\n\n")

	if strings.TrimSpace(aggregatedContext) == "" {
		b.WriteString("No context was retrieved. Say so plainly rather than guessing.\n")
	} else {
		b.WriteString("# Context\n\n")
		b.WriteString(aggregatedContext)
	}

	b.WriteString("\nCite the tables or passages you relied on where relevant. If the context does not contain ")
	b.WriteString("the answer, say so instead of speculating.\n")

	return b.String()
}

// BuildRAGSynthesisSystemMessage returns the system message for the final
// response-generation LLM call.
func BuildRAGSynthesisSystemMessage() string {
	return `You are a precise database assistant. Answer strictly from the supplied context and never fabricate table or column names that were not given to you.`
}
