package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/adapters/vectorstore"
	"github.com/mratomo/graphrag-engine/pkg/jsonutil"
	"github.com/mratomo/graphrag-engine/pkg/llm"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/prompts"
	"github.com/mratomo/graphrag-engine/pkg/services/graph"
)

// dispatcher is the union of Embedder and Generator that pkg/llm.Dispatcher
// satisfies; Planner is constructed with one concrete value playing both
// roles, but depends only on the two narrow interfaces.
type dispatcher interface {
	Embedder
	Generator
}

// apologyResponse is the fixed payload spec.md §7/§4.6 requires on any
// unhandled failure: an apology string with empty sources.
const apologyResponse = "I'm sorry, I wasn't able to put together an answer for that. Please try rephrasing your question."

const maxSubQueries = 3
const maxSubQueryResultRows = 10
const maxPathPairs = 3
const maxCommunities = 5

// Planner runs the seven-node GraphRAG state graph over a query.
type Planner struct {
	vectors vectorstore.Store
	graph   graph.Store
	llm     dispatcher
	areas   AreaResolver
	history HistoryRecorder
	logger  *zap.Logger

	// graphAvailable reflects whether a real graph backend (not the
	// MemoryStore fallback) is configured; the "explore graph?" decision
	// (spec.md §4.6 step 4) requires a *reachable* graph backend, not just
	// any Store value.
	graphAvailable bool
}

// New constructs a Planner. llmClient is typically a *llm.Dispatcher, which
// satisfies both Embedder and Generator. graphAvailable should be
// config.GraphConfig's Enabled() result — true only when a real Neo4j
// backend is configured.
func New(vectors vectorstore.Store, graphStore graph.Store, llmClient interface {
	Embedder
	Generator
}, areas AreaResolver, history HistoryRecorder, graphAvailable bool, logger *zap.Logger) *Planner {
	return &Planner{
		vectors:        vectors,
		graph:          graphStore,
		llm:            llmClient,
		areas:          areas,
		history:        history,
		graphAvailable: graphAvailable,
		logger:         logger,
	}
}

// Run executes the full state graph for one query, matching
// models.QueryRequest/QueryResponse on the caller side. Any unhandled
// failure anywhere in the graph is caught and turned into a fallback plain
// vector-RAG answer (spec.md §9); if even that fails, the fixed apology
// payload is returned instead of propagating the error.
func (p *Planner) Run(ctx context.Context, req models.QueryRequest) (resp models.QueryResponse, err error) {
	start := time.Now()
	state := NewState(req.Query, req.ConnectionID, req.UserID, "", req.ProviderID)
	if len(req.AreaIDs) > 0 {
		state.AreaID = req.AreaIDs[0]
	}

	defer func() {
		if r := recover(); r != nil {
			resp = p.fallbackResponse(ctx, state, start)
		}
	}()

	if err := p.runGraph(ctx, state); err != nil {
		if p.logger != nil {
			p.logger.Warn("planner graph failed, falling back to vector RAG", zap.Error(err))
		}
		return p.fallbackResponse(ctx, state, start), nil
	}

	resp = models.QueryResponse{
		Answer:           state.Response,
		Sources:          state.Sources,
		QueryType:        state.historyQueryType(),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		ProcessingInfo:   state.ProcessingInfo,
	}
	p.recordHistory(ctx, req, state, resp)
	return resp, nil
}

// runGraph drives the seven nodes in order, taking the two conditional
// edges (explore graph?, generate sub-queries?) as plain if-checks between
// node calls.
func (p *Planner) runGraph(ctx context.Context, st *State) error {
	if err := p.resolveArea(ctx, st); err != nil {
		return err
	}
	if err := p.analyzeQuery(ctx, st); err != nil {
		return err
	}
	if err := p.retrieveSchema(ctx, st); err != nil {
		return err
	}
	if err := p.identifyEntities(ctx, st); err != nil {
		return err
	}

	if p.shouldExploreGraph(st) {
		if err := p.exploreGraph(ctx, st); err != nil {
			return err
		}
	}

	if p.shouldGenerateSubQueries(st) {
		if err := p.generateSubQueries(ctx, st); err != nil {
			return err
		}
	}

	if err := p.aggregateContext(ctx, st); err != nil {
		return err
	}
	return p.generateResponse(ctx, st)
}

// resolveArea propagates a connection_id from a stored Area (spec.md §4.6
// step 2's "if area_id resolves to a stored connection_id") when the caller
// didn't already supply one.
func (p *Planner) resolveArea(ctx context.Context, st *State) error {
	if st.AreaID == "" || p.areas == nil {
		return nil
	}
	area, err := p.areas.ResolveArea(ctx, st.AreaID)
	if err != nil {
		return nil // area resolution failure degrades to "no area", not a hard error
	}
	if st.ConnectionID == "" {
		st.ConnectionID = area.ConnectionIDFromMetadata()
	}
	if st.LLMProviderID == "" {
		st.LLMProviderID = area.PreferredProviderID
	}
	return nil
}

// Node 1: query analysis.
func (p *Planner) analyzeQuery(ctx context.Context, st *State) error {
	prompt := prompts.BuildQueryAnalysisPrompt(st.Query)
	result, err := p.llm.GenerateResponse(ctx, st.LLMProviderID, prompt, prompts.BuildQueryAnalysisSystemMessage(), 0.0, false)
	if err != nil {
		st.QueryType = QueryDirect
		st.note("query_analysis_error", err.Error())
		return nil
	}

	// query_type is a classification label, but some providers answer with a
	// bare number or boolean instead of the expected string; json.RawMessage
	// plus jsonutil.FlexibleStringValue tolerates either shape.
	type analysis struct {
		QueryType        json.RawMessage `json:"query_type"`
		MentionedTables  []string        `json:"mentioned_tables"`
		ExplorationDepth int             `json:"exploration_depth"`
	}
	parsed, err := llm.ParseJSONResponse[analysis](result.Content)
	if err != nil {
		st.QueryType = QueryDirect
		st.ExplorationDepth = 1
		st.note("query_analysis_parse_error", err.Error())
		return nil
	}

	switch queryType := QueryType(jsonutil.FlexibleStringValue(parsed.QueryType)); queryType {
	case QueryExploration, QueryAnalysis:
		st.QueryType = queryType
	default:
		st.QueryType = QueryDirect
	}
	st.MentionedTables = parsed.MentionedTables
	if parsed.ExplorationDepth >= 1 && parsed.ExplorationDepth <= 3 {
		st.ExplorationDepth = parsed.ExplorationDepth
	} else {
		st.ExplorationDepth = 1
	}
	st.note("query_type", string(st.QueryType))
	return nil
}

// Node 2: schema retrieval (vector search over general + personal).
func (p *Planner) retrieveSchema(ctx context.Context, st *State) error {
	vector, err := p.llm.CreateEmbedding(ctx, st.LLMProviderID, st.Query)
	if err != nil {
		return nil // degrade silently; aggregation just has no vector snippets
	}

	general, err := p.vectors.Search(ctx, vectorstore.CollectionGeneral, vector, 5, nil)
	if err == nil {
		for _, doc := range general {
			st.OriginalDocuments = append(st.OriginalDocuments, doc.Text)
			st.RetrievedDocs = append(st.RetrievedDocs, doc)
		}
	}

	if st.UserID != "" {
		personal, err := p.vectors.Search(ctx, vectorstore.CollectionPersonal, vector, 5, map[string]any{"owner_id": st.UserID})
		if err == nil {
			for _, doc := range personal {
				st.OriginalDocuments = append(st.OriginalDocuments, doc.Text)
				st.RetrievedDocs = append(st.RetrievedDocs, doc)
			}
		}
	}
	return nil
}

// Node 3: entity identification.
func (p *Planner) identifyEntities(ctx context.Context, st *State) error {
	if !p.graphAvailable || st.ConnectionID == "" {
		return nil
	}
	connID, err := uuid.Parse(st.ConnectionID)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	for _, name := range st.MentionedTables {
		entities, err := p.graph.EntitiesByName(ctx, connID, name)
		if err != nil {
			continue
		}
		for _, e := range entities {
			if !seen[e.Name] {
				seen[e.Name] = true
				st.Entities = append(st.Entities, e)
			}
		}
	}

	if len(st.Entities) > 0 {
		return nil
	}

	if st.QueryType == QueryExploration || st.QueryType == QueryAnalysis {
		entities, err := p.graph.MostConnected(ctx, connID, 5)
		if err == nil {
			st.Entities = entities
		}
		return nil
	}

	entities, err := p.graph.RichestDescriptions(ctx, connID, 3)
	if err == nil {
		st.Entities = entities
	}
	return nil
}

// shouldExploreGraph is the first conditional edge (spec.md §4.6 step 4).
func (p *Planner) shouldExploreGraph(st *State) bool {
	if !p.graphAvailable || st.ConnectionID == "" || len(st.Entities) == 0 {
		return false
	}
	if st.QueryType != QueryDirect {
		return true
	}
	return len(st.Entities) >= 2
}

// Node 5: graph exploration.
func (p *Planner) exploreGraph(ctx context.Context, st *State) error {
	connID, err := uuid.Parse(st.ConnectionID)
	if err != nil {
		return nil
	}

	seenEntities := make(map[string]bool)
	for _, e := range st.Entities {
		seenEntities[e.Name] = true
	}

	var secondary []models.Entity
	for _, e := range st.Entities {
		relations, err := p.graph.OutgoingRelations(ctx, connID, e.Name)
		if err != nil {
			continue
		}
		st.Relations = append(st.Relations, relations...)
		for _, r := range relations {
			if !seenEntities[r.ToTable] {
				seenEntities[r.ToTable] = true
				secondary = append(secondary, models.Entity{
					Name:      r.ToTable,
					Relevance: 0.7,
				})
			}
		}
	}
	st.Entities = append(st.Entities, secondary...)

	top := st.Entities
	if len(top) > maxPathPairs {
		top = top[:maxPathPairs]
	}
	for i := 0; i < len(top); i++ {
		for j := i + 1; j < len(top); j++ {
			paths, err := p.graph.Paths(ctx, connID, top[i].Name, top[j].Name, st.ExplorationDepth)
			if err != nil || len(paths) == 0 {
				continue
			}
			st.Paths = append(st.Paths, paths[0])
		}
	}

	if st.QueryType == QueryAnalysis {
		communities, err := p.graph.Communities(ctx, connID, maxCommunities)
		if err == nil {
			st.Communities = communities
		}
	}
	return nil
}

// shouldGenerateSubQueries is the second conditional edge (spec.md §4.6
// step 6).
func (p *Planner) shouldGenerateSubQueries(st *State) bool {
	if len(st.Entities) >= 2 && len(st.Relations) >= 1 {
		return true
	}
	return len(st.Paths) > 0
}

// Node 7: sub-query generation and execution.
func (p *Planner) generateSubQueries(ctx context.Context, st *State) error {
	prompt := prompts.BuildSubQueryGenerationPrompt(st.Query, st.Entities, st.Relations)
	result, err := p.llm.GenerateResponse(ctx, st.LLMProviderID, prompt, prompts.BuildSubQueryGenerationSystemMessage(), 0.2, false)
	if err != nil {
		st.note("subquery_generation_error", err.Error())
		return nil
	}

	type subQueryPlan struct {
		SubQueries []struct {
			Question string `json:"question"`
			IsSchema bool   `json:"is_schema"`
		} `json:"sub_queries"`
	}
	parsed, err := llm.ParseJSONResponse[subQueryPlan](result.Content)
	if err != nil {
		st.note("subquery_generation_parse_error", err.Error())
		return nil
	}

	connID, connErr := uuid.Parse(st.ConnectionID)

	for i, sq := range parsed.SubQueries {
		if i >= maxSubQueries {
			break
		}
		entry := models.SubQuery{Question: sq.Question, IsSchema: sq.IsSchema}

		if sq.IsSchema && connErr == nil {
			entry.Answer = p.answerSchemaSubQuery(ctx, connID, sq.Question, st.Entities, &entry)
		} else {
			entry.Answer = p.answerDirectSubQuery(ctx, sq.Question)
		}
		st.SubQueries = append(st.SubQueries, entry)
	}
	return nil
}

func (p *Planner) answerDirectSubQuery(ctx context.Context, question string) string {
	result, err := p.llm.GenerateResponse(ctx, "", question, "Answer concisely in one or two sentences.", 0.3, false)
	if err != nil {
		return ""
	}
	return result.Content
}

func (p *Planner) answerSchemaSubQuery(ctx context.Context, connID uuid.UUID, question string, entities []models.Entity, entry *models.SubQuery) string {
	prompt := prompts.BuildGraphQueryPrompt(question, entities)
	result, err := p.llm.GenerateResponse(ctx, "", prompt, "You write precise, read-only Cypher.", 0.0, false)
	if err != nil {
		return ""
	}

	type graphQueryPlan struct {
		Cypher string `json:"cypher"`
	}
	parsed, err := llm.ParseJSONResponse[graphQueryPlan](result.Content)
	if err != nil || parsed.Cypher == "" {
		return ""
	}
	entry.GraphQuery = parsed.Cypher

	rows, err := p.graph.RawQuery(ctx, connID, parsed.Cypher, nil)
	if err != nil {
		return ""
	}
	return formatRows(rows)
}

// formatRows renders up to maxSubQueryResultRows rows as a simple table,
// appending an "... and N more" marker when truncated (spec.md §4.6 step
// 7).
func formatRows(rows []map[string]any) string {
	if len(rows) == 0 {
		return "(no rows)"
	}

	columns := make([]string, 0)
	for key := range rows[0] {
		columns = append(columns, key)
	}

	shown := rows
	more := 0
	if len(rows) > maxSubQueryResultRows {
		shown = rows[:maxSubQueryResultRows]
		more = len(rows) - maxSubQueryResultRows
	}

	var b strings.Builder
	b.WriteString(strings.Join(columns, " | "))
	b.WriteString("\n")
	for _, row := range shown {
		values := make([]string, len(columns))
		for i, col := range columns {
			values[i] = toDisplayString(row[col])
		}
		b.WriteString(strings.Join(values, " | "))
		b.WriteString("\n")
	}
	if more > 0 {
		b.WriteString("... and " + strconv.Itoa(more) + " more\n")
	}
	return b.String()
}

func toDisplayString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Node 8: context aggregation.
func (p *Planner) aggregateContext(_ context.Context, st *State) error {
	st.AggregatedContext = prompts.BuildAggregatedContext(prompts.AggregatedContext{
		VectorSnippets:     st.OriginalDocuments,
		Entities:           st.Entities,
		Relations:          st.Relations,
		Paths:              st.Paths,
		SubQueries:         st.SubQueries,
		Communities:        st.Communities,
		IncludeCommunities: st.QueryType == QueryAnalysis,
	})
	return nil
}

// Node 9: response generation.
func (p *Planner) generateResponse(ctx context.Context, st *State) error {
	prompt := prompts.BuildRAGSynthesisPrompt(st.Query, st.AggregatedContext)
	result, err := p.llm.GenerateResponse(ctx, st.LLMProviderID, prompt, prompts.BuildRAGSynthesisSystemMessage(), 0.3, false)
	if err != nil {
		st.Response = apologyResponse
		st.note("response_generation_error", err.Error())
		return nil
	}
	st.Response = result.Content
	if len(st.RetrievedDocs) > 0 {
		for _, doc := range st.RetrievedDocs {
			st.Sources = append(st.Sources, models.Source{
				DocID: doc.ID,
				Text:  doc.Text,
				Score: doc.Score,
			})
		}
	} else {
		for i, doc := range st.OriginalDocuments {
			st.Sources = append(st.Sources, models.Source{
				DocID: strconv.Itoa(i),
				Text:  doc,
			})
		}
	}
	return nil
}

// fallbackResponse runs a pure vector-RAG path (retrieve, format, generate)
// when the main graph failed, per spec.md §9's fallback requirement. If
// even that fails, the fixed apology payload with empty sources is
// returned.
func (p *Planner) fallbackResponse(ctx context.Context, st *State, start time.Time) models.QueryResponse {
	var snippets []string
	var retrieved []vectorstore.Document
	if vector, err := p.llm.CreateEmbedding(ctx, st.LLMProviderID, st.Query); err == nil {
		if docs, err := p.vectors.Search(ctx, vectorstore.CollectionGeneral, vector, 5, nil); err == nil {
			for _, d := range docs {
				snippets = append(snippets, d.Text)
				retrieved = append(retrieved, d)
			}
		}
	}

	st.usedFallback = true
	answer := apologyResponse
	var sources []models.Source

	aggregated := prompts.BuildAggregatedContext(prompts.AggregatedContext{VectorSnippets: snippets})
	if result, err := p.llm.GenerateResponse(ctx, st.LLMProviderID, prompts.BuildRAGSynthesisPrompt(st.Query, aggregated), prompts.BuildRAGSynthesisSystemMessage(), 0.3, false); err == nil {
		answer = result.Content
		for _, d := range retrieved {
			sources = append(sources, models.Source{DocID: d.ID, Text: d.Text, Score: d.Score})
		}
	}

	st.note("fallback", true)
	return models.QueryResponse{
		Answer:           answer,
		Sources:          sources,
		QueryType:        models.QueryTypeVector,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		ProcessingInfo:   st.ProcessingInfo,
	}
}

func (p *Planner) recordHistory(ctx context.Context, req models.QueryRequest, st *State, resp models.QueryResponse) {
	if p.history == nil {
		return
	}
	record := models.QueryRecord{
		Query:            req.Query,
		UserID:           req.UserID,
		ConnectionID:     req.ConnectionID,
		ProviderID:       req.ProviderID,
		QueryType:        resp.QueryType,
		Answer:           resp.Answer,
		Sources:          resp.Sources,
		ProcessingTimeMs: resp.ProcessingTimeMs,
		ProcessingInfo:   resp.ProcessingInfo,
		Timestamp:        time.Now(),
	}
	if err := p.history.Record(ctx, record); err != nil && p.logger != nil {
		p.logger.Warn("failed to persist query history", zap.Error(err))
	}
}
