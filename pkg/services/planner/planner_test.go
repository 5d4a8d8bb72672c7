package planner

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mratomo/graphrag-engine/pkg/adapters/vectorstore"
	"github.com/mratomo/graphrag-engine/pkg/llm"
	"github.com/mratomo/graphrag-engine/pkg/models"
	"github.com/mratomo/graphrag-engine/pkg/services/graph"
)

// fakeLLM is a scripted Embedder+Generator test double: GenerateResponse
// returns the next queued response in order, keyed loosely by a substring
// of the prompt so each node's call is easy to script independently.
type scriptedResponse struct {
	substr   string
	response string
}

type fakeLLM struct {
	embedding []float32
	embedErr  error

	// responses is checked in order; the first entry whose substr appears
	// in the prompt wins, so a catch-all entry with substr "" must be last.
	responses []scriptedResponse
	genErr    error
}

func (f *fakeLLM) CreateEmbedding(_ context.Context, _, _ string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.embedding, nil
}

func (f *fakeLLM) GenerateResponse(_ context.Context, _, prompt, _ string, _ float64, _ bool) (*llm.GenerateResponseResult, error) {
	if f.genErr != nil {
		return nil, f.genErr
	}
	for _, r := range f.responses {
		if r.substr == "" || containsFold(prompt, r.substr) {
			return &llm.GenerateResponseResult{Content: r.response}, nil
		}
	}
	return &llm.GenerateResponseResult{Content: "no scripted answer"}, nil
}

func containsFold(haystack, needle string) bool {
	return len(needle) == 0 || indexFold(haystack, needle) >= 0
}

func indexFold(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if equalFold(haystack[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

type stubHistory struct {
	records []models.QueryRecord
}

func (s *stubHistory) Record(_ context.Context, record models.QueryRecord) error {
	s.records = append(s.records, record)
	return nil
}

func testSchema(connID uuid.UUID) *models.Schema {
	return &models.Schema{
		ConnectionID: connID,
		Name:         "shop",
		DBType:       "postgresql",
		Tables: []models.Table{
			{
				Name:        "orders",
				Schema:      "public",
				Description: "customer orders",
				Columns: []models.Column{
					{Name: "id", IsPrimaryKey: true},
					{Name: "customer_id", IsForeignKey: true, References: "public.customers.id"},
				},
			},
			{
				Name:        "customers",
				Schema:      "public",
				Description: "customer accounts",
				Columns: []models.Column{
					{Name: "id", IsPrimaryKey: true},
				},
			},
		},
	}
}

func analysisResponse(queryType string) string {
	payload, _ := json.Marshal(map[string]any{
		"query_type":        queryType,
		"mentioned_tables":  []string{"orders", "customers"},
		"exploration_depth": 2,
	})
	return string(payload)
}

func TestPlanner_Run_DirectQueryNoGraph(t *testing.T) {
	ctx := context.Background()
	vectors := vectorstore.NewMemoryStore()
	require.NoError(t, vectors.EnsureCollection(ctx, vectorstore.CollectionGeneral))
	_, err := vectors.Upsert(ctx, vectorstore.CollectionGeneral, "", "orders table holds purchase records", []float32{1, 0, 0}, nil)
	require.NoError(t, err)

	llmClient := &fakeLLM{
		embedding: []float32{1, 0, 0},
		responses: []scriptedResponse{
			{substr: "Query Analysis", response: analysisResponse("direct")},
			{substr: "", response: "Orders are customer purchases."},
		},
	}

	p := New(vectors, graph.NewMemoryStore(), llmClient, nil, nil, false, nil)
	resp, err := p.Run(ctx, models.QueryRequest{Query: "what is an order?"})
	require.NoError(t, err)
	assert.Equal(t, models.QueryTypeDirect, resp.QueryType)
	assert.NotEmpty(t, resp.Answer)
}

func TestPlanner_Run_ExplorationWithGraph(t *testing.T) {
	ctx := context.Background()
	connID := uuid.New()

	store := graph.NewMemoryStore()
	require.NoError(t, store.Project(ctx, testSchema(connID)))

	vectors := vectorstore.NewMemoryStore()
	require.NoError(t, vectors.EnsureCollection(ctx, vectorstore.CollectionGeneral))

	llmClient := &fakeLLM{
		embedding: []float32{0.5, 0.5, 0},
		responses: []scriptedResponse{
			{substr: "Query Analysis", response: analysisResponse("exploration")},
			{substr: "Sub-Query Generation", response: `{"sub_queries": []}`},
			{substr: "", response: "Orders relate to customers via customer_id."},
		},
	}

	history := &stubHistory{}
	p := New(vectors, store, llmClient, nil, history, true, nil)

	resp, err := p.Run(ctx, models.QueryRequest{Query: "how do orders relate to customers?", ConnectionID: connID.String()})
	require.NoError(t, err)
	assert.Equal(t, models.QueryTypeGraph, resp.QueryType)
	assert.Len(t, history.records, 1)
	assert.Equal(t, "how do orders relate to customers?", history.records[0].Query)
}

func TestPlanner_Run_FallsBackOnGenerationFailure(t *testing.T) {
	ctx := context.Background()
	vectors := vectorstore.NewMemoryStore()
	require.NoError(t, vectors.EnsureCollection(ctx, vectorstore.CollectionGeneral))

	llmClient := &fakeLLM{
		embedding: []float32{1, 0, 0},
		genErr:    errors.New("upstream unavailable"),
	}

	p := New(vectors, graph.NewMemoryStore(), llmClient, nil, nil, false, nil)
	resp, err := p.Run(ctx, models.QueryRequest{Query: "anything"})
	require.NoError(t, err)
	assert.Equal(t, apologyResponse, resp.Answer)
	assert.Equal(t, models.QueryTypeVector, resp.QueryType)
	assert.Empty(t, resp.Sources)
}

func TestPlanner_ShouldExploreGraph(t *testing.T) {
	p := &Planner{graphAvailable: true}

	st := NewState("q", uuid.New().String(), "", "", "")
	st.Entities = []models.Entity{{Name: "orders"}}
	assert.False(t, p.shouldExploreGraph(st), "direct query with one entity should not explore")

	st.Entities = append(st.Entities, models.Entity{Name: "customers"})
	assert.True(t, p.shouldExploreGraph(st), "direct query with two entities should explore")

	st.QueryType = QueryExploration
	st.Entities = []models.Entity{{Name: "orders"}}
	assert.True(t, p.shouldExploreGraph(st), "exploration query with one entity should explore")
}

func TestPlanner_ShouldGenerateSubQueries(t *testing.T) {
	p := &Planner{}
	st := &State{}
	assert.False(t, p.shouldGenerateSubQueries(st))

	st.Entities = []models.Entity{{Name: "a"}, {Name: "b"}}
	st.Relations = []models.Relation{{FromTable: "a", ToTable: "b"}}
	assert.True(t, p.shouldGenerateSubQueries(st))

	st2 := &State{Paths: []models.GraphPath{{FromTable: "a", ToTable: "b"}}}
	assert.True(t, p.shouldGenerateSubQueries(st2))
}

func TestFormatRows_TruncatesWithMarker(t *testing.T) {
	rows := make([]map[string]any, 0, 15)
	for i := 0; i < 15; i++ {
		rows = append(rows, map[string]any{"id": i})
	}
	out := formatRows(rows)
	assert.Contains(t, out, "... and 5 more")
}

func TestFormatRows_Empty(t *testing.T) {
	assert.Equal(t, "(no rows)", formatRows(nil))
}
