// Package planner implements the GraphRAG Query Planner: a seven-node state
// graph with two conditional edges (spec.md §4.6), expressed as a plain
// method-per-node pipeline over *State rather than a DAG library, following
// the teacher's hand-rolled state-machine style.
package planner

import (
	"github.com/mratomo/graphrag-engine/pkg/adapters/vectorstore"
	"github.com/mratomo/graphrag-engine/pkg/models"
)

// QueryType mirrors models.QueryType with the planner-internal "analysis"
// and "exploration" classifications added; models.QueryType only
// distinguishes direct/graph/vector for history bookkeeping, so the
// planner keeps its own richer classification during the run and maps it
// down to models.QueryType only when writing history.
type QueryType string

const (
	QueryDirect      QueryType = "direct"
	QueryExploration QueryType = "exploration"
	QueryAnalysis    QueryType = "analysis"
)

// State is the object threaded through every planner node. Fields are
// populated incrementally; nodes never remove data another node wrote.
type State struct {
	// Inputs
	Query          string
	ConnectionID   string
	UserID         string
	AreaID         string
	LLMProviderID  string

	// Populated by analyzeQuery
	QueryType         QueryType
	MentionedTables   []string
	ExplorationDepth  int

	// Populated by retrieveSchema. OriginalDocuments carries just the text,
	// for prompt assembly; RetrievedDocs keeps the doc id and similarity
	// score alongside it so generateResponse can build real models.Source
	// entries instead of placeholder scores.
	OriginalDocuments []string
	RetrievedDocs     []vectorstore.Document

	// Populated by identifyEntities / exploreGraph
	Entities    []models.Entity
	Relations   []models.Relation
	Paths       []models.GraphPath
	Communities []models.Community

	// Populated by generateSubQueries
	SubQueries []models.SubQuery

	// Populated by aggregateContext
	AggregatedContext string

	// Populated by generateResponse
	Response string
	Sources  []models.Source

	// ProcessingInfo is a free-form map for observability, matching
	// spec.md §4.6's state shape; every node may add keys but never remove
	// them.
	ProcessingInfo map[string]any

	// graphAvailable and usedFallback are planner-internal bookkeeping, not
	// part of the state spec.md exposes, but convenient to carry alongside.
	graphAvailable bool
	usedFallback   bool
}

// NewState constructs the initial state for a query run.
func NewState(query, connectionID, userID, areaID, providerID string) *State {
	return &State{
		Query:            query,
		ConnectionID:     connectionID,
		UserID:           userID,
		AreaID:           areaID,
		LLMProviderID:    providerID,
		QueryType:        QueryDirect,
		ExplorationDepth: 1,
		ProcessingInfo:   make(map[string]any),
	}
}

func (s *State) note(key string, value any) {
	if s.ProcessingInfo == nil {
		s.ProcessingInfo = make(map[string]any)
	}
	s.ProcessingInfo[key] = value
}

// historyQueryType maps the planner's internal classification down to the
// three-valued models.QueryType used by persisted history.
func (s *State) historyQueryType() models.QueryType {
	if s.usedFallback {
		return models.QueryTypeVector
	}
	if len(s.Relations) > 0 || len(s.Paths) > 0 {
		return models.QueryTypeGraph
	}
	return models.QueryTypeDirect
}
