package planner

import (
	"context"

	"github.com/mratomo/graphrag-engine/pkg/llm"
	"github.com/mratomo/graphrag-engine/pkg/models"
)

// Embedder is the narrow slice of pkg/llm.Dispatcher the planner needs to
// turn a query string into a search vector.
type Embedder interface {
	CreateEmbedding(ctx context.Context, providerID, input string) ([]float32, error)
}

// Generator is the narrow slice of pkg/llm.Dispatcher the planner needs for
// chat completions (query analysis, sub-query generation, response
// generation).
type Generator interface {
	GenerateResponse(ctx context.Context, providerID, prompt, systemMessage string, temperature float64, thinking bool) (*llm.GenerateResponseResult, error)
}

// AreaResolver resolves an area_id to its stored models.Area, used to
// propagate a connection_id and preferred provider into planner state.
type AreaResolver interface {
	ResolveArea(ctx context.Context, areaID string) (*models.Area, error)
}

// HistoryRecorder persists a finished query's QueryRecord.
type HistoryRecorder interface {
	Record(ctx context.Context, record models.QueryRecord) error
}
