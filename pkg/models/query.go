package models

import "time"

// Source is one retrieved passage backing a Query answer, carrying enough
// to cite and re-rank it.
type Source struct {
	DocID    string         `json:"doc_id"`
	Score    float64        `json:"score"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// QueryType classifies how a query was answered, for observability and for
// the planner's own fallback bookkeeping.
type QueryType string

const (
	QueryTypeDirect QueryType = "direct"
	QueryTypeGraph  QueryType = "graph"
	QueryTypeVector QueryType = "vector"
)

// QueryRecord is a persisted history entry for one answered query.
type QueryRecord struct {
	ID               string         `json:"id" bson:"_id"`
	Query            string         `json:"query" bson:"query"`
	UserID           string         `json:"user_id,omitempty" bson:"user_id,omitempty"`
	AreaIDs          []string       `json:"area_ids,omitempty" bson:"area_ids,omitempty"`
	IncludePersonal  bool           `json:"include_personal" bson:"include_personal"`
	ProviderID       string         `json:"provider_id,omitempty" bson:"provider_id,omitempty"`
	ConnectionID     string         `json:"connection_id,omitempty" bson:"connection_id,omitempty"`
	QueryType        QueryType      `json:"query_type,omitempty" bson:"query_type,omitempty"`
	Answer           string         `json:"answer" bson:"answer"`
	Sources          []Source       `json:"sources" bson:"sources"`
	ProcessingTimeMs int64          `json:"processing_time_ms" bson:"processing_time_ms"`
	ProcessingInfo   map[string]any `json:"processing_info,omitempty" bson:"processing_info,omitempty"`
	Timestamp        time.Time      `json:"timestamp" bson:"timestamp"`
}

// QueryRequest is the common request body shape across the /query* routes.
type QueryRequest struct {
	Query           string   `json:"query"`
	UserID          string   `json:"user_id,omitempty"`
	AreaIDs         []string `json:"area_ids,omitempty"`
	IncludePersonal bool     `json:"include_personal,omitempty"`
	ProviderID      string   `json:"provider_id,omitempty"`
	ConnectionID    string   `json:"connection_id,omitempty"`
}

// QueryResponse is the response body shape across the /query* routes.
type QueryResponse struct {
	Answer           string         `json:"answer"`
	Sources          []Source       `json:"sources"`
	QueryType        QueryType      `json:"query_type"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	ProcessingInfo   map[string]any `json:"processing_info,omitempty"`
}
