package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mratomo/graphrag-engine/pkg/adapters/vectorstore"
)

const (
	defaultFindRelevantLimit = 5
	maxFindRelevantLimit     = 50
)

func registerFindRelevantTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"find_relevant",
		mcp.WithDescription(
			"Search the vector store for text relevant to a query, returning results ordered by "+
				"descending similarity score. Use owner_id to search a caller's personal documents; "+
				"omit it to search the shared general collection.",
		),
		mcp.WithString(
			"query",
			mcp.Required(),
			mcp.Description("The text to search for"),
		),
		mcp.WithString(
			"embedding_type",
			mcp.Description("Optional collection override: 'general', 'personal', or 'database_schemas'"),
		),
		mcp.WithString(
			"owner_id",
			mcp.Description("Optional owner id restricting results to one caller's personal documents"),
		),
		mcp.WithString(
			"area_id",
			mcp.Description("Optional area id restricting results to documents tagged with that area"),
		),
		mcp.WithNumber(
			"limit",
			mcp.Description("Maximum number of results to return (default 5, max 50)"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return nil, err
		}

		limit := defaultFindRelevantLimit
		if l, ok := getOptionalInt(req, "limit"); ok && l > 0 {
			limit = l
		}
		if limit > maxFindRelevantLimit {
			limit = maxFindRelevantLimit
		}

		results, err := FindRelevant(ctx, deps, query,
			getOptionalString(req, "embedding_type"),
			getOptionalString(req, "owner_id"),
			getOptionalString(req, "area_id"),
			limit,
		)
		if err != nil {
			return nil, err
		}

		jsonResult, err := json.Marshal(results)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

type FindRelevantResult struct {
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func FindRelevant(ctx context.Context, deps *Deps, query, embeddingType, ownerID, areaID string, limit int) ([]FindRelevantResult, error) {
	collection := vectorstore.CollectionGeneral
	switch {
	case embeddingType != "":
		collection = embeddingType
	case ownerID != "":
		collection = vectorstore.CollectionPersonal
	}

	filter := map[string]any{}
	if ownerID != "" {
		filter["owner_id"] = ownerID
	}
	if areaID != "" {
		filter["area_id"] = areaID
	}
	if len(filter) == 0 {
		filter = nil
	}

	vector, err := deps.Embedder.CreateEmbedding(ctx, "", query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	docs, err := deps.Store.Search(ctx, collection, vector, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", collection, err)
	}

	results := make([]FindRelevantResult, 0, len(docs))
	for _, d := range docs {
		results = append(results, FindRelevantResult{Text: d.Text, Score: d.Score, Metadata: d.Metadata})
	}
	return results, nil
}
