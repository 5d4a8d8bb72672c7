// Package client is the "native" embedded MCP client: it calls the tool
// implementations in pkg/mcp/tools directly, in-process, with no HTTP hop.
// pkg/mcp/httpclient is the functionally-interchangeable fallback that talks
// to the same tools over the wire; both tag every response with
// client_type so a caller can observe which path handled the call.
package client

import (
	"context"

	"github.com/mratomo/graphrag-engine/pkg/mcp/tools"
	"github.com/mratomo/graphrag-engine/pkg/models"
)

// ClientType identifies this client in every response it returns.
const ClientType = "embedded"

// Client calls the MCP tools in-process.
type Client struct {
	deps *tools.Deps
}

// New constructs an embedded Client over deps.
func New(deps *tools.Deps) *Client {
	return &Client{deps: deps}
}

// StoreDocumentResult wraps a store_document response with the client_type
// tag that lets a caller distinguish this path from the HTTP fallback.
type StoreDocumentResult struct {
	tools.StoreDocumentResponse
	ClientType string `json:"client_type"`
}

// StoreDocument embeds and stores information, tagging metadata with the
// currently active context if one exists.
func (c *Client) StoreDocument(ctx context.Context, information string, metadata map[string]string) (*StoreDocumentResult, error) {
	resp, err := tools.StoreDocument(ctx, c.deps, information, metadata)
	if err != nil {
		return nil, err
	}
	return &StoreDocumentResult{StoreDocumentResponse: *resp, ClientType: ClientType}, nil
}

// FindRelevantResult wraps a find_relevant response with the client_type tag.
type FindRelevantResult struct {
	Results    []tools.FindRelevantResult `json:"results"`
	ClientType string                     `json:"client_type"`
}

// FindRelevant runs a similarity search, optionally scoped by ownerID/areaID
// and collection override embeddingType.
func (c *Client) FindRelevant(ctx context.Context, query, embeddingType, ownerID, areaID string, limit int) (*FindRelevantResult, error) {
	results, err := tools.FindRelevant(ctx, c.deps, query, embeddingType, ownerID, areaID, limit)
	if err != nil {
		return nil, err
	}
	return &FindRelevantResult{Results: results, ClientType: ClientType}, nil
}

// ActiveContextsResult wraps a get_active_contexts response.
type ActiveContextsResult struct {
	Contexts   []*models.Context `json:"contexts"`
	ClientType string            `json:"client_type"`
}

// ActiveContexts lists currently active contexts, optionally filtered to
// those whose metadata["type"] equals metadataType.
func (c *Client) ActiveContexts(ctx context.Context, metadataType string) (*ActiveContextsResult, error) {
	active, err := c.deps.Runtime.ActiveContextsByType(ctx, metadataType)
	if err != nil {
		return nil, err
	}
	return &ActiveContextsResult{Contexts: active, ClientType: ClientType}, nil
}
