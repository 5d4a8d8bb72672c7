package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/adapters/vectorstore"
)

func registerStoreDocumentTool(s *server.MCPServer, deps *Deps) {
	tool := mcp.NewTool(
		"store_document",
		mcp.WithDescription(
			"Store a piece of text in the vector store for later retrieval by find_relevant. "+
				"The currently active MCP context, if any, is attached to the stored document's "+
				"metadata automatically.",
		),
		mcp.WithString(
			"information",
			mcp.Required(),
			mcp.Description("The text to store"),
		),
		mcp.WithObject(
			"metadata",
			mcp.Description(
				"Optional metadata to attach, e.g. {\"owner_id\": \"u123\", \"area_id\": \"a1\"}. "+
					"A non-empty owner_id routes the document into the caller's personal collection "+
					"instead of the shared general collection.",
			),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		information, err := req.RequireString("information")
		if err != nil {
			return nil, err
		}
		metadata := getOptionalStringMap(req, "metadata")

		result, err := StoreDocument(ctx, deps, information, metadata)
		if err != nil {
			return nil, err
		}

		jsonResult, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}

type StoreDocumentResponse struct {
	DocumentID string `json:"document_id"`
	Collection string `json:"collection"`
	Stored     bool   `json:"stored"`
}

func StoreDocument(ctx context.Context, deps *Deps, information string, metadata map[string]string) (*StoreDocumentResponse, error) {
	vector, err := deps.Embedder.CreateEmbedding(ctx, "", information)
	if err != nil {
		return nil, fmt.Errorf("failed to embed document: %w", err)
	}

	meta := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}

	if active, err := deps.Runtime.FirstActive(ctx); err != nil {
		deps.Logger.Warn("failed to resolve active context for store_document", zap.Error(err))
	} else if active != nil {
		meta["context_id"] = active.ContextID
	}

	collection := vectorstore.CollectionGeneral
	if metadata["owner_id"] != "" {
		collection = vectorstore.CollectionPersonal
	}

	if err := deps.Store.EnsureCollection(ctx, collection); err != nil {
		return nil, fmt.Errorf("failed to ensure collection %s: %w", collection, err)
	}

	docID, err := deps.Store.Upsert(ctx, collection, "", information, vector, meta)
	if err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	return &StoreDocumentResponse{DocumentID: docID, Collection: collection, Stored: true}, nil
}
