// Package tools implements the two MCP tools the runtime exposes:
// store_document and find_relevant. Every other subsystem that needs to
// write or search the vector store goes through these, mirroring the
// teacher's one-file-per-tool-group layout under pkg/mcp/tools.
package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/adapters/vectorstore"
	mcpruntime "github.com/mratomo/graphrag-engine/pkg/mcp"
)

// Embedder is the narrow slice of pkg/llm.Dispatcher these tools need.
type Embedder interface {
	CreateEmbedding(ctx context.Context, providerID, input string) ([]float32, error)
}

// Deps are the dependencies shared by store_document and find_relevant.
type Deps struct {
	Store    vectorstore.Store
	Embedder Embedder
	Runtime  *mcpruntime.ContextRuntime
	Logger   *zap.Logger
}

// Register adds store_document and find_relevant to s.
func Register(s *server.MCPServer, deps *Deps) {
	registerStoreDocumentTool(s, deps)
	registerFindRelevantTool(s, deps)
}

// getOptionalString extracts an optional string argument from the request.
func getOptionalString(req mcp.CallToolRequest, key string) string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return ""
	}
	val, _ := args[key].(string)
	return val
}

// getOptionalInt extracts an optional integer argument from the request,
// tolerating the float64 the JSON decoder produces for bare numbers.
func getOptionalInt(req mcp.CallToolRequest, key string) (int, bool) {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return 0, false
	}
	val, ok := args[key].(float64)
	if !ok {
		return 0, false
	}
	return int(val), true
}

// getOptionalStringMap extracts an optional string-keyed, string-valued
// object argument, stringifying any non-string value it encounters.
func getOptionalStringMap(req mcp.CallToolRequest, key string) map[string]string {
	args, ok := req.Params.Arguments.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := args[key].(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
