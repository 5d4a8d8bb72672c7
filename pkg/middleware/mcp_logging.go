package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mratomo/graphrag-engine/pkg/config"
)

// MCPRequestLogger returns middleware that logs MCP JSON-RPC requests and
// responses for the store_document/find_relevant tool calls. It intercepts
// request/response bodies to extract tool names, parameters, and error
// details, honoring cfg's granular toggles. Pass nil logger to disable
// logging entirely.
func MCPRequestLogger(logger *zap.Logger, cfg config.MCPConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("failed to read MCP request body", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

			var rpcReq jsonRPCRequest
			if err := json.Unmarshal(bodyBytes, &rpcReq); err != nil {
				logger.Debug("failed to parse MCP request JSON", zap.Error(err))
			}

			toolName := rpcReq.Params.Name
			sanitizedArgs := sanitizeArguments(rpcReq.Params.Arguments)

			if cfg.LogRequests {
				logger.Debug("MCP request",
					zap.String("method", rpcReq.Method),
					zap.String("tool", toolName),
					zap.Any("arguments", sanitizedArgs),
				)
			}

			recorder := &mcpResponseRecorder{
				ResponseWriter: w,
				body:           &bytes.Buffer{},
			}
			start := time.Now()

			next.ServeHTTP(recorder, r)

			duration := time.Since(start)

			var rpcResp jsonRPCResponse
			if err := json.Unmarshal(recorder.body.Bytes(), &rpcResp); err != nil {
				logger.Debug("failed to parse MCP response JSON", zap.Error(err))
				return
			}

			if rpcResp.Error != nil {
				if cfg.LogErrors {
					logger.Debug("MCP response error",
						zap.String("tool", toolName),
						zap.Int("error_code", rpcResp.Error.Code),
						zap.String("error_message", rpcResp.Error.Message),
						zap.Duration("duration", duration),
					)
				}
				return
			}

			if !cfg.LogRequests && !cfg.LogResponses {
				return
			}
			fields := []zap.Field{
				zap.String("tool", toolName),
				zap.Duration("duration", duration),
			}
			if cfg.LogResponses {
				fields = append(fields, zap.Any("result", rpcResp.Result))
			}
			logger.Debug("MCP response success", fields...)
		})
	}
}

// jsonRPCRequest represents the structure of a JSON-RPC request for tools/call.
type jsonRPCRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string                 `json:"name"`
		Arguments map[string]interface{} `json:"arguments"`
	} `json:"params"`
}

// jsonRPCResponse represents the structure of a JSON-RPC response.
type jsonRPCResponse struct {
	Result interface{}   `json:"result"`
	Error  *jsonRPCError `json:"error"`
}

// jsonRPCError represents an error in a JSON-RPC response.
type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// mcpResponseRecorder is a response writer that captures the response body.
type mcpResponseRecorder struct {
	http.ResponseWriter
	body *bytes.Buffer
}

func (r *mcpResponseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// sanitizeArguments redacts sensitive fields and truncates long values.
func sanitizeArguments(args map[string]interface{}) map[string]interface{} {
	if args == nil {
		return nil
	}

	sensitiveKeywords := []string{"password", "secret", "token", "key", "credential"}
	result := make(map[string]interface{})

	for k, v := range args {
		lowerKey := strings.ToLower(k)
		isSensitive := false
		for _, keyword := range sensitiveKeywords {
			if strings.Contains(lowerKey, keyword) {
				isSensitive = true
				break
			}
		}

		if isSensitive {
			result[k] = "[REDACTED]"
			continue
		}

		if str, ok := v.(string); ok && len(str) > 200 {
			result[k] = str[:200] + "..."
		} else {
			result[k] = v
		}
	}

	return result
}
