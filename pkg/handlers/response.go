// Package handlers wires every HTTP route onto the stdlib mux, following
// the teacher's handlers/response.go + params.go conventions generalized
// from ontology/project routes to connections, agents, schemas, queries,
// and the MCP runtime.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mratomo/graphrag-engine/pkg/apperrors"
)

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteError maps err to a status code via apperrors.HTTPStatus and writes
// it as a JSON body, replacing the teacher's repeated per-handler
// ErrorResponse calls with one apperrors.Kind-driven dispatch. The message
// is the error's own text; apperrors.Error never wraps a credential or API
// key into its Message, so this never leaks a secret. A KindRateLimited
// error carrying a RetryAfter hint is reflected onto the Retry-After header
// and the JSON body.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	kind := apperrors.KindInternal
	message := "internal error"
	retryAfterSeconds := 0
	if errors.As(err, &appErr) {
		kind = appErr.Kind
		message = appErr.Message
		if appErr.RetryAfter > 0 {
			retryAfterSeconds = int(appErr.RetryAfter.Seconds())
			if retryAfterSeconds < 1 {
				retryAfterSeconds = 1
			}
		}
	}

	if retryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(kind.HTTPStatus())
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":               string(kind),
			"message":             message,
			"retry_after_seconds": retryAfterSeconds,
		})
		return
	}

	_ = ErrorResponse(w, kind.HTTPStatus(), string(kind), message)
}
