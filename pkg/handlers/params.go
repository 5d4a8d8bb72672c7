package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// parseUUIDParam extracts and validates a path parameter as a UUID. Returns
// the parsed value and true on success, or uuid.Nil and false after writing
// a 400 response.
func parseUUIDParam(w http.ResponseWriter, r *http.Request, pathParam string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(pathParam))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_id", "invalid "+pathParam+" format")
		return uuid.Nil, false
	}
	return id, true
}

// parseUUID parses a UUID from a decoded request body field, without
// writing a response on failure — the caller decides how to report it.
func parseUUID(raw string) (uuid.UUID, error) {
	return uuid.Parse(raw)
}

// queryInt reads an integer query parameter, returning def when absent or
// unparsable.
func queryInt(r *http.Request, name string, def int64) int64 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}
