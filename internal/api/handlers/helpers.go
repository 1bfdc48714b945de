package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/matiasleandrokruk/toolscope/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/toolscope/internal/domain/tool"
)

// maxBodyBytes bounds request bodies; tool lists from large MCP servers stay well below it.
const maxBodyBytes = 4 << 20

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 500
)

var errMissingWorkspace = errors.New("workspace_id not found in context")

// getWorkspaceID reads the workspace injected by AuthMiddleware.
func getWorkspaceID(r *http.Request) (string, error) {
	wsID := ctxkeys.Value(r.Context(), ctxkeys.WorkspaceID)
	if wsID == "" {
		return "", errMissingWorkspace
	}
	return wsID, nil
}

// parseLimit reads ?limit=, falling back to def and capping at max.
func parseLimit(r *http.Request, def, max int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// writeDomainError maps tool package sentinels to status codes. Anything
// unrecognized is a 500 with a generic message.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, tool.ErrMalformedDescriptor),
		errors.Is(err, tool.ErrInvalidInputSchema),
		errors.Is(err, tool.ErrInvalidSourceKind):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, tool.ErrToolDefinitionNotFound),
		errors.Is(err, tool.ErrSourceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, tool.ErrToolDefinitionExists),
		errors.Is(err, tool.ErrSourceExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// toolsRequest is the body of the stateless classifier endpoints. Elements are
// pointers so a JSON null is reported as a malformed descriptor, not a zero value.
type toolsRequest struct {
	Tools []*tool.Descriptor `json:"tools"`
}

func decodeToolsRequest(w http.ResponseWriter, r *http.Request) ([]*tool.Descriptor, bool) {
	var req toolsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return nil, false
	}
	if req.Tools == nil {
		writeError(w, http.StatusBadRequest, "tools is required")
		return nil, false
	}
	return req.Tools, true
}
