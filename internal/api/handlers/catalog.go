package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/toolscope/internal/domain/tool"
)

// CatalogHandler serves the persisted tool catalog under /api/v1/catalog.
type CatalogHandler struct {
	registry *tool.ToolRegistry
}

func NewCatalogHandler(registry *tool.ToolRegistry) *CatalogHandler {
	return &CatalogHandler{registry: registry}
}

type createToolRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
	SourceID    *string         `json:"sourceId,omitempty"`
}

type toolResponse struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspaceId"`
	SourceID    *string         `json:"sourceId,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
	Category    tool.Category   `json:"category"`
	CreatedAt   string          `json:"createdAt"`
	UpdatedAt   string          `json:"updatedAt"`
}

// ListTools handles GET /api/v1/catalog/tools?category=&sourceId=.
func (h *CatalogHandler) ListTools(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := tool.ListFilter{
		Category: tool.Category(r.URL.Query().Get("category")),
		SourceID: r.URL.Query().Get("sourceId"),
	}
	if filter.Category != "" && !filter.Category.Valid() {
		writeError(w, http.StatusBadRequest, "category must be one of search, action, ambiguous")
		return
	}

	items, err := h.registry.ListToolDefinitions(r.Context(), wsID, filter)
	if err != nil {
		writeDomainError(w, err, "failed to list tools")
		return
	}
	writeToolList(w, items)
}

// CreateTool handles POST /api/v1/catalog/tools.
func (h *CatalogHandler) CreateTool(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req createToolRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.registry.CreateToolDefinition(r.Context(), tool.CreateToolDefinitionInput{
		WorkspaceID: wsID,
		SourceID:    req.SourceID,
		Name:        req.Name,
		Description: req.Description,
		InputSchema: req.InputSchema,
	})
	if err != nil {
		writeDomainError(w, err, "failed to create tool")
		return
	}
	writeJSON(w, http.StatusCreated, toToolResponse(item))
}

// GetTool handles GET /api/v1/catalog/tools/{id}.
func (h *CatalogHandler) GetTool(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.registry.GetToolDefinition(r.Context(), wsID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "failed to get tool")
		return
	}
	writeJSON(w, http.StatusOK, toToolResponse(item))
}

// DeleteTool handles DELETE /api/v1/catalog/tools/{id}.
func (h *CatalogHandler) DeleteTool(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.registry.DeleteToolDefinition(r.Context(), wsID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err, "failed to delete tool")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SearchTools handles GET /api/v1/catalog/tools/search: the catalog run through
// the classifier with the current keywords.
func (h *CatalogHandler) SearchTools(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.registry.ListSearchTools(r.Context(), wsID)
	if err != nil {
		writeDomainError(w, err, "failed to list search tools")
		return
	}
	writeToolList(w, items)
}

// Context handles GET /api/v1/catalog/tools/context.
func (h *CatalogHandler) Context(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.registry.ListSearchTools(r.Context(), wsID)
	if err != nil {
		writeDomainError(w, err, "failed to build context")
		return
	}
	writeJSON(w, http.StatusOK, contextResponse{Context: tool.BuildContext(items)})
}

// Reclassify handles POST /api/v1/catalog/reclassify.
func (h *CatalogHandler) Reclassify(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	changed, err := h.registry.Reclassify(r.Context(), wsID)
	if err != nil {
		writeDomainError(w, err, "failed to reclassify tools")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"changed": changed})
}

type runResponse struct {
	ID        string       `json:"id"`
	SourceID  *string      `json:"sourceId,omitempty"`
	Trigger   tool.Trigger `json:"trigger"`
	Input     int          `json:"input"`
	Output    int          `json:"output"`
	Excluded  int          `json:"excluded"`
	CreatedAt string       `json:"createdAt"`
}

// ListRuns handles GET /api/v1/catalog/runs?limit=.
func (h *CatalogHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	runs, err := h.registry.ListRuns(r.Context(), wsID, parseLimit(r, defaultRunsLimit, maxRunsLimit))
	if err != nil {
		writeDomainError(w, err, "failed to list runs")
		return
	}

	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, runResponse{
			ID:        run.ID,
			SourceID:  run.SourceID,
			Trigger:   run.Trigger,
			Input:     run.Input,
			Output:    run.Output,
			Excluded:  run.Excluded,
			CreatedAt: run.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out, "meta": map[string]int{"total": len(out)}})
}

func writeToolList(w http.ResponseWriter, items []*tool.ToolDefinition) {
	out := make([]toolResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toToolResponse(item))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out, "meta": map[string]int{"total": len(out)}})
}

func toToolResponse(item *tool.ToolDefinition) toolResponse {
	return toolResponse{
		ID:          item.ID,
		WorkspaceID: item.WorkspaceID,
		SourceID:    item.SourceID,
		Name:        item.Name,
		Description: item.Description,
		InputSchema: item.InputSchema,
		Category:    item.Category,
		CreatedAt:   item.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   item.UpdatedAt.Format(time.RFC3339),
	}
}

func trimmed(s string) string { return strings.TrimSpace(s) }
