package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/toolscope/internal/domain/tool"
)

// ErrSourceNotSyncable is returned by a SourceResolver for kinds that have no
// remote to pull from.
var ErrSourceNotSyncable = errors.New("source kind cannot be synced")

// ErrSourceNotAllowed is returned by a SourceResolver for sources the server's
// policy forbids, such as unlisted stdio commands or paths outside the file root.
var ErrSourceNotAllowed = errors.New("source not allowed")

// SourceResolver turns a registered source into a fetchable tool.Source.
type SourceResolver func(src *tool.ToolSource) (tool.Source, error)

// SourcesHandler manages tool sources under /api/v1/catalog/sources.
type SourcesHandler struct {
	registry *tool.ToolRegistry
	sync     *tool.SyncService
	resolve  SourceResolver
}

func NewSourcesHandler(registry *tool.ToolRegistry, sync *tool.SyncService, resolve SourceResolver) *SourcesHandler {
	return &SourcesHandler{registry: registry, sync: sync, resolve: resolve}
}

type createSourceRequest struct {
	Name string          `json:"name"`
	Kind tool.SourceKind `json:"kind"`
	URI  string          `json:"uri"`
}

type sourceResponse struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Kind         tool.SourceKind `json:"kind"`
	URI          string          `json:"uri,omitempty"`
	LastSyncedAt *string         `json:"lastSyncedAt,omitempty"`
	CreatedAt    string          `json:"createdAt"`
}

type syncResponse struct {
	SourceID  string `json:"sourceId"`
	Total     int    `json:"total"`
	Search    int    `json:"search"`
	Action    int    `json:"action"`
	Ambiguous int    `json:"ambiguous"`
	RunID     string `json:"runId"`
}

// ListSources handles GET /api/v1/catalog/sources.
func (h *SourcesHandler) ListSources(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := h.registry.ListSources(r.Context(), wsID)
	if err != nil {
		writeDomainError(w, err, "failed to list sources")
		return
	}
	out := make([]sourceResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toSourceResponse(item))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out, "meta": map[string]int{"total": len(out)}})
}

// CreateSource handles POST /api/v1/catalog/sources.
func (h *SourcesHandler) CreateSource(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req createSourceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if trimmed(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !req.Kind.Valid() {
		writeError(w, http.StatusBadRequest, "kind must be one of mcp, a2a, file, manual")
		return
	}
	if req.Kind != tool.SourceKindManual && trimmed(req.URI) == "" {
		writeError(w, http.StatusBadRequest, "uri is required for "+string(req.Kind)+" sources")
		return
	}
	if req.Kind != tool.SourceKindManual {
		if _, err := h.resolve(&tool.ToolSource{WorkspaceID: wsID, Name: req.Name, Kind: req.Kind, URI: req.URI}); err != nil {
			writeResolveError(w, err)
			return
		}
	}

	item, err := h.registry.CreateSource(r.Context(), tool.CreateSourceInput{
		WorkspaceID: wsID,
		Name:        req.Name,
		Kind:        req.Kind,
		URI:         req.URI,
	})
	if err != nil {
		writeDomainError(w, err, "failed to create source")
		return
	}
	writeJSON(w, http.StatusCreated, toSourceResponse(item))
}

// DeleteSource handles DELETE /api/v1/catalog/sources/{id}. Tools owned by the
// source go with it.
func (h *SourcesHandler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.registry.DeleteSource(r.Context(), wsID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err, "failed to delete source")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SyncSource handles POST /api/v1/catalog/sources/{id}/sync.
//
// Response codes:
//   - 200 OK: catalog replaced with the fetched tools
//   - 403 Forbidden: the source is outside the server's source policy
//   - 404 Not Found: unknown source
//   - 422 Unprocessable Entity: manual sources have nothing to pull
//   - 502 Bad Gateway: the provider failed or returned malformed descriptors
func (h *SourcesHandler) SyncSource(w http.ResponseWriter, r *http.Request) {
	wsID, err := getWorkspaceID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.registry.GetSource(r.Context(), wsID, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "failed to load source")
		return
	}

	src, err := h.resolve(item)
	if err != nil {
		writeResolveError(w, err)
		return
	}

	res, err := h.sync.Sync(r.Context(), wsID, item.ID, src)
	switch {
	case errors.Is(err, tool.ErrSourceFetch), errors.Is(err, tool.ErrMalformedDescriptor):
		writeError(w, http.StatusBadGateway, err.Error())
		return
	case err != nil:
		writeDomainError(w, err, "failed to sync source")
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		SourceID:  item.ID,
		Total:     res.Partition.Total(),
		Search:    len(res.Partition.Search),
		Action:    len(res.Partition.Action),
		Ambiguous: len(res.Partition.Ambiguous),
		RunID:     res.Run.ID,
	})
}

func writeResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrSourceNotAllowed):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrSourceNotSyncable):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func toSourceResponse(item *tool.ToolSource) sourceResponse {
	resp := sourceResponse{
		ID:        item.ID,
		Name:      item.Name,
		Kind:      item.Kind,
		URI:       item.URI,
		CreatedAt: item.CreatedAt.Format(time.RFC3339),
	}
	if item.LastSyncedAt != nil {
		s := item.LastSyncedAt.Format(time.RFC3339)
		resp.LastSyncedAt = &s
	}
	return resp
}
