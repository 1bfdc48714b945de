package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/matiasleandrokruk/toolscope/internal/domain/tool"
)

// ToolsHandler serves the stateless classifier endpoints under /api/v1/tools.
type ToolsHandler struct {
	classifier *tool.Classifier
	registry   *tool.ToolRegistry
	logger     zerolog.Logger
}

// NewToolsHandler wires the classifier. registry may be nil; when set, every
// filter call is recorded as a classification run.
func NewToolsHandler(classifier *tool.Classifier, registry *tool.ToolRegistry, logger zerolog.Logger) *ToolsHandler {
	return &ToolsHandler{classifier: classifier, registry: registry, logger: logger}
}

type filterMeta struct {
	Input    int `json:"input"`
	Output   int `json:"output"`
	Excluded int `json:"excluded"`
}

type filterResponse struct {
	Data []tool.Descriptor `json:"data"`
	Meta filterMeta        `json:"meta"`
}

type contextResponse struct {
	Context string `json:"context"`
}

type classification struct {
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Category      tool.Category `json:"category"`
	SearchMatches []string      `json:"searchMatches"`
	ActionMatches []string      `json:"actionMatches"`
}

type classifyResponse struct {
	Data []classification `json:"data"`
	Meta map[string]int   `json:"meta"`
}

// Filter handles POST /api/v1/tools/filter.
func (h *ToolsHandler) Filter(w http.ResponseWriter, r *http.Request) {
	tools, ok := decodeToolsRequest(w, r)
	if !ok {
		return
	}

	kept, err := tool.Filter(h.classifier, tools)
	if err != nil {
		writeDomainError(w, err, "failed to filter tools")
		return
	}

	resp := filterResponse{
		Data: tool.ToDescriptors(kept),
		Meta: filterMeta{Input: len(tools), Output: len(kept), Excluded: len(tools) - len(kept)},
	}
	h.recordRun(r, resp.Meta)
	writeJSON(w, http.StatusOK, resp)
}

// Context handles POST /api/v1/tools/context.
func (h *ToolsHandler) Context(w http.ResponseWriter, r *http.Request) {
	tools, ok := decodeToolsRequest(w, r)
	if !ok {
		return
	}
	if err := tool.ValidateDescriptors(tools); err != nil {
		writeDomainError(w, err, "failed to build context")
		return
	}
	writeJSON(w, http.StatusOK, contextResponse{Context: tool.BuildContext(tools)})
}

// Classify handles POST /api/v1/tools/classify. Unlike Filter it reports every
// tool, ambiguous ones included, with the keywords that matched.
func (h *ToolsHandler) Classify(w http.ResponseWriter, r *http.Request) {
	tools, ok := decodeToolsRequest(w, r)
	if !ok {
		return
	}
	if err := tool.ValidateDescriptors(tools); err != nil {
		writeDomainError(w, err, "failed to classify tools")
		return
	}

	resp := classifyResponse{
		Data: make([]classification, 0, len(tools)),
		Meta: map[string]int{
			string(tool.CategorySearch):    0,
			string(tool.CategoryAction):    0,
			string(tool.CategoryAmbiguous): 0,
		},
	}
	for _, t := range tools {
		search, action := h.classifier.Explain(t)
		category := h.classifier.Classify(t)
		resp.Meta[string(category)]++
		resp.Data = append(resp.Data, classification{
			Name:          t.Name,
			Description:   t.Description,
			Category:      category,
			SearchMatches: nonNil(search),
			ActionMatches: nonNil(action),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ToolsHandler) recordRun(r *http.Request, meta filterMeta) {
	if h.registry == nil {
		return
	}
	wsID, err := getWorkspaceID(r)
	if err != nil {
		return
	}
	if _, err := h.registry.RecordRun(r.Context(), tool.RecordRunInput{
		WorkspaceID: wsID,
		Trigger:     tool.TriggerAPI,
		Input:       meta.Input,
		Output:      meta.Output,
	}); err != nil {
		h.logger.Warn().Err(err).Str("workspace_id", wsID).Msg("record classification run")
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
