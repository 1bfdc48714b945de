package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/matiasleandrokruk/toolscope/internal/domain/tool"
)

var exampleTools = []tool.Descriptor{
	{Name: "list_repos", Description: "List repositories"},
	{Name: "create_ticket", Description: "Create a Jira ticket"},
	{Name: "search_issues", Description: "Search issues by text"},
	{Name: "ping", Description: "Health check"},
}

func newToolsHandler() *ToolsHandler {
	return NewToolsHandler(tool.NewClassifier(zerolog.Nop()), nil, zerolog.Nop())
}

func TestToolsHandler_Filter(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	newToolsHandler().Filter(rr, request(http.MethodPost, "/api/v1/tools/filter", "", map[string]any{"tools": exampleTools}))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	resp := decodeBody[filterResponse](t, rr)
	if len(resp.Data) != 2 || resp.Data[0].Name != "list_repos" || resp.Data[1].Name != "search_issues" {
		t.Fatalf("data = %#v", resp.Data)
	}
	if resp.Meta != (filterMeta{Input: 4, Output: 2, Excluded: 2}) {
		t.Fatalf("meta = %#v", resp.Meta)
	}
}

func TestToolsHandler_FilterEmptyList(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	newToolsHandler().Filter(rr, request(http.MethodPost, "/api/v1/tools/filter", "", `{"tools":[]}`))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"data":[]`) {
		t.Fatalf("expected empty data array, got %s", rr.Body.String())
	}
}

func TestToolsHandler_BadRequests(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"invalid json":  `{"tools":`,
		"missing tools": `{}`,
		"null element":  `{"tools":[{"name":"list_repos","description":"List"},null]}`,
		"blank name":    `{"tools":[{"name":"  ","description":"List repositories"}]}`,
		"name not text": `{"tools":[{"name":7}]}`,
	}
	h := newToolsHandler()
	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			for _, endpoint := range []http.HandlerFunc{h.Filter, h.Context, h.Classify} {
				rr := httptest.NewRecorder()
				endpoint(rr, request(http.MethodPost, "/api/v1/tools/x", "", body))
				if rr.Code != http.StatusBadRequest {
					t.Fatalf("status=%d want=400 body=%s", rr.Code, rr.Body.String())
				}
			}
		})
	}
}

func TestToolsHandler_FilterRecordsRun(t *testing.T) {
	t.Parallel()

	registry, wsID := newTestRegistry(t)
	h := NewToolsHandler(registry.Classifier(), registry, zerolog.Nop())

	rr := httptest.NewRecorder()
	h.Filter(rr, request(http.MethodPost, "/api/v1/tools/filter", wsID, map[string]any{"tools": exampleTools}))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	runs, err := registry.ListRuns(context.Background(), wsID, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Trigger != tool.TriggerAPI || runs[0].Input != 4 || runs[0].Output != 2 {
		t.Fatalf("runs = %#v", runs)
	}
}

func TestToolsHandler_Context(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	newToolsHandler().Context(rr, request(http.MethodPost, "/api/v1/tools/context", "", map[string]any{"tools": exampleTools[:2]}))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	resp := decodeBody[contextResponse](t, rr)
	if resp.Context != "- list_repos: List repositories\n- create_ticket: Create a Jira ticket" {
		t.Fatalf("context = %q", resp.Context)
	}
}

func TestToolsHandler_Classify(t *testing.T) {
	t.Parallel()

	rr := httptest.NewRecorder()
	newToolsHandler().Classify(rr, request(http.MethodPost, "/api/v1/tools/classify", "", map[string]any{"tools": exampleTools}))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	resp := decodeBody[classifyResponse](t, rr)
	if len(resp.Data) != 4 {
		t.Fatalf("data = %#v", resp.Data)
	}
	want := []tool.Category{tool.CategorySearch, tool.CategoryAction, tool.CategorySearch, tool.CategoryAmbiguous}
	for i, c := range resp.Data {
		if c.Category != want[i] {
			t.Errorf("%s category = %s; want %s", c.Name, c.Category, want[i])
		}
	}
	if resp.Meta["search"] != 2 || resp.Meta["action"] != 1 || resp.Meta["ambiguous"] != 1 {
		t.Fatalf("meta = %v", resp.Meta)
	}
	if len(resp.Data[1].ActionMatches) == 0 || resp.Data[3].SearchMatches == nil {
		t.Fatalf("matches not reported: %#v", resp.Data)
	}
}
