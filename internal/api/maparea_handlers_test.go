package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mapnest/mapnest/internal/maparea"
)

func TestCreateMapArea(t *testing.T) {
	env := newTestEnv()
	h := NewMapAreaHandlers(env.areas)

	body := `{"name": "Harborview", "kind": "region", "default_view": {"center_lat": -34.92, "center_lng": 138.6, "zoom": 11}}`
	req := httptest.NewRequest(http.MethodPost, "/map-areas", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var created maparea.MapArea
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if created.ID == 0 {
		t.Error("expected assigned ID, got 0")
	}
	if created.Name != "Harborview" {
		t.Errorf("expected name Harborview, got %q", created.Name)
	}
	if created.Kind != maparea.KindRegion {
		t.Errorf("expected kind region, got %q", created.Kind)
	}
}

func TestCreateMapArea_Validation(t *testing.T) {
	env := newTestEnv()
	h := NewMapAreaHandlers(env.areas)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{
			name:     "invalid JSON",
			body:     `{not json`,
			wantCode: ErrCodeBadRequest,
		},
		{
			name:     "empty name",
			body:     `{"name": "", "kind": "region"}`,
			wantCode: ErrCodeValidation,
		},
		{
			name:     "unknown kind",
			body:     `{"name": "Harborview", "kind": "continent"}`,
			wantCode: ErrCodeValidation,
		},
		{
			name:     "region with parent",
			body:     `{"name": "Harborview", "kind": "region", "parent_id": 1}`,
			wantCode: ErrCodeValidation,
		},
		{
			name:     "suburb without parent",
			body:     `{"name": "Dockside", "kind": "suburb"}`,
			wantCode: ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/map-areas", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			h.Create(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d: %s", w.Code, w.Body.String())
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to parse error response: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("expected error code %s, got %s", tt.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestCreateMapArea_UnknownParent(t *testing.T) {
	env := newTestEnv()
	h := NewMapAreaHandlers(env.areas)

	body := `{"name": "Dockside", "kind": "suburb", "parent_id": 999}`
	req := httptest.NewRequest(http.MethodPost, "/map-areas", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Create(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetMapArea(t *testing.T) {
	env := newTestEnv()
	h := NewMapAreaHandlers(env.areas)
	region := env.addRegion(t, "Harborview")

	req := httptest.NewRequest(http.MethodGet, "/map-areas/1", nil)
	w := httptest.NewRecorder()

	h.Resource(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var got maparea.MapArea
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if got.ID != region.ID {
		t.Errorf("expected ID %d, got %d", region.ID, got.ID)
	}
}

func TestGetMapArea_NotFound(t *testing.T) {
	env := newTestEnv()
	h := NewMapAreaHandlers(env.areas)

	req := httptest.NewRequest(http.MethodGet, "/map-areas/42", nil)
	w := httptest.NewRecorder()

	h.Resource(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestGetMapArea_InvalidID(t *testing.T) {
	env := newTestEnv()
	h := NewMapAreaHandlers(env.areas)

	for _, path := range []string{"/map-areas/abc", "/map-areas/0", "/map-areas/-3"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()

		h.Resource(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("path %s: expected status 400, got %d", path, w.Code)
		}
	}
}

func TestListChildren(t *testing.T) {
	env := newTestEnv()
	h := NewMapAreaHandlers(env.areas)
	region := env.addRegion(t, "Harborview")
	env.addSuburb(t, "Dockside", region.ID)
	env.addSuburb(t, "Milltown", region.ID)

	req := httptest.NewRequest(http.MethodGet, "/map-areas/1/children", nil)
	w := httptest.NewRecorder()

	h.Resource(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		MapAreas []*maparea.MapArea `json:"map_areas"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.MapAreas) != 2 {
		t.Fatalf("expected 2 children, got %d", len(resp.MapAreas))
	}
	if resp.MapAreas[0].Name != "Dockside" || resp.MapAreas[1].Name != "Milltown" {
		t.Errorf("unexpected children order: %s, %s", resp.MapAreas[0].Name, resp.MapAreas[1].Name)
	}
}

func TestListChildren_Empty(t *testing.T) {
	env := newTestEnv()
	h := NewMapAreaHandlers(env.areas)
	env.addRegion(t, "Harborview")

	req := httptest.NewRequest(http.MethodGet, "/map-areas/1/children", nil)
	w := httptest.NewRecorder()

	h.Resource(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	// Empty list serializes as [], not null
	if !strings.Contains(w.Body.String(), `"map_areas":[]`) {
		t.Errorf("expected empty array in body, got %s", w.Body.String())
	}
}

func TestUpdateMapArea(t *testing.T) {
	env := newTestEnv()
	h := NewMapAreaHandlers(env.areas)
	env.addRegion(t, "Harborview")

	body := `{"name": "Harborview East", "default_view": {"center_lat": -34.9, "center_lng": 138.61, "zoom": 12}}`
	req := httptest.NewRequest(http.MethodPatch, "/map-areas/1", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Resource(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var got maparea.MapArea
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if got.Name != "Harborview East" {
		t.Errorf("expected updated name, got %q", got.Name)
	}
	if got.DefaultView.Zoom != 12 {
		t.Errorf("expected zoom 12, got %v", got.DefaultView.Zoom)
	}
}

func TestDeleteMapArea(t *testing.T) {
	env := newTestEnv()
	h := NewMapAreaHandlers(env.areas)
	region := env.addRegion(t, "Harborview")

	req := httptest.NewRequest(http.MethodDelete, "/map-areas/1", nil)
	w := httptest.NewRecorder()

	h.Resource(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}
	if _, err := env.areas.GetByID(req.Context(), region.ID); err == nil {
		t.Error("expected map area to be deleted")
	}
}

func TestMapArea_MethodNotAllowed(t *testing.T) {
	env := newTestEnv()
	h := NewMapAreaHandlers(env.areas)
	env.addRegion(t, "Harborview")

	req := httptest.NewRequest(http.MethodPost, "/map-areas/1", nil)
	w := httptest.NewRecorder()

	h.Resource(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", w.Code)
	}
}
