package api

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestNewRouter_RoutesExist(t *testing.T) {
	router, _ := newTestRouter(t, &mockPublisher{})

	routes := router.Routes()
	expectedRoutes := map[string]string{
		"GET /health":           "health",
		"GET /metrics":          "metrics",
		"POST /api/users":       "create",
		"GET /api/users":        "list",
		"GET /api/users/:id":    "get",
		"PUT /api/users/:id":    "update",
		"DELETE /api/users/:id": "delete",
	}

	found := make(map[string]bool)
	for _, r := range routes {
		key := r.Method + " " + r.Path
		if _, ok := expectedRoutes[key]; ok {
			found[key] = true
		}
	}

	for key, desc := range expectedRoutes {
		if !found[key] {
			t.Errorf("missing route %s (%s)", key, desc)
		}
	}
}

func TestSwaggerRouteRegistered(t *testing.T) {
	router, _ := newTestRouter(t, &mockPublisher{})

	// Verify the swagger route is registered
	found := false
	for _, r := range router.Routes() {
		if r.Method == "GET" && r.Path == "/swagger/*any" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected /swagger/*any route to be registered")
	}
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t, &mockPublisher{})

	w := doRequest(router, http.MethodGet, "/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
}
