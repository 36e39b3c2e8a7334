package notifyapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"usernotify/internal/notification"
	"usernotify/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRouter_RoutesExist(t *testing.T) {
	router := newTestRouter(&recordingMailer{})

	expectedRoutes := map[string]bool{
		"GET /health":                       false,
		"GET /metrics":                      false,
		"GET /swagger/*any":                 false,
		"POST /api/notifications/send-mail": false,
	}
	for _, r := range router.Routes() {
		key := r.Method + " " + r.Path
		if _, ok := expectedRoutes[key]; ok {
			expectedRoutes[key] = true
		}
	}
	for key, found := range expectedRoutes {
		if !found {
			t.Errorf("missing route %s", key)
		}
	}
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(&recordingMailer{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

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

func TestMetricsEndpointExposesNotificationCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := &recordingMailer{}
	d := notification.NewDispatcher(m,
		notification.WithLogger(logger.Discard()),
		notification.WithMetrics(notification.NewMetrics(reg)),
	)
	router := NewRouter(NewMailHandler(d, logger.Discard()), reg)

	postSendMail(router, `{"email":"carol@example.com","eventType":"USER_CREATED"}`)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `notifications_total{event_type="USER_CREATED",outcome="sent"} 1`) {
		t.Errorf("expected sent counter in metrics output, got:\n%s", w.Body.String())
	}
}
