package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"sla-engine/internal/config"
	"sla-engine/internal/logging"
	"sla-engine/internal/models"
	"sla-engine/internal/notify"
	"sla-engine/internal/sla"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	cfg := config.Config{}
	cfg.API.BasePath = "/api/v0"
	cfg.Engine.RecentBreachLimit = 20
	cfg.Engine.DeliveryPageSize = 50

	logger := logging.NewDiscard()
	engine := notify.NewEngine(logger)
	slaSvc := sla.New(logger, engine)
	hub := NewDeliveryHub(logger)

	h := NewHandler(slaSvc, engine, hub, logger, cfg)
	return NewRouter(h, logger, cfg)
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUpsertPolicyEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v0/projects/p1/sla/policies", models.SLAPolicyUpsert{
		Name: "Respond fast",
		Targets: []models.SLATarget{
			{Type: models.TargetResponse, DurationMinutes: 240},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var policy models.SLAPolicy
	if err := json.Unmarshal(w.Body.Bytes(), &policy); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if policy.ID == "" || !policy.Active {
		t.Errorf("policy = %+v", policy)
	}
}

func TestUpsertPolicyBadBody(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v0/projects/p1/sla/policies", map[string]interface{}{
		"name": "No targets",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUpsertPolicyUnknownID(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v0/projects/p1/sla/policies", models.SLAPolicyUpsert{
		ID:   "missing",
		Name: "Ghost",
		Targets: []models.SLATarget{
			{Type: models.TargetResponse, DurationMinutes: 10},
		},
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestEvaluateEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v0/projects/p1/sla/policies", models.SLAPolicyUpsert{
		Name: "Respond fast",
		Targets: []models.SLATarget{
			{Type: models.TargetResponse, DurationMinutes: 240},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("upsert status = %d", w.Code)
	}

	created := time.Now().Add(-250 * time.Minute)
	w = doJSON(t, router, http.MethodPost, "/api/v0/projects/p1/sla/evaluate", map[string]interface{}{
		"tasks": []models.TaskSnapshot{
			{ID: "t1", Title: "Late task", Status: "open", CreatedAt: &created},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("evaluate status = %d, body = %s", w.Code, w.Body.String())
	}

	var snap models.SLAHealthSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Totals.Breached != 1 {
		t.Errorf("breached = %d, want 1", snap.Totals.Breached)
	}
	if len(snap.RecentBreaches) != 1 {
		t.Errorf("recent breaches = %d, want 1", len(snap.RecentBreaches))
	}
}

func TestProcessQueueEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v0/projects/p1/notifications/events", map[string]interface{}{
		"trigger": "mention",
		"payload": map[string]interface{}{"task_title": "Design review", "assignee_id": "u1"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("enqueue status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, router, http.MethodPost, "/api/v0/projects/p1/notifications/process", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("process status = %d", w.Code)
	}

	var delivered []models.NotificationDeliveryRecord
	if err := json.Unmarshal(w.Body.Bytes(), &delivered); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(delivered) != 1 || delivered[0].Trigger != models.TriggerMention {
		t.Errorf("delivered = %+v", delivered)
	}
	if delivered[0].Recipients[0] != "u1" {
		t.Errorf("recipients = %v", delivered[0].Recipients)
	}
}

func TestUpdateChannelNotFoundEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	enabled := true
	w := doJSON(t, router, http.MethodPut, "/api/v0/projects/p1/notifications/triggers/bogus/channels", map[string]interface{}{
		"channel": "email",
		"enabled": &enabled,
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestDigestSummaryEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/api/v0/projects/p1/notifications/digest-summary", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var summary models.NotificationDigestSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(summary.Digests) != 2 {
		t.Errorf("digests = %d, want 2", len(summary.Digests))
	}
	if len(summary.UpcomingRuns) != 3 {
		t.Errorf("upcoming runs = %d, want 3", len(summary.UpcomingRuns))
	}
}

func TestAutomationRunEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/v0/projects/p1/automation-runs", map[string]interface{}{
		"name": "Nightly cleanup",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var run models.AutomationRunSchedule
	if err := json.Unmarshal(w.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.Name != "Nightly cleanup" || run.Status != models.RunScheduled {
		t.Errorf("run = %+v", run)
	}
}

func TestResetEndpoints(t *testing.T) {
	router := setupTestRouter(t)

	for _, path := range []string{
		"/api/v0/projects/p1/sla/reset",
		"/api/v0/projects/p1/notifications/reset",
	} {
		w := doJSON(t, router, http.MethodPost, path, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, w.Code)
		}
	}
}

func TestDeliveriesLimitQuery(t *testing.T) {
	router := setupTestRouter(t)

	for i := 0; i < 4; i++ {
		w := doJSON(t, router, http.MethodPost, "/api/v0/projects/p1/notifications/events", map[string]interface{}{
			"trigger": "mention",
			"payload": map[string]interface{}{"task_title": fmt.Sprintf("task %d", i)},
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("enqueue status = %d", w.Code)
		}
	}
	if w := doJSON(t, router, http.MethodPost, "/api/v0/projects/p1/notifications/process", nil); w.Code != http.StatusOK {
		t.Fatalf("process status = %d", w.Code)
	}

	w := doJSON(t, router, http.MethodGet, "/api/v0/projects/p1/notifications/deliveries?limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var page []models.NotificationDeliveryRecord
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(page) != 2 {
		t.Errorf("page = %d records, want 2", len(page))
	}
}
