package performancehandler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"reviewflow/internal/domain/auth"
	"reviewflow/internal/domain/notifications"
	"reviewflow/internal/domain/performance"
	"reviewflow/internal/platform/lock"
	"reviewflow/internal/platform/metrics"
	"reviewflow/internal/transport/http/middleware"
)

const testSecret = "handler-test-secret"

type sentNotification struct {
	Target string
	Type   string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Create(ctx context.Context, userID, ntype, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Target: userID, Type: ntype})
	return nil
}

func (n *recordingNotifier) NotifyRole(ctx context.Context, role, ntype, title, body string) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Target: "role:" + role, Type: ntype})
	return 1, nil
}

func (n *recordingNotifier) has(target, ntype string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.sent {
		if s.Target == target && s.Type == ntype {
			return true
		}
	}
	return false
}

type recordingAuditor struct {
	mu      sync.Mutex
	actions []string
}

func (a *recordingAuditor) Record(ctx context.Context, actorID, action, entityType, entityID, requestID, ip string, before, after any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	return nil
}

type stubSweeper struct {
	result performance.SweepResult
}

func (s stubSweeper) SweepNow(ctx context.Context) (performance.SweepResult, error) {
	return s.result, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Details struct {
			Fields []struct {
				Field string `json:"field"`
			} `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

type harness struct {
	t        *testing.T
	router   http.Handler
	notifier *recordingNotifier
	auditor  *recordingAuditor
	metrics  *metrics.Collector
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	svc := performance.NewService(performance.NewMemoryStore(), lock.NewLocal(), nil)
	h := &harness{t: t, notifier: &recordingNotifier{}, auditor: &recordingAuditor{}, metrics: metrics.New()}
	handler := NewHandler(svc, auth.StaticPermissions{}, h.notifier, h.auditor, h.metrics, stubSweeper{result: performance.SweepResult{CyclesChecked: 2}})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Auth(testSecret))
	r.Route("/api/v1", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	h.router = r
	return h
}

func (h *harness) token(userID, role string) string {
	h.t.Helper()
	token, err := auth.GenerateToken(testSecret, auth.Claims{UserID: userID, RoleName: role}, time.Hour)
	if err != nil {
		h.t.Fatalf("token error: %v", err)
	}
	return token
}

func (h *harness) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			h.t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
		}
	}
	return rec, env
}

func (h *harness) expect(rec *httptest.ResponseRecorder, status int) {
	h.t.Helper()
	if rec.Code != status {
		h.t.Fatalf("expected %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return out
}

// approvedForm creates a two-level form (manager, then HR final) and approves it.
func (h *harness) approvedForm() performance.FormSchema {
	h.t.Helper()
	hr := h.token("hr-1", auth.RoleHR)
	admin := h.token("admin-1", auth.RoleAdmin)

	rec, env := h.do(http.MethodPost, "/performance/forms", hr, map[string]string{"title": "Annual Review"})
	h.expect(rec, http.StatusCreated)
	schema := decodeData[performance.FormSchema](h.t, env)

	rec, _ = h.do(http.MethodPost, "/performance/forms/"+schema.ID+"/fields", hr, map[string]any{"id": "summary", "label": "Summary", "type": "textarea"})
	h.expect(rec, http.StatusOK)
	rec, _ = h.do(http.MethodPost, "/performance/forms/"+schema.ID+"/levels", hr, map[string]any{"title": "Manager", "approvers": []string{"manager"}})
	h.expect(rec, http.StatusOK)
	rec, _ = h.do(http.MethodPost, "/performance/forms/"+schema.ID+"/levels", hr, map[string]any{"title": "HR", "approvers": []string{"hr"}, "isFinalApproval": true})
	h.expect(rec, http.StatusOK)

	rec, _ = h.do(http.MethodPost, "/performance/forms/"+schema.ID+"/publish", hr, nil)
	h.expect(rec, http.StatusOK)
	rec, env = h.do(http.MethodPost, "/performance/forms/"+schema.ID+"/decisions", admin, map[string]any{"kind": "approve", "level": 1})
	h.expect(rec, http.StatusOK)
	decided := decodeData[struct {
		Form performance.FormSchema `json:"form"`
	}](h.t, env)
	if decided.Form.Status != performance.SchemaStatusApproved {
		h.t.Fatalf("expected approved form, got %s", decided.Form.Status)
	}
	return decided.Form
}

func (h *harness) cycle(schemaID string) performance.ReviewCycle {
	h.t.Helper()
	rec, env := h.do(http.MethodPost, "/performance/cycles", h.token("hr-1", auth.RoleHR), map[string]any{
		"schemaId":     schemaID,
		"name":         "Annual 2024",
		"type":         "annual",
		"periodStart":  "2024-01-01",
		"periodEnd":    "2024-03-31",
		"dueDate":      "2024-04-30",
		"participants": []string{"emp-1"},
	})
	h.expect(rec, http.StatusCreated)
	return decodeData[performance.ReviewCycle](h.t, env)
}

func draftPayload(description string) map[string]any {
	return map[string]any{
		"goals": []map[string]any{{
			"title":       "Ship billing v2",
			"description": description,
			"achievement": "Launched in March",
			"manager":     "mgr-1",
			"selfRating":  4,
		}},
	}
}

func TestAssessmentWorkflowOverHTTP(t *testing.T) {
	h := newHarness(t)
	schema := h.approvedForm()
	cycle := h.cycle(schema.ID)

	employee := h.token("emp-1", auth.RoleEmployee)
	manager := h.token("mgr-1", auth.RoleManager)
	hr := h.token("hr-1", auth.RoleHR)

	rec, env := h.do(http.MethodPut, "/performance/cycles/"+cycle.ID+"/assessment", employee, draftPayload("Rebuilt invoicing"))
	h.expect(rec, http.StatusOK)
	draft := decodeData[performance.SelfAssessment](t, env)

	rec, _ = h.do(http.MethodPost, "/performance/assessments/"+draft.ID+"/submit", employee, nil)
	h.expect(rec, http.StatusOK)
	if !h.notifier.has("role:manager", notifications.TypeAssessmentSubmitted) {
		t.Fatalf("expected managers to be notified, got %+v", h.notifier.sent)
	}

	rec, _ = h.do(http.MethodPost, "/performance/assessments/"+draft.ID+"/review", manager, map[string]any{"ratings": map[string]float64{"goals[0]": 5}})
	h.expect(rec, http.StatusOK)

	rec, _ = h.do(http.MethodPost, "/performance/assessments/"+draft.ID+"/decisions", manager, map[string]any{"kind": "approve", "level": 1})
	h.expect(rec, http.StatusOK)
	if !h.notifier.has("role:hr", notifications.TypeAssessmentSubmitted) {
		t.Fatalf("expected hr to be notified of the next level, got %+v", h.notifier.sent)
	}

	rec, env = h.do(http.MethodPost, "/performance/assessments/"+draft.ID+"/decisions", hr, map[string]any{"kind": "approve", "level": 2, "hikePercentage": 6, "effectiveDate": "2024-05-01"})
	h.expect(rec, http.StatusOK)
	decided := decodeData[struct {
		Assessment performance.SelfAssessment `json:"assessment"`
		Chain      performance.Chain          `json:"chain"`
	}](t, env)
	if decided.Assessment.Status != performance.AssessmentStatusApproved || decided.Chain.State != performance.ChainStateApproved {
		t.Fatalf("expected approved assessment and chain, got %s and %s", decided.Assessment.Status, decided.Chain.State)
	}
	if decided.Assessment.HikeDetails == nil || decided.Assessment.HikeDetails.CompositeRating != 5 || decided.Assessment.HikeDetails.Percentage != 6 {
		t.Fatalf("unexpected hike details: %+v", decided.Assessment.HikeDetails)
	}
	if !h.notifier.has("emp-1", notifications.TypeAssessmentApproved) {
		t.Fatalf("expected employee to be notified, got %+v", h.notifier.sent)
	}

	rec, env = h.do(http.MethodGet, "/performance/cycles/"+cycle.ID, hr, nil)
	h.expect(rec, http.StatusOK)
	updated := decodeData[performance.ReviewCycle](t, env)
	want := []performance.MilestoneStatus{
		performance.MilestoneStatusCompleted,
		performance.MilestoneStatusCompleted,
		performance.MilestoneStatusCompleted,
		performance.MilestoneStatusInProgress,
	}
	for i, milestone := range updated.Milestones {
		if milestone.Status != want[i] {
			t.Fatalf("expected milestone %d %s, got %s", i, want[i], milestone.Status)
		}
	}

	rec, _ = h.do(http.MethodGet, "/performance/assessments/"+draft.ID+"/summary.pdf", employee, nil)
	h.expect(rec, http.StatusOK)
	if rec.Header().Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("expected pdf body, got %q", rec.Header().Get("Content-Type"))
	}

	rec, env = h.do(http.MethodGet, "/performance/cycles/"+cycle.ID+"/report", hr, nil)
	h.expect(rec, http.StatusOK)
	report := decodeData[performance.CycleReport](t, env)
	if report.CompletionRate != 100 || report.AverageRating != 5 {
		t.Fatalf("unexpected report: %+v", report)
	}

	if len(h.auditor.actions) < 8 {
		t.Fatalf("expected audited workflow commands, got %v", h.auditor.actions)
	}
	transitions := h.metrics.Snapshot()["transitions"].(map[string]uint64)
	if transitions["assessment.approved"] != 1 {
		t.Fatalf("expected one approved transition, got %+v", transitions)
	}
}

func TestDecisionOutOfSequenceIsConflict(t *testing.T) {
	h := newHarness(t)
	schema := h.approvedForm()
	cycle := h.cycle(schema.ID)
	employee := h.token("emp-1", auth.RoleEmployee)

	rec, env := h.do(http.MethodPut, "/performance/cycles/"+cycle.ID+"/assessment", employee, draftPayload("Rebuilt invoicing"))
	h.expect(rec, http.StatusOK)
	draft := decodeData[performance.SelfAssessment](t, env)
	rec, _ = h.do(http.MethodPost, "/performance/assessments/"+draft.ID+"/submit", employee, nil)
	h.expect(rec, http.StatusOK)

	rec, env = h.do(http.MethodPost, "/performance/assessments/"+draft.ID+"/decisions", h.token("hr-1", auth.RoleHR), map[string]any{"kind": "approve", "level": 2})
	h.expect(rec, http.StatusConflict)
	if env.Error == nil || env.Error.Code != "sequence_error" {
		t.Fatalf("expected sequence_error, got %+v", env.Error)
	}
}

func TestSubmitIncompleteDraftListsFields(t *testing.T) {
	h := newHarness(t)
	schema := h.approvedForm()
	cycle := h.cycle(schema.ID)
	employee := h.token("emp-1", auth.RoleEmployee)

	rec, env := h.do(http.MethodPut, "/performance/cycles/"+cycle.ID+"/assessment", employee, draftPayload(""))
	h.expect(rec, http.StatusOK)
	draft := decodeData[performance.SelfAssessment](t, env)

	rec, env = h.do(http.MethodPost, "/performance/assessments/"+draft.ID+"/submit", employee, nil)
	h.expect(rec, http.StatusBadRequest)
	if env.Error == nil || env.Error.Code != "validation_error" {
		t.Fatalf("expected validation_error, got %+v", env.Error)
	}
	if len(env.Error.Details.Fields) != 1 || env.Error.Details.Fields[0].Field != "goals[0].description" {
		t.Fatalf("expected goals[0].description issue, got %+v", env.Error.Details.Fields)
	}
}

func TestRouteGuards(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{name: "anonymous", method: http.MethodGet, path: "/performance/forms", status: http.StatusUnauthorized, code: "unauthorized"},
		{name: "employee cannot author forms", method: http.MethodPost, path: "/performance/forms", token: h.token("emp-1", auth.RoleEmployee), body: map[string]string{"title": "x"}, status: http.StatusForbidden, code: "forbidden"},
		{name: "unknown status filter", method: http.MethodGet, path: "/performance/forms?status=archived", token: h.token("hr-1", auth.RoleHR), status: http.StatusBadRequest, code: "validation_error"},
		{name: "bad decision kind", method: http.MethodPost, path: "/performance/forms/f1/decisions", token: h.token("hr-1", auth.RoleHR), body: map[string]any{"kind": "maybe", "level": 1}, status: http.StatusBadRequest, code: "validation_error"},
		{name: "missing form", method: http.MethodGet, path: "/performance/forms/missing", token: h.token("hr-1", auth.RoleHR), status: http.StatusNotFound, code: "not_found"},
		{name: "no catalog", method: http.MethodGet, path: "/performance/catalog", token: h.token("emp-1", auth.RoleEmployee), status: http.StatusNotFound, code: "not_found"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec, env := h.do(tc.method, tc.path, tc.token, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if env.Error == nil || env.Error.Code != tc.code {
				t.Fatalf("expected %s, got %+v", tc.code, env.Error)
			}
		})
	}
}

func TestSweepEndpoint(t *testing.T) {
	h := newHarness(t)
	rec, env := h.do(http.MethodPost, "/performance/sweep", h.token("hr-1", auth.RoleHR), nil)
	h.expect(rec, http.StatusOK)
	result := decodeData[performance.SweepResult](t, env)
	if result.CyclesChecked != 2 {
		t.Fatalf("expected sweep result, got %+v", result)
	}
}
