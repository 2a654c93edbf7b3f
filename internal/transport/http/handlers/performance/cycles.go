package performancehandler

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"reviewflow/internal/domain/audit"
	"reviewflow/internal/domain/performance"
	"reviewflow/internal/transport/http/api"
	"reviewflow/internal/transport/http/middleware"
	"reviewflow/internal/transport/http/shared"
)

const (
	entityCycle      = "review_cycle"
	entityAssessment = "self_assessment"
)

var cycleStatuses = []string{
	string(performance.CycleStatusPending),
	string(performance.CycleStatusActive),
	string(performance.CycleStatusCompleted),
}

func (h *Handler) handleListCycles(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	v := shared.NewValidator()
	v.Enum("status", status, cycleStatuses, "unknown cycle status")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	cycles, err := h.Service.ListCycles(r.Context(), performance.CycleStatus(status))
	if err != nil {
		writeError(w, r, err, "cycle_list_failed")
		return
	}
	api.Success(w, cycles, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateCycle(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		SchemaID     string   `json:"schemaId"`
		Name         string   `json:"name"`
		Type         string   `json:"type"`
		PeriodStart  string   `json:"periodStart"`
		PeriodEnd    string   `json:"periodEnd"`
		DueDate      string   `json:"dueDate"`
		Participants []string `json:"participants"`
	}
	if !decode(w, r, &payload) {
		return
	}

	v := shared.NewValidator()
	v.Required("schemaId", payload.SchemaID, "schemaId is required")
	v.Required("name", payload.Name, "name is required")
	v.Required("type", payload.Type, "type is required")
	start := dateOrZero(v, "periodStart", payload.PeriodStart)
	end := dateOrZero(v, "periodEnd", payload.PeriodEnd)
	due := dateOrZero(v, "dueDate", payload.DueDate)
	v.DateOrder("periodStart", start, "periodEnd", end)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	cycle, err := h.Service.CreateCycle(r.Context(), user, payload.SchemaID, performance.CycleInput{
		Name:         strings.TrimSpace(payload.Name),
		Type:         strings.TrimSpace(payload.Type),
		Period:       performance.Period{Start: start, End: end},
		DueDate:      due,
		Participants: payload.Participants,
	})
	if err != nil {
		writeError(w, r, err, "cycle_create_failed")
		return
	}
	h.record(r, user, audit.ActionCycleCreate, entityCycle, cycle.ID, nil, cycle)
	h.Metrics.Transition("cycle", string(cycle.Status))
	api.Created(w, cycle, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := h.Service.GetCycle(r.Context(), chi.URLParam(r, "cycleID"))
	if err != nil {
		writeError(w, r, err, "cycle_get_failed")
		return
	}
	api.Success(w, cycle, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCycleReport(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	report, err := h.Service.CycleReport(r.Context(), user, chi.URLParam(r, "cycleID"))
	if err != nil {
		writeError(w, r, err, "cycle_report_failed")
		return
	}
	api.Success(w, report, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var draft performance.SelfAssessment
	if !decode(w, r, &draft) {
		return
	}
	saved, err := h.Service.SaveDraftAssessment(r.Context(), user, chi.URLParam(r, "cycleID"), draft)
	if err != nil {
		writeError(w, r, err, "assessment_save_failed")
		return
	}
	h.record(r, user, audit.ActionAssessmentSave, entityAssessment, saved.ID, nil, saved)
	api.Success(w, saved, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	if h.Sweeper == nil {
		api.Fail(w, http.StatusServiceUnavailable, "sweep_unavailable", "milestone sweep is not configured", middleware.GetRequestID(r.Context()))
		return
	}
	result, err := h.Sweeper.SweepNow(r.Context())
	if err != nil {
		writeError(w, r, err, "sweep_failed")
		return
	}
	for range result.Effective {
		h.Metrics.Transition("cycle", string(performance.CycleStatusCompleted))
	}
	h.record(r, user, audit.ActionMilestoneSweep, entityCycle, "", nil, result)
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func dateOrZero(v *shared.Validator, field, raw string) time.Time {
	parsed, _ := v.Date(field, raw)
	return parsed
}
