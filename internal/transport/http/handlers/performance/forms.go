package performancehandler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"reviewflow/internal/domain/audit"
	"reviewflow/internal/domain/notifications"
	"reviewflow/internal/domain/performance"
	"reviewflow/internal/transport/http/api"
	"reviewflow/internal/transport/http/middleware"
	"reviewflow/internal/transport/http/shared"
)

const entityForm = "form_schema"

var schemaStatuses = []string{
	string(performance.SchemaStatusDraft),
	string(performance.SchemaStatusPendingApproval),
	string(performance.SchemaStatusApproved),
	string(performance.SchemaStatusRejected),
}

var decisionKinds = []string{
	string(performance.DecisionApprove),
	string(performance.DecisionReject),
	string(performance.DecisionClarify),
}

type decisionPayload struct {
	Kind           string   `json:"kind"`
	Level          int      `json:"level"`
	Reason         string   `json:"reason"`
	Fields         []string `json:"fields"`
	HikePercentage float64  `json:"hikePercentage"`
	EffectiveDate  string   `json:"effectiveDate"`
}

// decision validates the payload shape. Workflow rules are left to the engine.
func (p decisionPayload) decision(v *shared.Validator) performance.Decision {
	v.Required("kind", p.Kind, "kind is required")
	v.Enum("kind", p.Kind, decisionKinds, "kind must be approve, reject or clarify")
	if p.Level <= 0 {
		v.Add("level", "level must be a positive level number")
	}
	out := performance.Decision{
		Kind:           performance.DecisionKind(strings.ToLower(strings.TrimSpace(p.Kind))),
		Level:          p.Level,
		Reason:         p.Reason,
		Fields:         p.Fields,
		HikePercentage: p.HikePercentage,
	}
	if strings.TrimSpace(p.EffectiveDate) != "" {
		if parsed, ok := v.Date("effectiveDate", p.EffectiveDate); ok {
			out.EffectiveDate = &parsed
		}
	}
	return out
}

func (h *Handler) handleListForms(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	v := shared.NewValidator()
	v.Enum("status", status, schemaStatuses, "unknown form status")
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	schemas, err := h.Service.ListSchemas(r.Context(), performance.SchemaStatus(status))
	if err != nil {
		writeError(w, r, err, "form_list_failed")
		return
	}
	api.Success(w, schemas, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var payload struct {
		Title string `json:"title"`
	}
	if !decode(w, r, &payload) {
		return
	}
	schema, err := h.Service.CreateSchema(r.Context(), user, payload.Title)
	if err != nil {
		writeError(w, r, err, "form_create_failed")
		return
	}
	h.record(r, user, audit.ActionSchemaCreate, entityForm, schema.ID, nil, schema)
	api.Created(w, schema, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetForm(w http.ResponseWriter, r *http.Request) {
	schema, err := h.Service.GetSchema(r.Context(), chi.URLParam(r, "formID"))
	if err != nil {
		writeError(w, r, err, "form_get_failed")
		return
	}
	api.Success(w, schema, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAddField(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var raw json.RawMessage
	if !decode(w, r, &raw) {
		return
	}
	var field performance.FormField
	if err := json.Unmarshal(raw, &field); err != nil {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "type", Reason: err.Error()}})
		return
	}
	schema, err := h.Service.AddField(r.Context(), user, chi.URLParam(r, "formID"), field)
	if err != nil {
		writeError(w, r, err, "form_update_failed")
		return
	}
	h.record(r, user, audit.ActionSchemaEdit, entityForm, schema.ID, nil, field)
	api.Success(w, schema, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAddLevel(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var level performance.ApprovalLevel
	if !decode(w, r, &level) {
		return
	}
	schema, err := h.Service.AddApprovalLevel(r.Context(), user, chi.URLParam(r, "formID"), level)
	if err != nil {
		writeError(w, r, err, "form_update_failed")
		return
	}
	h.record(r, user, audit.ActionSchemaEdit, entityForm, schema.ID, nil, level)
	api.Success(w, schema, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRemoveLevel(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	number, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil || number <= 0 {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "level", Reason: "level must be a positive level number"}})
		return
	}
	schema, err := h.Service.RemoveApprovalLevel(r.Context(), user, chi.URLParam(r, "formID"), number)
	if err != nil {
		writeError(w, r, err, "form_update_failed")
		return
	}
	h.record(r, user, audit.ActionSchemaEdit, entityForm, schema.ID, map[string]int{"removedLevel": number}, nil)
	api.Success(w, schema, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePublishForm(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	schema, chain, err := h.Service.PublishSchema(r.Context(), user, chi.URLParam(r, "formID"))
	if err != nil {
		writeError(w, r, err, "form_publish_failed")
		return
	}
	h.record(r, user, audit.ActionSchemaPublish, entityForm, schema.ID, nil, schema)
	h.Metrics.Transition("form", string(schema.Status))
	h.notifyApprovers(r.Context(), chain, notifications.TypeFormPendingApproval,
		"Review form awaiting approval",
		fmt.Sprintf("%q was published and needs approval.", schema.Title))
	api.Success(w, map[string]any{"form": schema, "chain": chain}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDecideForm(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var payload decisionPayload
	if !decode(w, r, &payload) {
		return
	}
	v := shared.NewValidator()
	decision := payload.decision(v)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}
	schema, chain, err := h.Service.DecideSchema(r.Context(), user, chi.URLParam(r, "formID"), decision)
	if err != nil {
		writeError(w, r, err, "form_decision_failed")
		return
	}
	h.record(r, user, audit.ActionSchemaDecide, entityForm, schema.ID, decision, chain)
	h.Metrics.Transition("form", string(schema.Status))
	if chain.State == performance.ChainStateNeedsClarification || performance.IsTerminal(chain) {
		h.notifyUser(r.Context(), schema.CreatedBy, notifications.TypeFormDecided,
			"Review form decision",
			fmt.Sprintf("%q is now %s.", schema.Title, strings.ReplaceAll(string(chain.State), "_", " ")))
	}
	api.Success(w, map[string]any{"form": schema, "chain": chain}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleResubmitForm(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	formID := chi.URLParam(r, "formID")
	chain, err := h.Service.ResubmitSchema(r.Context(), user, formID)
	if err != nil {
		writeError(w, r, err, "form_resubmit_failed")
		return
	}
	h.record(r, user, audit.ActionSchemaResubmit, entityForm, formID, nil, chain)
	h.notifyApprovers(r.Context(), chain, notifications.TypeFormPendingApproval,
		"Review form resubmitted", "A clarified review form needs approval.")
	api.Success(w, chain, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleFormChain(w http.ResponseWriter, r *http.Request) {
	chain, err := h.Service.SchemaChain(r.Context(), chi.URLParam(r, "formID"))
	if err != nil {
		writeError(w, r, err, "chain_get_failed")
		return
	}
	api.Success(w, chain, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCloneForm(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	source := chi.URLParam(r, "formID")
	schema, err := h.Service.CloneSchema(r.Context(), user, source)
	if err != nil {
		writeError(w, r, err, "form_clone_failed")
		return
	}
	h.record(r, user, audit.ActionSchemaClone, entityForm, schema.ID, map[string]string{"clonedFrom": source}, schema)
	api.Created(w, schema, middleware.GetRequestID(r.Context()))
}
