package performancehandler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reviewflow/internal/domain/audit"
	"reviewflow/internal/domain/notifications"
	"reviewflow/internal/domain/performance"
	"reviewflow/internal/transport/http/api"
	"reviewflow/internal/transport/http/middleware"
	"reviewflow/internal/transport/http/shared"
)

func (h *Handler) handleGetAssessment(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	assessment, err := h.Service.GetAssessment(r.Context(), user, chi.URLParam(r, "assessmentID"))
	if err != nil {
		writeError(w, r, err, "assessment_get_failed")
		return
	}
	api.Success(w, assessment, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReviseAssessment(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var edited performance.SelfAssessment
	if !decode(w, r, &edited) {
		return
	}
	revised, err := h.Service.ReviseAssessment(r.Context(), user, chi.URLParam(r, "assessmentID"), edited)
	if err != nil {
		writeError(w, r, err, "assessment_revise_failed")
		return
	}
	h.record(r, user, audit.ActionAssessmentRevise, entityAssessment, revised.ID, nil, revised)
	api.Success(w, revised, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmitAssessment(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	assessment, chain, err := h.Service.SubmitAssessment(r.Context(), user, chi.URLParam(r, "assessmentID"))
	if err != nil {
		writeError(w, r, err, "assessment_submit_failed")
		return
	}
	h.record(r, user, audit.ActionAssessmentSubmit, entityAssessment, assessment.ID, nil, assessment)
	h.Metrics.Transition("assessment", string(assessment.Status))
	h.notifyApprovers(r.Context(), chain, notifications.TypeAssessmentSubmitted,
		"Self-assessment awaiting review",
		fmt.Sprintf("Employee %s submitted a self-assessment.", assessment.EmployeeID))
	api.Success(w, map[string]any{"assessment": assessment, "chain": chain}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleResubmitAssessment(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	assessment, chain, err := h.Service.ResubmitAssessment(r.Context(), user, chi.URLParam(r, "assessmentID"))
	if err != nil {
		writeError(w, r, err, "assessment_resubmit_failed")
		return
	}
	h.record(r, user, audit.ActionAssessmentResubmit, entityAssessment, assessment.ID, nil, assessment)
	h.Metrics.Transition("assessment", string(assessment.Status))
	h.notifyApprovers(r.Context(), chain, notifications.TypeAssessmentSubmitted,
		"Clarified self-assessment awaiting review",
		fmt.Sprintf("Employee %s answered the clarification request.", assessment.EmployeeID))
	api.Success(w, map[string]any{"assessment": assessment, "chain": chain}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReviewAssessment(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var review performance.ManagerReview
	if !decode(w, r, &review) {
		return
	}
	if len(review.Ratings) == 0 && len(review.Comments) == 0 {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "ratings", Reason: "at least one rating or comment is required"}})
		return
	}
	reviewed, err := h.Service.ReviewAssessment(r.Context(), user, chi.URLParam(r, "assessmentID"), review)
	if err != nil {
		writeError(w, r, err, "assessment_review_failed")
		return
	}
	h.record(r, user, audit.ActionAssessmentReview, entityAssessment, reviewed.ID, nil, review)
	api.Success(w, reviewed, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDecideAssessment(w http.ResponseWriter, r *http.Request) {
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

	assessment, chain, err := h.Service.DecideAssessment(r.Context(), user, chi.URLParam(r, "assessmentID"), decision)
	if err != nil {
		writeError(w, r, err, "assessment_decision_failed")
		return
	}
	h.record(r, user, audit.ActionAssessmentDecide, entityAssessment, assessment.ID, decision, chain)
	h.Metrics.Transition("assessment", string(assessment.Status))

	ctx := r.Context()
	switch chain.State {
	case performance.ChainStateApproved:
		body := "Your self-assessment was approved."
		if assessment.HikeDetails != nil {
			body = fmt.Sprintf("Your self-assessment was approved with a composite rating of %.1f and a %.2f%% hike.",
				assessment.HikeDetails.CompositeRating, assessment.HikeDetails.Percentage)
		}
		h.notifyUser(ctx, assessment.EmployeeID, notifications.TypeAssessmentApproved, "Self-assessment approved", body)
	case performance.ChainStateRejected:
		h.notifyUser(ctx, assessment.EmployeeID, notifications.TypeAssessmentRejected, "Self-assessment rejected", decision.Reason)
	case performance.ChainStateNeedsClarification:
		h.notifyUser(ctx, assessment.EmployeeID, notifications.TypeClarificationRequired, "Clarification requested", decision.Reason)
	case performance.ChainStatePendingApproval:
		h.notifyApprovers(ctx, chain, notifications.TypeAssessmentSubmitted,
			"Self-assessment awaiting review",
			fmt.Sprintf("Employee %s's self-assessment passed level %d.", assessment.EmployeeID, decision.Level))
	}
	api.Success(w, map[string]any{"assessment": assessment, "chain": chain}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAssessmentChain(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	chain, err := h.Service.AssessmentChain(r.Context(), user, chi.URLParam(r, "assessmentID"))
	if err != nil {
		writeError(w, r, err, "chain_get_failed")
		return
	}
	api.Success(w, chain, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSummaryPDF(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	assessmentID := chi.URLParam(r, "assessmentID")
	pdf, err := h.Service.SummaryPDF(r.Context(), user, assessmentID)
	if err != nil {
		writeError(w, r, err, "summary_render_failed")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"assessment-%s.pdf\"", assessmentID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
