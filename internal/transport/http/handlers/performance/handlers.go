package performancehandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"reviewflow/internal/domain/auth"
	"reviewflow/internal/domain/performance"
	"reviewflow/internal/platform/lock"
	"reviewflow/internal/platform/metrics"
	"reviewflow/internal/transport/http/api"
	"reviewflow/internal/transport/http/middleware"
	"reviewflow/internal/transport/http/shared"
)

type Auditor interface {
	Record(ctx context.Context, actorID, action, entityType, entityID, requestID, ip string, before, after any) error
}

type Notifier interface {
	Create(ctx context.Context, userID, ntype, title, body string) error
	NotifyRole(ctx context.Context, role, ntype, title, body string) (int, error)
}

type Sweeper interface {
	SweepNow(ctx context.Context) (performance.SweepResult, error)
}

type Handler struct {
	Service *performance.Service
	Perms   middleware.PermissionStore
	Notify  Notifier
	Audit   Auditor
	Metrics *metrics.Collector
	Sweeper Sweeper
}

func NewHandler(service *performance.Service, perms middleware.PermissionStore, notify Notifier, auditSvc Auditor, collector *metrics.Collector, sweeper Sweeper) *Handler {
	return &Handler{Service: service, Perms: perms, Notify: notify, Audit: auditSvc, Metrics: collector, Sweeper: sweeper}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermPerformanceRead, h.Perms)
	write := middleware.RequirePermission(auth.PermPerformanceWrite, h.Perms)
	review := middleware.RequirePermission(auth.PermPerformanceReview, h.Perms)
	approve := middleware.RequirePermission(auth.PermPerformanceApprove, h.Perms)
	forms := middleware.RequirePermission(auth.PermFormsManage, h.Perms)
	cycles := middleware.RequirePermission(auth.PermCyclesManage, h.Perms)
	reports := middleware.RequirePermission(auth.PermReportsRead, h.Perms)

	r.Route("/performance", func(r chi.Router) {
		r.With(read).Get("/catalog", h.handleCatalog)

		r.With(read).Get("/forms", h.handleListForms)
		r.With(forms).Post("/forms", h.handleCreateForm)
		r.With(read).Get("/forms/{formID}", h.handleGetForm)
		r.With(forms).Post("/forms/{formID}/fields", h.handleAddField)
		r.With(forms).Post("/forms/{formID}/levels", h.handleAddLevel)
		r.With(forms).Delete("/forms/{formID}/levels/{level}", h.handleRemoveLevel)
		r.With(forms).Post("/forms/{formID}/publish", h.handlePublishForm)
		r.With(approve).Post("/forms/{formID}/decisions", h.handleDecideForm)
		r.With(forms).Post("/forms/{formID}/resubmit", h.handleResubmitForm)
		r.With(read).Get("/forms/{formID}/chain", h.handleFormChain)
		r.With(forms).Post("/forms/{formID}/clone", h.handleCloneForm)

		r.With(read).Get("/cycles", h.handleListCycles)
		r.With(cycles).Post("/cycles", h.handleCreateCycle)
		r.With(read).Get("/cycles/{cycleID}", h.handleGetCycle)
		r.With(reports).Get("/cycles/{cycleID}/report", h.handleCycleReport)
		r.With(write).Put("/cycles/{cycleID}/assessment", h.handleSaveDraft)
		r.With(cycles).Post("/sweep", h.handleSweep)

		r.With(read).Get("/assessments/{assessmentID}", h.handleGetAssessment)
		r.With(write).Put("/assessments/{assessmentID}", h.handleReviseAssessment)
		r.With(write).Post("/assessments/{assessmentID}/submit", h.handleSubmitAssessment)
		r.With(write).Post("/assessments/{assessmentID}/resubmit", h.handleResubmitAssessment)
		r.With(review).Post("/assessments/{assessmentID}/review", h.handleReviewAssessment)
		r.With(approve).Post("/assessments/{assessmentID}/decisions", h.handleDecideAssessment)
		r.With(read).Get("/assessments/{assessmentID}/chain", h.handleAssessmentChain)
		r.With(read).Get("/assessments/{assessmentID}/summary.pdf", h.handleSummaryPDF)
	})
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat := h.Service.Catalog()
	if cat == nil {
		api.Fail(w, http.StatusNotFound, "not_found", "no catalog loaded", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, cat, middleware.GetRequestID(r.Context()))
}

func requireUser(w http.ResponseWriter, r *http.Request) (performance.ActorContext, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
	}
	return user, ok
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return false
	}
	return true
}

// writeError maps workflow errors onto the response envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallbackCode string) {
	requestID := middleware.GetRequestID(r.Context())
	var validation *performance.ValidationError
	switch {
	case errors.As(err, &validation):
		v := shared.NewValidator()
		for path, reason := range validation.Fields {
			v.Add(path, reason)
		}
		shared.FailValidation(w, requestID, v.Issues())
	case errors.Is(err, performance.ErrSequence):
		api.Fail(w, http.StatusConflict, "sequence_error", err.Error(), requestID)
	case errors.Is(err, performance.ErrInvariant):
		api.Fail(w, http.StatusConflict, "invariant_violation", err.Error(), requestID)
	case errors.Is(err, performance.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed for this actor", requestID)
	case errors.Is(err, performance.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "resource not found", requestID)
	case errors.Is(err, performance.ErrVersionConflict):
		api.Fail(w, http.StatusConflict, "version_conflict", "resource was modified concurrently, reload and retry", requestID)
	case errors.Is(err, lock.ErrLocked):
		api.Fail(w, http.StatusConflict, "locked", "resource is busy, retry shortly", requestID)
	default:
		slog.Error("performance request failed", "code", fallbackCode, "path", r.URL.Path, "err", err, "requestId", requestID)
		api.Fail(w, http.StatusInternalServerError, fallbackCode, "request failed", requestID)
	}
}

func (h *Handler) record(r *http.Request, actor performance.ActorContext, action, entityType, entityID string, before, after any) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Record(r.Context(), actor.UserID, action, entityType, entityID, middleware.GetRequestID(r.Context()), clientIP(r), before, after); err != nil {
		slog.Warn("audit record failed", "action", action, "entityId", entityID, "err", err)
	}
}

func (h *Handler) notifyUser(ctx context.Context, userID, ntype, title, body string) {
	if h.Notify == nil || userID == "" {
		return
	}
	if err := h.Notify.Create(ctx, userID, ntype, title, body); err != nil {
		slog.Warn("notification failed", "userId", userID, "type", ntype, "err", err)
	}
}

// notifyApprovers tells everyone on the chain's pending level that a decision is waiting.
// Approver entries naming a role fan out to every active user with that role.
func (h *Handler) notifyApprovers(ctx context.Context, chain performance.Chain, ntype, title, body string) {
	if h.Notify == nil {
		return
	}
	level, ok := performance.PendingLevel(chain)
	if !ok {
		return
	}
	for _, approver := range level.Approvers {
		if auth.KnownRole(approver) {
			if _, err := h.Notify.NotifyRole(ctx, approver, ntype, title, body); err != nil {
				slog.Warn("role notification failed", "role", approver, "err", err)
			}
			continue
		}
		h.notifyUser(ctx, approver, ntype, title, body)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
