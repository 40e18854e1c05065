package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"intake/internal/approval/models"
	id "intake/pkg/domain"
	"intake/pkg/platform/httputil"
	"intake/pkg/requestcontext"
)

// Service defines the approval operations exposed over HTTP.
type Service interface {
	Timeline(ctx context.Context, requestID id.ServiceRequestID) ([]models.TimelineEntry, error)
	CompleteStep(ctx context.Context, stepID id.ApprovalStepID) (*models.ApprovalStep, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/requests/{id}/approvals", h.HandleTimeline)
	r.Post("/approvals/{id}/complete", h.HandleComplete)
}

// TimelineResponse is the body of GET /requests/{id}/approvals.
type TimelineResponse struct {
	Steps         []models.TimelineEntry `json:"steps"`
	CurrentStepID string                 `json:"current_step_id,omitempty"`
}

// HandleTimeline handles GET /requests/{id}/approvals.
func (h *Handler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseServiceRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	entries, err := h.service.Timeline(ctx, requestID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load approval timeline",
			"request_id", requestcontext.RequestID(ctx),
			"service_request_id", requestID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	resp := TimelineResponse{Steps: entries}
	if current, ok := models.Current(entries); ok {
		resp.CurrentStepID = current.ID.String()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleComplete handles POST /approvals/{id}/complete.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stepID, err := id.ParseApprovalStepID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	step, err := h.service.CompleteStep(ctx, stepID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to complete approval step",
			"request_id", requestcontext.RequestID(ctx),
			"approval_step_id", stepID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, step)
}
