package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"intake/internal/form/models"
	"intake/internal/visibility"
	id "intake/pkg/domain"
	"intake/pkg/platform/httputil"
	"intake/pkg/requestcontext"
)

// Service defines the form operations the handler needs.
type Service interface {
	ListActiveServices(ctx context.Context) ([]models.Service, error)
	GetForm(ctx context.Context, serviceID id.ServiceID) (*models.Form, error)
	Render(ctx context.Context, serviceID id.ServiceID, values visibility.Values) (*models.RenderedForm, error)
}

// Handler wires catalog endpoints to the form service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a form handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the catalog endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/services", h.HandleListServices)
	r.Get("/services/{id}/form", h.HandleGetForm)
	r.Post("/services/{id}/form/render", h.HandleRender)
}

// HandleListServices handles GET /services.
func (h *Handler) HandleListServices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	services, err := h.service.ListActiveServices(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list services",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	resp := ListServicesResponse{Services: make([]ServiceResponse, 0, len(services))}
	for _, s := range services {
		resp.Services = append(resp.Services, toServiceResponse(s))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleGetForm handles GET /services/{id}/form.
func (h *Handler) HandleGetForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	serviceID, err := id.ParseServiceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	form, err := h.service.GetForm(ctx, serviceID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to load form",
			"request_id", requestcontext.RequestID(ctx),
			"service_id", serviceID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, form)
}

// HandleRender handles POST /services/{id}/form/render.
func (h *Handler) HandleRender(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	serviceID, err := id.ParseServiceID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[RenderRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	rendered, err := h.service.Render(ctx, serviceID, req.Values)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to render form",
			"request_id", requestID,
			"service_id", serviceID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rendered)
}
