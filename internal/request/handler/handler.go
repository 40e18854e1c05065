package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"intake/internal/request/models"
	"intake/internal/request/service"
	id "intake/pkg/domain"
	"intake/pkg/platform/httputil"
	"intake/pkg/requestcontext"
)

// Service defines the request operations exposed over HTTP.
type Service interface {
	Create(ctx context.Context, cmd service.CreateCommand) (*models.ServiceRequest, error)
	Update(ctx context.Context, cmd service.UpdateCommand) (*models.ServiceRequest, error)
	Get(ctx context.Context, requestID id.ServiceRequestID) (*models.ServiceRequest, error)
	Search(ctx context.Context, term string) ([]models.SearchResult, error)
	PDFURL(ctx context.Context, requestID id.ServiceRequestID) (string, error)
	StartDraft(ctx context.Context, serviceID id.ServiceID) (*service.DraftView, error)
	GetDraft(ctx context.Context, draftID id.DraftID) (*service.DraftView, error)
	ApplyFieldChange(ctx context.Context, draftID id.DraftID, apiName string, raw any) (*service.DraftView, error)
	SubmitDraft(ctx context.Context, draftID id.DraftID, name, statusID string) (*models.ServiceRequest, error)
}

// Handler wires request and draft endpoints to the request service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a request handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts request and draft endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/requests", h.HandleCreate)
	r.Get("/requests", h.HandleSearch)
	r.Get("/requests/{id}", h.HandleGet)
	r.Put("/requests/{id}", h.HandleUpdate)
	r.Get("/requests/{id}/pdf", h.HandlePDF)

	r.Post("/drafts", h.HandleStartDraft)
	r.Get("/drafts/{id}", h.HandleGetDraft)
	r.Put("/drafts/{id}/fields", h.HandleFieldChange)
	r.Post("/drafts/{id}/submit", h.HandleSubmitDraft)
}

// HandleCreate handles POST /requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CreateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	created, err := h.service.Create(ctx, req.toCommand())
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create service request",
			"request_id", requestID,
			"service_id", req.ServiceID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRequestResponse(created))
}

// HandleSearch handles GET /requests?search=.
func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	results, err := h.service.Search(ctx, r.URL.Query().Get("search"))
	if err != nil {
		h.logger.ErrorContext(ctx, "service request search failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// HandleGet handles GET /requests/{id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseServiceRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	found, err := h.service.Get(ctx, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(found))
}

// HandleUpdate handles PUT /requests/{id}.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := requestcontext.RequestID(ctx)

	requestID, err := id.ParseServiceRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[UpdateRequest](w, r, h.logger, ctx, correlationID)
	if !ok {
		return
	}

	updated, err := h.service.Update(ctx, service.UpdateCommand{
		ID:       requestID,
		Name:     req.Name,
		StatusID: req.StatusID,
		Values:   req.Values,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "failed to update service request",
			"request_id", correlationID,
			"service_request_id", requestID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(updated))
}

// HandlePDF handles GET /requests/{id}/pdf.
func (h *Handler) HandlePDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseServiceRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	url, err := h.service.PDFURL(ctx, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, PDFResponse{URL: url})
}

// HandleStartDraft handles POST /drafts.
func (h *Handler) HandleStartDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[StartDraftRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	view, err := h.service.StartDraft(ctx, req.parsedServiceID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to start draft",
			"request_id", requestID,
			"service_id", req.ServiceID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toDraftResponse(view))
}

// HandleGetDraft handles GET /drafts/{id}.
func (h *Handler) HandleGetDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	draftID, err := id.ParseDraftID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	view, err := h.service.GetDraft(ctx, draftID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDraftResponse(view))
}

// HandleFieldChange handles PUT /drafts/{id}/fields.
func (h *Handler) HandleFieldChange(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	draftID, err := id.ParseDraftID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[FieldChangeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	view, err := h.service.ApplyFieldChange(ctx, draftID, req.Field, req.Value)
	if err != nil {
		h.logger.WarnContext(ctx, "field change rejected",
			"request_id", requestID,
			"draft_id", draftID.String(),
			"field", req.Field,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDraftResponse(view))
}

// HandleSubmitDraft handles POST /drafts/{id}/submit.
func (h *Handler) HandleSubmitDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	draftID, err := id.ParseDraftID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[SubmitDraftRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	created, err := h.service.SubmitDraft(ctx, draftID, req.Name, req.StatusID)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to submit draft",
			"request_id", requestID,
			"draft_id", draftID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRequestResponse(created))
}
