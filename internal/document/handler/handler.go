package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"intake/internal/document/models"
	"intake/internal/document/service"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/httputil"
	"intake/pkg/requestcontext"
)

// Service defines the document operations exposed over HTTP.
type Service interface {
	Attach(ctx context.Context, cmd service.AttachCommand) (*models.Attachment, error)
	ListForRequirement(ctx context.Context, requestID id.ServiceRequestID, requirementID string) ([]models.Attachment, error)
	Checklist(ctx context.Context, requestID id.ServiceRequestID) ([]models.RequirementView, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/requests/{id}/documents", h.HandleList)
	r.Post("/requests/{id}/documents", h.HandleAttach)
}

// AttachRequest is the HTTP request body for POST /requests/{id}/documents.
type AttachRequest struct {
	RequirementID string `json:"requirement_id"`
	FileName      string `json:"file_name"`
	ContentRef    string `json:"content_ref"`
}

func (r *AttachRequest) Normalize() {
	r.RequirementID = strings.TrimSpace(r.RequirementID)
	r.FileName = strings.TrimSpace(r.FileName)
	r.ContentRef = strings.TrimSpace(r.ContentRef)
}

func (r *AttachRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.RequirementID == "" {
		return dErrors.New(dErrors.CodeValidation, "requirement_id is required")
	}
	if r.FileName == "" {
		return dErrors.New(dErrors.CodeValidation, "file_name is required")
	}
	return nil
}

// AttachmentResponse is the JSON view of an attachment.
type AttachmentResponse struct {
	ID            string    `json:"id"`
	RequirementID string    `json:"requirement_id"`
	FileName      string    `json:"file_name"`
	DownloadURL   string    `json:"download_url"`
	AttachedAt    time.Time `json:"attached_at"`
}

func toAttachmentResponse(a models.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:            a.ID.String(),
		RequirementID: a.RequirementID,
		FileName:      a.FileName,
		DownloadURL:   a.DownloadURL(),
		AttachedAt:    a.AttachedAt,
	}
}

func toAttachmentResponses(in []models.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(in))
	for _, a := range in {
		out = append(out, toAttachmentResponse(a))
	}
	return out
}

// RequirementResponse is one entry of the document checklist.
type RequirementResponse struct {
	ID           string               `json:"id"`
	Label        string               `json:"label"`
	Mandatory    bool                 `json:"mandatory"`
	Satisfied    bool                 `json:"satisfied"`
	AllowedTypes []string             `json:"allowed_types"`
	Attachments  []AttachmentResponse `json:"attachments"`
}

// ListResponse is the body of GET /requests/{id}/documents. Requirements is
// set when no requirement filter is given.
type ListResponse struct {
	Attachments  []AttachmentResponse  `json:"attachments,omitempty"`
	Requirements []RequirementResponse `json:"requirements,omitempty"`
}

// HandleList handles GET /requests/{id}/documents?requirement=.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID, err := id.ParseServiceRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if requirementID := strings.TrimSpace(r.URL.Query().Get("requirement")); requirementID != "" {
		attachments, err := h.service.ListForRequirement(ctx, requestID, requirementID)
		if err != nil {
			h.logError(ctx, "failed to list attachments", requestID, err)
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, ListResponse{Attachments: toAttachmentResponses(attachments)})
		return
	}

	views, err := h.service.Checklist(ctx, requestID)
	if err != nil {
		h.logError(ctx, "failed to load document checklist", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	resp := ListResponse{Requirements: make([]RequirementResponse, 0, len(views))}
	for _, v := range views {
		resp.Requirements = append(resp.Requirements, RequirementResponse{
			ID:           v.ID,
			Label:        v.Label,
			Mandatory:    v.Mandatory,
			Satisfied:    v.Satisfied(),
			AllowedTypes: v.AllowedTypes,
			Attachments:  toAttachmentResponses(v.Attachments),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleAttach handles POST /requests/{id}/documents.
func (h *Handler) HandleAttach(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := requestcontext.RequestID(ctx)

	requestID, err := id.ParseServiceRequestID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AttachRequest](w, r, h.logger, ctx, correlationID)
	if !ok {
		return
	}

	attachment, err := h.service.Attach(ctx, service.AttachCommand{
		RequestID:     requestID,
		RequirementID: req.RequirementID,
		FileName:      req.FileName,
		ContentRef:    req.ContentRef,
	})
	if err != nil {
		h.logError(ctx, "failed to attach document", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toAttachmentResponse(*attachment))
}

func (h *Handler) logError(ctx context.Context, msg string, requestID id.ServiceRequestID, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"service_request_id", requestID.String(),
		"error", err,
	)
}
