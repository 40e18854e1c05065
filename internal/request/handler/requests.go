package handler

import (
	"strings"
	"time"

	formmodels "intake/internal/form/models"
	"intake/internal/request/models"
	"intake/internal/request/service"
	"intake/internal/visibility"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
)

const (
	maxNameLength  = 120
	maxFieldValues = 500
)

// CreateRequest is the HTTP request body for POST /requests.
type CreateRequest struct {
	ServiceID string         `json:"service_id"`
	Name      string         `json:"name"`
	StatusID  string         `json:"status_id"`
	Values    map[string]any `json:"values"`

	parsedServiceID id.ServiceID
}

func (r *CreateRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.StatusID = strings.TrimSpace(r.StatusID)
}

// Validate implements httputil.Validatable.
func (r *CreateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := validateCommon(r.Name, r.Values); err != nil {
		return err
	}
	if strings.TrimSpace(r.ServiceID) == "" {
		return dErrors.New(dErrors.CodeValidation, "service_id is required")
	}
	serviceID, err := id.ParseServiceID(r.ServiceID)
	if err != nil {
		return err
	}
	r.parsedServiceID = serviceID
	return nil
}

func (r *CreateRequest) toCommand() service.CreateCommand {
	return service.CreateCommand{
		ServiceID: r.parsedServiceID,
		Name:      r.Name,
		StatusID:  r.StatusID,
		Values:    r.Values,
	}
}

// UpdateRequest is the HTTP request body for PUT /requests/{id}.
type UpdateRequest struct {
	Name     string         `json:"name"`
	StatusID string         `json:"status_id"`
	Values   map[string]any `json:"values"`
}

func (r *UpdateRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.StatusID = strings.TrimSpace(r.StatusID)
}

func (r *UpdateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return validateCommon(r.Name, r.Values)
}

// StartDraftRequest is the HTTP request body for POST /drafts.
type StartDraftRequest struct {
	ServiceID string `json:"service_id"`

	parsedServiceID id.ServiceID
}

func (r *StartDraftRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.ServiceID) == "" {
		return dErrors.New(dErrors.CodeValidation, "service_id is required")
	}
	serviceID, err := id.ParseServiceID(r.ServiceID)
	if err != nil {
		return err
	}
	r.parsedServiceID = serviceID
	return nil
}

// FieldChangeRequest is the HTTP request body for PUT /drafts/{id}/fields.
type FieldChangeRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

func (r *FieldChangeRequest) Normalize() {
	r.Field = strings.TrimSpace(r.Field)
}

func (r *FieldChangeRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Field == "" {
		return dErrors.New(dErrors.CodeValidation, "field is required")
	}
	return nil
}

// SubmitDraftRequest is the HTTP request body for POST /drafts/{id}/submit.
type SubmitDraftRequest struct {
	Name     string `json:"name"`
	StatusID string `json:"status_id"`
}

func (r *SubmitDraftRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.StatusID = strings.TrimSpace(r.StatusID)
}

func (r *SubmitDraftRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	return validateCommon(r.Name, nil)
}

func validateCommon(name string, values map[string]any) error {
	if len(name) > maxNameLength {
		return dErrors.New(dErrors.CodeValidation, "name must be at most 120 characters")
	}
	if len(values) > maxFieldValues {
		return dErrors.New(dErrors.CodeValidation, "too many field values")
	}
	return nil
}

// RequestResponse is the JSON view of a service request.
type RequestResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	ServiceID   string            `json:"service_id"`
	ServiceName string            `json:"service_name"`
	StatusID    string            `json:"status_id,omitempty"`
	Values      visibility.Values `json:"values"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

func toRequestResponse(r *models.ServiceRequest) RequestResponse {
	values := r.Values
	if values == nil {
		values = visibility.Values{}
	}
	return RequestResponse{
		ID:          r.ID.String(),
		Name:        r.Name,
		ServiceID:   r.ServiceID.String(),
		ServiceName: r.ServiceName,
		StatusID:    r.StatusID,
		Values:      values,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// SearchResponse is the body of GET /requests?search=.
type SearchResponse struct {
	Results []models.SearchResult `json:"results"`
}

// PDFResponse is the body of GET /requests/{id}/pdf.
type PDFResponse struct {
	URL string `json:"url"`
}

// DraftResponse is a draft with its current rendering.
type DraftResponse struct {
	DraftID   string                   `json:"draft_id"`
	ServiceID string                   `json:"service_id"`
	Values    visibility.Values        `json:"values"`
	Form      *formmodels.RenderedForm `json:"form"`
}

func toDraftResponse(v *service.DraftView) DraftResponse {
	return DraftResponse{
		DraftID:   v.Draft.ID.String(),
		ServiceID: v.Draft.ServiceID.String(),
		Values:    v.Draft.Values,
		Form:      v.Rendered,
	}
}
