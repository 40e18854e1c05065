package handler

import (
	"strings"

	"intake/internal/form/models"
	"intake/internal/visibility"
	dErrors "intake/pkg/domain-errors"
)

const maxRenderValues = 500

// RenderRequest is the HTTP request body for POST /services/{id}/form/render.
type RenderRequest struct {
	Values visibility.Values `json:"values"`
}

// Validate implements httputil.Validatable.
func (r *RenderRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Values) > maxRenderValues {
		return dErrors.New(dErrors.CodeValidation, "too many field values")
	}
	for k := range r.Values {
		if strings.TrimSpace(k) == "" {
			return dErrors.New(dErrors.CodeValidation, "field names must not be empty")
		}
	}
	return nil
}

// ServiceResponse is one entry of GET /services.
type ServiceResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Label   string `json:"label"`
	SLADays int    `json:"sla_days,omitempty"`
}

func toServiceResponse(s models.Service) ServiceResponse {
	return ServiceResponse{
		ID:      s.ID.String(),
		Name:    s.Name,
		Label:   s.OptionLabel(),
		SLADays: s.SLADays,
	}
}

// ListServicesResponse is the body of GET /services.
type ListServicesResponse struct {
	Services []ServiceResponse `json:"services"`
}
