package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/visibility"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
)

var fixedTime = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func TestNewServiceRequest(t *testing.T) {
	requestID := id.ServiceRequestID(uuid.MustParse("1a2b3c4d-0000-4000-8000-000000000001"))

	t.Run("defaults the name from the id", func(t *testing.T) {
		req, err := NewServiceRequest(requestID, "  ", "permit", "Permit", "new", nil, fixedTime)
		require.NoError(t, err)
		assert.Equal(t, "SR-1A2B3C4D", req.Name)
		assert.NotNil(t, req.Values)
		assert.Equal(t, fixedTime, req.CreatedAt)
		assert.Equal(t, fixedTime, req.UpdatedAt)
	})

	t.Run("keeps an explicit name", func(t *testing.T) {
		req, err := NewServiceRequest(requestID, " Kitchen ", "permit", "Permit", "", nil, fixedTime)
		require.NoError(t, err)
		assert.Equal(t, "Kitchen", req.Name)
		assert.Empty(t, req.StatusID)
	})

	t.Run("rejects a nil id", func(t *testing.T) {
		_, err := NewServiceRequest(id.ServiceRequestID(uuid.Nil), "x", "permit", "Permit", "", nil, fixedTime)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func TestApply(t *testing.T) {
	req := &ServiceRequest{
		StatusID: "new",
		Values: visibility.Values{
			"Type": visibility.String("Individual"),
			"Area": visibility.Number(50),
		},
		UpdatedAt: fixedTime,
	}
	later := fixedTime.Add(time.Hour)

	req.Apply(visibility.Values{"Type": visibility.String("Company")}, "", later)

	assert.Equal(t, "Company", req.Values.Get("Type").Text())
	assert.Equal(t, "50", req.Values.Get("Area").Text(), "values not mentioned are kept")
	assert.Equal(t, "new", req.StatusID, "empty status leaves the status alone")
	assert.Equal(t, later, req.UpdatedAt)

	req.Apply(nil, "review", later)
	assert.Equal(t, "review", req.StatusID)
}

func TestSearchLabel(t *testing.T) {
	tests := []struct {
		name string
		req  ServiceRequest
		want string
	}{
		{"full", ServiceRequest{Name: "SR-1", ServiceName: "Building Permit", CreatedAt: fixedTime}, "SR-1 - Building Permit (2025-03-14)"},
		{"no service name", ServiceRequest{Name: "SR-1", CreatedAt: fixedTime}, "SR-1 (2025-03-14)"},
		{"no date", ServiceRequest{Name: "SR-1", ServiceName: "Building Permit"}, "SR-1 - Building Permit"},
		{"name only", ServiceRequest{Name: "SR-1"}, "SR-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.SearchLabel())
		})
	}
}

func TestPDFURL(t *testing.T) {
	requestID := id.ServiceRequestID(uuid.MustParse("1a2b3c4d-0000-4000-8000-000000000001"))

	tests := []struct {
		name    string
		baseURL string
		want    string
		code    dErrors.Code
	}{
		{
			name: "relative without a base",
			want: "/apex/ServiceRequestPDF?id=1a2b3c4d-0000-4000-8000-000000000001",
		},
		{
			name:    "absolute with a base",
			baseURL: "https://portal.example.org/",
			want:    "https://portal.example.org/apex/ServiceRequestPDF?id=1a2b3c4d-0000-4000-8000-000000000001",
		},
		{
			name:    "base path is replaced by the export path",
			baseURL: "https://portal.example.org/s/home",
			want:    "https://portal.example.org/apex/ServiceRequestPDF?id=1a2b3c4d-0000-4000-8000-000000000001",
		},
		{
			name:    "base without a host",
			baseURL: "portal",
			code:    dErrors.CodeInternal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PDFURL(tt.baseURL, requestID)
			if tt.code != "" {
				assert.True(t, dErrors.HasCode(err, tt.code))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("nil id", func(t *testing.T) {
		_, err := PDFURL("", id.ServiceRequestID(uuid.Nil))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}
