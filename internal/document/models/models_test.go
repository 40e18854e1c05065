package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	formmodels "intake/internal/form/models"
)

func TestDownloadURL(t *testing.T) {
	assert.Equal(t, "/sfc/servlet.shepherd/document/download/069xx0000001", DownloadURL("069xx0000001"))
	assert.Equal(t, "#", DownloadURL(""))
	assert.Equal(t, "#", Attachment{FileName: "plans.pdf"}.DownloadURL())
}

func TestValidateFileType(t *testing.T) {
	allowed := []string{".pdf", ".jpg", ".jpeg"}
	tests := []struct {
		name    string
		allowed []string
		want    bool
	}{
		{"plans.pdf", allowed, true},
		{"PLANS.PDF", allowed, true},
		{"photo.final.JPeG", allowed, true},
		{"notes.txt", allowed, false},
		{"pdf", allowed, false},
		{"", allowed, false},
		{"archive.pdf.zip", allowed, false},
		{"drawing.dwg", []string{".PDF", " .DWG "}, true},
		{"plans.pdf", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateFileType(tt.name, tt.allowed))
		})
	}
}

func TestNewRequirementView(t *testing.T) {
	req := formmodels.DocumentRequirement{ID: "d-plans", Name: "Site plans", Mandatory: true, AllowedTypes: ".pdf;.DWG"}

	v := NewRequirementView(req, nil)
	assert.Equal(t, "Site plans", v.Label)
	assert.Equal(t, []string{".pdf", ".dwg"}, v.AllowedTypes)
	assert.NotNil(t, v.Attachments)
	assert.False(t, v.Satisfied())

	v = NewRequirementView(req, []Attachment{{FileName: "plans.pdf"}})
	assert.True(t, v.Satisfied())

	optional := NewRequirementView(formmodels.DocumentRequirement{ID: "d-photo"}, nil)
	assert.True(t, optional.Satisfied())
	assert.Equal(t, "Document", optional.Label)
	assert.Equal(t, formmodels.DefaultAllowedTypes, optional.AllowedTypes)
}
