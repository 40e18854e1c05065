package models

import (
	"path/filepath"
	"slices"
	"strings"
	"time"

	formmodels "intake/internal/form/models"
	id "intake/pkg/domain"
)

// DownloadPath prefixes the content reference of an uploaded file.
const DownloadPath = "/sfc/servlet.shepherd/document/download/"

// Attachment links an uploaded file to one document requirement of a request.
type Attachment struct {
	ID               id.AttachmentID     `json:"id"`
	ServiceRequestID id.ServiceRequestID `json:"service_request_id"`
	RequirementID    string              `json:"requirement_id"`
	FileName         string              `json:"file_name"`
	ContentRef       string              `json:"content_ref,omitempty"`
	AttachedAt       time.Time           `json:"attached_at"`
}

// DownloadURL returns the download link of the attached file, or "#" when the
// file has no content reference yet.
func (a Attachment) DownloadURL() string {
	return DownloadURL(a.ContentRef)
}

func DownloadURL(contentRef string) string {
	if contentRef == "" {
		return "#"
	}
	return DownloadPath + contentRef
}

// FileExtension returns the lower-cased extension of name including the dot,
// or "" when name has none.
func FileExtension(name string) string {
	return strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
}

// ValidateFileType reports whether name's extension is one of allowed. The
// comparison ignores case on both sides.
func ValidateFileType(name string, allowed []string) bool {
	ext := FileExtension(name)
	if ext == "" {
		return false
	}
	return slices.ContainsFunc(allowed, func(a string) bool {
		return strings.EqualFold(strings.TrimSpace(a), ext)
	})
}

// RequirementView is a document requirement with what has been attached to it.
type RequirementView struct {
	ID           string       `json:"id"`
	Label        string       `json:"label"`
	Mandatory    bool         `json:"mandatory"`
	AllowedTypes []string     `json:"allowed_types"`
	Attachments  []Attachment `json:"attachments"`
}

// Satisfied reports whether a mandatory requirement has at least one file.
func (v RequirementView) Satisfied() bool {
	return !v.Mandatory || len(v.Attachments) > 0
}

// NewRequirementView builds the view of req from the attachments listed for it.
func NewRequirementView(req formmodels.DocumentRequirement, attachments []Attachment) RequirementView {
	if attachments == nil {
		attachments = []Attachment{}
	}
	return RequirementView{
		ID:           req.ID,
		Label:        req.DisplayLabel(),
		Mandatory:    req.Mandatory,
		AllowedTypes: req.AllowedTypeList(),
		Attachments:  attachments,
	}
}
