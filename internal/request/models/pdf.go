package models

import (
	"net/url"
	"strings"

	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
)

const pdfPath = "/apex/ServiceRequestPDF"

// PDFURL builds the export link for a request. The path is resolved against
// baseURL when one is configured, otherwise it is returned relative.
func PDFURL(baseURL string, requestID id.ServiceRequestID) (string, error) {
	if requestID.IsNil() {
		return "", dErrors.New(dErrors.CodeBadRequest, "request id is required to build the pdf url")
	}
	rel := pdfPath + "?id=" + url.QueryEscape(requestID.String())

	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return rel, nil
	}
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", dErrors.New(dErrors.CodeInternal, "invalid base url for pdf export")
	}
	ref, err := url.Parse(rel)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "build pdf url")
	}
	return base.ResolveReference(ref).String(), nil
}
