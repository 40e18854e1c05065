package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"intake/internal/document/metrics"
	"intake/internal/document/models"
	formmodels "intake/internal/form/models"
	requestmodels "intake/internal/request/models"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/audit"
	"intake/pkg/platform/sentinel"
	"intake/pkg/requestcontext"
)

const (
	defaultMaxAttempts  = 4
	defaultInitialDelay = 250 * time.Millisecond
	defaultMaxDelay     = 2 * time.Second
	maxFileNameLength   = 255
)

type Store interface {
	Create(ctx context.Context, a *models.Attachment) error
	ListForRequirement(ctx context.Context, requestID id.ServiceRequestID, requirementID string) ([]models.Attachment, error)
}

// Requests resolves the request an attachment belongs to.
type Requests interface {
	Get(ctx context.Context, requestID id.ServiceRequestID) (*requestmodels.ServiceRequest, error)
}

// Forms resolves the document requirements of a service.
type Forms interface {
	Service(ctx context.Context, serviceID id.ServiceID) (*formmodels.Service, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service links uploaded files to the document requirements of a request.
type Service struct {
	store          Store
	requests       Requests
	forms          Forms
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics

	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRetry bounds how often linking is attempted while the request is not
// visible yet. The delay doubles after every attempt starting at initial.
func WithRetry(maxAttempts int, initial time.Duration) Option {
	return func(s *Service) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if initial > 0 {
			s.initialDelay = initial
		}
	}
}

func New(store Store, requests Requests, forms Forms, opts ...Option) *Service {
	s := &Service{
		store:        store,
		requests:     requests,
		forms:        forms,
		maxAttempts:  defaultMaxAttempts,
		initialDelay: defaultInitialDelay,
		maxDelay:     defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxDelay < s.initialDelay {
		s.maxDelay = s.initialDelay
	}
	return s
}

// AttachCommand links an uploaded file to a requirement of a request.
type AttachCommand struct {
	RequestID     id.ServiceRequestID
	RequirementID string
	FileName      string
	ContentRef    string
}

// Attach checks the file type against the requirement and stores the link.
// A request that cannot be found yet is retried with a growing delay up to
// the configured number of attempts.
func (s *Service) Attach(ctx context.Context, cmd AttachCommand) (*models.Attachment, error) {
	cmd.RequirementID = strings.TrimSpace(cmd.RequirementID)
	cmd.FileName = strings.TrimSpace(cmd.FileName)
	if cmd.RequestID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request id is required")
	}
	if cmd.RequirementID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "requirement_id is required")
	}
	if cmd.FileName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "file_name is required")
	}
	if len(cmd.FileName) > maxFileNameLength {
		return nil, dErrors.New(dErrors.CodeValidation, "file_name must be at most 255 characters")
	}

	attachment := &models.Attachment{
		ID:               id.AttachmentID(uuid.New()),
		ServiceRequestID: cmd.RequestID,
		RequirementID:    cmd.RequirementID,
		FileName:         cmd.FileName,
		ContentRef:       strings.TrimSpace(cmd.ContentRef),
		AttachedAt:       requestcontext.Now(ctx),
	}

	attempt := 0
	link := func() error {
		attempt++
		err := s.link(ctx, attachment)
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.metrics.IncrementLinkRetries()
		s.logger.DebugContext(ctx, "request not visible yet, retrying document link",
			"service_request_id", cmd.RequestID.String(),
			"attempt", attempt,
			"wait", wait,
			"error", err,
		)
	}
	if err := backoff.RetryNotify(link, s.backOff(ctx), notify); err != nil {
		s.metrics.IncrementLinkFailures()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "document link timed out")
		}
		return nil, err
	}

	s.logAudit(ctx, attachment)
	s.metrics.IncrementAttached()
	return attachment, nil
}

func (s *Service) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.initialDelay
	b.MaxInterval = s.maxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxAttempts-1)), ctx)
}

// link performs one attempt: resolve the request and requirement, check the
// file type, then store the attachment.
func (s *Service) link(ctx context.Context, a *models.Attachment) error {
	req, err := s.requests.Get(ctx, a.ServiceRequestID)
	if err != nil {
		return err
	}
	requirement, err := s.requirement(ctx, req.ServiceID, a.RequirementID)
	if err != nil {
		return err
	}
	allowed := requirement.AllowedTypeList()
	if !models.ValidateFileType(a.FileName, allowed) {
		s.metrics.IncrementRejectedFileTypes()
		return dErrors.New(dErrors.CodeValidation,
			"file type not allowed, expected one of: "+strings.Join(allowed, ", "))
	}
	if err := s.store.Create(ctx, a); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return dErrors.New(dErrors.CodeNotFound, "service request not found")
		case errors.Is(err, sentinel.ErrConflict):
			return dErrors.New(dErrors.CodeConflict, "attachment already exists")
		default:
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save attachment")
		}
	}
	return nil
}

// isRetryable reports whether an attempt failed only because the request is
// not visible yet.
func isRetryable(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeNotFound)
}

func (s *Service) requirement(ctx context.Context, serviceID id.ServiceID, requirementID string) (formmodels.DocumentRequirement, error) {
	svc, err := s.forms.Service(ctx, serviceID)
	if err != nil {
		return formmodels.DocumentRequirement{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load service documents")
	}
	for _, d := range svc.Documents {
		if d.ID == requirementID {
			return d, nil
		}
	}
	return formmodels.DocumentRequirement{}, dErrors.New(dErrors.CodeValidation, "unknown document requirement: "+requirementID)
}

// ListForRequirement returns the attachments of one requirement of a request.
func (s *Service) ListForRequirement(ctx context.Context, requestID id.ServiceRequestID, requirementID string) ([]models.Attachment, error) {
	if requestID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request id is required")
	}
	attachments, err := s.store.ListForRequirement(ctx, requestID, strings.TrimSpace(requirementID))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attachments")
	}
	return attachments, nil
}

// Checklist returns every document requirement of the request's service in
// sequence order together with the files attached to it.
func (s *Service) Checklist(ctx context.Context, requestID id.ServiceRequestID) ([]models.RequirementView, error) {
	req, err := s.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	svc, err := s.forms.Service(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	attachments, err := s.ListForRequirement(ctx, requestID, "")
	if err != nil {
		return nil, err
	}
	byRequirement := make(map[string][]models.Attachment)
	for _, a := range attachments {
		byRequirement[a.RequirementID] = append(byRequirement[a.RequirementID], a)
	}

	docs := formmodels.SortDocuments(svc.Documents)
	out := make([]models.RequirementView, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.NewRequirementView(d, byRequirement[d.ID]))
	}
	return out, nil
}

func (s *Service) logAudit(ctx context.Context, a *models.Attachment) {
	event := audit.EventDocumentAttached
	requestID := requestcontext.RequestID(ctx)
	s.logger.InfoContext(ctx, string(event),
		"service_request_id", a.ServiceRequestID.String(),
		"requirement_id", a.RequirementID,
		"attachment_id", a.ID.String(),
		"request_id", requestID,
		"event", string(event),
		"log_type", "audit",
	)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Category:  event.Category(),
		Subject:   a.ServiceRequestID.String(),
		Action:    string(event),
		Reason:    a.RequirementID,
		RequestID: requestID,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
