package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	formmodels "intake/internal/form/models"
	"intake/internal/request/metrics"
	"intake/internal/request/models"
	"intake/internal/visibility"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/audit"
	"intake/pkg/platform/sentinel"
	txcontext "intake/pkg/platform/tx"
	"intake/pkg/requestcontext"
)

const defaultSearchLimit = 20

type RequestStore interface {
	Create(ctx context.Context, req *models.ServiceRequest) error
	Update(ctx context.Context, req *models.ServiceRequest) error
	FindByID(ctx context.Context, requestID id.ServiceRequestID) (*models.ServiceRequest, error)
	Search(ctx context.Context, term string, limit int) ([]*models.ServiceRequest, error)
}

// DraftStore owns draft field values. SetValue is the only way a draft's values change.
type DraftStore interface {
	Create(ctx context.Context, d *models.Draft) error
	FindByID(ctx context.Context, draftID id.DraftID) (*models.Draft, error)
	SetValue(ctx context.Context, draftID id.DraftID, field string, value visibility.Value, now time.Time) (*models.Draft, error)
	Delete(ctx context.Context, draftID id.DraftID) error
}

// Forms is the slice of the form service that requests depend on.
type Forms interface {
	Service(ctx context.Context, serviceID id.ServiceID) (*formmodels.Service, error)
	GetForm(ctx context.Context, serviceID id.ServiceID) (*formmodels.Form, error)
	RenderForm(form *formmodels.Form, values visibility.Values) *formmodels.RenderedForm
}

// ApprovalSeeder creates the approval steps of a new request.
type ApprovalSeeder interface {
	Seed(ctx context.Context, requestID id.ServiceRequestID, steps []formmodels.ApprovalStepTemplate) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Transactor groups store writes into one unit of work.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service manages service requests and their drafts.
type Service struct {
	requests       RequestStore
	drafts         DraftStore
	forms          Forms
	approvals      ApprovalSeeder
	tx             Transactor
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	pdfBaseURL     string
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

func WithApprovalSeeder(seeder ApprovalSeeder) Option {
	return func(s *Service) {
		s.approvals = seeder
	}
}

func WithTransactor(tx Transactor) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// WithPDFBaseURL makes PDF export links absolute.
func WithPDFBaseURL(baseURL string) Option {
	return func(s *Service) {
		s.pdfBaseURL = baseURL
	}
}

// New constructs a Service.
func New(requests RequestStore, drafts DraftStore, forms Forms, opts ...Option) *Service {
	s := &Service{requests: requests, drafts: drafts, forms: forms}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = txcontext.NoopRunner{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// CreateCommand describes a new request. Values holds raw decoded JSON per field API name.
type CreateCommand struct {
	ServiceID id.ServiceID
	Name      string
	StatusID  string
	Values    map[string]any
}

// Create stores a new request. An empty status selects the service's first status.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*models.ServiceRequest, error) {
	svc, err := s.forms.Service(ctx, cmd.ServiceID)
	if err != nil {
		return nil, err
	}
	values, err := normalizeValues(svc, cmd.Values)
	if err != nil {
		return nil, err
	}
	statusID, err := resolveStatus(svc, cmd.StatusID)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, svc, cmd.Name, statusID, values, audit.EventRequestCreated)
}

func (s *Service) create(
	ctx context.Context,
	svc *formmodels.Service,
	name, statusID string,
	values visibility.Values,
	event audit.AuditEvent,
) (*models.ServiceRequest, error) {
	req, err := models.NewServiceRequest(
		id.ServiceRequestID(uuid.New()),
		name,
		svc.ID,
		svc.Name,
		statusID,
		values,
		requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.requests.Create(ctx, req); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "service request already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save service request")
		}
		if s.approvals != nil && len(svc.ApprovalSteps) > 0 {
			if err := s.approvals.Seed(ctx, req.ID, svc.ApprovalSteps); err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create approval steps")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, event,
		"service_request_id", req.ID.String(),
		"service_id", svc.ID.String(),
		"status_id", req.StatusID,
	)
	s.metrics.IncrementRequestsCreated()
	return req, nil
}

// UpdateCommand changes an existing request. Only the given values are overwritten.
type UpdateCommand struct {
	ID       id.ServiceRequestID
	Name     string
	StatusID string
	Values   map[string]any
}

func (s *Service) Update(ctx context.Context, cmd UpdateCommand) (*models.ServiceRequest, error) {
	req, err := s.Get(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}
	svc, err := s.forms.Service(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	values, err := normalizeValues(svc, cmd.Values)
	if err != nil {
		return nil, err
	}
	if cmd.StatusID != "" && !svc.HasStatus(cmd.StatusID) {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown status: "+cmd.StatusID)
	}

	req.Apply(values, cmd.StatusID, requestcontext.Now(ctx))
	if name := strings.TrimSpace(cmd.Name); name != "" {
		req.Name = name
	}
	if err := s.requests.Update(ctx, req); err != nil {
		return nil, translateRequestError(err)
	}

	s.logAudit(ctx, audit.EventRequestUpdated,
		"service_request_id", req.ID.String(),
		"service_id", req.ServiceID.String(),
		"status_id", req.StatusID,
	)
	s.metrics.IncrementRequestsUpdated()
	return req, nil
}

func (s *Service) Get(ctx context.Context, requestID id.ServiceRequestID) (*models.ServiceRequest, error) {
	req, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, translateRequestError(err)
	}
	return req, nil
}

// Search looks requests up by request or service name. Terms shorter than
// models.MinSearchLength after trimming return no results without querying.
func (s *Service) Search(ctx context.Context, term string) ([]models.SearchResult, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < models.MinSearchLength {
		return []models.SearchResult{}, nil
	}
	start := time.Now()
	defer s.metrics.ObserveSearch(start)

	found, err := s.requests.Search(ctx, term, defaultSearchLimit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to search service requests")
	}
	out := make([]models.SearchResult, 0, len(found))
	for _, req := range found {
		out = append(out, models.SearchResult{ID: req.ID, Label: req.SearchLabel()})
	}
	return out, nil
}

// PDFURL returns the export link for an existing request.
func (s *Service) PDFURL(ctx context.Context, requestID id.ServiceRequestID) (string, error) {
	if requestID.IsNil() {
		return "", dErrors.New(dErrors.CodeBadRequest, "request id is required")
	}
	if _, err := s.Get(ctx, requestID); err != nil {
		return "", err
	}
	return models.PDFURL(s.pdfBaseURL, requestID)
}

// DraftView is a draft together with its current rendering.
type DraftView struct {
	Draft    *models.Draft
	Rendered *formmodels.RenderedForm
}

// StartDraft opens an empty draft for a service.
func (s *Service) StartDraft(ctx context.Context, serviceID id.ServiceID) (*DraftView, error) {
	form, err := s.forms.GetForm(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	d := &models.Draft{
		ID:        id.DraftID(uuid.New()),
		ServiceID: serviceID,
		Values:    visibility.Values{},
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := s.drafts.Create(ctx, d); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to start draft")
	}
	s.logAudit(ctx, audit.EventDraftStarted,
		"draft_id", d.ID.String(),
		"service_id", serviceID.String(),
	)
	s.metrics.IncrementDraftsStarted()
	return &DraftView{Draft: d, Rendered: s.forms.RenderForm(form, d.Values)}, nil
}

// ApplyFieldChange normalizes raw for the field's type, writes it through the
// draft store and re-evaluates the whole form against the updated values.
func (s *Service) ApplyFieldChange(ctx context.Context, draftID id.DraftID, apiName string, raw any) (*DraftView, error) {
	start := time.Now()
	defer s.metrics.ObserveFieldChange(start)

	d, err := s.drafts.FindByID(ctx, draftID)
	if err != nil {
		return nil, translateDraftError(err)
	}
	form, err := s.forms.GetForm(ctx, d.ServiceID)
	if err != nil {
		return nil, err
	}
	field, ok := findField(form, apiName)
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown field: "+apiName)
	}
	value, err := formmodels.NormalizeValue(field, raw)
	if err != nil {
		return nil, err
	}

	d, err = s.drafts.SetValue(ctx, draftID, apiName, value, requestcontext.Now(ctx))
	if err != nil {
		return nil, translateDraftError(err)
	}
	return &DraftView{Draft: d, Rendered: s.forms.RenderForm(form, d.Values)}, nil
}

// GetDraft returns a draft with its current rendering.
func (s *Service) GetDraft(ctx context.Context, draftID id.DraftID) (*DraftView, error) {
	d, err := s.drafts.FindByID(ctx, draftID)
	if err != nil {
		return nil, translateDraftError(err)
	}
	form, err := s.forms.GetForm(ctx, d.ServiceID)
	if err != nil {
		return nil, err
	}
	return &DraftView{Draft: d, Rendered: s.forms.RenderForm(form, d.Values)}, nil
}

// SubmitDraft turns a draft into a service request and discards the draft.
// Hidden fields keep their values on the request.
func (s *Service) SubmitDraft(ctx context.Context, draftID id.DraftID, name, statusID string) (*models.ServiceRequest, error) {
	d, err := s.drafts.FindByID(ctx, draftID)
	if err != nil {
		return nil, translateDraftError(err)
	}
	svc, err := s.forms.Service(ctx, d.ServiceID)
	if err != nil {
		return nil, err
	}
	statusID, err = resolveStatus(svc, statusID)
	if err != nil {
		return nil, err
	}

	req, err := s.create(ctx, svc, name, statusID, d.Values, audit.EventDraftSubmitted)
	if err != nil {
		return nil, err
	}
	if err := s.drafts.Delete(ctx, draftID); err != nil {
		s.logger.WarnContext(ctx, "failed to delete submitted draft",
			"draft_id", draftID.String(),
			"error", err,
		)
	}
	s.metrics.IncrementDraftsSubmitted()
	return req, nil
}

func normalizeValues(svc *formmodels.Service, raw map[string]any) (visibility.Values, error) {
	values := make(visibility.Values, len(raw))
	for apiName, v := range raw {
		field, ok := svc.FieldByAPIName(apiName)
		if !ok {
			return nil, dErrors.New(dErrors.CodeValidation, "unknown field: "+apiName)
		}
		normalized, err := formmodels.NormalizeValue(field, v)
		if err != nil {
			return nil, err
		}
		values[apiName] = normalized
	}
	return values, nil
}

func resolveStatus(svc *formmodels.Service, statusID string) (string, error) {
	if statusID == "" {
		def, ok := svc.DefaultStatus()
		if !ok {
			return "", nil
		}
		return def.ID, nil
	}
	if !svc.HasStatus(statusID) {
		return "", dErrors.New(dErrors.CodeValidation, "unknown status: "+statusID)
	}
	return statusID, nil
}

func findField(form *formmodels.Form, apiName string) (formmodels.FormField, bool) {
	for _, f := range form.Fields() {
		if f.APIName == apiName {
			return f, true
		}
	}
	return formmodels.FormField{}, false
}

func translateRequestError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "service request not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load service request")
}

func translateDraftError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "draft not found or expired")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load draft")
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	s.logger.InfoContext(ctx, string(event), args...)
	if s.auditPublisher == nil {
		return
	}
	subject := stringAttr(attributes, "service_request_id")
	if subject == "" {
		subject = stringAttr(attributes, "draft_id")
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Category:  event.Category(),
		Subject:   subject,
		Action:    string(event),
		ServiceID: stringAttr(attributes, "service_id"),
		Status:    stringAttr(attributes, "status_id"),
		RequestID: requestID,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}

// stringAttr returns the string value following key in a slog-style
// key/value list.
func stringAttr(kv []any, key string) string {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok && k == key {
			v, _ := kv[i+1].(string)
			return v
		}
	}
	return ""
}
