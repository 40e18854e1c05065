package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"intake/internal/approval/metrics"
	"intake/internal/approval/models"
	formmodels "intake/internal/form/models"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/audit"
	"intake/pkg/platform/sentinel"
	"intake/pkg/requestcontext"
)

type Store interface {
	CreateMany(ctx context.Context, steps []models.ApprovalStep) error
	ListByRequest(ctx context.Context, requestID id.ServiceRequestID) ([]models.ApprovalStep, error)
	FindByID(ctx context.Context, stepID id.ApprovalStepID) (*models.ApprovalStep, error)
	Update(ctx context.Context, step *models.ApprovalStep) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service seeds approval steps for new requests and reports their timeline.
type Service struct {
	store          Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
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

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Seed copies the service's step templates onto a new request. It runs inside
// the request's creation transaction when the caller started one.
func (s *Service) Seed(ctx context.Context, requestID id.ServiceRequestID, templates []formmodels.ApprovalStepTemplate) error {
	if requestID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "request id is required")
	}
	if len(templates) == 0 {
		return nil
	}
	steps := make([]models.ApprovalStep, 0, len(templates))
	for _, t := range templates {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return dErrors.New(dErrors.CodeValidation, "approval step name is required")
		}
		steps = append(steps, models.ApprovalStep{
			ID:               id.ApprovalStepID(uuid.New()),
			ServiceRequestID: requestID,
			Name:             name,
			Approver:         strings.TrimSpace(t.Approver),
			Sequence:         t.Sequence,
		})
	}
	if err := s.store.CreateMany(ctx, steps); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "service request not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save approval steps")
	}
	s.metrics.AddStepsSeeded(len(steps))
	return nil
}

// Timeline returns the request's steps ordered by sequence with their display state.
func (s *Service) Timeline(ctx context.Context, requestID id.ServiceRequestID) ([]models.TimelineEntry, error) {
	if requestID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request id is required")
	}
	steps, err := s.store.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load approval steps")
	}
	return models.BuildTimeline(steps), nil
}

// CompleteStep marks a step complete. Completing an already completed step is a no-op.
func (s *Service) CompleteStep(ctx context.Context, stepID id.ApprovalStepID) (*models.ApprovalStep, error) {
	step, err := s.store.FindByID(ctx, stepID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "approval step not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load approval step")
	}
	if step.Completed {
		return step, nil
	}

	step.Complete(requestcontext.Now(ctx))
	if err := s.store.Update(ctx, step); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "approval step not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save approval step")
	}

	s.logAudit(ctx, step)
	s.metrics.IncrementStepsCompleted()
	return step, nil
}

func (s *Service) logAudit(ctx context.Context, step *models.ApprovalStep) {
	event := audit.EventApprovalCompleted
	requestID := requestcontext.RequestID(ctx)
	s.logger.InfoContext(ctx, string(event),
		"service_request_id", step.ServiceRequestID.String(),
		"approval_step_id", step.ID.String(),
		"step", step.Name,
		"request_id", requestID,
		"event", string(event),
		"log_type", "audit",
	)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, audit.Event{
		Category:  event.Category(),
		Subject:   step.ServiceRequestID.String(),
		Action:    string(event),
		Reason:    step.Name,
		RequestID: requestID,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "event", string(event), "error", err)
	}
}
