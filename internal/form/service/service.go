package service

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"intake/internal/form/metrics"
	"intake/internal/form/models"
	"intake/internal/visibility"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/sentinel"
)

const loadTimeout = 3 * time.Second

// CatalogStore is the read side of the form catalog.
type CatalogStore interface {
	ListServices(ctx context.Context) ([]models.Service, error)
	FindService(ctx context.Context, serviceID id.ServiceID) (*models.Service, error)
	Sections(ctx context.Context, serviceID id.ServiceID) ([]models.Section, error)
	Statuses(ctx context.Context, serviceID id.ServiceID) ([]models.Status, error)
	Documents(ctx context.Context, serviceID id.ServiceID) ([]models.DocumentRequirement, error)
	ConditionGroups(ctx context.Context, serviceID id.ServiceID) ([]visibility.ConditionGroup, error)
}

// Service serves form definitions and evaluates field visibility.
type Service struct {
	catalog CatalogStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(catalog CatalogStore, opts ...Option) *Service {
	s := &Service{catalog: catalog}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// ListActiveServices returns the services offered in the service picker, ordered by name.
func (s *Service) ListActiveServices(ctx context.Context) ([]models.Service, error) {
	all, err := s.catalog.ListServices(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list services")
	}
	active := slices.DeleteFunc(all, func(svc models.Service) bool { return !svc.Active })
	slices.SortStableFunc(active, func(a, b models.Service) int { return cmp.Compare(a.Name, b.Name) })
	return active, nil
}

// Service returns one catalog entry.
func (s *Service) Service(ctx context.Context, serviceID id.ServiceID) (*models.Service, error) {
	svc, err := s.catalog.FindService(ctx, serviceID)
	if err != nil {
		return nil, translateCatalogError(err, serviceID)
	}
	return svc, nil
}

// GetForm loads everything needed to draw a service's form. Sections, fields,
// statuses and documents come back in sequence order.
func (s *Service) GetForm(ctx context.Context, serviceID id.ServiceID) (*models.Form, error) {
	start := time.Now()
	defer s.metrics.ObserveGetForm(start)

	svc, err := s.catalog.FindService(ctx, serviceID)
	if err != nil {
		return nil, translateCatalogError(err, serviceID)
	}

	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	form := &models.Form{ServiceID: svc.ID, ServiceName: svc.Name}

	g.Go(func() error {
		sections, err := s.catalog.Sections(ctx, serviceID)
		if err != nil {
			return err
		}
		sections = models.SortSections(sections)
		for i := range sections {
			sections[i].Fields = models.SortFields(sections[i].Fields)
		}
		form.Sections = sections
		return nil
	})
	g.Go(func() error {
		statuses, err := s.catalog.Statuses(ctx, serviceID)
		if err != nil {
			return err
		}
		form.Statuses = models.SortStatuses(statuses)
		return nil
	})
	g.Go(func() error {
		docs, err := s.catalog.Documents(ctx, serviceID)
		if err != nil {
			return err
		}
		form.Documents = models.SortDocuments(docs)
		return nil
	})
	g.Go(func() error {
		groups, err := s.catalog.ConditionGroups(ctx, serviceID)
		if err != nil {
			return err
		}
		form.ConditionGroups = groups
		return nil
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "loading the form timed out")
		}
		return nil, translateCatalogError(err, serviceID)
	}
	return form, nil
}

// Render loads the service's form and evaluates it against values.
func (s *Service) Render(ctx context.Context, serviceID id.ServiceID, values visibility.Values) (*models.RenderedForm, error) {
	form, err := s.GetForm(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return s.RenderForm(form, values), nil
}

// RenderForm re-evaluates every field of form against values. Hidden fields keep
// their values; they are only left out of the rendered sections.
func (s *Service) RenderForm(form *models.Form, values visibility.Values) *models.RenderedForm {
	start := time.Now()
	rendered := RenderForm(form, values)
	s.metrics.ObserveRender(start, len(rendered.Hidden))
	s.logger.Debug("form rendered",
		"service_id", form.ServiceID,
		"sections", len(rendered.Sections),
		"hidden_fields", len(rendered.Hidden),
	)
	return rendered
}

// RenderForm is the pure evaluation pass behind Service.RenderForm.
func RenderForm(form *models.Form, values visibility.Values) *models.RenderedForm {
	ev := visibility.NewEvaluator(form.ConditionGroups)
	out := &models.RenderedForm{
		ServiceID: form.ServiceID,
		Sections:  make([]models.RenderedSection, 0, len(form.Sections)),
		Hidden:    []string{},
	}
	for _, sec := range form.Sections {
		rs := models.RenderedSection{
			ID:          sec.ID,
			Name:        sec.Name,
			Description: sec.Description,
			Collapsible: sec.Collapsible,
			Fields:      []models.RenderedField{},
		}
		for _, f := range sec.Fields {
			if !ev.IsVisible(f.Visibility(), values) {
				out.Hidden = append(out.Hidden, f.APIName)
				continue
			}
			rs.Fields = append(rs.Fields, models.NewRenderedField(f, values.Get(f.APIName)))
		}
		rs.HasFields = len(rs.Fields) > 0
		out.Sections = append(out.Sections, rs)
	}
	return out
}

// NormalizeFieldValue converts raw input for the named field of a service into
// its stored form.
func (s *Service) NormalizeFieldValue(ctx context.Context, serviceID id.ServiceID, apiName string, raw any) (visibility.Value, error) {
	svc, err := s.catalog.FindService(ctx, serviceID)
	if err != nil {
		return visibility.Value{}, translateCatalogError(err, serviceID)
	}
	field, ok := svc.FieldByAPIName(apiName)
	if !ok {
		return visibility.Value{}, dErrors.New(dErrors.CodeValidation, "unknown field: "+apiName)
	}
	return models.NormalizeValue(field, raw)
}

func translateCatalogError(err error, serviceID id.ServiceID) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "service not found: "+serviceID.String())
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load service catalog")
}
