package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"intake/internal/form/metrics"
	"intake/internal/form/models"
	"intake/internal/form/store/catalog"
	"intake/internal/visibility"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
)

const testCatalog = `
services:
  - id: permit
    name: Permit
    sla_days: 5
    active: true
    statuses:
      - { id: review, name: Review, sequence: 2 }
      - { id: new, name: New, sequence: 1 }
    sections:
      - id: extra
        name: Extra
        sequence: 2
        fields:
          - { id: f-eng, api_name: Engineer, sequence: 1, condition_group_id: large }
      - id: main
        name: Main
        sequence: 1
        fields:
          - { id: f-reg, api_name: Registration, sequence: 3, condition_group_id: company }
          - { id: f-type, api_name: Type, type: Picklist, picklist_values: "Individual,Company", sequence: 1 }
          - { id: f-area, api_name: Area, type: Number, sequence: 2 }
    condition_groups:
      - id: company
        conditions:
          - { field: Type, operator: "=", value: Company }
      - id: large
        logic: or
        conditions:
          - { field: Area, operator: ">", value: "200" }
          - { field: Type, operator: "=", value: Company }
    documents:
      - { id: d2, name: Photo, sequence: 2 }
      - { id: d1, name: Plans, sequence: 1 }
  - id: complaint
    name: Complaint
    active: true
  - id: archived
    name: Archived
    active: false
`

type FormServiceSuite struct {
	suite.Suite
	store   *catalog.InMemory
	metrics *metrics.Metrics
	service *Service
	ctx     context.Context
}

func (s *FormServiceSuite) SetupTest() {
	c, _, err := catalog.Parse(strings.NewReader(testCatalog))
	s.Require().NoError(err)
	s.store = catalog.NewInMemory(c)
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
	s.service = New(s.store, WithMetrics(s.metrics))
	s.ctx = context.Background()
}

func TestFormServiceSuite(t *testing.T) {
	suite.Run(t, new(FormServiceSuite))
}

func (s *FormServiceSuite) TestListActiveServices() {
	services, err := s.service.ListActiveServices(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(services, 2)
	s.Equal("Complaint", services[0].Name)
	s.Equal("Permit", services[1].Name)
	s.Equal("Permit (SLA: 5 days)", services[1].OptionLabel())
}

func (s *FormServiceSuite) TestGetForm() {
	s.Run("returns parts in sequence order", func() {
		form, err := s.service.GetForm(s.ctx, "permit")
		s.Require().NoError(err)

		s.Equal("Permit", form.ServiceName)
		s.Require().Len(form.Sections, 2)
		s.Equal("main", form.Sections[0].ID)
		s.Equal([]string{"Type", "Area", "Registration"}, apiNames(form.Sections[0].Fields))
		s.Equal("new", form.Statuses[0].ID)
		s.Equal("d1", form.Documents[0].ID)
		s.Len(form.ConditionGroups, 2)
	})

	s.Run("unknown service is not found", func() {
		_, err := s.service.GetForm(s.ctx, "nope")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("store failures are internal errors", func() {
		svc := New(failingStore{InMemory: s.store, err: errors.New("disk on fire")})
		_, err := svc.GetForm(s.ctx, "permit")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("slow stores time out", func() {
		svc := New(blockingStore{InMemory: s.store})
		ctx, cancel := context.WithTimeout(s.ctx, 20*time.Millisecond)
		defer cancel()
		_, err := svc.GetForm(ctx, "permit")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})
}

func (s *FormServiceSuite) TestRender() {
	s.Run("conditional fields start hidden", func() {
		rendered, err := s.service.Render(s.ctx, "permit", visibility.Values{})
		s.Require().NoError(err)

		s.Equal([]string{"Registration", "Engineer"}, rendered.Hidden)
		s.Equal([]string{"Type", "Area"}, renderedNames(rendered.Sections[0].Fields))
		s.True(rendered.Sections[0].HasFields)
		s.False(rendered.Sections[1].HasFields)
		s.Empty(rendered.Sections[1].Fields)
	})

	s.Run("choosing a value reveals dependent fields", func() {
		rendered, err := s.service.Render(s.ctx, "permit", visibility.Values{
			"Type": visibility.String("Company"),
		})
		s.Require().NoError(err)
		s.Empty(rendered.Hidden)
		s.True(rendered.Sections[1].HasFields)
	})

	s.Run("OR groups need any one condition", func() {
		rendered, err := s.service.Render(s.ctx, "permit", visibility.Values{
			"Type": visibility.String("Individual"),
			"Area": visibility.Number(250),
		})
		s.Require().NoError(err)
		s.Equal([]string{"Registration"}, rendered.Hidden)
		s.Equal([]string{"Engineer"}, renderedNames(rendered.Sections[1].Fields))
		s.Equal("Area", rendered.Sections[0].Fields[1].APIName)
		s.Equal("250", rendered.Sections[0].Fields[1].Value.Text())
	})

	s.Run("picklist options are rendered", func() {
		rendered, err := s.service.Render(s.ctx, "permit", nil)
		s.Require().NoError(err)
		s.Equal([]string{"Individual", "Company"}, rendered.Sections[0].Fields[0].Options)
	})

	s.Run("each pass is recorded", func() {
		before := promtest.ToFloat64(s.metrics.FormsRendered)
		_, err := s.service.Render(s.ctx, "permit", nil)
		s.Require().NoError(err)
		s.Equal(before+1, promtest.ToFloat64(s.metrics.FormsRendered))
	})
}

func (s *FormServiceSuite) TestRenderIsIdempotent() {
	form, err := s.service.GetForm(s.ctx, "permit")
	s.Require().NoError(err)
	values := visibility.Values{"Area": visibility.Number(300)}

	first := RenderForm(form, values)
	second := RenderForm(form, values)
	s.Equal(first, second)
}

func (s *FormServiceSuite) TestNormalizeFieldValue() {
	s.Run("uses the field type", func() {
		v, err := s.service.NormalizeFieldValue(s.ctx, "permit", "Area", "42")
		s.Require().NoError(err)
		s.Equal(visibility.Number(42), v)
	})

	s.Run("unknown field is a validation error", func() {
		_, err := s.service.NormalizeFieldValue(s.ctx, "permit", "Missing", "x")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func apiNames(fields []models.FormField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.APIName
	}
	return out
}

func renderedNames(fields []models.RenderedField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.APIName
	}
	return out
}

type failingStore struct {
	*catalog.InMemory
	err error
}

func (f failingStore) Sections(context.Context, id.ServiceID) ([]models.Section, error) {
	return nil, f.err
}

type blockingStore struct {
	*catalog.InMemory
}

func (b blockingStore) Documents(ctx context.Context, _ id.ServiceID) ([]models.DocumentRequirement, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
