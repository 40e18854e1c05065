package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	formmodels "intake/internal/form/models"
	formservice "intake/internal/form/service"
	"intake/internal/form/store/catalog"
	"intake/internal/request/metrics"
	"intake/internal/request/models"
	draftstore "intake/internal/request/store/draft"
	requeststore "intake/internal/request/store/request"
	id "intake/pkg/domain"
	dErrors "intake/pkg/domain-errors"
	"intake/pkg/platform/audit"
	"intake/pkg/requestcontext"
)

const requestCatalog = `
services:
  - id: permit
    name: Building Permit
    active: true
    statuses:
      - { id: review, name: Review, sequence: 2 }
      - { id: new, name: New, sequence: 1 }
    sections:
      - id: main
        name: Main
        fields:
          - { id: f-type, api_name: Type, type: Picklist, picklist_values: "Individual,Company", sequence: 1 }
          - { id: f-area, api_name: Area, type: Number, sequence: 2 }
          - { id: f-reg, api_name: Registration, sequence: 3, condition_group_id: company }
          - { id: f-eng, api_name: Engineer, sequence: 4, condition_group_id: large }
    condition_groups:
      - id: company
        conditions:
          - { field: Type, operator: "=", value: Company }
      - id: large
        logic: OR
        conditions:
          - { field: Area, operator: ">", value: "200" }
          - { field: Type, operator: "=", value: Company }
    approval_steps:
      - { name: Intake review, approver: Desk, sequence: 1 }
      - { name: Sign-off, approver: Chief, sequence: 2 }
  - id: complaint
    name: Noise Complaint
    active: true
`

type recordingPublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *recordingPublisher) Emit(_ context.Context, event audit.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Action)
	}
	return out
}

type recordingSeeder struct {
	seeded map[id.ServiceRequestID][]formmodels.ApprovalStepTemplate
	err    error
}

func (s *recordingSeeder) Seed(_ context.Context, requestID id.ServiceRequestID, steps []formmodels.ApprovalStepTemplate) error {
	if s.err != nil {
		return s.err
	}
	if s.seeded == nil {
		s.seeded = make(map[id.ServiceRequestID][]formmodels.ApprovalStepTemplate)
	}
	s.seeded[requestID] = steps
	return nil
}

type RequestServiceSuite struct {
	suite.Suite
	ctx       context.Context
	requests  *requeststore.InMemory
	drafts    *draftstore.InMemory
	publisher *recordingPublisher
	seeder    *recordingSeeder
	metrics   *metrics.Metrics
	service   *Service
}

func TestRequestServiceSuite(t *testing.T) {
	suite.Run(t, new(RequestServiceSuite))
}

func (s *RequestServiceSuite) SetupTest() {
	c, _, err := catalog.Parse(strings.NewReader(requestCatalog))
	s.Require().NoError(err)

	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC))
	s.requests = requeststore.NewInMemory()
	s.drafts = draftstore.NewInMemory(0)
	s.publisher = &recordingPublisher{}
	s.seeder = &recordingSeeder{}
	s.metrics = metrics.NewWith(prometheus.NewRegistry())

	s.service = New(s.requests, s.drafts, formservice.New(catalog.NewInMemory(c)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(s.publisher),
		WithApprovalSeeder(s.seeder),
		WithMetrics(s.metrics),
	)
}

func (s *RequestServiceSuite) TestCreate() {
	s.Run("defaults the status and name", func() {
		req, err := s.service.Create(s.ctx, CreateCommand{
			ServiceID: "permit",
			Values:    map[string]any{"Type": "Company", "Area": "250 m2"},
		})
		s.Require().NoError(err)

		s.Equal("new", req.StatusID)
		s.Equal(models.DefaultName(req.ID), req.Name)
		s.Equal("Building Permit", req.ServiceName)
		area, ok := req.Values.Get("Area").Float()
		s.True(ok)
		s.Equal(250.0, area)

		stored, err := s.requests.FindByID(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(req.Values, stored.Values)
		s.Len(s.seeder.seeded[req.ID], 2)
		s.Equal(1.0, promtest.ToFloat64(s.metrics.RequestsCreated))
	})

	s.Run("emits an audit event keyed by the request", func() {
		before := len(s.publisher.actions())
		req, err := s.service.Create(s.ctx, CreateCommand{ServiceID: "complaint", Name: "Loud party"})
		s.Require().NoError(err)

		events := s.publisher.events[before:]
		s.Require().Len(events, 1)
		s.Equal(string(audit.EventRequestCreated), events[0].Action)
		s.Equal(audit.CategoryCompliance, events[0].Category)
		s.Equal(req.ID.String(), events[0].Subject)
		s.Equal("complaint", events[0].ServiceID)
		s.Empty(req.StatusID, "services without statuses leave it empty")
		s.NotContains(s.seeder.seeded, req.ID)
	})

	s.Run("rejects unknown fields", func() {
		_, err := s.service.Create(s.ctx, CreateCommand{
			ServiceID: "permit",
			Values:    map[string]any{"Nope": "x"},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects unknown statuses", func() {
		_, err := s.service.Create(s.ctx, CreateCommand{ServiceID: "permit", StatusID: "closed"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown service", func() {
		_, err := s.service.Create(s.ctx, CreateCommand{ServiceID: "gone"})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("approval seeding failure fails the create", func() {
		s.seeder.err = errors.New("db down")
		defer func() { s.seeder.err = nil }()

		_, err := s.service.Create(s.ctx, CreateCommand{ServiceID: "permit"})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *RequestServiceSuite) TestUpdate() {
	req, err := s.service.Create(s.ctx, CreateCommand{
		ServiceID: "permit",
		Name:      "Kitchen",
		Values:    map[string]any{"Type": "Individual", "Area": float64(40)},
	})
	s.Require().NoError(err)

	later := requestcontext.WithTime(s.ctx, time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC))
	updated, err := s.service.Update(later, UpdateCommand{
		ID:       req.ID,
		StatusID: "review",
		Values:   map[string]any{"Type": "Company"},
	})
	s.Require().NoError(err)
	s.Equal("review", updated.StatusID)
	s.Equal("Kitchen", updated.Name)
	s.Equal("Company", updated.Values.Get("Type").Text())
	s.Equal("40", updated.Values.Get("Area").Text())
	s.True(updated.UpdatedAt.After(updated.CreatedAt))
	s.Contains(s.publisher.actions(), string(audit.EventRequestUpdated))

	_, err = s.service.Update(s.ctx, UpdateCommand{ID: id.ServiceRequestID(uuid.New())})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.service.Update(s.ctx, UpdateCommand{ID: req.ID, StatusID: "closed"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *RequestServiceSuite) TestSearch() {
	_, err := s.service.Create(s.ctx, CreateCommand{ServiceID: "permit", Name: "Kitchen extension"})
	s.Require().NoError(err)
	_, err = s.service.Create(s.ctx, CreateCommand{ServiceID: "complaint", Name: "Barking dog"})
	s.Require().NoError(err)

	s.Run("short terms return nothing", func() {
		results, err := s.service.Search(s.ctx, " k ")
		s.Require().NoError(err)
		s.NotNil(results)
		s.Empty(results)
	})

	s.Run("matches request names", func() {
		results, err := s.service.Search(s.ctx, "kitchen")
		s.Require().NoError(err)
		s.Require().Len(results, 1)
		s.Equal("Kitchen extension - Building Permit (2025-03-14)", results[0].Label)
	})

	s.Run("matches service names", func() {
		results, err := s.service.Search(s.ctx, "noise")
		s.Require().NoError(err)
		s.Require().Len(results, 1)
		s.Equal("Barking dog - Noise Complaint (2025-03-14)", results[0].Label)
	})
}

func (s *RequestServiceSuite) TestPDFURL() {
	req, err := s.service.Create(s.ctx, CreateCommand{ServiceID: "complaint"})
	s.Require().NoError(err)

	url, err := s.service.PDFURL(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal("/apex/ServiceRequestPDF?id="+req.ID.String(), url)

	withBase := New(s.requests, s.drafts, nil, WithPDFBaseURL("https://portal.example.org"))
	url, err = withBase.PDFURL(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal("https://portal.example.org/apex/ServiceRequestPDF?id="+req.ID.String(), url)

	_, err = s.service.PDFURL(s.ctx, id.ServiceRequestID(uuid.Nil))
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))

	_, err = s.service.PDFURL(s.ctx, id.ServiceRequestID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *RequestServiceSuite) TestDraftFlow() {
	view, err := s.service.StartDraft(s.ctx, "permit")
	s.Require().NoError(err)
	s.ElementsMatch([]string{"Registration", "Engineer"}, view.Rendered.Hidden)

	s.Run("a change re-evaluates every dependent field", func() {
		view, err := s.service.ApplyFieldChange(s.ctx, view.Draft.ID, "Type", "Company")
		s.Require().NoError(err)
		s.Empty(view.Rendered.Hidden)
		s.Equal("Company", view.Draft.Values.Get("Type").Text())
	})

	s.Run("numeric fields are normalized", func() {
		view, err := s.service.ApplyFieldChange(s.ctx, view.Draft.ID, "Area", "12.5")
		s.Require().NoError(err)
		area, ok := view.Draft.Values.Get("Area").Float()
		s.True(ok)
		s.Equal(12.5, area)
	})

	s.Run("clearing a value hides fields again", func() {
		view, err := s.service.ApplyFieldChange(s.ctx, view.Draft.ID, "Type", nil)
		s.Require().NoError(err)
		s.ElementsMatch([]string{"Registration", "Engineer"}, view.Rendered.Hidden)
	})

	s.Run("unknown field", func() {
		_, err := s.service.ApplyFieldChange(s.ctx, view.Draft.ID, "Nope", "x")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown draft", func() {
		_, err := s.service.ApplyFieldChange(s.ctx, id.DraftID(uuid.New()), "Type", "x")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("get returns the current rendering", func() {
		got, err := s.service.GetDraft(s.ctx, view.Draft.ID)
		s.Require().NoError(err)
		s.Equal(view.Draft.ID, got.Draft.ID)
		s.NotNil(got.Rendered)
	})
}

func (s *RequestServiceSuite) TestSubmitDraft() {
	view, err := s.service.StartDraft(s.ctx, "permit")
	s.Require().NoError(err)
	_, err = s.service.ApplyFieldChange(s.ctx, view.Draft.ID, "Area", float64(300))
	s.Require().NoError(err)

	req, err := s.service.SubmitDraft(s.ctx, view.Draft.ID, "Garage", "")
	s.Require().NoError(err)
	s.Equal("Garage", req.Name)
	s.Equal("new", req.StatusID)
	s.Equal("300", req.Values.Get("Area").Text())
	s.Len(s.seeder.seeded[req.ID], 2)

	_, err = s.service.GetDraft(s.ctx, view.Draft.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound), "submitted drafts are discarded")

	s.Equal([]string{
		string(audit.EventDraftStarted),
		string(audit.EventDraftSubmitted),
	}, s.publisher.actions())
	s.Equal(1.0, promtest.ToFloat64(s.metrics.DraftsSubmitted))

	_, err = s.service.SubmitDraft(s.ctx, view.Draft.ID, "", "")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
