package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/form/models"
	"intake/internal/form/service"
	"intake/internal/form/store/catalog"
	"intake/pkg/testutil"
)

const handlerCatalog = `
services:
  - id: permit
    name: Permit
    sla_days: 3
    active: true
    sections:
      - id: main
        name: Main
        fields:
          - { id: f1, api_name: Type, type: Picklist, picklist_values: "A,B" }
          - { id: f2, api_name: Detail, condition_group_id: is-b }
    condition_groups:
      - id: is-b
        conditions:
          - { field: Type, operator: "=", value: B }
  - id: hidden
    name: Hidden
    active: false
`

func newFormRouter(t *testing.T) http.Handler {
	t.Helper()
	c, _, err := catalog.Parse(strings.NewReader(handlerCatalog))
	require.NoError(t, err)
	svc := service.New(catalog.NewInMemory(c))
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return r
}

func TestListServices(t *testing.T) {
	router := newFormRouter(t)
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/services"))
	testutil.AssertStatusOK(t, rr)

	resp := testutil.UnmarshalResponse[ListServicesResponse](t, rr)
	require.Len(t, resp.Services, 1)
	assert.Equal(t, "Permit (SLA: 3 days)", resp.Services[0].Label)
}

func TestGetForm(t *testing.T) {
	router := newFormRouter(t)

	t.Run("known service", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/services/permit/form"))
		testutil.AssertStatusOK(t, rr)
		form := testutil.UnmarshalResponse[models.Form](t, rr)
		assert.Equal(t, "Permit", form.ServiceName)
		assert.Len(t, form.ConditionGroups, 1)
	})

	t.Run("unknown service", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/services/nope/form"))
		testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
	})

	t.Run("malformed service id", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/services/-bad/form"))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}

func TestRender(t *testing.T) {
	router := newFormRouter(t)

	t.Run("hides fields whose group fails", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/services/permit/form/render",
			map[string]any{"values": map[string]any{"Type": "A"}})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)

		resp := testutil.UnmarshalResponse[models.RenderedForm](t, rr)
		assert.Equal(t, []string{"Detail"}, resp.Hidden)
		require.Len(t, resp.Sections, 1)
		require.Len(t, resp.Sections[0].Fields, 1)
		assert.Equal(t, "A", resp.Sections[0].Fields[0].Value.Text())
	})

	t.Run("shows fields whose group passes", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/services/permit/form/render",
			map[string]any{"values": map[string]any{"Type": "B", "Detail": nil}})
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusOK(t, rr)

		resp := testutil.UnmarshalResponse[models.RenderedForm](t, rr)
		assert.Empty(t, resp.Hidden)
		assert.Len(t, resp.Sections[0].Fields, 2)
	})

	t.Run("invalid json", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/services/permit/form/render", "{")
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})

	t.Run("object values are rejected", func(t *testing.T) {
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/services/permit/form/render",
			`{"values":{"Type":{"nested":true}}}`)
		rr := testutil.DoRequest(router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})
}
