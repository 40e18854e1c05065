package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intake/internal/platform/config"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		Server:  config.Server{Addr: ":0", Environment: "test", PDFBaseURL: "https://intake.example.org"},
		Catalog: config.Catalog{Path: "../../configs/catalog.yaml"},
		Drafts:  config.DraftConfig{TTL: time.Hour},
	}
	a, err := newApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), prometheus.NewRegistry())
	require.NoError(t, err)

	srv := httptest.NewServer(a.handler)
	t.Cleanup(func() {
		srv.Close()
		assert.NoError(t, a.Close(context.Background()))
	})
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type timeline struct {
	Steps []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		State string `json:"state"`
	} `json:"steps"`
	CurrentStepID string `json:"current_step_id"`
}

func TestAppServesRequestLifecycleInMemory(t *testing.T) {
	srv := newTestServer(t)

	var health struct {
		Status string `json:"status"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/health", nil, &health))
	assert.Equal(t, "ok", health.Status)

	var created struct {
		ID       string `json:"id"`
		StatusID string `json:"status_id"`
	}
	status := doJSON(t, http.MethodPost, srv.URL+"/requests", map[string]any{
		"service_id": "building-permit",
		"name":       "Garden extension",
	}, &created)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "new", created.StatusID)

	var tl timeline
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/requests/"+created.ID+"/approvals", nil, &tl))
	require.Len(t, tl.Steps, 3)
	assert.Equal(t, "Intake review", tl.Steps[0].Name)
	assert.Equal(t, "current", tl.Steps[0].State)
	assert.Equal(t, tl.Steps[0].ID, tl.CurrentStepID)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, srv.URL+"/approvals/"+tl.CurrentStepID+"/complete", nil, nil))

	var after timeline
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/requests/"+created.ID+"/approvals", nil, &after))
	assert.Equal(t, "complete", after.Steps[0].State)
	assert.Equal(t, after.Steps[1].ID, after.CurrentStepID)

	var attached struct {
		DownloadURL string `json:"download_url"`
	}
	status = doJSON(t, http.MethodPost, srv.URL+"/requests/"+created.ID+"/documents", map[string]any{
		"requirement_id": "d-plans",
		"file_name":      "plans.PDF",
		"content_ref":    "069000000000001",
	}, &attached)
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, strings.HasSuffix(attached.DownloadURL, "069000000000001"))

	var checklist struct {
		Requirements []struct {
			ID        string `json:"id"`
			Satisfied bool   `json:"satisfied"`
		} `json:"requirements"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/requests/"+created.ID+"/documents", nil, &checklist))
	require.Len(t, checklist.Requirements, 2)
	assert.Equal(t, "d-plans", checklist.Requirements[0].ID)
	assert.True(t, checklist.Requirements[0].Satisfied)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "intake_approval_steps_seeded_total 3")
}

func TestNewAppFailsOnMissingCatalog(t *testing.T) {
	cfg := config.Config{Catalog: config.Catalog{Path: "does-not-exist.yaml"}}
	_, err := newApp(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), prometheus.NewRegistry())
	require.Error(t, err)
}
