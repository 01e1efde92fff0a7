package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hacknation/dataset-announcer/internal/announcer"
	"github.com/hacknation/dataset-announcer/internal/catalog"
	"github.com/hacknation/dataset-announcer/internal/models"
	"github.com/hacknation/dataset-announcer/internal/session"
)

type fakeCatalog struct {
	datasets   map[string]*models.DatasetSnapshot
	activities int
	err        error
	lastAction catalog.ActionContext
}

func (f *fakeCatalog) Show(ctx context.Context, idOrName string) (*models.DatasetSnapshot, error) {
	f.lastAction = catalog.ActionContextFrom(ctx)
	if f.err != nil {
		return nil, f.err
	}
	dataset, ok := f.datasets[idOrName]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return dataset, nil
}

func (f *fakeCatalog) ActivityList(ctx context.Context, idOrName string) ([]models.ActivityRecord, error) {
	return make([]models.ActivityRecord, f.activities), nil
}

type fixedGenerator struct{}

func (fixedGenerator) GenerateAnnouncement(ctx context.Context, datasetID string, isNew bool) (string, error) {
	if isNew {
		return "fresh " + datasetID, nil
	}
	return "changed " + datasetID, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeCatalog, *session.Registry) {
	t.Helper()
	cat := &fakeCatalog{
		datasets: map[string]*models.DatasetSnapshot{
			"abc": {
				ID:        "abc",
				State:     models.StateDraft,
				Resources: []models.ResourceSnapshot{{State: models.StateActive}},
			},
		},
		activities: 1,
	}
	registry := session.NewRegistry()
	h := NewHandler(announcer.NewCoordinator(cat, fixedGenerator{}), registry)
	server := httptest.NewServer(NewRouter(h))
	t.Cleanup(server.Close)
	return server, cat, registry
}

func do(t *testing.T, method, url string, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, url, nil)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func TestSuitableHandler(t *testing.T) {
	server, cat, _ := newTestServer(t)

	resp, body := do(t, "GET", server.URL+"/api/datasets/abc/suitable", map[string]string{
		UserHeader:      "editor",
		"Authorization": "token-1",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["suitable"])
	assert.Equal(t, catalog.ActionContext{User: "editor", APIToken: "token-1"}, cat.lastAction)

	resp, body = do(t, "GET", server.URL+"/api/datasets/missing/suitable", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["suitable"])
}

func TestSuitableHandlerUpstreamError(t *testing.T) {
	server, cat, _ := newTestServer(t)
	cat.err = errors.New("connection refused")

	resp, body := do(t, "GET", server.URL+"/api/datasets/abc/suitable", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "catalog request failed", body["error"])
}

func TestAnnouncementCycle(t *testing.T) {
	server, _, registry := newTestServer(t)

	resp, _ := do(t, "POST", server.URL+"/api/sessions/s1/datasets/abc/announcement", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, "nothing flagged yet")

	resp, body := do(t, "POST", server.URL+"/api/sessions/s1/datasets/abc/updated", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["flagged"])

	resp, body = do(t, "POST", server.URL+"/api/sessions/s1/datasets/abc/announcement", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "fresh abc", body["text"])
	assert.Equal(t, true, body["is_new"])

	resp, _ = do(t, "POST", server.URL+"/api/sessions/s1/datasets/abc/announcement", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode, "flag is single use")

	resp, _ = do(t, "DELETE", server.URL+"/api/sessions/s1", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, registry.Len())
}

func TestUpdatedHandlerUnsuitable(t *testing.T) {
	server, _, registry := newTestServer(t)

	resp, body := do(t, "POST", server.URL+"/api/sessions/s1/datasets/missing/updated", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["flagged"])
	assert.Equal(t, "", registry.Get("s1").Pop(announcer.ReadyFlagKey, ""))
}

func TestHealthCheckHandler(t *testing.T) {
	server, _, _ := newTestServer(t)

	resp, body := do(t, "GET", server.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}
