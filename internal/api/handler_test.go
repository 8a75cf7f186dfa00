package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"coldreach/internal/db"
	"coldreach/internal/models"
)

type fakeStore struct {
	state      models.CampaignState
	leads      []*models.Lead
	activity   []*models.ActivityLogEntry
	templates  map[models.Stage]*models.Template
	lastFilter db.LeadFilter
}

func (f *fakeStore) CampaignState(context.Context) (*models.CampaignState, error) {
	state := f.state
	return &state, nil
}

func (f *fakeStore) SetRunStatus(_ context.Context, status models.RunStatus) error {
	f.state.RunStatus = status
	return nil
}

func (f *fakeStore) ListLeads(_ context.Context, filter db.LeadFilter) ([]*models.Lead, error) {
	f.lastFilter = filter
	return f.leads, nil
}

func (f *fakeStore) InsertLeads(_ context.Context, leads []*models.Lead) (int, int, error) {
	inserted := 0
	for _, lead := range leads {
		dup := false
		for _, existing := range f.leads {
			if existing.Email == lead.Email {
				dup = true
				break
			}
		}
		if !dup {
			f.leads = append(f.leads, lead)
			inserted++
		}
	}
	return inserted, len(leads) - inserted, nil
}

func (f *fakeStore) RequeueLead(_ context.Context, id int64) error {
	for _, lead := range f.leads {
		if lead.ID == id && lead.Status == models.StatusFailed {
			lead.Status = models.StatusPending
			lead.FollowupCount = 0
			lead.LastSentAt = nil
			return nil
		}
	}
	return fmt.Errorf("lead %d not found or not FAILED", id)
}

func (f *fakeStore) DeleteLead(_ context.Context, id int64) error {
	for i, lead := range f.leads {
		if lead.ID == id {
			f.leads = append(f.leads[:i], f.leads[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("lead %d not found", id)
}

func (f *fakeStore) ListActivity(context.Context, int) ([]*models.ActivityLogEntry, error) {
	return f.activity, nil
}

func (f *fakeStore) ListTemplates(context.Context) ([]*models.Template, error) {
	var out []*models.Template
	for _, t := range f.templates {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeStore) SaveTemplate(_ context.Context, t *models.Template) error {
	if f.templates == nil {
		f.templates = map[models.Stage]*models.Template{}
	}
	f.templates[t.Stage] = t
	return nil
}

func newTestHandler(store *fakeStore) http.Handler {
	h := &Handler{Store: store, Log: zap.NewNop()}
	return h.Router()
}

func TestCampaignStatus(t *testing.T) {
	store := &fakeStore{state: models.CampaignState{
		RunStatus:  models.RunRunning,
		SentToday:  3,
		DailyLimit: 500,
	}}
	router := newTestHandler(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/campaign/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var state models.CampaignState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, models.RunRunning, state.RunStatus)
	assert.Equal(t, 3, state.SentToday)
}

func TestRunStatusControls(t *testing.T) {
	tests := []struct {
		path string
		want models.RunStatus
	}{
		{"/api/campaign/start", models.RunRunning},
		{"/api/campaign/pause", models.RunPaused},
		{"/api/campaign/stop", models.RunStopped},
	}

	for _, tt := range tests {
		store := &fakeStore{}
		router := newTestHandler(store)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.path, nil))

		require.Equal(t, http.StatusOK, rec.Code, tt.path)
		assert.Equal(t, tt.want, store.state.RunStatus)
	}
}

func TestListLeadsPassesFilter(t *testing.T) {
	store := &fakeStore{}
	router := newTestHandler(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/leads?status=REPLIED&sort=last_sent_at&limit=25", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, db.LeadFilter{
		Status: models.StatusReplied,
		SortBy: "last_sent_at",
		Limit:  25,
	}, store.lastFilter)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestUploadLeads(t *testing.T) {
	store := &fakeStore{leads: []*models.Lead{{ID: 1, Email: "dup@x.com"}}}
	router := newTestHandler(store)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "leads.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Email,first_name\nnew@x.com,Ada\ndup@x.com,Bob\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/leads/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var result map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result["inserted"])
	assert.Equal(t, 1, result["skipped"])
}

func TestUploadLeadsRejectsBadCSV(t *testing.T) {
	store := &fakeStore{}
	router := newTestHandler(store)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "leads.csv")
	fw.Write([]byte("name,company\nAda,Initech\n"))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/leads/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequeueLead(t *testing.T) {
	store := &fakeStore{leads: []*models.Lead{
		{ID: 7, Email: "failed@x.com", Status: models.StatusFailed, FollowupCount: 1},
	}}
	router := newTestHandler(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/leads/7", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.StatusPending, store.leads[0].Status)
	assert.Equal(t, 0, store.leads[0].FollowupCount)

	// Only FAILED leads can be re-enqueued.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/leads/7", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteLead(t *testing.T) {
	store := &fakeStore{leads: []*models.Lead{{ID: 3, Email: "x@y.com"}}}
	router := newTestHandler(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/leads/3", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, store.leads)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/leads/3", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveTemplateValidatesStage(t *testing.T) {
	store := &fakeStore{}
	router := newTestHandler(store)

	body := `{"stage":"followup1","subject":"Hi {{first_name}}","body":"..."}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/templates", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, store.templates, models.StageFollowup1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/templates",
		strings.NewReader(`{"stage":"nonsense","subject":"x","body":"y"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	router := newTestHandler(&fakeStore{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
