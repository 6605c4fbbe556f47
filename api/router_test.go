package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/vidgrab/internal/app"
	"github.com/yourusername/vidgrab/internal/domain"
	"github.com/yourusername/vidgrab/internal/messages"
	"go.uber.org/zap"
)

type fakeJobs struct {
	calls       []string
	captions    []string
	submitted   []string
	validateErr error
	submitErr   error
	jobs      map[string]*domain.JobRecord
	filters   map[string]interface{}
	limit     int
	listErr   error
}

func (f *fakeJobs) Validate(locatorKey string, target domain.NotificationTarget) error {
	return f.validateErr
}

func (f *fakeJobs) SendQueuedAck(target domain.NotificationTarget) {
	f.calls = append(f.calls, "ack")
}

func (f *fakeJobs) EditCaption(target domain.NotificationTarget, text string) {
	f.calls = append(f.calls, "edit")
	f.captions = append(f.captions, text)
}

func (f *fakeJobs) Submit(locatorKey string, target domain.NotificationTarget) (domain.Task, error) {
	f.calls = append(f.calls, "submit")
	if f.submitErr != nil {
		return domain.Task{}, f.submitErr
	}
	f.submitted = append(f.submitted, locatorKey)
	return domain.NewTask(locatorKey, target), nil
}

func (f *fakeJobs) GetJob(id string) (*domain.JobRecord, error) {
	return f.jobs[id], nil
}

func (f *fakeJobs) ListJobs(filters map[string]interface{}, limit int) ([]*domain.JobRecord, error) {
	f.filters, f.limit = filters, limit
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*domain.JobRecord
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (f *fakeJobs) GetStats(ctx context.Context) (*app.QueueStatus, error) {
	return &app.QueueStatus{QueueDepth: 3, Workers: 1}, nil
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(ctx context.Context) error { return p.err }

func newTestRouter(jobs *fakeJobs, pinger fakePinger) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "vidgrab_test_total"}))
	return SetupRouter(jobs, jobs, messages.NewCatalog("en"), pinger, reg, zap.NewNop(), nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(&fakeJobs{}, fakePinger{})

	w := do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestRouter_Ready(t *testing.T) {
	w := do(t, newTestRouter(&fakeJobs{}, fakePinger{}), http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, newTestRouter(&fakeJobs{}, fakePinger{err: errors.New("connection refused")}), http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestRouter_Metrics(t *testing.T) {
	w := do(t, newTestRouter(&fakeJobs{}, fakePinger{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "vidgrab_test_total")
}

func TestRouter_SubmitJob(t *testing.T) {
	jobs := &fakeJobs{}
	h := newTestRouter(jobs, fakePinger{})

	w := do(t, h, http.MethodPost, "/api/v1/jobs", `{"locator_key":"abc","chat_id":42,"message_id":7}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var task domain.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	assert.Equal(t, "abc", task.LocatorKey)
	assert.Equal(t, domain.NotificationTarget{ChatID: 42, MessageID: 7}, task.Target)
	assert.Equal(t, []string{"abc"}, jobs.submitted)
	assert.Equal(t, []string{"ack", "submit"}, jobs.calls)
}

func TestRouter_SubmitJobWithoutMessageSkipsAck(t *testing.T) {
	jobs := &fakeJobs{}
	h := newTestRouter(jobs, fakePinger{})

	w := do(t, h, http.MethodPost, "/api/v1/jobs", `{"locator_key":"abc","chat_id":42}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"submit"}, jobs.calls)
}

func TestRouter_SubmitJobInvalidIsNotAcked(t *testing.T) {
	jobs := &fakeJobs{validateErr: domain.ErrInvalidKey}
	h := newTestRouter(jobs, fakePinger{})

	w := do(t, h, http.MethodPost, "/api/v1/jobs", `{"locator_key":"a/b","chat_id":42,"message_id":7}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, jobs.calls)
}

func TestRouter_SubmitJobErrors(t *testing.T) {
	w := do(t, newTestRouter(&fakeJobs{}, fakePinger{}), http.MethodPost, "/api/v1/jobs", `{"chat_id":42}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	closed := &fakeJobs{submitErr: domain.ErrQueueClosed}
	w = do(t, newTestRouter(closed, fakePinger{}), http.MethodPost, "/api/v1/jobs", `{"locator_key":"abc","chat_id":42,"message_id":7}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, []string{"ack", "submit", "edit"}, closed.calls)
	assert.Equal(t, []string{"The download queue is unavailable.\nPlease try again later"}, closed.captions)
}

func TestRouter_GetJob(t *testing.T) {
	job := domain.NewJobRecord(domain.NewTask("abc", domain.NotificationTarget{ChatID: 1}))
	h := newTestRouter(&fakeJobs{jobs: map[string]*domain.JobRecord{job.ID: job}}, fakePinger{})

	w := do(t, h, http.MethodGet, "/api/v1/jobs/"+job.ID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), job.ID)

	w = do(t, h, http.MethodGet, "/api/v1/jobs/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_ListJobsFilters(t *testing.T) {
	jobs := &fakeJobs{}
	h := newTestRouter(jobs, fakePinger{})

	w := do(t, h, http.MethodGet, "/api/v1/jobs?status=failed&chat_id=42&limit=1000", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "failed", jobs.filters["status"])
	assert.Equal(t, int64(42), jobs.filters["chat_id"])
	assert.Equal(t, 500, jobs.limit)

	w = do(t, h, http.MethodGet, "/api/v1/jobs?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, http.MethodGet, "/api/v1/jobs?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_ListJobsJournalDisabled(t *testing.T) {
	h := newTestRouter(&fakeJobs{listErr: app.ErrJournalDisabled}, fakePinger{})

	w := do(t, h, http.MethodGet, "/api/v1/jobs", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_Stats(t *testing.T) {
	w := do(t, newTestRouter(&fakeJobs{}, fakePinger{}), http.MethodGet, "/api/v1/jobs/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"queue_depth":3`)
}

func TestRouter_UnknownRoute(t *testing.T) {
	w := do(t, newTestRouter(&fakeJobs{}, fakePinger{}), http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
