package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentcal/internal/assistant"
	"contentcal/internal/backup"
	"contentcal/internal/codec"
	"contentcal/internal/config"
	"contentcal/internal/exporter"
	"contentcal/internal/fetch"
	"contentcal/internal/importer"
	"contentcal/internal/metrics"
	"contentcal/internal/model"
	"contentcal/internal/settings"
	"contentcal/internal/web"
)

var now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

// memoryBackend is an in-memory content store.
type memoryBackend struct {
	mu      sync.Mutex
	items   []model.ContentItem
	listErr error
	failOn  string
}

func (b *memoryBackend) CreateContentItem(_ context.Context, c model.CandidateItem) (model.ContentItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failOn != "" && c.Title == b.failOn {
		return model.ContentItem{}, errors.New("500: backend exploded")
	}
	it := model.ContentItem{
		ID:            fmt.Sprintf("c%d", len(b.items)+1),
		Title:         c.Title,
		Description:   c.Description,
		Platform:      c.Platform,
		Status:        c.Status,
		ScheduledDate: c.ScheduledDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.items = append(b.items, it)
	return it, nil
}

func (b *memoryBackend) ListContentItems(context.Context) ([]model.ContentItem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, b.listErr
	}
	return append([]model.ContentItem(nil), b.items...), nil
}

type harness struct {
	t       *testing.T
	backend *memoryBackend
	cfg     *config.Config
	handler http.Handler
}

type option func(*config.Config, *web.Deps)

func newHarness(t *testing.T, opts ...option) *harness {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	codecOpts := codec.Options{Now: func() time.Time { return now }, Location: time.UTC}

	backend := &memoryBackend{}
	store, err := settings.NewFileStore(filepath.Join(dir, "settings.yaml"))
	require.NoError(t, err)

	exp := exporter.New(exporter.Config{Codec: codecOpts}, m)
	deps := web.Deps{
		Importer:  importer.New(backend, importer.Config{Pace: -1, Codec: codecOpts}, m),
		Exporter:  exp,
		Content:   backend,
		Fetcher:   fetch.New(filepath.Join(dir, "fetch"), 0, m),
		Settings:  settings.NewService(store).WithClock(func() time.Time { return now }),
		Assistant: assistant.New(nil, ""),
		Gatherer:  reg,
		Now:       func() time.Time { return now },
	}
	for _, o := range opts {
		o(cfg, &deps)
	}

	return &harness{
		t:       t,
		backend: backend,
		cfg:     cfg,
		handler: web.NewServer(cfg, deps).Handler(),
	}
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) json(method, target string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(h.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return h.do(req)
}

func (h *harness) upload(filename, content string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(h.t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(h.t, err)
	}
	require.NoError(h.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return h.do(req)
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	return e.Error
}

const sampleCSV = "Title,Description,Platform,Status,Scheduled Date\n" +
	"Launch,Big day,blog,scheduled,2026-06-10T09:00:00Z\n" +
	"Newsletter,,email,draft,\n" +
	"Teaser,Short clip,social,posted,2026-06-02\n"

func TestHealthBypassesBasicAuth(t *testing.T) {
	h := newHarness(t, func(c *config.Config, _ *web.Deps) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "pw"}
	})

	rec := h.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/assistant/times", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/api/assistant/times", nil)
	req.SetBasicAuth("admin", "pw")
	assert.Equal(t, http.StatusOK, h.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/assistant/times", nil)
	req.SetBasicAuth("admin", "wrong")
	assert.Equal(t, http.StatusUnauthorized, h.do(req).Code)
}

func TestImportCSV(t *testing.T) {
	h := newHarness(t)

	rec := h.upload("calendar.csv", sampleCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res importer.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.SuccessCount)
	assert.Empty(t, res.Errors)
	assert.Equal(t, codec.FormatCSV, res.Format)

	require.Len(t, h.backend.items, 3)
	assert.Equal(t, model.PlatformBlog, h.backend.items[0].Platform)
	assert.Equal(t, time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC), h.backend.items[0].ScheduledDate.UTC())
	assert.Equal(t, model.StatusDraft, h.backend.items[1].Status)
}

func TestImportReportsItemFailures(t *testing.T) {
	h := newHarness(t)
	h.backend.failOn = "Newsletter"

	rec := h.upload("calendar.csv", sampleCSV)
	require.Equal(t, http.StatusOK, rec.Code)

	var res importer.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 2, res.SuccessCount)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], `"Newsletter"`)
	require.Len(t, res.Imported, 2)
	assert.Equal(t, "Teaser", res.Imported[1].Title)
}

func TestImportRejections(t *testing.T) {
	h := newHarness(t, func(_ *config.Config, d *web.Deps) {
		d.Importer = importer.New(d.Content, importer.Config{MaxFileBytes: 256, Pace: -1}, nil)
	})

	rec := h.upload("", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no file selected", errorBody(t, rec))

	rec = h.upload("notes.txt", "hello")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, errorBody(t, rec), "unsupported")

	rec = h.upload("backup.json", "[]")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no valid items found", errorBody(t, rec))

	rec = h.upload("backup.json", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.upload("big.csv", "Title\n"+strings.Repeat("x", 1024))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	assert.Empty(t, h.backend.items)
}

func TestImportURL(t *testing.T) {
	ics := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"BEGIN:VEVENT",
		"SUMMARY:Webinar",
		"DTSTART:20260615T170000Z",
		"CATEGORIES:EMAIL",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n")
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = io.WriteString(w, ics)
	}))
	defer upstream.Close()

	h := newHarness(t)
	rec := h.json(http.MethodPost, "/api/import/url", map[string]string{"url": upstream.URL + "/feed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, h.backend.items, 1)
	assert.Equal(t, "Webinar", h.backend.items[0].Title)
	assert.Equal(t, model.PlatformEmail, h.backend.items[0].Platform)
	assert.Equal(t, model.StatusScheduled, h.backend.items[0].Status)

	rec = h.json(http.MethodPost, "/api/import/url", map[string]string{"url": "ftp://example.com/a.ics"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.json(http.MethodPost, "/api/import/url", map[string]string{"url": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportURLUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer upstream.Close()

	h := newHarness(t)
	rec := h.json(http.MethodPost, "/api/import/url", map[string]string{"url": upstream.URL + "/cal.ics"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestExport(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.upload("calendar.csv", sampleCSV).Code)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/export?format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=contentpro-calendar-2026-06-01.csv`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Title,Description,Platform,Status,Scheduled Date,Created Date"))

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/export?format=ics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")
	assert.Equal(t, 3, strings.Count(rec.Body.String(), "BEGIN:VEVENT"))

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/export?format=json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "contentpro-backup-2026-06-01.json")
}

func TestExportErrors(t *testing.T) {
	h := newHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/export?format=csv", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "no content items to export", errorBody(t, rec))

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/export?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.backend.listErr = errors.New("503: maintenance")
	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/export?format=csv", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestProfileAndNotifications(t *testing.T) {
	h := newHarness(t)

	rec := h.json(http.MethodGet, "/api/settings/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var p settings.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, settings.DefaultProfile(), p)

	rec = h.json(http.MethodPut, "/api/settings/profile", settings.Profile{Name: "Ada", Email: "ada@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "Ada", p.Name)

	rec = h.json(http.MethodPut, "/api/settings/profile", settings.Profile{Name: " "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.json(http.MethodPut, "/api/settings/notifications", settings.Notifications{Push: true})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.json(http.MethodGet, "/api/settings/notifications", nil)
	var n settings.Notifications
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &n))
	assert.Equal(t, settings.Notifications{Push: true}, n)

	req := httptest.NewRequest(http.MethodPut, "/api/settings/profile", strings.NewReader("{"))
	assert.Equal(t, http.StatusBadRequest, h.do(req).Code)

	assert.Equal(t, http.StatusNoContent, h.json(http.MethodDelete, "/api/settings", nil).Code)
	rec = h.json(http.MethodGet, "/api/settings/profile", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, settings.DefaultProfile(), p)
}

func TestSubscriptionLifecycle(t *testing.T) {
	h := newHarness(t)

	state := func() settings.SubscriptionState {
		rec := h.json(http.MethodGet, "/api/settings/subscription", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var st settings.SubscriptionState
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
		return st
	}
	access := func(feature string) bool {
		rec := h.json(http.MethodGet, "/api/subscription/access?feature="+feature, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var a struct {
			Access bool `json:"access"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
		return a.Access
	}

	assert.Equal(t, "none", state().Status)
	assert.False(t, access("analytics"))
	assert.True(t, access("basic-calendar"))

	rec := h.json(http.MethodPost, "/api/settings/subscription/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.json(http.MethodPut, "/api/settings/subscription", settings.Subscription{ID: "sub_1", Status: "active", PlanID: "pro"})
	require.Equal(t, http.StatusOK, rec.Code)
	st := state()
	assert.True(t, st.Premium)
	assert.Equal(t, "active", st.Status)
	assert.True(t, access("analytics"))

	rec = h.json(http.MethodPost, "/api/settings/subscription/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st = state()
	assert.Equal(t, "cancelled-active", st.Status)
	assert.True(t, st.Premium)
	require.NotNil(t, st.DaysUntilExpiration)
	assert.Equal(t, 30, *st.DaysUntilExpiration)

	assert.Equal(t, http.StatusNoContent, h.json(http.MethodDelete, "/api/settings/subscription", nil).Code)
	assert.Equal(t, "none", state().Status)

	rec = h.json(http.MethodPut, "/api/settings/subscription", settings.Subscription{ID: "sub_2"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.json(http.MethodGet, "/api/subscription/access", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAssistant(t *testing.T) {
	h := newHarness(t)

	rec := h.json(http.MethodPost, "/api/assistant/chat", map[string]string{"message": "When should I SCHEDULE posts?"})
	require.Equal(t, http.StatusOK, rec.Code)
	var chat struct {
		Reply assistant.Message `json:"reply"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))
	assert.Equal(t, assistant.SenderAssistant, chat.Reply.Sender)
	assert.Contains(t, chat.Reply.Content, "Best posting times")

	rec = h.json(http.MethodPost, "/api/assistant/chat", map[string]string{"message": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.json(http.MethodGet, "/api/assistant/suggestions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sugs []assistant.Suggestion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sugs))
	assert.Len(t, sugs, 5)

	rec = h.json(http.MethodPost, "/api/assistant/suggestions/1/use", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, h.backend.items, 1)
	assert.Equal(t, sugs[1].Title, h.backend.items[0].Title)
	assert.Equal(t, model.StatusDraft, h.backend.items[0].Status)
	assert.Equal(t, now, h.backend.items[0].ScheduledDate)

	assert.Equal(t, http.StatusNotFound, h.json(http.MethodPost, "/api/assistant/suggestions/9/use", nil).Code)
	assert.Equal(t, http.StatusBadRequest, h.json(http.MethodPost, "/api/assistant/suggestions/x/use", nil).Code)

	rec = h.json(http.MethodGet, "/api/assistant/times", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2:00 PM - 4:00 PM")
}

func TestBackupEndpoint(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusNotFound, h.json(http.MethodPost, "/api/backup", nil).Code)

	dir := t.TempDir()
	h = newHarness(t, func(_ *config.Config, d *web.Deps) {
		job, err := backup.New(backup.Config{Dir: dir}, d.Content, d.Exporter, nil)
		require.NoError(t, err)
		d.Backup = job
	})

	rec := h.json(http.MethodPost, "/api/backup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"path":"","skipped":true}`, rec.Body.String())

	require.Equal(t, http.StatusOK, h.upload("calendar.csv", sampleCSV).Code)
	rec = h.json(http.MethodPost, "/api/backup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), filepath.Join(dir, "contentpro-backup-2026-06-01-100000.json"))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.upload("calendar.csv", sampleCSV).Code)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "contentcal_import_batches_total")
}
