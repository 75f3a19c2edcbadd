package contentapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentcal/internal/contentapi"
	"contentcal/internal/model"
)

func TestCreateContentItem(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/content", r.URL.Path)
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c-1","title":"Launch","platform":"blog","status":"draft","scheduledDate":"2026-03-01T10:00:00Z","createdAt":"2026-02-01T00:00:00Z"}`))
	}))
	defer srv.Close()

	c := contentapi.NewClient(srv.URL+"/", contentapi.WithToken("s3cret"))
	item, err := c.CreateContentItem(context.Background(), model.CandidateItem{
		Title:         "Launch",
		Platform:      model.PlatformBlog,
		Status:        model.StatusDraft,
		ScheduledDate: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, "c-1", item.ID)
	assert.Equal(t, model.PlatformBlog, item.Platform)
	assert.True(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC).Equal(item.CreatedAt))

	assert.Equal(t, "Launch", got["title"])
	assert.Nil(t, got["description"])
	assert.Contains(t, got, "description")
	assert.Equal(t, "blog", got["platform"])
	assert.Equal(t, "draft", got["status"])
	assert.Equal(t, "2026-03-01T10:00:00Z", got["scheduledDate"])
}

func TestCreateContentItemErrorFormatting(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"json error", http.StatusBadRequest, `{"error":"title is required"}`, "400: title is required"},
		{"plain text", http.StatusInternalServerError, "database is down\n", "500: database is down"},
		{"empty body", http.StatusServiceUnavailable, "", "503: Service Unavailable"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := contentapi.NewClient(srv.URL).CreateContentItem(context.Background(), model.CandidateItem{Title: "x"})
			require.Error(t, err)
			assert.Equal(t, tc.want, err.Error())

			var apiErr *contentapi.APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tc.status, apiErr.StatusCode)
		})
	}
}

func TestCreateContentItemSingleAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := contentapi.NewClient(srv.URL).CreateContentItem(context.Background(), model.CandidateItem{Title: "x"})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestListContentItemsShapes(t *testing.T) {
	for name, body := range map[string]string{
		"array":   `[{"id":"1","title":"a"},{"id":"2","title":"b"}]`,
		"wrapper": `{"contentItems":[{"id":"1","title":"a"},{"id":"2","title":"b"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			items, err := contentapi.NewClient(srv.URL).ListContentItems(context.Background())
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, "b", items[1].Title)
		})
	}
}

func TestJWTServiceToken(t *testing.T) {
	secret := "signing-key"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return []byte(secret), nil })
		assert.NoError(t, err)
		assert.Equal(t, "importer", claims.Subject)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	items, err := contentapi.NewClient(srv.URL, contentapi.WithJWTSecret(secret, "importer")).ListContentItems(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestUnreachableBackend(t *testing.T) {
	c := contentapi.NewClient("http://127.0.0.1:1", contentapi.WithHTTPClient(&http.Client{Timeout: time.Second}))
	_, err := c.ListContentItems(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content API unreachable")
}
