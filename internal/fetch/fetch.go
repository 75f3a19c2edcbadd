// Package fetch downloads calendar files by URL for import, with HTTP
// caching (ETag / Last-Modified) backed by a disk cache.
package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"contentcal/internal/codec"
	appLog "contentcal/internal/log"
	"contentcal/internal/metrics"
)

const DefaultMaxBytes int64 = 10 << 20

var (
	ErrEmptyURL   = errors.New("calendar URL is empty")
	ErrInvalidURL = errors.New("invalid calendar URL")
	ErrTooLarge   = errors.New("remote file is too large")
)

// Result is the outcome of one fetch.
type Result struct {
	URL       string
	Body      []byte
	Format    codec.Format
	FromCache bool // true when the cached body was reused (304 or upstream failure)
}

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Fetcher struct {
	client   *http.Client
	cacheDir string
	maxBytes int64
	metrics  *metrics.Metrics
}

// New creates a Fetcher caching under cacheDir. maxBytes <= 0 uses
// DefaultMaxBytes.
func New(cacheDir string, maxBytes int64, m *metrics.Metrics) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/fetch-cache"
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
		maxBytes: maxBytes,
		metrics:  m,
	}
}

// WithClient replaces the HTTP client; used by tests.
func (f *Fetcher) WithClient(c *http.Client) *Fetcher {
	f.client = c
	return f
}

// Fetch downloads rawURL, honouring ETag and Last-Modified. Network errors
// and non-OK answers fall back to the cached body when one exists.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Result, error) {
	rawURL = normalizeURL(rawURL)
	if rawURL == "" {
		return Result{}, ErrEmptyURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Result{}, fmt.Errorf("%w %s", ErrInvalidURL, redactURL(rawURL))
	}

	cachePath := f.cachePathForURL(rawURL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return Result{}, err
	}

	meta, _ := f.loadCacheMeta(cachePath)
	cachedBody, _ := f.loadCacheBody(cachePath)

	fromCache := func(reason string, cause error) (Result, error) {
		appLog.Error("calendar fetch failed, using cached body", cause, "url", redactURL(rawURL), "reason", reason)
		f.metrics.Fetch("cached")
		return f.result(u, meta.ContentType, cachedBody, true)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Info("calendar fetch start", "url", redactURL(rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			return fromCache("network", err)
		}
		f.metrics.Fetch("error")
		return Result{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if resp.ContentLength > f.maxBytes {
			f.metrics.Fetch("error")
			return Result{}, fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrTooLarge, resp.ContentLength, f.maxBytes)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
		if err != nil {
			f.metrics.Fetch("error")
			return Result{}, err
		}
		if int64(len(body)) > f.maxBytes {
			f.metrics.Fetch("error")
			return Result{}, fmt.Errorf("%w: exceeds the %d byte limit", ErrTooLarge, f.maxBytes)
		}

		newMeta := cacheEntry{
			URL:          rawURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			ContentType:  resp.Header.Get("Content-Type"),
		}
		if err := f.saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("calendar cache save failed", err, "url", redactURL(rawURL))
		}

		appLog.Info("calendar fetch success", "url", redactURL(rawURL), "status", resp.StatusCode, "bytes", len(body))
		f.metrics.Fetch("fresh")
		return f.result(u, newMeta.ContentType, body, false)

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			f.metrics.Fetch("error")
			return Result{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("calendar fetch not modified; using cache", "url", redactURL(rawURL))
		f.metrics.Fetch("not_modified")
		return f.result(u, meta.ContentType, cachedBody, true)

	default:
		if len(cachedBody) > 0 {
			return fromCache("status", errors.New(resp.Status))
		}
		f.metrics.Fetch("error")
		return Result{}, fmt.Errorf("fetch %s: %s", redactURL(rawURL), resp.Status)
	}
}

func (f *Fetcher) result(u *url.URL, contentType string, body []byte, cached bool) (Result, error) {
	format, err := detectFormat(u, contentType)
	if err != nil {
		return Result{}, err
	}
	return Result{URL: u.String(), Body: body, Format: format, FromCache: cached}, nil
}

// detectFormat prefers the URL path extension, then the Content-Type.
func detectFormat(u *url.URL, contentType string) (codec.Format, error) {
	if ext := path.Ext(u.Path); ext != "" {
		if fm, err := codec.FormatFromFilename(u.Path); err == nil {
			return fm, nil
		}
	}
	mt, _, _ := mime.ParseMediaType(contentType)
	switch mt {
	case "text/calendar":
		return codec.FormatICS, nil
	case "text/csv", "application/csv":
		return codec.FormatCSV, nil
	case "application/json":
		return codec.FormatJSON, nil
	}
	return "", fmt.Errorf("%w: cannot tell the format of %s", codec.ErrUnsupportedFormat, redactURL(u.String()))
}

// normalizeURL trims input and maps webcal:// subscription links to https.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if rest, ok := strings.CutPrefix(raw, "webcal://"); ok {
		return "https://" + rest
	}
	return raw
}

func (f *Fetcher) cachePathForURL(u string) string {
	sum := sha256.Sum256([]byte(u))
	// First 16 hex chars as directory name.
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func (f *Fetcher) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body"))
}

func (f *Fetcher) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only, so private feed tokens in paths or
// query strings never reach the logs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "calendar://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
