package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"contentcal/internal/assistant"
	"contentcal/internal/backup"
	"contentcal/internal/config"
	"contentcal/internal/exporter"
	"contentcal/internal/fetch"
	"contentcal/internal/importer"
	appLog "contentcal/internal/log"
	"contentcal/internal/settings"
)

// maxJSONBody caps request bodies of the small JSON endpoints.
const maxJSONBody = 1 << 20

// Deps are the collaborators behind the HTTP API. Fetcher, Backup and
// Gatherer are optional; their routes answer 404 when unset.
type Deps struct {
	Importer  *importer.Importer
	Exporter  *exporter.Exporter
	Content   ContentBackend
	Fetcher   *fetch.Fetcher
	Settings  *settings.Service
	Assistant *assistant.Engine
	Backup    *backup.Job
	Gatherer  prometheus.Gatherer
	Now       func() time.Time
}

// ContentBackend creates and lists content items.
type ContentBackend interface {
	importer.Creator
	exporter.Lister
}

// Server provides the import/export, settings and assistant HTTP API.
type Server struct {
	cfg  *config.Config
	deps Deps
	mux  *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Assistant == nil {
		deps.Assistant = assistant.New(nil, "")
	}
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mux:  http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth rather than lock everyone out.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="ContentCal", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	if s.deps.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	s.mux.HandleFunc("POST /api/import", s.handleImport)
	s.mux.HandleFunc("POST /api/import/url", s.handleImportURL)
	s.mux.HandleFunc("GET /api/export", s.handleExport)
	s.mux.HandleFunc("POST /api/backup", s.handleBackup)

	s.mux.HandleFunc("GET /api/settings/profile", s.handleGetProfile)
	s.mux.HandleFunc("PUT /api/settings/profile", s.handlePutProfile)
	s.mux.HandleFunc("GET /api/settings/notifications", s.handleGetNotifications)
	s.mux.HandleFunc("PUT /api/settings/notifications", s.handlePutNotifications)
	s.mux.HandleFunc("GET /api/settings/subscription", s.handleGetSubscription)
	s.mux.HandleFunc("PUT /api/settings/subscription", s.handlePutSubscription)
	s.mux.HandleFunc("DELETE /api/settings/subscription", s.handleDeleteSubscription)
	s.mux.HandleFunc("POST /api/settings/subscription/cancel", s.handleCancelSubscription)
	s.mux.HandleFunc("DELETE /api/settings", s.handleResetSettings)
	s.mux.HandleFunc("GET /api/subscription/access", s.handleAccess)

	s.mux.HandleFunc("POST /api/assistant/chat", s.handleChat)
	s.mux.HandleFunc("GET /api/assistant/suggestions", s.handleSuggestions)
	s.mux.HandleFunc("POST /api/assistant/suggestions/{id}/use", s.handleUseSuggestion)
	s.mux.HandleFunc("GET /api/assistant/times", s.handleTimes)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// decodeJSON reads a small JSON body into dst, answering 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
