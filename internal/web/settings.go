package web

import (
	"errors"
	"net/http"
	"strings"

	appLog "contentcal/internal/log"
	"contentcal/internal/settings"
)

func (s *Server) settingsError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, settings.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, settings.ErrNoSubscription):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		appLog.Error("settings "+op+" failed", err)
		writeError(w, http.StatusInternalServerError, "settings storage unavailable")
	}
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Settings.Profile(r.Context())
	if err != nil {
		s.settingsError(w, "load profile", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var p settings.Profile
	if !decodeJSON(w, r, &p) {
		return
	}
	if err := s.deps.Settings.SaveProfile(r.Context(), p); err != nil {
		s.settingsError(w, "save profile", err)
		return
	}
	s.handleGetProfile(w, r)
}

func (s *Server) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	n, err := s.deps.Settings.Notifications(r.Context())
	if err != nil {
		s.settingsError(w, "load notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handlePutNotifications(w http.ResponseWriter, r *http.Request) {
	var n settings.Notifications
	if !decodeJSON(w, r, &n) {
		return
	}
	if err := s.deps.Settings.SaveNotifications(r.Context(), n); err != nil {
		s.settingsError(w, "save notifications", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// GET /api/settings/subscription returns the derived state, never 404.
func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Settings.State(r.Context())
	if err != nil {
		s.settingsError(w, "load subscription", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handlePutSubscription(w http.ResponseWriter, r *http.Request) {
	var sub settings.Subscription
	if !decodeJSON(w, r, &sub) {
		return
	}
	if err := s.deps.Settings.SaveSubscription(r.Context(), sub); err != nil {
		s.settingsError(w, "save subscription", err)
		return
	}
	s.handleGetSubscription(w, r)
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Settings.CancelSubscription(r.Context()); err != nil {
		s.settingsError(w, "cancel subscription", err)
		return
	}
	s.handleGetSubscription(w, r)
}

func (s *Server) handleDeleteSubscription(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Settings.DeleteSubscription(r.Context()); err != nil {
		s.settingsError(w, "delete subscription", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetSettings(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Settings.Reset(r.Context()); err != nil {
		s.settingsError(w, "reset", err)
		return
	}
	appLog.Info("settings reset")
	w.WriteHeader(http.StatusNoContent)
}

type accessResponse struct {
	Feature string `json:"feature"`
	Access  bool   `json:"access"`
}

// GET /api/subscription/access?feature=analytics
func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	feature := strings.TrimSpace(r.URL.Query().Get("feature"))
	if feature == "" {
		writeError(w, http.StatusBadRequest, "feature is required")
		return
	}
	ok, err := s.deps.Settings.HasAccess(r.Context(), feature)
	if err != nil {
		s.settingsError(w, "check access", err)
		return
	}
	writeJSON(w, http.StatusOK, accessResponse{Feature: feature, Access: ok})
}
