package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// HandleHealth reports liveness
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"name":    s.config.Server.Name,
		"version": s.config.Server.Version,
	})
}

// HandleLogin handles ops user login
func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var hash string
	for _, admin := range s.config.Admins {
		if admin.Username == req.Username {
			hash = admin.PasswordHash
			break
		}
	}
	if hash == "" || !s.auth.VerifyPassword(req.Password, hash) {
		s.respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	accessToken, refreshToken, err := s.auth.GenerateTokenPair(req.Username)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(s.config.JWT.AccessTokenTTL.Seconds()),
		"token_type":    "Bearer",
	})
}

// HandleRefresh handles token refresh
func (s *Server) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	accessToken, refreshToken, err := s.auth.RefreshToken(req.RefreshToken)
	if err != nil {
		s.respondError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(s.config.JWT.AccessTokenTTL.Seconds()),
		"token_type":    "Bearer",
	})
}

// HandleListSessions lists all device sessions
func (s *Server) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	infos := s.engine.Registry().Snapshot()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":    len(infos),
		"sessions": infos,
	})
}

// HandleGetSession returns one session
func (s *Server) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	sess, ok := s.engine.Registry().Find(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}

	s.respondJSON(w, http.StatusOK, sess.Info())
}

// HandleDeleteSession evicts one session
func (s *Server) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	if !s.engine.Registry().Evict(id) {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleStartDiscovery switches a session onto the tree-discovery path
func (s *Server) HandleStartDiscovery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	sess, ok := s.engine.Registry().Find(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "session not found")
		return
	}

	sess.StartDiscovery()
	s.respondJSON(w, http.StatusOK, sess.Info())
}

// HandleListEvents lists recorded session events
func (s *Server) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	deviceID := r.URL.Query().Get("device")

	events, total, err := s.store.ListEvents(r.Context(), deviceID, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":  total,
		"events": events,
	})
}
