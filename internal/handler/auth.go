package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"freshkeep-api/internal/model"
	"freshkeep-api/internal/service"
	"freshkeep-api/pkg/apierror"
	"freshkeep-api/pkg/response"
)

// AuthHandler handles session token HTTP requests.
type AuthHandler struct {
	sessions *service.SessionService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(sessions *service.SessionService) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// createSessionRequest carries the identity to bind a new token to.
type createSessionRequest struct {
	UID         string `json:"uid"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// sessionResponse is returned when a token is issued or refreshed.
type sessionResponse struct {
	Token     string        `json:"token"`
	Session   model.Session `json:"session"`
	ExpiresAt string        `json:"expires_at"`
}

// CreateSession handles POST /api/v1/auth/session
func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid JSON"))
		return
	}
	defer r.Body.Close()

	sess := model.Session{
		UID:         req.UID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
	}

	token, stored, err := h.sessions.Create(r.Context(), sess)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.Created(w, sessionResponse{
		Token:     token,
		Session:   stored.Session,
		ExpiresAt: stored.ExpiresAt.Format(time.RFC3339),
	})
}

// RevokeSession handles POST /api/v1/auth/revoke
func (h *AuthHandler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Token")
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header is required"))
		return
	}

	if err := h.sessions.Revoke(r.Context(), token); err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, map[string]interface{}{
		"revoked": true,
	})
}

// RefreshSession handles POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Token")
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header is required"))
		return
	}

	newToken, stored, err := h.sessions.Refresh(r.Context(), token)
	if err != nil {
		serviceError(w, err)
		return
	}

	response.OK(w, sessionResponse{
		Token:     newToken,
		Session:   stored.Session,
		ExpiresAt: stored.ExpiresAt.Format(time.RFC3339),
	})
}
