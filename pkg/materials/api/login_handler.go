package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/render"
	"github.com/tendant/simple-portal/pkg/materials"
)

// LoginRequest carries the caller's credentials
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse reports the caller's role and session token
type LoginResponse struct {
	Success bool   `json:"success"`
	Role    string `json:"role"`
	Token   string `json:"token,omitempty"`
}

// Login checks credentials and issues a session token, also set as the
// jwt cookie so plain links work in the browser.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeJSONError(w, r, http.StatusBadRequest, "username and password are required")
		return
	}
	if h.authn == nil {
		writeJSONError(w, r, http.StatusUnauthorized, materials.ErrInvalidCredentials.Error())
		return
	}

	role, err := h.authn.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, materials.ErrInvalidCredentials) {
			h.logger.Error("authentication failed", "username", req.Username, "err", err)
			writeJSONError(w, r, http.StatusInternalServerError, "authentication unavailable")
			return
		}
		h.logger.Info("login rejected", "username", req.Username)
		writeJSONError(w, r, http.StatusUnauthorized, materials.ErrInvalidCredentials.Error())
		return
	}

	resp := LoginResponse{Success: true, Role: string(role)}
	if h.tokens != nil {
		token, err := h.tokens.Issue(req.Username, role)
		if err != nil {
			h.logger.Error("failed to issue token", "username", req.Username, "err", err)
			writeJSONError(w, r, http.StatusInternalServerError, "failed to issue token")
			return
		}
		resp.Token = token
		http.SetCookie(w, &http.Cookie{
			Name:     "jwt",
			Value:    token,
			Path:     "/",
			Expires:  time.Now().Add(h.tokens.TTL()),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}

	h.logger.Info("login", "username", req.Username, "role", role)
	render.JSON(w, r, resp)
}
