// Package api exposes the materials service over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-portal/pkg/materials"
	"github.com/tendant/simple-portal/pkg/materials/auth"
	"github.com/tendant/simple-portal/pkg/materials/presigned"
)

// multipartOverhead is the allowance for multipart framing on top of the
// upload ceiling when capping request bodies.
const multipartOverhead = 1 << 20

// Config wires the handler's collaborators.
type Config struct {
	Service       materials.Service
	Authenticator materials.Authenticator
	Tokens        *auth.Tokens
	Signer        *presigned.Signer // validates /files and /download links when enabled
	AuthRequired  bool
	Logger        *slog.Logger
}

// Handler serves the portal endpoints.
type Handler struct {
	service      materials.Service
	authn        materials.Authenticator
	tokens       *auth.Tokens
	signer       *presigned.Signer
	authRequired bool
	logger       *slog.Logger
}

func NewHandler(cfg Config) *Handler {
	h := &Handler{
		service:      cfg.Service,
		authn:        cfg.Authenticator,
		tokens:       cfg.Tokens,
		signer:       cfg.Signer,
		authRequired: cfg.AuthRequired,
		logger:       cfg.Logger,
	}
	if h.signer == nil {
		h.signer = presigned.New()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Routes returns the router for the portal endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	if h.tokens != nil {
		r.Use(h.tokens.Verifier())
	}

	r.Post("/login", h.Login)
	r.Get("/categories", h.Categories)

	r.Group(func(r chi.Router) {
		if h.authRequired {
			r.Use(auth.Require(materials.RoleTeacher))
		}
		r.Post("/upload/{category}", h.Upload)
		r.Put("/rename/{category}/{filename}", h.Rename)
		r.Delete("/delete/{category}/{filename}", h.Delete)
	})

	r.Group(func(r chi.Router) {
		if h.authRequired {
			r.Use(auth.Require())
		}
		r.Get("/materiais/{category}", h.List)
		r.Get("/materials/{category}", h.List)
	})

	// With link signing on, a valid signature authorizes the byte routes.
	r.Group(func(r chi.Router) {
		if h.signer.IsEnabled() {
			r.Use(presigned.Middleware(h.signer))
		} else if h.authRequired {
			r.Use(auth.Require())
		}
		r.Get("/download/{category}/{filename}", h.Download)
		r.Get("/files/{category}/{filename}", h.View)
	})

	return r
}

// pathParam returns an unescaped route parameter. chi matches on RawPath
// when the request path needed non-default escaping.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v
	}
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}
