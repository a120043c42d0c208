package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-portal/pkg/materials"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes), errors.Is(err, materials.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, materials.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, materials.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, materials.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case materials.IsValidationError(err), errors.Is(err, materials.ErrInvalidRole):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(status int, err error) string {
	switch status {
	case http.StatusRequestEntityTooLarge:
		return materials.ErrPayloadTooLarge.Error()
	case http.StatusInternalServerError:
		// Storage details stay in the logs.
		return "storage failure"
	}
	for _, sentinel := range []error{
		materials.ErrInvalidName,
		materials.ErrUnknownCategory,
		materials.ErrUnsupportedType,
		materials.ErrNotFound,
		materials.ErrAlreadyExists,
		materials.ErrInvalidCredentials,
		materials.ErrInvalidRole,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		h.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeJSONError(w, r, status, messageFor(status, err))
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: msg})
}
