package presigned

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// Middleware rejects requests whose link signature is missing, expired or
// wrong. With signing disabled it passes every request through.
func Middleware(signer *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !signer.IsEnabled() {
				next.ServeHTTP(w, r)
				return
			}
			if err := signer.ValidateRequest(r); err != nil {
				handleValidationError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func handleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	msg := "invalid link signature"
	switch {
	case errors.Is(err, ErrMissingSignature), errors.Is(err, ErrMissingExpiration):
		msg = "link is not signed"
	case errors.Is(err, ErrInvalidExpiration):
		msg = "invalid expires parameter"
	case errors.Is(err, ErrExpired):
		msg = "link has expired"
	}
	slog.Debug("rejected signed link", "path", r.URL.Path, "err", err)
	render.Status(r, http.StatusForbidden)
	render.JSON(w, r, map[string]string{"error": msg})
}
