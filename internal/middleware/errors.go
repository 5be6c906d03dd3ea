package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/terraconstructs/gatehouse/internal/apperr"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into a status code and a caller-safe message.
// This is the only place where error kinds become HTTP statuses.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()

	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("kind", kind.String()).Str("path", r.URL.Path).Msg("request failed")
	} else {
		logger.Debug().Err(err).Str("kind", kind.String()).Str("path", r.URL.Path).Msg("request rejected")
	}

	WriteJSON(w, status, ErrorResponse{Error: apperr.PublicMessage(err)})
}

// Recover turns a panic into a generic 500 JSON response.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			zerolog.Ctx(r.Context()).Error().
				Interface("panic", rec).
				Str("path", r.URL.Path).
				Msg("handler panicked")
			WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: apperr.PublicMessage(nil)})
		}()
		next.ServeHTTP(w, r)
	})
}
