package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/homecal/internal/apperr"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps err onto the error taxonomy. Internal errors are logged
// and answered with a generic message.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := apperr.CodeOf(err)
	if code == apperr.Internal {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, apperr.HTTPStatus(code), map[string]string{
		"error": apperr.Message(err),
		"code":  string(code),
	})
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Invalid("request body is required")
		}
		return apperr.Invalid("invalid JSON")
	}
	return nil
}
