package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/odpadki/internal/imaging"
	"github.com/erazemk/odpadki/internal/lifecycle"
	"github.com/erazemk/odpadki/internal/oracle"
	"github.com/erazemk/odpadki/internal/store"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// writeError maps domain errors onto status codes. Unknown errors are logged
// and reported as a generic internal error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *imaging.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonError(w, http.StatusBadRequest, verr.Reason)
	case errors.Is(err, imaging.ErrMediaDecode):
		jsonError(w, http.StatusBadRequest, "could not read the uploaded image")
	case errors.Is(err, lifecycle.ErrNotVerifiable):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, lifecycle.ErrStaleResponse):
		jsonError(w, http.StatusConflict, "a newer verification of this item is in progress")
	case errors.Is(err, store.ErrWriteConflict):
		jsonError(w, http.StatusConflict, "the database is busy, please retry")
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, http.StatusNotFound, "not found")
	case errors.Is(err, lifecycle.ErrForbidden):
		jsonError(w, http.StatusForbidden, "not your item")
	case errors.Is(err, oracle.ErrUnreachable):
		slog.Warn("oracle unreachable", "path", r.URL.Path, "error", err)
		jsonError(w, http.StatusBadGateway, "the AI service could not be reached, please try again")
	case errors.Is(err, lifecycle.ErrVerificationTimeout):
		jsonError(w, http.StatusGatewayTimeout, "Verification is taking longer than expected. We will notify you when it completes.")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}

// limitParam reads a positive integer query parameter, falling back to def.
func limitParam(r *http.Request, def, maximum int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maximum)
}
