package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/desertthunder/nexus/internal/acquire"
	"github.com/desertthunder/nexus/internal/models"
	"github.com/desertthunder/nexus/internal/shared"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Detail string `json:"detail"`
	Hint   string `json:"hint,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// statusFor maps an error to its HTTP status, detail and hint.
//
// Unknown errors become a 500 whose detail hides the cause.
func statusFor(err error) (int, string, string) {
	if kind, ok := acquire.KindOf(err); ok {
		hint := acquire.HintFor(err)
		switch kind {
		case acquire.KindInvalidInput:
			return http.StatusBadRequest, err.Error(), hint
		case acquire.KindResolveFailed:
			return http.StatusBadGateway, "Search failed", hint
		case acquire.KindCredentialsRejected:
			return http.StatusServiceUnavailable, "Import failed: source credentials were rejected", hint
		default:
			return http.StatusBadGateway, "Import failed: all client profiles were refused", hint
		}
	}

	switch {
	case errors.Is(err, shared.ErrSongNotFound):
		return http.StatusNotFound, "Song not found", ""
	case errors.Is(err, shared.ErrPlaylistNotFound):
		return http.StatusNotFound, "Playlist not found", ""
	case errors.Is(err, shared.ErrSongNotInList):
		return http.StatusNotFound, "Song not found in playlist", ""
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden, "Not authorized to access this playlist", ""
	case errors.Is(err, shared.ErrUnsupportedType):
		return http.StatusBadRequest, "Invalid file format", "Accepted formats: " + allowedList()
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest, err.Error(), ""
	case errors.Is(err, shared.ErrDependencyMissing):
		return http.StatusServiceUnavailable, "Service unavailable", "A required tool is not installed on the server."
	default:
		return http.StatusInternalServerError, "Internal server error", ""
	}
}
