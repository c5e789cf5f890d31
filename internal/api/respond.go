package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/fleetops/fleetops/internal/model"
)

type errorsResponse struct {
	Errors []string `json:"errors"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeErrors(w http.ResponseWriter, status int, msgs ...string) {
	writeJSON(w, status, errorsResponse{Errors: msgs})
}

// respondError maps a domain error onto a status code. Unclassified errors
// are logged and hidden behind a generic message.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusBadRequest
	switch model.KindOf(err) {
	case model.ErrNotFound:
		status = http.StatusNotFound
	case model.ErrProvider:
		status = http.StatusBadGateway
	case model.ErrFormat, model.ErrUnsupportedFormat, model.ErrDecode, model.ErrEmptyInput, model.ErrNotDeleted:
	default:
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeErrors(w, http.StatusInternalServerError, "Internal server error.")
		return
	}
	writeErrors(w, status, model.MessageOf(err))
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
}
