package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/jstcode/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusFor maps domain errors onto HTTP statuses. Unknown errors are 500.
var statusFor = []struct {
	err    error
	status int
	msg    string
}{
	{apperr.ErrNotFound, http.StatusNotFound, "not found"},
	{apperr.ErrInvalidPath, http.StatusBadRequest, "invalid path"},
	{apperr.ErrNotAFile, http.StatusConflict, "not a file"},
	{apperr.ErrKindConflict, http.StatusConflict, "path already used by a node of another kind"},
	{apperr.ErrTooLarge, http.StatusRequestEntityTooLarge, "import exceeds size limits"},
	{apperr.ErrInvalidArchive, http.StatusBadRequest, "invalid archive"},
	{apperr.ErrRetryBackoff, http.StatusTooManyRequests, "retry suppressed, edit the project first"},
	{apperr.ErrQuotaExceeded, http.StatusInsufficientStorage, "storage quota exceeded"},
	{apperr.ErrToolchainUnavailable, http.StatusServiceUnavailable, "bundler not ready"},
}

// writeError writes the response for err. op names the failed operation in
// the log line for unexpected errors.
func writeError(w http.ResponseWriter, err error, op string) {
	for _, m := range statusFor {
		if errors.Is(err, m.err) {
			writeJSON(w, m.status, errorBody(m.msg))
			return
		}
	}
	slog.Error(op+" failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}
