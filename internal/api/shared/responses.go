package shared

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Zhong-Ze-Wei/podcast/internal/redact"
)

// ErrorResponse is the standard error body. Code carries a stable,
// machine-readable identifier so clients can distinguish refusal reasons that
// share an HTTP status.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// RespondWithJSON writes a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// RespondWithError writes a JSON error response with a machine-readable code.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	RespondWithJSON(w, r, status, ErrorResponse{
		Error:   message,
		Code:    code,
		TraceID: GetTraceID(r.Context()),
	})
}

// RespondWithErrorAndLog writes a sanitized JSON error response and logs the
// underlying error with credentials and paths redacted. The raw error never
// reaches the client.
func RespondWithErrorAndLog(w http.ResponseWriter, r *http.Request, status int, code, userMessage string, err error) {
	traceID := GetTraceID(r.Context())

	attrs := []any{
		"trace_id", traceID,
		"path", r.URL.Path,
		"method", r.Method,
		"status_code", status,
	}
	if err != nil {
		attrs = append(attrs, "error", redact.Error(err))
	}

	if status >= 500 {
		slog.Error("request failed", attrs...)
	} else {
		slog.Debug("request refused", attrs...)
	}

	RespondWithJSON(w, r, status, ErrorResponse{
		Error:   userMessage,
		Code:    code,
		TraceID: traceID,
	})
}
