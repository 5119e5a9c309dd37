package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-inspector/capture"
	"github.com/marcelsud/webhook-inspector/sources"
	"github.com/marcelsud/webhook-inspector/synthesis"
)

// errorResponse is the body of every non-2xx JSON answer
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorStatus classifies err into an HTTP status and a stable error code
func errorStatus(err error) (int, string) {
	var synthErr *synthesis.SynthesisError
	switch {
	case errors.Is(err, capture.ErrInvalidCursor):
		return http.StatusBadRequest, "invalid_cursor"
	case errors.Is(err, capture.ErrInvalidIdentifier):
		return http.StatusBadRequest, "invalid_identifier"
	case errors.Is(err, synthesis.ErrEmptySelection):
		return http.StatusBadRequest, "empty_selection"
	case errors.Is(err, capture.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, sources.ErrUnknownSource):
		return http.StatusNotFound, "unknown_source"
	case errors.As(err, &synthErr):
		if synthErr.Timeout() {
			return http.StatusGatewayTimeout, "synthesis_timeout"
		}
		return http.StatusBadGateway, "synthesis_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError logs err and answers with its classified status.
// Internal failures are not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	oplog := httplog.LogEntry(r.Context())
	if status == http.StatusInternalServerError {
		oplog.Error().Err(err).Msg("request failed")
		message = "internal server error"
	} else if status >= http.StatusBadGateway {
		oplog.Warn().Err(err).Msg("upstream failed")
	}
	writeErrorCode(w, status, code, message)
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
