package chi

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-inspector/capture"
	"github.com/marcelsud/webhook-inspector/metrics"
	"github.com/marcelsud/webhook-inspector/sources"
)

// captureResponse is what the sender of a webhook gets back
type captureResponse struct {
	ID string `json:"id"`
}

// captureWebhook handles ANY /capture/*
func captureWebhook(captureService capture.UseCase, sourceLoader *sources.Loader, recorder metrics.Recorder, maxBodyBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		source, err := sourceLoader.Resolve(chi.URLParam(r, "*"))
		if err != nil {
			writeError(w, r, err)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeErrorCode(w, http.StatusRequestEntityTooLarge, "payload_too_large", err.Error())
				return
			}
			writeErrorCode(w, http.StatusBadRequest, "invalid_request", "failed to read request body")
			return
		}

		req := captureRequest(r, body)
		req.StatusCode = source.StatusCode

		record, err := captureService.Capture(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		recorder.Captured(r.Context(), r.Method)

		httplog.LogEntrySetField(r.Context(), "webhook_id", record.ID.String())

		switch source.StatusCode {
		case http.StatusNoContent, http.StatusNotModified:
			w.WriteHeader(source.StatusCode)
		default:
			writeJSON(w, source.StatusCode, captureResponse{ID: record.ID.String()})
		}
	})
}

// captureRequest flattens r into the stored shape
func captureRequest(r *http.Request, body []byte) capture.Request {
	headers := make(map[string]string, len(r.Header)+1)
	for key, values := range r.Header {
		headers[strings.ToLower(key)] = strings.Join(values, ", ")
	}
	if r.Host != "" {
		headers["host"] = r.Host
	}
	if _, ok := headers["content-length"]; !ok && r.ContentLength > 0 {
		headers["content-length"] = strconv.FormatInt(r.ContentLength, 10)
	}

	query := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}

	req := capture.Request{
		Method:        r.Method,
		Pathname:      r.URL.Path,
		IP:            clientIP(r.RemoteAddr),
		ContentType:   optional(headers["content-type"]),
		ContentLength: optional(headers["content-length"]),
		QueryParams:   query,
		Headers:       headers,
	}
	if len(body) > 0 {
		req.Body = capture.String(string(body))
	}
	return req
}

// clientIP strips the port from a RemoteAddr; middleware.RealIP may already have removed it
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return capture.String(s)
}
