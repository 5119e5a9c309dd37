package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/marcelsud/webhook-inspector/metrics"
	"github.com/marcelsud/webhook-inspector/synthesis"
)

const maxGenerateBody = 64 << 10

type generateRequest struct {
	WebhookIDs []string `json:"webhookIds"`
}

type generateResponse struct {
	Code string `json:"code"`
}

// generateHandler handles POST /api/generate
func generateHandler(synthesisService synthesis.UseCase, recorder metrics.Recorder, timeout time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var req generateRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxGenerateBody)).Decode(&req); err != nil {
			recorder.Synthesized(r.Context(), metrics.OutcomeInvalid, time.Since(start))
			writeErrorCode(w, http.StatusBadRequest, "invalid_request", "body must be {\"webhookIds\": [...]}")
			return
		}

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		code, err := synthesisService.Synthesize(ctx, req.WebhookIDs)
		recorder.Synthesized(r.Context(), outcome(err), time.Since(start))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, generateResponse{Code: code})
	})
}

// outcome labels a synthesis result for metrics
func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var synthErr *synthesis.SynthesisError
	if errors.As(err, &synthErr) {
		if synthErr.Timeout() {
			return metrics.OutcomeTimeout
		}
		return metrics.OutcomeError
	}
	if status, _ := errorStatus(err); status < http.StatusInternalServerError {
		return metrics.OutcomeInvalid
	}
	return metrics.OutcomeError
}
