package chi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/marcelsud/webhook-inspector/capture"
)

/* HTTP layer DTOs for the retrieval API
 * Separate from domain entities to keep the wire format camelCase and stable
 */

type summaryResponse struct {
	ID        string    `json:"id"`
	Method    string    `json:"method"`
	Pathname  string    `json:"pathname"`
	CreatedAt time.Time `json:"createdAt"`
}

type listResponse struct {
	Webhooks   []summaryResponse `json:"webhooks"`
	NextCursor *string           `json:"nextCursor"`
}

type webhookResponse struct {
	ID            string            `json:"id"`
	Method        string            `json:"method"`
	Pathname      string            `json:"pathname"`
	IP            string            `json:"ip"`
	StatusCode    int               `json:"statusCode"`
	ContentType   *string           `json:"contentType"`
	ContentLength *string           `json:"contentLength"`
	QueryParams   map[string]string `json:"queryParams"`
	Headers       map[string]string `json:"headers"`
	Body          *string           `json:"body"`
	CreatedAt     time.Time         `json:"createdAt"`
}

func toWebhookResponse(r capture.Record) webhookResponse {
	return webhookResponse{
		ID:            r.ID.String(),
		Method:        r.Method,
		Pathname:      r.Pathname,
		IP:            r.IP,
		StatusCode:    r.StatusCode,
		ContentType:   r.ContentType,
		ContentLength: r.ContentLength,
		QueryParams:   r.QueryParams,
		Headers:       r.Headers,
		Body:          r.Body,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

// listWebhooks handles GET /api/webhooks
func listWebhooks(captureService capture.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeErrorCode(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer")
				return
			}
			limit = n
		}

		page, err := captureService.List(r.Context(), r.URL.Query().Get("cursor"), limit)
		if err != nil {
			writeError(w, r, err)
			return
		}

		resp := listResponse{Webhooks: make([]summaryResponse, 0, len(page.Items))}
		for _, rec := range page.Items {
			s := rec.Summary()
			resp.Webhooks = append(resp.Webhooks, summaryResponse{
				ID:        s.ID.String(),
				Method:    s.Method,
				Pathname:  s.Pathname,
				CreatedAt: s.CreatedAt.UTC(),
			})
		}
		if page.NextCursor != "" {
			resp.NextCursor = &page.NextCursor
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

// getWebhook handles GET /api/webhooks/{id}
func getWebhook(captureService capture.UseCase) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		record, err := captureService.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toWebhookResponse(record))
	})
}
