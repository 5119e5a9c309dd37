package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marcelsud/webhook-inspector/capture/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, oe *OTelExporter) string {
	t.Helper()

	rec := httptest.NewRecorder()
	oe.ServeHTTP().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestStoreCollector(t *testing.T) {
	ctx := context.Background()

	t.Run("collect", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		repo.On("Count", ctx).Return(int64(12), nil)

		c := NewStoreCollector(repo)
		fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		c.now = func() time.Time { return fixed }

		m, err := c.Collect(ctx)
		require.NoError(t, err)
		assert.Equal(t, Metrics{Records: 12, Timestamp: fixed}, m)
	})

	t.Run("store failure", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		repo.On("Count", ctx).Return(int64(0), errors.New("unavailable"))

		_, err := NewStoreCollector(repo).Collect(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "counting records")
	})
}

func TestOTelExporter(t *testing.T) {
	ctx := context.Background()

	t.Run("exposes records gauge and counters", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		repo.On("Count", mock.Anything).Return(int64(7), nil)

		oe, err := NewOTelExporter(NewStoreCollector(repo))
		require.NoError(t, err)
		t.Cleanup(func() { _ = oe.Shutdown(ctx) })

		oe.Captured(ctx, http.MethodPost)
		oe.Captured(ctx, http.MethodPost)
		oe.Synthesized(ctx, OutcomeSuccess, 1500*time.Millisecond)

		body := scrape(t, oe)
		assert.Contains(t, body, "webhook_records")
		assert.Contains(t, body, "webhook_captured")
		assert.Contains(t, body, `http_method="POST"`)
		assert.Contains(t, body, "webhook_synthesis_requests")
		assert.Contains(t, body, `outcome="success"`)
		assert.Contains(t, body, "webhook_synthesis_duration")
	})

	t.Run("two exporters do not collide", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		repo.On("Count", mock.Anything).Return(int64(1), nil).Maybe()

		a, err := NewOTelExporter(NewStoreCollector(repo))
		require.NoError(t, err)
		b, err := NewOTelExporter(NewStoreCollector(repo))
		require.NoError(t, err)

		assert.NoError(t, a.Shutdown(ctx))
		assert.NoError(t, b.Shutdown(ctx))
	})
}

func TestNoop(t *testing.T) {
	var r Recorder = Noop{}
	assert.NotPanics(t, func() {
		r.Captured(context.Background(), http.MethodGet)
		r.Synthesized(context.Background(), OutcomeError, time.Second)
	})
}
