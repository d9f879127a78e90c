package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/janhq/jan-chat-sync/internal/config"
	"github.com/janhq/jan-chat-sync/internal/utils/platformerrors"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		raw          string
		wantEndpoint string
		wantInsecure bool
	}{
		{"http://collector:4318", "collector:4318", true},
		{"https://otel.example.com", "otel.example.com", false},
		{"collector:4318", "collector:4318", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			endpoint, insecure := normalizeEndpoint(tt.raw)
			assert.Equal(t, tt.wantEndpoint, endpoint)
			assert.Equal(t, tt.wantInsecure, insecure)
		})
	}
}

func TestSetup_DisabledUsesLocalProviders(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{ServiceName: "chatsync-test", Environment: "test"}

	shutdown, err := Setup(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)

	_, span := StartGatewaySpan(ctx, "list_conversations", "GET", "/conversations", "req-1")
	RecordStatus(span, 200)
	RecordError(span, platformerrors.NewError(ctx, platformerrors.LayerGateway, platformerrors.ErrorTypeNetwork, "down", errors.New("dial"), "abc"))
	span.End()
	RecordGatewayCall(ctx, "list_conversations", "success", 0)

	assert.NoError(t, shutdown(ctx))
}

func TestHTTPMiddleware_PassesThroughStatus(t *testing.T) {
	handler := HTTPMiddleware("chatsync-test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/metrics" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobInstrumenter_ReturnsJobError(t *testing.T) {
	jobs, err := NewJobInstrumenter("chatsync-test")
	require.NoError(t, err)

	ran := false
	require.NoError(t, jobs.Instrument(context.Background(), "cache_refresh", func(ctx context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)

	boom := errors.New("boom")
	assert.ErrorIs(t, jobs.Instrument(context.Background(), "cache_refresh", func(context.Context) error { return boom }), boom)
}
