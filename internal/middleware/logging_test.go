package middleware_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/gatekeeper/internal/middleware"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureLogger_RedactsSensitiveQuery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := middleware.SecureLogger(logger, &pkghttp.IPConfig{TrustForwardedFor: true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/login?password=hunter2", nil)
	req.Header.Set("X-Forwarded-For", "::ffff:9.9.9.9")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "/api/login?[REDACTED]", record["path"])
	assert.Equal(t, "9.9.9.9", record["origin"])
	assert.Equal(t, float64(http.StatusUnauthorized), record["status"])
	assert.Equal(t, "WARN", record["level"])
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestSecureLogger_KeepsHarmlessQuery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := middleware.SecureLogger(logger, nil)(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health?verbose=1", nil))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "/health?verbose=1", record["path"])
	assert.Equal(t, "INFO", record["level"])
}
