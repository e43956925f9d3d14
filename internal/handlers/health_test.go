package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/handlers"
	"github.com/stretchr/testify/assert"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth_AllChecksPass(t *testing.T) {
	handler := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"store":  pingFunc(func(context.Context) error { return nil }),
		"ledger": pingFunc(func(context.Context) error { return nil }),
	}, time.Second, discardLogger())

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest("GET", "/health", nil))

	var resp handlers.HealthResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]string{"store": "ok", "ledger": "ok"}, resp.Checks)
}

func TestHealth_FailingCheck(t *testing.T) {
	handler := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"store":  pingFunc(func(context.Context) error { return nil }),
		"ledger": pingFunc(func(context.Context) error { return errors.New("redis down") }),
	}, time.Second, discardLogger())

	w := httptest.NewRecorder()
	handler.Health(w, httptest.NewRequest("GET", "/health", nil))

	var resp handlers.HealthResponse
	AssertJSONResponse(t, w, http.StatusServiceUnavailable, &resp)
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unavailable", resp.Checks["ledger"])
}

func TestRoot(t *testing.T) {
	w := httptest.NewRecorder()
	handlers.Root(w, httptest.NewRequest("GET", "/", nil))

	var resp handlers.MessageResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.NotEmpty(t, resp.Message)
}
