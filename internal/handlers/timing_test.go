package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/gatekeeper/internal/auth"
	"github.com/BradenHooton/gatekeeper/internal/handlers"
	"github.com/BradenHooton/gatekeeper/internal/repositories"
	"github.com/BradenHooton/gatekeeper/internal/services"
	pkgauth "github.com/BradenHooton/gatekeeper/pkg/auth"
	pkglogger "github.com/BradenHooton/gatekeeper/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// timedLogin returns the fastest of several wrong-secret logins for identity
func timedLogin(t *testing.T, handler *handlers.AuthHandler, identity string, runs int) time.Duration {
	t.Helper()

	fastest := time.Duration(1<<63 - 1)
	for i := 0; i < runs; i++ {
		req := NewTestRequest(t, "POST", "/api/login", handlers.LoginRequest{Email: identity, Password: "wrong"})
		w := httptest.NewRecorder()

		start := time.Now()
		handler.Login(w, req)
		elapsed := time.Since(start)

		require.Equal(t, http.StatusUnauthorized, w.Code)
		if elapsed < fastest {
			fastest = elapsed
		}
	}
	return fastest
}

func TestLogin_UnknownIdentityCostsAsMuchAsWrongSecret(t *testing.T) {
	if testing.Short() {
		t.Skip("bcrypt timing test")
	}

	logger := discardLogger()
	store := repositories.NewMemoryStore()
	service := services.NewLoginService(store, store, pkgauth.NewBcryptVerifier(10),
		services.DefaultGateConfig(), logger, pkglogger.NewAuditLogger(logger))

	_, err := service.Register(context.Background(), "a@x.com", "right", "")
	require.NoError(t, err)

	// Pad floor well below one bcrypt compare so only equal work can hide the difference
	timing := auth.NewTimingDelay(auth.TimingConfig{BaseDelayMs: 5})
	handler := handlers.NewAuthHandler(service, &MockTokenIssuer{Token: "t"}, time.Minute, timing, nil, logger)

	unknown := timedLogin(t, handler, "nobody@x.com", 3)
	known := timedLogin(t, handler, "a@x.com", 3)

	assert.GreaterOrEqual(t, unknown, known/2,
		"unknown identity answered in %v, wrong secret in %v", unknown, known)
}
