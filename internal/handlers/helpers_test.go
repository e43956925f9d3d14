package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/gatekeeper/internal/models"
	"github.com/BradenHooton/gatekeeper/internal/services"
	pkghttp "github.com/BradenHooton/gatekeeper/pkg/http"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()

	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), target), "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()

	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockGateService implements GateService for testing
type MockGateService struct {
	LoginFunc    func(ctx context.Context, identity, secret, origin string) (*services.LoginResult, error)
	RegisterFunc func(ctx context.Context, identity, secret, displayName string) (*models.Account, error)
}

func (m *MockGateService) Login(ctx context.Context, identity, secret, origin string) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return &services.LoginResult{Decision: models.DecisionDenied}, nil
	}
	return m.LoginFunc(ctx, identity, secret, origin)
}

func (m *MockGateService) Register(ctx context.Context, identity, secret, displayName string) (*models.Account, error) {
	if m.RegisterFunc == nil {
		return &models.Account{ID: "acc-1", Email: identity}, nil
	}
	return m.RegisterFunc(ctx, identity, secret, displayName)
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct {
	Token string
	Err   error
}

func (m *MockTokenIssuer) GenerateAccessToken(account *models.Account) (string, error) {
	return m.Token, m.Err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
