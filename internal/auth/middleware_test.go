package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/config"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockVerifier is a mock implementation of TokenVerifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, rawToken string) (string, error) {
	args := m.Called(ctx, rawToken)
	return args.String(0), args.Error(1)
}

func protected(cfg config.AuthConfig, v TokenVerifier) http.Handler {
	return Admin(cfg, v, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(Subject(r.Context())))
	}))
}

func call(h http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/certificates/mint", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminStaticToken(t *testing.T) {
	h := protected(config.AuthConfig{AdminToken: "s3cret"}, nil)

	rec := call(h, map[string]string{AdminTokenHeader: "s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-token", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, call(h, map[string]string{AdminTokenHeader: "wrong"}).Code)
	assert.Equal(t, http.StatusUnauthorized, call(h, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, call(h, map[string]string{"Authorization": "Bearer abc"}).Code)
}

func TestAdminBearerToken(t *testing.T) {
	v := new(MockVerifier)
	v.On("Verify", mock.Anything, "good").Return("user-42", nil)
	v.On("Verify", mock.Anything, "bad").Return("", errors.New("token is expired"))
	h := protected(config.AuthConfig{}, v)

	rec := call(h, map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-42", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, call(h, map[string]string{"Authorization": "Bearer bad"}).Code)
	assert.Equal(t, http.StatusUnauthorized, call(h, map[string]string{"Authorization": "Basic Zm9v"}).Code)
	assert.Equal(t, http.StatusUnauthorized, call(h, map[string]string{AdminTokenHeader: "anything"}).Code)
	v.AssertExpectations(t)
}

func TestAdminUnconfigured(t *testing.T) {
	h := protected(config.AuthConfig{}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, call(h, map[string]string{AdminTokenHeader: ""}).Code)
}

func TestExtractTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := ExtractTokenFromRequest(req)
	assert.Error(t, err)

	req.Header.Set("Authorization", "bearer xyz")
	tok, err := ExtractTokenFromRequest(req)
	assert.NoError(t, err)
	assert.Equal(t, "xyz", tok)
}
