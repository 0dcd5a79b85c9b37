package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/analytics"
	analytics_api "github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/analytics/api"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/attendance/attendance_api"
	attendancedb "github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/attendance/db"
	attendance "github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/attendance/service"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/auth"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/blockchain"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/certificate/certificate_api"
	certdb "github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/certificate/db"
	certificates "github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/certificate/service"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/config"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/database/dbtest"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/kafka"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/metrics"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/models"
	registrationdb "github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/registration/db"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/registration/qrtoken"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/registration/registration_api"
	registration "github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/registration/service"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/server"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/sse"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const adminToken = "admin-secret"

func newRouter(t *testing.T, health server.HealthCheck) http.Handler {
	bunDB := dbtest.Open(t)
	log := logger.Discard()
	m := metrics.New()

	tokens, err := qrtoken.NewSigner("router-test-secret")
	require.NoError(t, err)

	regSvc := registration.NewService(&registrationdb.DB{Bun: bunDB}, tokens, time.Hour, 128, log)
	attSvc := attendance.NewService(&attendancedb.DB{Bun: bunDB}, tokens, kafka.NopPublisher{}, "attendance.recorded", sse.NewAttendanceFeed(), m, log)
	certSvc := certificates.NewService(&certdb.DB{Bun: bunDB}, blockchain.NewSimulation(log), storage.NewMemory(""), log,
		certificates.WithMetrics(m))
	statsSvc := analytics.NewService(analytics.NewDB(bunDB), log)

	return server.NewRouter(server.Options{
		Handlers: server.Handlers{
			Registration: registration_api.NewHandler(regSvc, log),
			Attendance:   attendance_api.NewHandler(attSvc, log),
			Certificate:  certificate_api.NewHandler(certSvc, log),
			Analytics:    analytics_api.NewHandler(statsSvc, log),
		},
		AdminAuth: auth.Admin(config.AuthConfig{AdminToken: adminToken}, nil, log),
		Metrics:   m,
		Logger:    log,
		Health:    health,
	})
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func call(t *testing.T, h http.Handler, method, path string, admin bool, body interface{}) (int, []byte) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if admin {
		req.Header.Set(auth.AdminTokenHeader, adminToken)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes()
}

func data(t *testing.T, raw []byte, v interface{}) {
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestRegisterScanMintVerify(t *testing.T) {
	h := newRouter(t, nil)

	code, body := call(t, h, http.MethodPost, "/events", true, map[string]interface{}{
		"title":           "Web3 Summit",
		"date":            time.Now().Add(24 * time.Hour).Format(time.RFC3339),
		"maxParticipants": 2,
	})
	require.Equal(t, http.StatusCreated, code, string(body))
	var event models.Event
	data(t, body, &event)

	var tokens []string
	for _, p := range []struct{ name, email string }{{"Ada", "ada@example.com"}, {"Alan", "alan@example.com"}} {
		code, body = call(t, h, http.MethodPost, "/events/"+event.ID+"/register", false, map[string]string{"name": p.name, "email": p.email})
		require.Equal(t, http.StatusCreated, code, string(body))
		var reg struct {
			QRToken string `json:"qrToken"`
		}
		data(t, body, &reg)
		tokens = append(tokens, reg.QRToken)
	}

	code, _ = call(t, h, http.MethodPost, "/events/"+event.ID+"/register", false, map[string]string{"name": "Late", "email": "late@example.com"})
	assert.Equal(t, http.StatusConflict, code)

	for _, tok := range tokens {
		code, body = call(t, h, http.MethodPost, "/attendance/scan", true, map[string]string{"qrToken": tok})
		require.Equal(t, http.StatusOK, code, string(body))
	}

	var first struct {
		Report models.MintReport `json:"report"`
	}
	code, body = call(t, h, http.MethodPost, "/certificates/mint", true, map[string]string{"eventId": event.ID})
	require.Equal(t, http.StatusOK, code, string(body))
	require.NoError(t, json.Unmarshal(body, &first))
	require.Len(t, first.Report.Results, 2)
	assert.Equal(t, 2, first.Report.Count(models.OutcomeSuccess))
	assert.NotEqual(t, first.Report.Results[0].CertID, first.Report.Results[1].CertID)

	var second struct {
		Report models.MintReport `json:"report"`
	}
	code, body = call(t, h, http.MethodPost, "/certificates/mint", true, map[string]string{"eventId": event.ID})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &second))
	assert.Equal(t, 2, second.Report.Count(models.OutcomeAlreadyIssued))

	code, body = call(t, h, http.MethodGet, "/certificates/verify/"+first.Report.Results[0].CertID, false, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"verified":true`)

	code, body = call(t, h, http.MethodGet, "/events/"+event.ID+"/stats", true, nil)
	require.Equal(t, http.StatusOK, code)
	var stats models.EventStats
	data(t, body, &stats)
	assert.Equal(t, 2, stats.Registrations)
	assert.Equal(t, 2, stats.Attended)
	assert.Equal(t, 2, stats.Certificates)
	assert.Equal(t, 0, stats.PendingCertificates)
}

func TestAdminRoutesNeedCredentials(t *testing.T) {
	h := newRouter(t, nil)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/certificates/mint"},
		{http.MethodPost, "/attendance/scan"},
		{http.MethodGet, "/certificates"},
		{http.MethodPost, "/events"},
		{http.MethodGet, "/events/x/stats"},
	} {
		code, _ := call(t, h, route.method, route.path, false, nil)
		assert.Equal(t, http.StatusUnauthorized, code, route.path)
	}

	code, _ := call(t, h, http.MethodGet, "/events", false, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = call(t, h, http.MethodGet, "/certificates/network-info", false, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newRouter(t, func(ctx context.Context) (map[string]string, error) {
		return map[string]string{"chain": "simulation"}, nil
	})

	code, body := call(t, h, http.MethodGet, "/health", false, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `"chain":"simulation"`)

	code, body = call(t, h, http.MethodGet, "/metrics", false, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), `certify_http_requests_total{method="GET",route="/health",status="200"} 1`)

	unhealthy := newRouter(t, func(ctx context.Context) (map[string]string, error) {
		return nil, errors.New("database unreachable")
	})
	code, body = call(t, unhealthy, http.MethodGet, "/health", false, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, string(body), "database unreachable")
}
