package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteErrorMapsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, "scan failed", apperr.Expired("QR token has expired"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "QR token has expired", body.Error)
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	var v map[string]string
	assert.ErrorIs(t, DecodeJSON(req, &v), apperr.ErrValidation)
}

func TestGenerators(t *testing.T) {
	assert.True(t, strings.HasPrefix(GenerateSimulatedCertID(), "SIM-"))

	tx := GenerateTxHash()
	assert.Len(t, tx, 66)
	assert.NotEqual(t, tx, GenerateTxHash())

	assert.Equal(t, "Ada_Lovelace_GopherCon_2026", SafeFileName("Ada Lovelace_GopherCon 2026"))
}
