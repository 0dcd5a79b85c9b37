package qrtoken

import (
	"bytes"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	signer, err := NewSigner("test-secret")
	require.NoError(t, err)

	issued := time.Now()
	token, err := signer.Issue("evt-1", "ada@example.com", issued, issued.Add(24*time.Hour))
	require.NoError(t, err)

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", claims.EventID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, Nonce("evt-1", "ada@example.com", issued), claims.Subject)
}

func TestVerifyRejectsForgedToken(t *testing.T) {
	signer, _ := NewSigner("server-key")
	attacker, _ := NewSigner("guessed-key")

	issued := time.Now()
	forged, err := attacker.Issue("evt-1", "mallory@example.com", issued, issued.Add(time.Hour))
	require.NoError(t, err)

	_, err = signer.Verify(forged)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = signer.Verify(Nonce("evt-1", "mallory@example.com", issued))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestVerifyExpired(t *testing.T) {
	signer, _ := NewSigner("server-key")
	issued := time.Now().Add(-25 * time.Hour)

	token, err := signer.Issue("evt-1", "ada@example.com", issued, time.Now().Add(-time.Second))
	require.NoError(t, err)

	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, apperr.ErrExpired)
}

func TestVerifyUsesClock(t *testing.T) {
	issued := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	signer, _ := NewSigner("server-key")
	signer.WithClock(func() time.Time { return issued.Add(2 * time.Hour) })

	token, _ := signer.Issue("evt-1", "ada@example.com", issued, issued.Add(time.Hour))
	_, err := signer.Verify(token)
	assert.ErrorIs(t, err, apperr.ErrExpired)
}

func TestNewSignerRequiresSecret(t *testing.T) {
	_, err := NewSigner("")
	assert.ErrorIs(t, err, apperr.ErrUnconfigured)
}

func TestNonceFormat(t *testing.T) {
	at := time.UnixMilli(1767225600123)
	assert.Equal(t, "evt-9-bob@example.com-1767225600123", Nonce("evt-9", "bob@example.com", at))
}

func TestEncodePNG(t *testing.T) {
	img, err := EncodePNG(strings.Repeat("a", 64), 256)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Equal(t, 256, decoded.Bounds().Dx())
}
