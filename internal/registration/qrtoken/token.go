// Package qrtoken issues and checks the signed tokens carried by registration QR codes.
package qrtoken

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/skip2/go-qrcode"
)

type Claims struct {
	EventID string `json:"eid"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

type Signer struct {
	secret []byte
	now    func() time.Time
}

func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, apperr.Unconfigured("QR_SECRET_KEY is not set")
	}
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Signer{secret: hashed[:], now: time.Now}, nil
}

// WithClock replaces the clock used for expiry checks.
func (s *Signer) WithClock(now func() time.Time) *Signer {
	s.now = now
	return s
}

// Nonce is the human-readable part of a token: {eventId}-{email}-{epochMillis}.
func Nonce(eventID, email string, issuedAt time.Time) string {
	return fmt.Sprintf("%s-%s-%d", eventID, email, issuedAt.UnixMilli())
}

// Issue signs a token that expires at expiry.
func (s *Signer) Issue(eventID, email string, issuedAt, expiry time.Time) (string, error) {
	claims := Claims{
		EventID: eventID,
		Email:   email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   Nonce(eventID, email, issuedAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiry),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks the signature and expiry. A bad signature is reported as NotFound
// so forged tokens look exactly like unknown ones.
func (s *Signer) Verify(token string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
		return &claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, apperr.Expired("QR token has expired")
	default:
		return nil, apperr.NotFound("invalid QR token")
	}
}

// EncodePNG renders the token as a QR code image.
func EncodePNG(token string, size int) ([]byte, error) {
	return qrcode.Encode(token, qrcode.Medium, size)
}
