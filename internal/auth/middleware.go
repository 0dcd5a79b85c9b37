package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/apperr"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/config"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/logger"
	"github.com/A-b-h-i-n-a-v-1-9/new-block-cert-main/internal/utils"

	"github.com/coreos/go-oidc/v3/oidc"
)

type contextKey string

const subjectKey contextKey = "admin_subject"

// AdminTokenHeader carries the static admin credential.
const AdminTokenHeader = "x-admin-token"

// TokenVerifier checks a bearer token and returns its subject.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (string, error)
}

type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer's keys. Tokens are accepted for any client id.
func NewOIDCVerifier(ctx context.Context, issuer string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	return &OIDCVerifier{verifier: provider.Verifier(&oidc.Config{SkipClientIDCheck: true})}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (string, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", err
	}
	var claims struct {
		Sub string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("failed to parse claims: %w", err)
	}
	return claims.Sub, nil
}

// Admin accepts a request carrying the configured x-admin-token, or, when verifier is set, a
// valid bearer token. With neither credential source configured every request is refused.
func Admin(cfg config.AuthConfig, verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	staticToken := []byte(cfg.AdminToken)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(staticToken) == 0 && verifier == nil {
				utils.WriteError(w, "Admin access is not configured", apperr.Unconfigured("no admin credential configured"))
				return
			}

			if presented := r.Header.Get(AdminTokenHeader); presented != "" {
				if len(staticToken) > 0 && subtle.ConstantTimeCompare([]byte(presented), staticToken) == 1 {
					next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey, "admin-token")))
					return
				}
				log.LogSecurity("ADMIN_TOKEN_REJECTED", r.Method+" "+r.URL.Path)
				unauthorized(w, "invalid admin token")
				return
			}

			if verifier != nil {
				raw, err := ExtractTokenFromRequest(r)
				if err != nil {
					unauthorized(w, err.Error())
					return
				}
				sub, err := verifier.Verify(r.Context(), raw)
				if err != nil {
					log.LogSecurity("BEARER_REJECTED", err.Error())
					unauthorized(w, "invalid token")
					return
				}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey, sub)))
				return
			}

			unauthorized(w, "missing admin token")
		})
	}
}

func unauthorized(w http.ResponseWriter, reason string) {
	utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", reason))
}

// Subject returns who passed the admin check, or "" outside an admin route.
func Subject(ctx context.Context) string {
	if sub, ok := ctx.Value(subjectKey).(string); ok {
		return sub
	}
	return ""
}
