package auth

import (
	"net/http"
	"strings"
	"time"

	apperrors "github.com/chainsafe/xchain-orchestrator/pkg/app/errors"
	apphttp "github.com/chainsafe/xchain-orchestrator/pkg/app/http"
)

// walletLoginMaxAge bounds how old a signed wallet login message may be.
const walletLoginMaxAge = 5 * time.Minute

// Middleware authenticates every request with either a bearer token or an
// EIP-191 signed login (X-Signature and X-Message headers). Wallet callers
// are owners identified by their checksummed address.
func Middleware(v *JWTValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := authenticate(v, r)
			if err != nil {
				apphttp.DefaultErrorHandler(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func authenticate(v *JWTValidator, r *http.Request) (*Principal, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return nil, apperrors.UnAuthorizedError(nil, "bearer token required")
		}
		p, err := v.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			return nil, apperrors.UnAuthorizedError(err, "invalid token")
		}
		return p, nil
	}

	signature, message := r.Header.Get("X-Signature"), r.Header.Get("X-Message")
	if signature == "" || message == "" {
		return nil, apperrors.UnAuthorizedError(nil, "authentication required")
	}
	addr, err := VerifyWalletLogin(message, signature, time.Now(), walletLoginMaxAge)
	if err != nil {
		return nil, apperrors.UnAuthorizedError(err, "invalid signature")
	}
	return &Principal{Subject: addr, Role: RoleOwner}, nil
}

// RequireOperator rejects callers without the operator role.
func RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := PrincipalFromContext(r.Context())
		if !p.IsOperator() {
			apphttp.DefaultErrorHandler(w, apperrors.ForbiddenError(nil, "operator role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
