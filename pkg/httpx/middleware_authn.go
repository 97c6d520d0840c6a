package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/hollowaylabs/gatehouse/pkg/jwtx"
	"github.com/hollowaylabs/gatehouse/pkg/slogx"
)

// TokenVerifier validates a presented bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) ([]jwtx.Claim, error)
}

// AuthnMiddleware gates a handler on a valid bearer token. Every failure,
// missing header included, is written as 401 — under this service "not
// authorized" never reads as 403 at the transport boundary.
func AuthnMiddleware(v TokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" {
				writeBearerError(w, "missing bearer token")
				return
			}

			claims, err := v.Verify(authz)
			if err != nil {
				if errors.Is(err, jwtx.ErrExpired) {
					log.Debug("token expired")
				} else {
					log.Warn("token verification failed", "error", err)
				}
				writeBearerError(w, "token verification failed")
				return
			}

			ctx = contextWithAuth(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func contextWithAuth(ctx context.Context, claims []jwtx.Claim) context.Context {
	for _, c := range claims {
		if c.Type == jwtx.ClaimEmail {
			ctx = context.WithValue(ctx, CtxKeyEmail, c.Value)
			break
		}
	}
	return context.WithValue(ctx, CtxKeyClaims, claims)
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
