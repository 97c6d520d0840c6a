package httpx

import (
	"context"

	"github.com/hollowaylabs/gatehouse/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyEmail  ctxKey = "email"
	CtxKeyClaims ctxKey = "claims"
)

// EmailFromContext returns the authenticated principal's email, if any.
func EmailFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyEmail).(string); ok {
		return v
	}
	return ""
}

// ClaimsFromContext returns the verified token claims, if any.
func ClaimsFromContext(ctx context.Context) []jwtx.Claim {
	if v, ok := ctx.Value(CtxKeyClaims).([]jwtx.Claim); ok {
		return v
	}
	return nil
}
