package service

import (
	"context"
	"errors"
	"time"

	"github.com/hollowaylabs/gatehouse/internal/auth/domain"
	"github.com/hollowaylabs/gatehouse/internal/auth/store"
	"github.com/hollowaylabs/gatehouse/pkg/cryptox"
)

// ErrMFATokenInvalid covers every way a presented mfa token can fail:
// unknown, already used, or expired. Callers get no finer detail.
var ErrMFATokenInvalid = errors.New("invalid_mfa_token")

// MFATokenService manages the short-lived handle a client holds between a
// correct password and a verified second factor. The handle is opaque; only
// its fingerprint is stored.
type MFATokenService struct {
	Store  store.Store
	Issuer string
	TTL    time.Duration
}

// Issue mints an mfa token for the user. Re-issuing supersedes any pending
// one, so a second password login restarts the challenge window.
func (s *MFATokenService) Issue(ctx context.Context, userID string) (string, error) {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	err = s.Store.OpaqueTokens().Save(ctx, domain.OpaqueToken{
		OwnerID:     userID,
		Issuer:      s.Issuer,
		Purpose:     domain.PurposeMFAToken,
		Fingerprint: cryptox.FingerprintToken(raw),
		ExpiresAt:   now.Add(s.TTL),
		CreatedAt:   now,
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// Resolve looks up the owner of a presented token without consuming it.
// Used by the challenge endpoint, which may be called more than once for
// the same pending login (e.g. to resend a code).
func (s *MFATokenService) Resolve(ctx context.Context, presented string) (domain.OpaqueToken, error) {
	tok, err := s.Store.OpaqueTokens().FindByValue(
		ctx, s.Issuer, domain.PurposeMFAToken, cryptox.FingerprintToken(presented))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.OpaqueToken{}, ErrMFATokenInvalid
		}
		return domain.OpaqueToken{}, err
	}
	if tok.Expired(time.Now().UTC()) {
		return domain.OpaqueToken{}, ErrMFATokenInvalid
	}
	return tok, nil
}

// Consume atomically redeems a presented token and returns it. Exactly one
// of two concurrent redemptions of the same token can succeed. An expired
// token is still removed but does not resolve.
func (s *MFATokenService) Consume(ctx context.Context, presented string) (domain.OpaqueToken, error) {
	tok, err := s.Store.OpaqueTokens().ConsumeByValue(
		ctx, s.Issuer, domain.PurposeMFAToken, cryptox.FingerprintToken(presented))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.OpaqueToken{}, ErrMFATokenInvalid
		}
		return domain.OpaqueToken{}, err
	}
	if tok.Expired(time.Now().UTC()) {
		return domain.OpaqueToken{}, ErrMFATokenInvalid
	}
	return tok, nil
}

// Remove revokes the user's pending mfa token, if any.
func (s *MFATokenService) Remove(ctx context.Context, userID string) error {
	return s.Store.OpaqueTokens().Remove(ctx, userID, s.Issuer, domain.PurposeMFAToken)
}
