package service

import (
	"context"
	"errors"
	"time"

	"github.com/hollowaylabs/gatehouse/internal/auth/domain"
	"github.com/hollowaylabs/gatehouse/internal/auth/store"
	"github.com/hollowaylabs/gatehouse/pkg/cryptox"
)

// RefreshTokenService mints and redeems the single-use refresh tokens that
// let a session continue without re-entering credentials. A user holds at
// most one live refresh token per issuer; generating a new one supersedes
// the old.
type RefreshTokenService struct {
	Store  store.Store
	Issuer string
	TTL    time.Duration
}

// Generate mints a fresh opaque token for the user and stores its
// fingerprint. The raw value is returned exactly once and never persisted.
func (s *RefreshTokenService) Generate(ctx context.Context, userID string) (string, error) {
	raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	err = s.Store.OpaqueTokens().Save(ctx, domain.OpaqueToken{
		OwnerID:     userID,
		Issuer:      s.Issuer,
		Purpose:     domain.PurposeRefreshToken,
		Fingerprint: cryptox.FingerprintToken(raw),
		ExpiresAt:   now.Add(s.TTL),
		CreatedAt:   now,
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// Validate checks a presented token against the user's stored one. The
// stored token is removed no matter the outcome: a wrong or expired
// presentation burns the live token too, so a guessed value can never be
// retried against it. Callers that accept the token must mint a new one.
func (s *RefreshTokenService) Validate(ctx context.Context, userID, presented string) (bool, error) {
	if presented == "" {
		return false, nil
	}

	var valid bool
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		stored, err := tx.OpaqueTokens().Get(ctx, userID, s.Issuer, domain.PurposeRefreshToken)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}

		if err := tx.OpaqueTokens().Remove(ctx, userID, s.Issuer, domain.PurposeRefreshToken); err != nil {
			return err
		}

		match := cryptox.FingerprintsEqual(stored.Fingerprint, cryptox.FingerprintToken(presented))
		valid = match && !stored.Expired(time.Now().UTC())
		return nil
	})
	if err != nil {
		return false, err
	}
	return valid, nil
}

// Remove revokes the user's live refresh token, if any.
func (s *RefreshTokenService) Remove(ctx context.Context, userID string) error {
	return s.Store.OpaqueTokens().Remove(ctx, userID, s.Issuer, domain.PurposeRefreshToken)
}
