package jwtx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrIssuer     = errors.New("jwtx: issuer mismatch")
	ErrAudience   = errors.New("jwtx: audience mismatch")
	ErrExpired    = errors.New("jwtx: token expired")

	// ErrClaimNotFound reports a claim lookup on a token that does not carry it.
	ErrClaimNotFound = errors.New("jwtx: claim not found")
)

// Verify checks signature, issuer, audience and expiry, and returns the
// subject claims on success. An optional "Bearer " prefix is stripped first.
// Expiry failures return ErrExpired so callers can log them apart from other
// invalid tokens; both count as "not valid".
func (s *Service) Verify(token string) ([]Claim, error) {
	raw := stripBearer(token)

	parsed, err := jwt.Parse(raw, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil {
		return nil, classify(err)
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrMalformed
	}
	return subjectClaims(mc), nil
}

// IsValid reports whether Verify would succeed. It never panics and never
// propagates an error; any validation failure, expiry included, yields false.
func (s *Service) IsValid(token string) bool {
	_, err := s.Verify(token)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrExpired):
		s.logger.Debug("token expired")
		return false
	default:
		s.logger.Error("token validation failed", "error", err)
		return false
	}
}

// ExtractEmail reads the email claim without verifying signature or expiry.
// It exists for fast, non-authoritative lookups only; never make an
// authorization decision from its result.
func (s *Service) ExtractEmail(token string) (string, error) {
	raw := stripBearer(token)

	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, mc); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	email, ok := mc[ClaimEmail].(string)
	if !ok {
		return "", ErrClaimNotFound
	}
	return email, nil
}

func (s *Service) keyFunc(*jwt.Token) (any, error) {
	return s.key, nil
}

func stripBearer(token string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
}

// classify maps golang-jwt parse errors onto the package's sentinel set.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuer
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudience
	default:
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
}

// subjectClaims filters the registered JWT claims out, leaving only the
// subject claims that were signed in.
func subjectClaims(mc jwt.MapClaims) []Claim {
	out := make([]Claim, 0, len(mc))
	for k, v := range mc {
		if _, reserved := registeredClaimNames[k]; reserved {
			continue
		}
		val, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, Claim{Type: k, Value: val})
	}
	return out
}
