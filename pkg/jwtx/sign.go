package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoClaims is returned when signing is attempted with an empty claim set.
// A token asserting nothing is meaningless and must be rejected, not issued.
var ErrNoClaims = errors.New("jwtx: no claims to sign")

// registeredClaimNames are JWT claims owned by the signer. Subject claims may
// not shadow them.
var registeredClaimNames = map[string]struct{}{
	"iss": {},
	"aud": {},
	"exp": {},
	"iat": {},
	"nbf": {},
	"sub": {},
	"jti": {},
}

// CreateAccessToken signs the given subject claims into an HS256 JWT with the
// configured issuer, audience, and validity window. Duplicate claim types keep
// the first occurrence.
func (s *Service) CreateAccessToken(claims []Claim) (string, error) {
	if len(claims) == 0 {
		return "", ErrNoClaims
	}

	now := time.Now().UTC()
	mc := jwt.MapClaims{
		"iss": s.issuer,
		"aud": s.audience,
		"iat": jwt.NewNumericDate(now),
		"nbf": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(s.validity)),
	}

	for _, c := range claims {
		if _, reserved := registeredClaimNames[c.Type]; reserved {
			continue
		}
		if _, ok := mc[c.Type]; ok {
			continue // first occurrence wins
		}
		mc[c.Type] = c.Value
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mc)
	return token.SignedString(s.key)
}
