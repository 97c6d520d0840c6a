package domain

import "time"

// Opaque token purposes. A user holds at most one live token per
// (issuer, purpose) pair; saving a new one supersedes the old.
const (
	PurposeRefreshToken = "RefreshToken"
	PurposeMFAToken     = "MfaToken"
)

// OpaqueToken is the stored form of a refresh or mfa token. Only the
// fingerprint is persisted; the raw value exists solely client-side.
type OpaqueToken struct {
	OwnerID     string
	Issuer      string
	Purpose     string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t OpaqueToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// TokenResponse is the payload of a successful login.
type TokenResponse struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	Scope        []string `json:"scope"`
	RefreshToken string   `json:"refresh_token"`
}
