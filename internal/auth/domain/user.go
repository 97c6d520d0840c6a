package domain

import (
	"time"

	"github.com/hollowaylabs/gatehouse/pkg/jwtx"
)

// Claim is a typed attribute attached to a user and embedded in access
// tokens. It is the same type the signing unit consumes.
type Claim = jwtx.Claim

type User struct {
	ID               string
	Email            string
	PhoneNumber      string // optional; required for sms challenges
	PasswordHash     string // argon2 encoded
	TwoFactorEnabled bool
	TwoFactorSecret  string // base32 TOTP secret backing one-time phone codes
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
