// Package jwtx signs and validates the symmetric-key access tokens issued on
// login. Tokens are self-contained HS256 JWTs with a fixed issuer and
// audience; nothing is persisted server-side to verify one.
package jwtx

import (
	"log/slog"
	"time"
)

// Claim is a single (type, value) pair embedded in an access token. Claim
// types must be unique within a token; callers de-duplicate before signing.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// ClaimEmail is the claim type carrying the principal's email address.
const ClaimEmail = "email"

// Config carries the signing parameters. These are process-wide, read-only
// after startup.
type Config struct {
	Key      string        // shared symmetric secret
	Issuer   string        // iss claim, enforced on verify
	Audience string        // aud claim, enforced on verify
	Validity time.Duration // access token lifetime
}

// Service is the signing/verification unit. It is safe for concurrent use.
type Service struct {
	key      []byte
	issuer   string
	audience string
	validity time.Duration
	logger   *slog.Logger
}

// New builds a Service from config. A nil-safe default logger is used when
// logger is nil.
func New(cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		key:      []byte(cfg.Key),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		validity: cfg.Validity,
		logger:   logger,
	}
}

// Validity returns the configured access token lifetime.
func (s *Service) Validity() time.Duration { return s.validity }

// Ready reports whether the service has signing material configured.
func (s *Service) Ready() bool { return len(s.key) > 0 && s.issuer != "" }
