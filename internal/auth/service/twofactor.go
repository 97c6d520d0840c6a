package service

import (
	"context"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/hollowaylabs/gatehouse/internal/auth/store"
)

const (
	// twoFactorPeriod is the TOTP step in seconds. Codes are delivered over
	// sms, so the skew allows a few steps either side to cover carrier lag.
	twoFactorPeriod = 30
	twoFactorSkew   = 3
)

// TwoFactorService mints and checks the one-time codes behind the sms
// challenge. Each user gets a private TOTP secret the first time a code is
// generated for them; the code itself travels out-of-band.
type TwoFactorService struct {
	Store  store.Store
	Issuer string
}

func (s *TwoFactorService) validateOpts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    twoFactorPeriod,
		Skew:      twoFactorSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// GenerateCode returns the current six-digit code for the user, creating and
// persisting a TOTP secret if the user does not have one yet.
func (s *TwoFactorService) GenerateCode(ctx context.Context, userID string) (string, error) {
	secret, err := s.ensureSecret(ctx, userID)
	if err != nil {
		return "", err
	}
	return totp.GenerateCodeCustom(secret, time.Now().UTC(), s.validateOpts())
}

// VerifyCode checks a presented code against the user's secret. A user with
// no secret has never been issued a code, so nothing can verify.
func (s *TwoFactorService) VerifyCode(ctx context.Context, userID, code string) (bool, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return false, err
	}
	if u.TwoFactorSecret == "" {
		return false, nil
	}
	return totp.ValidateCustom(code, u.TwoFactorSecret, time.Now().UTC(), s.validateOpts())
}

func (s *TwoFactorService) ensureSecret(ctx context.Context, userID string) (string, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u.TwoFactorSecret != "" {
		return u.TwoFactorSecret, nil
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: u.Email,
		Period:      twoFactorPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate two-factor secret: %w", err)
	}

	if err := s.Store.Users().SetTwoFactor(ctx, userID, u.TwoFactorEnabled, key.Secret()); err != nil {
		return "", fmt.Errorf("failed to store two-factor secret: %w", err)
	}
	return key.Secret(), nil
}
