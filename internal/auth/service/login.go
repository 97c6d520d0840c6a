package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hollowaylabs/gatehouse/internal/auth/domain"
	"github.com/hollowaylabs/gatehouse/internal/auth/store"
	"github.com/hollowaylabs/gatehouse/pkg/jwtx"
	"github.com/hollowaylabs/gatehouse/pkg/slogx"
	"github.com/hollowaylabs/gatehouse/pkg/smsx"
)

var (
	// ErrLoginFailed is the single answer for every rejected login:
	// unknown account, wrong password, bad or consumed refresh token.
	// Callers learn nothing about which check failed.
	ErrLoginFailed = errors.New("login_failed")

	// ErrUnauthorized means the account authenticated but is not allowed in
	// (e.g. holds none of the permitted roles).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrOTPInvalid means the mfa token resolved but the one-time code was
	// wrong. The token is already consumed by then; the client restarts
	// from a password login.
	ErrOTPInvalid = errors.New("invalid_otp")

	ErrUnsupportedChallenge = errors.New("unsupported_challenge_type")
	ErrChallengeDelivery    = errors.New("challenge_delivery_failed")

	// ErrMissingEmail marks a verified token that carries no email claim, so
	// it cannot be tied to an account.
	ErrMissingEmail = errors.New("missing_email")
)

// LoginRequest carries every credential shape the login endpoint accepts.
// Which fields are set decides the path taken.
type LoginRequest struct {
	Email        string
	Password     string
	RefreshToken string
	MFAToken     string
	OTP          string
}

// LoginResult is either a minted token response or a signal that a second
// factor is still required. Exactly one of the two fields is set.
type LoginResult struct {
	Response *domain.TokenResponse
	MFAToken string
}

// MFARequired reports whether the login stopped at the second-factor gate.
func (r LoginResult) MFARequired() bool { return r.MFAToken != "" }

// ExtraClaimsProvider supplies claims to attach to a user at login time, on
// top of whatever the directory already stores for them.
type ExtraClaimsProvider interface {
	ClaimsFor(ctx context.Context, user domain.User) ([]domain.Claim, error)
}

// StaticClaimsProvider attaches the same fixed claims to every user.
type StaticClaimsProvider struct {
	Claims []domain.Claim
}

func (p *StaticClaimsProvider) ClaimsFor(ctx context.Context, user domain.User) ([]domain.Claim, error) {
	return p.Claims, nil
}

// LoginService is the decision core: it dispatches a login request to the
// password, refresh or mfa path and assembles the token response.
type LoginService struct {
	Store     store.Store
	Directory UserDirectory
	Signer    *jwtx.Service
	Refresh   *RefreshTokenService
	MFA       *MFATokenService
	SMS       smsx.Sender

	// ExtraClaims is optional. When set, its claims are added to the access
	// token on every login without being written to the directory.
	ExtraClaims ExtraClaimsProvider

	// AllowedRoles, when non-empty, restricts login to users holding at
	// least one of the listed roles.
	AllowedRoles []string
}

// Login authenticates a request. Paths are tried in a fixed priority:
// a pending mfa exchange first, then a refresh token, then a password.
// Whichever path matches is the only one consulted.
func (s *LoginService) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	switch {
	case req.MFAToken != "":
		return s.loginWithMFAToken(ctx, req)
	case req.Email != "" && req.RefreshToken != "":
		return s.loginWithRefreshToken(ctx, req)
	case req.Email != "" && req.Password != "":
		return s.loginWithPassword(ctx, req)
	default:
		return LoginResult{}, ErrLoginFailed
	}
}

func (s *LoginService) loginWithPassword(ctx context.Context, req LoginRequest) (LoginResult, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Directory.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("password login for unknown account", slog.String("email", req.Email))
			return LoginResult{}, ErrLoginFailed
		}
		return LoginResult{}, err
	}

	ok, err := s.Directory.CheckPassword(ctx, user, req.Password)
	if err != nil {
		return LoginResult{}, err
	}
	if !ok {
		l.Info("password verification failed", slog.String("user_id", user.ID))
		return LoginResult{}, ErrLoginFailed
	}

	if err := s.checkAllowedRoles(ctx, user.ID); err != nil {
		return LoginResult{}, err
	}

	if user.TwoFactorEnabled {
		mfaToken, err := s.MFA.Issue(ctx, user.ID)
		if err != nil {
			return LoginResult{}, err
		}
		l.Info("second factor required", slog.String("user_id", user.ID))
		return LoginResult{MFAToken: mfaToken}, nil
	}

	return s.issueTokens(ctx, user)
}

func (s *LoginService) loginWithRefreshToken(ctx context.Context, req LoginRequest) (LoginResult, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Directory.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("refresh login for unknown account", slog.String("email", req.Email))
			return LoginResult{}, ErrLoginFailed
		}
		return LoginResult{}, err
	}

	// Role gating happens before validation so a disallowed account does not
	// burn its stored token on the attempt.
	if err := s.checkAllowedRoles(ctx, user.ID); err != nil {
		return LoginResult{}, err
	}

	valid, err := s.Refresh.Validate(ctx, user.ID, req.RefreshToken)
	if err != nil {
		return LoginResult{}, err
	}
	if !valid {
		l.Info("refresh token rejected", slog.String("user_id", user.ID))
		return LoginResult{}, ErrUnauthorized
	}

	// The presented token is consumed; issueTokens mints the replacement.
	return s.issueTokens(ctx, user)
}

func (s *LoginService) loginWithMFAToken(ctx context.Context, req LoginRequest) (LoginResult, error) {
	l := slogx.FromContext(ctx)

	tok, err := s.MFA.Consume(ctx, req.MFAToken)
	if err != nil {
		if errors.Is(err, ErrMFATokenInvalid) {
			l.Info("mfa token rejected")
			return LoginResult{}, ErrLoginFailed
		}
		return LoginResult{}, err
	}

	user, err := s.Directory.FindByID(ctx, tok.OwnerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, ErrLoginFailed
		}
		return LoginResult{}, err
	}

	ok, err := s.Directory.VerifyTwoFactorCode(ctx, user.ID, req.OTP)
	if err != nil {
		return LoginResult{}, err
	}
	if !ok {
		l.Info("otp verification failed", slog.String("user_id", user.ID))
		return LoginResult{}, ErrOTPInvalid
	}

	return s.issueTokens(ctx, user)
}

// Challenge dispatches a one-time code for a pending login. The mfa token
// stays live so the client can exchange it once the code arrives.
func (s *LoginService) Challenge(ctx context.Context, mfaToken, challengeType string) (domain.ChallengeResponse, error) {
	l := slogx.FromContext(ctx)

	tok, err := s.MFA.Resolve(ctx, mfaToken)
	if err != nil {
		if errors.Is(err, ErrMFATokenInvalid) {
			return domain.ChallengeResponse{}, ErrUnauthorized
		}
		return domain.ChallengeResponse{}, err
	}

	user, err := s.Directory.FindByID(ctx, tok.OwnerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ChallengeResponse{}, ErrUnauthorized
		}
		return domain.ChallengeResponse{}, err
	}

	// The caller must hold a live token before learning which challenge
	// types exist. Only sms challenges do; an empty type is not a default,
	// it is a request for nothing.
	if challengeType != domain.ChallengeTypeSMS {
		return domain.ChallengeResponse{}, ErrUnsupportedChallenge
	}

	if user.PhoneNumber == "" {
		l.Warn("sms challenge requested for account without phone number", slog.String("user_id", user.ID))
		return domain.ChallengeResponse{}, ErrChallengeDelivery
	}

	code, err := s.Directory.GenerateTwoFactorCode(ctx, user.ID)
	if err != nil {
		return domain.ChallengeResponse{}, err
	}

	delivered, err := s.SMS.Send(ctx, code, user.PhoneNumber, user.ID)
	if err != nil {
		return domain.ChallengeResponse{}, fmt.Errorf("failed to send challenge: %w", err)
	}
	if !delivered {
		l.Warn("sms challenge not delivered", slog.String("user_id", user.ID))
		return domain.ChallengeResponse{}, ErrChallengeDelivery
	}

	l.Info("sms challenge dispatched",
		slog.String("user_id", user.ID),
		slog.String("phone_number", smsx.MaskPhone(user.PhoneNumber)),
	)

	return domain.ChallengeResponse{
		ChallengeType: domain.ChallengeTypeSMS,
		BindingMethod: domain.BindingMethodPrompt,
		OOBCode:       "",
		AdditionalProperties: map[string]string{
			"phonenumber": smsx.LastFour(user.PhoneNumber),
		},
	}, nil
}

// Logout revokes every token the account holds, refresh and pending mfa
// alike. Logging out an unknown account is a no-op.
func (s *LoginService) Logout(ctx context.Context, email string) error {
	if email == "" {
		return ErrMissingEmail
	}

	user, err := s.Directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	return s.Store.OpaqueTokens().RemoveForOwner(ctx, user.ID)
}

// checkAllowedRoles enforces the optional role allow-list. Both email-based
// paths call it before anything is issued or consumed; the mfa path does not,
// because its token could only have been minted after this check passed.
func (s *LoginService) checkAllowedRoles(ctx context.Context, userID string) error {
	if len(s.AllowedRoles) == 0 {
		return nil
	}

	roles, err := s.Directory.GetRoles(ctx, userID)
	if err != nil {
		return err
	}
	if !anyRoleAllowed(roles, s.AllowedRoles) {
		slogx.FromContext(ctx).Info("login rejected by role allow-list", slog.String("user_id", userID))
		return ErrUnauthorized
	}
	return nil
}

// issueTokens assembles the response every successful path converges on:
// an access token over the user's claims plus a fresh refresh token.
func (s *LoginService) issueTokens(ctx context.Context, user domain.User) (LoginResult, error) {
	l := slogx.FromContext(ctx)

	claims, err := s.collectClaims(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	access, err := s.Signer.CreateAccessToken(claims)
	if err != nil {
		return LoginResult{}, err
	}

	refresh, err := s.Refresh.Generate(ctx, user.ID)
	if err != nil {
		return LoginResult{}, err
	}

	l.Info("login succeeded", slog.String("user_id", user.ID))

	return LoginResult{
		Response: &domain.TokenResponse{
			AccessToken:  access,
			TokenType:    "Bearer",
			ExpiresIn:    int64(s.Signer.Validity() / time.Second),
			Scope:        []string{},
			RefreshToken: refresh,
		},
	}, nil
}

// collectClaims merges stored claims, the email claim and provider claims.
// Stored claims de-duplicate by type, first wins. A missing email claim is
// synthesized from the user record and persisted so later sessions carry it.
// Provider claims are appended per login, never persisted.
func (s *LoginService) collectClaims(ctx context.Context, user domain.User) ([]domain.Claim, error) {
	stored, err := s.Directory.GetClaims(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(stored))
	claims := make([]domain.Claim, 0, len(stored)+1)
	for _, c := range stored {
		if _, ok := seen[c.Type]; ok {
			continue
		}
		seen[c.Type] = struct{}{}
		claims = append(claims, c)
	}

	if _, ok := seen[jwtx.ClaimEmail]; !ok {
		if user.Email == "" {
			return nil, errors.New("user has no email address")
		}
		c := domain.Claim{Type: jwtx.ClaimEmail, Value: user.Email}
		if err := s.Directory.AddClaim(ctx, user.ID, c); err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}

	if s.ExtraClaims != nil {
		extra, err := s.ExtraClaims.ClaimsFor(ctx, user)
		if err != nil {
			return nil, err
		}
		claims = append(claims, extra...)
	}

	return claims, nil
}

func anyRoleAllowed(held, allowed []string) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}
	for _, r := range held {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}
