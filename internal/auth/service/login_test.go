package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hollowaylabs/gatehouse/internal/auth/domain"
	"github.com/hollowaylabs/gatehouse/internal/auth/store"
	"github.com/hollowaylabs/gatehouse/internal/auth/store/drivers/sqlite"
	"github.com/hollowaylabs/gatehouse/pkg/jwtx"
)

const testIssuer = "gatehouse-test"

// fakeSender records the last code it was asked to deliver.
type fakeSender struct {
	deliver  bool
	err      error
	lastCode string
	lastTo   string
}

func (f *fakeSender) Send(ctx context.Context, code, phoneNumber, ownerID string) (bool, error) {
	f.lastCode = code
	f.lastTo = phoneNumber
	return f.deliver, f.err
}

type testEnv struct {
	store     *sqlite.Store
	signer    *jwtx.Service
	directory *DirectoryService
	twoFactor *TwoFactorService
	refresh   *RefreshTokenService
	mfa       *MFATokenService
	sms       *fakeSender
	login     *LoginService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	signer := jwtx.New(jwtx.Config{
		Key:      "test-signing-key-with-enough-length",
		Issuer:   testIssuer,
		Audience: testIssuer,
		Validity: time.Minute,
	}, logger)

	env := &testEnv{
		store:     st,
		signer:    signer,
		twoFactor: &TwoFactorService{Store: st, Issuer: testIssuer},
		refresh:   &RefreshTokenService{Store: st, Issuer: testIssuer, TTL: time.Hour},
		mfa:       &MFATokenService{Store: st, Issuer: testIssuer, TTL: 5 * time.Minute},
		sms:       &fakeSender{deliver: true},
	}
	env.directory = &DirectoryService{Store: st, TwoFactor: env.twoFactor}
	env.login = &LoginService{
		Store:     st,
		Directory: env.directory,
		Signer:    signer,
		Refresh:   env.refresh,
		MFA:       env.mfa,
		SMS:       env.sms,
	}
	return env
}

func (e *testEnv) registerUser(t *testing.T, p RegisterParams) domain.User {
	t.Helper()
	if p.Password == "" {
		p.Password = "correct horse battery staple"
	}
	u, err := e.directory.Register(context.Background(), p)
	require.NoError(t, err)
	return u
}

func TestPasswordLoginIssuesTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, RegisterParams{
		Email:    "alice@example.com",
		Password: "hunter2hunter2",
		Roles:    []string{"member"},
	})

	res, err := env.login.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "hunter2hunter2"})
	require.NoError(t, err)
	require.False(t, res.MFARequired())
	require.NotNil(t, res.Response)

	require.NotEmpty(t, res.Response.AccessToken)
	require.Equal(t, "Bearer", res.Response.TokenType)
	require.Equal(t, int64(60), res.Response.ExpiresIn)
	require.Equal(t, []string{}, res.Response.Scope)
	require.NotEmpty(t, res.Response.RefreshToken)

	// The access token carries the email claim and verifies.
	claims, err := env.signer.Verify(res.Response.AccessToken)
	require.NoError(t, err)
	require.Contains(t, claims, jwtx.Claim{Type: jwtx.ClaimEmail, Value: "alice@example.com"})
}

func TestPasswordLoginRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, RegisterParams{Email: "bob@example.com", Password: "bobs-password"})

	t.Run("unknown account", func(t *testing.T) {
		_, err := env.login.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "whatever"})
		require.ErrorIs(t, err, ErrLoginFailed)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := env.login.Login(ctx, LoginRequest{Email: "bob@example.com", Password: "not-bobs-password"})
		require.ErrorIs(t, err, ErrLoginFailed)
	})

	t.Run("no usable credentials", func(t *testing.T) {
		_, err := env.login.Login(ctx, LoginRequest{Email: "bob@example.com"})
		require.ErrorIs(t, err, ErrLoginFailed)
	})
}

func TestPasswordLoginStopsAtSecondFactor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerUser(t, RegisterParams{
		Email:            "carol@example.com",
		Password:         "carols-password",
		TwoFactorEnabled: true,
	})

	res, err := env.login.Login(ctx, LoginRequest{Email: "carol@example.com", Password: "carols-password"})
	require.NoError(t, err)
	require.True(t, res.MFARequired())
	require.Nil(t, res.Response)

	// The handle resolves to the account that logged in.
	tok, err := env.mfa.Resolve(ctx, res.MFAToken)
	require.NoError(t, err)
	require.Equal(t, u.ID, tok.OwnerID)

	// No refresh token was minted while the login is pending.
	_, err = env.store.OpaqueTokens().Get(ctx, u.ID, testIssuer, domain.PurposeRefreshToken)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRoleAllowListGatesLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	dan := env.registerUser(t, RegisterParams{Email: "dan@example.com", Password: "dans-password", Roles: []string{"member"}})
	env.registerUser(t, RegisterParams{Email: "erin@example.com", Password: "erins-password", Roles: []string{"member", "staff"}})

	danTokens, err := env.login.Login(ctx, LoginRequest{Email: "dan@example.com", Password: "dans-password"})
	require.NoError(t, err)

	env.login.AllowedRoles = []string{"staff", "admin"}

	_, err = env.login.Login(ctx, LoginRequest{Email: "dan@example.com", Password: "dans-password"})
	require.ErrorIs(t, err, ErrUnauthorized)

	res, err := env.login.Login(ctx, LoginRequest{Email: "erin@example.com", Password: "erins-password"})
	require.NoError(t, err)
	require.NotNil(t, res.Response)

	// The refresh path is gated too, and the rejection happens before the
	// stored token would be consumed.
	_, err = env.login.Login(ctx, LoginRequest{Email: "dan@example.com", RefreshToken: danTokens.Response.RefreshToken})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.store.OpaqueTokens().Get(ctx, dan.ID, testIssuer, domain.PurposeRefreshToken)
	require.NoError(t, err)
}

func TestExtraClaimsAreEmbedded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login.ExtraClaims = &StaticClaimsProvider{
		Claims: []domain.Claim{{Type: "tenant", Value: "hollowaylabs"}},
	}

	u := env.registerUser(t, RegisterParams{Email: "fay@example.com", Password: "fays-password"})

	res, err := env.login.Login(ctx, LoginRequest{Email: "fay@example.com", Password: "fays-password"})
	require.NoError(t, err)

	claims, err := env.signer.Verify(res.Response.AccessToken)
	require.NoError(t, err)
	require.Contains(t, claims, jwtx.Claim{Type: "tenant", Value: "hollowaylabs"})

	// Provider claims are injected per login, not written to the directory.
	// The synthesized email claim is the one that gets persisted.
	stored, err := env.directory.GetClaims(ctx, u.ID)
	require.NoError(t, err)
	require.NotContains(t, stored, domain.Claim{Type: "tenant", Value: "hollowaylabs"})
	require.Contains(t, stored, domain.Claim{Type: jwtx.ClaimEmail, Value: "fay@example.com"})
}

func TestExtraClaimLosesTypeCollision(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.login.ExtraClaims = &StaticClaimsProvider{
		Claims: []domain.Claim{{Type: "department", Value: "injected"}},
	}

	u := env.registerUser(t, RegisterParams{Email: "gus@example.com", Password: "guss-password"})
	require.NoError(t, env.directory.AddClaim(ctx, u.ID, domain.Claim{Type: "department", Value: "bar"}))

	res, err := env.login.Login(ctx, LoginRequest{Email: "gus@example.com", Password: "guss-password"})
	require.NoError(t, err)

	// The directory's claim wins a type collision; the injected value never
	// reaches the token.
	claims, err := env.signer.Verify(res.Response.AccessToken)
	require.NoError(t, err)
	require.Contains(t, claims, jwtx.Claim{Type: "department", Value: "bar"})
	require.NotContains(t, claims, jwtx.Claim{Type: "department", Value: "injected"})
}

func TestRefreshLoginRotatesToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, RegisterParams{Email: "gil@example.com", Password: "gils-password"})

	first, err := env.login.Login(ctx, LoginRequest{Email: "gil@example.com", Password: "gils-password"})
	require.NoError(t, err)

	second, err := env.login.Login(ctx, LoginRequest{
		Email:        "gil@example.com",
		RefreshToken: first.Response.RefreshToken,
	})
	require.NoError(t, err)
	require.NotNil(t, second.Response)
	require.NotEqual(t, first.Response.RefreshToken, second.Response.RefreshToken)

	// The first token was consumed by the exchange.
	_, err = env.login.Login(ctx, LoginRequest{
		Email:        "gil@example.com",
		RefreshToken: first.Response.RefreshToken,
	})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRefreshLoginRequiresEmail(t *testing.T) {
	env := newTestEnv(t)

	// A refresh token with no email matches no login path.
	_, err := env.login.Login(context.Background(), LoginRequest{RefreshToken: "some-token"})
	require.ErrorIs(t, err, ErrLoginFailed)
}

func TestRefreshLoginBurnsStoredTokenOnMismatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, RegisterParams{Email: "hal@example.com", Password: "hals-password"})

	first, err := env.login.Login(ctx, LoginRequest{Email: "hal@example.com", Password: "hals-password"})
	require.NoError(t, err)

	// A wrong guess fails and destroys the stored token.
	_, err = env.login.Login(ctx, LoginRequest{Email: "hal@example.com", RefreshToken: "guessed-value"})
	require.ErrorIs(t, err, ErrUnauthorized)

	// The real token no longer works either.
	_, err = env.login.Login(ctx, LoginRequest{Email: "hal@example.com", RefreshToken: first.Response.RefreshToken})
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestMFALoginExchangesTokenForSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerUser(t, RegisterParams{
		Email:            "iris@example.com",
		Password:         "iris-password",
		PhoneNumber:      "+15550006789",
		TwoFactorEnabled: true,
	})

	pending, err := env.login.Login(ctx, LoginRequest{Email: "iris@example.com", Password: "iris-password"})
	require.NoError(t, err)
	require.True(t, pending.MFARequired())

	code, err := env.twoFactor.GenerateCode(ctx, u.ID)
	require.NoError(t, err)

	res, err := env.login.Login(ctx, LoginRequest{MFAToken: pending.MFAToken, OTP: code})
	require.NoError(t, err)
	require.NotNil(t, res.Response)
	require.NotEmpty(t, res.Response.AccessToken)
	require.NotEmpty(t, res.Response.RefreshToken)
}

func TestMFALoginWrongOTPConsumesToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerUser(t, RegisterParams{
		Email:            "jo@example.com",
		Password:         "jos-password",
		TwoFactorEnabled: true,
	})

	// Give the account a secret so a wrong code is a code problem, not a
	// missing-secret problem.
	_, err := env.twoFactor.GenerateCode(ctx, u.ID)
	require.NoError(t, err)

	pending, err := env.login.Login(ctx, LoginRequest{Email: "jo@example.com", Password: "jos-password"})
	require.NoError(t, err)

	_, err = env.login.Login(ctx, LoginRequest{MFAToken: pending.MFAToken, OTP: "000000"})
	require.ErrorIs(t, err, ErrOTPInvalid)

	// The handle was consumed by the failed attempt; the client must log
	// in with the password again.
	_, err = env.login.Login(ctx, LoginRequest{MFAToken: pending.MFAToken, OTP: "000000"})
	require.ErrorIs(t, err, ErrLoginFailed)
}

func TestMFALoginRejectsUnknownToken(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.login.Login(context.Background(), LoginRequest{MFAToken: "bogus", OTP: "123456"})
	require.ErrorIs(t, err, ErrLoginFailed)
}

func TestChallengeDispatchesSMSCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	u := env.registerUser(t, RegisterParams{
		Email:            "kim@example.com",
		Password:         "kims-password",
		PhoneNumber:      "+15550001122",
		TwoFactorEnabled: true,
	})

	pending, err := env.login.Login(ctx, LoginRequest{Email: "kim@example.com", Password: "kims-password"})
	require.NoError(t, err)

	ch, err := env.login.Challenge(ctx, pending.MFAToken, domain.ChallengeTypeSMS)
	require.NoError(t, err)
	require.Equal(t, domain.ChallengeTypeSMS, ch.ChallengeType)
	require.Equal(t, domain.BindingMethodPrompt, ch.BindingMethod)
	require.Empty(t, ch.OOBCode)
	require.Equal(t, "1122", ch.AdditionalProperties["phonenumber"])

	// The dispatched code is the account's current one-time code.
	require.Equal(t, env.sms.lastTo, "+15550001122")
	ok, err := env.twoFactor.VerifyCode(ctx, u.ID, env.sms.lastCode)
	require.NoError(t, err)
	require.True(t, ok)

	// The handle survives the challenge and still exchanges for a session.
	res, err := env.login.Login(ctx, LoginRequest{MFAToken: pending.MFAToken, OTP: env.sms.lastCode})
	require.NoError(t, err)
	require.NotNil(t, res.Response)
}

func TestChallengeFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, RegisterParams{
		Email:            "lee@example.com",
		Password:         "lees-password",
		TwoFactorEnabled: true,
	})

	pending, err := env.login.Login(ctx, LoginRequest{Email: "lee@example.com", Password: "lees-password"})
	require.NoError(t, err)

	t.Run("unsupported challenge type", func(t *testing.T) {
		_, err := env.login.Challenge(ctx, pending.MFAToken, "carrier-pigeon")
		require.ErrorIs(t, err, ErrUnsupportedChallenge)
	})

	t.Run("empty challenge type", func(t *testing.T) {
		_, err := env.login.Challenge(ctx, pending.MFAToken, "")
		require.ErrorIs(t, err, ErrUnsupportedChallenge)
	})

	t.Run("unknown mfa token", func(t *testing.T) {
		_, err := env.login.Challenge(ctx, "bogus", domain.ChallengeTypeSMS)
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("unknown mfa token outranks unknown type", func(t *testing.T) {
		// Without a live token the caller does not get to learn which
		// challenge types exist.
		_, err := env.login.Challenge(ctx, "bogus", "email")
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("account without phone number", func(t *testing.T) {
		_, err := env.login.Challenge(ctx, pending.MFAToken, domain.ChallengeTypeSMS)
		require.ErrorIs(t, err, ErrChallengeDelivery)
	})
}

func TestChallengeDeliveryFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.sms.deliver = false
	env.registerUser(t, RegisterParams{
		Email:            "mia@example.com",
		Password:         "mias-password",
		PhoneNumber:      "+15550003344",
		TwoFactorEnabled: true,
	})

	pending, err := env.login.Login(ctx, LoginRequest{Email: "mia@example.com", Password: "mias-password"})
	require.NoError(t, err)

	_, err = env.login.Challenge(ctx, pending.MFAToken, domain.ChallengeTypeSMS)
	require.ErrorIs(t, err, ErrChallengeDelivery)
}

func TestLogoutRevokesAllTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, RegisterParams{Email: "nat@example.com", Password: "nats-password"})

	res, err := env.login.Login(ctx, LoginRequest{Email: "nat@example.com", Password: "nats-password"})
	require.NoError(t, err)

	require.NoError(t, env.login.Logout(ctx, "nat@example.com"))

	_, err = env.login.Login(ctx, LoginRequest{Email: "nat@example.com", RefreshToken: res.Response.RefreshToken})
	require.ErrorIs(t, err, ErrUnauthorized)

	t.Run("missing email", func(t *testing.T) {
		require.ErrorIs(t, env.login.Logout(ctx, ""), ErrMissingEmail)
	})

	t.Run("unknown account is a no-op", func(t *testing.T) {
		require.NoError(t, env.login.Logout(ctx, "ghost@example.com"))
	})
}
