package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hollowaylabs/gatehouse/internal/auth/domain"
	httpapi "github.com/hollowaylabs/gatehouse/internal/auth/http"
	"github.com/hollowaylabs/gatehouse/internal/auth/service"
	"github.com/hollowaylabs/gatehouse/internal/auth/store/drivers/sqlite"
	"github.com/hollowaylabs/gatehouse/pkg/jwtx"
)

const (
	testIssuer     = "gatehouse-e2e"
	testSigningKey = "e2e-signing-key-0123456789abcdef"
)

// captureSender keeps the last sms code so tests can complete challenges.
type captureSender struct {
	mu       sync.Mutex
	lastCode string
}

func (c *captureSender) Send(ctx context.Context, code, phoneNumber, ownerID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastCode = code
	return true, nil
}

func (c *captureSender) code() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCode
}

type testDeps struct {
	store     *sqlite.Store
	signer    *jwtx.Service
	directory *service.DirectoryService
	login     *service.LoginService
	sms       *captureSender
}

// setupServer boots the full HTTP surface against a fresh database.
func setupServer(t *testing.T) (*httptest.Server, *testDeps) {
	t.Helper()

	st, err := sqlite.NewStore(filepath.Join(t.TempDir(), "e2e.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	signer := jwtx.New(jwtx.Config{
		Key:      testSigningKey,
		Issuer:   testIssuer,
		Audience: testIssuer,
		Validity: time.Minute,
	}, logger)

	twoFactor := &service.TwoFactorService{Store: st, Issuer: testIssuer}
	directory := &service.DirectoryService{Store: st, TwoFactor: twoFactor}
	sms := &captureSender{}

	login := &service.LoginService{
		Store:     st,
		Directory: directory,
		Signer:    signer,
		Refresh:   &service.RefreshTokenService{Store: st, Issuer: testIssuer, TTL: time.Hour},
		MFA:       &service.MFATokenService{Store: st, Issuer: testIssuer, TTL: 5 * time.Minute},
		SMS:       sms,
	}

	router := httpapi.NewRouter(signer, "e2e", st, logger)
	router.LoginService = login
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv, &testDeps{
		store:     st,
		signer:    signer,
		directory: directory,
		login:     login,
		sms:       sms,
	}
}

func registerUser(t *testing.T, deps *testDeps, p service.RegisterParams) domain.User {
	t.Helper()
	u, err := deps.directory.Register(context.Background(), p)
	require.NoError(t, err)
	return u
}

// postJSON sends a JSON request. Each caller supplies a client address so
// scenarios do not share a rate limit bucket.
func postJSON(t *testing.T, url, clientAddr string, body any, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", clientAddr)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}
