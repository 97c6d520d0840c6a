package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hollowaylabs/gatehouse/internal/auth/service"
	"github.com/hollowaylabs/gatehouse/internal/auth/store"
	"github.com/hollowaylabs/gatehouse/pkg/httpx"
	"github.com/hollowaylabs/gatehouse/pkg/jwtx"
	"github.com/hollowaylabs/gatehouse/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     *jwtx.Service
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store        store.Store
	LoginService *service.LoginService
}

func NewRouter(
	verifier *jwtx.Service,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// POST /auth/v1/login - strict rate limit by IP (authentication attempts)
	loginHandler := &LoginHandler{LoginService: r.LoginService}
	r.Mux.Handle("POST /auth/v1/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /auth/v1/challenge - strict rate limit by IP (sends sms)
	challengeHandler := &ChallengeHandler{LoginService: r.LoginService}
	r.Mux.Handle("POST /auth/v1/challenge",
		httpx.Chain(challengeHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /auth/v1/logout - authenticated, moderate rate limit
	logoutHandler := &LogoutHandler{LoginService: r.LoginService}
	r.Mux.Handle("POST /auth/v1/logout",
		httpx.Chain(logoutHandler,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.verifier),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
