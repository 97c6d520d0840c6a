package http

import (
	"errors"
	"net/http"

	"github.com/hollowaylabs/gatehouse/internal/auth/service"
	"github.com/hollowaylabs/gatehouse/pkg/httpx"
	"github.com/hollowaylabs/gatehouse/pkg/slogx"
)

// LogoutHandler serves POST /auth/v1/logout. The account comes from the
// bearer token; all of its refresh and mfa tokens are revoked.
type LogoutHandler struct {
	LoginService *service.LoginService
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	email := httpx.EmailFromContext(ctx)
	if email == "" {
		// The authn middleware injects the email claim; a token without one
		// cannot be tied to an account.
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "token has no email claim")
		return
	}

	if err := h.LoginService.Logout(ctx, email); err != nil {
		if errors.Is(err, service.ErrMissingEmail) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "token has no email claim")
			return
		}
		log.Error("logout failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
