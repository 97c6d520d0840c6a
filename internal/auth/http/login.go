package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hollowaylabs/gatehouse/internal/auth/domain"
	"github.com/hollowaylabs/gatehouse/internal/auth/service"
	"github.com/hollowaylabs/gatehouse/pkg/httpx"
	"github.com/hollowaylabs/gatehouse/pkg/slogx"
)

// LoginHandler serves POST /auth/v1/login. One endpoint covers every
// credential shape: password, refresh token, and mfa token + code.
type LoginHandler struct {
	LoginService *service.LoginService
}

type loginRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
	MFAToken     string `json:"mfa_token"`
	OTP          string `json:"otp"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	result, err := h.LoginService.Login(ctx, service.LoginRequest{
		Email:        strings.TrimSpace(req.Email),
		Password:     req.Password,
		RefreshToken: strings.TrimSpace(req.RefreshToken),
		MFAToken:     strings.TrimSpace(req.MFAToken),
		OTP:          strings.TrimSpace(req.OTP),
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLoginFailed),
			errors.Is(err, service.ErrUnauthorized),
			errors.Is(err, service.ErrOTPInvalid):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "authentication failed")
		default:
			log.Error("login failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	httpx.NoCache(w)

	// A pending second factor is not a rejection: the client holds a live
	// handle and continues via the challenge endpoint.
	if result.MFARequired() {
		httpx.WriteJSON(w, http.StatusForbidden, domain.NewMFARequiredResponse(result.MFAToken))
		return
	}

	httpx.WriteJSON(w, http.StatusOK, result.Response)
}
