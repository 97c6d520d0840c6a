package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hollowaylabs/gatehouse/internal/auth/service"
	"github.com/hollowaylabs/gatehouse/pkg/httpx"
	"github.com/hollowaylabs/gatehouse/pkg/slogx"
)

// ChallengeHandler serves POST /auth/v1/challenge: it sends a one-time code
// to the account behind a pending mfa token.
type ChallengeHandler struct {
	LoginService *service.LoginService
}

type challengeRequest struct {
	MFAToken      string `json:"mfa_token"`
	ChallengeType string `json:"challenge_type"`
}

func (h *ChallengeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	mfaToken := strings.TrimSpace(req.MFAToken)
	if mfaToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "mfa_token is required")
		return
	}

	resp, err := h.LoginService.Challenge(ctx, mfaToken, strings.TrimSpace(req.ChallengeType))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnauthorized):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_grant", "mfa token not recognised")
		case errors.Is(err, service.ErrUnsupportedChallenge):
			httpx.WriteError(w, http.StatusBadRequest, "unsupported_challenge_type", "only sms challenges are supported")
		case errors.Is(err, service.ErrChallengeDelivery):
			httpx.WriteError(w, http.StatusForbidden, "challenge_failed", "could not deliver a code to this account")
		default:
			log.Error("challenge failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}
