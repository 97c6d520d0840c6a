package domain

// MFARequiredResponse is returned when password verification succeeds but
// the account has a second factor enabled. The mfa_token is the handle the
// client presents back alongside a one-time code.
type MFARequiredResponse struct {
	Error    string `json:"error"`
	MFAToken string `json:"mfa_token"`
}

// NewMFARequiredResponse wraps an mfa token in the wire shape clients key on.
func NewMFARequiredResponse(mfaToken string) MFARequiredResponse {
	return MFARequiredResponse{
		Error:    "mfa_required",
		MFAToken: mfaToken,
	}
}

// Challenge types and binding methods understood by the challenge endpoint.
const (
	ChallengeTypeSMS    = "sms"
	BindingMethodPrompt = "prompt"
)

// ChallengeResponse describes a dispatched out-of-band challenge. The
// additional properties carry channel details such as the last digits of
// the phone number the code was sent to.
type ChallengeResponse struct {
	ChallengeType        string            `json:"challenge_type"`
	BindingMethod        string            `json:"binding_method"`
	OOBCode              string            `json:"oob_code"`
	AdditionalProperties map[string]string `json:"additional_properties,omitempty"`
}
