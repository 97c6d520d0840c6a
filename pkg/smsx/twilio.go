package smsx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const twilioAPIBase = "https://api.twilio.com/2010-04-01"

// TwilioSender sends codes through the Twilio Messages API.
type TwilioSender struct {
	AccountSID string
	AuthToken  string
	From       string // E.164 sender number

	// HTTPClient is optional; a 10s-timeout client is used when nil.
	HTTPClient *http.Client

	// BaseURL is overridable for tests; defaults to the Twilio API.
	BaseURL string
}

func (s *TwilioSender) Send(ctx context.Context, code, phoneNumber, ownerID string) (bool, error) {
	base := s.BaseURL
	if base == "" {
		base = twilioAPIBase
	}
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", base, url.PathEscape(s.AccountSID))

	form := url.Values{}
	form.Set("To", phoneNumber)
	form.Set("From", s.From)
	form.Set("Body", fmt.Sprintf("Your verification code is %s", code))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.AccountSID, s.AuthToken)

	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	// Twilio answers 201 Created when the message is queued. Any 4xx/5xx
	// counts as not delivered rather than an error; the caller converts
	// that into a challenge failure.
	return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}
