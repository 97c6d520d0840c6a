// Package smsx is the delivery channel for one-time codes. The engine only
// cares whether a code was handed to the carrier; delivery receipts are out
// of scope.
package smsx

import (
	"context"
	"log/slog"
)

// Sender delivers a one-time code to a phone number. The returned bool
// reports whether the channel accepted the message; false is a delivery
// failure, not an infrastructure error.
type Sender interface {
	Send(ctx context.Context, code, phoneNumber, ownerID string) (bool, error)
}

// LogSender writes codes to the log instead of sending them. Dev only.
type LogSender struct {
	Logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, code, phoneNumber, ownerID string) (bool, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("sms code (dev sender, not delivered)",
		"owner_id", ownerID,
		"phone_number", MaskPhone(phoneNumber),
		"code", code,
	)
	return true, nil
}

// LastFour returns the trailing four digits of a phone number, or the
// whole value when it is shorter than that. Challenge responses expose
// this instead of the full number.
func LastFour(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return phone[len(phone)-4:]
}

// MaskPhone hides all but the last four digits of a phone number. Logs
// use the masked form.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return "..." + LastFour(phone)
}
