// Package notify delivers outbound SMS replies to customers.
package notify

import (
	"context"
	"strings"
)

// Message is one outbound SMS. ID is filled in by the gateway on success.
type Message struct {
	To   string
	Body string
	From string
	ID   string
}

// Notifier sends a message to a phone. Errors are *errors.AppError values
// carrying CodeNotification; Retryable marks transient failures.
type Notifier interface {
	Send(ctx context.Context, msg *Message) error
}

// NormalizePhone converts phone to international form using countryCode
// (digits only, e.g. "254") for numbers that lack one.
func NormalizePhone(phone, countryCode string) string {
	phone = strings.TrimSpace(phone)
	countryCode = strings.TrimPrefix(countryCode, "+")

	switch {
	case strings.HasPrefix(phone, "+"):
		return phone
	case strings.HasPrefix(phone, "0"):
		return "+" + countryCode + phone[1:]
	case strings.HasPrefix(phone, countryCode):
		return "+" + phone
	default:
		return "+" + countryCode + phone
	}
}
