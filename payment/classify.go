package payment

import "strings"

// Classify maps raw host payment error text onto the error taxonomy by
// substring matching against the fragments the host is known to emit. It is
// best effort, not a guarantee: anything unrecognized becomes the generic
// ErrPayment. Pure function, independent of the orchestrator.
func Classify(rawMessage string) error {
	msg := strings.ToLower(rawMessage)
	switch {
	case strings.Contains(msg, "insufficient"), strings.Contains(msg, "balance"):
		return ErrInsufficientFunds
	case strings.Contains(msg, "user_rejected"), strings.Contains(msg, "rejected"), strings.Contains(msg, "denied"):
		return ErrUserRejected
	default:
		return ErrPayment
	}
}
