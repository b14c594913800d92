package payment

// AttemptState is a purchase attempt's position in its lifecycle. No state
// is ever re-entered: a retried purchase is a brand-new attempt with a fresh
// payment id.
type AttemptState int

const (
	AttemptIdle AttemptState = iota
	AttemptInitiating
	AttemptAwaitingHostPayment
	AttemptVerifying
	AttemptCompleted
	AttemptFailed
)

func (s AttemptState) String() string {
	switch s {
	case AttemptIdle:
		return "idle"
	case AttemptInitiating:
		return "initiating"
	case AttemptAwaitingHostPayment:
		return "awaiting_host_payment"
	case AttemptVerifying:
		return "verifying"
	case AttemptCompleted:
		return "completed"
	case AttemptFailed:
		return "failed"
	}
	return "unknown"
}

// Attempt records one purchase attempt. HostTransactionID survives a failed
// verification so the charge can be reconciled manually.
type Attempt struct {
	State             AttemptState
	PaymentID         string
	HostTransactionID string
	FailureReason     string
}

func (a *Attempt) fail(reason error) {
	a.State = AttemptFailed
	if reason != nil {
		a.FailureReason = reason.Error()
	}
}
