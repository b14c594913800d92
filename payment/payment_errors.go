package payment

import "errors"

var (
	// ErrNotConnected means a purchase was attempted without a connected
	// wallet. No network or host call is issued.
	ErrNotConnected = errors.New("wallet not connected")

	// ErrPurchaseInFlight means another purchase sequence is still running.
	ErrPurchaseInFlight = errors.New("purchase already in flight")

	// ErrHostUnavailable means the host runtime never became ready and the
	// production configuration forbids the simulated fallback.
	ErrHostUnavailable = errors.New("host runtime unavailable")

	// ErrInitiation means the backend rejected the payment before any host
	// command was issued. Nothing was charged.
	ErrInitiation = errors.New("payment initiation rejected")

	// ErrVerification means the backend could not confirm a host-settled
	// payment. Funds may have moved; the transaction id is retained for
	// manual reconciliation.
	ErrVerification = errors.New("payment verification failed")

	// ErrInsufficientFunds is a classified host payment failure.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUserRejected is a classified host payment failure.
	ErrUserRejected = errors.New("payment rejected by user")

	// ErrPayment is the generic host payment failure, used when the host's
	// error text matches no known fragment.
	ErrPayment = errors.New("payment failed")
)
