// Package hostwallet defines the capability surface the enclosing wallet
// application exposes to this mini-app: an installation probe, wallet
// authentication, payments, and a best-effort user lookup. The host injects
// itself into the page at an unpredictable time after first paint, so callers
// must gate every command through the detector package rather than calling a
// Runtime directly.
package hostwallet

import (
	"context"
	"time"
)

// Command result statuses reported by the host runtime.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WalletAuthRequest carries the challenge/response parameters for a sign-in.
// The nonce is single-use and server-issued; the time bounds tolerate clock
// skew between the host device and the backend.
type WalletAuthRequest struct {
	Nonce          string
	RequestID      string
	ExpirationTime time.Time
	NotBefore      time.Time
	Statement      string
}

// WalletAuthPayload is the host's answer to a WalletAuth command.
type WalletAuthPayload struct {
	Status    string `json:"status"`
	Address   string `json:"address,omitempty"`
	Signature string `json:"signature,omitempty"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
}

// PayToken is one token leg of a payment command. Amount is kept as a string
// because the host contract transmits token amounts as decimal strings.
type PayToken struct {
	Symbol string `json:"symbol"`
	Amount string `json:"token_amount"`
}

// PayRequest instructs the host to move funds to a recipient. Reference is
// the backend-issued payment id and ties the host transaction back to the
// initiated payment.
type PayRequest struct {
	Reference   string     `json:"reference"`
	To          string     `json:"to"`
	Tokens      []PayToken `json:"tokens"`
	Description string     `json:"description"`
}

// PayPayload is the host's answer to a Pay command.
type PayPayload struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
	ErrorCode     string `json:"code,omitempty"`
}

// UserInfo is the host's view of a wallet owner.
type UserInfo struct {
	Username string `json:"username"`
}

// Runtime is the abstract host wallet application. Implementations bridge to
// whatever transport the real host uses; tests and the demo use
// runtimefakes.FakeRuntime.
type Runtime interface {
	// IsInstalled reports whether the host runtime is present and usable.
	// An error means the probe itself failed, which callers treat as not
	// installed.
	IsInstalled(ctx context.Context) (bool, error)

	// WalletAuth asks the host to sign the challenge, proving control of a
	// wallet address.
	WalletAuth(ctx context.Context, req WalletAuthRequest) (*WalletAuthPayload, error)

	// Pay drives the host's payment rail.
	Pay(ctx context.Context, req PayRequest) (*PayPayload, error)

	// UserByAddress resolves a display name for an address. A nil UserInfo
	// with a nil error means the host does not know the address.
	UserByAddress(ctx context.Context, address string) (*UserInfo, error)
}
