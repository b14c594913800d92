package signin

import "errors"

var (
	// ErrHostRejected means the host runtime refused the wallet auth
	// command. There is no silent fallback; the user must retry.
	ErrHostRejected = errors.New("host rejected wallet authentication")

	// ErrSignatureInvalid means the backend could not verify the signed
	// payload. The consumed nonce is dead; a retry fetches a fresh one.
	ErrSignatureInvalid = errors.New("wallet signature invalid")

	// ErrHostUnavailable means detection settled without a host runtime and
	// the production configuration forbids the degraded fallback.
	ErrHostUnavailable = errors.New("host runtime unavailable")
)
