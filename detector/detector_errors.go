package detector

import "errors"

var (
	// ErrNotReady is returned by Execute when a host command is attempted
	// before detection has settled on a present host runtime.
	ErrNotReady = errors.New("host runtime not ready")

	errNotInstalled = errors.New("host runtime not installed")
)
