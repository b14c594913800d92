// Package detector answers "can we safely call host commands right now?"
// without blocking the caller indefinitely. The host runtime installs itself
// asynchronously after first paint, so a one-shot probe produces false
// negatives that would permanently block every wallet feature. The detector
// runs a bounded polling schedule and caches the outcome: a positive result
// is permanent for the process lifetime, and a negative result is cached once
// the retry budget is exhausted so repeated UI mounts never re-poll.
package detector

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/orblotto/go-wallet-bridge/hostwallet"
)

// State is the detection state machine position.
type State int

const (
	// StateIdle means detection has not started.
	StateIdle State = iota
	// StateDetecting means polling is in progress.
	StateDetecting
	// StateReady means the host runtime is confirmed present. Terminal.
	StateReady
	// StateNotReady means the retry budget was exhausted without a positive
	// probe. Terminal until Rearm.
	StateNotReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDetecting:
		return "detecting"
	case StateReady:
		return "ready"
	case StateNotReady:
		return "not_ready"
	}
	return "unknown"
}

// Policy bounds the polling schedule: a fast initial cadence backing off to
// MaxInterval, stopping after MaxAttempts re-probes or MaxElapsed wall clock,
// whichever comes first. The immediate probe made by Start is not counted.
type Policy struct {
	MaxAttempts     uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultPolicy matches the cadence the mini-app shipped with: roughly one
// probe a second for up to ten attempts, capped at twelve seconds.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     10,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsed:      12 * time.Second,
	}
}

// Detector owns the process-wide host session state. Create one at startup
// and share it; all transitions go through its own methods.
type Detector struct {
	runtime hostwallet.Runtime
	policy  Policy
	log     zerolog.Logger

	lock    sync.Mutex
	state   State
	started bool
	cancel  context.CancelFunc
	settled chan struct{}
}

// Option configures a Detector.
type Option func(*Detector)

// WithPolicy overrides the polling schedule.
func WithPolicy(p Policy) Option {
	return func(d *Detector) {
		d.policy = p
	}
}

// WithLogger attaches a logger. Probe failures are logged here and folded
// into a negative result, never surfaced to callers.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Detector) {
		d.log = log
	}
}

// New creates a Detector for the given host runtime.
func New(runtime hostwallet.Runtime, options ...Option) (*Detector, error) {
	if runtime == nil {
		return nil, errors.New("[detector.New] runtime is required")
	}
	d := &Detector{
		runtime: runtime,
		policy:  DefaultPolicy(),
		log:     zerolog.Nop(),
		state:   StateIdle,
		settled: make(chan struct{}),
	}
	for _, opt := range options {
		opt(d)
	}
	return d, nil
}

// CheckInstalled queries the host's installation probe. A probe failure is
// treated as not installed: it is logged and never raised to the caller.
func (d *Detector) CheckInstalled(ctx context.Context) bool {
	installed, err := d.runtime.IsInstalled(ctx)
	if err != nil {
		d.log.Warn().Err(err).Msg("host installation probe failed, treating as not installed")
		return false
	}
	return installed
}

// Start begins detection. The first probe runs synchronously so a host that
// is already present is Ready before Start returns; otherwise polling
// continues in the background until the policy is exhausted or ctx is
// cancelled. Once a result is cached, Start is a no-op.
func (d *Detector) Start(ctx context.Context) {
	d.lock.Lock()
	if d.started || d.state == StateReady || d.state == StateNotReady {
		d.lock.Unlock()
		return
	}
	d.started = true
	d.state = StateDetecting
	d.lock.Unlock()

	if d.CheckInstalled(ctx) {
		d.settle(StateReady)
		return
	}

	pollCtx, cancel := context.WithCancel(ctx)
	d.lock.Lock()
	d.cancel = cancel
	d.lock.Unlock()

	go d.poll(pollCtx)
}

func (d *Detector) poll(ctx context.Context) {
	if d.policy.MaxAttempts == 0 {
		d.settle(StateNotReady)
		return
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.policy.InitialInterval
	b.MaxInterval = d.policy.MaxInterval
	b.MaxElapsedTime = d.policy.MaxElapsed
	b.RandomizationFactor = 0

	probe := func() error {
		if d.CheckInstalled(ctx) {
			return nil
		}
		return errNotInstalled
	}

	// backoff counts retries after the first call, so the polling loop makes
	// exactly MaxAttempts probes in total.
	err := backoff.Retry(probe, backoff.WithContext(backoff.WithMaxRetries(b, d.policy.MaxAttempts-1), ctx))
	if err == nil {
		d.settle(StateReady)
		return
	}
	if ctx.Err() != nil {
		// The owning context is gone; leave the state alone rather than
		// caching a negative result that never had its full retry budget.
		return
	}
	d.log.Info().
		Uint64("max_attempts", d.policy.MaxAttempts).
		Dur("max_elapsed", d.policy.MaxElapsed).
		Msg("host runtime not detected, caching negative result")
	d.settle(StateNotReady)
}

func (d *Detector) settle(terminal State) {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.state == StateReady || d.state == StateNotReady {
		return
	}
	d.state = terminal
	close(d.settled)
}

// State returns the current detection state.
func (d *Detector) State() State {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.state
}

// Ready reports whether host commands may be issued.
func (d *Detector) Ready() bool {
	return d.State() == StateReady
}

// Detecting reports whether polling is still in progress.
func (d *Detector) Detecting() bool {
	return d.State() == StateDetecting
}

// WaitSettled blocks until detection reaches a terminal state or ctx is done.
func (d *Detector) WaitSettled(ctx context.Context) (State, error) {
	d.lock.Lock()
	settled := d.settled
	d.lock.Unlock()

	select {
	case <-settled:
		return d.State(), nil
	case <-ctx.Done():
		return d.State(), ctx.Err()
	}
}

// Stop cancels any in-flight polling, for when the owning surface goes away
// mid-detection. A settled state is untouched; an interrupted detection may
// be started again with its full retry budget.
func (d *Detector) Stop() {
	d.lock.Lock()
	cancel := d.cancel
	d.cancel = nil
	if d.state == StateDetecting {
		d.state = StateIdle
		d.started = false
	}
	d.lock.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Rearm discards a cached negative result so detection can run again, for
// surfaces that offer an explicit retry. A cached positive result is never
// discarded: a session that was ready cannot spuriously become not ready.
func (d *Detector) Rearm() {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.state != StateNotReady {
		return
	}
	d.state = StateIdle
	d.started = false
	d.settled = make(chan struct{})
}

// Execute invokes fn with the host runtime, failing with ErrNotReady before
// fn runs if detection has not settled on a present host. Command-level
// failures are logged and surfaced to the caller; only installation-check
// failures are fail-closed.
func Execute[T any](ctx context.Context, d *Detector, fn func(ctx context.Context, rt hostwallet.Runtime) (T, error)) (T, error) {
	var zero T
	if d.State() != StateReady {
		return zero, ErrNotReady
	}
	out, err := fn(ctx, d.runtime)
	if err != nil {
		d.log.Error().Err(err).Msg("host command failed")
		return zero, errors.Wrap(err, "[detector.Execute] host command")
	}
	return out, nil
}
