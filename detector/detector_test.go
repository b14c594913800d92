package detector_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orblotto/go-wallet-bridge/detector"
	"github.com/orblotto/go-wallet-bridge/hostwallet"
	"github.com/orblotto/go-wallet-bridge/hostwallet/runtimefakes"
)

func fastPolicy() detector.Policy {
	return detector.Policy{
		MaxAttempts:     5,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsed:      time.Second,
	}
}

func newDetector(t *testing.T, runtime *runtimefakes.FakeRuntime) *detector.Detector {
	t.Helper()
	d, err := detector.New(runtime, detector.WithPolicy(fastPolicy()))
	require.NoError(t, err)
	return d
}

func TestNewRequiresRuntime(t *testing.T) {
	_, err := detector.New(nil)
	require.Error(t, err)
}

func TestImmediateProbeReady(t *testing.T) {
	runtime := runtimefakes.NewFakeRuntime()
	d := newDetector(t, runtime)

	d.Start(context.Background())

	require.Equal(t, detector.StateReady, d.State())
	require.True(t, d.Ready())
	require.False(t, d.Detecting())
	require.Equal(t, 1, runtime.Probes())
}

func TestPollingDetectsLateInstall(t *testing.T) {
	runtime := runtimefakes.NewFakeRuntime()
	runtime.SetInstalledAfter(3)
	d := newDetector(t, runtime)

	d.Start(context.Background())
	require.Equal(t, detector.StateDetecting, d.State())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	state, err := d.WaitSettled(ctx)
	require.NoError(t, err)
	require.Equal(t, detector.StateReady, state)

	// Once ready, polling stops and the result never degrades.
	probes := runtime.Probes()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, probes, runtime.Probes())
	require.Equal(t, detector.StateReady, d.State())
}

func TestExhaustedBudgetSettlesNotReady(t *testing.T) {
	runtime := runtimefakes.NewFakeRuntime()
	runtime.SetInstalledAfter(1000)
	d := newDetector(t, runtime)

	d.Start(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	state, err := d.WaitSettled(ctx)
	require.NoError(t, err)
	require.Equal(t, detector.StateNotReady, state)
	require.False(t, d.Detecting())

	// Immediate probe plus the bounded retries.
	require.Equal(t, 1+5, runtime.Probes())

	// The negative result is cached: a remount's Start does not re-poll.
	probes := runtime.Probes()
	d.Start(context.Background())
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, probes, runtime.Probes())
	require.Equal(t, detector.StateNotReady, d.State())
}

func TestProbeFailureIsFailClosed(t *testing.T) {
	runtime := runtimefakes.NewFakeRuntime()
	runtime.SetInstallErr(errors.New("bridge torn down"))
	d := newDetector(t, runtime)

	require.False(t, d.CheckInstalled(context.Background()))

	d.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	state, err := d.WaitSettled(ctx)
	require.NoError(t, err)
	require.Equal(t, detector.StateNotReady, state)
}

func TestExecuteFailsBeforeReady(t *testing.T) {
	runtime := runtimefakes.NewFakeRuntime()
	runtime.SetInstalledAfter(1000)
	d := newDetector(t, runtime)

	invoked := false
	fn := func(ctx context.Context, rt hostwallet.Runtime) (string, error) {
		invoked = true
		return "never", nil
	}

	// Before Start.
	_, err := detector.Execute(context.Background(), d, fn)
	require.ErrorIs(t, err, detector.ErrNotReady)

	// After the budget is exhausted.
	d.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, waitErr := d.WaitSettled(ctx)
	require.NoError(t, waitErr)

	_, err = detector.Execute(context.Background(), d, fn)
	require.ErrorIs(t, err, detector.ErrNotReady)
	require.False(t, invoked)
}

func TestExecuteInvokesCommandWhenReady(t *testing.T) {
	runtime := runtimefakes.NewFakeRuntime()
	d := newDetector(t, runtime)
	d.Start(context.Background())

	out, err := detector.Execute(context.Background(), d, func(ctx context.Context, rt hostwallet.Runtime) (string, error) {
		return "ran", nil
	})
	require.NoError(t, err)
	require.Equal(t, "ran", out)
}

func TestExecuteSurfacesCommandFailure(t *testing.T) {
	runtime := runtimefakes.NewFakeRuntime()
	d := newDetector(t, runtime)
	d.Start(context.Background())

	boom := errors.New("host command exploded")
	_, err := detector.Execute(context.Background(), d, func(ctx context.Context, rt hostwallet.Runtime) (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)
}

func TestRearmAllowsRedetection(t *testing.T) {
	runtime := runtimefakes.NewFakeRuntime()
	runtime.SetInstalledAfter(1000)
	d := newDetector(t, runtime)

	d.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	state, err := d.WaitSettled(ctx)
	require.NoError(t, err)
	require.Equal(t, detector.StateNotReady, state)

	// The host appears late; a rearmed detector finds it.
	runtime.SetInstalledAfter(0)
	d.Rearm()
	d.Start(context.Background())
	require.Equal(t, detector.StateReady, d.State())
}

func TestRearmNeverDiscardsPositiveResult(t *testing.T) {
	runtime := runtimefakes.NewFakeRuntime()
	d := newDetector(t, runtime)
	d.Start(context.Background())
	require.Equal(t, detector.StateReady, d.State())

	d.Rearm()
	require.Equal(t, detector.StateReady, d.State())
}

func TestStopCancelsPolling(t *testing.T) {
	runtime := runtimefakes.NewFakeRuntime()
	runtime.SetInstalledAfter(1000)
	d, err := detector.New(runtime, detector.WithPolicy(detector.Policy{
		MaxAttempts:     100,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		MaxElapsed:      time.Minute,
	}))
	require.NoError(t, err)

	d.Start(context.Background())
	d.Stop()
	time.Sleep(20 * time.Millisecond)

	probes := runtime.Probes()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, probes, runtime.Probes())
	require.NotEqual(t, detector.StateNotReady, d.State())
}
