package runtimefakes

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/orblotto/go-wallet-bridge/hostwallet"
)

var _ hostwallet.Runtime = (*FakeRuntime)(nil)

// FakeRuntime is an in-memory host runtime for tests and the demo binary.
// By default it reports installed on the first probe, authenticates any
// wallet auth request against a fixed address, and settles payments with a
// generated transaction id. Behaviour can be overridden per command.
type FakeRuntime struct {
	lock sync.Mutex

	installedAfter int // probes that must fail before IsInstalled reports true
	installErr     error
	probes         int

	address  string
	username string

	authCalls []hostwallet.WalletAuthRequest
	payCalls  []hostwallet.PayRequest

	WalletAuthFn func(ctx context.Context, req hostwallet.WalletAuthRequest) (*hostwallet.WalletAuthPayload, error)
	PayFn        func(ctx context.Context, req hostwallet.PayRequest) (*hostwallet.PayPayload, error)
	UserFn       func(ctx context.Context, address string) (*hostwallet.UserInfo, error)
}

func NewFakeRuntime() *FakeRuntime {
	return &FakeRuntime{
		address: "0xAB12CD34EF56AB12CD34EF56AB12CD34EF56AB12",
	}
}

// SetInstalledAfter makes the next n probes report not installed before the
// runtime appears, simulating a host that injects itself late.
func (f *FakeRuntime) SetInstalledAfter(n int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.installedAfter = n
	f.probes = 0
}

// SetInstallErr makes every probe fail with err.
func (f *FakeRuntime) SetInstallErr(err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.installErr = err
}

// SetAddress sets the wallet address returned by successful auth payloads.
func (f *FakeRuntime) SetAddress(address string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.address = address
}

// SetUsername sets the display name returned by UserByAddress.
func (f *FakeRuntime) SetUsername(username string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.username = username
}

func (f *FakeRuntime) IsInstalled(ctx context.Context) (bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.installErr != nil {
		return false, f.installErr
	}
	f.probes++
	return f.probes > f.installedAfter, nil
}

func (f *FakeRuntime) WalletAuth(ctx context.Context, req hostwallet.WalletAuthRequest) (*hostwallet.WalletAuthPayload, error) {
	f.lock.Lock()
	f.authCalls = append(f.authCalls, req)
	fn := f.WalletAuthFn
	address := f.address
	f.lock.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &hostwallet.WalletAuthPayload{
		Status:    hostwallet.StatusSuccess,
		Address:   address,
		Signature: "0x" + uuid.New().String(),
	}, nil
}

func (f *FakeRuntime) Pay(ctx context.Context, req hostwallet.PayRequest) (*hostwallet.PayPayload, error) {
	f.lock.Lock()
	f.payCalls = append(f.payCalls, req)
	fn := f.PayFn
	f.lock.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &hostwallet.PayPayload{
		Status:        hostwallet.StatusSuccess,
		TransactionID: "0x" + uuid.New().String(),
	}, nil
}

func (f *FakeRuntime) UserByAddress(ctx context.Context, address string) (*hostwallet.UserInfo, error) {
	f.lock.Lock()
	fn := f.UserFn
	username := f.username
	f.lock.Unlock()

	if fn != nil {
		return fn(ctx, address)
	}
	if username == "" {
		return nil, nil
	}
	return &hostwallet.UserInfo{Username: username}, nil
}

// Probes reports how many installation probes have been made.
func (f *FakeRuntime) Probes() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.probes
}

// AuthCalls returns the recorded wallet auth requests.
func (f *FakeRuntime) AuthCalls() []hostwallet.WalletAuthRequest {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]hostwallet.WalletAuthRequest(nil), f.authCalls...)
}

// PayCalls returns the recorded payment requests.
func (f *FakeRuntime) PayCalls() []hostwallet.PayRequest {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]hostwallet.PayRequest(nil), f.payCalls...)
}
