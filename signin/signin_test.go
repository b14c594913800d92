package signin_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/orblotto/go-wallet-bridge/backend"
	"github.com/orblotto/go-wallet-bridge/detector"
	"github.com/orblotto/go-wallet-bridge/hostwallet"
	"github.com/orblotto/go-wallet-bridge/hostwallet/runtimefakes"
	"github.com/orblotto/go-wallet-bridge/internal/stubapi"
	"github.com/orblotto/go-wallet-bridge/lotto"
	"github.com/orblotto/go-wallet-bridge/lotto/storefake"
	"github.com/orblotto/go-wallet-bridge/signin"
	"github.com/orblotto/go-wallet-bridge/wallet"
)

type fixture struct {
	runtime *runtimefakes.FakeRuntime
	wallet  *wallet.Store
	users   *storefake.FakeStore
	orch    *signin.Orchestrator
}

type fixtureOptions struct {
	production bool
	hostAbsent bool
	handler    http.Handler // defaults to the stub backend
}

func setup(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()

	handler := opts.handler
	if handler == nil {
		handler = stubapi.New()
	}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	runtime := runtimefakes.NewFakeRuntime()
	if opts.hostAbsent {
		runtime.SetInstalledAfter(1000)
	}
	det, err := detector.New(runtime, detector.WithPolicy(detector.Policy{
		MaxAttempts:     2,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		MaxElapsed:      time.Second,
	}))
	require.NoError(t, err)
	det.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = det.WaitSettled(ctx)
	require.NoError(t, err)

	store := wallet.NewStore()
	users := storefake.NewFakeStore()

	orch, err := signin.New(signin.Deps{
		Detector: det,
		Wallet:   store,
		Backend:  backend.New(server.URL),
		Users:    users,
	}, signin.WithProduction(opts.production))
	require.NoError(t, err)

	return &fixture{runtime: runtime, wallet: store, users: users, orch: orch}
}

func TestSignInHappyPath(t *testing.T) {
	f := setup(t, fixtureOptions{production: true})
	f.runtime.SetAddress("0xAB12CD34 (Dev Mode)")
	f.runtime.SetUsername("alice")

	require.NoError(t, f.orch.SignIn(context.Background()))

	session := f.wallet.Snapshot()
	require.True(t, session.Connected)
	require.Equal(t, "0xab12cd34", session.Address)
	require.Equal(t, "alice", session.DisplayName)

	user := f.orch.User()
	require.NotNil(t, user)
	require.Equal(t, "0xab12cd34", user.WalletAddress)
	require.Equal(t, "alice", user.Username)
	require.Equal(t, 1, f.users.UserCount())

	// The auth request carried the challenge parameters.
	authCalls := f.runtime.AuthCalls()
	require.Len(t, authCalls, 1)
	require.NotEmpty(t, authCalls[0].Nonce)
	require.NotEmpty(t, authCalls[0].RequestID)
	require.True(t, authCalls[0].ExpirationTime.After(time.Now()))
	require.True(t, authCalls[0].NotBefore.Before(time.Now()))
	require.NotEmpty(t, authCalls[0].Statement)
}

func TestRepeatedSignInDoesNotDuplicateUsers(t *testing.T) {
	f := setup(t, fixtureOptions{production: true})
	f.runtime.SetAddress("0xAB12CD34")

	require.NoError(t, f.orch.SignIn(context.Background()))
	require.NoError(t, f.orch.SignIn(context.Background()))

	require.Equal(t, 1, f.users.UserCount())
}

func TestEachAttemptFetchesFreshNonce(t *testing.T) {
	f := setup(t, fixtureOptions{production: true})

	require.NoError(t, f.orch.SignIn(context.Background()))
	require.NoError(t, f.orch.SignIn(context.Background()))

	authCalls := f.runtime.AuthCalls()
	require.Len(t, authCalls, 2)
	require.NotEqual(t, authCalls[0].Nonce, authCalls[1].Nonce)
}

func TestHostRejectionFailsWithoutFallback(t *testing.T) {
	f := setup(t, fixtureOptions{production: true})
	f.runtime.WalletAuthFn = func(ctx context.Context, req hostwallet.WalletAuthRequest) (*hostwallet.WalletAuthPayload, error) {
		return &hostwallet.WalletAuthPayload{Status: hostwallet.StatusError, ErrorCode: "user_cancelled"}, nil
	}

	err := f.orch.SignIn(context.Background())
	require.ErrorIs(t, err, signin.ErrHostRejected)
	require.False(t, f.wallet.Snapshot().Connected)
	require.Zero(t, f.users.UserCount())
}

func TestInvalidSignatureNeverMutatesSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/nonce", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"nonce": "n-123"})
	})
	mux.HandleFunc("/api/complete-siwe", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok", "isValid": false})
	})
	f := setup(t, fixtureOptions{production: true, handler: mux})

	err := f.orch.SignIn(context.Background())
	require.ErrorIs(t, err, signin.ErrSignatureInvalid)
	require.False(t, f.wallet.Snapshot().Connected)
	require.Empty(t, f.wallet.Snapshot().Address)
	require.Zero(t, f.users.UserCount())
	// The failed attempt released the connect slot for a retry.
	require.Equal(t, wallet.PhaseIdle, f.wallet.Phase())
}

func TestUsernameLookupFailureIsNonFatal(t *testing.T) {
	f := setup(t, fixtureOptions{production: true})
	f.runtime.UserFn = func(ctx context.Context, address string) (*hostwallet.UserInfo, error) {
		return nil, errors.New("lookup timed out")
	}

	require.NoError(t, f.orch.SignIn(context.Background()))
	require.Equal(t, signin.DefaultUsername, f.wallet.Snapshot().DisplayName)
}

func TestUnknownAddressUsesDefaultUsername(t *testing.T) {
	f := setup(t, fixtureOptions{production: true})
	// FakeRuntime returns nil UserInfo when no username is configured.

	require.NoError(t, f.orch.SignIn(context.Background()))
	require.Equal(t, signin.DefaultUsername, f.wallet.Snapshot().DisplayName)
}

func TestDuplicateInvocationIsNoOp(t *testing.T) {
	f := setup(t, fixtureOptions{production: true})

	// Another sign-in holds the connect slot.
	require.True(t, f.wallet.TryBeginConnect())

	require.NoError(t, f.orch.SignIn(context.Background()))
	require.Empty(t, f.runtime.AuthCalls())
	require.False(t, f.wallet.Snapshot().Connected)
}

func TestHostAbsentInProduction(t *testing.T) {
	f := setup(t, fixtureOptions{production: true, hostAbsent: true})

	err := f.orch.SignIn(context.Background())
	require.ErrorIs(t, err, signin.ErrHostUnavailable)
	require.False(t, f.wallet.Snapshot().Connected)
}

func TestHostAbsentFallsBackOutsideProduction(t *testing.T) {
	f := setup(t, fixtureOptions{hostAbsent: true})

	require.NoError(t, f.orch.SignIn(context.Background()))

	session := f.wallet.Snapshot()
	require.True(t, session.Connected)
	// The synthesized address is stored normalized, decoration stripped.
	require.Equal(t, "0x1a2b...3c4d", session.Address)
	require.Equal(t, 1, f.users.UserCount())

	user := f.orch.User()
	require.NotNil(t, user)
	require.Equal(t, "0x1a2b...3c4d", user.WalletAddress)
}

func TestHistoryRequiresSignIn(t *testing.T) {
	f := setup(t, fixtureOptions{production: true})

	_, _, err := f.orch.History(context.Background())
	require.Error(t, err)
}

func TestHistoryReadsUserTicketsAndTransactions(t *testing.T) {
	f := setup(t, fixtureOptions{production: true})
	require.NoError(t, f.orch.SignIn(context.Background()))

	user := f.orch.User()
	require.NotNil(t, user)
	f.users.AddTicket(lotto.Ticket{UserID: user.ID, Number: "01-02-03-04-05-06", Tier: 5, Currency: lotto.CurrencyWLD})
	f.users.AddTicket(lotto.Ticket{UserID: user.ID, Number: "07-08-09-10-11-12", Tier: 5, Currency: lotto.CurrencyWLD})
	f.users.AddTransaction(lotto.Transaction{UserID: user.ID, Amount: 10, Currency: lotto.CurrencyWLD, TransactionID: "0xtx"})

	tickets, transactions, err := f.orch.History(context.Background())
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	require.Len(t, transactions, 1)
	require.Equal(t, "0xtx", transactions[0].TransactionID)
}

func TestDisconnectClearsSessionAndUser(t *testing.T) {
	f := setup(t, fixtureOptions{production: true})
	require.NoError(t, f.orch.SignIn(context.Background()))
	require.True(t, f.wallet.Snapshot().Connected)

	f.orch.Disconnect()

	require.False(t, f.wallet.Snapshot().Connected)
	require.Nil(t, f.orch.User())
}
