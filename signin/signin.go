// Package signin performs the challenge/response proof of wallet control and
// establishes the local and external session: nonce, host wallet auth,
// backend signature verification, session commit, then reconciliation
// against the external user store.
package signin

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/orblotto/go-wallet-bridge/backend"
	"github.com/orblotto/go-wallet-bridge/detector"
	"github.com/orblotto/go-wallet-bridge/hostwallet"
	"github.com/orblotto/go-wallet-bridge/lotto"
	"github.com/orblotto/go-wallet-bridge/wallet"
)

const (
	// DefaultUsername is used when the host cannot resolve a display name.
	DefaultUsername = "worldapp_user"

	authStatement  = "Sign in to ORB Lotto with your WorldApp wallet"
	authExpiration = 7 * 24 * time.Hour
	authNotBefore  = 24 * time.Hour

	devWalletAddress = "0x1a2b...3c4d (Dev Mode)"
	devUsername      = "orbuser42"
)

// Deps holds the collaborators of the sign-in sequence.
type Deps struct {
	Detector *detector.Detector
	Wallet   *wallet.Store
	Backend  *backend.Client
	Users    lotto.Store
}

// Orchestrator runs sign-in sequences. At most one is in flight at a time;
// duplicate invocations no-op.
type Orchestrator struct {
	deps       Deps
	production bool
	log        zerolog.Logger
	nowTime    func() time.Time

	lock sync.RWMutex
	user *lotto.User
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProduction disables the degraded no-host fallback.
func WithProduction(production bool) Option {
	return func(o *Orchestrator) {
		o.production = production
	}
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.log = log
	}
}

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) Option {
	return func(o *Orchestrator) {
		o.nowTime = nowFunc
	}
}

// New initializes an Orchestrator with required dependencies.
func New(deps Deps, options ...Option) (*Orchestrator, error) {
	if deps.Detector == nil {
		return nil, errors.New("[signin.New] Detector is required")
	}
	if deps.Wallet == nil {
		return nil, errors.New("[signin.New] Wallet store is required")
	}
	if deps.Backend == nil {
		return nil, errors.New("[signin.New] Backend client is required")
	}
	if deps.Users == nil {
		return nil, errors.New("[signin.New] Users store is required")
	}

	o := &Orchestrator{
		deps:    deps,
		log:     zerolog.Nop(),
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(o)
	}
	return o, nil
}

// SignIn runs one sign-in sequence. A sequence already in flight makes this
// call a no-op, not an error. Every failure aborts the remaining steps and
// leaves the wallet session untouched.
func (o *Orchestrator) SignIn(ctx context.Context) error {
	if !o.deps.Wallet.TryBeginConnect() {
		o.log.Debug().Msg("sign-in already in flight, ignoring duplicate request")
		return nil
	}
	defer o.deps.Wallet.EndConnect()

	if !o.deps.Detector.Ready() {
		if o.production {
			return errors.Wrap(ErrHostUnavailable, "[SignIn]")
		}
		return o.devFallback(ctx)
	}

	// A nonce is single-use: fetched fresh for every attempt, consumed by
	// exactly one verification.
	nonce, err := o.deps.Backend.Nonce(ctx)
	if err != nil {
		return errors.Wrap(err, "[SignIn] fetch nonce")
	}

	payload, err := detector.Execute(ctx, o.deps.Detector, func(ctx context.Context, rt hostwallet.Runtime) (*hostwallet.WalletAuthPayload, error) {
		return rt.WalletAuth(ctx, hostwallet.WalletAuthRequest{
			Nonce:          nonce,
			RequestID:      uuid.New().String(),
			ExpirationTime: o.nowTime().Add(authExpiration),
			NotBefore:      o.nowTime().Add(-authNotBefore),
			Statement:      authStatement,
		})
	})
	if err != nil {
		return errors.Wrap(err, "[SignIn] wallet auth")
	}
	if payload.Status == hostwallet.StatusError {
		o.log.Error().Str("error_code", payload.ErrorCode).Msg("host rejected wallet auth")
		return errors.Wrap(ErrHostRejected, "[SignIn]")
	}

	verdict, err := o.deps.Backend.CompleteSIWE(ctx, payload, nonce)
	if err != nil {
		return errors.Wrap(err, "[SignIn] complete siwe")
	}
	if verdict.Status == hostwallet.StatusError || !verdict.IsValid {
		return errors.Wrap(ErrSignatureInvalid, "[SignIn]")
	}

	username := o.resolveUsername(ctx, payload.Address)

	if err := o.deps.Wallet.CommitConnect(payload.Address, username); err != nil {
		return errors.Wrap(err, "[SignIn] commit session")
	}

	if err := o.reconcileUser(ctx, payload.Address, username); err != nil {
		return errors.Wrap(err, "[SignIn] reconcile user")
	}

	o.log.Info().Str("address", wallet.NormalizeAddress(payload.Address)).Str("username", username).Msg("wallet connected")
	return nil
}

// resolveUsername asks the host for a display name. Best effort: any failure
// falls back to the default name and the sign-in continues.
func (o *Orchestrator) resolveUsername(ctx context.Context, address string) string {
	info, err := detector.Execute(ctx, o.deps.Detector, func(ctx context.Context, rt hostwallet.Runtime) (*hostwallet.UserInfo, error) {
		return rt.UserByAddress(ctx, address)
	})
	if err != nil {
		o.log.Warn().Err(err).Msg("could not fetch username, using default")
		return DefaultUsername
	}
	if info == nil || info.Username == "" {
		return DefaultUsername
	}
	return info.Username
}

// reconcileUser looks the user up in the external store by normalized
// address, creating it when absent, then refreshes the local user context.
// Normalization before every lookup and create is what keeps repeated
// sign-ins for the same underlying address from creating duplicate users.
func (o *Orchestrator) reconcileUser(ctx context.Context, address, username string) error {
	normalized := wallet.NormalizeAddress(address)

	_, err := o.deps.Users.UserByWalletAddress(ctx, normalized)
	if errors.Is(err, lotto.ErrUserNotFound) {
		o.log.Info().Str("address", normalized).Msg("creating user in external store")
		if err := o.deps.Users.CreateUser(ctx, &lotto.User{
			ID:            uuid.New().String(),
			WalletAddress: normalized,
			Username:      username,
			CreatedAt:     o.nowTime(),
		}); err != nil {
			return errors.Wrap(err, "create user")
		}
	} else if err != nil {
		return errors.Wrap(err, "lookup user")
	}

	refreshed, err := o.deps.Users.UserByWalletAddress(ctx, normalized)
	if err != nil {
		return errors.Wrap(err, "refresh user")
	}

	o.lock.Lock()
	o.user = refreshed
	o.lock.Unlock()
	return nil
}

// devFallback synthesizes a local session without backend verification.
// Not a production path: it exists so the flow stays demonstrable outside
// the host runtime.
func (o *Orchestrator) devFallback(ctx context.Context) error {
	o.log.Warn().Msg("host runtime not detected, using development fallback session")
	if err := o.deps.Wallet.CommitConnect(devWalletAddress, devUsername); err != nil {
		return errors.Wrap(err, "[SignIn] commit fallback session")
	}
	return errors.Wrap(o.reconcileUser(ctx, devWalletAddress, devUsername), "[SignIn]")
}

// History reads the signed-in user's tickets and settled transactions from
// the external store, for the profile surface.
func (o *Orchestrator) History(ctx context.Context) ([]lotto.Ticket, []lotto.Transaction, error) {
	user := o.User()
	if user == nil {
		return nil, nil, errors.New("[History] no signed-in user")
	}
	tickets, err := o.deps.Users.TicketsByUser(ctx, user.ID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[History] tickets")
	}
	transactions, err := o.deps.Users.TransactionsByUser(ctx, user.ID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "[History] transactions")
	}
	return tickets, transactions, nil
}

// User returns the reconciled user context, or nil before sign-in.
func (o *Orchestrator) User() *lotto.User {
	o.lock.RLock()
	defer o.lock.RUnlock()
	if o.user == nil {
		return nil
	}
	copied := *o.user
	return &copied
}

// Disconnect clears the wallet session and the local user context.
func (o *Orchestrator) Disconnect() {
	o.deps.Wallet.Disconnect()
	o.lock.Lock()
	o.user = nil
	o.lock.Unlock()
}
