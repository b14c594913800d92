// Package payment drives a four-party purchase — client, backend, host
// payment rail, backend verification — to either full success with
// materialized tickets or a clean failure with no partial charge left
// unaccounted for.
package payment

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/orblotto/go-wallet-bridge/backend"
	"github.com/orblotto/go-wallet-bridge/detector"
	"github.com/orblotto/go-wallet-bridge/hostwallet"
	"github.com/orblotto/go-wallet-bridge/lotto"
	"github.com/orblotto/go-wallet-bridge/wallet"
)

const (
	minTicketCount = 1
	maxTicketCount = 50
)

// Intent is one buy action: how many tickets, which tier, which token.
// Transient — never persisted; confirmed tickets are re-fetched from the
// external store, not retained from the intent.
type Intent struct {
	TicketCount int
	UnitAmount  int
	Currency    lotto.Currency
}

// Normalize clamps the ticket count into range and validates the tier and
// currency against what is on sale.
func (i Intent) Normalize() (Intent, error) {
	if i.TicketCount < minTicketCount {
		i.TicketCount = minTicketCount
	}
	if i.TicketCount > maxTicketCount {
		i.TicketCount = maxTicketCount
	}
	if !lotto.ValidUnitAmount(i.UnitAmount) {
		return i, errors.Errorf("[Intent.Normalize] no ticket tier priced at %d", i.UnitAmount)
	}
	if !lotto.ValidCurrency(i.Currency) {
		return i, errors.Errorf("[Intent.Normalize] unsupported currency %q", i.Currency)
	}
	return i, nil
}

// Receipt is the outcome of a completed (or simulated) purchase.
type Receipt struct {
	Tickets       []string
	TransactionID string
	Tier          string
	TicketCount   int
	Simulated     bool
}

// Deps holds the collaborators of the purchase sequence.
type Deps struct {
	Detector *detector.Detector
	Wallet   *wallet.Store
	Backend  *backend.Client
}

// Orchestrator runs purchase sequences, one at a time.
type Orchestrator struct {
	deps       Deps
	production bool
	log        zerolog.Logger

	lock     sync.Mutex
	inFlight bool
	last     Attempt
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProduction disables the simulated-purchase fallbacks.
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

// New initializes an Orchestrator with required dependencies.
func New(deps Deps, options ...Option) (*Orchestrator, error) {
	if deps.Detector == nil {
		return nil, errors.New("[payment.New] Detector is required")
	}
	if deps.Wallet == nil {
		return nil, errors.New("[payment.New] Wallet store is required")
	}
	if deps.Backend == nil {
		return nil, errors.New("[payment.New] Backend client is required")
	}

	o := &Orchestrator{
		deps: deps,
		log:  zerolog.Nop(),
	}
	for _, opt := range options {
		opt(o)
	}
	return o, nil
}

// Buy runs one purchase attempt end to end: initiate with the backend,
// execute the host payment, verify server-side, materialize tickets.
// Effects are applied strictly in that order; a failed step aborts the rest.
// Outside production a failure after initiation falls back to a simulated
// receipt so the flow stays demonstrable; the attempt still records the
// failure.
func (o *Orchestrator) Buy(ctx context.Context, intent Intent) (*Receipt, error) {
	intent, err := intent.Normalize()
	if err != nil {
		return nil, err
	}

	if !o.deps.Wallet.Connected() {
		return nil, errors.Wrap(ErrNotConnected, "[Buy]")
	}

	o.lock.Lock()
	if o.inFlight {
		o.lock.Unlock()
		return nil, errors.Wrap(ErrPurchaseInFlight, "[Buy]")
	}
	o.inFlight = true
	o.lock.Unlock()
	defer func() {
		o.lock.Lock()
		o.inFlight = false
		o.lock.Unlock()
	}()

	if !o.deps.Detector.Ready() {
		if o.production {
			o.finish(Attempt{State: AttemptFailed, FailureReason: ErrHostUnavailable.Error()})
			return nil, errors.Wrap(ErrHostUnavailable, "[Buy]")
		}
		o.log.Warn().Msg("host runtime not detected, simulating purchase")
		o.finish(Attempt{State: AttemptCompleted})
		return o.simulate(intent), nil
	}

	receipt, attempt, err := o.run(ctx, intent)
	o.finish(attempt)
	if err != nil {
		if !o.production {
			o.log.Error().Err(err).Msg("purchase failed, falling back to simulated tickets")
			return o.simulate(intent), nil
		}
		return nil, err
	}
	return receipt, nil
}

func (o *Orchestrator) run(ctx context.Context, intent Intent) (*Receipt, Attempt, error) {
	attempt := Attempt{State: AttemptInitiating}

	init, err := o.deps.Backend.InitiatePayment(ctx, backend.InitiatePaymentRequest{
		TicketCount: intent.TicketCount,
		Amount:      float64(intent.UnitAmount),
		Currency:    string(intent.Currency),
	})
	if err != nil {
		reason := errors.Wrapf(ErrInitiation, "[Buy] %v", err)
		attempt.fail(reason)
		return nil, attempt, reason
	}
	attempt.PaymentID = init.PaymentID
	attempt.State = AttemptAwaitingHostPayment

	description := fmt.Sprintf("Purchase of %d %s tickets", intent.TicketCount, lotto.TierName(intent.UnitAmount))
	payload, err := detector.Execute(ctx, o.deps.Detector, func(ctx context.Context, rt hostwallet.Runtime) (*hostwallet.PayPayload, error) {
		return rt.Pay(ctx, hostwallet.PayRequest{
			Reference: init.PaymentID,
			To:        init.RecipientAddress,
			Tokens: []hostwallet.PayToken{{
				Symbol: string(intent.Currency),
				Amount: strconv.FormatFloat(init.Amount, 'f', -1, 64),
			}},
			Description: description,
		})
	})
	if err != nil {
		reason := errors.Wrapf(Classify(err.Error()), "[Buy] host payment: %v", err)
		attempt.fail(reason)
		return nil, attempt, reason
	}
	if payload == nil || payload.Status == hostwallet.StatusError {
		message := "unknown payment error"
		if payload != nil {
			if payload.ErrorMessage != "" {
				message = payload.ErrorMessage
			} else if payload.ErrorCode != "" {
				message = payload.ErrorCode
			}
		}
		reason := errors.Wrapf(Classify(message), "[Buy] host payment: %s", message)
		attempt.fail(reason)
		return nil, attempt, reason
	}
	attempt.HostTransactionID = payload.TransactionID
	attempt.State = AttemptVerifying

	verify, err := o.deps.Backend.VerifyPayment(ctx, init.PaymentID, payload.TransactionID)
	if err != nil {
		// The host charge may have settled without server-side confirmation.
		// No automatic retry; log the ids so the charge can be reconciled.
		o.log.Error().
			Str("payment_id", init.PaymentID).
			Str("transaction_id", payload.TransactionID).
			Err(err).
			Msg("payment verification failed after host charge, manual reconciliation required")
		reason := errors.Wrapf(ErrVerification, "[Buy] %v", err)
		attempt.fail(reason)
		return nil, attempt, reason
	}

	tickets := make([]string, 0, intent.TicketCount)
	for _, t := range verify.Tickets {
		tickets = append(tickets, t.Number)
	}
	if len(tickets) == 0 {
		// Backend contract violation: verification succeeded without ticket
		// numbers. Generate placeholders so the user is not left empty-handed.
		o.log.Error().Str("payment_id", init.PaymentID).Msg("verified payment returned no tickets, generating placeholders")
		for i := 0; i < intent.TicketCount; i++ {
			tickets = append(tickets, lotto.NewTicketNumber())
		}
	}

	attempt.State = AttemptCompleted
	o.log.Info().
		Str("payment_id", init.PaymentID).
		Str("transaction_id", payload.TransactionID).
		Int("tickets", len(tickets)).
		Msg("purchase completed")

	return &Receipt{
		Tickets:       tickets,
		TransactionID: payload.TransactionID,
		Tier:          lotto.TierName(intent.UnitAmount),
		TicketCount:   intent.TicketCount,
	}, attempt, nil
}

// simulate fabricates a receipt without any network or host interaction.
// Non-production only.
func (o *Orchestrator) simulate(intent Intent) *Receipt {
	tickets := make([]string, intent.TicketCount)
	for i := range tickets {
		tickets[i] = lotto.NewTicketNumber()
	}
	return &Receipt{
		Tickets:     tickets,
		Tier:        lotto.TierName(intent.UnitAmount),
		TicketCount: intent.TicketCount,
		Simulated:   true,
	}
}

func (o *Orchestrator) finish(attempt Attempt) {
	o.lock.Lock()
	o.last = attempt
	o.lock.Unlock()
}

// LastAttempt returns a copy of the most recent purchase attempt, including
// the host transaction id recorded for reconciliation on verify failures.
func (o *Orchestrator) LastAttempt() Attempt {
	o.lock.Lock()
	defer o.lock.Unlock()
	return o.last
}
