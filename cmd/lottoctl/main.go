// lottoctl exercises the wallet bridge end to end against the in-process
// stub backend and a fake host runtime: detect, sign in, buy tickets, print
// the receipt. It is a demonstration and smoke-test driver, not a product
// surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/common-nighthawk/go-figure"

	"github.com/orblotto/go-wallet-bridge/backend"
	"github.com/orblotto/go-wallet-bridge/detector"
	"github.com/orblotto/go-wallet-bridge/hostwallet/runtimefakes"
	"github.com/orblotto/go-wallet-bridge/internal/config"
	"github.com/orblotto/go-wallet-bridge/internal/logging"
	"github.com/orblotto/go-wallet-bridge/internal/stubapi"
	"github.com/orblotto/go-wallet-bridge/lotto"
	"github.com/orblotto/go-wallet-bridge/lotto/storefake"
	"github.com/orblotto/go-wallet-bridge/payment"
	"github.com/orblotto/go-wallet-bridge/signin"
	"github.com/orblotto/go-wallet-bridge/wallet"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lottoctl: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to TOML config file")
	tickets := flag.Int("tickets", 3, "number of tickets to buy")
	unitAmount := flag.Int("amount", 5, "ticket tier price (2, 5, 10, 100 or 500)")
	currency := flag.String("currency", string(lotto.CurrencyWLD), "purchase currency (WLD or USDC)")
	installAfter := flag.Int("install-after", 2, "probes before the fake host appears (-1: never)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	displayAppname(cfg.AppName)
	log := logging.New("lottoctl")

	// In-process stand-ins for the two external collaborators.
	stubURL, stopStub, err := serveStub()
	if err != nil {
		return err
	}
	defer stopStub()

	runtime := runtimefakes.NewFakeRuntime()
	runtime.SetUsername("orbdemo")
	if *installAfter < 0 {
		runtime.SetInstalledAfter(int(cfg.Detector.MaxAttempts) + 2)
	} else {
		runtime.SetInstalledAfter(*installAfter)
	}

	det, err := detector.New(runtime,
		detector.WithLogger(log),
		detector.WithPolicy(detector.Policy{
			MaxAttempts:     cfg.Detector.MaxAttempts,
			InitialInterval: cfg.Detector.InitialInterval.Duration,
			MaxInterval:     cfg.Detector.MaxInterval.Duration,
			MaxElapsed:      cfg.Detector.MaxElapsed.Duration,
		}),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Info().Msg("detecting host runtime")
	det.Start(ctx)
	state, err := det.WaitSettled(ctx)
	if err != nil {
		return err
	}
	log.Info().Stringer("state", state).Int("probes", runtime.Probes()).Msg("detection settled")
	if state != detector.StateReady {
		log.Warn().Msg("host runtime not detected, degraded fallbacks will be used")
	}

	walletStore := wallet.NewStore()
	users := storefake.NewFakeStore()
	api := backend.New(stubURL, backend.WithTimeout(cfg.HTTPTimeout.Duration), backend.WithLogger(log))

	signer, err := signin.New(signin.Deps{
		Detector: det,
		Wallet:   walletStore,
		Backend:  api,
		Users:    users,
	}, signin.WithLogger(log), signin.WithProduction(cfg.IsProduction()))
	if err != nil {
		return err
	}

	if err := signer.SignIn(ctx); err != nil {
		return err
	}
	session := walletStore.Snapshot()
	log.Info().Str("address", session.Address).Str("username", session.DisplayName).Msg("signed in")

	buyer, err := payment.New(payment.Deps{
		Detector: det,
		Wallet:   walletStore,
		Backend:  api,
	}, payment.WithLogger(log), payment.WithProduction(cfg.IsProduction()))
	if err != nil {
		return err
	}

	receipt, err := buyer.Buy(ctx, payment.Intent{
		TicketCount: *tickets,
		UnitAmount:  *unitAmount,
		Currency:    lotto.Currency(*currency),
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n%s — %d ticket(s)", receipt.Tier, receipt.TicketCount)
	if receipt.Simulated {
		fmt.Printf(" (simulated)")
	}
	fmt.Println()
	for _, number := range receipt.Tickets {
		fmt.Printf("  %s\n", number)
	}
	if receipt.TransactionID != "" {
		fmt.Printf("Transaction ID: %s\n", receipt.TransactionID)
	}

	// The real backend persists purchases server-side; the demo seeds the
	// in-memory store so the profile read has something to show.
	if user := signer.User(); user != nil {
		for _, number := range receipt.Tickets {
			users.AddTicket(lotto.Ticket{
				UserID:   user.ID,
				Number:   number,
				Tier:     *unitAmount,
				Currency: lotto.Currency(*currency),
			})
		}
		users.AddTransaction(lotto.Transaction{
			UserID:        user.ID,
			Amount:        float64(*unitAmount * receipt.TicketCount),
			Currency:      lotto.Currency(*currency),
			TransactionID: receipt.TransactionID,
		})
	}

	ownedTickets, transactions, err := signer.History(ctx)
	if err != nil {
		return err
	}
	log.Info().Int("tickets", len(ownedTickets)).Int("transactions", len(transactions)).Msg("profile history")
	return nil
}

func serveStub() (string, func(), error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	server := &http.Server{Handler: stubapi.New()}
	go func() {
		_ = server.Serve(listener)
	}()
	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	return "http://" + listener.Addr().String(), stop, nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
