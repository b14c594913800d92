// Package lotto holds the lottery domain model and the boundary to the
// external data store that persists users, tickets and transactions.
package lotto

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

// Currency is a token accepted for ticket purchases.
type Currency string

const (
	// CurrencyWLD is the primary token.
	CurrencyWLD Currency = "WLD"
	// CurrencyUSDC is the stable token.
	CurrencyUSDC Currency = "USDC"
)

// ValidCurrency reports whether c is a supported purchase currency.
func ValidCurrency(c Currency) bool {
	return c == CurrencyWLD || c == CurrencyUSDC
}

// UnitAmounts are the ticket prices on sale.
var UnitAmounts = []int{2, 5, 10, 100, 500}

// ValidUnitAmount reports whether amount is one of the ticket tiers.
func ValidUnitAmount(amount int) bool {
	for _, a := range UnitAmounts {
		if a == amount {
			return true
		}
	}
	return false
}

// TierName returns the marketing name of a ticket tier.
func TierName(unitAmount int) string {
	switch unitAmount {
	case 500:
		return "ORB Lotto Jackpot"
	case 100:
		return "ORB Lotto Mega"
	case 10:
		return "ORB Lotto Super"
	case 5:
		return "ORB Lotto Plus"
	default:
		return "ORB Lotto Basic"
	}
}

// User is a lottery player keyed by normalized wallet address.
type User struct {
	ID            string    `json:"id,omitempty"`
	WalletAddress string    `json:"wallet_address"`
	Username      string    `json:"username,omitempty"`
	TotalTickets  int       `json:"total_tickets,omitempty"`
	TotalWon      float64   `json:"total_won,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// Ticket is one purchased lottery ticket.
type Ticket struct {
	ID       string    `json:"id,omitempty"`
	UserID   string    `json:"user_id"`
	Number   string    `json:"number"`
	Tier     int       `json:"tier"`
	Currency Currency  `json:"currency"`
	DrawDate time.Time `json:"draw_date,omitempty"`
}

// Transaction is one settled purchase.
type Transaction struct {
	ID            string    `json:"id,omitempty"`
	UserID        string    `json:"user_id"`
	Amount        float64   `json:"amount"`
	Currency      Currency  `json:"currency"`
	TransactionID string    `json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// NewTicketNumber generates a ticket number in draw format: six picks in
// 1..49 joined by dashes. Confirmed tickets come from the backend; this is
// for the simulated purchase path and the defensive materialization
// fallback only.
func NewTicketNumber() string {
	picks := make([]string, 6)
	for i := range picks {
		picks[i] = fmt.Sprintf("%02d", rand.Intn(49)+1)
	}
	return strings.Join(picks, "-")
}
