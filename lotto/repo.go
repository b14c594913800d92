package lotto

import (
	"context"
	"errors"
)

// ErrUserNotFound is returned by Store lookups for unknown users.
var ErrUserNotFound = errors.New("user not found")

// Store is the external data store holding users, tickets and transactions.
// Reads dominate; the only write this client issues is user creation during
// sign-in reconciliation.
type Store interface {
	UserByWalletAddress(ctx context.Context, address string) (*User, error)
	CreateUser(ctx context.Context, user *User) error
	TicketsByUser(ctx context.Context, userID string) ([]Ticket, error)
	TransactionsByUser(ctx context.Context, userID string) ([]Transaction, error)
}
