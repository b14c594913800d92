package storefake

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/orblotto/go-wallet-bridge/lotto"
)

var _ lotto.Store = (*FakeStore)(nil)

// FakeStore is an in-memory lotto.Store for tests and the demo binary.
type FakeStore struct {
	lock         sync.RWMutex
	users        map[string]*lotto.User // keyed by normalized wallet address
	tickets      map[string][]lotto.Ticket
	transactions map[string][]lotto.Transaction
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		users:        make(map[string]*lotto.User),
		tickets:      make(map[string][]lotto.Ticket),
		transactions: make(map[string][]lotto.Transaction),
	}
}

func (s *FakeStore) UserByWalletAddress(ctx context.Context, address string) (*lotto.User, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	user, ok := s.users[address]
	if !ok {
		return nil, lotto.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *FakeStore) CreateUser(ctx context.Context, user *lotto.User) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	copied := *user
	s.users[user.WalletAddress] = &copied
	return nil
}

func (s *FakeStore) TicketsByUser(ctx context.Context, userID string) ([]lotto.Ticket, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return append([]lotto.Ticket(nil), s.tickets[userID]...), nil
}

func (s *FakeStore) TransactionsByUser(ctx context.Context, userID string) ([]lotto.Transaction, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return append([]lotto.Transaction(nil), s.transactions[userID]...), nil
}

// AddTicket seeds a ticket for a user.
func (s *FakeStore) AddTicket(ticket lotto.Ticket) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if ticket.ID == "" {
		ticket.ID = uuid.New().String()
	}
	s.tickets[ticket.UserID] = append(s.tickets[ticket.UserID], ticket)
}

// AddTransaction seeds a transaction for a user.
func (s *FakeStore) AddTransaction(tx lotto.Transaction) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	s.transactions[tx.UserID] = append(s.transactions[tx.UserID], tx)
}

// UserCount reports how many users exist, for duplicate-creation assertions.
func (s *FakeStore) UserCount() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.users)
}
