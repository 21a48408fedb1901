// Package ledger moves chips between a player's persisted balance and their
// in-table stack.
//
// Balance writes are the only operation in the engine that crosses table
// boundaries, so each account's read-modify-write is serialized here by a
// per-account lock. Stack-only moves (bets and payouts) never touch storage.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientStack   = errors.New("insufficient stack")
	ErrPersistence         = errors.New("persistence failure")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// BalanceStore persists account balances. Two sequential calls for the same
// id must observe each other's effect.
type BalanceStore interface {
	GetBalance(ctx context.Context, id string) (int64, error)
	SetBalance(ctx context.Context, id string, balance int64) error
}

// Stack is the chips a seated player has at a table. It is separate from the
// persisted balance and only changes through a Ledger.
type Stack struct {
	id    string
	chips int64
}

// NewStack returns an empty stack for account id.
func NewStack(id string) *Stack {
	return &Stack{id: id}
}

// ID returns the account the stack belongs to.
func (s *Stack) ID() string { return s.id }

// Chips returns the current stack size.
func (s *Stack) Chips() int64 { return s.chips }

// Ledger implements buy-in, refund and in-hand transfers.
type Ledger struct {
	store  BalanceStore
	logger *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a ledger backed by store.
func New(store BalanceStore, logger *log.Logger) *Ledger {
	return &Ledger{
		store:  store,
		logger: logger.WithPrefix("ledger"),
		locks:  make(map[string]*sync.Mutex),
	}
}

func (l *Ledger) lock(id string) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Balance returns the persisted balance for id.
func (l *Ledger) Balance(ctx context.Context, id string) (int64, error) {
	b, err := l.store.GetBalance(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("%w: read balance of %s: %w", ErrPersistence, id, err)
	}
	return b, nil
}

// BuyIn debits amount from the persisted balance and credits the stack. It
// is all-or-nothing: on any failure neither balance nor stack change.
func (l *Ledger) BuyIn(ctx context.Context, s *Stack, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: buy-in %d", ErrInvalidAmount, amount)
	}
	unlock := l.lock(s.id)
	defer unlock()

	balance, err := l.store.GetBalance(ctx, s.id)
	if err != nil {
		return fmt.Errorf("%w: read balance of %s: %w", ErrPersistence, s.id, err)
	}
	if balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, balance, amount)
	}

	s.chips += amount
	if err := l.store.SetBalance(ctx, s.id, balance-amount); err != nil {
		s.chips -= amount
		return fmt.Errorf("%w: debit %s: %w", ErrPersistence, s.id, err)
	}

	l.logger.Debug("Buy-in committed", "account", s.id, "amount", amount, "stack", s.chips)
	return nil
}

// Refund moves amount from the stack back to the persisted balance. If the
// balance write fails the stack is restored.
func (l *Ledger) Refund(ctx context.Context, s *Stack, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: refund %d", ErrInvalidAmount, amount)
	}
	if amount == 0 {
		return nil
	}
	unlock := l.lock(s.id)
	defer unlock()

	if amount > s.chips {
		return fmt.Errorf("%w: refund %d from %d", ErrInsufficientStack, amount, s.chips)
	}

	balance, err := l.store.GetBalance(ctx, s.id)
	if err != nil {
		return fmt.Errorf("%w: read balance of %s: %w", ErrPersistence, s.id, err)
	}

	s.chips -= amount
	if err := l.store.SetBalance(ctx, s.id, balance+amount); err != nil {
		s.chips += amount
		return fmt.Errorf("%w: credit %s: %w", ErrPersistence, s.id, err)
	}

	l.logger.Debug("Refund committed", "account", s.id, "amount", amount, "stack", s.chips)
	return nil
}

// RefundAll refunds the entire stack and returns the amount moved.
func (l *Ledger) RefundAll(ctx context.Context, s *Stack) (int64, error) {
	amount := s.Chips()
	if err := l.Refund(ctx, s, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// Withdraw takes amount off the stack for a wager.
func (l *Ledger) Withdraw(s *Stack, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: withdraw %d", ErrInvalidAmount, amount)
	}
	unlock := l.lock(s.id)
	defer unlock()

	if amount > s.chips {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientStack, amount, s.chips)
	}
	s.chips -= amount
	return nil
}

// Deposit returns chips to the stack, for payouts and returned wagers.
func (l *Ledger) Deposit(s *Stack, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: deposit %d", ErrInvalidAmount, amount)
	}
	unlock := l.lock(s.id)
	defer unlock()

	s.chips += amount
	return nil
}
