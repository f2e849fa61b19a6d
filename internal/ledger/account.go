// Package ledger owns the trader's cash balance.
package ledger

import (
	"errors"
	"papertrader/types"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNegativeAmount    = errors.New("amount must not be negative")
)

// Account is a single cash account. The balance never goes below zero.
type Account struct {
	mu      sync.RWMutex
	id      string
	balance decimal.Decimal
}

// OpenAccount creates an account holding balance. A negative balance fails
// with ErrNegativeAmount.
func OpenAccount(id string, balance decimal.Decimal) (*Account, error) {
	if balance.IsNegative() {
		return nil, ErrNegativeAmount
	}
	return &Account{id: id, balance: balance}, nil
}

// ID returns the account identifier.
func (a *Account) ID() string {
	return a.id
}

// Balance returns the current cash balance.
func (a *Account) Balance() decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balance
}

// Credit adds amount to the balance.
func (a *Account) Credit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balance = a.balance.Add(amount)
	return nil
}

// Debit removes amount from the balance, or fails with ErrInsufficientFunds
// leaving the balance untouched.
func (a *Account) Debit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if amount.GreaterThan(a.balance) {
		return ErrInsufficientFunds
	}
	a.balance = a.balance.Sub(amount)
	return nil
}

// Reset replaces the balance, e.g. when the trading account is restarted.
func (a *Account) Reset(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return ErrNegativeAmount
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balance = balance
	return nil
}

// Snapshot returns the account id and balance as a value.
func (a *Account) Snapshot() types.Account {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return types.Account{ID: a.id, CashBalance: a.balance}
}
