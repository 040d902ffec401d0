// Package accounts maintains the token balance of every account on the
// ledger.
package accounts

import (
	"errors"
	"fmt"
	"sync"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
)

// ErrPoisoned is returned once a mutation panicked while holding the lock.
// The balances can't be trusted until the cache is rebuilt.
var ErrPoisoned = errors.New("balance cache poisoned by an earlier failure")

// InsufficientFundsError is returned when a debit exceeds the balance.
type InsufficientFundsError struct {
	Account database.Account
	Balance uint64
	Needed  uint64
}

// Error implements the error interface.
func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for %s, bal %d, needed %d", e.Account, e.Balance, e.Needed)
}

// =============================================================================

// Accounts manages the balances of accounts who have transacted on
// the ledger.
type Accounts struct {
	mu       sync.RWMutex
	balances map[database.Account]uint64
	poisoned bool
}

// New constructs an empty balance cache.
func New() *Accounts {
	return &Accounts{
		balances: make(map[database.Account]uint64),
	}
}

// Reset clears every balance. A poisoned cache becomes usable again.
func (act *Accounts) Reset() {
	act.mu.Lock()
	defer act.mu.Unlock()

	act.balances = make(map[database.Account]uint64)
	act.poisoned = false
}

// Balance returns the balance of the account. The minting account always
// has a zero balance.
func (act *Accounts) Balance(account database.Account) (uint64, error) {
	act.mu.RLock()
	defer act.mu.RUnlock()

	if act.poisoned {
		return 0, ErrPoisoned
	}

	return act.balances[account], nil
}

// Copy makes a copy of the current balances.
func (act *Accounts) Copy() (map[database.Account]uint64, error) {
	act.mu.RLock()
	defer act.mu.RUnlock()

	if act.poisoned {
		return nil, ErrPoisoned
	}

	balances := make(map[database.Account]uint64, len(act.balances))
	for account, bal := range act.balances {
		balances[account] = bal
	}
	return balances, nil
}

// ApplyTransfer debits amount plus fee from the sender and credits amount to
// the receiver. The minting account is neither debited nor credited. Nothing
// changes if the sender can't cover the transfer.
func (act *Accounts) ApplyTransfer(tr database.Transfer) error {
	return act.update(func(balances map[database.Account]uint64) error {
		total := tr.Amount + tr.Fee
		if total < tr.Amount {
			return fmt.Errorf("transfer amount %d plus fee %d overflows", tr.Amount, tr.Fee)
		}

		if !tr.From.IsMinting() {
			bal := balances[tr.From]
			if bal < total {
				return &InsufficientFundsError{Account: tr.From, Balance: bal, Needed: total}
			}
		}

		if !tr.To.IsMinting() {
			if balances[tr.To]+tr.Amount < balances[tr.To] {
				return fmt.Errorf("balance of %s overflows", tr.To)
			}
		}

		if !tr.From.IsMinting() {
			balances[tr.From] -= total
			if balances[tr.From] == 0 {
				delete(balances, tr.From)
			}
		}

		if !tr.To.IsMinting() && tr.Amount > 0 {
			balances[tr.To] += tr.Amount
		}

		return nil
	})
}

// update runs fn under the write lock. A panic inside fn poisons the cache
// and is returned as an error.
func (act *Accounts) update(fn func(balances map[database.Account]uint64) error) (err error) {
	act.mu.Lock()
	defer act.mu.Unlock()

	if act.poisoned {
		return ErrPoisoned
	}

	defer func() {
		if r := recover(); r != nil {
			act.poisoned = true
			err = fmt.Errorf("%w: %v", ErrPoisoned, r)
		}
	}()

	return fn(act.balances)
}
