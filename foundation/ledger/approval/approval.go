// Package approval maintains the live view of spending allowances that
// account owners grant to spenders.
package approval

import (
	"errors"
	"fmt"
	"sync"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
)

// ErrPoisoned is returned once an update panicked while holding the lock.
var ErrPoisoned = errors.New("allowance book poisoned by an earlier failure")

// Allowance is the amount a spender may still move from an owner's account.
// A zero ExpiresAt means the allowance never expires.
type Allowance struct {
	Amount    uint64 `json:"allowance"`
	ExpiresAt uint64 `json:"expires_at,omitempty"`
}

// Expired reports whether the allowance has expired at ledger time now.
func (a Allowance) Expired(now uint64) bool {
	return a.ExpiresAt != 0 && a.ExpiresAt <= now
}

// Grant is an allowance together with the pair it applies to.
type Grant struct {
	Owner   database.Account `json:"owner"`
	Spender database.Account `json:"spender"`
	Allowance
}

type pair struct {
	owner   database.Account
	spender database.Account
}

// =============================================================================

// Book holds the current allowance of every owner and spender pair.
type Book struct {
	mu       sync.Mutex
	grants   map[pair]Allowance
	poisoned bool
}

// New constructs an empty allowance book.
func New() *Book {
	return &Book{
		grants: make(map[pair]Allowance),
	}
}

// Reset clears every allowance.
func (b *Book) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.grants = make(map[pair]Allowance)
	b.poisoned = false
}

// Poisoned reports whether a mutation panicked and left the book untrusted.
func (b *Book) Poisoned() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.poisoned
}

// Get returns the allowance for the pair, expired or not.
func (b *Book) Get(owner database.Account, spender database.Account) (Allowance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.poisoned {
		return Allowance{}, ErrPoisoned
	}

	return b.grants[pair{owner, spender}], nil
}

// Update replaces the allowance of the pair with the result of fn. fn sees
// the current allowance and nothing changes if it returns an error. A zero
// amount removes the pair.
func (b *Book) Update(owner database.Account, spender database.Account, fn func(Allowance) (Allowance, error)) (err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.poisoned {
		return ErrPoisoned
	}

	defer func() {
		if r := recover(); r != nil {
			b.poisoned = true
			err = fmt.Errorf("%w: %v", ErrPoisoned, r)
		}
	}()

	key := pair{owner, spender}

	next, err := fn(b.grants[key])
	if err != nil {
		return err
	}

	if next.Amount == 0 {
		delete(b.grants, key)
		return nil
	}

	b.grants[key] = next
	return nil
}

// Grants returns every allowance granted by the owner.
func (b *Book) Grants(owner database.Account) ([]Grant, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.poisoned {
		return nil, ErrPoisoned
	}

	var grants []Grant
	for key, a := range b.grants {
		if key.owner == owner {
			grants = append(grants, Grant{Owner: key.owner, Spender: key.spender, Allowance: a})
		}
	}
	return grants, nil
}
