// Package genesis maintains access to the genesis file that seeds a new
// canonical ledger with its starting balances.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date     time.Time         `json:"date"`
	ChainID  uint16            `json:"chain_id"` // The chain id represents an unique id for this running instance.
	Balances map[string]uint64 `json:"balances"` // Starting e9s keyed by account string.
}

// Allocation is a starting balance for one account.
type Allocation struct {
	Account database.Account
	Amount  uint64
}

// =============================================================================

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// Allocations validates the balances and returns them ordered by account so
// minting them produces the same log every time.
func (g Genesis) Allocations() ([]Allocation, error) {
	var total uint64

	allocs := make([]Allocation, 0, len(g.Balances))
	for s, amount := range g.Balances {
		account, err := database.ToAccount(s)
		if err != nil {
			return nil, fmt.Errorf("genesis account %q: %w", s, err)
		}

		if account.IsMinting() {
			return nil, fmt.Errorf("genesis can't allocate to the minting account")
		}

		total += amount
		if total > database.TokenTotalSupply {
			return nil, fmt.Errorf("genesis allocations exceed the total supply of %d e9s", database.TokenTotalSupply)
		}

		allocs = append(allocs, Allocation{Account: account, Amount: amount})
	}

	sort.Slice(allocs, func(i, j int) bool {
		return allocs[i].Account.String() < allocs[j].Account.String()
	})

	return allocs, nil
}
