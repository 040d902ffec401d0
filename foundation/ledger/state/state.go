// Package state is the core API for the ledger and implements all the
// business rules and processing. Every derived view (balances, reputation,
// open contracts, registrations) is folded from the log and is rebuilt from
// scratch by Rebuild.
package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/accounts"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/approval"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/contract"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/genesis"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/reputation"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/store"
)

// EventHandler defines a function that is called when events
// occur in the processing of the ledger.
type EventHandler func(v string, args ...any)

// Config represents the configuration required to start
// the ledger state.
type Config struct {
	Store     *store.Store
	Genesis   *genesis.Genesis
	Now       func() uint64
	EvHandler EventHandler
}

// State manages the ledger log and every view derived from it.
type State struct {
	mu        sync.Mutex
	store     *store.Store
	now       func() uint64
	evHandler EventHandler

	accounts    *accounts.Accounts
	reputations *reputation.Reputations
	contracts   *contract.Cache
	allowances  *approval.Book
	registry    *registry
	recent      *recent
	protocol    *contract.Protocol
}

// New constructs the ledger state and rebuilds every view from the log. A
// genesis is minted only into an empty log.
func New(cfg Config) (*State, error) {

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	now := cfg.Now
	if now == nil {
		now = func() uint64 { return uint64(time.Now().UnixNano()) }
	}

	s := State{
		store:     cfg.Store,
		now:       now,
		evHandler: ev,

		accounts:    accounts.New(),
		reputations: reputation.New(),
		contracts:   contract.NewCache(),
		allowances:  approval.New(),
		registry:    newRegistry(),
		recent:      newRecent(maxRecentTransactions),
	}

	s.protocol = contract.New(s.store, feeCharger{&s}, s.accounts, s.contracts)

	if _, err := s.Rebuild(); err != nil {
		return nil, err
	}

	if cfg.Genesis != nil && s.store.BlocksCount() == 0 {
		if err := s.applyGenesis(*cfg.Genesis); err != nil {
			return nil, err
		}
	}

	return &s, nil
}

// Shutdown cleanly brings the ledger down.
func (s *State) Shutdown() error {
	s.evHandler("state: shutdown: started")
	defer s.evHandler("state: shutdown: completed")

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.Close()
}

// Store returns the log backing this state.
func (s *State) Store() *store.Store {
	return s.store
}

// =============================================================================

// execute runs one ledger operation. The operation validates its input and
// stages entries. The staged entries are committed as a single block that is
// then folded into the views the same way Rebuild folds it. Nothing is
// written and no view changes when the operation fails.
func (s *State) execute(name string, op func() error) (store.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.executeLocked(name, op)
}

func (s *State) executeLocked(name string, op func() error) (store.Block, error) {
	if err := op(); err != nil {
		s.store.Discard()
		return store.Block{}, err
	}

	blk, err := s.store.Commit()
	if err != nil {
		s.store.Discard()
		return store.Block{}, fmt.Errorf("committing %s: %w", name, err)
	}

	var stats Stats
	s.applyBlock(blk, &stats)
	metrics().committed.Inc()

	s.evHandler("state: %s: committed block[%d] offset[%d] entries[%d]", name, s.store.BlocksCount(), blk.Offset, len(blk.Entries))

	return blk, nil
}

// applyGenesis mints the starting balances as the first block.
func (s *State) applyGenesis(g genesis.Genesis) error {
	allocs, err := g.Allocations()
	if err != nil {
		return err
	}

	if len(allocs) == 0 {
		return nil
	}

	op := func() error {
		for _, alloc := range allocs {
			if err := s.stageMint(alloc.Account, alloc.Amount, []byte("genesis")); err != nil {
				return err
			}
		}
		return nil
	}

	_, err = s.execute("genesis", op)
	return err
}

// stage encodes the record and appends it under the label keyed by its
// content id.
func (s *State) stage(label string, record any) ([]byte, error) {
	id, data, err := database.Encode(record)
	if err != nil {
		return nil, err
	}

	if err := s.store.Append(label, id, data); err != nil {
		return nil, err
	}

	return id, nil
}
