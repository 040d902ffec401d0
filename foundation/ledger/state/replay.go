package state

import (
	"fmt"
	"time"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/store"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Stats summarizes a replay of the log.
type Stats struct {
	Blocks       uint64
	Entries      uint64
	Transactions uint64
	Skipped      uint64
}

// Rebuild clears every view and folds the whole log into them again, in log
// order. Running it twice yields the same views.
func (s *State) Rebuild() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.rebuildLocked()
}

func (s *State) rebuildLocked() (Stats, error) {
	start := time.Now()

	s.accounts.Reset()
	s.reputations.Reset()
	s.contracts.Reset()
	s.registry.reset()
	s.recent.reset()

	// Allowances are not folded from the log. A poisoned book can only be
	// emptied.
	if s.allowances.Poisoned() {
		s.allowances.Reset()
	}

	var stats Stats
	if s.store.BlocksCount() == 0 {
		return stats, nil
	}

	fn := func(blk store.Block) error {
		stats.Blocks++
		s.applyBlock(blk, &stats)
		return nil
	}

	if err := s.store.Iterate(s.store.DataStartPosition(), fn); err != nil {
		return stats, fmt.Errorf("replaying log: %w", err)
	}

	m := metrics()
	m.replayDuration.Observe(time.Since(start).Seconds())
	m.replayEntries.Add(float64(stats.Entries))
	m.replaySkipped.Add(float64(stats.Skipped))

	s.evHandler("state: Rebuild: blocks[%d] entries[%d] transactions[%d] skipped[%d]", stats.Blocks, stats.Entries, stats.Transactions, stats.Skipped)

	return stats, nil
}

// applyBlock folds every entry of the block into the views. An entry that
// can't be applied is reported and skipped.
func (s *State) applyBlock(blk store.Block, stats *Stats) {
	for _, le := range blk.LedgerEntries() {
		stats.Entries++

		kind := database.KindOf(le.Label)
		if err := s.applyEntry(kind, le); err != nil {
			stats.Skipped++
			s.evHandler("state: replay: WARNING: skipping %s entry key[%s] at offset %d: %s", le.Label, hexutil.Encode(le.Key), le.BlockOffset, err)
			continue
		}

		if kind == database.KindTokenTransfer {
			stats.Transactions++
		}
	}
}

func (s *State) applyEntry(kind database.Kind, le store.LedgerEntry) error {
	switch kind {
	case database.KindTokenTransfer:
		tr, err := database.DecodeTransfer(le.Value)
		if err != nil {
			return err
		}
		if err := s.accounts.ApplyTransfer(tr); err != nil {
			return err
		}
		s.recent.add(RecentTransaction{Transfer: tr, BlockTimestampNs: le.BlockTimestampNs, BlockOffset: le.BlockOffset})

	case database.KindTokenApproval:
		// Approvals are an audit trail. The live allowance view is not
		// rebuilt from them.

	case database.KindReputationChange:
		rc, err := database.DecodeReputationChange(le.Value)
		if err != nil {
			return err
		}
		s.reputations.Change(rc.Identity, rc.Delta())

	case database.KindReputationAge:
		ra, err := database.DecodeReputationAge(le.Value)
		if err != nil {
			return err
		}
		s.reputations.Age(ra.ReductionsPPM)

	case database.KindProviderRegister, database.KindUserRegister:
		id, err := signature.IdentityFromBytes(le.Key)
		if err != nil {
			return err
		}
		s.registry.register(kind, id)

	case database.KindProviderProfile, database.KindProviderOffering:
		sp, err := database.DecodeSignedPayload(le.Value)
		if err != nil {
			return err
		}
		s.registry.publish(kind, le.Key, sp.Payload)

	case database.KindContractSignRequest:
		sp, err := database.DecodeSignedPayload(le.Value)
		if err != nil {
			return err
		}
		req, err := database.DecodeContractSignRequest(sp.Payload)
		if err != nil {
			return err
		}
		s.contracts.Add(le.Key, req)

	case database.KindContractSignReply:
		s.contracts.Close(le.Key)

	case database.KindUnrecognized:
		// Labels owned by other systems sharing the log.
	}

	return nil
}
