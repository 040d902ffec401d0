package state

import (
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Metadata describes the log and the reward schedule at the current ledger
// time.
type Metadata struct {
	DataStart       uint64        `json:"data_start"`
	NextBlockStart  uint64        `json:"next_block_start"`
	BlocksCount     uint64        `json:"blocks_count"`
	LatestBlockHash hexutil.Bytes `json:"latest_block_hash"`
	RewardPerBlock  uint64        `json:"reward_per_block"`
	LedgerTime      uint64        `json:"ledger_time"`
}

// Metadata returns the current log metadata.
func (s *State) Metadata() Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	return Metadata{
		DataStart:       s.store.DataStartPosition(),
		NextBlockStart:  s.store.NextBlockStartPosition(),
		BlocksCount:     s.store.BlocksCount(),
		LatestBlockHash: s.store.LatestBlockHash(),
		RewardPerBlock:  database.RewardPerBlock(now),
		LedgerTime:      now,
	}
}

// Balance returns the balance of the account.
func (s *State) Balance(account database.Account) (uint64, error) {
	return s.accounts.Balance(account)
}

// Balances returns a copy of every non-zero balance.
func (s *State) Balances() (map[database.Account]uint64, error) {
	return s.accounts.Copy()
}

// Reputation returns the reputation score of the identity.
func (s *State) Reputation(pubkey []byte) int64 {
	return s.reputations.Score(pubkey)
}

// Reputations returns every reputation score keyed by hex public key.
func (s *State) Reputations() map[string]int64 {
	return s.reputations.Copy()
}

// RecentTransactions returns up to n of the latest transfers, newest first.
func (s *State) RecentTransactions(n int) []RecentTransaction {
	return s.recent.last(n)
}

// Counts returns the number of registered providers and users.
func (s *State) Counts() (providers int, users int) {
	s.registry.mu.RLock()
	defer s.registry.mu.RUnlock()

	return len(s.registry.providers), len(s.registry.users)
}

// PublicKey returns the public key registered for the principal.
func (s *State) PublicKey(principal string) ([]byte, bool) {
	s.registry.mu.RLock()
	defer s.registry.mu.RUnlock()

	pubkey, exists := s.registry.principals[principal]
	return pubkey, exists
}

// Profile returns the latest profile payload of the provider.
func (s *State) Profile(pubkey []byte) ([]byte, bool) {
	s.registry.mu.RLock()
	defer s.registry.mu.RUnlock()

	payload, exists := s.registry.profiles[string(pubkey)]
	return payload, exists
}

// Offering returns the latest offering payload of the provider.
func (s *State) Offering(pubkey []byte) ([]byte, bool) {
	s.registry.mu.RLock()
	defer s.registry.mu.RUnlock()

	payload, exists := s.registry.offerings[string(pubkey)]
	return payload, exists
}

// IsRegistered reports whether the public key registered as a provider or a
// user.
func (s *State) IsRegistered(pubkey []byte) bool {
	return s.registry.isRegistered(pubkey)
}
