package state

import (
	"sync"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/signature"
)

// maxRecentTransactions bounds the ring of transfers kept for indexers.
const maxRecentTransactions = 100_000

// registry maps principals to the public keys that registered them and keeps
// the latest profile and offering of each provider.
type registry struct {
	mu         sync.RWMutex
	principals map[string][]byte
	providers  map[string]struct{}
	users      map[string]struct{}
	profiles   map[string][]byte
	offerings  map[string][]byte
}

func newRegistry() *registry {
	r := registry{}
	r.reset()
	return &r
}

func (r *registry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.principals = make(map[string][]byte)
	r.providers = make(map[string]struct{})
	r.users = make(map[string]struct{})
	r.profiles = make(map[string][]byte)
	r.offerings = make(map[string][]byte)
}

func (r *registry) register(kind database.Kind, id signature.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pubkey := id.Bytes()
	r.principals[id.Principal()] = pubkey

	switch kind {
	case database.KindProviderRegister:
		r.providers[string(pubkey)] = struct{}{}
	case database.KindUserRegister:
		r.users[string(pubkey)] = struct{}{}
	}
}

func (r *registry) publish(kind database.Kind, pubkey []byte, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch kind {
	case database.KindProviderProfile:
		r.profiles[string(pubkey)] = payload
	case database.KindProviderOffering:
		r.offerings[string(pubkey)] = payload
	}
}

func (r *registry) isProvider(pubkey []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.providers[string(pubkey)]
	return exists
}

func (r *registry) isRegistered(pubkey []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, provider := r.providers[string(pubkey)]
	_, user := r.users[string(pubkey)]
	return provider || user
}

// =============================================================================

// RecentTransaction is a transfer together with the block that committed it.
type RecentTransaction struct {
	Transfer         database.Transfer
	BlockTimestampNs uint64
	BlockOffset      uint64
}

// recent is a bounded ring of the latest transfers.
type recent struct {
	mu   sync.RWMutex
	ring []RecentTransaction
	next int
	full bool
}

func newRecent(size int) *recent {
	return &recent{ring: make([]RecentTransaction, size)}
}

func (r *recent) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.ring)
	r.next = 0
	r.full = false
}

func (r *recent) add(tx RecentTransaction) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ring[r.next] = tx
	r.next = (r.next + 1) % len(r.ring)
	if r.next == 0 {
		r.full = true
	}
}

// last returns up to n transfers, newest first.
func (r *recent) last(n int) []RecentTransaction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := r.next
	if r.full {
		count = len(r.ring)
	}
	n = min(n, count)

	out := make([]RecentTransaction, 0, n)
	for i := 1; i <= n; i++ {
		idx := (r.next - i + len(r.ring)) % len(r.ring)
		out = append(out, r.ring[idx])
	}
	return out
}
