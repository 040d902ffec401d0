package contract

import (
	"bytes"
	"sort"
	"sync"

	"github.com/decent-stuff/decent-cloud-sub003/foundation/ledger/database"
)

// Status is the position of a contract in its signing lifecycle.
type Status int

// Set of contract statuses. A contract moves from NoRequest to Open when a
// request is recorded and from Open to Closed when the reply is recorded.
const (
	NoRequest Status = iota
	Open
	Closed
)

// String implements the fmt.Stringer interface.
func (s Status) String() string {
	switch s {
	case Open:
		return "open"
	case Closed:
		return "closed"
	}
	return "no-request"
}

// Pending is a contract request still waiting for the provider's reply.
type Pending struct {
	ContractID []byte
	Request    database.ContractSignRequest
}

// =============================================================================

// Cache tracks open contract requests and the ids of replied ones.
type Cache struct {
	mu     sync.RWMutex
	open   map[string]database.ContractSignRequest
	closed map[string]struct{}
}

// NewCache constructs an empty contracts cache.
func NewCache() *Cache {
	return &Cache{
		open:   make(map[string]database.ContractSignRequest),
		closed: make(map[string]struct{}),
	}
}

// Reset clears the cache.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.open = make(map[string]database.ContractSignRequest)
	c.closed = make(map[string]struct{})
}

// Add records an open request.
func (c *Cache) Add(contractID []byte, req database.ContractSignRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.open[string(contractID)] = req
}

// Close removes the request from the open set. A reply closes a contract
// whether it accepts or rejects it.
func (c *Cache) Close(contractID []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.open, string(contractID))
	c.closed[string(contractID)] = struct{}{}
}

// Lookup returns the status of the contract and its request when open.
func (c *Cache) Lookup(contractID []byte) (database.ContractSignRequest, Status) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if req, exists := c.open[string(contractID)]; exists {
		return req, Open
	}

	if _, exists := c.closed[string(contractID)]; exists {
		return database.ContractSignRequest{}, Closed
	}

	return database.ContractSignRequest{}, NoRequest
}

// Pending returns the open requests ordered by contract id. A non empty
// provider limits the result to requests addressed to that provider.
func (c *Cache) Pending(provider []byte) []Pending {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pending := make([]Pending, 0, len(c.open))
	for id, req := range c.open {
		if len(provider) > 0 && !bytes.Equal(req.ProviderPubkey, provider) {
			continue
		}
		pending = append(pending, Pending{ContractID: []byte(id), Request: req})
	}

	sort.Slice(pending, func(i, j int) bool {
		return bytes.Compare(pending[i].ContractID, pending[j].ContractID) < 0
	})

	return pending
}
