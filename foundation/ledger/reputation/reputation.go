// Package reputation maintains the reputation score of every identity on
// the ledger.
package reputation

import (
	"math/bits"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	// ppmDiv is one million, the denominator of an aging factor.
	ppmDiv uint64 = 1_000_000

	// maxAgingReduction caps what one aging step takes from a single score.
	maxAgingReduction uint64 = 100
)

// Reputations maps identities to signed reputation scores.
type Reputations struct {
	mu     sync.RWMutex
	scores map[string]int64
}

// New constructs an empty reputation cache.
func New() *Reputations {
	return &Reputations{
		scores: make(map[string]int64),
	}
}

// Reset clears every score.
func (r *Reputations) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.scores = make(map[string]int64)
}

// Change adds the signed delta to the score of the identity.
func (r *Reputations) Change(identity []byte, delta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := string(identity)
	r.scores[key] += delta
	if r.scores[key] == 0 {
		delete(r.scores, key)
	}
}

// Age decays every score toward zero by ppm parts per million, rounding
// the reduction down and taking at most maxAgingReduction from each score.
func (r *Reputations) Age(ppm uint64) {
	ppm = min(ppm, ppmDiv)

	r.mu.Lock()
	defer r.mu.Unlock()

	for key, score := range r.scores {
		mag := uint64(score)
		if score < 0 {
			mag = uint64(-score)
		}

		hi, lo := bits.Mul64(mag, ppm)
		reduction, _ := bits.Div64(hi, lo, ppmDiv)
		reduction = min(reduction, maxAgingReduction)

		switch {
		case score < 0:
			score += int64(reduction)
		default:
			score -= int64(reduction)
		}

		if score == 0 {
			delete(r.scores, key)
			continue
		}
		r.scores[key] = score
	}
}

// Score returns the score of the identity.
func (r *Reputations) Score(identity []byte) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.scores[string(identity)]
}

// Copy returns the scores keyed by hex encoded identity.
func (r *Reputations) Copy() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	scores := make(map[string]int64, len(r.scores))
	for key, score := range r.scores {
		scores[hexutil.Encode([]byte(key))] = score
	}
	return scores
}
