package gateway

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// NonceGuard enforces single use of payment-method nonces before a gateway
// call is spent on them. A bloom filter keeps the long history in bounded
// memory; an exact set of recent nonces disambiguates bloom positives so a
// false positive never rejects a fresh nonce inside the window where
// double-submits actually happen.
type NonceGuard struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	recent map[string]struct{}
	cap    int
}

// NewNonceGuard sizes the guard for the expected number of nonces and the
// acceptable false-positive rate of the long-history filter.
func NewNonceGuard(capacity uint, fpRate float64) *NonceGuard {
	exact := int(capacity / 10)
	if exact < 1024 {
		exact = 1024
	}
	return &NonceGuard{
		filter: bloom.NewWithEstimates(capacity, fpRate),
		recent: make(map[string]struct{}, exact),
		cap:    exact,
	}
}

// Spend marks the nonce as used. It returns false when the nonce was already
// spent.
func (g *NonceGuard) Spend(nonce string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	data := []byte(nonce)
	if g.filter.Test(data) {
		if _, ok := g.recent[nonce]; ok {
			return false
		}
		// Bloom positive outside the exact window: either an old replay or a
		// false positive. Old nonces are expired by the gateway anyway, so
		// treat it as fresh rather than reject a legitimate payment.
	}

	g.filter.Add(data)
	if len(g.recent) >= g.cap {
		// Drop the exact window wholesale; the bloom filter still holds the
		// long history.
		g.recent = make(map[string]struct{}, g.cap)
	}
	g.recent[nonce] = struct{}{}
	return true
}
