package correlation

import (
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL is how long computed correlations stay valid before the
// whole cache is cleared and rebuilt lazily.
const DefaultCacheTTL = time.Hour

// CachedCorrelation is a single pair result held in the cache.
type CachedCorrelation struct {
	Symbol1            string  `json:"symbol1"`
	Symbol2            string  `json:"symbol2"`
	Correlation        float64 `json:"correlation"`
	IsHighlyCorrelated bool    `json:"isHighlyCorrelated"`
}

// correlationCache stores pair correlations keyed symmetrically, so a
// lookup for (A, B) and (B, A) hits the same entry. Expiry is whole-cache:
// once the TTL elapses every entry is dropped at the next access and the
// cache refills as pairs are recomputed.
type correlationCache struct {
	mu      sync.Mutex
	entries map[string]CachedCorrelation
	ttl     time.Duration
	resetAt time.Time
}

func newCorrelationCache(ttl time.Duration) *correlationCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &correlationCache{
		entries: make(map[string]CachedCorrelation),
		ttl:     ttl,
		resetAt: time.Now(),
	}
}

// pairKey builds an order-independent key for a symbol pair.
func pairKey(symbol1, symbol2 string) string {
	if symbol1 > symbol2 {
		symbol1, symbol2 = symbol2, symbol1
	}
	return symbol1 + "|" + symbol2
}

// get returns the cached result for a pair if the cache is still fresh.
func (cc *correlationCache) get(symbol1, symbol2 string) (CachedCorrelation, bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	cc.expireLocked()

	entry, ok := cc.entries[pairKey(symbol1, symbol2)]
	return entry, ok
}

// set stores a pair result under the symmetric key.
func (cc *correlationCache) set(entry CachedCorrelation) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	cc.expireLocked()
	cc.entries[pairKey(entry.Symbol1, entry.Symbol2)] = entry
}

// invalidateSymbol drops every cached pair involving the given symbol.
// Called when new price data arrives for that symbol.
func (cc *correlationCache) invalidateSymbol(symbol string) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	for key := range cc.entries {
		parts := strings.SplitN(key, "|", 2)
		if parts[0] == symbol || parts[1] == symbol {
			delete(cc.entries, key)
		}
	}
}

// clear drops every entry and restarts the TTL clock.
func (cc *correlationCache) clear() {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	cc.entries = make(map[string]CachedCorrelation)
	cc.resetAt = time.Now()
}

func (cc *correlationCache) size() int {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	cc.expireLocked()
	return len(cc.entries)
}

// expireLocked clears the whole cache once the TTL has elapsed.
// Caller must hold cc.mu.
func (cc *correlationCache) expireLocked() {
	if time.Since(cc.resetAt) <= cc.ttl {
		return
	}
	cc.entries = make(map[string]CachedCorrelation)
	cc.resetAt = time.Now()
}
