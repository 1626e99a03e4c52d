// Package certcache implements the certificate-hash side cache from §4.3.4:
// a vnode-keyed, unbounded, write-once-per-vnode cache for the leaf
// certificate SHA-256 of an executable, used by the process-identity
// matcher to evaluate certificate_sha256 predicates.
package certcache

import (
	"sync"

	"github.com/wardsec/authcore/internal/vnode"
)

// BadCertHash is the terminal sentinel cached on a platform-API lookup
// failure (§7 LookupMiss). It is guaranteed never to equal a real hash, so
// a predicate that requires a specific certificate hash never matches it.
//
// Open question (preserved verbatim from spec §9): "BAD_CERT_HASH" is a
// sentinel that shadows any real hash equal to that exact byte sequence.
// Implementers may prefer a typed None variant; behavior at policy-match
// time must remain "never matches." This cache keeps the sentinel shape
// (a reserved byte pattern) rather than switching to an Option type,
// matching the source's behavior as instructed.
var BadCertHash = [32]byte{
	'B', 'A', 'D', '_', 'C', 'E', 'R', 'T', '_', 'H', 'A', 'S', 'H',
}

// PlatformLookup performs the expensive platform API call to compute the
// leaf certificate SHA-256 for an executable. It is an external
// collaborator (§6); the cache only orchestrates when it is consulted.
type PlatformLookup func(executable vnode.Key, stat any) ([32]byte, error)

// CachedDecisionLookup resolves a precomputed hash carried over from the
// exec authorization path (§4.3.4 lookup order: side-cache → exec-path
// CachedDecision → platform API).
type CachedDecisionLookup func(executable vnode.Key) (hash [32]byte, ok bool)

// Cache is the certificate-hash side cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[vnode.Key][32]byte

	fromExec CachedDecisionLookup
	platform PlatformLookup
}

// New constructs a Cache. fromExec and platform may be nil, in which case
// that lookup stage is skipped.
func New(fromExec CachedDecisionLookup, platform PlatformLookup) *Cache {
	return &Cache{
		entries:  make(map[vnode.Key][32]byte),
		fromExec: fromExec,
		platform: platform,
	}
}

// Lookup resolves the leaf certificate SHA-256 for executable, consulting
// the side cache first, then the exec-path CachedDecision, then the
// platform API. On any failure the BadCertHash sentinel is cached and
// returned so the predicate evaluation path never blocks or errors.
func (c *Cache) Lookup(executable vnode.Key, stat any) [32]byte {
	c.mu.RLock()
	if h, ok := c.entries[executable]; ok {
		c.mu.RUnlock()
		return h
	}
	c.mu.RUnlock()

	if c.fromExec != nil {
		if h, ok := c.fromExec(executable); ok {
			c.store(executable, h)
			return h
		}
	}

	if c.platform != nil {
		if h, err := c.platform(executable, stat); err == nil {
			c.store(executable, h)
			return h
		}
	}

	c.store(executable, BadCertHash)
	return BadCertHash
}

// store is write-once-per-vnode: if a hash is already present it is not
// overwritten, matching the cache's "entries tied to vnodes" lifecycle,
// which only the caller's Flush clears.
func (c *Cache) store(key vnode.Key, hash [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		return
	}
	c.entries[key] = hash
}

// Flush removes the cache entry for a single vnode.
func (c *Cache) Flush(key vnode.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// FlushAll clears every entry, used on a full rule-change flush.
func (c *Cache) FlushAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[vnode.Key][32]byte)
}

// Len reports the number of cached entries (for metrics/tests).
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
