package arc

import (
	"sync"
	"time"

	"github.com/wardsec/authcore/internal/vnode"
)

const (
	// DefaultTTL is the cache entry lifetime applied to decisive states
	// (§4.1; does not apply to Pending, which never expires on its own).
	DefaultTTL = 500 * time.Millisecond

	// MinShards is the minimum shard count the cache will accept;
	// DefaultShards is the guidance value from §4.1.
	MinShards     = 8
	DefaultShards = 16
)

type entry struct {
	state      State
	insertedAt time.Time
	rootOwned  bool
}

type shard struct {
	mu      sync.Mutex
	entries map[vnode.Key]*entry
}

// Cache is the sharded Authorization Result Cache.
type Cache struct {
	shards []*shard
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New constructs a Cache with the given shard count, rounded up to at least
// MinShards. shards should be a power of two; DefaultShards is a reasonable
// default for most deployments.
func New(shards int, opts ...Option) *Cache {
	if shards < MinShards {
		shards = MinShards
	}
	c := &Cache{
		shards: make([]*shard, shards),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for i := range c.shards {
		c.shards[i] = &shard{entries: make(map[vnode.Key]*entry)}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// inodeMultiplier is the Fibonacci-hashing constant from §9's sharding
// guidance, spreading low-entropy sequential inode numbers across shards
// instead of clustering them.
const inodeMultiplier = 0x9E3779B97F4A7C15

// shardFor routes a key to a shard using a multiplicative hash of the
// inode, per §4.1/§9 ("sharded ... keyed on low bits of inode").
func (c *Cache) shardFor(key vnode.Key) *shard {
	return c.shards[(key.Inode*inodeMultiplier)%uint64(len(c.shards))]
}

// Check returns the current externally visible state for key, applying TTL
// expiry to decisive states. Pending and Hold never expire on their own.
func (c *Cache) Check(key vnode.Key) State {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	return c.checkLocked(s, key)
}

// checkLocked must be called with s.mu held.
func (c *Cache) checkLocked(s *shard, key vnode.Key) State {
	e, ok := s.entries[key]
	if !ok {
		return Unset
	}
	if e.state == Pending || e.state == Hold {
		return e.state
	}
	if c.now().Sub(e.insertedAt) > c.ttl {
		delete(s.entries, key)
		return Unset
	}
	return e.state
}

// Add attempts the transition named by action against key's current state,
// returning the resulting state and whether the transition was admitted.
// rootOwned marks the entry as belonging to a root-owned executable, used by
// Flush(NonRootOnly, ...) to decide which entries survive a partial flush.
func (c *Cache) Add(key vnode.Key, action Action, rootOwned bool) (State, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	current := c.checkLocked(s, key)
	next, ok := transition(current, action)
	if !ok {
		return current, false
	}

	e, exists := s.entries[key]
	if !exists {
		e = &entry{rootOwned: rootOwned}
		s.entries[key] = e
	}
	e.state = next
	e.insertedAt = c.now()
	if action == RequestBinary {
		e.rootOwned = rootOwned
	}
	return next, true
}

// Remove deletes the entry for key unconditionally, if present.
func (c *Cache) Remove(key vnode.Key) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// ResetPending removes the entry for key only if its current state is
// Pending (§4.1 reset_pending), leaving any other state — including Hold,
// which Remove would clear indiscriminately — untouched.
func (c *Cache) ResetPending(key vnode.Key) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.checkLocked(s, key) == Pending {
		delete(s.entries, key)
	}
}

// Flush clears entries according to mode (§4.1: NonRootOnly drops only
// entries for non-root-owned executables; AllCaches drops everything).
// reason is recorded for logging only and must be one of the closed
// FlushReason values (an unknown reason is itself a bug at the call site,
// since FlushReason.String panics on it).
func (c *Cache) Flush(mode FlushMode, reason FlushReason) {
	_ = reason.String() // validated eagerly; panics (ProgrammingError) on garbage input
	for _, s := range c.shards {
		s.mu.Lock()
		if mode == AllCaches {
			s.entries = make(map[vnode.Key]*entry)
		} else {
			for k, e := range s.entries {
				if !e.rootOwned {
					delete(s.entries, k)
				}
			}
		}
		s.mu.Unlock()
	}
}

// FlushDevice removes every entry whose vnode is on the given device,
// used by DeviceGuard on NOTIFY_UNMOUNT (§3 lifecycle: "evicted ... by
// volume flush on NOTIFY_UNMOUNT"). This is a finer-grained complement to
// Flush(NonRootOnly, ...), which drops every non-root entry regardless of
// which specific volume unmounted.
func (c *Cache) FlushDevice(device uint64, reason FlushReason) {
	_ = reason.String()
	for _, s := range c.shards {
		s.mu.Lock()
		for k := range s.entries {
			if k.Device == device {
				delete(s.entries, k)
			}
		}
		s.mu.Unlock()
	}
}

// Len reports the total number of live entries across all shards, ignoring
// TTL expiry (used for metrics, not for correctness decisions).
func (c *Cache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.Lock()
		total += len(s.entries)
		s.mu.Unlock()
	}
	return total
}

// Counts reports the root-owned and non-root-owned entry counts across all
// shards (§4.1 counts()), ignoring TTL expiry like Len. Telemetry reads this
// split directly rather than Len alone.
func (c *Cache) Counts() (rootOwned, nonRootOwned int) {
	for _, s := range c.shards {
		s.mu.Lock()
		for _, e := range s.entries {
			if e.rootOwned {
				rootOwned++
			} else {
				nonRootOwned++
			}
		}
		s.mu.Unlock()
	}
	return rootOwned, nonRootOwned
}
