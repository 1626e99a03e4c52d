package faap

import (
	"sync"

	"github.com/wardsec/authcore/internal/vnode"
)

// ReadsCacheCapacity bounds the number of vnodes remembered per
// (pid, pid_version, client_kind); on overflow the whole per-process set
// is cleared (§4.3.6).
const ReadsCacheCapacity = 8192

type readsCacheKey struct {
	pid        int32
	pidVersion uint64
	kind       vnode.ClientKind
}

// ReadsCache implements the reads-elision fast path of §4.3.6: a bounded
// per-process set of vnodes pre-authorized for read-only access.
type ReadsCache struct {
	mu      sync.Mutex
	entries map[readsCacheKey]map[vnode.Key]struct{}
}

func NewReadsCache() *ReadsCache {
	return &ReadsCache{entries: make(map[readsCacheKey]map[vnode.Key]struct{})}
}

// Contains reports whether vnode v has already been pre-authorized for
// this process instance and client kind.
func (c *ReadsCache) Contains(pid int32, pidVersion uint64, kind vnode.ClientKind, v vnode.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.entries[readsCacheKey{pid, pidVersion, kind}]
	if !ok {
		return false
	}
	_, ok = set[v]
	return ok
}

// Insert records that v has been authorized for read-only access. On
// overflowing ReadsCacheCapacity the entire per-process set is cleared,
// per §3's ReadsCacheKey lifecycle note.
func (c *ReadsCache) Insert(pid int32, pidVersion uint64, kind vnode.ClientKind, v vnode.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := readsCacheKey{pid, pidVersion, kind}
	set, ok := c.entries[key]
	if !ok {
		set = make(map[vnode.Key]struct{})
		c.entries[key] = set
	}
	if len(set) >= ReadsCacheCapacity {
		set = make(map[vnode.Key]struct{})
		c.entries[key] = set
	}
	set[v] = struct{}{}
}

// RemoveProcess drops every reads-cache entry for a process instance,
// across both client kinds, on NOTIFY_EXIT.
func (c *ReadsCache) RemoveProcess(pid int32, pidVersion uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, readsCacheKey{pid, pidVersion, vnode.ClientData})
	delete(c.entries, readsCacheKey{pid, pidVersion, vnode.ClientProcess})
}

// Clear empties the cache entirely, on any rule change.
func (c *ReadsCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[readsCacheKey]map[vnode.Key]struct{})
}

// TTYCacheCapacity mirrors the reads cache's bound (§3: "same bounds").
const TTYCacheCapacity = ReadsCacheCapacity

type ttyProcessKey struct {
	pid        int32
	pidVersion uint64
}

type ttyPolicyKey struct {
	version string
	name    string
}

// TTYCache tracks which (policy_version, policy_name) pairs have already
// produced a TTY block notice for a given process instance, so a burst of
// denials on the same policy only writes one notice (§4.3.7 step 4).
type TTYCache struct {
	mu      sync.Mutex
	entries map[ttyProcessKey]map[ttyPolicyKey]struct{}
}

func NewTTYCache() *TTYCache {
	return &TTYCache{entries: make(map[ttyProcessKey]map[ttyPolicyKey]struct{})}
}

// SeenAndRecord reports whether (version, name) was already messaged for
// this process instance, recording it if not (an atomic test-and-set).
func (c *TTYCache) SeenAndRecord(pid int32, pidVersion uint64, version, name string) (alreadySeen bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pkey := ttyProcessKey{pid, pidVersion}
	set, ok := c.entries[pkey]
	if !ok {
		set = make(map[ttyPolicyKey]struct{})
		c.entries[pkey] = set
	}
	key := ttyPolicyKey{version, name}
	if _, ok := set[key]; ok {
		return true
	}
	if len(set) >= TTYCacheCapacity {
		set = make(map[ttyPolicyKey]struct{})
		c.entries[pkey] = set
	}
	set[key] = struct{}{}
	return false
}

// RemoveProcess drops the TTY-cache entry for a process instance on
// NOTIFY_EXIT.
func (c *TTYCache) RemoveProcess(pid int32, pidVersion uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, ttyProcessKey{pid, pidVersion})
}

// Clear empties the cache entirely, on any rule change.
func (c *TTYCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[ttyProcessKey]map[ttyPolicyKey]struct{})
}
