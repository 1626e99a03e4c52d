package certcache

import (
	"errors"
	"testing"

	"github.com/wardsec/authcore/internal/vnode"
)

func TestLookupPrefersSideCache(t *testing.T) {
	t.Parallel()

	key := vnode.Key{Device: 1, Inode: 1}
	want := [32]byte{1, 2, 3}

	c := New(nil, func(vnode.Key, any) ([32]byte, error) { return [32]byte{9}, nil })
	c.store(key, want)

	if got := c.Lookup(key, nil); got != want {
		t.Fatalf("expected side cache hit %v, got %v", want, got)
	}
}

func TestLookupFallsBackToExecDecision(t *testing.T) {
	t.Parallel()

	key := vnode.Key{Device: 1, Inode: 2}
	want := [32]byte{4, 5, 6}

	c := New(func(vnode.Key) ([32]byte, bool) { return want, true }, nil)
	if got := c.Lookup(key, nil); got != want {
		t.Fatalf("expected exec-decision hash %v, got %v", want, got)
	}
	// Second lookup must hit the side cache, not call fromExec again.
	c.fromExec = func(vnode.Key) ([32]byte, bool) {
		t.Fatal("fromExec should not be consulted once cached")
		return [32]byte{}, false
	}
	if got := c.Lookup(key, nil); got != want {
		t.Fatalf("expected cached hash %v, got %v", want, got)
	}
}

func TestLookupFallsBackToPlatform(t *testing.T) {
	t.Parallel()

	key := vnode.Key{Device: 1, Inode: 3}
	want := [32]byte{7, 7, 7}

	c := New(func(vnode.Key) ([32]byte, bool) { return [32]byte{}, false },
		func(vnode.Key, any) ([32]byte, error) { return want, nil })
	if got := c.Lookup(key, nil); got != want {
		t.Fatalf("expected platform hash %v, got %v", want, got)
	}
}

func TestLookupFailureCachesSentinel(t *testing.T) {
	t.Parallel()

	key := vnode.Key{Device: 1, Inode: 4}
	c := New(nil, func(vnode.Key, any) ([32]byte, error) { return [32]byte{}, errors.New("boom") })

	if got := c.Lookup(key, nil); got != BadCertHash {
		t.Fatalf("expected sentinel on lookup failure, got %v", got)
	}
	if c.Len() != 1 {
		t.Fatalf("expected sentinel to be cached, len=%d", c.Len())
	}
}

func TestFlushAndFlushAll(t *testing.T) {
	t.Parallel()

	c := New(nil, nil)
	k1 := vnode.Key{Device: 1, Inode: 1}
	k2 := vnode.Key{Device: 1, Inode: 2}
	c.store(k1, [32]byte{1})
	c.store(k2, [32]byte{2})

	c.Flush(k1)
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry after Flush, got %d", c.Len())
	}

	c.FlushAll()
	if c.Len() != 0 {
		t.Fatalf("expected 0 entries after FlushAll, got %d", c.Len())
	}
}
