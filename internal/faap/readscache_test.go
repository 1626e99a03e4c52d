package faap

import (
	"testing"

	"github.com/wardsec/authcore/internal/vnode"
)

func TestReadsCacheOverflowClearsSet(t *testing.T) {
	t.Parallel()

	c := NewReadsCache()
	for i := uint64(0); i < ReadsCacheCapacity; i++ {
		c.Insert(1, 1, vnode.ClientData, vnode.Key{Device: 1, Inode: i})
	}
	first := vnode.Key{Device: 1, Inode: 0}
	if !c.Contains(1, 1, vnode.ClientData, first) {
		t.Fatal("expected first inserted vnode to still be present before overflow")
	}

	overflow := vnode.Key{Device: 1, Inode: ReadsCacheCapacity}
	c.Insert(1, 1, vnode.ClientData, overflow)

	if c.Contains(1, 1, vnode.ClientData, first) {
		t.Fatal("expected overflow to clear the prior set")
	}
	if !c.Contains(1, 1, vnode.ClientData, overflow) {
		t.Fatal("expected the overflowing insert itself to be present")
	}
}

func TestReadsCacheDistinctClientKinds(t *testing.T) {
	t.Parallel()

	c := NewReadsCache()
	v := vnode.Key{Device: 1, Inode: 1}
	c.Insert(1, 1, vnode.ClientData, v)
	if c.Contains(1, 1, vnode.ClientProcess, v) {
		t.Fatal("expected ClientProcess namespace to be independent of ClientData")
	}
}

func TestTTYCacheDedupesPerPolicy(t *testing.T) {
	t.Parallel()

	c := NewTTYCache()
	if seen := c.SeenAndRecord(1, 1, "v1", "policy-a"); seen {
		t.Fatal("expected first occurrence to report not-yet-seen")
	}
	if seen := c.SeenAndRecord(1, 1, "v1", "policy-a"); !seen {
		t.Fatal("expected second occurrence of same policy to be deduplicated")
	}
	if seen := c.SeenAndRecord(1, 1, "v1", "policy-b"); seen {
		t.Fatal("expected a distinct policy name to not be deduplicated")
	}
}

func TestCachesRemoveProcessOnExit(t *testing.T) {
	t.Parallel()

	reads := NewReadsCache()
	tty := NewTTYCache()
	v := vnode.Key{Device: 1, Inode: 1}
	reads.Insert(1, 1, vnode.ClientData, v)
	tty.SeenAndRecord(1, 1, "v1", "policy-a")

	reads.RemoveProcess(1, 1)
	tty.RemoveProcess(1, 1)

	if reads.Contains(1, 1, vnode.ClientData, v) {
		t.Fatal("expected reads cache entry to be removed on process exit")
	}
	if seen := tty.SeenAndRecord(1, 1, "v1", "policy-a"); seen {
		t.Fatal("expected tty cache entry to be removed on process exit")
	}
}
