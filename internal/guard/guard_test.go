package guard

import (
	"context"
	"testing"
	"time"

	"github.com/wardsec/authcore/internal/arc"
	"github.com/wardsec/authcore/internal/vnode"
)

func TestTamperGuardDefaultResponseIsDeny(t *testing.T) {
	t.Parallel()

	g := NewTamperGuard(arc.New(arc.MinShards))
	if g.DefaultResponse() {
		t.Fatal("expected TamperGuard's default response to be deny")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	allow, cacheable := g.HandleMessage(ctx, &vnode.Message{})
	if allow || cacheable {
		t.Fatalf("expected deadline-exceeded handling to deny, got allow=%v cacheable=%v", allow, cacheable)
	}
}

func TestDeviceGuardDefaultResponseTracksUSBBlocking(t *testing.T) {
	t.Parallel()

	allowWhenOff := NewDeviceGuard(arc.New(arc.MinShards), false, nil)
	if !allowWhenOff.DefaultResponse() {
		t.Fatal("expected allow when USB blocking is off")
	}

	denyWhenOn := NewDeviceGuard(arc.New(arc.MinShards), true, nil)
	if denyWhenOn.DefaultResponse() {
		t.Fatal("expected deny when USB blocking is on")
	}
}

func TestDeviceGuardNotifyUnmountFlushesOnlyThatDevice(t *testing.T) {
	t.Parallel()

	cache := arc.New(arc.MinShards)
	root := vnode.Key{Device: 1, Inode: 1}
	removable := vnode.Key{Device: 2, Inode: 1}
	cache.Add(root, arc.RequestBinary, true)
	cache.Add(root, arc.RespondAllow, true)
	cache.Add(removable, arc.RequestBinary, false)
	cache.Add(removable, arc.RespondAllow, false)

	g := NewDeviceGuard(cache, false, func(dev uint64) bool { return dev == 1 })
	g.NotifyUnmount(2)

	if cache.Check(root) != arc.Allow {
		t.Fatal("expected root device entries to survive an unrelated unmount")
	}
	if cache.Check(removable) != arc.Unset {
		t.Fatal("expected the unmounted device's entries to be gone")
	}
}

func TestDeviceGuardIgnoresRootDeviceUnmount(t *testing.T) {
	t.Parallel()

	cache := arc.New(arc.MinShards)
	root := vnode.Key{Device: 1, Inode: 1}
	cache.Add(root, arc.RequestBinary, true)
	cache.Add(root, arc.RespondAllow, true)

	g := NewDeviceGuard(cache, false, func(dev uint64) bool { return dev == 1 })
	g.NotifyUnmount(1)

	if cache.Check(root) != arc.Allow {
		t.Fatal("expected root-device unmount notifications to be ignored")
	}
}

func TestHandleMessageAllowsWithinDeadline(t *testing.T) {
	t.Parallel()

	g := NewTamperGuard(arc.New(arc.MinShards))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	allow, _ := g.HandleMessage(ctx, &vnode.Message{})
	if !allow {
		t.Fatal("expected TamperGuard to allow within the deadline")
	}
}
