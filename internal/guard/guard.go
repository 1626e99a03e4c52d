// Package guard implements TamperGuard and DeviceGuard (§1, §4.9):
// policy-surface-only peers of the file-access and exec authorizers. They
// expose no behavior beyond the shared Client contract's default-response
// and flush-on-unmount obligations (§5, §7); actual tamper-protection and
// device-policy decisions are delegated to external collaborators out of
// scope for this core.
package guard

import (
	"context"

	"github.com/wardsec/authcore/internal/arc"
	"github.com/wardsec/authcore/internal/vnode"
)

// TamperGuard is the deny-by-default peer protecting the agent's own
// binaries and configuration (§5: "deny for tamper-resistance" is the
// default response on deadline exhaustion).
type TamperGuard struct {
	cache *arc.Cache
}

// NewTamperGuard constructs a TamperGuard bound to the shared ARC, so a
// NOTIFY_UNMOUNT flush also clears any entries TamperGuard caused.
func NewTamperGuard(cache *arc.Cache) *TamperGuard {
	return &TamperGuard{cache: cache}
}

// HandleMessage implements dispatch.Client. TamperGuard only ever
// participates in the deadline/headroom accounting performed by the
// dispatcher; its default response on exhaustion is deny (§5).
func (g *TamperGuard) HandleMessage(ctx context.Context, msg *vnode.Message) (allow, cacheable bool) {
	select {
	case <-ctx.Done():
		return false, false
	default:
		return true, false
	}
}

func (g *TamperGuard) Enable()                                        {}
func (g *TamperGuard) Disable()                                       {}
func (g *TamperGuard) NotifyExit(pid int32, pidVersion uint64)        {}

// DefaultResponse is deny, matching the tamper-resistance posture.
func (g *TamperGuard) DefaultResponse() bool { return false }

// DeviceGuard governs volume-mount events (AUTH_MOUNT) for USB/removable
// device policy. Its default response is configurable: allow unless USB
// blocking is enabled (§7 DeadlineExceeded: "allow for device manager when
// USB blocking is off").
type DeviceGuard struct {
	cache          *arc.Cache
	usbBlockingOn  bool
	rootDeviceFlag func(dev uint64) bool
}

// NewDeviceGuard constructs a DeviceGuard. usbBlockingOn controls the
// default response when the authorizing path's deadline is exhausted.
func NewDeviceGuard(cache *arc.Cache, usbBlockingOn bool, rootDeviceFlag func(dev uint64) bool) *DeviceGuard {
	return &DeviceGuard{cache: cache, usbBlockingOn: usbBlockingOn, rootDeviceFlag: rootDeviceFlag}
}

// HandleMessage implements dispatch.Client for AUTH_MOUNT events.
func (g *DeviceGuard) HandleMessage(ctx context.Context, msg *vnode.Message) (allow, cacheable bool) {
	select {
	case <-ctx.Done():
		return g.DefaultResponse(), false
	default:
	}
	return true, false
}

func (g *DeviceGuard) Enable()                                 {}
func (g *DeviceGuard) Disable()                                {}
func (g *DeviceGuard) NotifyExit(pid int32, pidVersion uint64) {}

// NotifyUnmount flushes every ARC entry on the unmounted device, per §3's
// "volume flush on NOTIFY_UNMOUNT" lifecycle note. Root-device entries are
// never touched by a per-volume unmount.
func (g *DeviceGuard) NotifyUnmount(device uint64) {
	if g.rootDeviceFlag != nil && g.rootDeviceFlag(device) {
		return
	}
	g.cache.FlushDevice(device, arc.FilesystemUnmounted)
}

// DefaultResponse implements §7 DeadlineExceeded for AUTH_MOUNT: deny when
// USB blocking is on, allow otherwise.
func (g *DeviceGuard) DefaultResponse() bool { return !g.usbBlockingOn }
