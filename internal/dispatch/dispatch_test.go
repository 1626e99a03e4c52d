package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/wardsec/authcore/internal/vnode"
)

type fakeClient struct {
	allow, cacheable bool
	panicOnHandle    bool
	exitCalls        int
	enabled          int
	disabled         int
}

func (f *fakeClient) HandleMessage(ctx context.Context, msg *vnode.Message) (bool, bool) {
	if f.panicOnHandle {
		panic("unreachable enum value")
	}
	return f.allow, f.cacheable
}
func (f *fakeClient) Enable()  { f.enabled++ }
func (f *fakeClient) Disable() { f.disabled++ }
func (f *fakeClient) NotifyExit(pid int32, pidVersion uint64) { f.exitCalls++ }

func TestDispatchFansOutToAllEnabledClients(t *testing.T) {
	t.Parallel()

	d := New()
	a := &fakeClient{allow: true, cacheable: true}
	b := &fakeClient{allow: false, cacheable: false}
	d.Register("a", a, vnode.AuthExec)
	d.Register("b", b, vnode.AuthExec)

	msg := &vnode.Message{Event: vnode.AuthExec, Deadline: time.Now().Add(time.Minute)}
	responses := d.Dispatch(context.Background(), msg)
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	if !responses[0].Allow || responses[1].Allow {
		t.Fatalf("expected responses to reflect each client, got %+v", responses)
	}
}

func TestDispatchSkipsDisabledClients(t *testing.T) {
	t.Parallel()

	d := New()
	a := &fakeClient{allow: true}
	d.Register("a", a, vnode.AuthExec)
	d.Disable("a")

	msg := &vnode.Message{Event: vnode.AuthExec, Deadline: time.Now().Add(time.Minute)}
	responses := d.Dispatch(context.Background(), msg)
	if len(responses) != 0 {
		t.Fatalf("expected disabled client to be skipped, got %d responses", len(responses))
	}
	if a.disabled != 1 {
		t.Fatalf("expected Disable to be called once, got %d", a.disabled)
	}
}

func TestDispatchRecoversProgrammingErrorPanic(t *testing.T) {
	t.Parallel()

	d := New()
	bad := &fakeClient{panicOnHandle: true}
	good := &fakeClient{allow: true, cacheable: true}
	d.Register("bad", bad, vnode.AuthExec)
	d.Register("good", good, vnode.AuthExec)

	msg := &vnode.Message{Event: vnode.AuthExec, Deadline: time.Now().Add(time.Minute)}
	responses := d.Dispatch(context.Background(), msg)
	if len(responses) != 2 {
		t.Fatalf("expected both clients to produce a response despite the panic, got %d", len(responses))
	}
	if responses[0].Allow {
		t.Fatal("expected the panicking client's recovered response to deny")
	}
	if !responses[1].Allow {
		t.Fatal("expected the panic in one client to not affect the next client's dispatch")
	}
}

func TestDispatchOnlyReachesClientsSubscribedToTheEventType(t *testing.T) {
	t.Parallel()

	d := New()
	exec := &fakeClient{allow: true, cacheable: true}
	fileAccess := &fakeClient{allow: true, cacheable: true}
	mount := &fakeClient{allow: true, cacheable: true}
	d.Register("exec", exec, vnode.AuthExec, vnode.AuthProcSuspendResume)
	d.Register("faap", fileAccess, vnode.AuthOpen, vnode.AuthCreate)
	d.Register("device", mount, vnode.AuthMount)

	openMsg := &vnode.Message{Event: vnode.AuthOpen, Deadline: time.Now().Add(time.Minute)}
	responses := d.Dispatch(context.Background(), openMsg)
	if len(responses) != 1 {
		t.Fatalf("expected only the faap client to handle AUTH_OPEN, got %d responses", len(responses))
	}

	execMsg := &vnode.Message{Event: vnode.AuthExec, Deadline: time.Now().Add(time.Minute)}
	responses = d.Dispatch(context.Background(), execMsg)
	if len(responses) != 1 {
		t.Fatalf("expected only the exec client to handle AUTH_EXEC, got %d responses", len(responses))
	}

	mountMsg := &vnode.Message{Event: vnode.AuthMount, Deadline: time.Now().Add(time.Minute)}
	responses = d.Dispatch(context.Background(), mountMsg)
	if len(responses) != 1 {
		t.Fatalf("expected only the device client to handle AUTH_MOUNT, got %d responses", len(responses))
	}
}

func TestHeadroomClampedToDefaultCeiling(t *testing.T) {
	t.Parallel()

	d := New().WithHeadroom(time.Hour)
	if d.headroom != DefaultHeadroom {
		t.Fatalf("expected headroom to clamp to %v, got %v", DefaultHeadroom, d.headroom)
	}
}

func TestNotifyExitFansOutToAllClients(t *testing.T) {
	t.Parallel()

	d := New()
	a := &fakeClient{}
	b := &fakeClient{}
	d.Register("a", a, vnode.AuthExec)
	d.Register("b", b, vnode.AuthOpen)

	d.NotifyExit(7, 1)
	if a.exitCalls != 1 || b.exitCalls != 1 {
		t.Fatalf("expected NotifyExit to reach every client, got a=%d b=%d", a.exitCalls, b.exitCalls)
	}
}
