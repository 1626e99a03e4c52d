// Package execauth implements the ExecAuthorizer (§4.2): the orchestrator
// for AUTH_EXEC and AUTH_PROC_SUSPEND_RESUME decisions. Concurrent execs of
// the same binary share one ARC admission and validator call through
// singleflight; each caller still polls the ARC on its own until the
// decision is in.
package execauth

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wardsec/authcore/internal/arc"
	"github.com/wardsec/authcore/internal/collab"
	"github.com/wardsec/authcore/internal/vnode"
)

// PollInterval is the sleep-then-retry interval for a Pending entry
// (§4.2 step 1/§5 "Suspension points").
const PollInterval = 5 * time.Millisecond

// ProbeResult is returned by a registered probe before an allow response
// is sent (§4.2 "Probe hook").
type ProbeResult struct {
	Interested bool
}

// Probe is the single optional downstream consulted before an allow
// response. Probe interest forces cacheable=false without changing the
// verdict.
type Probe func(msg *vnode.Message) ProbeResult

// Authorizer is the ExecAuthorizer.
type Authorizer struct {
	cache     *arc.Cache
	validator collab.ExecValidator
	tracker   collab.CompilerTracker
	ttyOut    collab.TTYWriter
	hasTTY    func(proc *vnode.Identity) bool
	rootOwned func(executable vnode.Key) bool

	probe Probe

	sf singleflight.Group
}

// Config wires an Authorizer's collaborators.
type Config struct {
	Cache     *arc.Cache
	Validator collab.ExecValidator
	Tracker   collab.CompilerTracker
	TTY       collab.TTYWriter
	HasTTY    func(proc *vnode.Identity) bool
	RootOwned func(executable vnode.Key) bool
}

// New constructs an Authorizer.
func New(cfg Config) *Authorizer {
	return &Authorizer{
		cache:     cfg.Cache,
		validator: cfg.Validator,
		tracker:   cfg.Tracker,
		ttyOut:    cfg.TTY,
		hasTTY:    cfg.HasTTY,
		rootOwned: cfg.RootOwned,
	}
}

// RegisterProbe installs the single optional downstream probe (§4.2).
func (a *Authorizer) RegisterProbe(p Probe) { a.probe = p }

// HandleMessage implements dispatch.Client: AUTH_PROC_SUSPEND_RESUME routes
// through AuthorizeSuspendResume, everything else through Authorize. Routing
// on msg.SubType instead of msg.Event would be a mistake: SuspendResumeSubtype
// only ever holds Suspend or Resume, so a SubType check is true for every
// message and never actually distinguishes an exec from a suspend/resume.
func (a *Authorizer) HandleMessage(ctx context.Context, msg *vnode.Message) (allow, cacheable bool) {
	var v Verdict
	if msg.Event == vnode.AuthProcSuspendResume {
		v = a.AuthorizeSuspendResume(ctx, msg)
	} else {
		v = a.Authorize(ctx, msg)
	}
	return v.Allow, v.Cacheable
}

// Enable/Disable are no-ops: the exec authorizer has no subscription
// state of its own beyond the ARC it shares with every other client.
func (a *Authorizer) Enable()  {}
func (a *Authorizer) Disable() {}

// NotifyExit is a no-op: ARC admission state is keyed by vnode, not by
// process, so a process exit has nothing here to clean up.
func (a *Authorizer) NotifyExit(pid int32, pidVersion uint64) {}

// Verdict is the framework-level response to an AUTH_EXEC event.
type Verdict struct {
	Allow     bool
	Cacheable bool
}

// Authorize implements the exec protocol of §4.2. ctx carries the event's
// deadline; callers are expected to derive it from the message's Deadline
// field so the poll loop is bounded by the framework deadline as the spec
// requires (§5, §9 Open Question: no explicit retry cap beyond that).
func (a *Authorizer) Authorize(ctx context.Context, msg *vnode.Message) Verdict {
	executable := msg.Process.ExecutableVnode
	hasScript := msg.IsScripted
	script := msg.ScriptVnode

	for {
		execState := a.cache.Check(executable)
		scriptState := arc.Allow // vacuously decisive when there is no script
		if hasScript {
			scriptState = a.cache.Check(script)
		}

		if execState == arc.Hold {
			a.notifyHold(msg)
			return Verdict{Allow: false, Cacheable: false}
		}
		if hasScript && scriptState == arc.Hold {
			a.notifyHold(msg)
			return Verdict{Allow: false, Cacheable: false}
		}

		if execState.IsDecisive() && (!hasScript || scriptState.IsDecisive()) {
			return a.respond(msg, execState, scriptState, hasScript)
		}

		if execState == arc.Unset {
			a.requestBinary(executable, msg)
		}
		if hasScript && scriptState == arc.Unset {
			a.requestBinary(script, msg)
		}

		select {
		case <-ctx.Done():
			return Verdict{Allow: false, Cacheable: false}
		case <-time.After(PollInterval):
		}
	}
}

// requestBinary coalesces concurrent admission attempts for the same
// vnode through singleflight so only one goroutine actually invokes the
// external validator; the rest simply retry the poll loop once the
// winner's result is visible in the ARC.
func (a *Authorizer) requestBinary(v vnode.Key, msg *vnode.Message) {
	key := vnodeKey(v)
	_, _, _ = a.sf.Do(key, func() (any, error) {
		rootOwned := a.rootOwned != nil && a.rootOwned(v)
		if _, ok := a.cache.Add(v, arc.RequestBinary, rootOwned); !ok {
			return nil, nil
		}
		a.validator.ValidateExec(msg, func(action arc.Action, shouldCache bool) {
			a.postAction(v, msg, action, shouldCache)
		})
		return nil, nil
	})
}

// postAction implements §4.2's post_action semantics.
func (a *Authorizer) postAction(v vnode.Key, msg *vnode.Message, action arc.Action, shouldCache bool) {
	if action == arc.RespondAllowCompiler && a.tracker != nil {
		a.tracker.SetProcess(msg.Process.AuditToken, true)
	}

	if action == arc.HoldAllowed || action == arc.HoldDenied {
		a.cache.Add(v, action, false)
		return
	}

	if shouldCache && action != arc.RespondDeny {
		rootOwned := a.rootOwned != nil && a.rootOwned(v)
		a.cache.Add(v, action, rootOwned)
		return
	}
	if action == arc.RespondDeny {
		// Deny is logged once per burst in the ARC but never cached at the
		// framework layer; callers re-derive cacheable=false from Verdict.
		rootOwned := a.rootOwned != nil && a.rootOwned(v)
		a.cache.Add(v, action, rootOwned)
		return
	}
	// shouldCache is false and action isn't Deny: the framework layer must
	// not remember this decision, so the Pending admission entry this
	// request created is cleared. ResetPending (§4.1) rather than Remove,
	// since by the time this callback runs another requester could have
	// raced in and advanced the entry past Pending; Remove would blow that
	// away too, ResetPending only clears what this call itself put there.
	a.cache.ResetPending(v)
}

func (a *Authorizer) respond(msg *vnode.Message, execState, scriptState arc.State, hasScript bool) Verdict {
	scriptDenies := hasScript && scriptState == arc.Deny
	execDenies := execState == arc.Deny

	allow := !scriptDenies && !execDenies
	cacheable := allow && !hasScript && execState != arc.Deny

	if allow && a.probe != nil {
		if a.probe(msg).Interested {
			cacheable = false
		}
	}

	return Verdict{Allow: allow, Cacheable: cacheable}
}

func (a *Authorizer) notifyHold(msg *vnode.Message) {
	if a.ttyOut == nil || a.hasTTY == nil || !a.hasTTY(&msg.Process) {
		return
	}
	_ = a.ttyOut.WriteBlockNotice(&msg.Process, "exec-hold", "")
}

// AuthorizeSuspendResume implements §4.2's Suspend/Resume protocol:
// RESUME is the only sub-type requiring authorization; it delegates to
// the external validator's boolean callback.
func (a *Authorizer) AuthorizeSuspendResume(ctx context.Context, msg *vnode.Message) Verdict {
	if msg.SubType != vnode.Resume {
		return Verdict{Allow: true, Cacheable: true}
	}

	result := make(chan bool, 1)
	a.validator.ValidateSuspendResume(msg, func(allow bool) { result <- allow })

	select {
	case allow := <-result:
		return Verdict{Allow: allow, Cacheable: true}
	case <-ctx.Done():
		return Verdict{Allow: false, Cacheable: false}
	}
}

func vnodeKey(v vnode.Key) string {
	buf := make([]byte, 0, 32)
	buf = appendUint(buf, v.Device)
	buf = append(buf, ':')
	buf = appendUint(buf, v.Inode)
	return string(buf)
}

func appendUint(buf []byte, v uint64) []byte {
	if v == 0 {
		return append(buf, '0')
	}
	var tmp [20]byte
	i := len(tmp)
	for v > 0 {
		i--
		tmp[i] = byte('0' + v%10)
		v /= 10
	}
	return append(buf, tmp[i:]...)
}
