package faap

import (
	"context"

	"github.com/wardsec/authcore/internal/certcache"
	"github.com/wardsec/authcore/internal/collab"
	"github.com/wardsec/authcore/internal/matcher"
	"github.com/wardsec/authcore/internal/ratelimit"
	"github.com/wardsec/authcore/internal/vnode"
	"github.com/wardsec/authcore/internal/watchitem"
)

// OverrideFunc resolves the process-wide override setting (§4.3.2
// "Override") for a given process instance. A nil OverrideFunc is
// equivalent to always returning OverrideNone.
type OverrideFunc func(proc vnode.Instance) Override

// Config wires a Processor's collaborators (§6). Log, Notify, TTY, and
// Metrics are optional; a nil collaborator is simply skipped.
type Config struct {
	Table   *watchitem.Table
	Certs   *certcache.Cache
	Limiter *ratelimit.Limiter

	Kind       vnode.ClientKind
	CheckBlock CheckBlock

	EnableBadSignatureProtection bool
	Override                     OverrideFunc

	Log      collab.LogSink
	Notify   collab.NotificationSink
	TTY      collab.TTYWriter
	Metrics  collab.MetricsSink
	HasTTY   func(proc *vnode.Identity) bool
}

// Processor is the FAAPolicyProcessor (§4.3).
type Processor struct {
	table   *watchitem.Table
	certs   *certcache.Cache
	limiter *ratelimit.Limiter

	kind       vnode.ClientKind
	checkBlock CheckBlock

	enableBadSig bool
	override     OverrideFunc

	reads *ReadsCache
	tty   *TTYCache

	log     collab.LogSink
	notify  collab.NotificationSink
	ttyOut  collab.TTYWriter
	metrics collab.MetricsSink
	hasTTY  func(proc *vnode.Identity) bool
}

// New constructs a Processor. The returned Processor owns its reads/TTY
// caches exclusively (§3 Ownership).
func New(cfg Config) *Processor {
	checkBlock := cfg.CheckBlock
	if checkBlock == nil {
		checkBlock = AlwaysMatches
	}
	return &Processor{
		table:        cfg.Table,
		certs:        cfg.Certs,
		limiter:      cfg.Limiter,
		kind:         cfg.Kind,
		checkBlock:   checkBlock,
		enableBadSig: cfg.EnableBadSignatureProtection,
		override:     cfg.Override,
		reads:        NewReadsCache(),
		tty:          NewTTYCache(),
		log:          cfg.Log,
		notify:       cfg.Notify,
		ttyOut:       cfg.TTY,
		metrics:      cfg.Metrics,
		hasTTY:       cfg.HasTTY,
	}
}

// Result is the outcome of processing one message.
type Result struct {
	Allow     bool
	Cacheable bool
	Targets   []vnode.Target
	Decisions []Decision
	Elided    bool
}

// Process implements the full FAAP pipeline for one file-operation auth
// event: reads-cache elision, target extraction, per-target policy
// application, result combination, and telemetry/notification.
func (p *Processor) Process(ctx context.Context, msg *vnode.Message) Result {
	if elided, ok := p.tryElideRead(msg); ok {
		return elided
	}

	targets := msg.Targets()
	paths := make([]string, len(targets))
	for i, t := range targets {
		paths[i] = t.Path
	}
	_, policies := p.table.FindPoliciesForPaths(paths)

	override := OverrideNone
	if p.override != nil {
		override = p.override(msg.Process.Instance())
	}

	decisions := make([]Decision, len(targets))
	for i, target := range targets {
		certHash := p.certHashLookup()
		d := decideTarget(decideTargetInput{
			msg:                    msg,
			target:                 target,
			policy:                 policies[i],
			checkBlock:             p.checkBlock,
			enableBadSigProtection: p.enableBadSig,
			certHash:               certHash,
		})
		d = applyOverride(d, override)
		decisions[i] = d

		p.maybeSeedReadsCache(msg, target, policies[i], d)
		p.telemetryAndNotify(ctx, msg, target, policies[i], d)
	}

	allow, cacheable := Combine(decisions)
	return Result{Allow: allow, Cacheable: cacheable, Targets: targets, Decisions: decisions}
}

func (p *Processor) certHashLookup() matcher.CertHashLookup {
	if p.certs == nil {
		return nil
	}
	return func(executable vnode.Key) [32]byte {
		return p.certs.Lookup(executable, nil)
	}
}

// tryElideRead implements §4.3.6's fast path: a read-only AUTH_OPEN whose
// vnode is already in the reads cache short-circuits to allow without
// logging or invoking policy evaluation at all.
func (p *Processor) tryElideRead(msg *vnode.Message) (Result, bool) {
	if !isReadOnlyOpen(msg) {
		return Result{}, false
	}
	if msg.Paths.FileVnode == nil {
		return Result{}, false
	}
	if !p.reads.Contains(msg.Process.PID, msg.Process.PIDVersion, p.kind, *msg.Paths.FileVnode) {
		return Result{}, false
	}
	return Result{Allow: true, Cacheable: false, Elided: true}, true
}

// maybeSeedReadsCache implements §4.3.6's population rule: a policy
// applied, the decision was not DeniedInvalidSignature, the target had a
// vnode, and the policy's allow_read_access was true.
func (p *Processor) maybeSeedReadsCache(msg *vnode.Message, target vnode.Target, policy *watchitem.WatchItemPolicy, d Decision) {
	if policy == nil || !policy.AllowReadAccess {
		return
	}
	if d == DeniedInvalidSignature {
		return
	}
	if target.Vnode == nil {
		return
	}
	p.reads.Insert(msg.Process.PID, msg.Process.PIDVersion, p.kind, *target.Vnode)
}

// NotifyExit removes all per-process cache entries on NOTIFY_EXIT (§4.3.6,
// §3 lifecycle).
func (p *Processor) NotifyExit(pid int32, pidVersion uint64) {
	p.reads.RemoveProcess(pid, pidVersion)
	p.tty.RemoveProcess(pid, pidVersion)
}

// HandleMessage implements dispatch.Client, wrapping Process for the
// subset of the response every client reports to the dispatcher.
func (p *Processor) HandleMessage(ctx context.Context, msg *vnode.Message) (allow, cacheable bool) {
	result := p.Process(ctx, msg)
	return result.Allow, result.Cacheable
}

// Enable/Disable are no-ops: a disabled FAAP client still owns caches
// that NotifyExit and OnRuleChange must keep consistent regardless of
// whether the client is currently subscribed.
func (p *Processor) Enable()  {}
func (p *Processor) Disable() {}

// OnRuleChange clears both caches entirely, per §4.3.6 ("on any rule
// change the reads cache is fully cleared") generalized to the TTY cache,
// whose dedup set is keyed on (policy_version, policy_name) and is
// therefore equally invalidated by a rule change.
func (p *Processor) OnRuleChange(_, _ []watchitem.PathRuleChange) {
	p.reads.Clear()
	p.tty.Clear()
}
