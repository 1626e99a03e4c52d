// Package collab defines the interfaces for every external collaborator
// the authorization core consumes (§6). None of these are implemented
// here: production wiring supplies real adapters, tests supply in-memory
// fakes.
package collab

import (
	"context"

	"github.com/wardsec/authcore/internal/arc"
	"github.com/wardsec/authcore/internal/vnode"
)

// CachedDecision is the precomputed code-signing summary the exec path may
// hand off to the certificate-hash side cache, avoiding a second platform
// API call (§4.3.4, §6 "Cached-decision store").
type CachedDecision struct {
	CertSHA256 [32]byte
	TeamID     string
	SigningID  string
	CDHash     [20]byte
	CertChain  [][]byte
}

// CachedDecisionStore resolves a precomputed CachedDecision for an
// executable's stat handle, read-only from the core's perspective.
type CachedDecisionStore interface {
	Lookup(stat any) (CachedDecision, bool)
}

// ExecValidator is the external authority that actually decides exec and
// suspend/resume events (§6 "Exec validator"). ValidateExec and
// ValidateSuspendResume are asynchronous: they call back post on their own
// schedule, potentially from another goroutine.
type ExecValidator interface {
	SynchronouslyShouldProcess(msg *vnode.Message) bool
	ValidateExec(msg *vnode.Message, post func(action arc.Action, shouldCache bool))
	ValidateSuspendResume(msg *vnode.Message, post func(allow bool))
}

// CompilerTracker records that a process is a compiler, influencing later
// classification of files the process writes (§4.2 post_action).
type CompilerTracker interface {
	SetProcess(auditToken []byte, isCompiler bool)
}

// LogSink is the append-only, non-blocking enriched-event logger (§6
// "Logger sink").
type LogSink interface {
	LogEvent(ctx context.Context, event map[string]any)
}

// NotificationSink delivers a block/audit notice to the desktop UI (§6
// "UI / TTY sinks"). customMessage and url are optional and may be empty.
type NotificationSink interface {
	Notify(event map[string]any, customMessage, url string)
}

// TTYWriter writes a multi-line ANSI-styled block notice to a process's
// controlling TTY, if writable. Implementations must be non-blocking with
// respect to the authorizing path.
type TTYWriter interface {
	WriteBlockNotice(proc *vnode.Identity, policyName, customMessage string) error
}

// MetricsSink records the named counters/gauges from §6: fam_enabled,
// file_access_event{version,name,status,event_type,decision}, the device
// manager startup counters, and rate-limited-event counts.
type MetricsSink interface {
	IncCounter(name string, labels map[string]string, delta int64)
	SetGauge(name string, labels map[string]string, value float64)
}

// RuleChangeNotifier is a source of added/removed (path, rule_type)
// callbacks (§6). watchitem.Table does not satisfy it, because its
// OnRuleChange takes watchitem.PathRuleChange values; cmd/authcored
// registers FAAP's rule-change callbacks on the table directly.
type RuleChangeNotifier interface {
	OnRuleChange(fn func(added, removed []PathRuleChange))
}

// PathRuleChange mirrors watchitem.PathRuleChange without importing that
// package, keeping collab's interfaces free of a dependency cycle back to
// the concrete rule-type enum's owner.
type PathRuleChange struct {
	Path     string
	RuleType int
}
