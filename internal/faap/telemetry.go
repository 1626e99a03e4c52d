package faap

import (
	"context"

	"github.com/wardsec/authcore/internal/vnode"
	"github.com/wardsec/authcore/internal/watchitem"
)

// telemetryAndNotify implements §4.3.7: rate-limited logging, UI
// notification on an actual block, and a deduplicated TTY notice, for any
// target whose decision is Denied, DeniedInvalidSignature, or
// AllowedAuditOnly and for which a policy applied.
func (p *Processor) telemetryAndNotify(ctx context.Context, msg *vnode.Message, target vnode.Target, policy *watchitem.WatchItemPolicy, d Decision) {
	if policy == nil {
		return
	}
	if d != Denied && d != DeniedInvalidSignature && d != AllowedAuditOnly {
		return
	}

	// The rate limiter gates only the async log emission below (§4.3.7 step
	// 2); UI notification and the TTY notice are unconditional actions
	// (§4.4: the limiter "gates emission of per-decision telemetry without
	// affecting the decision itself" — that scope is the log, not the
	// user-facing block flow).
	allowed := true
	if p.limiter != nil {
		allowed = p.limiter.Decide()
	}
	p.recordMetric(allowed, msg, policy, d)

	if allowed && p.log != nil {
		p.log.LogEvent(ctx, p.enrichedEvent(msg, target, policy, d))
	}

	if d.IsBlock() && !policy.Silent && p.notify != nil {
		p.notify.Notify(p.enrichedEvent(msg, target, policy, d), policy.CustomMessage, "")
	}

	if !policy.SilentTTY && p.ttyOut != nil && p.hasTTY != nil && p.hasTTY(&msg.Process) {
		alreadySeen := p.tty.SeenAndRecord(msg.Process.PID, msg.Process.PIDVersion, policy.Version, policy.Name)
		if !alreadySeen {
			_ = p.ttyOut.WriteBlockNotice(&msg.Process, policy.Name, policy.CustomMessage)
		}
	}
}

func (p *Processor) recordMetric(allowed bool, msg *vnode.Message, policy *watchitem.WatchItemPolicy, d Decision) {
	if p.metrics == nil {
		return
	}
	labels := map[string]string{
		"version":    policy.Version,
		"name":       policy.Name,
		"event_type": eventTypeName(msg.Event),
		"decision":   d.String(),
	}
	if allowed {
		labels["status"] = "logged"
		p.metrics.IncCounter("/santa/file_access_event", labels, 1)
	} else {
		labels["status"] = "rate_limited"
		p.metrics.IncCounter("/santa/file_access_event", labels, 1)
	}
}

func (p *Processor) enrichedEvent(msg *vnode.Message, target vnode.Target, policy *watchitem.WatchItemPolicy, d Decision) map[string]any {
	return map[string]any{
		"event_type":      eventTypeName(msg.Event),
		"decision":        d.String(),
		"policy_name":     policy.Name,
		"policy_version":  policy.Version,
		"target_path":     target.Path,
		"pid":             msg.Process.PID,
		"pid_version":     msg.Process.PIDVersion,
		"executable_path": msg.Process.ExecutablePath,
	}
}

func eventTypeName(e vnode.EventType) string {
	switch e {
	case vnode.AuthOpen:
		return "AUTH_OPEN"
	case vnode.AuthClone:
		return "AUTH_CLONE"
	case vnode.AuthCopyfile:
		return "AUTH_COPYFILE"
	case vnode.AuthExchangedata:
		return "AUTH_EXCHANGEDATA"
	case vnode.AuthLink:
		return "AUTH_LINK"
	case vnode.AuthRename:
		return "AUTH_RENAME"
	case vnode.AuthCreate:
		return "AUTH_CREATE"
	case vnode.AuthTruncate:
		return "AUTH_TRUNCATE"
	case vnode.AuthUnlink:
		return "AUTH_UNLINK"
	default:
		return "UNKNOWN"
	}
}
