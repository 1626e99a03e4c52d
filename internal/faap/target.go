package faap

import (
	"github.com/wardsec/authcore/internal/matcher"
	"github.com/wardsec/authcore/internal/vnode"
	"github.com/wardsec/authcore/internal/watchitem"
)

// CheckBlock is the path-set predicate oracle from §4.3.2: given a policy,
// a target, and the originating message, it reports whether the target's
// path is within the policy's watched set. For policies resolved through
// the path-keyed table this is always true (the table already performed
// the path match); it exists as an explicit seam for the process-scoped
// FAAP variant, where a policy may be resolved by process identity alone
// and must still be checked against the target path.
type CheckBlock func(policy *watchitem.WatchItemPolicy, target vnode.Target, msg *vnode.Message) bool

// AlwaysMatches is the CheckBlock used whenever the policy lookup already
// pinned the target path (the common path-scoped FAAP case).
func AlwaysMatches(*watchitem.WatchItemPolicy, vnode.Target, *vnode.Message) bool { return true }

// decideTargetInput bundles a single target's decision inputs.
type decideTargetInput struct {
	msg                   *vnode.Message
	target                vnode.Target
	policy                *watchitem.WatchItemPolicy
	checkBlock            CheckBlock
	enableBadSigProtection bool
	certHash              matcher.CertHashLookup
}

// isBadSignature reports the §4.3.2 step 2 condition: signed but not valid.
// The global protection toggle is checked by decideTarget, not here.
func isBadSignature(proc *vnode.Identity) bool {
	return proc.CodeSigningFlags.Has(vnode.Signed) && !proc.CodeSigningFlags.Has(vnode.Valid)
}

// isReadOnlyOpen reports whether an AUTH_OPEN's kernel flags carry no
// write intent (§4.3.2 step 3, §4.3.6).
func isReadOnlyOpen(msg *vnode.Message) bool {
	return msg.Event == vnode.AuthOpen && !msg.Flags.IsWriteIntent()
}

// decideTarget implements §4.3.2 exactly: NoPolicy short-circuit, bad
// signature short-circuit, read-access short-circuit, then
// match+invert+audit-only.
func decideTarget(in decideTargetInput) Decision {
	if in.policy == nil {
		return NoPolicy
	}

	if in.enableBadSigProtection && isBadSignature(&in.msg.Process) {
		return DeniedInvalidSignature
	}

	if in.policy.AllowReadAccess {
		switch {
		case isReadOnlyOpen(in.msg):
			return AllowedReadAccess
		case (in.msg.Event == vnode.AuthClone || in.msg.Event == vnode.AuthCopyfile) && in.target.IsReadable:
			return AllowedReadAccess
		}
	}

	matched := in.checkBlock(in.policy, in.target, in.msg) && matchesAnyProcess(in.policy, &in.msg.Process, in.certHash)

	var decision Decision
	if matched {
		decision = Allowed
	} else {
		decision = Denied
	}

	if in.policy.Invert() {
		if decision == Allowed {
			decision = Denied
		} else {
			decision = Allowed
		}
	}

	if decision == Denied && in.policy.AuditOnly {
		decision = AllowedAuditOnly
	}

	return decision
}

func matchesAnyProcess(policy *watchitem.WatchItemPolicy, proc *vnode.Identity, certHash matcher.CertHashLookup) bool {
	for _, pred := range policy.Processes {
		if matcher.Match(pred, proc, certHash) {
			return true
		}
	}
	return false
}
