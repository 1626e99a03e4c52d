// Package faap implements the FAAPolicyProcessor (§4.3): the central
// file-access authorization subsystem. For each file-operation auth event
// it extracts targets, looks up the applicable watch-item policy per
// target, applies the per-target decision algorithm, combines results,
// and drives telemetry/TTY notification.
package faap

// Decision is the per-target outcome of §4.3.2's algorithm, before
// collapsing to the binary allow/deny the framework actually responds
// with.
type Decision int

const (
	NoPolicy Decision = iota
	DeniedInvalidSignature
	AllowedReadAccess
	Allowed
	Denied
	AllowedAuditOnly
)

func (d Decision) String() string {
	switch d {
	case NoPolicy:
		return "NoPolicy"
	case DeniedInvalidSignature:
		return "DeniedInvalidSignature"
	case AllowedReadAccess:
		return "AllowedReadAccess"
	case Allowed:
		return "Allowed"
	case Denied:
		return "Denied"
	case AllowedAuditOnly:
		return "AllowedAuditOnly"
	default:
		return "Invalid"
	}
}

// IsAllow translates a per-target decision to the binary allow/deny the
// framework ultimately responds with (§4.3.5).
func (d Decision) IsAllow() bool {
	return d != Denied && d != DeniedInvalidSignature
}

// IsBlock reports whether the decision represents an actual denial at the
// framework layer (used to gate UI notification: audit-only is not a
// block, §4.3.7 step 3).
func (d Decision) IsBlock() bool {
	return d == Denied || d == DeniedInvalidSignature
}

// Override is the process-wide setting from §4.3.2 "Override".
type Override int

const (
	OverrideNone Override = iota
	OverrideAuditOnly
	OverrideDisable
)

// applyOverride implements the Override semantics: AuditOnly upgrades any
// block decision to AllowedAuditOnly and leaves others untouched; Disable
// collapses every decision to NoPolicy.
func applyOverride(d Decision, o Override) Decision {
	switch o {
	case OverrideDisable:
		return NoPolicy
	case OverrideAuditOnly:
		if d.IsBlock() {
			return AllowedAuditOnly
		}
		return d
	default:
		return d
	}
}

// Combine implements §4.3.5: deny dominates allow across all targets, and
// the combined response is framework-cacheable only if every target
// decision is exactly Allowed.
func Combine(decisions []Decision) (allow bool, cacheable bool) {
	allow = true
	cacheable = true
	for _, d := range decisions {
		if !d.IsAllow() {
			allow = false
		}
		if d != Allowed {
			cacheable = false
		}
	}
	return allow, cacheable
}
