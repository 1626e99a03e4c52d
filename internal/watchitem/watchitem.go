// Package watchitem implements the watched-paths table (§4.3.1/§6
// "Watch-item table"): WatchItemPolicy records, a path/process lookup
// table, and a Cedar-sourced compiler that produces them.
package watchitem

import (
	"errors"
	"fmt"

	"github.com/wardsec/authcore/internal/vnode"
)

// RuleType is the closed set of watch-item rule shapes.
type RuleType int

const (
	PathsWithAllowedProcesses RuleType = iota
	PathsWithDeniedProcesses
	ProcessesWithAllowedPaths
	ProcessesWithDeniedPaths
)

func (r RuleType) String() string {
	switch r {
	case PathsWithAllowedProcesses:
		return "PathsWithAllowedProcesses"
	case PathsWithDeniedProcesses:
		return "PathsWithDeniedProcesses"
	case ProcessesWithAllowedPaths:
		return "ProcessesWithAllowedPaths"
	case ProcessesWithDeniedPaths:
		return "ProcessesWithDeniedPaths"
	default:
		return "Invalid"
	}
}

// Invert reports whether matching rules should have Allowed/Denied swapped,
// per §4.3.2 step 5: true for the two *WithDenied* variants.
func (r RuleType) Invert() bool {
	return r == PathsWithDeniedProcesses || r == ProcessesWithDeniedPaths
}

// PredicateConstructionError is returned by CompileString when a policy's
// process predicates fail the wildcard/platform-binary/team-id invariant
// (§7). CompileString then returns no Compilation at all, so the active
// set is left untouched.
type PredicateConstructionError struct {
	Policy string
	Err    error
}

func (e *PredicateConstructionError) Error() string {
	return fmt.Sprintf("watchitem: policy %q: %v", e.Policy, e.Err)
}

func (e *PredicateConstructionError) Unwrap() error { return e.Err }

// ErrUnknownRuleType names a rule type outside the four closed variants.
// CompileString derives the rule type from the scope and deny_processes
// annotations and the policy's effect, so it never returns this error.
var ErrUnknownRuleType = errors.New("watchitem: unknown rule_type")

// WatchItemPolicy is one entry in the watched-paths table.
type WatchItemPolicy struct {
	Name    string
	Version string

	RuleType RuleType

	// Processes is the logical OR of predicates a matching process must
	// satisfy one of.
	Processes []*vnode.Predicate

	AllowReadAccess bool
	AuditOnly       bool
	Silent          bool
	SilentTTY       bool
	CustomMessage   string
}

// Invert is a convenience accessor mirroring the spec's derived field.
func (p *WatchItemPolicy) Invert() bool { return p.RuleType.Invert() }

// PathRuleChange describes one added or removed (path, rule_type) binding,
// delivered through the rule-change callback contract (§6).
type PathRuleChange struct {
	Path     string
	RuleType RuleType
}
