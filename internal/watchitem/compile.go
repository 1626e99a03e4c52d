package watchitem

import (
	"fmt"
	"strconv"
	"strings"

	cedarlib "github.com/cedar-policy/cedar-go"
	"github.com/cedar-policy/cedar-go/types"

	"github.com/wardsec/authcore/internal/vnode"
)

// Compilation is the result of compiling a Cedar watch-item source into an
// active Table, mirroring the teacher's two-stage
// parse-then-transpile Compilation shape (internal/cedar.Compilation).
type Compilation struct {
	Source  string
	Version string
	Paths   []PathPolicies
	Procs   []*WatchItemPolicy
}

// CompileString parses Cedar watch-item policies and converts each policy
// into a WatchItemPolicy. Each policy is one watch-item rule: the effect
// (permit/forbid) plus a fixed set of annotations carries the rule's
// parameters, since a WatchItemPolicy is configuration data rather than a
// boolean authorization decision. A policy whose annotations fail the
// process-predicate construction invariant (§3 ProcessPredicate Invariant)
// yields a PredicateConstructionError, and the whole compilation fails:
// CompileString returns that error and no Compilation.
func CompileString(name, version, cedar string) (*Compilation, error) {
	ps, err := cedarlib.NewPolicySetFromBytes(name, []byte(cedar))
	if err != nil {
		return nil, fmt.Errorf("watchitem: parse %s: %w", name, err)
	}

	out := &Compilation{Source: name, Version: version}

	for id, policy := range ps.Map() {
		wip, scope, patterns, err := convertPolicy(string(id), policy)
		if err != nil {
			return nil, err
		}
		if wip == nil {
			continue
		}
		switch scope {
		case scopePaths:
			for _, pattern := range patterns {
				out.Paths = append(out.Paths, PathPolicies{
					Pattern:  pattern,
					IsPrefix: strings.HasSuffix(pattern, "/"),
					Policy:   wip,
				})
			}
		case scopeProcesses:
			out.Procs = append(out.Procs, wip)
		}
	}
	return out, nil
}

type ruleScope int

const (
	scopePaths ruleScope = iota
	scopeProcesses
)

// convertPolicy turns one annotated Cedar policy into a WatchItemPolicy.
// Recognized annotations: name, version, scope ("processes" selects a
// process-scoped rule), deny_processes, paths (comma-separated patterns),
// allow_read_access, audit_only, silent, silent_tty, custom_message,
// platform_binary, team_id, signing_id, binary_path (the last four each
// comma-separated for multiple alternative predicates, index-aligned
// across the predicate fields).
func convertPolicy(id string, policy *cedarlib.Policy) (*WatchItemPolicy, ruleScope, []string, error) {
	ann := annotationMap(policy)

	name := ann["name"]
	if name == "" {
		name = id
	}

	deniedProcesses := boolAnnotation(ann, "deny_processes")
	scope := scopePaths
	if ann["scope"] == "processes" {
		scope = scopeProcesses
	}

	var ruleType RuleType
	switch {
	case scope == scopePaths && !deniedProcesses:
		ruleType = PathsWithAllowedProcesses
	case scope == scopePaths && deniedProcesses:
		ruleType = PathsWithDeniedProcesses
	case scope == scopeProcesses && !deniedProcesses:
		ruleType = ProcessesWithAllowedPaths
	default:
		ruleType = ProcessesWithDeniedPaths
	}
	if policy.Effect() == types.Forbid {
		// A forbid effect on a paths-scoped rule is an author-facing
		// synonym for the *WithDenied* variant.
		if scope == scopePaths {
			ruleType = PathsWithDeniedProcesses
		} else {
			ruleType = ProcessesWithDeniedPaths
		}
	}

	predicates, err := buildPredicates(ann)
	if err != nil {
		return nil, scope, nil, &PredicateConstructionError{Policy: name, Err: err}
	}

	wip := &WatchItemPolicy{
		Name:            name,
		Version:         ann["version"],
		RuleType:        ruleType,
		Processes:       predicates,
		AllowReadAccess: boolAnnotation(ann, "allow_read_access"),
		AuditOnly:       boolAnnotation(ann, "audit_only"),
		Silent:          boolAnnotation(ann, "silent"),
		SilentTTY:       boolAnnotation(ann, "silent_tty"),
		CustomMessage:   ann["custom_message"],
	}

	var patterns []string
	if scope == scopePaths {
		patterns = splitNonEmpty(ann["paths"])
		if len(patterns) == 0 {
			return nil, scope, nil, &PredicateConstructionError{
				Policy: name,
				Err:    fmt.Errorf("paths-scoped policy has no paths annotation"),
			}
		}
	}

	return wip, scope, patterns, nil
}

// buildPredicates constructs the policy's process-predicate set from the
// index-aligned annotation columns. A policy with no predicate-shaped
// annotations gets a single empty predicate, which matches any process
// (§4.3.3: an empty predicate imposes no constraint).
func buildPredicates(ann map[string]string) ([]*vnode.Predicate, error) {
	teamIDs := splitNonEmpty(ann["team_id"])
	signingIDs := splitNonEmpty(ann["signing_id"])
	binaryPaths := splitNonEmpty(ann["binary_path"])
	platformFlags := splitNonEmpty(ann["platform_binary"])

	n := maxLen(teamIDs, signingIDs, binaryPaths, platformFlags)
	if n == 0 {
		pred, err := vnode.NewPredicate(vnode.Predicate{})
		if err != nil {
			return nil, err
		}
		return []*vnode.Predicate{pred}, nil
	}

	preds := make([]*vnode.Predicate, 0, n)
	for i := 0; i < n; i++ {
		raw := vnode.Predicate{
			TeamID:     at(teamIDs, i),
			SigningID:  at(signingIDs, i),
			BinaryPath: at(binaryPaths, i),
		}
		if flag := at(platformFlags, i); flag != "" {
			b, err := strconv.ParseBool(flag)
			if err != nil {
				return nil, fmt.Errorf("platform_binary[%d]: %w", i, err)
			}
			raw.PlatformBinary = &b
		}
		pred, err := vnode.NewPredicate(raw)
		if err != nil {
			return nil, fmt.Errorf("predicate %d: %w", i, err)
		}
		preds = append(preds, pred)
	}
	return preds, nil
}

func annotationMap(policy *cedarlib.Policy) map[string]string {
	out := make(map[string]string)
	for key, value := range policy.Annotations() {
		out[string(key)] = string(value)
	}
	return out
}

func boolAnnotation(ann map[string]string, key string) bool {
	v, ok := ann[key]
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func at(s []string, i int) string {
	if i < len(s) {
		return s[i]
	}
	return ""
}

func maxLen(slices ...[]string) int {
	max := 0
	for _, s := range slices {
		if len(s) > max {
			max = len(s)
		}
	}
	return max
}
