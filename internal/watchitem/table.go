package watchitem

import (
	"strings"
	"sync"
)

// pathRule is one entry of the path-set predicate oracle FAAP treats
// opaquely (§4.3.2: "path-set semantics are provided by the external
// watch-item table; FAAP treats it as a predicate oracle"). literal and
// prefix cover the two shapes the compiler produces; glob is reserved for
// patterns containing '*', where the first '*' matches any substring
// (including '/'), consistent with the signing-id wildcard semantics used
// elsewhere.
type pathRule struct {
	pattern  string
	isPrefix bool
	policy   *WatchItemPolicy
}

// RuleChangeFunc is invoked whenever Table's active rule set changes.
type RuleChangeFunc func(added, removed []PathRuleChange)

// Table is the in-memory watch-item table: a path-keyed rule list plus a
// set of process-scoped policies (ProcessesWith{Allowed,Denied}Paths),
// which apply regardless of the target path.
type Table struct {
	mu sync.RWMutex

	version string
	paths   []pathRule
	procs   []*WatchItemPolicy

	onChange []RuleChangeFunc
}

// NewTable constructs an empty table at version "".
func NewTable() *Table {
	return &Table{}
}

// OnRuleChange registers a callback invoked after every Replace call with
// the set of (path, rule_type) bindings added and removed (§6).
func (t *Table) OnRuleChange(fn RuleChangeFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = append(t.onChange, fn)
}

// PathPolicies associates a path pattern with the policy that applies to
// paths matching it; used as Replace's input shape.
type PathPolicies struct {
	Pattern  string
	IsPrefix bool
	Policy   *WatchItemPolicy
}

// Replace atomically swaps the active path rules and process-scoped
// policies, computing the added/removed (path, rule_type) diff for the
// registered rule-change callbacks. ProcessesWith{Allowed,Denied}Paths
// policies are process-scoped and carry no path pattern here; they are
// returned by ActiveProcessPolicies and are not consulted by
// FindPoliciesForPaths, which is the only table lookup FAAP makes.
func (t *Table) Replace(version string, paths []PathPolicies, procPolicies []*WatchItemPolicy) {
	t.mu.Lock()

	before := make(map[string]RuleType, len(t.paths))
	for _, r := range t.paths {
		before[r.pattern] = r.policy.RuleType
	}

	newRules := make([]pathRule, 0, len(paths))
	after := make(map[string]RuleType, len(paths))
	for _, p := range paths {
		newRules = append(newRules, pathRule{pattern: p.Pattern, isPrefix: p.IsPrefix, policy: p.Policy})
		after[p.Pattern] = p.Policy.RuleType
	}

	var added, removed []PathRuleChange
	for path, rt := range after {
		if oldRT, ok := before[path]; !ok || oldRT != rt {
			added = append(added, PathRuleChange{Path: path, RuleType: rt})
		}
	}
	for path, rt := range before {
		if _, ok := after[path]; !ok {
			removed = append(removed, PathRuleChange{Path: path, RuleType: rt})
		}
	}

	t.version = version
	t.paths = newRules
	t.procs = procPolicies
	callbacks := append([]RuleChangeFunc(nil), t.onChange...)
	t.mu.Unlock()

	for _, cb := range callbacks {
		cb(added, removed)
	}
}

// FindPoliciesForPaths resolves the policy, if any, applying to each of
// the given paths, in order, along with the table's current version
// string (§6: "find_policies_for_paths(&[&str]) -> (version_string,
// Vec<Option<WatchItemPolicy>>)"). The first matching rule wins; an empty
// slot means no policy applies to that path.
func (t *Table) FindPoliciesForPaths(paths []string) (string, []*WatchItemPolicy) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*WatchItemPolicy, len(paths))
	for i, p := range paths {
		out[i] = t.matchLocked(p)
	}
	return t.version, out
}

func (t *Table) matchLocked(path string) *WatchItemPolicy {
	for _, r := range t.paths {
		if r.isPrefix {
			if strings.HasPrefix(path, r.pattern) {
				return r.policy
			}
			continue
		}
		if strings.Contains(r.pattern, "*") {
			if globMatch(r.pattern, path) {
				return r.policy
			}
			continue
		}
		if r.pattern == path {
			return r.policy
		}
	}
	return nil
}

// ActiveProcessPolicies returns the process-scoped watch-item policies
// (ProcessesWith{Allowed,Denied}Paths) currently active, for the
// process-lifetime watch table FAAP variant (§3 Ownership).
func (t *Table) ActiveProcessPolicies() []*WatchItemPolicy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*WatchItemPolicy, len(t.procs))
	copy(out, t.procs)
	return out
}

// globMatch implements the same single-wildcard substring semantics as
// matcher.matchSigningID, generalized to arbitrary path patterns.
func globMatch(pattern, s string) bool {
	idx := strings.IndexByte(pattern, '*')
	if idx < 0 {
		return pattern == s
	}
	prefix := pattern[:idx]
	suffix := pattern[idx+1:]
	if len(s) < len(prefix)+len(suffix) {
		return false
	}
	return strings.HasPrefix(s, prefix) && strings.HasSuffix(s, suffix)
}
