package watchitem

import "testing"

const sampleCedar = `
@name("protect-secrets")
@paths("/etc/secrets.conf,/etc/other-secrets.conf")
@allow_read_access("true")
@team_id("ABCDE12345")
permit(principal, action, resource);

@name("deny-curl-from-tmp")
@scope("processes")
@deny_processes("true")
@binary_path("/usr/bin/curl")
@audit_only("true")
forbid(principal, action, resource);
`

func TestCompileStringProducesPathAndProcessPolicies(t *testing.T) {
	t.Parallel()

	comp, err := CompileString("test.cedar", "v7", sampleCedar)
	if err != nil {
		t.Fatalf("unexpected compile error: %v", err)
	}

	if len(comp.Paths) != 2 {
		t.Fatalf("expected 2 path bindings from the comma-separated paths annotation, got %d", len(comp.Paths))
	}
	for _, pp := range comp.Paths {
		if pp.Policy.Name != "protect-secrets" {
			t.Errorf("expected protect-secrets policy, got %q", pp.Policy.Name)
		}
		if !pp.Policy.AllowReadAccess {
			t.Error("expected allow_read_access to be true")
		}
		if len(pp.Policy.Processes) != 1 || pp.Policy.Processes[0].TeamID != "ABCDE12345" {
			t.Errorf("expected team_id predicate, got %+v", pp.Policy.Processes)
		}
	}

	if len(comp.Procs) != 1 {
		t.Fatalf("expected 1 process-scoped policy, got %d", len(comp.Procs))
	}
	proc := comp.Procs[0]
	if proc.RuleType != ProcessesWithDeniedPaths {
		t.Errorf("expected ProcessesWithDeniedPaths, got %v", proc.RuleType)
	}
	if !proc.AuditOnly {
		t.Error("expected audit_only to be true")
	}
	if len(proc.Processes) != 1 || proc.Processes[0].BinaryPath != "/usr/bin/curl" {
		t.Errorf("expected binary_path predicate, got %+v", proc.Processes)
	}
}

func TestCompileStringRejectsBadPredicate(t *testing.T) {
	t.Parallel()

	const badCedar = `
@name("bad-wildcard")
@paths("/etc/x")
@signing_id("com.*.test")
permit(principal, action, resource);
`
	_, err := CompileString("bad.cedar", "v1", badCedar)
	if err == nil {
		t.Fatal("expected a PredicateConstructionError for a wildcard signing_id with no team_id or platform_binary")
	}
}

func TestCompileStringRejectsMissingPaths(t *testing.T) {
	t.Parallel()

	const noPaths = `
@name("no-paths")
permit(principal, action, resource);
`
	_, err := CompileString("nopaths.cedar", "v1", noPaths)
	if err == nil {
		t.Fatal("expected an error when a paths-scoped policy has no paths annotation")
	}
}
