package faap

import "testing"

func TestCombineDenyDominates(t *testing.T) {
	t.Parallel()

	allow, cacheable := Combine([]Decision{Allowed, Denied})
	if allow {
		t.Fatal("expected deny to dominate allow")
	}
	if cacheable {
		t.Fatal("expected non-cacheable when any target is denied")
	}
}

func TestCombineCacheableOnlyWhenAllExactlyAllowed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		decisions []Decision
		cacheable bool
	}{
		{[]Decision{Allowed, Allowed}, true},
		{[]Decision{Allowed, AllowedReadAccess}, false},
		{[]Decision{Allowed, AllowedAuditOnly}, false},
		{[]Decision{Allowed, NoPolicy}, false},
		{[]Decision{}, true},
	}
	for i, c := range cases {
		_, cacheable := Combine(c.decisions)
		if cacheable != c.cacheable {
			t.Errorf("case %d: expected cacheable=%v, got %v", i, c.cacheable, cacheable)
		}
	}
}

func TestAuditOnlyNeverProducesExternalDeny(t *testing.T) {
	t.Parallel()

	allow, _ := Combine([]Decision{AllowedAuditOnly, NoPolicy})
	if !allow {
		t.Fatal("AllowedAuditOnly must translate to allow externally")
	}
}

func TestDisableOverrideProducesAllowNoCache(t *testing.T) {
	t.Parallel()

	for _, d := range []Decision{Denied, DeniedInvalidSignature, AllowedAuditOnly, Allowed, NoPolicy} {
		got := applyOverride(d, OverrideDisable)
		if got != NoPolicy {
			t.Errorf("Disable override of %v: expected NoPolicy, got %v", d, got)
		}
	}
	allow, cacheable := Combine([]Decision{applyOverride(Denied, OverrideDisable)})
	if !allow || cacheable {
		t.Fatalf("expected allow=true cacheable=false under Disable, got allow=%v cacheable=%v", allow, cacheable)
	}
}

func TestAuditOnlyOverrideUpgradesBlocksOnly(t *testing.T) {
	t.Parallel()

	if got := applyOverride(Denied, OverrideAuditOnly); got != AllowedAuditOnly {
		t.Errorf("expected Denied to upgrade to AllowedAuditOnly, got %v", got)
	}
	if got := applyOverride(DeniedInvalidSignature, OverrideAuditOnly); got != AllowedAuditOnly {
		t.Errorf("expected DeniedInvalidSignature to upgrade to AllowedAuditOnly, got %v", got)
	}
	if got := applyOverride(Allowed, OverrideAuditOnly); got != Allowed {
		t.Errorf("expected non-block decision to pass through unchanged, got %v", got)
	}
}
