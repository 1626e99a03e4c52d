package telemetry

import (
	"context"
	"testing"
)

func TestDisabledProviderIsANoOp(t *testing.T) {
	t.Parallel()

	p, err := Setup(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	// Must not panic on a nil meter when disabled.
	p.IncCounter(MetricFAMEnabled, nil, 1)
	p.SetGauge(MetricStartupPreference, nil, 1)
}

func TestEnabledProviderCreatesInstrumentsOnce(t *testing.T) {
	t.Parallel()

	p, err := Setup(context.Background(), Config{ServiceName: "authcored-test", Enabled: true})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	defer p.Shutdown(context.Background())

	p.IncCounter(MetricFileAccessEvent, map[string]string{"decision": "Allowed"}, 1)
	p.IncCounter(MetricFileAccessEvent, map[string]string{"decision": "Denied"}, 2)

	if len(p.counters) != 1 {
		t.Fatalf("expected a single cached counter instrument per name, got %d", len(p.counters))
	}
}

func TestInstrumentNameConvertsSantaPath(t *testing.T) {
	t.Parallel()

	if got := instrumentName("/santa/file_access_event"); got != "santa.file_access_event" {
		t.Fatalf("unexpected instrument name: %q", got)
	}
}
