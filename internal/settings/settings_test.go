package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Defaults() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.toml")
	want := Settings{
		ARCTTL:              Duration(2 * time.Second),
		ARCShards:           32,
		RateLimitLogsPerSec: 10,
		RateLimitWindowSec:  30,
		DispatchHeadroom:    Duration(time.Second),
		BadSignatureProtect: false,
		USBBlockingEnabled:  true,
	}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestLoadPartialFileFallsBackToDefaultsForMissingFields(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "partial.toml")
	if err := Save(path, Settings{ARCShards: 64}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Overwrite with a file that only sets one field, simulating a
	// hand-edited partial config.
	if err := writeRaw(path, "arc_shards = 64\n"); err != nil {
		t.Fatalf("writeRaw: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ARCShards != 64 {
		t.Fatalf("expected overridden arc_shards=64, got %d", got.ARCShards)
	}
	if got.RateLimitLogsPerSec != Defaults().RateLimitLogsPerSec {
		t.Fatalf("expected default rate_limit_logs_per_sec to survive, got %d", got.RateLimitLogsPerSec)
	}
}

func TestLoadRejectsInvalidTOML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := writeRaw(path, "this is not = valid [[ toml"); err != nil {
		t.Fatalf("writeRaw: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected a ParseError for malformed TOML")
	}
}

func writeRaw(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0644)
}
