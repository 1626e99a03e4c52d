// Package settings is a TOML-backed runtime settings store for the
// parameters §7 calls "configurable at construction": ARC TTL and shard
// count, rate-limiter budget, dispatcher deadline headroom, and the
// bad-signature-protection toggle. It follows the teacher's
// configstore.Load/Save shape, adapted to this core's much smaller,
// flat settings surface.
package settings

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Settings holds every runtime-tunable parameter. Zero values are
// replaced with Defaults() by Load when a field is absent from the file.
type Settings struct {
	ARCTTL              Duration `toml:"arc_ttl"`
	ARCShards           int      `toml:"arc_shards"`
	RateLimitLogsPerSec int      `toml:"rate_limit_logs_per_sec"`
	RateLimitWindowSec  int      `toml:"rate_limit_window_sec"`
	DispatchHeadroom    Duration `toml:"dispatch_headroom"`
	BadSignatureProtect bool     `toml:"bad_signature_protection"`
	USBBlockingEnabled  bool     `toml:"usb_blocking_enabled"`
}

// Duration marshals as a TOML string ("500ms") rather than an integer
// count of nanoseconds, matching how operators actually write these
// files by hand.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Defaults returns the built-in defaults used when a setting is absent.
func Defaults() Settings {
	return Settings{
		ARCTTL:              Duration(500 * time.Millisecond),
		ARCShards:           16,
		RateLimitLogsPerSec: 50,
		RateLimitWindowSec:  60,
		DispatchHeadroom:    Duration(5 * time.Second),
		BadSignatureProtect: true,
		USBBlockingEnabled:  false,
	}
}

// ParseError represents a TOML decode failure at a known path.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse settings %s: %v", e.Path, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Load reads settings from path. A missing file yields Defaults(); any
// field absent from the file also falls back to its default.
func Load(path string) (Settings, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			return cfg, &ParseError{Path: path, Err: decodeErr}
		}
		return cfg, err
	}
	return cfg, nil
}

// Save persists cfg to path as TOML with file mode 0644. It does not create
// the parent directory.
func Save(path string, cfg Settings) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write settings %s: %w", path, err)
	}
	return nil
}
