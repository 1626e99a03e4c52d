// Package eventlog is the append-only enriched-event sink (§6 Logger
// sink). It mirrors the teacher's SharedLogger: a mutex-guarded writer
// that renders each authorization event as a logfmt line, optionally
// broadcasts it to introspection clients, and rotates the underlying file
// with gzip compression once it crosses a size threshold. Writes are
// synchronous: there is no queue, and LogEvent returns only after the
// write, the fsync and any rotation are done.
package eventlog

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Broadcaster receives every logged event for real-time fan-out (the
// introspection Hub implements this).
type Broadcaster interface {
	BroadcastEvent(entry Entry)
}

// DefaultMaxBytes is the rotation threshold when none is configured.
const DefaultMaxBytes = 64 << 20 // 64 MiB

// Logger is a single append-only authorization-event log file with
// cross-component synchronization; each LogEvent call holds the mutex
// for the whole write, so concurrent callers wait for one another.
type Logger struct {
	path        string
	file        *os.File
	maxBytes    int64
	written     int64
	mutex       sync.Mutex
	broadcaster Broadcaster
	instanceID  string
	seq         uint64
}

// New opens (or creates) the log file at path. An empty path yields a
// Logger that only broadcasts, matching the teacher's "path optional"
// SharedLogger behavior used in tests and ephemeral runs.
func New(path string, maxBytes int64) (*Logger, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	l := &Logger{path: path, maxBytes: maxBytes, instanceID: uuid.NewString()}
	if strings.TrimSpace(path) == "" {
		return l, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %q: %w", path, err)
	}
	if info, err := f.Stat(); err == nil {
		l.written = info.Size()
	}
	l.file = f
	return l, nil
}

// Path returns the configured log path.
func (l *Logger) Path() string { return l.path }

// SetBroadcaster wires a real-time event fan-out target.
func (l *Logger) SetBroadcaster(b Broadcaster) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.broadcaster = b
}

// LogEvent implements collab.LogSink. It renders event as a sorted-key
// logfmt line, appends it to the file (rotating first if needed), and
// broadcasts it to any configured introspection sink.
func (l *Logger) LogEvent(ctx context.Context, event map[string]any) {
	line := formatLogfmt(event)
	seq := atomic.AddUint64(&l.seq, 1)

	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.file != nil {
		if l.written >= l.maxBytes {
			l.rotateLocked()
		}
		n, err := l.file.WriteString(line + "\n")
		if err == nil {
			l.written += int64(n)
			_ = l.file.Sync()
		}
	}

	if l.broadcaster != nil {
		l.broadcaster.BroadcastEvent(Entry{
			Time:   time.Now().Format(time.RFC3339Nano),
			Seq:    seq,
			Line:   line,
			Fields: event,
		})
	}
}

// rotateLocked closes the current file, gzip-compresses it alongside, and
// opens a fresh append-only file at the same path. Callers must hold
// l.mutex.
func (l *Logger) rotateLocked() {
	if l.file == nil {
		return
	}
	_ = l.file.Close()

	rotated := l.path + "." + time.Now().UTC().Format("20060102T150405") + ".gz"
	if err := gzipFile(l.path, rotated); err != nil {
		log_fallback(err)
	} else {
		_ = os.Remove(l.path)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		l.file = nil
		l.written = 0
		return
	}
	l.file = f
	l.written = 0
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	defer gw.Close()

	_, err = io.Copy(gw, in)
	return err
}

func log_fallback(err error) {
	// Rotation is best-effort: a failed gzip must not block logging, so the
	// original file is left in place and will simply grow past maxBytes
	// until the next successful rotation attempt.
	_ = err
}

// Close releases the underlying file handle.
func (l *Logger) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func formatLogfmt(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(formatValue(fields[k]))
	}
	return sb.String()
}

func formatValue(v any) string {
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case bool:
		s = strconv.FormatBool(val)
	case int:
		s = strconv.Itoa(val)
	case int32:
		s = strconv.FormatInt(int64(val), 10)
	case int64:
		s = strconv.FormatInt(val, 10)
	case uint64:
		s = strconv.FormatUint(val, 10)
	case float64:
		s = strconv.FormatFloat(val, 'g', -1, 64)
	case fmt.Stringer:
		s = val.String()
	case nil:
		s = ""
	default:
		s = fmt.Sprintf("%v", val)
	}
	if strings.ContainsAny(s, " \t\"") {
		return strconv.Quote(s)
	}
	if s == "" {
		return `""`
	}
	return s
}
