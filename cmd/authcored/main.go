// Command authcored wires the ARC, ExecAuthorizer, FAAPolicyProcessor,
// RateLimiter, TamperGuard, and DeviceGuard together behind a Dispatcher,
// following the teacher's leashd.Main shape: flag.FlagSet CLI flags over
// environment variables over the persisted settings file, then a blocking
// Run loop torn down on SIGINT/SIGTERM.
//
// This binary does not itself speak to the kernel authorization
// framework: the event source and the platform-specific collaborators it
// would need (code-signing lookups, UI notification, suspend/resume
// validation) are supplied by the embedding system. What this package
// wires is the authorization core itself.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/wardsec/authcore/internal/arc"
	"github.com/wardsec/authcore/internal/certcache"
	"github.com/wardsec/authcore/internal/collab"
	"github.com/wardsec/authcore/internal/dispatch"
	"github.com/wardsec/authcore/internal/eventlog"
	"github.com/wardsec/authcore/internal/execauth"
	"github.com/wardsec/authcore/internal/faap"
	"github.com/wardsec/authcore/internal/guard"
	"github.com/wardsec/authcore/internal/ratelimit"
	"github.com/wardsec/authcore/internal/settings"
	"github.com/wardsec/authcore/internal/telemetry"
	"github.com/wardsec/authcore/internal/ttywriter"
	"github.com/wardsec/authcore/internal/vnode"
	"github.com/wardsec/authcore/internal/watchitem"
)

func main() {
	if err := run(os.Args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("authcored: %v", err)
	}
}

type config struct {
	SettingsPath string
	LogPath      string
	PolicyPath   string
	InspectAddr  string
	RingSize     int
	BulkEvents   int
	TelemetryOn  bool
}

func run(args []string) error {
	cfg, err := parseConfig(args)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	return rt.Run()
}

func parseConfig(args []string) (*config, error) {
	name := "authcored"
	if len(args) > 0 {
		name = filepath.Base(args[0])
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	defaultSettings := strings.TrimSpace(os.Getenv("AUTHCORED_SETTINGS"))
	if defaultSettings == "" {
		defaultSettings = "/etc/authcored/settings.toml"
	}
	settingsPath := fs.String("settings", defaultSettings, "Runtime settings TOML path")

	logPath := fs.String("log", strings.TrimSpace(os.Getenv("AUTHCORED_LOG")), "Authorization event log path (optional)")
	policyPath := fs.String("policy", strings.TrimSpace(os.Getenv("AUTHCORED_POLICY")), "Cedar watch-item policy file")
	inspectAddr := fs.String("inspect", strings.TrimSpace(os.Getenv("AUTHCORED_INSPECT")), "Serve the websocket event-inspection feed on this address (blank disables it)")
	ringSize := fs.Int("inspect-ring-size", eventlog.DefaultRingSize, "Number of events retained for new inspector connections")
	bulkEvents := fs.Int("inspect-bulk-events", 2000, "Events sent to a newly connected inspector client")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags]\n\nFlags:\n", name)
		fs.PrintDefaults()
	}

	var flagArgs []string
	if len(args) > 1 {
		flagArgs = args[1:]
	}
	if err := fs.Parse(flagArgs); err != nil {
		return nil, err
	}
	if len(fs.Args()) > 0 {
		return nil, fmt.Errorf("unexpected extra arguments: %v", fs.Args())
	}

	return &config{
		SettingsPath: strings.TrimSpace(*settingsPath),
		LogPath:      strings.TrimSpace(*logPath),
		PolicyPath:   strings.TrimSpace(*policyPath),
		InspectAddr:  strings.TrimSpace(*inspectAddr),
		RingSize:     *ringSize,
		BulkEvents:   *bulkEvents,
		TelemetryOn:  telemetryEnvOn(),
	}, nil
}

func telemetryEnvOn() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("AUTHCORED_OTEL")))
	return v == "1" || v == "true" || v == "on" || v == "enabled"
}

// runtime owns every long-lived collaborator this binary wires together.
type runtime struct {
	settings settings.Settings

	cache   *arc.Cache
	limiter *ratelimit.Limiter
	certs   *certcache.Cache
	table   *watchitem.Table

	logger   *eventlog.Logger
	hub      *eventlog.Hub
	metrics  *telemetry.Provider
	ttyOut   *ttywriter.Writer

	dispatcher *dispatch.Dispatcher
	faapData   *faap.Processor
	faapProc   *faap.Processor
	exec       *execauth.Authorizer
	tamper     *guard.TamperGuard
	device     *guard.DeviceGuard

	inspectAddr string
}

func newRuntime(cfg *config) (*runtime, error) {
	st, err := settings.Load(cfg.SettingsPath)
	if err != nil {
		var parseErr *settings.ParseError
		if errors.As(err, &parseErr) {
			return nil, parseErr
		}
		log.Printf("authcored: settings load warning: %v (continuing with defaults)", err)
		st = settings.Defaults()
	}

	logger, err := eventlog.New(cfg.LogPath, 0)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}

	hub := eventlog.NewHub(cfg.RingSize, cfg.BulkEvents)
	logger.SetBroadcaster(hub)

	metrics, err := telemetry.Setup(context.Background(), telemetry.Config{ServiceName: "authcored", Enabled: cfg.TelemetryOn})
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	cache := arc.New(st.ARCShards, arc.WithTTL(time.Duration(st.ARCTTL)))
	limiter := ratelimit.New(int64(st.RateLimitLogsPerSec), int64(st.RateLimitWindowSec))
	certs := certcache.New(nil, nil)
	table := watchitem.NewTable()

	if cfg.PolicyPath != "" {
		if err := loadPolicy(table, cfg.PolicyPath); err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
	}

	ttyOut := ttywriter.New(nil)

	rt := &runtime{
		settings:    st,
		cache:       cache,
		limiter:     limiter,
		certs:       certs,
		table:       table,
		logger:      logger,
		hub:         hub,
		metrics:     metrics,
		ttyOut:      ttyOut,
		inspectAddr: cfg.InspectAddr,
	}

	rt.faapData = faap.New(faap.Config{
		Table:                        table,
		Certs:                        certs,
		Limiter:                      limiter,
		Kind:                         vnode.ClientData,
		EnableBadSignatureProtection: st.BadSignatureProtect,
		Log:                          logger,
		TTY:                          ttyOut,
		Metrics:                      metrics,
		HasTTY:                       ttyOut.HasTTY,
	})
	rt.faapProc = faap.New(faap.Config{
		Table:                        table,
		Certs:                        certs,
		Limiter:                      limiter,
		Kind:                         vnode.ClientProcess,
		EnableBadSignatureProtection: st.BadSignatureProtect,
		Log:                          logger,
		TTY:                          ttyOut,
		Metrics:                      metrics,
		HasTTY:                       ttyOut.HasTTY,
	})
	table.OnRuleChange(func(added, removed []watchitem.PathRuleChange) {
		rt.faapData.OnRuleChange(added, removed)
		rt.faapProc.OnRuleChange(added, removed)
		rt.certs.FlushAll()
	})

	rt.exec = execauth.New(execauth.Config{
		Cache:     cache,
		Validator: noopExecValidator{},
		TTY:       ttyOut,
		HasTTY:    ttyOut.HasTTY,
	})
	rt.tamper = guard.NewTamperGuard(cache)
	rt.device = guard.NewDeviceGuard(cache, st.USBBlockingEnabled, nil)

	rt.dispatcher = dispatch.New().WithHeadroom(time.Duration(st.DispatchHeadroom))
	rt.dispatcher.Register("faap.data", rt.faapData, vnode.FileAccessEventTypes()...)
	rt.dispatcher.Register("faap.process", rt.faapProc, vnode.FileAccessEventTypes()...)
	rt.dispatcher.Register("exec", rt.exec, vnode.ExecEventTypes()...)
	rt.dispatcher.Register("tamper", rt.tamper, vnode.TamperGuardEventTypes()...)
	rt.dispatcher.Register("device", rt.device, vnode.AuthMount)

	return rt, nil
}

func loadPolicy(table *watchitem.Table, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	comp, err := watchitem.CompileString(filepath.Base(path), "1", string(data))
	if err != nil {
		return err
	}
	table.Replace(comp.Version, comp.Paths, comp.Procs)
	return nil
}

// Run starts the optional inspection feed and blocks until SIGINT/SIGTERM.
// Dispatching live events into rt.dispatcher is the embedding system's
// responsibility; this binary only owns process lifetime and the
// ambient stack.
func (rt *runtime) Run() error {
	if rt.inspectAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.HandleFunc("/events", rt.hub.ServeHTTP)
			log.Printf("authcored: inspection feed listening on %s", rt.inspectAddr)
			if err := http.ListenAndServe(rt.inspectAddr, mux); err != nil {
				log.Printf("authcored: inspection feed stopped: %v", err)
			}
		}()
	}

	stop := make(chan struct{})
	go rt.reportCacheCounts(stop)
	defer close(stop)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Printf("authcored: shutting down")
	return nil
}

// reportCacheCounts periodically lands arc.Cache.Counts() in the metrics
// sink (§4.1 counts(), SUPPLEMENTED FEATURES: "counts() ... have somewhere
// real to land instead of being pure getters").
func (rt *runtime) reportCacheCounts(stop <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rootOwned, nonRootOwned := rt.cache.Counts()
			rt.metrics.SetGauge(telemetry.MetricARCRootOwnedEntries, nil, float64(rootOwned))
			rt.metrics.SetGauge(telemetry.MetricARCNonRootOwnedEntries, nil, float64(nonRootOwned))
		}
	}
}

func (rt *runtime) Close() error {
	_ = rt.metrics.Shutdown(context.Background())
	return rt.logger.Close()
}

// noopExecValidator is the out-of-scope platform collaborator: real
// builds supply one backed by the kernel authorization framework.
type noopExecValidator struct{}

func (noopExecValidator) SynchronouslyShouldProcess(msg *vnode.Message) bool { return true }

func (noopExecValidator) ValidateExec(msg *vnode.Message, respond func(action arc.Action, shouldCache bool)) {
	respond(arc.RespondAllow, true)
}

func (noopExecValidator) ValidateSuspendResume(msg *vnode.Message, respond func(allow bool)) {
	respond(true)
}

var _ collab.ExecValidator = noopExecValidator{}
