// Package dispatch implements the Dispatcher (§5, §4.10): a
// single-producer fan-in that routes each kernel event to every
// subscribed client, enforces the deadline/headroom budget, and recovers
// ProgrammingErrors at the handler boundary so one bad event can never
// take down the whole core (§9 "From ObjC exceptions to explicit
// failure", adapted for Go: a panic recovered at this boundary rather
// than a fatal process exit, since a single handler's bug must not starve
// every other client sharing the dispatcher).
package dispatch

import (
	"context"
	"log"
	"time"

	"github.com/wardsec/authcore/internal/vnode"
)

// DefaultHeadroom is the reserved margin before a message's deadline the
// dispatcher holds back for response plumbing (§5: "default 5s floor,
// clamped to 5s ceiling for test determinism").
const DefaultHeadroom = 5 * time.Second

// Response is a client's decision for one message.
type Response struct {
	Allow     bool
	Cacheable bool
}

// Client is the sum-of-clients interface every subsystem (FAAP, exec
// authorizer, TamperGuard, DeviceGuard) implements, replacing the
// source's virtual-method class hierarchy (§9).
type Client interface {
	HandleMessage(ctx context.Context, msg *vnode.Message) (allow, cacheable bool)
	Enable()
	Disable()
	NotifyExit(pid int32, pidVersion uint64)
}

// registration pairs a Client with whether it is currently enabled and the
// set of event types it is subscribed to.
type registration struct {
	name    string
	client  Client
	events  map[vnode.EventType]struct{}
	enabled bool
}

func (r *registration) subscribedTo(t vnode.EventType) bool {
	_, ok := r.events[t]
	return ok
}

// Dispatcher fans kernel events out to every registered, enabled client.
// It is invoked by a single producer thread per subscription (§5); it does
// not itself introduce concurrency beyond what each Client's HandleMessage
// does internally.
type Dispatcher struct {
	headroom time.Duration
	clients  []*registration
}

// New constructs a Dispatcher with DefaultHeadroom.
func New() *Dispatcher {
	return &Dispatcher{headroom: DefaultHeadroom}
}

// WithHeadroom overrides the default headroom; values above
// DefaultHeadroom are clamped to it (§5: "clamped to 5s ceiling for test
// determinism").
func (d *Dispatcher) WithHeadroom(h time.Duration) *Dispatcher {
	if h > DefaultHeadroom {
		h = DefaultHeadroom
	}
	d.headroom = h
	return d
}

// Register adds a client under name, enabled by default, subscribed only to
// the given event types (§2, §4.10: the dispatcher fans out by event type
// rather than delivering every message to every client). A client with no
// events never receives a message.
func (d *Dispatcher) Register(name string, c Client, events ...vnode.EventType) {
	set := make(map[vnode.EventType]struct{}, len(events))
	for _, e := range events {
		set[e] = struct{}{}
	}
	d.clients = append(d.clients, &registration{name: name, client: c, events: set, enabled: true})
}

// Enable/Disable toggle a named client's subscription.
func (d *Dispatcher) Enable(name string)  { d.setEnabled(name, true) }
func (d *Dispatcher) Disable(name string) { d.setEnabled(name, false) }

func (d *Dispatcher) setEnabled(name string, enabled bool) {
	for _, r := range d.clients {
		if r.name == name {
			r.enabled = enabled
			if enabled {
				r.client.Enable()
			} else {
				r.client.Disable()
			}
			return
		}
	}
}

// Dispatch delivers msg to every enabled client subscribed to msg.Event,
// deriving each client's context from msg.Deadline minus the configured
// headroom. A client whose handler panics with a ProgrammingError is
// recovered and logged; its response defaults to deny so tamper-resistant
// clients fail closed, while the rest of the fan-out still completes.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *vnode.Message) []Response {
	deadline := msg.Deadline.Add(-d.headroom)
	responses := make([]Response, 0, len(d.clients))
	for _, r := range d.clients {
		if !r.enabled || !r.subscribedTo(msg.Event) {
			continue
		}
		responses = append(responses, d.dispatchOne(ctx, deadline, r, msg))
	}
	return responses
}

func (d *Dispatcher) dispatchOne(ctx context.Context, deadline time.Time, r *registration, msg *vnode.Message) (resp Response) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("event=programming_error client=%s recovered=%v", r.name, rec)
			resp = Response{Allow: false, Cacheable: false}
		}
	}()

	cctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if cctx.Err() != nil {
		log.Printf("event=deadline_exceeded client=%s action=dropped", r.name)
	}

	// Each Client is responsible for its own default response once cctx is
	// done (§7 DeadlineExceeded varies the default by client: allow for
	// FAAP/recorder, deny for TamperGuard, configurable for DeviceGuard).
	allow, cacheable := r.client.HandleMessage(cctx, msg)
	return Response{Allow: allow, Cacheable: cacheable}
}

// NotifyExit fans a NOTIFY_EXIT event out to every client so the
// per-process caches that clients keep (FAAP's reads and TTY caches) are
// cleared. ARC entries are keyed by vnode and are not touched.
func (d *Dispatcher) NotifyExit(pid int32, pidVersion uint64) {
	for _, r := range d.clients {
		r.client.NotifyExit(pid, pidVersion)
	}
}
