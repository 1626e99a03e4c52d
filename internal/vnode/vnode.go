// Package vnode defines the data model shared by every authorization
// subsystem: the canonical on-disk file identity (Key), the immutable
// per-call process identity, policy-side process predicates, and the
// per-event path targets the FAA policy processor evaluates.
package vnode

// Key is the canonical identity of a file on disk for caching purposes.
// Two paths that resolve to the same Key are interchangeable for cache
// lookup; paths are never used as cache keys directly.
type Key struct {
	Device uint64
	Inode  uint64
}

// ClientKind distinguishes the two per-process reads-cache namespaces.
type ClientKind int

const (
	ClientData ClientKind = iota
	ClientProcess
)

func (k ClientKind) String() string {
	switch k {
	case ClientData:
		return "data"
	case ClientProcess:
		return "process"
	default:
		return "unknown"
	}
}

// CodeSigningFlags is a bit set mirroring the kernel's code-signing flags.
type CodeSigningFlags uint32

const (
	Signed CodeSigningFlags = 1 << iota
	Valid
)

func (f CodeSigningFlags) Has(bit CodeSigningFlags) bool { return f&bit != 0 }

// Identity is the immutable per-authorization-call process identity.
type Identity struct {
	PID        int32
	PIDVersion uint64

	AuditToken       []byte
	ParentAuditToken []byte
	ParentPath       string

	ExecutablePath  string
	ExecutableVnode Key
	ExecutableStat  any

	IsPlatformBinary bool
	CodeSigningFlags CodeSigningFlags

	TeamID    *string
	SigningID *string
	CDHash    *[20]byte
}

// Instance identifies a process instance across pid reuse.
type Instance struct {
	PID        int32
	PIDVersion uint64
}

func (p *Identity) Instance() Instance {
	return Instance{PID: p.PID, PIDVersion: p.PIDVersion}
}

// Target is one of the zero/one/two paths a file-operation event yields.
type Target struct {
	Path       string
	IsReadable bool
	Vnode      *Key
}
