package vnode

import "time"

// EventType enumerates the kernel authorization/notification events the
// dispatcher fans out. Names mirror the ES_EVENT_TYPE_* family this core is
// modeled on.
type EventType int

const (
	AuthExec EventType = iota
	AuthProcSuspendResume
	AuthOpen
	AuthClone
	AuthCopyfile
	AuthExchangedata
	AuthLink
	AuthRename
	AuthCreate
	AuthTruncate
	AuthUnlink
	AuthMount // volume mount, handled by DeviceGuard

	NotifyClose
	NotifyUnmount
	NotifyExit
)

func (t EventType) IsAuth() bool {
	return t <= AuthMount
}

// ExecEventTypes are the events the ExecAuthorizer handles.
func ExecEventTypes() []EventType {
	return []EventType{AuthExec, AuthProcSuspendResume}
}

// FileAccessEventTypes are the events the FAAPolicyProcessor (and
// TamperGuard, which shares its path-protection surface) handle.
func FileAccessEventTypes() []EventType {
	return []EventType{
		AuthOpen, AuthClone, AuthCopyfile, AuthExchangedata,
		AuthLink, AuthRename, AuthCreate, AuthTruncate, AuthUnlink,
	}
}

// TamperGuardEventTypes are every event TamperGuard peers on: the full
// file-access surface plus exec, since a tamper attempt can arrive through
// either vector.
func TamperGuardEventTypes() []EventType {
	return append(ExecEventTypes(), FileAccessEventTypes()...)
}

// ActionType distinguishes auth (decision required) from notify (informational).
type ActionType int

const (
	Auth ActionType = iota
	Notify
)

// SuspendResumeSubtype distinguishes AUTH_PROC_SUSPEND_RESUME sub-events.
type SuspendResumeSubtype int

const (
	Suspend SuspendResumeSubtype = iota
	Resume
)

// Paths bundles the raw, event-specific path fields a kernel message may
// carry. Only the fields relevant to msg.Event are populated; a kernel
// buffer marked Truncated for a given field means that field must be
// treated as absent (§4.3.1 "a path whose kernel-supplied buffer is marked
// truncated is omitted entirely").
type Paths struct {
	File         string
	FileVnode    *Key
	Source       string
	SourceVnode  *Key
	TargetDir    string
	TargetName   string
	TargetFile   string // AUTH_COPYFILE only, optional
	ExistingFile string // AUTH_RENAME destination, when the destination exists
	File1        string
	File2        string
	Target       string

	Truncated map[string]bool
}

func (p *Paths) isTruncated(field string) bool {
	return p != nil && p.Truncated != nil && p.Truncated[field]
}

// Message is the immutable, per-call authorization/notification event
// delivered by the kernel auth source (§6). It owns no resources past the
// response; the dispatcher and authorizers must not retain it.
type Message struct {
	Event      EventType
	Action     ActionType
	Process    Identity
	Paths      Paths
	Flags      OpenFlags
	SubType    SuspendResumeSubtype
	IsScripted bool
	ScriptPath string
	ScriptVnode Key

	MachTime time.Time
	Deadline time.Time

	// Device is populated for AuthMount/NOTIFY_UNMOUNT events.
	Device uint64
}

// Targets extracts the zero/one/two PathTargets for the message per the
// table in §4.3.1. A path whose buffer is truncated is omitted entirely.
func (m *Message) Targets() []Target {
	p := &m.Paths
	switch m.Event {
	case AuthOpen:
		return withoutTruncated(p, []labeledTarget{
			{"file", Target{Path: p.File, IsReadable: true, Vnode: p.FileVnode}},
		})
	case AuthClone:
		return withoutTruncated(p, []labeledTarget{
			{"source", Target{Path: p.Source, IsReadable: true, Vnode: p.SourceVnode}},
			{"target", Target{Path: joinTarget(p.TargetDir, p.TargetName), IsReadable: false}},
		})
	case AuthCopyfile:
		dest := Target{Path: joinTarget(p.TargetDir, p.TargetName), IsReadable: false}
		destField := "target_dir_name"
		if p.TargetFile != "" {
			dest = Target{Path: p.TargetFile, IsReadable: true, Vnode: p.FileVnode}
			destField = "target_file"
		}
		return withoutTruncated(p, []labeledTarget{
			{"source", Target{Path: p.Source, IsReadable: true, Vnode: p.SourceVnode}},
			{destField, dest},
		})
	case AuthExchangedata:
		return withoutTruncated(p, []labeledTarget{
			{"file1", Target{Path: p.File1, IsReadable: false}},
			{"file2", Target{Path: p.File2, IsReadable: false}},
		})
	case AuthLink:
		return withoutTruncated(p, []labeledTarget{
			{"source", Target{Path: p.Source, IsReadable: false}},
			{"target", Target{Path: joinTarget(p.TargetDir, p.TargetName), IsReadable: false}},
		})
	case AuthRename:
		dest := Target{Path: joinTarget(p.TargetDir, p.TargetName), IsReadable: false}
		destField := "target_dir_name"
		if p.ExistingFile != "" {
			dest = Target{Path: p.ExistingFile, IsReadable: false}
			destField = "existing_file"
		}
		return withoutTruncated(p, []labeledTarget{
			{"source", Target{Path: p.Source, IsReadable: false}},
			{destField, dest},
		})
	case AuthCreate:
		return withoutTruncated(p, []labeledTarget{
			{"target_dir_name", Target{Path: joinTarget(p.TargetDir, p.TargetName), IsReadable: false}},
		})
	case AuthTruncate:
		return withoutTruncated(p, []labeledTarget{
			{"target", Target{Path: p.Target, IsReadable: false}},
		})
	case AuthUnlink:
		return withoutTruncated(p, []labeledTarget{
			{"target", Target{Path: p.Target, IsReadable: false}},
		})
	default:
		return nil
	}
}

type labeledTarget struct {
	field string
	t     Target
}

func withoutTruncated(p *Paths, in []labeledTarget) []Target {
	out := make([]Target, 0, len(in))
	for _, lt := range in {
		if p.isTruncated(lt.field) {
			continue
		}
		if lt.t.Path == "" {
			continue
		}
		out = append(out, lt.t)
	}
	return out
}

func joinTarget(dir, name string) string {
	if dir == "" {
		return name
	}
	if name == "" {
		return dir
	}
	if dir[len(dir)-1] == '/' {
		return dir + name
	}
	return dir + "/" + name
}
