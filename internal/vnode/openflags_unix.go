//go:build unix

package vnode

import "golang.org/x/sys/unix"

// OpenFlags mirrors the kernel-supplied open(2) flag bits the FAA policy
// processor inspects. Built from golang.org/x/sys/unix so the bit values
// always match the host's actual syscall ABI rather than a hand-copied
// constant table.
type OpenFlags uint32

const (
	FWRITE OpenFlags = OpenFlags(unix.O_WRONLY) | OpenFlags(unix.O_RDWR)
	OAppend OpenFlags = OpenFlags(unix.O_APPEND)
	OTrunc  OpenFlags = OpenFlags(unix.O_TRUNC)
)

// Has reports whether any of the given bits are set.
func (f OpenFlags) Has(bits OpenFlags) bool { return f&bits != 0 }

// IsWriteIntent reports whether the flags contain any of FWRITE|O_APPEND|O_TRUNC,
// the write-intent test used by §4.3.2 (read-access short-circuit) and
// §4.3.6 (reads-cache elision eligibility).
func (f OpenFlags) IsWriteIntent() bool {
	return f.Has(FWRITE | OAppend | OTrunc)
}
