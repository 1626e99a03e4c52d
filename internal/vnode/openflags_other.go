//go:build !unix

package vnode

// OpenFlags mirrors the kernel-supplied open(2) flag bits on hosts without a
// golang.org/x/sys/unix constant table (the core only ever runs on Darwin,
// but tests and tooling may build on other GOOS).
type OpenFlags uint32

const (
	FWRITE OpenFlags = 1 << iota
	OAppend
	OTrunc
)

func (f OpenFlags) Has(bits OpenFlags) bool { return f&bits != 0 }

func (f OpenFlags) IsWriteIntent() bool {
	return f.Has(FWRITE | OAppend | OTrunc)
}
