package vnode

import (
	"errors"
	"strings"
)

// ErrInvalidPredicate is returned by NewPredicate when construction fails
// the signing-id wildcard invariant.
var ErrInvalidPredicate = errors.New("vnode: invalid process predicate")

// Predicate is the policy side of a process match: what must be true of a
// process for it to satisfy a WatchItemPolicy rule.
type Predicate struct {
	BinaryPath        string
	TeamID            string
	SigningID         string
	CDHash            *[20]byte
	CertificateSHA256 *[32]byte
	PlatformBinary    *bool
}

// wildcardCount reports how many '*' bytes appear in s.
func wildcardCount(s string) int {
	return strings.Count(s, "*")
}

// NewPredicate validates the construction invariant from the data model:
// at most one '*' is allowed in SigningID, and if SigningID contains a '*'
// the predicate must also set PlatformBinary=true or a non-empty TeamID.
func NewPredicate(p Predicate) (*Predicate, error) {
	if n := wildcardCount(p.SigningID); n > 1 {
		return nil, ErrInvalidPredicate
	}
	if strings.Contains(p.SigningID, "*") {
		platformTrue := p.PlatformBinary != nil && *p.PlatformBinary
		if !platformTrue && p.TeamID == "" {
			return nil, ErrInvalidPredicate
		}
	}
	cp := p
	return &cp, nil
}

// IsEmpty reports whether the predicate constrains nothing at all, in which
// case it matches any process (signed or not).
func (p *Predicate) IsEmpty() bool {
	if p == nil {
		return true
	}
	return p.BinaryPath == "" && p.TeamID == "" && p.SigningID == "" &&
		p.CDHash == nil && p.CertificateSHA256 == nil && p.PlatformBinary == nil
}

// UsesCodeSigning reports whether the predicate sets any field that can only
// be evaluated against a signed process.
func (p *Predicate) UsesCodeSigning() bool {
	if p == nil {
		return false
	}
	return p.TeamID != "" || p.SigningID != "" || p.CDHash != nil || p.CertificateSHA256 != nil
}
