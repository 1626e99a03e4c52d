// Package matcher implements the pure process-identity predicate match
// defined in spec §4.3.3: given a ProcessPredicate and a ProcessIdentity,
// decide whether the process satisfies the predicate.
package matcher

import (
	"bytes"
	"strings"

	"github.com/wardsec/authcore/internal/vnode"
)

// CertHashLookup resolves the leaf certificate SHA-256 of a process's
// executable, backed by the certificate-hash side cache (§4.3.4). It never
// fails: on lookup failure it returns the sentinel hash, which by
// construction matches no real predicate.
type CertHashLookup func(executable vnode.Key) [32]byte

// Match implements §4.3.3 exactly.
func Match(pred *vnode.Predicate, proc *vnode.Identity, certHash CertHashLookup) bool {
	if pred == nil || proc == nil {
		return pred.IsEmpty()
	}

	if proc.CodeSigningFlags.Has(vnode.Signed) {
		if pred.PlatformBinary != nil && proc.IsPlatformBinary != *pred.PlatformBinary {
			return false
		}
		if pred.TeamID != "" {
			if proc.TeamID == nil || *proc.TeamID != pred.TeamID {
				return false
			}
		}
		if pred.SigningID != "" {
			if proc.SigningID == nil || !matchSigningID(pred.SigningID, *proc.SigningID) {
				return false
			}
		}
		if pred.CDHash != nil {
			if proc.CDHash == nil || !bytes.Equal(proc.CDHash[:], pred.CDHash[:]) {
				return false
			}
		}
		if pred.CertificateSHA256 != nil {
			if certHash == nil {
				return false
			}
			actual := certHash(proc.ExecutableVnode)
			if actual != *pred.CertificateSHA256 {
				return false
			}
		}
	} else {
		if pred.UsesCodeSigning() {
			return false
		}
	}

	if pred.BinaryPath != "" && pred.BinaryPath != proc.ExecutablePath {
		return false
	}

	return true
}

// matchSigningID implements the single-wildcard substring match: if pred
// contains exactly one '*', split into (prefix, suffix) at the wildcard and
// require the instance to be at least as long as prefix+suffix with the
// prefix/suffix aligned at the ends. The wildcard matches any substring,
// including empty and including a literal '*' byte in the instance.
func matchSigningID(pred, instance string) bool {
	idx := strings.IndexByte(pred, '*')
	if idx < 0 {
		return pred == instance
	}
	prefix := pred[:idx]
	suffix := pred[idx+1:]
	if len(instance) < len(prefix)+len(suffix) {
		return false
	}
	return strings.HasPrefix(instance, prefix) && strings.HasSuffix(instance, suffix)
}
