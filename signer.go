/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package zonesigner

import (
	"time"

	"github.com/miekg/dns"
	"golang.org/x/exp/rand"
)

// KeyRef identifies a signing key without exposing private key material
// to the zone data engine; the concrete PrivateKeyCache-equivalent lives
// behind the SigningOracle implementation (key management/HSM session),
// an external collaborator per spec.md §1.
type KeyRef struct {
	Name      string
	KeyTag    uint16
	Algorithm uint8
	// IsKSK records the KSK/ZSK role of the key. Sign does not read it:
	// it signs DNSKEY RRsets with SignConf.KSKs and every other RRset
	// with SignConf.ZSKs.
	IsKSK bool
}

// SigningContext is an opaque handle returned by SigningOracle.Open and
// passed back to Sign/Close; the engine never inspects it.
type SigningContext any

// SigningOracle is the one signing collaborator the engine depends on
// (spec.md §6 downward dependencies): it accepts a canonical RRset and a
// key reference and returns an RRSIG. Implementations range from an HSM
// session to, for tests, a fixed-output double (see the testdouble used
// by the S5 rollback scenario).
type SigningOracle interface {
	Open() (SigningContext, error)
	Sign(ctx SigningContext, rrset []dns.RR, key KeyRef) (*dns.RRSIG, error)
	Close(ctx SigningContext)
}

// SignConf is the subset of signer configuration the engine consumes,
// produced by an external policy/config loader (spec.md §6).
type SignConf struct {
	SerialPolicy SerialPolicyKind

	SigInceptionOffset time.Duration
	SigJitter          time.Duration
	SigValidityDefault time.Duration
	SigValidityDenial  time.Duration
	SigRefresh         time.Duration

	KSKs []KeyRef
	ZSKs []KeyRef
}

// sigLifetime computes inception/expiration for a new RRSIG the same way
// tdns/sign.go's sigLifetime does: inception is now minus a fixed offset
// minus random jitter (to tolerate clock skew across secondaries),
// expiration is now plus the configured validity plus jitter.
func sigLifetime(now time.Time, offset, jitter, validity time.Duration) (incep, expir uint32) {
	var j time.Duration
	if jitter > 0 {
		j = time.Duration(rand.Int63n(int64(jitter)))
	}
	incep = uint32(now.Add(-offset).Add(-j).Unix())
	expir = uint32(now.Add(validity).Add(j).Unix())
	return incep, expir
}

// needsResigning reports whether an existing RRSIG must be replaced:
// either it is already expired, or it expires within sigRefresh of now.
func needsResigning(sig *dns.RRSIG, now time.Time, sigRefresh time.Duration) bool {
	expiry := time.Unix(int64(sig.Expiration), 0)
	return !expiry.After(now.Add(sigRefresh))
}
