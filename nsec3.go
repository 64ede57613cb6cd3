/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package zonesigner

import (
	"crypto/sha1"
	"encoding/base32"
	"strings"

	"github.com/miekg/dns"
)

// Nsec3Params mirrors the NSEC3PARAM fields needed to hash an owner
// name: algorithm (must be 1, SHA-1, per RFC 5155), iteration count,
// salt, and the Opt-Out flag used by nsecify3.
type Nsec3Params struct {
	Algorithm  uint8
	Flags      uint8
	Iterations uint16
	Salt       []byte
}

// OptOut reports whether the Opt-Out flag (bit 0 of Flags) is set.
func (p Nsec3Params) OptOut() bool { return p.Flags&0x01 != 0 }

var base32hex = base32.HexEncoding.WithPadding(base32.NoPadding)

// HashedOwner computes the RFC 5155 §5 NSEC3 owner name for dname under
// apex: iterate SHA-1 Iterations+1 times over the salted wire-canonical
// lowercase name, base32hex-encode the result, and prepend it as a
// single label to apex.
func (p Nsec3Params) HashedOwner(dname, apex string) (string, error) {
	if p.Algorithm != 1 {
		return "", statusErrf(StatusErr, "HashedOwner", "unsupported NSEC3 hash algorithm %d", p.Algorithm)
	}

	wire, err := canonicalWireName(dname)
	if err != nil {
		return "", statusErrf(StatusErr, "HashedOwner", "%v", err)
	}

	h := sha1.Sum(append(wire, p.Salt...))
	digest := h[:]
	for i := uint16(0); i < p.Iterations; i++ {
		sum := sha1.Sum(append(append([]byte{}, digest...), p.Salt...))
		digest = sum[:]
	}

	label := strings.ToLower(base32hex.EncodeToString(digest))
	return dns.Fqdn(label + "." + strings.TrimPrefix(dns.Fqdn(apex), ".")), nil
}

// canonicalWireName returns the RFC 4034 §6.2 canonical wire form (no
// compression, lowercase) of a domain name, for use as NSEC3 hash input.
func canonicalWireName(name string) ([]byte, error) {
	lowered := lowerOwner(name)
	wire := make([]byte, 255)
	n, err := dns.PackDomainName(lowered, wire, 0, nil, false)
	if err != nil {
		return nil, statusErrf(StatusErr, "canonicalWireName", "pack %s: %v", name, err)
	}
	return wire[:n], nil
}
