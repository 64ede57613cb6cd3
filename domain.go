/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package zonesigner

import "github.com/miekg/dns"

// DomainStatus classifies a Domain's authority role in the zone, the Go
// tagged-variant replacement for the original's stringly-typed dstatus
// field (spec.md Design Notes).
type DomainStatus uint8

const (
	DomainStatusNone DomainStatus = iota
	DomainStatusApex
	DomainStatusAuth
	// DomainStatusNS is an unsigned delegation point (NS, no DS).
	DomainStatusNS
	// DomainStatusDS is a secure delegation point (NS and DS).
	DomainStatusDS
	DomainStatusENTAuth
	DomainStatusENTNS
	DomainStatusENTGlue
	DomainStatusOccluded
	// DomainStatusHash marks an NSEC3 shadow domain (legacy nsec3_domains
	// tree entry); it carries no RRsets of its own.
	DomainStatusHash
)

func (s DomainStatus) String() string {
	switch s {
	case DomainStatusNone:
		return "NONE"
	case DomainStatusApex:
		return "APEX"
	case DomainStatusAuth:
		return "AUTH"
	case DomainStatusNS:
		return "NS"
	case DomainStatusDS:
		return "DS"
	case DomainStatusENTAuth:
		return "ENT_AUTH"
	case DomainStatusENTNS:
		return "ENT_NS"
	case DomainStatusENTGlue:
		return "ENT_GLUE"
	case DomainStatusOccluded:
		return "OCCLUDED"
	case DomainStatusHash:
		return "HASH"
	default:
		return "UNKNOWN"
	}
}

// IsAuthoritative reports whether a domain in this status owns
// authoritative data that must be covered by a denial of existence
// record (spec.md invariant 3).
func (s DomainStatus) IsAuthoritative() bool {
	switch s {
	case DomainStatusApex, DomainStatusAuth, DomainStatusDS:
		return true
	default:
		return false
	}
}

func (s DomainStatus) isENT() bool {
	switch s {
	case DomainStatusENTAuth, DomainStatusENTNS, DomainStatusENTGlue:
		return true
	default:
		return false
	}
}

// Domain is one owner name in the zone: its RRsets, authority status, and
// the back-references the zone data engine maintains (never owns) for
// the parent domain and the associated denial-of-existence node.
type Domain struct {
	Name   string
	RRsets map[uint16]*RRset

	Status DomainStatus

	// Parent is a back-reference into the domain tree, never ownership.
	Parent *Domain

	SubdomainCount int
	SubdomainAuth  int

	// Denial is a back-reference to this domain's NSEC/NSEC3 node.
	Denial *Denial

	// NSEC3Shadow is the back-reference to this domain's entry in the
	// legacy nsec3_domains shadow tree (nil unless nsecify3 created it).
	NSEC3Shadow *Domain

	NsecBitmapChanged bool

	internalSerial uint32
}

func newDomain(name string) *Domain {
	return &Domain{
		Name:   dns.Fqdn(name),
		RRsets: make(map[uint16]*RRset),
		Status: DomainStatusNone,
	}
}

// RRsetCount returns the number of RRsets that hold at least one RR once
// pending changes are applied (committed plus pending adds, minus pending
// deletes, see RRset.Count), matching domain_count_rrset's use as "does
// this domain carry any data".
func (d *Domain) RRsetCount() int {
	n := 0
	for _, rs := range d.RRsets {
		if rs.Count() > 0 {
			n++
		}
	}
	return n
}

func (d *Domain) lookupRRset(t uint16) *RRset {
	return d.RRsets[t]
}

func (d *Domain) hasType(t uint16) bool {
	rs := d.RRsets[t]
	return rs != nil && rs.Count() > 0
}

// getOrCreateRRset returns the RRset for type t, creating an empty one
// (owned by this domain) if it does not exist yet.
func (d *Domain) getOrCreateRRset(t, class uint16, ttl uint32) *RRset {
	rs, ok := d.RRsets[t]
	if !ok {
		rs = newRRset(d.Name, class, t, ttl)
		d.RRsets[t] = rs
	}
	return rs
}

// sortedTypes returns the RRtypes with at least one committed RR, in
// ascending numeric order, the order the NSEC(3) type bitmap is built in.
func (d *Domain) sortedTypes() []uint16 {
	var types []uint16
	for t, rs := range d.RRsets {
		if len(rs.committed) > 0 {
			types = append(types, t)
		}
	}
	insertionSortUint16(types)
	return types
}

func insertionSortUint16(s []uint16) {
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && s[j] > v {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}
}
