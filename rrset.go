/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package zonesigner

import (
	"sort"

	"github.com/miekg/dns"
	"github.com/twotwotwo/sorts"
)

// RRset is the per-(owner,class,type) transactional RR store from
// spec.md §4.2: a three-set model (committed, pending_add, pending_del)
// plus the parallel RRSIG set that signing attaches without touching the
// authoritative content.
type RRset struct {
	Owner string
	Class uint16
	Type  uint16
	TTL   uint32

	committed  map[string]dns.RR
	pendingAdd map[string]dns.RR
	pendingDel map[string]dns.RR

	RRSIGs []*dns.RRSIG
}

func newRRset(owner string, class, rrtype uint16, ttl uint32) *RRset {
	return &RRset{
		Owner:      dns.Fqdn(owner),
		Class:      class,
		Type:       rrtype,
		TTL:        ttl,
		committed:  make(map[string]dns.RR),
		pendingAdd: make(map[string]dns.RR),
		pendingDel: make(map[string]dns.RR),
	}
}

// rdataKey returns a comparator key for rr's rdata, independent of owner,
// class and TTL, by packing a copy of the RR with those fields zeroed.
// Packing (rather than rr.String()) keeps embedded domain names in their
// canonical wire form, so two RRs that only differ by presentation
// (e.g. escaping) still compare equal.
func rdataKey(rr dns.RR) string {
	c := dns.Copy(rr)
	h := c.Header()
	h.Name = "."
	h.Ttl = 0
	h.Class = dns.ClassINET

	buf := make([]byte, dns.Len(c)+64)
	n, err := dns.PackRR(c, buf, 0, nil, false)
	if err != nil {
		return c.String()
	}
	return string(buf[:n])
}

// Add stages rr for addition: placed in pending_add unless it is already
// committed, and cancels a matching pending_del.
func (rs *RRset) Add(rr dns.RR) {
	key := rdataKey(rr)
	if _, ok := rs.pendingDel[key]; ok {
		delete(rs.pendingDel, key)
		return
	}
	if _, ok := rs.committed[key]; ok {
		return
	}
	rs.pendingAdd[key] = rr
}

// Del stages rr for removal: placed in pending_del if currently
// committed, and cancels a matching pending_add.
func (rs *RRset) Del(rr dns.RR) {
	key := rdataKey(rr)
	if _, ok := rs.pendingAdd[key]; ok {
		delete(rs.pendingAdd, key)
		return
	}
	if _, ok := rs.committed[key]; ok {
		rs.pendingDel[key] = rr
	}
}

// Diff returns the staged adds and deletes without committing them.
func (rs *RRset) Diff() (adds, dels []dns.RR) {
	for _, rr := range rs.pendingAdd {
		adds = append(adds, rr)
	}
	for _, rr := range rs.pendingDel {
		dels = append(dels, rr)
	}
	return adds, dels
}

// Commit atomically applies pending_add/pending_del to committed and
// clears both pending sets, returning the resulting RR count.
func (rs *RRset) Commit() int {
	for k, rr := range rs.pendingAdd {
		rs.committed[k] = rr
	}
	for k := range rs.pendingDel {
		delete(rs.committed, k)
	}
	rs.pendingAdd = make(map[string]dns.RR)
	rs.pendingDel = make(map[string]dns.RR)
	return len(rs.committed)
}

// Rollback discards both pending sets, leaving committed untouched.
func (rs *RRset) Rollback() {
	rs.pendingAdd = make(map[string]dns.RR)
	rs.pendingDel = make(map[string]dns.RR)
}

// Wipe stages every committed RR for deletion.
func (rs *RRset) Wipe() {
	for k, rr := range rs.committed {
		rs.pendingDel[k] = rr
	}
}

// Count returns the number of RRs that would be authoritative after a
// commit: currently-committed RRs plus pending adds, minus pending
// deletes — i.e. it reflects staged-but-uncommitted state too, which is
// what domain_count_rrset/RRsetCount rely on to decide whether a domain
// still "has data" mid-transaction.
func (rs *RRset) Count() int {
	n := len(rs.committed)
	for k := range rs.pendingAdd {
		if _, already := rs.committed[k]; !already {
			n++
		}
	}
	for k := range rs.pendingDel {
		if _, present := rs.committed[k]; present {
			n--
		}
	}
	return n
}

// RRs returns the committed RRs, unordered.
func (rs *RRset) RRs() []dns.RR {
	out := make([]dns.RR, 0, len(rs.committed))
	for _, rr := range rs.committed {
		out = append(out, rr)
	}
	return out
}

type byRdataKey struct {
	rrs  []dns.RR
	keys []string
}

func (b *byRdataKey) Len() int      { return len(b.rrs) }
func (b *byRdataKey) Swap(i, j int) { b.rrs[i], b.rrs[j] = b.rrs[j], b.rrs[i]; b.keys[i], b.keys[j] = b.keys[j], b.keys[i] }
func (b *byRdataKey) Less(i, j int) bool { return b.keys[i] < b.keys[j] }

// sortedCommitted returns the committed RRs sorted ascending by their
// rdata wire octets, the ordering RFC 4034 §6.3 requires inside a
// canonical RRset. Names embedded in rdata are compared as stored; they
// are not lowercased first. Large RRsets (wide NS/glue sets) are sorted with twotwotwo/sorts'
// parallel quicksort instead of sort.Sort; small ones fall back to the
// stdlib sort to avoid goroutine overhead on the common case.
func (rs *RRset) sortedCommitted() []dns.RR {
	b := &byRdataKey{rrs: make([]dns.RR, 0, len(rs.committed)), keys: make([]string, 0, len(rs.committed))}
	for k, rr := range rs.committed {
		b.rrs = append(b.rrs, rr)
		// rdataKey packs a fixed 11-octet header (root owner, type,
		// class, TTL, RDLENGTH) ahead of the rdata; order on the rdata
		// alone so RDLENGTH does not decide the order.
		if len(k) >= 11 {
			k = k[11:]
		}
		b.keys = append(b.keys, k)
	}
	if len(b.rrs) > 64 {
		sorts.Quicksort(b)
	} else {
		sort.Sort(b)
	}
	return b.rrs
}

// CanonicalRRs returns the committed RRs in RFC 4034 §6 canonical form:
// owner lowercased, TTL fixed to ttlOverride, sorted ascending by rdata.
// This is the representation passed to a SigningOracle implementation
// that signs via (*dns.RRSIG).Sign, which canonicalizes embedded names
// itself.
func (rs *RRset) CanonicalRRs(ttlOverride uint32) []dns.RR {
	sorted := rs.sortedCommitted()
	out := make([]dns.RR, len(sorted))
	owner := lowerOwner(rs.Owner)
	for i, rr := range sorted {
		c := dns.Copy(rr)
		h := c.Header()
		h.Name = owner
		h.Ttl = ttlOverride
		out[i] = c
	}
	return out
}

// CanonicalBytes produces the RFC 4034 §6 canonical RRset wire byte
// stream for signing, for SigningOracle implementations that want raw
// bytes (e.g. a PKCS#11 HSM) rather than []dns.RR. The owner name is
// lowercased; names embedded in rdata are packed as stored and are not
// lowercased.
func (rs *RRset) CanonicalBytes(ttlOverride uint32) ([]byte, error) {
	rrs := rs.CanonicalRRs(ttlOverride)
	var out []byte
	for _, rr := range rrs {
		buf := make([]byte, dns.Len(rr)+64)
		n, err := dns.PackRR(rr, buf, 0, nil, false)
		if err != nil {
			return nil, statusErrf(StatusErr, "CanonicalBytes", "pack %s: %v", rr.String(), err)
		}
		out = append(out, buf[:n]...)
	}
	return out, nil
}

// AttachRRSIG records a freshly produced signature against this RRset,
// replacing any existing signature by the same key.
func (rs *RRset) AttachRRSIG(sig *dns.RRSIG) {
	out := rs.RRSIGs[:0]
	for _, s := range rs.RRSIGs {
		if s.KeyTag != sig.KeyTag || s.Algorithm != sig.Algorithm {
			out = append(out, s)
		}
	}
	rs.RRSIGs = append(out, sig)
}

// DropRRSIGs removes every signature for which shouldDrop returns true,
// used by Diff(keylist) to purge signatures by keys no longer in use.
func (rs *RRset) DropRRSIGs(shouldDrop func(*dns.RRSIG) bool) {
	out := rs.RRSIGs[:0]
	for _, s := range rs.RRSIGs {
		if !shouldDrop(s) {
			out = append(out, s)
		}
	}
	rs.RRSIGs = out
}

func (rs *RRset) rrsigByKeyTag(keytag uint16) *dns.RRSIG {
	for _, s := range rs.RRSIGs {
		if s.KeyTag == keytag {
			return s
		}
	}
	return nil
}
