/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package zonesigner

import (
	"testing"

	"github.com/miekg/dns"
)

// fakeOracle is the SigningOracle test double: a deterministic fixed RRSIG
// per call, optionally failing after a configured number of successful
// signs.
type fakeOracle struct {
	calls  int
	failAt int // 0 disables the injected failure
	opened int
	closed int
}

func (f *fakeOracle) Open() (SigningContext, error) {
	f.opened++
	return struct{}{}, nil
}

func (f *fakeOracle) Close(ctx SigningContext) {
	f.closed++
}

func (f *fakeOracle) Sign(ctx SigningContext, rrset []dns.RR, key KeyRef) (*dns.RRSIG, error) {
	f.calls++
	if f.failAt != 0 && f.calls == f.failAt {
		return nil, statusErrf(StatusHsmErr, "fakeOracle.Sign", "injected failure")
	}
	return &dns.RRSIG{
		Hdr:         dns.RR_Header{Rrtype: dns.TypeRRSIG, Class: dns.ClassINET},
		TypeCovered: rrset[0].Header().Rrtype,
		Algorithm:   key.Algorithm,
		KeyTag:      key.KeyTag,
	}, nil
}

func buildS1Zone(t *testing.T) *ZoneData {
	t.Helper()
	zd := Create("example.", 3600)
	soa := mustRR(t, "example. 3600 IN SOA ns1.example. hostmaster.example. 1 3600 900 604800 3600")
	ns := mustRR(t, "example. 3600 IN NS ns1.example.")
	www := mustRR(t, "www.example. 3600 IN A 192.0.2.1")
	mail := mustRR(t, "mail.example. 3600 IN A 192.0.2.2")

	for _, rr := range []dns.RR{soa, ns, www, mail} {
		atApex := EqualCanonical(rr.Header().Name, "example.")
		if err := zd.AddRR(rr, atApex); err != nil {
			t.Fatalf("AddRR(%v): %v", rr, err)
		}
	}
	if err := zd.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := zd.Entize(); err != nil {
		t.Fatalf("Entize: %v", err)
	}
	stats := NewStats()
	if err := zd.Nsecify(dns.ClassINET, stats); err != nil {
		t.Fatalf("Nsecify: %v", err)
	}
	return zd
}

func TestS1NsecChainAndSerial(t *testing.T) {
	zd := buildS1Zone(t)

	apex, ok := zd.LookupDomain("example.")
	if !ok {
		t.Fatalf("apex domain missing")
	}
	mail, ok := zd.LookupDomain("mail.example.")
	if !ok {
		t.Fatalf("mail.example. missing")
	}
	www, ok := zd.LookupDomain("www.example.")
	if !ok {
		t.Fatalf("www.example. missing")
	}

	checkNext := func(d *Domain, want string) {
		if d.Denial == nil || d.Denial.RRset == nil {
			t.Fatalf("%s has no denial RRset", d.Name)
		}
		rrs := d.Denial.RRset.RRs()
		if len(rrs) != 1 {
			t.Fatalf("%s expected exactly one NSEC RR, got %d", d.Name, len(rrs))
		}
		nsec, ok := rrs[0].(*dns.NSEC)
		if !ok {
			t.Fatalf("%s expected an NSEC RR, got %T", d.Name, rrs[0])
		}
		if nsec.NextDomain != want {
			t.Errorf("%s NSEC next domain = %q, want %q", d.Name, nsec.NextDomain, want)
		}
	}
	checkNext(apex, "mail.example.")
	checkNext(mail, "www.example.")
	checkNext(www, "example.")

	hasType := func(bitmap []uint16, t uint16) bool {
		for _, v := range bitmap {
			if v == t {
				return true
			}
		}
		return false
	}
	apexBitmap := apex.Denial.RRset.RRs()[0].(*dns.NSEC).TypeBitMap
	for _, want := range []uint16{dns.TypeSOA, dns.TypeNS, dns.TypeRRSIG, dns.TypeNSEC} {
		if !hasType(apexBitmap, want) {
			t.Errorf("apex NSEC bitmap missing type %d", want)
		}
	}
	wwwBitmap := www.Denial.RRset.RRs()[0].(*dns.NSEC).TypeBitMap
	for _, want := range []uint16{dns.TypeA, dns.TypeRRSIG, dns.TypeNSEC} {
		if !hasType(wwwBitmap, want) {
			t.Errorf("www.example. NSEC bitmap missing type %d", want)
		}
	}

	sc := &SignConf{
		SerialPolicy: SerialCounter,
		ZSKs:         []KeyRef{{Name: "example.", KeyTag: 12345, Algorithm: 8}},
	}
	stats := NewStats()
	oracle := &fakeOracle{}
	if err := zd.Sign("example.", sc, oracle, stats); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if zd.Serials.Internal != 1 {
		t.Errorf("expected internal_serial=1 after first sign under counter policy, got %d", zd.Serials.Internal)
	}
	if oracle.opened != 1 || oracle.closed != 1 {
		t.Errorf("expected exactly one open/close pair, got opened=%d closed=%d", oracle.opened, oracle.closed)
	}
}

func TestS2Nsec3OptOut(t *testing.T) {
	zd := Create("example.", 3600)
	for _, s := range []string{
		"example. 3600 IN SOA ns1.example. hostmaster.example. 1 3600 900 604800 3600",
		"example. 3600 IN NS ns1.example.",
		"www.example. 3600 IN A 192.0.2.1",
		"mail.example. 3600 IN A 192.0.2.2",
		"insecure.example. 3600 IN NS ns.other.",
	} {
		rr := mustRR(t, s)
		if err := zd.AddRR(rr, EqualCanonical(rr.Header().Name, "example.")); err != nil {
			t.Fatalf("AddRR: %v", err)
		}
	}
	if err := zd.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := zd.Entize(); err != nil {
		t.Fatalf("Entize: %v", err)
	}

	insecure, ok := zd.LookupDomain("insecure.example.")
	if !ok {
		t.Fatalf("insecure.example. missing")
	}
	if insecure.Status != DomainStatusNS {
		t.Fatalf("expected insecure.example. status NS, got %v", insecure.Status)
	}

	params := Nsec3Params{Algorithm: 1, Iterations: 0, Salt: []byte{0xAA}, Flags: 0x01}
	stats := NewStats()
	if err := zd.Nsecify3(dns.ClassINET, params, stats); err != nil {
		t.Fatalf("Nsecify3: %v", err)
	}

	if insecure.Denial != nil {
		t.Errorf("expected no denial at insecure.example. under opt-out, got one")
	}
	if zd.denials.Len() != 3 {
		t.Errorf("expected exactly 3 denials (example., mail.example., www.example.), got %d", zd.denials.Len())
	}
}

func TestS3CollisionDetection(t *testing.T) {
	zd := Create("example.", 3600)
	a := newDomain("collide.example.")
	b := newDomain("collide.example.")

	if err := zd.AddDenial(a, nil); err != nil {
		t.Fatalf("first AddDenial should succeed: %v", err)
	}
	err := zd.AddDenial(b, nil)
	if err == nil {
		t.Fatalf("expected second AddDenial at the same owner to fail")
	}
	if StatusOf(err) != StatusConflictErr {
		t.Errorf("expected ConflictErr, got %v", StatusOf(err))
	}
	if a.Denial == nil {
		t.Errorf("expected the first denial to remain intact")
	}
}

func TestS4SerialKeepFailureLeavesSerialUnchanged(t *testing.T) {
	zd := Create("example.", 3600)
	zd.Serials = Serials{Internal: 100, Inbound: 90, Outbound: 100, Initialized: true}
	sc := &SignConf{SerialPolicy: SerialKeep}
	oracle := &fakeOracle{}
	err := zd.Sign("example.", sc, oracle, NewStats())
	if err == nil {
		t.Fatalf("expected Sign to fail under a non-advancing keep policy")
	}
	if zd.Serials.Internal != 100 {
		t.Errorf("expected internal_serial to remain 100, got %d", zd.Serials.Internal)
	}
}

func TestS5RollbackAfterSignFailure(t *testing.T) {
	zd := buildS1Zone(t)
	sc := &SignConf{
		SerialPolicy: SerialCounter,
		ZSKs:         []KeyRef{{Name: "example.", KeyTag: 1, Algorithm: 8}},
	}

	failing := &fakeOracle{failAt: 2}
	err := zd.Sign("example.", sc, failing, NewStats())
	if err == nil {
		t.Fatalf("expected Sign to fail with the injected oracle error")
	}
	if StatusOf(err) != StatusHsmErr {
		t.Errorf("expected HsmErr, got %v", StatusOf(err))
	}

	zd.Rollback()

	zd.domains.ForEach(func(_ string, d *Domain) bool {
		for _, rs := range d.RRsets {
			if len(rs.RRSIGs) != 0 {
				t.Errorf("expected no RRSIGs left on %s/%d after rollback, found %d", d.Name, rs.Type, len(rs.RRSIGs))
			}
		}
		if d.Denial != nil && d.Denial.RRset != nil && len(d.Denial.RRset.RRSIGs) != 0 {
			t.Errorf("expected no denial RRSIGs left on %s after rollback", d.Name)
		}
		return true
	})

	working := &fakeOracle{}
	if err := zd.Sign("example.", sc, working, NewStats()); err != nil {
		t.Fatalf("expected retry with a working oracle to succeed, got %v", err)
	}
}

func TestS6EmptyLeafGC(t *testing.T) {
	zd := buildS1Zone(t)
	sc := &SignConf{SerialPolicy: SerialCounter}
	if err := zd.Sign("example.", sc, &fakeOracle{}, NewStats()); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	www, ok := zd.LookupDomain("www.example.")
	if !ok {
		t.Fatalf("www.example. missing before deletion")
	}
	if err := zd.DelRR(www.RRsets[dns.TypeA].RRs()[0]); err != nil {
		t.Fatalf("DelRR: %v", err)
	}
	if err := zd.Update(sc); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, ok := zd.LookupDomain("www.example."); ok {
		t.Errorf("expected www.example. to be garbage collected")
	}

	// The removal only marks the denial chain's neighbour links dirty
	// (spec.md §4.3.10); relinking the NSEC chain itself is nsecify's job
	// on the next pass.
	if err := zd.Nsecify(dns.ClassINET, NewStats()); err != nil {
		t.Fatalf("Nsecify: %v", err)
	}

	apex, _ := zd.LookupDomain("example.")
	mail, _ := zd.LookupDomain("mail.example.")

	apexNsec := apex.Denial.RRset.RRs()[0].(*dns.NSEC)
	if apexNsec.NextDomain != "mail.example." {
		t.Errorf("expected example. NSEC to point to mail.example. after GC, got %q", apexNsec.NextDomain)
	}
	mailNsec := mail.Denial.RRset.RRs()[0].(*dns.NSEC)
	if mailNsec.NextDomain != "example." {
		t.Errorf("expected mail.example. NSEC to wrap to example. after GC, got %q", mailNsec.NextDomain)
	}
}

func TestRollbackIsIdempotent(t *testing.T) {
	zd := Create("example.", 3600)
	rr := mustRR(t, "www.example. 3600 IN A 192.0.2.1")
	if err := zd.AddRR(rr, false); err != nil {
		t.Fatalf("AddRR: %v", err)
	}
	zd.Rollback()
	zd.Rollback()
	d, ok := zd.LookupDomain("www.example.")
	if !ok {
		t.Fatalf("domain should still exist (rollback never removes domains)")
	}
	if d.RRsetCount() != 0 {
		t.Errorf("expected the staged add to have been discarded by rollback")
	}
}

func TestCommitLeafGCInvariant(t *testing.T) {
	zd := buildS1Zone(t)
	zd.domains.ForEach(func(_ string, d *Domain) bool {
		if d.RRsetCount() == 0 && d.SubdomainCount == 0 && !d.Status.isENT() {
			t.Errorf("invariant violated: %s has no data, no children, and is not an ENT", d.Name)
		}
		return true
	})
}

func TestEntizeParentChainReachesApex(t *testing.T) {
	zd := Create("sub.example.", 3600)
	rr := mustRR(t, "a.b.c.sub.example. 3600 IN A 192.0.2.1")
	if err := zd.AddRR(rr, false); err != nil {
		t.Fatalf("AddRR: %v", err)
	}
	if err := zd.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := zd.Entize(); err != nil {
		t.Fatalf("Entize: %v", err)
	}

	d, _ := zd.LookupDomain("a.b.c.sub.example.")
	steps := 0
	for d != nil && !EqualCanonical(d.Name, "sub.example.") {
		if d.Parent == nil {
			t.Fatalf("broken parent chain at %s", d.Name)
		}
		if LeftChop(d.Name) != d.Parent.Name {
			t.Errorf("parent of %s is %s, want %s", d.Name, d.Parent.Name, LeftChop(d.Name))
		}
		d = d.Parent
		steps++
		if steps > LabelCount("a.b.c.sub.example.") {
			t.Fatalf("entize walk did not reach the apex within the label count")
		}
	}
}
