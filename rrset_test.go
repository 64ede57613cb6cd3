/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package zonesigner

import (
	"testing"

	"github.com/miekg/dns"
)

func mustRR(t *testing.T, s string) dns.RR {
	t.Helper()
	rr, err := dns.NewRR(s)
	if err != nil {
		t.Fatalf("dns.NewRR(%q): %v", s, err)
	}
	return rr
}

func TestRRsetAddCommit(t *testing.T) {
	rs := newRRset("www.example.com.", dns.ClassINET, dns.TypeA, 3600)
	rs.Add(mustRR(t, "www.example.com. 3600 IN A 192.0.2.1"))
	rs.Add(mustRR(t, "www.example.com. 3600 IN A 192.0.2.2"))

	if got := rs.Count(); got != 2 {
		t.Fatalf("expected Count()=2 before commit (pending adds count), got %d", got)
	}
	rs.Commit()
	if got := rs.Count(); got != 2 {
		t.Fatalf("expected Count()=2 after commit, got %d", got)
	}
	if len(rs.RRs()) != 2 {
		t.Fatalf("expected 2 committed RRs, got %d", len(rs.RRs()))
	}
}

func TestRRsetAddDelCancelsPending(t *testing.T) {
	rs := newRRset("www.example.com.", dns.ClassINET, dns.TypeA, 3600)
	rr := mustRR(t, "www.example.com. 3600 IN A 192.0.2.1")
	rs.Add(rr)
	rs.Del(rr)
	if rs.Count() != 0 {
		t.Fatalf("expected Add then Del to cancel out, got Count()=%d", rs.Count())
	}
}

func TestRRsetDelAfterCommit(t *testing.T) {
	rs := newRRset("www.example.com.", dns.ClassINET, dns.TypeA, 3600)
	rr := mustRR(t, "www.example.com. 3600 IN A 192.0.2.1")
	rs.Add(rr)
	rs.Commit()
	rs.Del(rr)
	if rs.Count() != 0 {
		t.Fatalf("expected Count()=0 with pending delete, got %d", rs.Count())
	}
	rs.Rollback()
	if rs.Count() != 1 {
		t.Fatalf("expected Rollback to restore committed RR, got Count()=%d", rs.Count())
	}
}

func TestRRsetWipe(t *testing.T) {
	rs := newRRset("www.example.com.", dns.ClassINET, dns.TypeA, 3600)
	rs.Add(mustRR(t, "www.example.com. 3600 IN A 192.0.2.1"))
	rs.Commit()
	rs.Wipe()
	rs.Commit()
	if rs.Count() != 0 {
		t.Fatalf("expected Wipe+Commit to empty the RRset, got Count()=%d", rs.Count())
	}
}

func TestRRsetDiffReportsPendingAdds(t *testing.T) {
	rs := newRRset("example.com.", dns.ClassINET, dns.TypeNS, 3600)
	rs.Add(mustRR(t, "example.com.  3600 IN NS ns1.example.com."))
	rs.Add(mustRR(t, "example.com. 3600 IN NS    ns2.example.com."))
	adds, dels := rs.Diff()
	if len(adds) != 2 || len(dels) != 0 {
		t.Fatalf("expected 2 pending adds and 0 deletes, got %d/%d", len(adds), len(dels))
	}
}

func TestRRsetSortedCommittedCanonicalOrder(t *testing.T) {
	rs := newRRset("example.com.", dns.ClassINET, dns.TypeA, 3600)
	rs.Add(mustRR(t, "example.com. 3600 IN A 192.0.2.9"))
	rs.Add(mustRR(t, "example.com. 3600 IN A 192.0.2.1"))
	rs.Commit()
	sorted := rs.sortedCommitted()
	if len(sorted) != 2 {
		t.Fatalf("expected 2 RRs, got %d", len(sorted))
	}
	first := sorted[0].(*dns.A).A.String()
	second := sorted[1].(*dns.A).A.String()
	if first != "192.0.2.1" || second != "192.0.2.9" {
		t.Errorf("expected rdata-ascending order 192.0.2.1, 192.0.2.9; got %s, %s", first, second)
	}
}

func TestRRsetCanonicalRRsLowercasesOwnerAndOverridesTTL(t *testing.T) {
	rs := newRRset("WWW.Example.COM.", dns.ClassINET, dns.TypeA, 3600)
	rs.Add(mustRR(t, "WWW.Example.COM. 3600 IN A 192.0.2.1"))
	rs.Commit()
	canon := rs.CanonicalRRs(300)
	if len(canon) != 1 {
		t.Fatalf("expected 1 canonical RR, got %d", len(canon))
	}
	h := canon[0].Header()
	if h.Name != "www.example.com." {
		t.Errorf("expected lowercased owner, got %q", h.Name)
	}
	if h.Ttl != 300 {
		t.Errorf("expected overridden TTL 300, got %d", h.Ttl)
	}
}

func TestRRsetAttachRRSIGReplacesSameKey(t *testing.T) {
	rs := newRRset("example.com.", dns.ClassINET, dns.TypeA, 3600)
	sig1 := &dns.RRSIG{KeyTag: 100, Algorithm: 8, Expiration: 1000}
	sig2 := &dns.RRSIG{KeyTag: 100, Algorithm: 8, Expiration: 2000}
	rs.AttachRRSIG(sig1)
	rs.AttachRRSIG(sig2)
	if len(rs.RRSIGs) != 1 {
		t.Fatalf("expected AttachRRSIG to replace by key tag, got %d signatures", len(rs.RRSIGs))
	}
	if rs.RRSIGs[0].Expiration != 2000 {
		t.Errorf("expected the newer signature to survive, got expiration %d", rs.RRSIGs[0].Expiration)
	}
}

func TestRRsetDropRRSIGs(t *testing.T) {
	rs := newRRset("example.com.", dns.ClassINET, dns.TypeA, 3600)
	rs.AttachRRSIG(&dns.RRSIG{KeyTag: 1})
	rs.AttachRRSIG(&dns.RRSIG{KeyTag: 2})
	rs.DropRRSIGs(func(s *dns.RRSIG) bool { return s.KeyTag == 1 })
	if len(rs.RRSIGs) != 1 || rs.RRSIGs[0].KeyTag != 2 {
		t.Fatalf("expected only key tag 2 to survive, got %+v", rs.RRSIGs)
	}
}
