/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package zonesigner

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/miekg/dns"
)

// Backup tokens (spec.md §4.6). Each domain is introduced by ;DNAME (or
// ;DNAME3 for its NSEC3 shadow companion), followed by a standard
// master-file RR per line, with the generated denial-of-existence record
// marked ;NSEC or ;NSEC3.
const (
	backupMagic  = ";;Zonesigner Backup"
	tokenDName   = ";DNAME"
	tokenDName3  = ";DNAME3"
	tokenNsec    = ";NSEC"
	tokenNsec3   = ";NSEC3"
)

// WriteBackup serializes zd to w in canonical domain order, for crash
// recovery. The stream is framed by backupMagic on both ends so a reader
// can tell a truncated file from a complete one.
func (zd *ZoneData) WriteBackup(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, backupMagic); err != nil {
		return statusErrf(StatusErr, "WriteBackup", "%v", err)
	}

	var failed error
	zd.domains.ForEach(func(_ string, d *Domain) bool {
		if _, err := fmt.Fprintf(bw, "%s %s\n", tokenDName, d.Name); err != nil {
			failed = err
			return false
		}
		for _, t := range d.sortedTypes() {
			for _, rr := range d.RRsets[t].sortedCommitted() {
				if _, err := fmt.Fprintln(bw, rr.String()); err != nil {
					failed = err
					return false
				}
			}
			for _, sig := range d.RRsets[t].RRSIGs {
				if _, err := fmt.Fprintln(bw, sig.String()); err != nil {
					failed = err
					return false
				}
			}
		}
		if d.Denial != nil && d.Denial.RRset != nil {
			marker := tokenNsec
			if d.Denial.RRset.Type == dns.TypeNSEC3 {
				marker = tokenNsec3
			}
			if _, err := fmt.Fprintf(bw, "%s %s\n", marker, d.Denial.Owner); err != nil {
				failed = err
				return false
			}
			for _, rr := range d.Denial.RRset.sortedCommitted() {
				if _, err := fmt.Fprintln(bw, rr.String()); err != nil {
					failed = err
					return false
				}
			}
			for _, sig := range d.Denial.RRset.RRSIGs {
				if _, err := fmt.Fprintln(bw, sig.String()); err != nil {
					failed = err
					return false
				}
			}
		}
		if d.NSEC3Shadow != nil {
			if _, err := fmt.Fprintf(bw, "%s %s\n", tokenDName3, d.NSEC3Shadow.Name); err != nil {
				failed = err
				return false
			}
		}
		return true
	})
	if failed != nil {
		return statusErrf(StatusErr, "WriteBackup", "%v", failed)
	}

	if _, err := fmt.Fprintln(bw, backupMagic); err != nil {
		return statusErrf(StatusErr, "WriteBackup", "%v", err)
	}
	if err := bw.Flush(); err != nil {
		return statusErrf(StatusErr, "WriteBackup", "%v", err)
	}
	return nil
}

// RecoverFromBackup reconstructs zone data from a stream written by
// WriteBackup. Any unrecognized token, a missing header/trailer, or EOF
// before the trailer is treated as StatusCorrupted: the caller must abort
// the load rather than work from a partially reconstructed zone.
func (zd *ZoneData) RecoverFromBackup(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !sc.Scan() {
		return statusErrf(StatusCorrupted, "RecoverFromBackup", "empty backup stream")
	}
	if strings.TrimSpace(sc.Text()) != backupMagic {
		return statusErrf(StatusCorrupted, "RecoverFromBackup", "missing magic header")
	}

	var curDomain *Domain
	var curRRset *RRset
	sawTrailer := false

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == backupMagic {
			sawTrailer = true
			break
		}

		switch {
		case strings.HasPrefix(line, tokenDName3+" "):
			name := dns.Fqdn(strings.TrimSpace(strings.TrimPrefix(line, tokenDName3)))
			if curDomain == nil {
				return statusErrf(StatusCorrupted, "RecoverFromBackup", "%s before any %s", tokenDName3, tokenDName)
			}
			zd.ensureNsec3Shadow(curDomain, name)

		case strings.HasPrefix(line, tokenDName+" "):
			name := dns.Fqdn(strings.TrimSpace(strings.TrimPrefix(line, tokenDName)))
			d, ok := zd.domains.Get(name)
			if !ok {
				d = newDomain(name)
				zd.domains.Set(name, d)
			}
			curDomain = d
			curRRset = nil

		case strings.HasPrefix(line, tokenNsec3+" "):
			owner := dns.Fqdn(strings.TrimSpace(strings.TrimPrefix(line, tokenNsec3)))
			if curDomain == nil {
				return statusErrf(StatusCorrupted, "RecoverFromBackup", "%s before any %s", tokenNsec3, tokenDName)
			}
			den := newDenial(owner)
			den.Domain = curDomain
			curDomain.Denial = den
			zd.denials.Set(owner, den)
			den.RRset = newRRset(owner, dns.ClassINET, dns.TypeNSEC3, zd.DefaultTTL)
			curRRset = den.RRset

		case strings.HasPrefix(line, tokenNsec+" "):
			owner := dns.Fqdn(strings.TrimSpace(strings.TrimPrefix(line, tokenNsec)))
			if curDomain == nil {
				return statusErrf(StatusCorrupted, "RecoverFromBackup", "%s before any %s", tokenNsec, tokenDName)
			}
			den := newDenial(owner)
			den.Domain = curDomain
			curDomain.Denial = den
			zd.denials.Set(owner, den)
			den.RRset = newRRset(owner, dns.ClassINET, dns.TypeNSEC, zd.DefaultTTL)
			curRRset = den.RRset

		case strings.HasPrefix(line, ";"):
			return statusErrf(StatusCorrupted, "RecoverFromBackup", "unknown token %q", line)

		default:
			rr, err := dns.NewRR(line)
			if err != nil {
				return statusErrf(StatusCorrupted, "RecoverFromBackup", "unparsable RR %q: %v", line, err)
			}
			if curDomain == nil {
				return statusErrf(StatusCorrupted, "RecoverFromBackup", "RR before any %s", tokenDName)
			}
			if sig, ok := rr.(*dns.RRSIG); ok {
				if sig.TypeCovered == dns.TypeNSEC || sig.TypeCovered == dns.TypeNSEC3 {
					if curDomain.Denial == nil || curDomain.Denial.RRset == nil {
						return statusErrf(StatusCorrupted, "RecoverFromBackup", "denial RRSIG before its %s/%s", tokenNsec, tokenNsec3)
					}
					curDomain.Denial.RRset.AttachRRSIG(sig)
					continue
				}
				target := curDomain.getOrCreateRRset(sig.TypeCovered, sig.Header().Class, sig.Header().Ttl)
				target.AttachRRSIG(sig)
				continue
			}
			if curRRset != nil && curRRset.Type == rr.Header().Rrtype {
				curRRset.Add(rr)
				curRRset.Commit()
				continue
			}
			rs := curDomain.getOrCreateRRset(rr.Header().Rrtype, rr.Header().Class, rr.Header().Ttl)
			rs.Add(rr)
			rs.Commit()
		}
	}

	if err := sc.Err(); err != nil {
		return statusErrf(StatusCorrupted, "RecoverFromBackup", "%v", err)
	}
	if !sawTrailer {
		return statusErrf(StatusCorrupted, "RecoverFromBackup", "premature EOF before magic trailer")
	}
	return nil
}

// RecoverRRFromBackup recovers a single RR into an already-open zone data
// load, for adapters that stream recovery rather than handing over a
// whole io.Reader.
func (zd *ZoneData) RecoverRRFromBackup(rr dns.RR) error {
	if rr == nil {
		return statusErrf(StatusAssertErr, "RecoverRRFromBackup", "no RR")
	}
	d, ok := zd.domains.Get(rr.Header().Name)
	if !ok {
		return statusErrf(StatusErr, "RecoverRRFromBackup", "domain does not exist for %s", rr.Header().Name)
	}
	rs := d.getOrCreateRRset(rr.Header().Rrtype, rr.Header().Class, rr.Header().Ttl)
	rs.Add(rr)
	rs.Commit()
	return nil
}

// RecoverRRSIGFromBackup recovers a single RRSIG, attaching it to the
// RRset of the type it covers rather than storing it under its own type.
func (zd *ZoneData) RecoverRRSIGFromBackup(sig *dns.RRSIG) error {
	if sig == nil {
		return statusErrf(StatusAssertErr, "RecoverRRSIGFromBackup", "no RRSIG")
	}
	var d *Domain
	var ok bool
	if sig.TypeCovered == dns.TypeNSEC3 {
		d, ok = zd.nsec3Shadow.Get(sig.Header().Name)
		if ok && d.NSEC3Shadow != nil {
			d = d.NSEC3Shadow
		}
	} else {
		d, ok = zd.domains.Get(sig.Header().Name)
	}
	if !ok || d == nil {
		return statusErrf(StatusErr, "RecoverRRSIGFromBackup", "domain does not exist for %s", sig.Header().Name)
	}
	if sig.TypeCovered == dns.TypeNSEC || sig.TypeCovered == dns.TypeNSEC3 {
		if d.Denial == nil || d.Denial.RRset == nil {
			return statusErrf(StatusErr, "RecoverRRSIGFromBackup", "no denial RRset at %s", sig.Header().Name)
		}
		d.Denial.RRset.AttachRRSIG(sig)
		return nil
	}
	rs := d.getOrCreateRRset(sig.TypeCovered, sig.Header().Class, sig.Header().Ttl)
	rs.AttachRRSIG(sig)
	return nil
}

// WipeNsec drops every generated NSEC RRset in the zone, for a policy
// switch from NSEC to NSEC3.
func (zd *ZoneData) WipeNsec() {
	zd.denials.ForEach(func(_ string, den *Denial) bool {
		if den.RRset != nil && den.RRset.Type == dns.TypeNSEC {
			den.RRset.Wipe()
			den.RRset.Commit()
		}
		return true
	})
}

// WipeNsec3 drops every generated NSEC3 RRset and the shadow tree, for a
// policy switch from NSEC3 to NSEC.
func (zd *ZoneData) WipeNsec3() {
	zd.denials.ForEach(func(owner string, den *Denial) bool {
		if den.RRset != nil && den.RRset.Type == dns.TypeNSEC3 {
			den.RRset.Wipe()
			den.RRset.Commit()
		}
		return true
	})
	zd.nsec3Shadow.ForEach(func(name string, d *Domain) bool {
		if d.NSEC3Shadow != nil {
			d.NSEC3Shadow.NSEC3Shadow = nil
		}
		return true
	})
	zd.nsec3Shadow = newOrderedIndex[*Domain]()
}

// Cleanup tears down the zone data's owned structures in the order the
// reference implementation's memory model calls for: denials, then the
// NSEC3 shadow tree, then domains.
func (zd *ZoneData) Cleanup() {
	zd.denials = newOrderedIndex[*Denial]()
	zd.nsec3Shadow = newOrderedIndex[*Domain]()
	zd.domains = newOrderedIndex[*Domain]()
}
