/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package zonesigner

import (
	"strings"

	"github.com/miekg/dns"
)

// CompareCanonical orders two owner names by DNS canonical order (RFC 4034
// §6.1): labels are compared right to left (label-reverse), each label
// byte-lexically and case-insensitively (ASCII only, per RFC 4343), and a
// name that runs out of labels on an otherwise-equal prefix sorts first.
//
// Both trees in the zone data engine (the domain tree and the denial
// chain) use this ordering exclusively.
func CompareCanonical(a, b string) int {
	la := canonicalLabels(a)
	lb := canonicalLabels(b)
	i, j := len(la)-1, len(lb)-1
	for i >= 0 && j >= 0 {
		if c := compareLabelASCII(la[i], lb[j]); c != 0 {
			return c
		}
		i--
		j--
	}
	return len(la) - len(lb)
}

// EqualCanonical reports whether a and b are the same owner name up to
// ASCII case.
func EqualCanonical(a, b string) bool {
	return CompareCanonical(a, b) == 0
}

func canonicalLabels(name string) []string {
	if name == "" || name == "." {
		return nil
	}
	return dns.SplitDomainName(dns.Fqdn(name))
}

func compareLabelASCII(x, y string) int {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	for k := 0; k < n; k++ {
		cx := asciiLower(x[k])
		cy := asciiLower(y[k])
		if cx != cy {
			return int(cx) - int(cy)
		}
	}
	return len(x) - len(y)
}

func asciiLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// LabelCount returns the number of labels in name, the root zone "."
// counting as zero, matching ldns_dname_label_count semantics used by the
// original entize walk.
func LabelCount(name string) int {
	return len(canonicalLabels(name))
}

// IsSubdomain reports whether child is equal to or a proper descendant of
// parent in the DNS name hierarchy (RFC 4034 §6.1's "is a subdomain of").
func IsSubdomain(child, parent string) bool {
	return dns.IsSubDomain(dns.Fqdn(parent), dns.Fqdn(child))
}

// IsProperSubdomain reports whether child is a strict descendant of parent.
func IsProperSubdomain(child, parent string) bool {
	return IsSubdomain(child, parent) && !EqualCanonical(child, parent)
}

// LeftChop removes the leftmost label of name, returning the immediate
// parent owner name. LeftChop(".") returns ".".
func LeftChop(name string) string {
	name = dns.Fqdn(name)
	if name == "." {
		return "."
	}
	labels := dns.SplitDomainName(name)
	if len(labels) <= 1 {
		return "."
	}
	return dns.Fqdn(strings.Join(labels[1:], "."))
}

// lowerOwner returns name with its presentation form ASCII-lowercased,
// used when building RFC 4034 §6.2 canonical RRset owner names.
func lowerOwner(name string) string {
	b := []byte(dns.Fqdn(name))
	for i, c := range b {
		b[i] = asciiLower(c)
	}
	return string(b)
}
