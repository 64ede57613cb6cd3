/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package zonesigner

import "gopkg.in/yaml.v3"

// Stats accumulates the counters the sign/nsecify passes report to the
// external statistics sink (spec.md §6). It is owned by the caller, not
// the engine, which only ever increments fields on a *Stats it is
// handed.
type Stats struct {
	NsecNew      int `yaml:"nsec_new"`
	NsecUpdated  int `yaml:"nsec_updated"`
	Nsec3New     int `yaml:"nsec3_new"`
	Nsec3Updated int `yaml:"nsec3_updated"`

	RRsetsSigned   int `yaml:"rrsets_signed"`
	RRsetsResigned int `yaml:"rrsets_resigned"`

	SigCount map[uint16]int `yaml:"sig_count"`
}

// NewStats returns a zeroed Stats ready to be passed into Nsecify,
// Nsecify3 or Sign.
func NewStats() *Stats {
	return &Stats{SigCount: make(map[uint16]int)}
}

func (s *Stats) recordSign(rrtype uint16, resigned bool) {
	if s == nil {
		return
	}
	if resigned {
		s.RRsetsResigned++
	} else {
		s.RRsetsSigned++
	}
	if s.SigCount == nil {
		s.SigCount = make(map[uint16]int)
	}
	s.SigCount[rrtype]++
}

// Report marshals the accumulated counters to YAML, the format the
// external stats sink expects (mirroring the teacher's pervasive use of
// gopkg.in/yaml.v3 for every outward-facing structured report).
func (s *Stats) Report() ([]byte, error) {
	return yaml.Marshal(s)
}
