/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package zonesigner

import "github.com/gookit/goutil/dump"

// DebugDumpDomain pretty-prints a Domain's status and RRset shape via
// gookit/goutil/dump, the same helper tdns/key_ops.go uses to inspect
// DSYNC targets during development. It does not itself check
// EngineConfig.Debug, and no engine operation calls it: the engine never
// dumps on its own.
func DebugDumpDomain(d *Domain) {
	if d == nil {
		return
	}
	dump.P(struct {
		Name           string
		Status         string
		SubdomainCount int
		SubdomainAuth  int
		Types          []uint16
	}{
		Name:           d.Name,
		Status:         d.Status.String(),
		SubdomainCount: d.SubdomainCount,
		SubdomainAuth:  d.SubdomainAuth,
		Types:          d.sortedTypes(),
	})
}

// DebugDumpDenial pretty-prints a Denial node's chain-dirty flags.
func DebugDumpDenial(den *Denial) {
	if den == nil {
		return
	}
	dump.P(struct {
		Owner         string
		BitmapChanged bool
		NxtChanged    bool
	}{
		Owner:         den.Owner,
		BitmapChanged: den.BitmapChanged,
		NxtChanged:    den.NxtChanged,
	})
}
