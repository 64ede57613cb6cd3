/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package zonesigner

// Denial is one point in the NSEC/NSEC3 chain: the (possibly hashed)
// owner name, the generated NSEC(3) RRset, and the dirty flags the
// nsecify passes use to decide whether the bitmap or the "next owner"
// field must be regenerated.
type Denial struct {
	// Owner is the hashed owner name for NSEC3, or the plain domain
	// owner name for NSEC.
	Owner string

	// RRset holds the generated NSEC or NSEC3 RRset, nil until the
	// first nsecify/nsecify3 pass touches this node.
	RRset *RRset

	// Domain is a back-reference to the authoritative Domain this
	// denial node covers, never ownership.
	Domain *Domain

	BitmapChanged bool
	NxtChanged    bool
}

func newDenial(owner string) *Denial {
	return &Denial{Owner: owner, BitmapChanged: true, NxtChanged: true}
}
