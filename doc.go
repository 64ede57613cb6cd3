/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */

// Package zonesigner is the authoritative zone signing core of a DNSSEC
// signer: given an unsigned zone plus signing configuration and keys, it
// builds a signed zone with authenticated denial-of-existence (NSEC or
// NSEC3) and RRSIGs over every authoritative RRset, with correct SOA
// serial progression and safe incremental updates.
//
// The package owns the zone data engine only. Zone file/AXFR/IXFR
// adapters, the signing oracle (HSM/key management), the signer
// configuration loader, backup persistence and the statistics sink are
// external collaborators; this package defines the interfaces they
// satisfy (SigningOracle, Stats) and consumes a SignConf value it does
// not itself produce.
package zonesigner
