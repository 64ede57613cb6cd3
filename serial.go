/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package zonesigner

// SerialPolicyKind selects how advanceSerial (called from ZoneData.Sign
// and ZoneData.Update) advances internal_serial, mirroring
// signconf_type's soa_serial field.
type SerialPolicyKind int

const (
	SerialUnixtime SerialPolicyKind = iota
	SerialCounter
	SerialDateCounter
	SerialKeep
)

func (k SerialPolicyKind) String() string {
	switch k {
	case SerialUnixtime:
		return "unixtime"
	case SerialCounter:
		return "counter"
	case SerialDateCounter:
		return "datecounter"
	case SerialKeep:
		return "keep"
	default:
		return "unknown"
	}
}

// serialGT implements RFC 1982 "serial number greater than" for 32-bit
// serials.
func serialGT(a, b uint32) bool {
	return (a < b && (b-a) > (1<<31)) || (a > b && (a-b) < (1<<31))
}

const maxSerialDelta = 0x7FFFFFFF

// advanceSerial computes the next internal_serial per spec.md §4.5,
// given the policy, the previous internal serial, the inbound serial,
// whether the zone's serial state has ever been initialized, and "now"
// as a YYYYMMDD*100-compatible or unix timestamp depending on policy.
//
// now is passed in rather than read from the wall clock so the policy
// is a pure, testable function; callers pass time.Now()-derived values.
func advanceSerial(kind SerialPolicyKind, prev, inbound uint32, initialized bool, nowUnix uint32, nowDateCounter uint32) (next uint32, nowInitialized bool, err error) {
	var candidate, update uint32

	switch kind {
	case SerialUnixtime:
		candidate = maxUint32(inbound, nowUnix)
		if !serialGT(candidate, prev) {
			candidate = prev + 1
		}
		update = candidate - prev

	case SerialCounter:
		candidate = maxUint32(inbound, prev)
		if !initialized {
			return candidate + 1, true, nil
		}
		if !serialGT(candidate, prev) {
			candidate = prev + 1
		}
		update = candidate - prev

	case SerialDateCounter:
		candidate = maxUint32(inbound, nowDateCounter)
		if !serialGT(candidate, prev) {
			candidate = prev + 1
		}
		update = candidate - prev

	case SerialKeep:
		candidate = inbound
		if initialized && !serialGT(candidate, prev) {
			return 0, initialized, statusErrf(StatusErr, "advanceSerial",
				"cannot keep SOA serial from input zone (%d): output SOA serial is %d", candidate, prev)
		}
		prev = candidate
		update = 0

	default:
		return 0, initialized, statusErrf(StatusErr, "advanceSerial", "unknown serial policy %v", kind)
	}

	if update > maxSerialDelta {
		update = maxSerialDelta
	}
	return prev + update, true, nil
}

func maxUint32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
