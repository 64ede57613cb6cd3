/*
 * Copyright (c) 2024 Johan Stenstam, johani@johani.org
 */
package zonesigner

import (
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/miekg/dns"
)

// KeyCache is a concurrent-safe cache of KeyRef values, keyed by zone
// name, mirroring tdns.KeyDB's KeystoreDnskeyCache. The zone data engine
// itself is single-owner/single-threaded per spec.md §5, but the cache a
// SigningOracle implementation reads from is typically refreshed by a
// separate key-rollover watcher goroutine, so it needs its own
// synchronization independent of the engine's.
type KeyCache struct {
	zones cmap.ConcurrentMap[string, []KeyRef]
}

// NewKeyCache returns an empty KeyCache.
func NewKeyCache() *KeyCache {
	return &KeyCache{zones: cmap.New[[]KeyRef]()}
}

// Set replaces the active key set for zone.
func (kc *KeyCache) Set(zone string, keys []KeyRef) {
	kc.zones.Set(dns.Fqdn(zone), keys)
}

// Get returns the active key set for zone, if any.
func (kc *KeyCache) Get(zone string) ([]KeyRef, bool) {
	return kc.zones.Get(dns.Fqdn(zone))
}

// Remove drops the cached key set for zone, e.g. after a zone is
// unconfigured.
func (kc *KeyCache) Remove(zone string) {
	kc.zones.Remove(dns.Fqdn(zone))
}
