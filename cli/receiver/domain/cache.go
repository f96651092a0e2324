package domain

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/alitagps/tk103/cli/receiver/source"
)

// LastLocation is the cached last known fix of one device. A (0,0)
// coordinate pair is the "no prior fix" sentinel, never a real position.
type LastLocation struct {
	Timestamp time.Time
	Latitude  float64
	Longitude float64
}

// HasFix reports whether the entry holds a real position.
func (l LastLocation) HasFix() bool {
	return l.Latitude != 0 && l.Longitude != 0
}

// LastLocationCache holds the last known fix per imei for the lifetime of
// the process. The processing loop is the only writer; the liveness monitor
// only reads. Entries are never evicted.
type LastLocationCache struct {
	mu      sync.RWMutex
	entries map[uint64]LastLocation
}

func NewLastLocationCache() *LastLocationCache {
	return &LastLocationCache{entries: make(map[uint64]LastLocation)}
}

func (c *LastLocationCache) Get(imei uint64) (LastLocation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[imei]
	return entry, ok
}

// Put overwrites the whole entry, last write wins.
func (c *LastLocationCache) Put(imei uint64, entry LastLocation) {
	c.mu.Lock()
	c.entries[imei] = entry
	c.mu.Unlock()
}

// Snapshot copies the current entries so a sweep never holds the lock while
// talking to external collaborators.
func (c *LastLocationCache) Snapshot() map[uint64]LastLocation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snapshot := make(map[uint64]LastLocation, len(c.entries))
	for imei, entry := range c.entries {
		snapshot[imei] = entry
	}
	return snapshot
}

func (c *LastLocationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Warm seeds the cache from the primary store so distances survive a
// restart. Entries are stamped with the current time, giving every known
// device a fresh staleness window instead of an instant offline alarm.
func (c *LastLocationCache) Warm(src source.Primary) error {
	vehicles, err := src.GetAllVehicles()
	if err != nil {
		return err
	}

	seeded := 0
	for _, v := range vehicles {
		lat, lon, err := src.FindLastLocation(v.IMEI)
		if err != nil {
			log.WithField("imei", v.IMEI).Warnf("Skipping cache warm-up entry: %v", err)
			continue
		}
		if lat == 0 && lon == 0 {
			continue
		}
		c.Put(v.IMEI, LastLocation{Timestamp: time.Now(), Latitude: lat, Longitude: lon})
		seeded++
	}
	log.Infof("Last location cache warmed with %d of %d vehicles", seeded, len(vehicles))
	return nil
}
