package tk103

import "time"

// Location classification codes, also published as REQSTATUS payloads.
const (
	LocationOK          = 1
	LocationUnavailable = 0
	LocationUndefined   = -1
	DeviceOffline       = -2
	InvalidRequest      = -3
)

// Location is one decoded fix (or a typed rejection carrying no fix).
// Only LocationOK carries coordinates.
type Location struct {
	Type      int       `json:"type"`
	IMEI      uint64    `json:"imei,omitempty"`
	Latitude  float64   `json:"latitude,omitempty"`
	Longitude float64   `json:"longitude,omitempty"`
	Speed     float64   `json:"speed,omitempty"`
	Heading   float64   `json:"heading,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Distance is the great-circle distance from the previous fix of the
	// same device, filled in by the processing pipeline.
	Distance float64 `json:"consecutive_point_distance"`
}
