package types

import "time"

type MessageType int

const (
	ServerStartup MessageType = iota
	CriticalServerFailure
	DeviceDown
)

func (t MessageType) String() string {
	switch t {
	case ServerStartup:
		return "SERVER_STARTUP"
	case CriticalServerFailure:
		return "CRITICAL_SERVER_FAILURE"
	case DeviceDown:
		return "DEVICE_DOWN"
	default:
		return "UNKNOWN"
	}
}

// Message is a system-level event flowing over the internal event bus.
type Message struct {
	Type      MessageType
	Text      string
	Timestamp time.Time

	// ServerAddr and DBAddr are set for ServerStartup.
	ServerAddr string
	DBAddr     string

	// Vehicles is set for DeviceDown.
	Vehicles []Vehicle
}
