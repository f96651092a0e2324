package source

import "github.com/alitagps/tk103/cli/receiver/types"

// Primary is the read side of the primary store: last persisted fixes and
// the vehicle registry.
type Primary interface {
	// FindLastLocation returns the coordinates of the newest persisted fix
	// for the imei, or zeros when the device has none.
	FindLastLocation(imei uint64) (lat float64, lon float64, err error)

	// GetVehicle resolves the active vehicle a device belongs to, or nil
	// when the imei is unknown.
	GetVehicle(imei uint64) (*types.Vehicle, error)

	// GetAllVehicles lists every active vehicle.
	GetAllVehicles() ([]types.Vehicle, error)
}
