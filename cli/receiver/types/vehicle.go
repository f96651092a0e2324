package types

// Vehicle is the business record a tracking device belongs to, resolved from
// the primary store when a device is declared offline.
type Vehicle struct {
	Owner     string
	IMEI      uint64
	Key       string
	SimNumber string
	Plate     string
}
