package vehicle

import "go-sa-licence-decoder/barcode"

// UNKNOWN_REGISTRATION is reported when no token looks like a registration number.
const UNKNOWN_REGISTRATION = "UNKNOWN"

// VehicleLicence is a best-effort extraction from a vehicle licence disc barcode. Every
// field except the registration number may be missing.
type VehicleLicence struct {
	Version            barcode.Version `json:"version"`
	RegistrationNumber string          `json:"registration_number"`
	VIN                *string         `json:"vin,omitempty"`
	EngineNumber       *string         `json:"engine_number,omitempty"`
	Make               *string         `json:"make,omitempty"`
	Model              *string         `json:"model,omitempty"`
	Colour             *string         `json:"colour,omitempty"`
	VehicleClass       *string         `json:"vehicle_class,omitempty"`
	OwnerName          *string         `json:"owner_name,omitempty"`
	OwnerIDNumber      *string         `json:"owner_id_number,omitempty"`
	ExpiryDate         *string         `json:"expiry_date,omitempty"`
}

func newVehicleLicence() *VehicleLicence {
	return &VehicleLicence{
		Version:            barcode.Version1,
		RegistrationNumber: UNKNOWN_REGISTRATION,
	}
}
