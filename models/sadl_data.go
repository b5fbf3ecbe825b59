package models

import "time"

// SADLData holds the issuance attributes derived from a decoded South African driving licence.
type SADLData struct {
	LicenceNumber         string    `json:"licence_number"`
	Surname               string    `json:"surname"`
	Initials              string    `json:"initials"`
	IDNumber              string    `json:"id_number"`
	IDNumberType          string    `json:"id_number_type"`
	IDCountryOfIssue      string    `json:"id_country_of_issue"`
	LicenceCountryOfIssue string    `json:"licence_country_of_issue"`
	VehicleClasses        string    `json:"vehicle_classes"` // comma separated codes
	DateOfBirth           time.Time `json:"date_of_birth"`
	YearOfBirth           string    `json:"year_of_birth"`
	ValidFrom             time.Time `json:"valid_from"`
	ValidTo               time.Time `json:"valid_to"`
	Gender                string    `json:"gender"`
	Over18                string    `json:"over18"`
	Over21                string    `json:"over21"`
	Over65                string    `json:"over65"`
}
