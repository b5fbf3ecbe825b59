package sadl

import (
	"fmt"
	"strings"
	"time"

	"go-sa-licence-decoder/barcode"
	"go-sa-licence-decoder/document"
	"go-sa-licence-decoder/models"
)

// VehicleClass is one licensed vehicle class with the date it was first issued.
type VehicleClass struct {
	Code           string `json:"code"`
	Restriction    string `json:"restriction,omitempty"`
	FirstIssueDate string `json:"first_issue_date"`
}

// DrivingLicence represents a decoded South African driving licence barcode.
// Dates are YYYY-MM-DD.
type DrivingLicence struct {
	Version               barcode.Version `json:"version"`
	Surname               string          `json:"surname"`
	Initials              string          `json:"initials"`
	IDNumber              string          `json:"id_number"`
	IDNumberType          string          `json:"id_number_type"`
	IDCountryOfIssue      string          `json:"id_country_of_issue"`
	LicenceCountryOfIssue string          `json:"licence_country_of_issue"`
	LicenceNumber         string          `json:"licence_number"`
	LicenceIssueNumber    string          `json:"licence_issue_number"`
	VehicleClassCodes     []string        `json:"vehicle_class_codes"`
	VehicleRestrictions   []string        `json:"vehicle_restrictions"`
	VehicleClasses        []VehicleClass  `json:"vehicle_classes,omitempty"`
	PrdpCodes             []string        `json:"prdp_codes,omitempty"`
	PrdpExpiry            *string         `json:"prdp_expiry,omitempty"`
	DriverRestrictions    string          `json:"driver_restrictions"`
	BirthDate             string          `json:"birth_date"`
	ValidFrom             string          `json:"valid_from"`
	ValidTo               string          `json:"valid_to"`
	Gender                *string         `json:"gender,omitempty"`
}

func ToDrivingLicenceData(licence DrivingLicence, now time.Time) (models.SADLData, error) {
	dob, err := document.ParseDate(licence.BirthDate)
	if err != nil {
		return models.SADLData{}, fmt.Errorf("failed to parse birth date: %w", err)
	}
	validFrom, err := document.ParseDate(licence.ValidFrom)
	if err != nil {
		return models.SADLData{}, fmt.Errorf("failed to parse valid from date: %w", err)
	}
	validTo, err := document.ParseDate(licence.ValidTo)
	if err != nil {
		return models.SADLData{}, fmt.Errorf("failed to parse valid to date: %w", err)
	}

	codes := make([]string, 0, len(licence.VehicleClasses))
	for _, class := range licence.VehicleClasses {
		codes = append(codes, class.Code)
	}

	data := models.SADLData{
		LicenceNumber:         licence.LicenceNumber,
		Surname:               licence.Surname,
		Initials:              licence.Initials,
		IDNumber:              licence.IDNumber,
		IDNumberType:          licence.IDNumberType,
		IDCountryOfIssue:      licence.IDCountryOfIssue,
		LicenceCountryOfIssue: licence.LicenceCountryOfIssue,
		VehicleClasses:        strings.Join(codes, ","),
		DateOfBirth:           dob,
		YearOfBirth:           dob.Format("2006"),
		ValidFrom:             validFrom,
		ValidTo:               validTo,
		Over18:                document.BoolToYesNo(!dob.After(now.AddDate(-18, 0, 0))),
		Over21:                document.BoolToYesNo(!dob.After(now.AddDate(-21, 0, 0))),
		Over65:                document.BoolToYesNo(!dob.After(now.AddDate(-65, 0, 0))),
	}
	if licence.Gender != nil {
		data.Gender = *licence.Gender
	}

	return data, nil
}
