package sadl

import (
	"bytes"
	"log/slog"
	"strings"

	"go-sa-licence-decoder/barcode"
	"go-sa-licence-decoder/document"
)

// Version signature: 0x01, two version bytes, 0x45.
const (
	SIGNATURE_START = 0x01
	SIGNATURE_END   = 0x45
	SIGNATURE_SIZE  = 4
)

// Plaintext layout constants, relative to the section marker.
const (
	MIN_PLAINTEXT_SIZE     = 100
	MARKER_SEARCH_WINDOW   = 40
	SECTION2_LENGTH_OFFSET = 7
	SECTION1_LENGTH_OFFSET = 10
	SECTION1_OFFSET        = 15
	MIN_FIELDS             = 15
	MAX_VEHICLE_CLASSES    = 4
)

// Section 1 field positions.
const (
	FIELD_VEHICLE_CODES     = 0
	FIELD_SURNAME           = 4
	FIELD_INITIALS          = 5
	FIELD_PRDP_CODES        = 6
	FIELD_ID_COUNTRY        = 7
	FIELD_LICENCE_COUNTRY   = 8
	FIELD_VEHICLE_RESTRICTS = 9
	FIELD_LICENCE_NUMBER    = 13
	FIELD_ID_NUMBER         = 14
)

var SECTION_MARKER = []byte{0x01, 0x02, 0x03, 0x04, 0x05}

var signatureVersions = map[[2]byte]barcode.Version{
	{0xE1, 0x02}: barcode.Version1,
	{0x9B, 0x09}: barcode.Version2,
}

// FindSignature returns the offset and version of the first version signature in raw.
func FindSignature(raw []byte) (int, barcode.Version, error) {
	for i := 0; i+SIGNATURE_SIZE <= len(raw); i++ {
		if raw[i] != SIGNATURE_START || raw[i+3] != SIGNATURE_END {
			continue
		}
		if version, ok := signatureVersions[[2]byte{raw[i+1], raw[i+2]}]; ok {
			return i, version, nil
		}
	}
	return 0, 0, barcode.NewDecryptionError("no driving licence version signature found")
}

// Decrypt locates the version signature and decrypts the frame that starts there.
func Decrypt(raw []byte, keys *barcode.KeySet) ([]byte, barcode.Version, error) {
	offset, version, err := FindSignature(raw)
	if err != nil {
		return nil, 0, err
	}
	if len(raw)-offset < barcode.FRAME_SIZE {
		return nil, 0, barcode.NewDecryptionError("barcode too short: %d bytes after signature, need %d", len(raw)-offset, barcode.FRAME_SIZE)
	}

	pair, err := keys.Pair(version)
	if err != nil {
		return nil, 0, err
	}

	frame := raw[offset : offset+barcode.FRAME_SIZE]
	plaintext, err := barcode.DecryptSixBlockPayload(frame[barcode.HEADER_SIZE:], pair)
	if err != nil {
		return nil, 0, err
	}
	return plaintext, version, nil
}

// Parse decrypts a raw driving licence barcode and decodes it.
func Parse(raw []byte, keys *barcode.KeySet) (*DrivingLicence, error) {
	plaintext, version, err := Decrypt(raw, keys)
	if err != nil {
		return nil, err
	}

	licence, err := ParsePlaintext(plaintext)
	if err != nil {
		return nil, err
	}
	licence.Version = version

	slog.Debug("decoded driving licence", "version", version.String())
	return licence, nil
}

// ParsePlaintext decodes the length-framed layout of a decrypted payload. The returned
// licence has no version set.
func ParsePlaintext(plaintext []byte) (*DrivingLicence, error) {
	if len(plaintext) < MIN_PLAINTEXT_SIZE {
		return nil, barcode.NewDecryptionError("decrypted payload too short: %d bytes", len(plaintext))
	}

	window := plaintext[:MARKER_SEARCH_WINDOW+len(SECTION_MARKER)-1]
	start := bytes.Index(window, SECTION_MARKER)
	if start < 0 {
		return nil, barcode.NewDecryptionError("section marker not found")
	}

	section2Length := int(plaintext[start+SECTION2_LENGTH_OFFSET])
	section1Length := int(plaintext[start+SECTION1_LENGTH_OFFSET])

	section1Start := start + SECTION1_OFFSET
	section1End := section1Start + section1Length
	if section1End > len(plaintext) {
		return nil, barcode.NewDecryptionError("section 1 overflows payload: ends at %d of %d", section1End, len(plaintext))
	}
	section2End := section1End + section2Length
	if section2End > len(plaintext) {
		return nil, barcode.NewDecryptionError("section 2 overflows payload: ends at %d of %d", section2End, len(plaintext))
	}

	fields := document.SplitFields(plaintext[section1Start:section1End])
	if len(fields) < MIN_FIELDS {
		return nil, barcode.NewDecryptionError("section 1 has %d fields, need %d", len(fields), MIN_FIELDS)
	}

	licence := &DrivingLicence{
		VehicleClassCodes:     append([]string(nil), fields[FIELD_VEHICLE_CODES:FIELD_VEHICLE_CODES+MAX_VEHICLE_CLASSES]...),
		Surname:               fields[FIELD_SURNAME],
		Initials:              fields[FIELD_INITIALS],
		PrdpCodes:             splitPrdpCodes(fields[FIELD_PRDP_CODES]),
		IDCountryOfIssue:      fields[FIELD_ID_COUNTRY],
		LicenceCountryOfIssue: fields[FIELD_LICENCE_COUNTRY],
		VehicleRestrictions:   append([]string(nil), fields[FIELD_VEHICLE_RESTRICTS:FIELD_VEHICLE_RESTRICTS+MAX_VEHICLE_CLASSES]...),
		LicenceNumber:         fields[FIELD_LICENCE_NUMBER],
		IDNumber:              fields[FIELD_ID_NUMBER],
	}

	issueDates, err := decodeSection2(plaintext[section1End:section2End], licence)
	if err != nil {
		return nil, err
	}
	licence.VehicleClasses = buildVehicleClasses(licence.VehicleClassCodes, licence.VehicleRestrictions, issueDates)

	return licence, nil
}

// decodeSection2 reads the BCD section into licence and returns the vehicle class issue dates.
func decodeSection2(section []byte, licence *DrivingLicence) ([]*string, error) {
	r := document.NewNibbleReader(section)
	var err error

	if licence.IDNumberType, err = r.Digits(2); err != nil {
		return nil, section2Error("ID number type", err)
	}

	issueDates := make([]*string, MAX_VEHICLE_CLASSES)
	for i := range issueDates {
		if issueDates[i], err = r.OptionalDate(); err != nil {
			return nil, section2Error("vehicle class issue date", err)
		}
	}

	if licence.DriverRestrictions, err = r.Digits(2); err != nil {
		return nil, section2Error("driver restrictions", err)
	}
	if licence.PrdpExpiry, err = r.OptionalDate(); err != nil {
		return nil, section2Error("PRDP expiry", err)
	}
	if licence.LicenceIssueNumber, err = r.Digits(2); err != nil {
		return nil, section2Error("licence issue number", err)
	}
	if licence.BirthDate, err = r.Date(); err != nil {
		return nil, section2Error("birth date", err)
	}
	if licence.ValidFrom, err = r.Date(); err != nil {
		return nil, section2Error("valid from", err)
	}
	if licence.ValidTo, err = r.Date(); err != nil {
		return nil, section2Error("valid to", err)
	}

	genderCode, err := r.Digits(2)
	if err != nil {
		return nil, section2Error("gender", err)
	}
	licence.Gender = mapGender(genderCode)

	return issueDates, nil
}

func section2Error(field string, err error) error {
	return barcode.NewDecryptionError("failed to read %s from section 2: %v", field, err)
}

func buildVehicleClasses(codes, restrictions []string, issueDates []*string) []VehicleClass {
	var classes []VehicleClass
	for i := 0; i < MAX_VEHICLE_CLASSES; i++ {
		code := codes[i]
		date := issueDates[i]
		if date == nil {
			continue
		}
		if code == "" {
			slog.Warn("skipping vehicle class: issue date without code", "index", i)
			continue
		}
		classes = append(classes, VehicleClass{
			Code:           code,
			Restriction:    restrictions[i],
			FirstIssueDate: *date,
		})
	}
	return classes
}

func splitPrdpCodes(field string) []string {
	if field == "" {
		return nil
	}
	var codes []string
	for _, code := range strings.Split(field, ",") {
		if code = strings.TrimSpace(code); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

func mapGender(code string) *string {
	var gender string
	// Digits never yields letters, so "M" and "F" only match when called directly.
	switch code {
	case "01", "M":
		gender = "M"
	case "02", "F":
		gender = "F"
	default:
		return nil
	}
	return &gender
}
