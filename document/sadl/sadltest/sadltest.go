// Package sadltest builds synthetic driving licence barcodes for tests.
package sadltest

import (
	"testing"

	"go-sa-licence-decoder/barcode"
	"go-sa-licence-decoder/barcode/barcodetest"
)

// Licence holds the fields written into a synthetic plaintext. Dates are YYYY-MM-DD,
// an empty issue date or PRDP expiry is encoded as absent.
type Licence struct {
	VehicleCodes       [4]string
	Surname            string
	Initials           string
	PrdpCodes          string
	IDCountry          string
	LicenceCountry     string
	Restrictions       [4]string
	LicenceNumber      string
	IDNumber           string
	IDNumberType       string
	IssueDates         [4]string
	DriverRestrictions string
	PrdpExpiry         string
	LicenceIssueNumber string
	BirthDate          string
	ValidFrom          string
	ValidTo            string
	Gender             string
}

func Sample() Licence {
	return Licence{
		VehicleCodes:       [4]string{"B", "EB", "", ""},
		Surname:            "VAN DER MERWE",
		Initials:           "JP",
		PrdpCodes:          "G,P",
		IDCountry:          "ZA",
		LicenceCountry:     "ZA",
		Restrictions:       [4]string{"0", "0", "", ""},
		LicenceNumber:      "40960001ABCD",
		IDNumber:           "8501015800088",
		IDNumberType:       "02",
		IssueDates:         [4]string{"2005-04-12", "2010-08-01", "", ""},
		DriverRestrictions: "00",
		PrdpExpiry:         "2026-01-31",
		LicenceIssueNumber: "03",
		BirthDate:          "1985-01-01",
		ValidFrom:          "2021-02-15",
		ValidTo:            "2026-02-14",
		Gender:             "01",
	}
}

// MarkerOffset is where Plaintext places the section marker.
const MarkerOffset = 3

// Plaintext lays out l as a PAYLOAD_SIZE byte decrypted payload.
func Plaintext(tb testing.TB, l Licence) []byte {
	tb.Helper()

	section1 := Section1(l)
	section2 := Section2(l)
	if len(section1) > 0xFF || len(section2) > 0xFF {
		tb.Fatalf("sections too long: %d, %d", len(section1), len(section2))
	}

	out := make([]byte, barcode.PAYLOAD_SIZE)
	start := MarkerOffset
	copy(out[start:], []byte{0x01, 0x02, 0x03, 0x04, 0x05})
	out[start+7] = byte(len(section2))
	out[start+10] = byte(len(section1))
	n := copy(out[start+15:], section1)
	copy(out[start+15+n:], section2)
	return out
}

// Section1 encodes the text fields: non-empty fields end with 0xE0, empty fields are 0xE1.
func Section1(l Licence) []byte {
	fields := make([]string, 0, 15)
	fields = append(fields, l.VehicleCodes[:]...)
	fields = append(fields, l.Surname, l.Initials, l.PrdpCodes, l.IDCountry, l.LicenceCountry)
	fields = append(fields, l.Restrictions[:]...)
	fields = append(fields, l.LicenceNumber, l.IDNumber)

	var out []byte
	for _, field := range fields {
		if field == "" {
			out = append(out, 0xE1)
			continue
		}
		out = append(out, field...)
		out = append(out, 0xE0)
	}
	return out
}

// Section2 packs the BCD fields two nibbles per byte.
func Section2(l Licence) []byte {
	var nibbles []byte
	digits := func(s string) {
		for _, c := range s {
			if c >= '0' && c <= '9' {
				nibbles = append(nibbles, byte(c-'0'))
			}
		}
	}
	optionalDate := func(date string) {
		if date == "" {
			nibbles = append(nibbles, 0xA)
			return
		}
		digits(date)
	}

	digits(l.IDNumberType)
	for _, date := range l.IssueDates {
		optionalDate(date)
	}
	digits(l.DriverRestrictions)
	optionalDate(l.PrdpExpiry)
	digits(l.LicenceIssueNumber)
	digits(l.BirthDate)
	digits(l.ValidFrom)
	digits(l.ValidTo)
	digits(l.Gender)

	if len(nibbles)%2 == 1 {
		nibbles = append(nibbles, 0)
	}
	out := make([]byte, len(nibbles)/2)
	for i := range out {
		out[i] = nibbles[2*i]<<4 | nibbles[2*i+1]
	}
	return out
}

// Signature returns the four signature bytes for a version.
func Signature(v barcode.Version) []byte {
	if v == barcode.Version2 {
		return []byte{0x01, 0x9B, 0x09, 0x45}
	}
	return []byte{0x01, 0xE1, 0x02, 0x45}
}

// Barcode encrypts plaintext with pair and frames it behind the version signature,
// preceded by offset filler bytes.
func Barcode(tb testing.TB, pair barcodetest.Pair, v barcode.Version, plaintext []byte, offset int) []byte {
	tb.Helper()

	raw := make([]byte, offset, offset+barcode.FRAME_SIZE)
	raw = append(raw, Signature(v)...)
	raw = append(raw, 0x00, 0x00)
	raw = append(raw, pair.Encrypt(tb, plaintext)...)
	return raw
}
