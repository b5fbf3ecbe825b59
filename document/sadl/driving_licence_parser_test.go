package sadl_test

import (
	"testing"

	"go-sa-licence-decoder/barcode"
	"go-sa-licence-decoder/barcode/barcodetest"
	"go-sa-licence-decoder/document/sadl"
	"go-sa-licence-decoder/document/sadl/sadltest"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string {
	return &s
}

func requireDecryptionError(t *testing.T, err error, contains string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, barcode.IsDecryptionError(err), "expected DecryptionError, got %T: %v", err, err)
	require.Contains(t, err.Error(), contains)
}

func TestFindSignature(t *testing.T) {
	trailing := make([]byte, 716)

	tests := []struct {
		name       string
		input      []byte
		wantOffset int
		wantVer    barcode.Version
	}{
		{"version 1 at start", append([]byte{0x01, 0xE1, 0x02, 0x45}, trailing...), 0, barcode.Version1},
		{"version 2 at start", append([]byte{0x01, 0x9B, 0x09, 0x45}, trailing...), 0, barcode.Version2},
		{"version 1 after noise", append([]byte{0x01, 0xE1, 0x02, 0x44, 0x33, 0x01, 0xE1, 0x02, 0x45}, trailing...), 5, barcode.Version1},
		{"first match wins", append([]byte{0x01, 0x9B, 0x09, 0x45, 0x01, 0xE1, 0x02, 0x45}, trailing...), 0, barcode.Version2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offset, version, err := sadl.FindSignature(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.wantOffset, offset)
			require.Equal(t, tt.wantVer, version)
		})
	}

	t.Run("no signature", func(t *testing.T) {
		_, _, err := sadl.FindSignature(append([]byte{0x01, 0xE1, 0x09, 0x45}, trailing...))
		requireDecryptionError(t, err, "no driving licence version signature")
	})

	t.Run("signature cut off at end", func(t *testing.T) {
		_, _, err := sadl.FindSignature([]byte{0x00, 0x01, 0xE1, 0x02})
		requireDecryptionError(t, err, "no driving licence version signature")
	})
}

func TestDecrypt_FrameTooShort(t *testing.T) {
	keys, _, _ := barcodetest.GenerateKeySet(t)

	raw := append([]byte{0x00, 0x01, 0xE1, 0x02, 0x45}, make([]byte, 715)...)
	_, _, err := sadl.Decrypt(raw, keys)
	requireDecryptionError(t, err, "barcode too short")
}

func TestParse_EndToEnd(t *testing.T) {
	keys, v1, v2 := barcodetest.GenerateKeySet(t)
	plaintext := sadltest.Plaintext(t, sadltest.Sample())

	expected := &sadl.DrivingLicence{
		Surname:               "VAN DER MERWE",
		Initials:              "JP",
		IDNumber:              "8501015800088",
		IDNumberType:          "02",
		IDCountryOfIssue:      "ZA",
		LicenceCountryOfIssue: "ZA",
		LicenceNumber:         "40960001ABCD",
		LicenceIssueNumber:    "03",
		VehicleClassCodes:     []string{"B", "EB", "", ""},
		VehicleRestrictions:   []string{"0", "0", "", ""},
		VehicleClasses: []sadl.VehicleClass{
			{Code: "B", Restriction: "0", FirstIssueDate: "2005-04-12"},
			{Code: "EB", Restriction: "0", FirstIssueDate: "2010-08-01"},
		},
		PrdpCodes:          []string{"G", "P"},
		PrdpExpiry:         strPtr("2026-01-31"),
		DriverRestrictions: "00",
		BirthDate:          "1985-01-01",
		ValidFrom:          "2021-02-15",
		ValidTo:            "2026-02-14",
		Gender:             strPtr("M"),
	}

	t.Run("version 1 at a known offset", func(t *testing.T) {
		raw := sadltest.Barcode(t, v1, barcode.Version1, plaintext, 17)

		decrypted, version, err := sadl.Decrypt(raw, keys)
		require.NoError(t, err)
		require.Equal(t, barcode.Version1, version)
		require.Equal(t, plaintext, decrypted)

		licence, err := sadl.Parse(raw, keys)
		require.NoError(t, err)
		want := *expected
		want.Version = barcode.Version1
		require.Equal(t, &want, licence)
	})

	t.Run("version 2 uses the second key pair", func(t *testing.T) {
		raw := sadltest.Barcode(t, v2, barcode.Version2, plaintext, 0)

		licence, err := sadl.Parse(raw, keys)
		require.NoError(t, err)
		require.Equal(t, barcode.Version2, licence.Version)
		require.Equal(t, expected.Surname, licence.Surname)
		require.Equal(t, expected.VehicleClasses, licence.VehicleClasses)
	})

	t.Run("trailing image data is ignored", func(t *testing.T) {
		raw := sadltest.Barcode(t, v1, barcode.Version1, plaintext, 2)
		raw = append(raw, make([]byte, 300)...)

		licence, err := sadl.Parse(raw, keys)
		require.NoError(t, err)
		require.Equal(t, expected.IDNumber, licence.IDNumber)
	})

	t.Run("wrong key pair fails structurally", func(t *testing.T) {
		raw := sadltest.Barcode(t, v2, barcode.Version1, plaintext, 0)

		_, err := sadl.Parse(raw, keys)
		requireDecryptionError(t, err, "section marker not found")
	})
}

func TestParsePlaintext_Errors(t *testing.T) {
	valid := func() []byte {
		return sadltest.Plaintext(t, sadltest.Sample())
	}
	start := sadltest.MarkerOffset

	tests := []struct {
		name     string
		mutate   func() []byte
		contains string
	}{
		{
			name:     "under 100 bytes",
			mutate:   func() []byte { return valid()[:99] },
			contains: "decrypted payload too short",
		},
		{
			name: "no marker",
			mutate: func() []byte {
				p := valid()
				p[start+4] = 0x06
				return p
			},
			contains: "section marker not found",
		},
		{
			name: "marker outside the first 40 bytes",
			mutate: func() []byte {
				p := make([]byte, 200)
				copy(p[40:], sadl.SECTION_MARKER)
				return p
			},
			contains: "section marker not found",
		},
		{
			name: "section 1 overflow",
			mutate: func() []byte {
				p := make([]byte, 100)
				copy(p, sadl.SECTION_MARKER)
				p[sadl.SECTION1_LENGTH_OFFSET] = 200
				return p
			},
			contains: "section 1 overflows",
		},
		{
			name: "section 2 overflow",
			mutate: func() []byte {
				p := make([]byte, 100)
				copy(p, sadl.SECTION_MARKER)
				p[sadl.SECTION1_LENGTH_OFFSET] = 10
				p[sadl.SECTION2_LENGTH_OFFSET] = 200
				return p
			},
			contains: "section 2 overflows",
		},
		{
			name: "too few fields",
			mutate: func() []byte {
				p := valid()
				p[start+sadl.SECTION1_LENGTH_OFFSET] = 10
				return p
			},
			contains: "section 1 has 5 fields",
		},
		{
			name: "section 2 truncated",
			mutate: func() []byte {
				p := valid()
				p[start+sadl.SECTION2_LENGTH_OFFSET] = 5
				return p
			},
			contains: "failed to read",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			licence, err := sadl.ParsePlaintext(tt.mutate())
			require.Nil(t, licence)
			requireDecryptionError(t, err, tt.contains)
		})
	}
}

func TestParsePlaintext_Fields(t *testing.T) {
	t.Run("marker at the edge of the search window", func(t *testing.T) {
		p := sadltest.Plaintext(t, sadltest.Sample())
		shifted := make([]byte, len(p))
		copy(shifted[39-sadltest.MarkerOffset:], p)

		licence, err := sadl.ParsePlaintext(shifted)
		require.NoError(t, err)
		require.Equal(t, "VAN DER MERWE", licence.Surname)
	})

	t.Run("no vehicle classes and no PRDP", func(t *testing.T) {
		l := sadltest.Sample()
		l.IssueDates = [4]string{}
		l.PrdpCodes = ""
		l.PrdpExpiry = ""

		licence, err := sadl.ParsePlaintext(sadltest.Plaintext(t, l))
		require.NoError(t, err)
		require.Nil(t, licence.VehicleClasses)
		require.Nil(t, licence.PrdpCodes)
		require.Nil(t, licence.PrdpExpiry)
		require.Equal(t, "1985-01-01", licence.BirthDate)
		require.Equal(t, "2026-02-14", licence.ValidTo)
	})

	t.Run("issue date without a code is skipped", func(t *testing.T) {
		l := sadltest.Sample()
		l.IssueDates = [4]string{"2005-04-12", "2010-08-01", "2015-01-01", ""}

		licence, err := sadl.ParsePlaintext(sadltest.Plaintext(t, l))
		require.NoError(t, err)
		require.Len(t, licence.VehicleClasses, 2)
	})

	t.Run("code without an issue date is skipped", func(t *testing.T) {
		l := sadltest.Sample()
		l.IssueDates = [4]string{"", "2010-08-01", "", ""}

		licence, err := sadl.ParsePlaintext(sadltest.Plaintext(t, l))
		require.NoError(t, err)
		require.Equal(t, []sadl.VehicleClass{{Code: "EB", Restriction: "0", FirstIssueDate: "2010-08-01"}}, licence.VehicleClasses)
	})

	genders := []struct {
		code string
		want *string
	}{
		{"01", strPtr("M")},
		{"02", strPtr("F")},
		{"00", nil},
		{"09", nil},
	}
	for _, g := range genders {
		t.Run("gender "+g.code, func(t *testing.T) {
			l := sadltest.Sample()
			l.Gender = g.code

			licence, err := sadl.ParsePlaintext(sadltest.Plaintext(t, l))
			require.NoError(t, err)
			require.Equal(t, g.want, licence.Gender)
		})
	}

	t.Run("invalid BCD in a mandatory date", func(t *testing.T) {
		l := sadltest.Sample()
		l.IssueDates = [4]string{}
		l.PrdpExpiry = ""
		p := sadltest.Plaintext(t, l)

		// ID type (2) + four absent dates (4) + restrictions (2) + absent PRDP (1) + issue number (2)
		// puts the birth date at nibble 11, so byte 6 holds its second and third nibbles.
		section2 := sadltest.MarkerOffset + sadl.SECTION1_OFFSET + len(sadltest.Section1(l))
		p[section2+6] = 0xBB

		_, err := sadl.ParsePlaintext(p)
		requireDecryptionError(t, err, "birth date")
	})
}
