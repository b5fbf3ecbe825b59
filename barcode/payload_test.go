package barcode_test

import (
	"bytes"
	"crypto/rand"
	"testing"

	"go-sa-licence-decoder/barcode"
	"go-sa-licence-decoder/barcode/barcodetest"

	"github.com/stretchr/testify/require"
)

func randomPlaintext(t *testing.T) []byte {
	t.Helper()
	plaintext := make([]byte, barcode.PAYLOAD_SIZE)
	_, err := rand.Read(plaintext)
	require.NoError(t, err)
	// every block must stay below a modulus starting 0xFFFF
	for offset := 0; offset < barcode.PAYLOAD_SIZE; offset += barcode.BLOCK_SIZE {
		plaintext[offset] &= 0x7F
	}
	return plaintext
}

func TestDecryptSixBlockPayload_Shape(t *testing.T) {
	pair := barcodetest.GeneratePair(t)

	plaintext, err := barcode.DecryptSixBlockPayload(make([]byte, barcode.PAYLOAD_SIZE), pair.KeyPair())
	require.NoError(t, err)
	require.Len(t, plaintext, barcode.PAYLOAD_SIZE)
	require.Equal(t, 714, barcode.PAYLOAD_SIZE)
}

func TestDecryptSixBlockPayload_WrongLength(t *testing.T) {
	pair := barcodetest.GeneratePair(t)

	tests := []struct {
		name          string
		length        int
		expectedError string
	}{
		{"empty", 0, "payload too short"},
		{"one byte short", barcode.PAYLOAD_SIZE - 1, "payload too short"},
		{"one byte long", barcode.PAYLOAD_SIZE + 1, "payload too long"},
		{"full frame", barcode.FRAME_SIZE, "payload too long"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := barcode.DecryptSixBlockPayload(make([]byte, tt.length), pair.KeyPair())
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.expectedError)
			require.True(t, barcode.IsDecryptionError(err))
		})
	}
}

func TestDecryptSixBlockPayload_RoundTrip(t *testing.T) {
	pair := barcodetest.GeneratePair(t)
	plaintext := randomPlaintext(t)

	ciphertext := pair.Encrypt(t, plaintext)
	require.False(t, bytes.Equal(plaintext, ciphertext))

	decrypted, err := barcode.DecryptSixBlockPayload(ciphertext, pair.KeyPair())
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)

	again, err := barcode.DecryptSixBlockPayload(ciphertext, pair.KeyPair())
	require.NoError(t, err)
	require.Equal(t, decrypted, again, "transform must be deterministic")
}

func TestDecryptSixBlockPayload_BlocksAreIndependent(t *testing.T) {
	pair := barcodetest.GeneratePair(t)
	plaintext := randomPlaintext(t)
	ciphertext := pair.Encrypt(t, plaintext)

	tampered := bytes.Clone(ciphertext)
	tampered[barcode.BLOCK_SIZE+5] ^= 0xFF

	decrypted, err := barcode.DecryptSixBlockPayload(tampered, pair.KeyPair())
	require.NoError(t, err)
	require.Equal(t, plaintext[:barcode.BLOCK_SIZE], decrypted[:barcode.BLOCK_SIZE])
	require.NotEqual(t, plaintext[barcode.BLOCK_SIZE:2*barcode.BLOCK_SIZE], decrypted[barcode.BLOCK_SIZE:2*barcode.BLOCK_SIZE])
	require.Equal(t, plaintext[2*barcode.BLOCK_SIZE:], decrypted[2*barcode.BLOCK_SIZE:])
}
