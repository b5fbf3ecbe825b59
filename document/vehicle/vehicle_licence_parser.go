package vehicle

import (
	"fmt"
	"log/slog"

	"go-sa-licence-decoder/barcode"
	"go-sa-licence-decoder/document"
)

// Inputs shorter than PLAINTEXT_THRESHOLD are already decrypted text.
const PLAINTEXT_THRESHOLD = 300

// Decrypt returns the plaintext of a vehicle licence barcode. The last FRAME_SIZE bytes
// are decrypted with the version 1 keys, falling back to the version 2 keys.
func Decrypt(raw []byte, keys *barcode.KeySet) ([]byte, error) {
	if len(raw) < PLAINTEXT_THRESHOLD {
		return raw, nil
	}
	if len(raw) < barcode.FRAME_SIZE {
		return nil, barcode.NewDecryptionError("barcode too short: got %d bytes, need %d", len(raw), barcode.FRAME_SIZE)
	}

	frame := raw[len(raw)-barcode.FRAME_SIZE:]
	ciphertext := frame[barcode.HEADER_SIZE:]

	var lastErr error
	for _, version := range []barcode.Version{barcode.Version1, barcode.Version2} {
		pair, err := keys.Pair(version)
		if err != nil {
			return nil, err
		}
		plaintext, err := barcode.DecryptSixBlockPayload(ciphertext, pair)
		if err == nil {
			return plaintext, nil
		}
		slog.Debug("vehicle licence decryption failed, trying next key version", "version", version.String(), "error", err)
		lastErr = err
	}
	return nil, fmt.Errorf("failed to decrypt vehicle licence with any key version: %w", lastErr)
}

// Parse decrypts a raw vehicle licence barcode and classifies its tokens.
func Parse(raw []byte, keys *barcode.KeySet) (*VehicleLicence, error) {
	plaintext, err := Decrypt(raw, keys)
	if err != nil {
		return nil, err
	}

	tokens := document.SplitTokens(plaintext)
	slog.Debug("tokenized vehicle licence", "tokens", len(tokens))

	return Classify(tokens, plaintext), nil
}
