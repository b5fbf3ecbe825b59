package barcode

// Payload geometry: five 128-byte blocks followed by one 74-byte block.
const (
	BLOCK_SIZE       = 128
	FINAL_BLOCK_SIZE = 74
	FULL_BLOCKS      = 5
	PAYLOAD_SIZE     = FULL_BLOCKS*BLOCK_SIZE + FINAL_BLOCK_SIZE

	// HEADER_SIZE bytes precede the encrypted payload in a scanned barcode.
	HEADER_SIZE = 6
	// FRAME_SIZE is the header plus the encrypted payload.
	FRAME_SIZE = HEADER_SIZE + PAYLOAD_SIZE
)

// DecryptSixBlockPayload decrypts exactly PAYLOAD_SIZE bytes of ciphertext. Each block
// is transformed independently; there is no chaining between blocks.
func DecryptSixBlockPayload(ciphertext []byte, keys KeyPair) ([]byte, error) {
	if len(ciphertext) < PAYLOAD_SIZE {
		return nil, NewDecryptionError("payload too short: got %d bytes, need %d", len(ciphertext), PAYLOAD_SIZE)
	}
	if len(ciphertext) > PAYLOAD_SIZE {
		return nil, NewDecryptionError("payload too long: got %d bytes, need %d", len(ciphertext), PAYLOAD_SIZE)
	}

	plaintext := make([]byte, 0, PAYLOAD_SIZE)
	for i := 0; i < FULL_BLOCKS; i++ {
		offset := i * BLOCK_SIZE
		block := ciphertext[offset : offset+BLOCK_SIZE]
		plaintext = append(plaintext, DecryptBlock(block, keys.Block128, BLOCK_SIZE)...)
	}

	finalOffset := FULL_BLOCKS * BLOCK_SIZE
	finalBlock := ciphertext[finalOffset : finalOffset+FINAL_BLOCK_SIZE]
	plaintext = append(plaintext, DecryptBlock(finalBlock, keys.Block74, FINAL_BLOCK_SIZE)...)

	return plaintext, nil
}
