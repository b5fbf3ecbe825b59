package barcode

import "math/big"

// BytesToBigInt interprets b as a big-endian unsigned integer.
func BytesToBigInt(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// BigIntToBytes writes v big-endian into exactly length bytes, zero-padded on the left.
// Decrypted values are always below the modulus, so they fit; if a wider value is ever
// passed only the low-order length bytes are kept.
func BigIntToBytes(v *big.Int, length int) []byte {
	out := make([]byte, length)
	raw := v.Bytes()
	if len(raw) > length {
		raw = raw[len(raw)-length:]
	}
	copy(out[length-len(raw):], raw)
	return out
}

// ModPow computes base^exponent mod modulus by square-and-multiply, walking the
// exponent bits from the lowest.
func ModPow(base, exponent, modulus *big.Int) *big.Int {
	if modulus.Sign() <= 0 {
		return new(big.Int)
	}

	result := big.NewInt(1)
	result.Mod(result, modulus)
	b := new(big.Int).Mod(base, modulus)

	for i := 0; i < exponent.BitLen(); i++ {
		if exponent.Bit(i) == 1 {
			result.Mul(result, b)
			result.Mod(result, modulus)
		}
		b.Mul(b, b)
		b.Mod(b, modulus)
	}
	return result
}

// DecryptBlock applies the key to one block and returns outputSize bytes.
func DecryptBlock(block []byte, key KeyMaterial, outputSize int) []byte {
	return BigIntToBytes(ModPow(BytesToBigInt(block), key.exponent, key.modulus), outputSize)
}
