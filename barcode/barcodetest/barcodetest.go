// Package barcodetest generates throwaway key material and encrypts payloads so the
// decoders can be tested without the production keys.
package barcodetest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"math/big"
	"testing"

	"go-sa-licence-decoder/barcode"
)

// Key is a generated test key together with its private exponent.
type Key struct {
	Material barcode.KeyMaterial
	N        *big.Int
	E        *big.Int
	D        *big.Int
	Size     int
}

// Pair mirrors barcode.KeyPair with private exponents attached.
type Pair struct {
	Block128 Key
	Block74  Key
}

func (p Pair) KeyPair() barcode.KeyPair {
	return barcode.KeyPair{Block128: p.Block128.Material, Block74: p.Block74.Material}
}

// GenerateKey creates a key whose modulus is exactly size bytes long and whose two top
// bytes are 0xFF, so any block that does not start with 0xFF encrypts reversibly.
func GenerateKey(tb testing.TB, size int) Key {
	tb.Helper()

	e := big.NewInt(65537)
	one := big.NewInt(1)
	for attempt := 0; attempt < 32; attempt++ {
		p := highPrime(tb, size/2)
		q := highPrime(tb, size-size/2)
		if p.Cmp(q) == 0 {
			continue
		}
		n := new(big.Int).Mul(p, q)
		if (n.BitLen()+7)/8 != size {
			continue
		}
		phi := new(big.Int).Mul(new(big.Int).Sub(p, one), new(big.Int).Sub(q, one))
		d := new(big.Int).ModInverse(e, phi)
		if d == nil {
			continue
		}
		material, err := barcode.NewKeyMaterial(n, e)
		if err != nil {
			tb.Fatalf("failed to build key material: %v", err)
		}
		return Key{Material: material, N: n, E: e, D: d, Size: size}
	}
	tb.Fatalf("failed to generate a %d byte test key", size)
	return Key{}
}

// highPrime returns a prime of exactly nBytes bytes with its two top bytes set to 0xFF.
func highPrime(tb testing.TB, nBytes int) *big.Int {
	tb.Helper()
	two := big.NewInt(2)
	for {
		buf := make([]byte, nBytes)
		if _, err := rand.Read(buf); err != nil {
			tb.Fatalf("failed to read random bytes: %v", err)
		}
		buf[0], buf[1] = 0xFF, 0xFF
		buf[nBytes-1] |= 1

		candidate := new(big.Int).SetBytes(buf)
		for !candidate.ProbablyPrime(20) {
			candidate.Add(candidate, two)
		}
		if candidate.BitLen() == nBytes*8 {
			return candidate
		}
	}
}

// GeneratePair creates a 128-byte and a 74-byte key.
func GeneratePair(tb testing.TB) Pair {
	tb.Helper()
	return Pair{
		Block128: GenerateKey(tb, barcode.BLOCK_SIZE),
		Block74:  GenerateKey(tb, barcode.FINAL_BLOCK_SIZE),
	}
}

// GenerateKeySet creates key pairs for both barcode versions.
func GenerateKeySet(tb testing.TB) (*barcode.KeySet, Pair, Pair) {
	tb.Helper()
	v1 := GeneratePair(tb)
	v2 := GeneratePair(tb)
	return barcode.NewKeySet(v1.KeyPair(), v2.KeyPair()), v1, v2
}

// Encrypt is the inverse of barcode.DecryptSixBlockPayload for this pair.
func (p Pair) Encrypt(tb testing.TB, plaintext []byte) []byte {
	tb.Helper()
	if len(plaintext) != barcode.PAYLOAD_SIZE {
		tb.Fatalf("plaintext must be %d bytes, got %d", barcode.PAYLOAD_SIZE, len(plaintext))
	}

	ciphertext := make([]byte, 0, barcode.PAYLOAD_SIZE)
	for i := 0; i < barcode.FULL_BLOCKS; i++ {
		offset := i * barcode.BLOCK_SIZE
		ciphertext = append(ciphertext, p.Block128.encryptBlock(tb, plaintext[offset:offset+barcode.BLOCK_SIZE])...)
	}
	finalOffset := barcode.FULL_BLOCKS * barcode.BLOCK_SIZE
	ciphertext = append(ciphertext, p.Block74.encryptBlock(tb, plaintext[finalOffset:])...)
	return ciphertext
}

func (k Key) encryptBlock(tb testing.TB, block []byte) []byte {
	tb.Helper()
	m := new(big.Int).SetBytes(block)
	if m.Cmp(k.N) >= 0 {
		tb.Fatalf("plaintext block %x does not fit below the modulus", block[:4])
	}
	c := new(big.Int).Exp(m, k.D, k.N)
	return c.FillBytes(make([]byte, k.Size))
}

// PEM encodes the public half of the key as a PKCS#1 "RSA PUBLIC KEY" block.
func (k Key) PEM() []byte {
	der := x509.MarshalPKCS1PublicKey(&rsa.PublicKey{N: k.N, E: int(k.E.Int64())})
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: der})
}

// Bundle returns the PEM bundle for two generated pairs.
func Bundle(v1, v2 Pair) barcode.PEMBundle {
	return barcode.PEMBundle{
		V1Block128: v1.Block128.PEM(),
		V1Block74:  v1.Block74.PEM(),
		V2Block128: v2.Block128.PEM(),
		V2Block74:  v2.Block74.PEM(),
	}
}
