package barcode

import (
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"

	"github.com/gmrtd/gmrtd/tlv"
)

// DER tags of a PKCS#1 RSAPublicKey
const (
	SEQUENCE_TAG = 0x30
	INTEGER_TAG  = 0x02
)

// Names of the four keys, as used in config files and secret stores.
const (
	KeyV1Block128 = "v1_128"
	KeyV1Block74  = "v1_74"
	KeyV2Block128 = "v2_128"
	KeyV2Block74  = "v2_74"
)

// Version identifies a driver's licence barcode format. Each version has its own key pair.
type Version int

const (
	Version1 Version = 1
	Version2 Version = 2
)

func (v Version) String() string {
	return fmt.Sprintf("v%d", int(v))
}

// KeyMaterial is an immutable (modulus, exponent) pair taken from a PKCS#1 public key.
type KeyMaterial struct {
	modulus  *big.Int
	exponent *big.Int
}

// NewKeyMaterial copies modulus and exponent into a KeyMaterial.
func NewKeyMaterial(modulus, exponent *big.Int) (KeyMaterial, error) {
	if modulus == nil || modulus.Cmp(big.NewInt(1)) <= 0 {
		return KeyMaterial{}, fmt.Errorf("modulus must be greater than 1")
	}
	if exponent == nil || exponent.Sign() <= 0 {
		return KeyMaterial{}, fmt.Errorf("exponent must be positive")
	}
	return KeyMaterial{
		modulus:  new(big.Int).Set(modulus),
		exponent: new(big.Int).Set(exponent),
	}, nil
}

func (k KeyMaterial) Modulus() *big.Int {
	return new(big.Int).Set(k.modulus)
}

func (k KeyMaterial) Exponent() *big.Int {
	return new(big.Int).Set(k.exponent)
}

// Size returns the modulus length in bytes.
func (k KeyMaterial) Size() int {
	if k.modulus == nil {
		return 0
	}
	return (k.modulus.BitLen() + 7) / 8
}

// ParsePKCS1PEM parses a PEM encoded PKCS#1 RSA public key into its modulus and exponent.
func ParsePKCS1PEM(pemBytes []byte) (KeyMaterial, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return KeyMaterial{}, &KeyMaterialParseError{Err: errors.New("failed to decode PEM block")}
	}
	return ParsePKCS1DER(block.Bytes)
}

// ParsePKCS1DER parses SEQUENCE { INTEGER modulus, INTEGER exponent }.
// A leading sign-guard zero on either integer is accepted.
func ParsePKCS1DER(der []byte) (KeyMaterial, error) {
	if len(der) == 0 || der[0] != SEQUENCE_TAG {
		return KeyMaterial{}, &KeyMaterialParseError{Err: errors.New("missing SEQUENCE tag")}
	}

	nodes, err := tlv.Decode(der)
	if err != nil {
		return KeyMaterial{}, &KeyMaterialParseError{Err: fmt.Errorf("failed to decode DER: %w", err)}
	}

	seq := nodes.NodeByTag(SEQUENCE_TAG)
	if !seq.IsValidNode() {
		return KeyMaterial{}, &KeyMaterialParseError{Err: errors.New("missing SEQUENCE tag")}
	}

	modulusNode := seq.NodeByTagOccur(INTEGER_TAG, 1)
	if !modulusNode.IsValidNode() || len(modulusNode.Value()) == 0 {
		return KeyMaterial{}, &KeyMaterialParseError{Err: errors.New("missing modulus INTEGER")}
	}
	exponentNode := seq.NodeByTagOccur(INTEGER_TAG, 2)
	if !exponentNode.IsValidNode() || len(exponentNode.Value()) == 0 {
		return KeyMaterial{}, &KeyMaterialParseError{Err: errors.New("missing exponent INTEGER")}
	}

	key, err := NewKeyMaterial(BytesToBigInt(modulusNode.Value()), BytesToBigInt(exponentNode.Value()))
	if err != nil {
		return KeyMaterial{}, &KeyMaterialParseError{Err: err}
	}
	return key, nil
}

// KeyPair holds the keys for the five 128-byte blocks and the final 74-byte block.
type KeyPair struct {
	Block128 KeyMaterial
	Block74  KeyMaterial
}

// KeySet is the process-wide key material for both barcode versions. It is built once
// at startup and is safe for concurrent use.
type KeySet struct {
	v1 KeyPair
	v2 KeyPair
}

func NewKeySet(v1, v2 KeyPair) *KeySet {
	return &KeySet{v1: v1, v2: v2}
}

// Pair returns the key pair for a barcode version.
func (s *KeySet) Pair(v Version) (KeyPair, error) {
	switch v {
	case Version1:
		return s.v1, nil
	case Version2:
		return s.v2, nil
	default:
		return KeyPair{}, fmt.Errorf("unknown barcode version %d", int(v))
	}
}

// PEMBundle carries the four PEM encoded keys as read from configuration.
type PEMBundle struct {
	V1Block128 []byte
	V1Block74  []byte
	V2Block128 []byte
	V2Block74  []byte
}

// LoadKeySet parses all four keys. The first key that fails is named in the error.
func LoadKeySet(bundle PEMBundle) (*KeySet, error) {
	parse := func(name string, pemBytes []byte) (KeyMaterial, error) {
		key, err := ParsePKCS1PEM(pemBytes)
		if err != nil {
			var parseErr *KeyMaterialParseError
			if errors.As(err, &parseErr) {
				return KeyMaterial{}, &KeyMaterialParseError{Key: name, Err: parseErr.Err}
			}
			return KeyMaterial{}, &KeyMaterialParseError{Key: name, Err: err}
		}
		return key, nil
	}

	v1Block128, err := parse(KeyV1Block128, bundle.V1Block128)
	if err != nil {
		return nil, err
	}
	v1Block74, err := parse(KeyV1Block74, bundle.V1Block74)
	if err != nil {
		return nil, err
	}
	v2Block128, err := parse(KeyV2Block128, bundle.V2Block128)
	if err != nil {
		return nil, err
	}
	v2Block74, err := parse(KeyV2Block74, bundle.V2Block74)
	if err != nil {
		return nil, err
	}

	return NewKeySet(
		KeyPair{Block128: v1Block128, Block74: v1Block74},
		KeyPair{Block128: v2Block128, Block74: v2Block74},
	), nil
}
