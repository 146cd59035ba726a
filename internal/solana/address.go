package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Encoded sizes of Solana identifiers.
const (
	PublicKeySize = 32
	SignatureSize = 64
)

// ValidateAddress checks that s is a base58-encoded 32-byte public key.
func ValidateAddress(s string) error {
	return validateBase58(s, PublicKeySize, "address")
}

// ValidateSignature checks that s is a base58-encoded 64-byte transaction signature.
func ValidateSignature(s string) error {
	return validateBase58(s, SignatureSize, "signature")
}

func validateBase58(s string, size int, kind string) error {
	if s == "" {
		return fmt.Errorf("empty %s", kind)
	}
	decoded, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("decode %s: %w", kind, err)
	}
	if len(decoded) != size {
		return fmt.Errorf("%s must be %d bytes, got %d", kind, size, len(decoded))
	}
	return nil
}

// IsOnCurve reports whether a valid address is an ed25519 point, i.e. a key
// that can sign. Program-derived addresses are off curve.
func IsOnCurve(address string) bool {
	decoded, err := base58.Decode(address)
	if err != nil || len(decoded) != PublicKeySize {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(decoded)
	return err == nil
}
