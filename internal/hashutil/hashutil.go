// Package hashutil provides the SHA-256 hash primitive shared by the event
// chain, the PoSW engine, and the verifier.
package hashutil

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SaltSize is the number of CSPRNG bytes mixed into the initial hash.
const SaltSize = 32

// NonceSize is the number of CSPRNG bytes in a per-event PoSW nonce.
const NonceSize = 32

// Sum returns the lowercase hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SumConcat hashes the concatenation of several byte strings without an
// intermediate allocation of the joined buffer.
func SumConcat(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RandomHex returns n cryptographically random bytes, hex-encoded.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("hashutil: read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// InitialHash derives a chain's initial hash from a device fingerprint and
// a fresh CSPRNG salt: H(fingerprintHex || hex(32 random bytes)). The salt
// is committed only by inclusion in this hash; it is never otherwise
// exposed.
func InitialHash(fingerprintHex string) (string, error) {
	salt, err := RandomHex(SaltSize)
	if err != nil {
		return "", err
	}
	return SumConcat([]byte(fingerprintHex), []byte(salt)), nil
}

// InitialHashWithEntropy derives the initial hash using caller-supplied
// entropy instead of crypto/rand directly. No caller in this module uses
// it; InitialHash is the path the chain builder takes.
func InitialHashWithEntropy(fingerprintHex string, saltHex string) string {
	return SumConcat([]byte(fingerprintHex), []byte(saltHex))
}

// Iterate applies SHA-256 to seed k times, returning the final hex digest.
// k == 0 returns seed unchanged.
func Iterate(seed string, k uint64) string {
	current := seed
	for i := uint64(0); i < k; i++ {
		sum := sha256.Sum256([]byte(current))
		current = hex.EncodeToString(sum[:])
	}
	return current
}
