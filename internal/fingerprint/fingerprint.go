// Package fingerprint derives the device fingerprint hex string that
// initialize(fingerprintHex) binds into a chain's initial hash (§4.2,
// §4.4). It collects a small set of stable device components and
// optionally strengthens them with a TPM-backed hardware identity,
// trimmed from witnessd/internal/tpm's Provider abstraction down to the
// one capability this package needs: a stable, hardware-rooted
// identifier, not the full attestation/sealing/quote surface.
package fingerprint

import (
	"fmt"
	"os"
	"runtime"

	"typingproof/internal/canonical"
	"typingproof/internal/hashutil"
)

// Components is the set of device properties bound into the fingerprint.
// It implements canonical.Marshaler so Hex can hash it deterministically.
type Components struct {
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	Hostname string `json:"hostname"`

	// TPMIdentity is the hex-encoded hash of the TPM endorsement key's
	// public area, present only when a hardware TPM provider was
	// available at collection time. Empty on software-only fingerprints.
	TPMIdentity string `json:"tpmIdentity,omitempty"`
}

// CanonicalValue implements canonical.Marshaler.
func (c Components) CanonicalValue() any {
	m := map[string]any{
		"os":       c.OS,
		"arch":     c.Arch,
		"hostname": c.Hostname,
	}
	if c.TPMIdentity != "" {
		m["tpmIdentity"] = c.TPMIdentity
	}
	return m
}

// Provider abstracts the hardware identity source. Available returns
// false on platforms or devices without a usable TPM; Identity returns a
// stable hash of the TPM's endorsement key when available.
type Provider interface {
	Available() bool
	Identity() (string, error)
}

// Collect gathers the software-visible components and, if provider is
// non-nil and available, binds a TPM identity into them.
func Collect(provider Provider) (Components, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	c := Components{
		OS:       runtime.GOOS,
		Arch:     runtime.GOARCH,
		Hostname: hashutil.Sum([]byte(hostname)),
	}

	if provider != nil && provider.Available() {
		identity, err := provider.Identity()
		if err != nil {
			return Components{}, fmt.Errorf("fingerprint: tpm identity: %w", err)
		}
		c.TPMIdentity = identity
	}

	return c, nil
}

// Hex canonicalizes Components and returns its SHA-256 hex digest, the
// fingerprintHex value passed to chain.Builder.Initialize.
func (c Components) Hex() (string, error) {
	encoded, err := canonical.Encode(c)
	if err != nil {
		return "", err
	}
	return hashutil.Sum(encoded), nil
}

// DetectProvider returns the platform's hardware Provider, or nil where
// none is wired (see fingerprint_other.go).
func DetectProvider() Provider {
	return detectProvider()
}
