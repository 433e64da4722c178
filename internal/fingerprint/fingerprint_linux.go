//go:build linux

package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/google/go-tpm/tpm2"
	"github.com/google/go-tpm/tpm2/transport"
)

// tpmDevicePaths mirrors the resource-manager-first preference used
// throughout the TPM stack this package was trimmed from.
var tpmDevicePaths = []string{
	"/dev/tpmrm0",
	"/dev/tpm0",
}

// tpmProvider implements Provider against a real TPM 2.0 device, reading
// only the endorsement key's public area — the one value this package
// needs for a stable hardware identity.
type tpmProvider struct {
	devicePath string
}

func detectProvider() Provider {
	for _, path := range tpmDevicePaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		f, err := os.OpenFile(path, os.O_RDWR, 0)
		if err != nil {
			continue
		}
		f.Close()
		return &tpmProvider{devicePath: path}
	}
	return nil
}

func (p *tpmProvider) Available() bool {
	if p.devicePath == "" {
		return false
	}
	_, err := os.Stat(p.devicePath)
	return err == nil
}

// Identity opens the TPM, reads the endorsement key's public area, and
// returns the hex-encoded SHA-256 hash of its marshaled form.
func (p *tpmProvider) Identity() (string, error) {
	tr, err := transport.OpenTPM(p.devicePath)
	if err != nil {
		return "", fmt.Errorf("fingerprint: open tpm: %w", err)
	}
	defer tr.Close()

	createEK := tpm2.CreatePrimary{
		PrimaryHandle: tpm2.TPMRHEndorsement,
		InPublic:      tpm2.New2B(tpm2.RSAEKTemplate),
	}
	rsp, err := createEK.Execute(tr)
	if err != nil {
		return "", fmt.Errorf("fingerprint: create ek: %w", err)
	}
	defer func() {
		tpm2.FlushContext{FlushHandle: rsp.ObjectHandle}.Execute(tr)
	}()

	pubBytes, err := rsp.OutPublic.Marshal()
	if err != nil {
		return "", fmt.Errorf("fingerprint: marshal ek public: %w", err)
	}

	hash := sha256.Sum256(pubBytes)
	return hex.EncodeToString(hash[:]), nil
}
