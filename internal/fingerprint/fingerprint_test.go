package fingerprint

import "testing"

func TestCollectSoftwareOnly(t *testing.T) {
	c, err := Collect(nil)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if c.OS == "" || c.Arch == "" {
		t.Fatal("expected os/arch to be populated")
	}
	if c.TPMIdentity != "" {
		t.Fatal("expected no tpm identity without a provider")
	}
}

func TestHexIsStableAndDependsOnComponents(t *testing.T) {
	a := Components{OS: "linux", Arch: "amd64", Hostname: "h1"}
	b := Components{OS: "linux", Arch: "amd64", Hostname: "h2"}

	ah, err := a.Hex()
	if err != nil {
		t.Fatalf("hex: %v", err)
	}
	ah2, err := a.Hex()
	if err != nil {
		t.Fatalf("hex: %v", err)
	}
	if ah != ah2 {
		t.Fatal("expected Hex to be deterministic")
	}

	bh, err := b.Hex()
	if err != nil {
		t.Fatalf("hex: %v", err)
	}
	if ah == bh {
		t.Fatal("expected different hostnames to produce different fingerprints")
	}
}

type stubProvider struct {
	available bool
	identity  string
	err       error
}

func (s stubProvider) Available() bool         { return s.available }
func (s stubProvider) Identity() (string, error) { return s.identity, s.err }

func TestCollectBindsTPMIdentityWhenAvailable(t *testing.T) {
	c, err := Collect(stubProvider{available: true, identity: "deadbeef"})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if c.TPMIdentity != "deadbeef" {
		t.Fatalf("expected tpm identity to be bound, got %q", c.TPMIdentity)
	}
}

func TestCollectSkipsUnavailableProvider(t *testing.T) {
	c, err := Collect(stubProvider{available: false})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if c.TPMIdentity != "" {
		t.Fatal("expected unavailable provider to be skipped")
	}
}
