package attestation

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestEmbeddedTemplateMatchesRepoTemplate(t *testing.T) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("unable to resolve caller path")
	}
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
	repoTemplatePath := filepath.Join(repoRoot, "attestation.template.json")

	repoTemplate, err := os.ReadFile(repoTemplatePath)
	if err != nil {
		t.Fatalf("read repo template: %v", err)
	}

	if !bytes.Equal(bytes.TrimSpace(repoTemplate), bytes.TrimSpace(templateJSON)) {
		t.Fatalf("embedded template differs from %s", repoTemplatePath)
	}
}

func TestTemplateDecodesToZeroValuePayload(t *testing.T) {
	p, err := Decode(Template())
	if err != nil {
		t.Fatalf("Decode(Template()) error = %v", err)
	}
	if p.Action != "" || p.Hostname != "" || p.Signature != "" {
		t.Errorf("template fields should be blank placeholders, got %+v", p)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	raw := []byte(`{"verified":true,"score":0.97,"action":"login","timestamp":1700000000000,"hostname":"host-1","signature":"deadbeef"}`)
	p, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !p.Verified || p.Score != 0.97 || p.Action != "login" || p.Hostname != "host-1" || p.Signature != "deadbeef" {
		t.Errorf("Decode() = %+v, unexpected", p)
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	if _, err := Decode([]byte("not json")); err == nil {
		t.Error("expected error decoding malformed payload")
	}
}
