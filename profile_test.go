package gamelan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleProfile = `
endpoint = "https://api.example.com"

[retry]
max_attempts = 5

[timeouts]
attempt = "2s"
operation = "30s"

[identity]
buffer = "5m"
`

func TestParseProfile(t *testing.T) {
	layer, err := ParseProfile(sampleProfile)
	if err != nil {
		t.Fatalf("ParseProfile failed: %v", err)
	}
	view := NewView(layer)

	if got, _ := Resolve(view, KeyEndpoint); got.URL != "https://api.example.com" {
		t.Errorf("Expected the profile endpoint, got %q", got.URL)
	}
	if got, _ := Resolve(view, KeyMaxAttempts); got != 5 {
		t.Errorf("Expected max_attempts=5, got %d", got)
	}
	if got, _ := Resolve(view, KeyAttemptTimeout); got != 2*time.Second {
		t.Errorf("Expected attempt timeout 2s, got %v", got)
	}
	if got, _ := Resolve(view, KeyOperationTimeout); got != 30*time.Second {
		t.Errorf("Expected operation timeout 30s, got %v", got)
	}
	if got, _ := Resolve(view, KeyIdentityBuffer); got != 5*time.Minute {
		t.Errorf("Expected identity buffer 5m, got %v", got)
	}
}

func TestParseProfileOmitsUnsetKeys(t *testing.T) {
	layer, err := ParseProfile(`endpoint = "https://only.example.com"`)
	if err != nil {
		t.Fatalf("ParseProfile failed: %v", err)
	}
	view := NewView(layer)

	if _, ok := Resolve(view, KeyMaxAttempts); ok {
		t.Error("Expected unset profile keys to stay absent, not zero-valued")
	}
	if _, ok := Resolve(view, KeyAttemptTimeout); ok {
		t.Error("Expected unset timeouts to stay absent")
	}
}

func TestParseProfileRejectsMalformedDurations(t *testing.T) {
	_, err := ParseProfile(`
[timeouts]
attempt = "not-a-duration"
`)
	if err == nil {
		t.Fatal("Expected a parse error for a malformed duration")
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.toml")
	if err := os.WriteFile(path, []byte(sampleProfile), 0o644); err != nil {
		t.Fatalf("Writing profile: %v", err)
	}

	layer, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile failed: %v", err)
	}
	if got, _ := Resolve(NewView(layer), KeyMaxAttempts); got != 5 {
		t.Errorf("Expected max_attempts=5 from the file, got %d", got)
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("Expected an error for a missing profile file")
	}
}

func TestProfileLayerFeedsClientConfiguration(t *testing.T) {
	layer, err := ParseProfile(sampleProfile)
	if err != nil {
		t.Fatalf("ParseProfile failed: %v", err)
	}

	transport := okTransport()
	client := New(
		WithConnector(transport),
		WithConfig(layer),
	)
	if !client.IsValid() {
		t.Fatalf("Client invalid: %v", client.ValidationError())
	}

	// No explicit endpoint option, so the profile's endpoint applies.
	var hit string
	transport.fn = func(_ int64, req *Request) (*Response, error) {
		hit = req.Endpoint.URL
		return &Response{StatusCode: 200, Body: []byte("ok")}, nil
	}
	if _, err := client.Execute(context.Background(), echoOp(), "in"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if hit != "https://api.example.com" {
		t.Errorf("Expected the profile endpoint on the wire, got %q", hit)
	}
}
