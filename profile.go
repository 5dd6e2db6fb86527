package gamelan

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// profileFile mirrors the on-disk TOML profile shape.
//
//	endpoint = "https://api.example.com"
//
//	[retry]
//	max_attempts = 5
//
//	[timeouts]
//	attempt = "2s"
//	operation = "30s"
//
//	[identity]
//	buffer = "5m"
type profileFile struct {
	Endpoint string `toml:"endpoint"`
	Retry    struct {
		MaxAttempts int `toml:"max_attempts"`
	} `toml:"retry"`
	Timeouts struct {
		Attempt   tomlDuration `toml:"attempt"`
		Operation tomlDuration `toml:"operation"`
	} `toml:"timeouts"`
	Identity struct {
		Buffer tomlDuration `toml:"buffer"`
	} `toml:"identity"`
}

type tomlDuration struct {
	time.Duration
}

func (d *tomlDuration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// LoadProfile parses a TOML profile file into a configuration layer
// suitable for WithConfig. Only keys present in the file end up in the
// layer, so profile values never shadow tier defaults they don't set.
func LoadProfile(path string) (*Layer, error) {
	var pf profileFile
	if _, err := toml.DecodeFile(path, &pf); err != nil {
		return nil, fmt.Errorf("gamelan: parsing profile %s: %w", path, err)
	}
	return profileLayer(&pf), nil
}

// ParseProfile parses TOML profile content from memory, mainly for tests
// and embedded configuration.
func ParseProfile(data string) (*Layer, error) {
	var pf profileFile
	if _, err := toml.Decode(data, &pf); err != nil {
		return nil, fmt.Errorf("gamelan: parsing profile: %w", err)
	}
	return profileLayer(&pf), nil
}

func profileLayer(pf *profileFile) *Layer {
	b := NewLayer("profile")
	if pf.Endpoint != "" {
		Set(b, KeyEndpoint, Endpoint{URL: pf.Endpoint})
	}
	if pf.Retry.MaxAttempts > 0 {
		Set(b, KeyMaxAttempts, pf.Retry.MaxAttempts)
	}
	if pf.Timeouts.Attempt.Duration > 0 {
		Set(b, KeyAttemptTimeout, pf.Timeouts.Attempt.Duration)
	}
	if pf.Timeouts.Operation.Duration > 0 {
		Set(b, KeyOperationTimeout, pf.Timeouts.Operation.Duration)
	}
	if pf.Identity.Buffer.Duration > 0 {
		Set(b, KeyIdentityBuffer, pf.Identity.Buffer.Duration)
	}
	return b.Freeze()
}
