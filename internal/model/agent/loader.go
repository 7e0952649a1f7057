package agent

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads a profile from a TOML file. An empty path yields the built-in
// profile; fields missing from the file keep their built-in values.
func Load(path string) (Profile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}

	var profile Profile
	meta, err := toml.DecodeFile(path, &profile)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to decode agent profile %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Profile{}, fmt.Errorf("unknown keys in agent profile %s: %v", path, undecoded)
	}

	return profile.withDefaults(), nil
}

// Parse decodes a profile from TOML text.
func Parse(data string) (Profile, error) {
	var profile Profile
	if _, err := toml.Decode(data, &profile); err != nil {
		return Profile{}, fmt.Errorf("failed to decode agent profile: %w", err)
	}
	return profile.withDefaults(), nil
}
