package config

import (
	"fmt"
	"os"

	"github.com/UnendingLoop/CustomerDesk/internal/guard"
	"gopkg.in/yaml.v3"
)

type profilesFile struct {
	Profiles map[string]yaml.Node `yaml:"profiles"`
}

// LoadProfiles reads named compression profiles from a YAML file. Built-in
// profiles are overlaid by the file, unknown names start from struct defaults.
// An empty path yields the built-ins.
func LoadProfiles(path string) (guard.Profiles, error) {
	if path == "" {
		return guard.DefaultProfiles(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file: %w", err)
	}
	return ParseProfiles(data)
}

func ParseProfiles(data []byte) (guard.Profiles, error) {
	var file profilesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}

	res := guard.DefaultProfiles()
	for name, node := range file.Profiles {
		p, ok := res[name]
		if !ok {
			p = guard.NewProfile(name)
		}
		if err := node.Decode(&p); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		p.Name = name
		if err := p.Validate(); err != nil {
			return nil, err
		}
		res[name] = p
	}
	return res, nil
}
