// Package compose supports detached services backed by a docker-compose
// stack: a minimal compose file parser plus a Lifecycle implementation that
// shells out to `docker compose`.
package compose

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File represents the subset of a docker-compose.yaml the launcher needs.
type File struct {
	Version  string              `yaml:"version"`
	Services map[string]*Service `yaml:"services"`
}

// Service represents a service entry in a compose file.
type Service struct {
	Image         string        `yaml:"image"`
	ContainerName string        `yaml:"container_name"`
	Ports         []string      `yaml:"ports"`
	DependsOn     StringOrSlice `yaml:"depends_on"`
}

// StringOrSlice accepts both a scalar and a sequence in YAML.
type StringOrSlice []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringOrSlice) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*s = []string{single}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*s = many
		return nil
	case yaml.MappingNode:
		// depends_on long form: service -> {condition: ...}
		keys := make([]string, 0, len(value.Content)/2)
		for i := 0; i < len(value.Content); i += 2 {
			keys = append(keys, value.Content[i].Value)
		}
		*s = keys
		return nil
	default:
		return fmt.Errorf("unexpected YAML node kind %d", value.Kind)
	}
}

// ParseFile reads and parses a compose file.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read compose file: %w", err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse compose file: %w", err)
	}
	return &file, nil
}

// HasService reports whether the compose file declares a service.
func (f *File) HasService(name string) bool {
	_, ok := f.Services[name]
	return ok
}
