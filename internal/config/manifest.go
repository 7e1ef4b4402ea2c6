package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/pelletier/go-toml/v2"

	"github.com/Sakenfor/pixsim7-sub008/internal/errors"
)

// Manifest is the on-disk services.toml document.
type Manifest struct {
	Services map[string]*ServiceDefinition `toml:"services"`
}

// LoadManifest reads and validates a services manifest, returning the
// definitions in dependency order.
func LoadManifest(path string) ([]*ServiceDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewWithDetails(errors.ErrConfigNotFound,
				"Services manifest not found", fmt.Sprintf("Path: %s", path))
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, "Failed to parse services manifest", err)
	}

	return BuildDefinitions(manifest.Services)
}

// BuildDefinitions validates a key→definition map and returns the
// definitions sorted by dependencies (dependencies first).
func BuildDefinitions(services map[string]*ServiceDefinition) ([]*ServiceDefinition, error) {
	defs := make([]*ServiceDefinition, 0, len(services))
	for key, def := range services {
		if def == nil {
			def = &ServiceDefinition{}
		}
		def.Key = key
		if def.Kind == "" {
			def.Kind = KindManaged
		}
		if err := validateDefinition(def); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	// Deterministic input order before the topological pass
	sort.Slice(defs, func(i, j int) bool { return defs[i].Key < defs[j].Key })

	byKey := make(map[string]*ServiceDefinition, len(defs))
	for _, def := range defs {
		byKey[def.Key] = def
	}
	for _, def := range defs {
		for _, dep := range def.DependsOn {
			if _, ok := byKey[dep]; !ok {
				return nil, errors.ConfigValidationError(
					fmt.Sprintf("services.%s.depends_on", def.Key),
					fmt.Sprintf("unknown dependency %q", dep))
			}
		}
	}

	return sortByDependencies(defs, byKey)
}

func validateDefinition(def *ServiceDefinition) error {
	switch def.Kind {
	case KindManaged:
		if def.Program == "" {
			return errors.ConfigValidationError(
				fmt.Sprintf("services.%s.program", def.Key),
				"managed services require a program")
		}
	case KindDetached:
		// Detached services need either a compose binding or a custom
		// lifecycle attached later by the composition root.
	default:
		return errors.ConfigValidationError(
			fmt.Sprintf("services.%s.kind", def.Key),
			fmt.Sprintf("unknown kind %q", def.Kind))
	}
	return nil
}

// sortByDependencies orders definitions so every service appears after its
// dependencies. A cycle is a configuration error.
func sortByDependencies(defs []*ServiceDefinition, byKey map[string]*ServiceDefinition) ([]*ServiceDefinition, error) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)

	marks := make(map[string]int, len(defs))
	ordered := make([]*ServiceDefinition, 0, len(defs))

	var visit func(def *ServiceDefinition) error
	visit = func(def *ServiceDefinition) error {
		switch marks[def.Key] {
		case done:
			return nil
		case visiting:
			return errors.NewWithDetails(errors.ErrDependencyCycle,
				"Service dependency cycle", fmt.Sprintf("Service: %s", def.Key))
		}
		marks[def.Key] = visiting
		for _, dep := range def.DependsOn {
			if err := visit(byKey[dep]); err != nil {
				return err
			}
		}
		marks[def.Key] = done
		ordered = append(ordered, def)
		return nil
	}

	for _, def := range defs {
		if err := visit(def); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
