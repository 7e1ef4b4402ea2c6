package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sakenfor/pixsim7-sub008/internal/errors"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "services.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `
[services.backend]
title = "API Backend"
program = "python"
args = ["-m", "uvicorn", "app:app"]
url = "http://localhost:8000"
health_url = "http://localhost:8000/health"
depends_on = ["db"]

[services.db]
kind = "detached"
compose_file = "docker-compose.yml"
compose_service = "postgres"
url = "tcp://localhost:5432"
`)

	defs, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, defs, 2)

	// Dependencies sort first.
	assert.Equal(t, "db", defs[0].Key)
	assert.Equal(t, "backend", defs[1].Key)

	backend := defs[1]
	assert.Equal(t, "API Backend", backend.Title)
	assert.Equal(t, KindManaged, backend.Kind)
	assert.Equal(t, "python", backend.Program)
	assert.Equal(t, []string{"-m", "uvicorn", "app:app"}, backend.Args)
	assert.Equal(t, "http://localhost:8000/health", backend.HealthURL)

	db := defs[0]
	assert.True(t, db.IsDetached())
	assert.Equal(t, "postgres", db.ComposeService)
}

func TestLoadManifestNotFound(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	var launcherErr *errors.LauncherError
	require.ErrorAs(t, err, &launcherErr)
	assert.Equal(t, errors.ErrConfigNotFound, launcherErr.Code)
}

func TestLoadManifestParseError(t *testing.T) {
	path := writeManifest(t, "[services.backend\nprogram =")

	_, err := LoadManifest(path)
	require.Error(t, err)

	var launcherErr *errors.LauncherError
	require.ErrorAs(t, err, &launcherErr)
	assert.Equal(t, errors.ErrConfigParse, launcherErr.Code)
}

func TestBuildDefinitionsMissingProgram(t *testing.T) {
	_, err := BuildDefinitions(map[string]*ServiceDefinition{
		"backend": {Title: "Backend"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "require a program")
}

func TestBuildDefinitionsUnknownKind(t *testing.T) {
	_, err := BuildDefinitions(map[string]*ServiceDefinition{
		"backend": {Program: "python", Kind: "sidecar"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestBuildDefinitionsUnknownDependency(t *testing.T) {
	_, err := BuildDefinitions(map[string]*ServiceDefinition{
		"backend": {Program: "python", DependsOn: []string{"nowhere"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dependency")
}

func TestBuildDefinitionsDependencyOrder(t *testing.T) {
	defs, err := BuildDefinitions(map[string]*ServiceDefinition{
		"frontend": {Program: "node", DependsOn: []string{"backend"}},
		"backend":  {Program: "python", DependsOn: []string{"db", "cache"}},
		"db":       {Program: "postgres"},
		"cache":    {Program: "redis"},
	})
	require.NoError(t, err)

	position := make(map[string]int, len(defs))
	for i, def := range defs {
		position[def.Key] = i
	}
	assert.Less(t, position["db"], position["backend"])
	assert.Less(t, position["cache"], position["backend"])
	assert.Less(t, position["backend"], position["frontend"])
}

func TestBuildDefinitionsCycle(t *testing.T) {
	_, err := BuildDefinitions(map[string]*ServiceDefinition{
		"a": {Program: "a", DependsOn: []string{"b"}},
		"b": {Program: "b", DependsOn: []string{"a"}},
	})
	require.Error(t, err)

	var launcherErr *errors.LauncherError
	require.ErrorAs(t, err, &launcherErr)
	assert.Equal(t, errors.ErrDependencyCycle, launcherErr.Code)
}

func TestDisplayName(t *testing.T) {
	def := &ServiceDefinition{Key: "backend"}
	assert.Equal(t, "backend", def.DisplayName())

	def.Title = "API Backend"
	assert.Equal(t, "API Backend", def.DisplayName())
}

func TestDefaultConfigs(t *testing.T) {
	pm := DefaultProcessManagerConfig(t.TempDir())
	assert.Equal(t, 3, pm.KillRetryAttempts)
	assert.True(t, pm.UnixUseProcessGroups)

	hm := DefaultHealthManagerConfig()
	assert.Equal(t, 5, hm.FailureThreshold)
	assert.True(t, hm.AdaptiveEnabled)

	lm := DefaultLogManagerConfig(t.TempDir())
	assert.Equal(t, 5000, lm.MaxLogLines)
	assert.True(t, lm.MonitorEnabled)
}
