package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandWiring(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "pixsim-launcher", root.Use)

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["status"])
	assert.True(t, names["logs"])
	assert.True(t, names["service"])
	assert.True(t, names["config"])
}

func TestServiceSubcommands(t *testing.T) {
	root := NewRootCommand()
	service, _, err := root.Find([]string{"service"})
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, sub := range service.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["start"])
	assert.True(t, names["stop"])
	assert.True(t, names["restart"])
}

func TestLogsCommandRequiresServiceArg(t *testing.T) {
	root := NewRootCommand()
	root.SetArgs([]string{"logs"})
	assert.Error(t, root.Execute())
}
