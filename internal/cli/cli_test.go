package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCLI(t *testing.T) {
	InitCLI()
	assert.True(t, IsCLIInitialized())

	// Idempotent
	InitCLI()
	assert.True(t, IsCLIInitialized())
}

func TestRootCommandHasSubcommands(t *testing.T) {
	InitCLI()

	names := make(map[string]bool)
	for _, cmd := range RootCmd.Commands() {
		names[cmd.Name()] = true
	}

	assert.True(t, names["serve"], "serve command should be registered")
	assert.True(t, names["credentials"], "credentials command should be registered")
	assert.True(t, names["version"], "version command should be registered")
}

func TestExecuteVersion(t *testing.T) {
	InitCLI()
	require.NoError(t, Execute([]string{"version"}))
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "****", maskToken("short"))
	assert.Equal(t, "abcd...wxyz", maskToken("abcdefghijklmnopqrstuvwxyz"))
}

func TestVersionInfo(t *testing.T) {
	info := GetVersionInfo()
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}
