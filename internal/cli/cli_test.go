package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	config, shouldExit, err := Parse([]string{"monoxbridge.hcl"}, out)

	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, "monoxbridge.hcl", config.ConfigPath)
	assert.Equal(t, "json", config.LogFormat)
	assert.Equal(t, "info", config.LogLevel)
	assert.Equal(t, 0, config.HealthcheckPort)
	assert.False(t, config.Once)
	assert.Empty(t, config.DiscoverCIDR)
}

func TestParse_AllFlags(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	config, shouldExit, err := Parse([]string{
		"-config", "/etc/monoxbridge",
		"-healthcheck-port", "8080",
		"-log-format", "text",
		"-log-level", "debug",
		"-once",
	}, out)

	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, "/etc/monoxbridge", config.ConfigPath)
	assert.Equal(t, 8080, config.HealthcheckPort)
	assert.Equal(t, "text", config.LogFormat)
	assert.Equal(t, "debug", config.LogLevel)
	assert.True(t, config.Once)
}

func TestParse_ShorthandConfig(t *testing.T) {
	t.Parallel()

	config, shouldExit, err := Parse([]string{"-c", "bridge.hcl"}, &bytes.Buffer{})

	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, "bridge.hcl", config.ConfigPath)
}

func TestParse_DiscoverNeedsNoConfig(t *testing.T) {
	t.Parallel()

	config, shouldExit, err := Parse([]string{"-discover", "192.168.1.0/24"}, &bytes.Buffer{})

	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, "192.168.1.0/24", config.DiscoverCIDR)
	assert.Empty(t, config.ConfigPath)
}

func TestParse_NoArgsPrintsUsage(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	config, shouldExit, err := Parse(nil, out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, config)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_Validation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"bad log format", []string{"-log-format", "xml", "bridge.hcl"}, "invalid log-format"},
		{"bad log level", []string{"-log-level", "verbose", "bridge.hcl"}, "invalid log-level"},
		{"negative port", []string{"-healthcheck-port", "-1", "bridge.hcl"}, "invalid healthcheck-port"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Parse(tc.args, &bytes.Buffer{})
			require.Error(t, err)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.want)
		})
	}
}

func TestParse_UnknownFlag(t *testing.T) {
	t.Parallel()

	_, _, err := Parse([]string{"--no-such-flag"}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flag provided but not defined")
}
