// ABOUTME: Tests for coven-relay argument parsing and env file loading
// ABOUTME: Covers command selection, flag defaults and non-overriding dotenv loads

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs(t *testing.T) {
	t.Setenv("COVEN_RELAY_CONFIG", "/etc/coven/relay.toml")

	tests := []struct {
		name    string
		args    []string
		want    options
		wantErr bool
	}{
		{
			name: "defaults",
			args: nil,
			want: options{configPath: "/etc/coven/relay.toml", envFile: ".env"},
		},
		{
			name: "explicit run",
			args: []string{"run"},
			want: options{command: "run", configPath: "/etc/coven/relay.toml", envFile: ".env"},
		},
		{
			name: "init with short config flag",
			args: []string{"-c", "relay.yaml", "init"},
			want: options{command: "init", configPath: "relay.yaml", envFile: ".env"},
		},
		{
			name: "env file and version",
			args: []string{"--env-file", "prod.env", "--version"},
			want: options{configPath: "/etc/coven/relay.toml", envFile: "prod.env", showVersion: true},
		},
		{
			name:    "extra arguments",
			args:    []string{"run", "now"},
			wantErr: true,
		},
		{
			name:    "unknown flag",
			args:    []string{"--bogus"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseArgs_Help(t *testing.T) {
	_, err := parseArgs([]string{"--help"})
	assert.ErrorIs(t, err, pflag.ErrHelp)
}

func TestRun_VersionAndUnknownCommand(t *testing.T) {
	assert.NoError(t, run(context.Background(), []string{"--version"}))
	assert.NoError(t, run(context.Background(), []string{"--help"}))

	err := run(context.Background(), []string{"serve"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "serve"`)
}

func TestLoadEnvFile_MissingFile(t *testing.T) {
	loaded, err := loadEnvFile(filepath.Join(t.TempDir(), ".env"))

	assert.NoError(t, err)
	assert.False(t, loaded)
}

func TestLoadEnvFile_EmptyPath(t *testing.T) {
	loaded, err := loadEnvFile("")

	assert.NoError(t, err)
	assert.False(t, loaded)
}

func TestLoadEnvFile_DoesNotOverrideEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RELAY_TEST_PRESET=from-file\nRELAY_TEST_FRESH=from-file\n"), 0600))

	t.Setenv("RELAY_TEST_PRESET", "from-env")
	require.NoError(t, os.Unsetenv("RELAY_TEST_FRESH"))
	t.Cleanup(func() { os.Unsetenv("RELAY_TEST_FRESH") })

	loaded, err := loadEnvFile(path)

	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "from-env", os.Getenv("RELAY_TEST_PRESET"))
	assert.Equal(t, "from-file", os.Getenv("RELAY_TEST_FRESH"))
}

func TestLoadEnvFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RELAY_TEST_BAD='unterminated\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("RELAY_TEST_BAD") })

	_, err := loadEnvFile(path)

	assert.Error(t, err)
}
