package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestCredentialsFromEnv(t *testing.T) {
	creds, err := CredentialsFromEnv(envMap(map[string]string{
		EnvUsername: "12345678Z",
		EnvPassword: "secret",
	}))
	require.NoError(t, err)
	assert.Equal(t, "12345678Z", creds.Username)
	assert.Equal(t, "secret", creds.Password)
}

func TestCredentialsFromEnv_Missing(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantVar string
	}{
		{"nothing set", map[string]string{}, EnvUsername},
		{"no password", map[string]string{EnvUsername: "u"}, EnvPassword},
		{"no username", map[string]string{EnvPassword: "p"}, EnvUsername},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CredentialsFromEnv(envMap(tt.env))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingCredential)
			assert.Contains(t, err.Error(), tt.wantVar)
		})
	}
}

func TestCredentialsString_HidesPassword(t *testing.T) {
	c := Credentials{Username: "user", Password: "hunter2"}
	assert.NotContains(t, c.String(), "hunter2")
	assert.Contains(t, c.String(), "user")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TRIODOS_TEST_ONLY_VAR=from-file\n"), 0o644))
	t.Setenv("TRIODOS_TEST_ONLY_VAR", "")
	require.NoError(t, os.Unsetenv("TRIODOS_TEST_ONLY_VAR"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("TRIODOS_TEST_ONLY_VAR"))
}

func TestLoadEnvFile_MissingIsIgnored(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "absent.env")))
	assert.NoError(t, LoadEnvFile(""))
}
