package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"username":"worker@example.com","password":"hunter2"}`), 0600))

	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, "worker@example.com", creds.Username)
	assert.Equal(t, "hunter2", creds.Password)
}

func TestLoadCredentials_MissingFieldsStayEmpty(t *testing.T) {
	// Malformed credential files are not rejected here; empty fields flow
	// through to the login step and fail at the portal instead.
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"username":"worker@example.com"}`), 0600))

	creds, err := LoadCredentials(path)
	require.NoError(t, err)
	assert.Equal(t, "worker@example.com", creds.Username)
	assert.Empty(t, creds.Password)
}

func TestLoadCredentials_MissingFile(t *testing.T) {
	_, err := LoadCredentials(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadCredentials_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"username":`), 0600))

	_, err := LoadCredentials(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse credentials file")
}
