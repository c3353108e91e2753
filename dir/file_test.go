package dir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authorities.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAuthoritiesFile(t *testing.T) {
	path := writeTempFile(t, `authorities:
  - name: local1
    fingerprint: "0000000000000000000000000000000000000001"
    address: 127.0.0.1:7000
  - name: local2
    fingerprint: "0000000000000000000000000000000000000002"
    address: 127.0.0.1:7001
`)

	authorities, err := LoadAuthoritiesFile(path)
	require.NoError(t, err)
	require.Len(t, authorities, 2)
	assert.Equal(t, "local1", authorities[0].Name)
	assert.Equal(t, "127.0.0.1:7000", authorities[0].Address)
	assert.Equal(t, "http://127.0.0.1:7001", authorities[1].URL())
}

func TestLoadAuthoritiesFileEmpty(t *testing.T) {
	path := writeTempFile(t, "authorities: []\n")

	_, err := LoadAuthoritiesFile(path)
	assert.Equal(t, ErrNoAuthorities, errors.Cause(err))
}

func TestLoadAuthoritiesFileMalformed(t *testing.T) {
	path := writeTempFile(t, "not: [valid: yaml")

	_, err := LoadAuthoritiesFile(path)
	assert.Error(t, err)
}

func TestLoadAuthoritiesFileMissing(t *testing.T) {
	_, err := LoadAuthoritiesFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
