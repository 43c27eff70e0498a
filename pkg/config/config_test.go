package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/bulk-mapper/pkg/endpoint"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_Missing(t *testing.T) {
	f, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, &File{}, f)

	f, err = LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, &File{}, f)
}

func TestLoadFile_Parses(t *testing.T) {
	path := writeFile(t, "bulkmapper.yaml", `
endpoint: merchant
key: secret
num_threads: 6
num_retries: 0
timeout: 12s
cleanup: false
companies_only: true
hint: retail
journal: runs.db
cron: "@daily"
`)

	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, endpoint.Merchant, f.Endpoint)
	assert.Equal(t, "secret", f.Key)
	assert.Equal(t, 6, f.NumThreads)
	require.NotNil(t, f.NumRetries)
	assert.Equal(t, 0, *f.NumRetries)
	assert.Equal(t, 12*time.Second, f.Timeout)
	require.NotNil(t, f.Cleanup)
	assert.False(t, *f.Cleanup)
	assert.True(t, f.CompaniesOnly)
	assert.Equal(t, "@daily", f.Cron)
}

func TestLoadFile_RejectsOutdatedEndpoint(t *testing.T) {
	path := writeFile(t, "bulkmapper.yaml", "endpoint: merchants\n")

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outdated")
}

func TestLoadFile_Malformed(t *testing.T) {
	path := writeFile(t, "bulkmapper.yaml", "num_threads: [1, 2\n")

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestApply_KeepsDefaultsForUnsetFields(t *testing.T) {
	s := Default()
	(&File{Hint: "auto"}).Apply(&s)

	assert.Equal(t, endpoint.Domain, s.Mapper.Endpoint)
	assert.Equal(t, 4, s.Mapper.NumThreads)
	assert.Equal(t, 7, s.Mapper.NumRetries)
	assert.Equal(t, 30*time.Second, s.Mapper.Timeout)
	assert.True(t, s.Mapper.Cleanup)
	assert.Equal(t, "auto", s.Hint)
	assert.Equal(t, "info", s.LogLevel)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvKey:     " env-key ",
		EnvBaseURL: "http://localhost:9999",
		EnvJournal: "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	s := Default()
	s.Journal = "from-file.db"
	ApplyEnv(&s, lookup)

	assert.Equal(t, "env-key", s.Mapper.Key)
	assert.Equal(t, "http://localhost:9999", s.Mapper.BaseURL)
	assert.Equal(t, "from-file.db", s.Journal)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "bulkmapper.yaml", "key: file-key\nendpoint: product\n")
	t.Setenv(EnvKey, "env-key")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", s.Mapper.Key)
	assert.Equal(t, endpoint.Product, s.Mapper.Endpoint)
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "ADG_API_URL=http://dotenv.local\n")
	t.Setenv(EnvBaseURL, "")
	require.NoError(t, os.Unsetenv(EnvBaseURL))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "http://dotenv.local", os.Getenv(EnvBaseURL))
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	path := writeFile(t, ".env", "ADG_API_KEY=from-dotenv\n")
	t.Setenv(EnvKey, "already-set")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "already-set", os.Getenv(EnvKey))
}
