package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libropolis/lending-library-go/config"
)

// chdir changes the working directory for the duration of the test,
// standing in for t.Chdir which requires Go 1.24.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func Test_Load_UsesDefaultsWithoutFileAndEnv(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "City Library", cfg.Library.Name)
	assert.Equal(t, 5, cfg.Library.MaxBooksPerUser)
	assert.Equal(t, 720*time.Hour, cfg.Library.LoanPeriod)
	assert.Equal(t, "memory", cfg.Store.Engine)
	assert.Equal(t, 50*time.Millisecond, cfg.Store.BaseLatency)
	assert.Equal(t, 50, cfg.Events.Capacity)
	assert.Equal(t, 6, cfg.Retry.MaxAttempts)
}

func Test_Load_EnvironmentOverridesDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LIBRARY_MAX_BOOKS_PER_USER", "3")
	t.Setenv("STORE_BASE_LATENCY", "5ms")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Library.MaxBooksPerUser)
	assert.Equal(t, 5*time.Millisecond, cfg.Store.BaseLatency)
}

func Test_Load_ReadsYAMLFileAndEnvWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "library:\n  name: Branch Library\n  max_books_per_user: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("LIBRARY_MAX_BOOKS_PER_USER", "7")

	cfg, err := config.Load()

	require.NoError(t, err)
	assert.Equal(t, "Branch Library", cfg.Library.Name)
	assert.Equal(t, 7, cfg.Library.MaxBooksPerUser, "environment overrides the file")
}

func Test_Load_FailsForExplicitlyConfiguredMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := config.Load()

	assert.Error(t, err)
}

func Test_Load_FailsValidationForInvalidValues(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LIBRARY_MAX_BOOKS_PER_USER", "0")

	_, err := config.Load()

	assert.ErrorContains(t, err, "max_books_per_user")
}

func Test_Load_FailsValidationForPostgresWithoutDSN(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORE_ENGINE", "postgres")

	_, err := config.Load()

	assert.ErrorContains(t, err, "dsn")
}
