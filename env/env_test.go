package env

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type smtpConfig struct {
	Host    string        `envconfig:"TEST_SMTP_HOST" default:"localhost"`
	Port    int           `envconfig:"TEST_SMTP_PORT" default:"0"`
	Timeout time.Duration `envconfig:"TEST_SMTP_TIMEOUT" default:"30s"`
}

type pagerConfig struct {
	Command string `envconfig:"TEST_PAGER" default:"less"`
}

type requiredConfig struct {
	Host string `envconfig:"TEST_REQUIRED_HOST" required:"true"`
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(oldWd) })
}

func TestInitConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	var smtp smtpConfig
	var pager pagerConfig
	require.NoError(t, InitConfig(&smtp, &pager))

	assert.Equal(t, "localhost", smtp.Host)
	assert.Equal(t, 0, smtp.Port)
	assert.Equal(t, 30*time.Second, smtp.Timeout)
	assert.Equal(t, "less", pager.Command)
}

func TestInitConfig_FromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TEST_SMTP_HOST", "smtp.example.com")
	t.Setenv("TEST_SMTP_PORT", "2525")
	t.Setenv("TEST_PAGER", "more")

	var smtp smtpConfig
	var pager pagerConfig
	require.NoError(t, InitConfig(&smtp, &pager))

	assert.Equal(t, "smtp.example.com", smtp.Host)
	assert.Equal(t, 2525, smtp.Port)
	assert.Equal(t, "more", pager.Command)
}

func TestInitConfig_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	content := "TEST_SMTP_HOST=fromdotenv\nTEST_SMTP_PORT=7000\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))
	chdir(t, dir)

	t.Setenv("TEST_SMTP_HOST", "override")
	// godotenv sets TEST_SMTP_PORT for the rest of the process.
	t.Setenv("TEST_SMTP_PORT", "")
	require.NoError(t, os.Unsetenv("TEST_SMTP_PORT"))

	var smtp smtpConfig
	require.NoError(t, InitConfig(&smtp))

	assert.Equal(t, "override", smtp.Host)
	assert.Equal(t, 7000, smtp.Port)
}

func TestInitConfig_MissingRequired(t *testing.T) {
	chdir(t, t.TempDir())

	var cfg requiredConfig
	err := InitConfig(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to envconfig.Process")
}

func TestInitConfig_InvalidValue(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("TEST_SMTP_PORT", "invalid")

	var smtp smtpConfig
	err := InitConfig(&smtp)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to envconfig.Process")
}

func TestLoadFiles_SkipsMissing(t *testing.T) {
	dir := t.TempDir()

	assert.NoError(t, LoadFiles(filepath.Join(dir, "absent.env")))
}

func TestLoadFiles_Malformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.env")
	require.NoError(t, os.WriteFile(path, []byte("NOT VALID LINE WITHOUT EQUALS'\n"), 0o600))

	err := LoadFiles(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.env")
}
