package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfoliotree/app/src/pkg/model"
)

func TestConfigLoad_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "config.json")

	require.NoError(t, ConfigLoad(path))

	cfg := ConfigGet()
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, 30, cfg.SessionTimeoutMinutes)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestConfigLoad_JSONKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"http_addr":":9999","upload_max_bytes":1024}`), 0600))

	require.NoError(t, ConfigLoad(path))

	cfg := ConfigGet()
	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, int64(1024), cfg.UploadMaxBytes)
	assert.Equal(t, "portfoliotree.db", cfg.DatabaseFile)
}

func TestConfigLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
database_type = "sqlite-native"
session_secret = "0123456789abcdef"
allowed_origins = ["https://example.org"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	require.NoError(t, ConfigLoad(path))

	cfg := ConfigGet()
	assert.Equal(t, "sqlite-native", cfg.DatabaseType)
	assert.Equal(t, []string{"https://example.org"}, cfg.AllowedOrigins)
	assert.NoError(t, ValidateServe(cfg))
}

func TestConfigLoad_RejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"upload_backend":"ftp"}`), 0600))

	err := ConfigLoad(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported upload backend")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"PORTFOLIOTREE_HTTP_ADDR":               ":7000",
		"PORTFOLIOTREE_ALLOWED_ORIGINS":         "https://a.test,https://b.test",
		"PORTFOLIOTREE_SESSION_TIMEOUT_MINUTES": "5",
		"PORTFOLIOTREE_UPLOAD_BACKEND":          model.UploadBackendS3,
	}

	applyEnv(cfg, func(k string) string { return env[k] })

	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, 5, cfg.SessionTimeoutMinutes)
	assert.Equal(t, model.UploadBackendS3, cfg.UploadBackend)
}

func TestValidateServe_ShortSecret(t *testing.T) {
	cfg := Default()
	cfg.SessionSecret = "short"
	assert.Error(t, ValidateServe(cfg))
}
