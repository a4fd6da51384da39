package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultUsesPlatformValues(t *testing.T) {
	cfg := Default()

	if runtime.GOOS == "windows" {
		assert.Equal(t, "jasperstarter.bat", cfg.Reports.StarterPath)
		assert.Equal(t, 45*time.Second, cfg.Reports.Timeout)
	} else {
		assert.Equal(t, "jasperstarter", cfg.Reports.StarterPath)
		assert.Equal(t, 30*time.Second, cfg.Reports.Timeout)
	}
	assert.Equal(t, 5*time.Minute, cfg.Reports.CleanupInterval)
	assert.Equal(t, 10*time.Minute, cfg.Reports.MaxAge)
	assert.Equal(t, 5*time.Second, cfg.Reports.DeleteDelay)
	assert.True(t, cfg.Reports.CompanyDatabase)
	assert.Equal(t, "mysql", cfg.Database.Type)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "8088")
	t.Setenv("JASPER_STARTER_PATH", "/opt/jasperstarter/bin/jasperstarter")
	t.Setenv("REPORTS_TIMEOUT", "12s")
	t.Setenv("REPORTS_CLEANUP_INTERVAL", "300000")
	t.Setenv("REPORTS_STRICT_STDERR", "true")
	t.Setenv("REPORTS_COMPANY_DATABASE", "false")
	t.Setenv("DB_TYPE", "Postgres")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_PASSWORD", "secret")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "/opt/jasperstarter/bin/jasperstarter", cfg.Reports.StarterPath)
	assert.Equal(t, 12*time.Second, cfg.Reports.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Reports.CleanupInterval)
	assert.True(t, cfg.Reports.StrictStderr)
	assert.False(t, cfg.Reports.CompanyDatabase)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "secret", cfg.Database.Password)
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	t.Setenv("REPORTS_MAX_AGE", "ten minutes")

	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":{"port":9090},"reports":{"company_template":"empresa"}}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "empresa", cfg.Reports.CompanyTemplate)
	assert.Equal(t, "/api/v1", cfg.Server.APIPrefix)
}

func TestValidateCreatesDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Reports.TemplateDir = filepath.Join(root, "reports")
	cfg.Reports.TempDir = filepath.Join(root, "temp")

	require.NoError(t, cfg.Validate())

	for _, dir := range []string{cfg.Reports.TemplateDir, cfg.Reports.TempDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	entries, err := os.ReadDir(cfg.Reports.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "write check file must be removed")
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unsupported database", func(c *Config) { c.Database.Type = "oracle" }},
		{"zero timeout", func(c *Config) { c.Reports.Timeout = 0 }},
		{"empty engine path", func(c *Config) { c.Reports.StarterPath = " " }},
		{"negative concurrency", func(c *Config) { c.Reports.MaxConcurrent = -1 }},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Reports.TemplateDir = t.TempDir()
			cfg.Reports.TempDir = t.TempDir()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{Type: "mysql", Host: "db", Port: 3306, DBName: "siete_bd", User: "root", Password: "pw"}
	assert.Equal(t, "root:pw@tcp(db:3306)/siete_bd?parseTime=true", db.GetDSN())

	db.Type = "postgres"
	db.Port = 5432
	assert.Equal(t, "postgres://root:pw@db:5432/siete_bd?sslmode=disable", db.GetDSN())
}
