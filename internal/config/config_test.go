// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable ApplyEnvOverrides reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"FIELDREF_DB_DRIVER", "FIELDREF_DB_DSN", "DATABASE_URL", "FIELDREF_DELETE_POLICY",
		"FIELDREF_WORK_DIR", "FIELDREF_MEDIA_DIR", "FIELDREF_OUTBOX_DIR", "FIELDREF_ALLOW_MARKUP",
		"FIELDREF_ADDR", "FIELDREF_ADMIN_TOKEN", "FIELDREF_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, 100, cfg.Storage.MaxTitleLength)
	assert.Equal(t, "reparent", cfg.Storage.DeletePolicy)
	assert.Equal(t, 2*time.Minute, cfg.Export.DeliveryTimeout())
	assert.Equal(t, time.Minute, cfg.Export.MinInterval())
}

func TestLoad_FileOverDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[storage]
delete_policy = "cascade"
max_title_length = 80

[export]
site_title = "Medic Guide"
burst = 3

[server]
addr = "127.0.0.1:9000"
allowed_origins = ["https://example.org"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cascade", cfg.Storage.DeletePolicy)
	assert.Equal(t, 80, cfg.Storage.MaxTitleLength)
	assert.Equal(t, 64, cfg.Storage.MaxButtonLength)
	assert.Equal(t, "Medic Guide", cfg.Export.SiteTitle)
	assert.Equal(t, 3, cfg.Export.Burst)
	assert.True(t, cfg.Export.AllowMarkup)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://example.org"}, cfg.Server.AllowedOrigins)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoad_UnknownKeys(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "[storage]\ndriverr = \"sqlite\"\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.driverr")
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
[storage]
driver = "oracle"
delete_policy = "orphan"

[log]
level = "loud"
`)
	_, err := Load(path)
	require.Error(t, err)

	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	fields := make([]string, len(verrs))
	for i, v := range verrs {
		fields[i] = v.Field
	}
	assert.ElementsMatch(t, []string{"storage.driver", "storage.delete_policy", "log.level"}, fields)
}

func TestLoad_FixesPermissions(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "")
	require.NoError(t, os.Chmod(path, 0644))

	_, err := Load(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FIELDREF_DELETE_POLICY", "cascade")
	t.Setenv("FIELDREF_ADMIN_TOKEN", "s3cret")
	t.Setenv("FIELDREF_ALLOW_MARKUP", "false")
	t.Setenv("FIELDREF_LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://fr:pw@db:5432/fieldref?sslmode=disable")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	assert.Equal(t, "cascade", cfg.Storage.DeletePolicy)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://fr:pw@db:5432/fieldref?sslmode=disable", cfg.Storage.DSN)
	assert.Equal(t, "s3cret", cfg.Server.AdminToken)
	assert.False(t, cfg.Export.AllowMarkup)
	assert.Equal(t, "debug", cfg.Log.Level)

	// An explicit DSN wins over DATABASE_URL
	t.Setenv("FIELDREF_DB_DSN", "/data/fr.db")
	t.Setenv("FIELDREF_DB_DRIVER", "sqlite")
	cfg = Default()
	cfg.ApplyEnvOverrides()
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/data/fr.db", cfg.Storage.DSN)
}

func TestLoadEnvFile(t *testing.T) {
	const key = "FIELDREF_TEST_ENVFILE"
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=:7000\n"), 0600))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, ":7000", os.Getenv(key))

	// Variables already present are not overridden
	t.Setenv(key, "kept")
	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "kept", os.Getenv(key))

	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Export.SiteTitle = "Saved"
	cfg.Storage.DeletePolicy = "cascade"
	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Saved", loaded.Export.SiteTitle)
	assert.Equal(t, "cascade", loaded.Storage.DeletePolicy)
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("export.burst", "4"))
	v, err := cfg.Get("export.burst")
	require.NoError(t, err)
	assert.Equal(t, 4, v)

	require.NoError(t, cfg.Set("export.allow_markup", "no"))
	assert.False(t, cfg.Export.AllowMarkup)

	require.NoError(t, cfg.Set("server.allowed_origins", "https://a.org, https://b.org"))
	assert.Equal(t, []string{"https://a.org", "https://b.org"}, cfg.Server.AllowedOrigins)

	require.NoError(t, cfg.Set("storage.max_title_length", 120))
	assert.Equal(t, 120, cfg.Storage.MaxTitleLength)

	assert.Error(t, cfg.Set("export.burst", "many"))
	assert.Error(t, cfg.Set("export.nope", "1"))
	assert.Error(t, cfg.Set("log.level.deep", "x"))
	_, err = cfg.Get("")
	assert.Error(t, err)

	for _, key := range GetAllKeys() {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}
}

func TestString_RedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.Server.AdminToken = "s3cret"
	cfg.Storage.Driver = "postgres"
	cfg.Storage.DSN = "postgres://fr:hunter2@db/fieldref"

	out := cfg.String()
	assert.NotContains(t, out, "s3cret")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "[REDACTED]")

	// Original untouched
	assert.Equal(t, "s3cret", cfg.Server.AdminToken)
}

func TestClone_Independent(t *testing.T) {
	cfg := Default()
	clone := cfg.Clone()
	clone.Server.AllowedOrigins[0] = "https://changed.org"
	assert.Equal(t, "*", cfg.Server.AllowedOrigins[0])
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "[export]\nsite_title = \"One\"\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	require.NoError(t, Watch(ctx, path, zerolog.Nop(), func(c *Config) { changes <- c }))

	cfg := Default()
	cfg.Export.SiteTitle = "Two"
	require.NoError(t, Save(cfg, path))

	select {
	case got := <-changes:
		assert.Equal(t, "Two", got.Export.SiteTitle)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after config change")
	}
}
