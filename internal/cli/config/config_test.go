package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/ormmeta/internal/orm/metadata"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(oldWd) })
}

func TestLoad(t *testing.T) {
	// No config file: defaults apply
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "model.yml", cfg.ModelFile)
	assert.False(t, cfg.NoColor)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, metadata.Snapshot, cfg.ChangeTrackingStrategy())
	assert.Equal(t, metadata.AccessModeDefault, cfg.PropertyAccessMode())
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, "localhost:8080", cfg.Serve.Addr)
	assert.Empty(t, cfg.Serve.JWTSecret)
	assert.Empty(t, cfg.Registry.URL)
}

func TestLoadWithConfigFile(t *testing.T) {
	chdir(t, t.TempDir())

	configContent := `
model_file: schema/shop.yml
no_color: true
model:
  change_tracking: changed_notifications
  access_mode: field
database:
  url: postgres://localhost/shop
`
	require.NoError(t, os.WriteFile("ormmeta.yml", []byte(configContent), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "schema/shop.yml", cfg.ModelFile)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, metadata.ChangedNotifications, cfg.ChangeTrackingStrategy())
	assert.Equal(t, metadata.AccessModeField, cfg.PropertyAccessMode())
	assert.Equal(t, "postgres://localhost/shop", cfg.Database.URL)
}

func TestLoadExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model_file: other.yml\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "other.yml", cfg.ModelFile)
	assert.Equal(t, filepath.Join(dir, "other.yml"), cfg.ResolveModelFile(dir))

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile("ormmeta.yml", []byte("model_file: file.yml\n"), 0644))

	t.Setenv("ORMMETA_MODEL_FILE", "env.yml")
	t.Setenv("ORMMETA_MODEL_ACCESS_MODE", "property")
	t.Setenv("ORMMETA_VERBOSE", "true")
	t.Setenv("ORMMETA_SERVE_JWT_SECRET", "s3cret")
	t.Setenv("ORMMETA_REGISTRY_URL", "redis://cache:6379/2")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env.yml", cfg.ModelFile)
	assert.Equal(t, metadata.AccessModeProperty, cfg.PropertyAccessMode())
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "s3cret", cfg.Serve.JWTSecret)
	assert.Equal(t, "redis://cache:6379/2", cfg.Registry.URL)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unknown change tracking",
			content: "model:\n  change_tracking: eager\n",
			wantErr: "model.change_tracking: unknown change tracking strategy: eager",
		},
		{
			name:    "unknown access mode",
			content: "model:\n  access_mode: reflection\n",
			wantErr: "model.access_mode: unknown property access mode: reflection",
		},
		{
			name:    "empty model file",
			content: "model_file: \"\"\n",
			wantErr: "model_file must not be empty",
		},
		{
			name:    "malformed yaml",
			content: "model: [\n",
			wantErr: "failed to read config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			require.NoError(t, os.WriteFile("ormmeta.yml", []byte(tt.content), 0644))

			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseURL(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{URL: "postgres://config/db"}}

	t.Setenv("DATABASE_URL", "")
	assert.Equal(t, "postgres://config/db", cfg.DatabaseURL())

	t.Setenv("DATABASE_URL", "postgres://env/db")
	assert.Equal(t, "postgres://env/db", cfg.DatabaseURL())
}

func TestResolveModelFile(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "model.yml")
	assert.Equal(t, abs, (&Config{ModelFile: abs}).ResolveModelFile("/etc"))
	assert.Equal(t, "model.yml", (&Config{ModelFile: "model.yml"}).ResolveModelFile(""))
	assert.Equal(t, filepath.Join("conf", "model.yml"), (&Config{ModelFile: "model.yml"}).ResolveModelFile("conf"))
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ormmeta.yml")
	cfg := &Config{
		ModelFile: "schema/shop.yml",
		Model:     ModelConfig{ChangeTracking: "changed_notifications", AccessMode: "field"},
	}

	require.NoError(t, Save(path, cfg, false))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "model_file: schema/shop.yml\nmodel:\n    change_tracking: changed_notifications\n    access_mode: field\n", string(data))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "schema/shop.yml", loaded.ModelFile)
	assert.Equal(t, metadata.ChangedNotifications, loaded.ChangeTrackingStrategy())
	assert.Equal(t, metadata.AccessModeField, loaded.PropertyAccessMode())

	err = Save(path, cfg, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrExist)
	require.NoError(t, Save(path, cfg, true))
}

func TestSaveInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ormmeta.yml")
	err := Save(path, &Config{ModelFile: "model.yml", Model: ModelConfig{ChangeTracking: "eager"}}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model.change_tracking")
	assert.NoFileExists(t, path)
}
