package commands

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/ormmeta/internal/orm/modelfile"
	"github.com/conduit-lang/ormmeta/internal/registry"
)

func TestPublishAndPull(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("ORMMETA_REGISTRY_URL", "redis://"+mr.Addr())
	modelPath := writeModel(t, shopModel)

	out, _, err := execute(t, NewRootCommand, "--model", modelPath, "publish")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "✓ Published model@"), out)
	version := strings.TrimSpace(strings.TrimPrefix(out, "✓ Published model@"))
	assert.True(t, mr.Exists("ormmeta:model:model:"+version))

	out, _, err = execute(t, NewRootCommand, "--model", modelPath, "publish", "shop")
	require.NoError(t, err)
	assert.Equal(t, "✓ Published shop@"+version+"\n", out)

	out, _, err = execute(t, NewRootCommand, "pull", "shop")
	require.NoError(t, err)
	doc, err := modelfile.Parse([]byte(out))
	require.NoError(t, err)
	assert.Len(t, doc.Entities, 3)

	out, _, err = execute(t, NewRootCommand, "pull", "shop", "--list")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)

	target := filepath.Join(t.TempDir(), "pulled.yml")
	out, _, err = execute(t, NewRootCommand, "pull", "shop", "--version", version, "-o", target)
	require.NoError(t, err)
	assert.Equal(t, "✓ Wrote "+target+"\n", out)

	// the pulled file builds the same model
	out, _, err = execute(t, NewRootCommand, "validate", "-m", target)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid: 3 entity type(s)")
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: orderLine")
}

func TestPull_NotPublished(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("ORMMETA_REGISTRY_URL", "redis://"+mr.Addr())

	_, _, err := execute(t, NewRootCommand, "pull", "shop")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	_, _, err = execute(t, NewRootCommand, "pull", "shop", "--list")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestPublish_NoRegistry(t *testing.T) {
	t.Setenv("ORMMETA_REGISTRY_URL", "")
	_, _, err := run(t, "publish")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no registry")
}

func TestPublish_RegistryName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shop.yml"), []byte(shopModel), 0644))
	configPath := filepath.Join(dir, "ormmeta.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("model_file: shop.yml\nregistry:\n  name: storefront\n"), 0644))

	mr := miniredis.RunT(t)
	t.Setenv("ORMMETA_REGISTRY_URL", "redis://"+mr.Addr())

	out, _, err := execute(t, NewRootCommand, "--config", configPath, "publish")
	require.NoError(t, err)
	assert.Contains(t, out, "Published storefront@")
	assert.True(t, mr.Exists("ormmeta:model:storefront:latest"))
}
