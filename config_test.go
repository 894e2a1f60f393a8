package dvql_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/dvql"
)

const sampleConfig = `environment: dev
log_level: debug
metadata:
  source: file
  path: snapshots
completion:
  attribute_ttl: 90s
  entity_filter: IsCustomEntity
`

func TestLoadConfig_WalksUp(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	nested := filepath.Join(root, "queries", "reports")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".dvql.yaml"), []byte(sampleConfig), 0o600))

	cfg, err := dvql.LoadConfig(nested)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Environment)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "file", cfg.Metadata.Source)
	assert.Equal(t, filepath.Join(root, "snapshots"), cfg.Metadata.Path)
	assert.Equal(t, 90*time.Second, cfg.Completion.AttributeTTL)
	assert.Equal(t, "IsCustomEntity", cfg.Completion.EntityFilter)
}

func TestFindConfig_Precedence(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dvql.yml"), []byte("environment: b\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".dvql.yaml"), []byte("environment: a\n"), 0o600))

	path, err := dvql.FindConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ".dvql.yaml"), path)
}

func TestLoadConfigFile_AbsoluteMetadataPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "dvql.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metadata:\n  source: file\n  path: /srv/metadata\n"), 0o600))

	cfg, err := dvql.LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/metadata", cfg.Metadata.Path)
}

func TestLoadConfigFile_Invalid(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".dvql.yaml")
	require.NoError(t, os.WriteFile(path, []byte("completion:\n  attribute_ttl: soon\n"), 0o600))

	_, err := dvql.LoadConfigFile(path)
	require.Error(t, err)
}
