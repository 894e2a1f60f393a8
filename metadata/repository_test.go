package metadata_test

import (
	"context"
	"maps"
	"slices"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rlch/dvql/metadata"
)

func TestRegisteredSources(t *testing.T) {
	t.Parallel()

	assert.Subset(t, metadata.RegisteredSources(), []string{"file", "redis"})
}

func TestNewRepository(t *testing.T) {
	t.Parallel()

	t.Run("file", func(t *testing.T) {
		t.Parallel()

		repo, err := metadata.NewRepository(metadata.SourceConfig{Source: "file", Path: writeSnapshots(t)})
		require.NoError(t, err)

		got, err := repo.EntitySuggestions(context.Background(), "prod")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("redis", func(t *testing.T) {
		t.Parallel()

		mr := miniredis.RunT(t)
		require.NoError(t, mr.Set("x:env:e:entities", `[{"logicalName":"account"}]`))

		repo, err := metadata.NewRepository(metadata.SourceConfig{
			Source: "redis",
			URI:    "redis://" + mr.Addr() + "/0",
			Prefix: "x:",
		})
		require.NoError(t, err)

		got, err := repo.EntitySuggestions(context.Background(), "e")
		require.NoError(t, err)
		assert.Equal(t, []metadata.EntitySuggestion{{LogicalName: "account"}}, got)
	})

	t.Run("bad redis uri", func(t *testing.T) {
		t.Parallel()

		_, err := metadata.NewRepository(metadata.SourceConfig{Source: "redis", URI: "http://nope"})
		require.Error(t, err)
	})

	t.Run("unknown", func(t *testing.T) {
		t.Parallel()

		_, err := metadata.NewRepository(metadata.SourceConfig{Source: "dataverse"})
		require.ErrorIs(t, err, metadata.ErrUnknownSource)
	})
}

func TestSourceConfig_YAMLKeys(t *testing.T) {
	t.Parallel()

	out, err := yaml.Marshal(metadata.SourceConfig{
		Source: "redis",
		Path:   "snapshots",
		URI:    "redis://localhost:6379/0",
		Prefix: "dvql:",
	})
	require.NoError(t, err)

	var keys map[string]any
	require.NoError(t, yaml.Unmarshal(out, &keys))
	assert.ElementsMatch(t, []string{"source", "path", "uri", "prefix"}, slices.Collect(maps.Keys(keys)))
}
