package metadata_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlch/dvql/metadata"
)

func setupRedisRepository(t *testing.T, prefix string) (*metadata.RedisRepository, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	repo := metadata.NewRedisRepository(client, prefix)
	t.Cleanup(func() { _ = repo.Close() })

	return repo, mr
}

func TestRedisRepository_PublishAndRead(t *testing.T) {
	t.Parallel()

	repo, mr := setupRedisRepository(t, "dvql:")
	ctx := context.Background()

	snap := &metadata.Snapshot{
		Entities: []metadata.EntitySuggestion{
			{LogicalName: "account", DisplayName: "Account"},
			{LogicalName: "new_project", DisplayName: "Project", IsCustomEntity: true},
		},
		Attributes: map[string][]metadata.AttributeSuggestion{
			"account": {{LogicalName: "name", DisplayName: "Account Name", AttributeType: "String"}},
		},
	}

	require.NoError(t, repo.Publish(ctx, "env-1", snap))

	assert.True(t, mr.Exists("dvql:env:env-1:entities"))
	assert.True(t, mr.Exists("dvql:env:env-1:entity:account:attributes"))

	entities, err := repo.EntitySuggestions(ctx, "env-1")
	require.NoError(t, err)
	assert.Equal(t, snap.Entities, entities)

	attrs, err := repo.AttributeSuggestions(ctx, "env-1", "account")
	require.NoError(t, err)
	assert.Equal(t, snap.Attributes["account"], attrs)
}

func TestRedisRepository_Missing(t *testing.T) {
	t.Parallel()

	repo, _ := setupRedisRepository(t, "")
	ctx := context.Background()

	_, err := repo.EntitySuggestions(ctx, "env-1")
	require.ErrorIs(t, err, metadata.ErrUnknownEnvironment)

	_, err = repo.AttributeSuggestions(ctx, "env-1", "account")
	require.ErrorIs(t, err, metadata.ErrUnknownEntity)
}

func TestRedisRepository_ReadsExternalKeys(t *testing.T) {
	t.Parallel()

	repo, mr := setupRedisRepository(t, "")

	require.NoError(t, mr.Set("env:env-2:entities", `[{"logicalName":"contact","displayName":"Contact"}]`))

	got, err := repo.EntitySuggestions(context.Background(), "env-2")
	require.NoError(t, err)
	assert.Equal(t, []metadata.EntitySuggestion{{LogicalName: "contact", DisplayName: "Contact"}}, got)
}

func TestRedisRepository_CorruptValue(t *testing.T) {
	t.Parallel()

	repo, mr := setupRedisRepository(t, "")

	require.NoError(t, mr.Set("env:env-1:entities", "not json"))

	_, err := repo.EntitySuggestions(context.Background(), "env-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, metadata.ErrUnknownEnvironment)
}

func TestRedisRepository_ConnectionError(t *testing.T) {
	t.Parallel()

	repo, mr := setupRedisRepository(t, "")
	mr.Close()

	_, err := repo.EntitySuggestions(context.Background(), "env-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, metadata.ErrUnknownEnvironment)
}
