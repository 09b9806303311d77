package sources_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compose-market/connector/internal/catalog"
	"github.com/compose-market/connector/internal/identity"
	"github.com/compose-market/connector/internal/sources"
)

const pluginDump = `{
	"plugins": [
		{
			"id": "goat-erc20",
			"name": "ERC20",
			"slug": "goat-erc-20",
			"description": "Token balances and transfers",
			"keywords": ["Blockchain", "Token"],
			"repository": "https://github.com/goat-sdk/goat"
		},
		{
			"id": "goat-obscure",
			"name": "Obscure",
			"slug": "obscure"
		}
	]
}`

func TestAdaptPlugins(t *testing.T) {
	t.Parallel()

	normalizer := identity.NewNormalizer(nil)

	records, err := sources.AdaptPlugins([]byte(pluginDump), catalog.OriginGoat, normalizer)

	require.NoError(t, err)
	require.Len(t, records, 2)

	erc20 := records[0]
	assert.Equal(t, "goat:goat-erc20", erc20.RegistryID)
	assert.Equal(t, catalog.OriginGoat, erc20.Origin)
	assert.Equal(t, []catalog.Origin{catalog.OriginGoat}, erc20.Sources)
	assert.Equal(t, "erc20", erc20.CanonicalKey, "origin tag stripped, then spelling folded")
	assert.Equal(t, "blockchain", erc20.Category)
	assert.Contains(t, erc20.Tags, "blockchain", "keywords become tags")
	assert.Equal(t, "stdio", erc20.Transport)
	assert.True(t, erc20.Executable, "allow-listed plugin is executable")
	assert.True(t, erc20.Available)

	obscure := records[1]
	assert.Equal(t, "goat:goat-obscure", obscure.RegistryID)
	assert.False(t, obscure.Executable, "plugins off the allow-list are metadata-only")
	assert.False(t, obscure.Available)
}

func TestAdaptPlugins_AllowListIsPerOrigin(t *testing.T) {
	t.Parallel()

	dump := `{"plugins": [{"id": "eliza-twitter", "name": "Twitter", "slug": "twitter"}]}`
	normalizer := identity.NewNormalizer(nil)

	asEliza, err := sources.AdaptPlugins([]byte(dump), catalog.OriginEliza, normalizer)
	require.NoError(t, err)
	require.Len(t, asEliza, 1)
	assert.True(t, asEliza[0].Executable)

	asGoat, err := sources.AdaptPlugins([]byte(dump), catalog.OriginGoat, normalizer)
	require.NoError(t, err)
	require.Len(t, asGoat, 1)
	assert.False(t, asGoat[0].Executable, "another origin's allow-list must not apply")
}

func TestAdaptPlugins_MissingSlugFallsBackToName(t *testing.T) {
	t.Parallel()

	dump := `{"plugins": [{"name": "Cool Plugin"}]}`

	records, err := sources.AdaptPlugins([]byte(dump), catalog.OriginEliza, identity.NewNormalizer(nil))

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "cool-plugin", records[0].Slug)
	assert.Equal(t, "eliza:cool-plugin", records[0].RegistryID)
	assert.Equal(t, "cool", records[0].CanonicalKey)
}

func TestAdaptPlugins_InvalidDocument(t *testing.T) {
	t.Parallel()

	_, err := sources.AdaptPlugins([]byte(`[]`), catalog.OriginGoat, identity.NewNormalizer(nil))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse plugin list")
}
